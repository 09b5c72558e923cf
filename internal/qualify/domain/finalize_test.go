package domain

import (
	"strings"
	"testing"
)

func boolPtr(b bool) *bool { return &b }

func TestFinalize_MandatoryFailureDominates(t *testing.T) {
	answers := []Answer{
		{Question: "How many employees?", Answer: "3", Qualified: boolPtr(false), Mandatory: true},
		{Question: "What industry?", Answer: "retail", Qualified: boolPtr(true)},
		{Question: "Budget?", Answer: "50k", Qualified: boolPtr(true)},
	}

	v := Finalize(answers)
	if v.Status != StatusNotQualified {
		t.Fatalf("expected not_qualified, got %s", v.Status)
	}
	if !strings.Contains(v.Reasoning, "How many employees?") {
		t.Fatalf("reasoning should cite the failed mandatory question: %s", v.Reasoning)
	}
}

func TestFinalize_MandatorySkipDominates(t *testing.T) {
	answers := []Answer{
		{Question: "Company size?", Answer: SkippedPlaceholder, Mandatory: true},
		{Question: "Industry?", Answer: "fintech", Qualified: boolPtr(true)},
	}

	if v := Finalize(answers); v.Status != StatusNotQualified {
		t.Fatalf("expected not_qualified for skipped mandatory, got %s", v.Status)
	}
}

func TestFinalize_NoMandatoryAlwaysQualifies(t *testing.T) {
	answers := []Answer{
		{Question: "Industry?", Answer: SkippedPlaceholder},
		{Question: "Budget?", Answer: "none", Qualified: boolPtr(false)},
	}

	if v := Finalize(answers); v.Status != StatusQualified {
		t.Fatalf("expected qualified with zero mandatory questions, got %s", v.Status)
	}
}

func TestFinalize_EmptyAnswerListQualifies(t *testing.T) {
	if v := Finalize(nil); v.Status != StatusQualified {
		t.Fatalf("expected qualified for empty list, got %s", v.Status)
	}
}

func TestFinalize_Idempotent(t *testing.T) {
	answers := []Answer{
		{Question: "Q1", Answer: "a", Qualified: boolPtr(true), Mandatory: true},
		{Question: "Q2", Answer: NotAvailablePlaceholder},
	}

	first := Finalize(answers)
	second := Finalize(answers)
	if first.Status != second.Status || first.Reasoning != second.Reasoning {
		t.Fatalf("finalize is not idempotent: %+v vs %+v", first, second)
	}
}

func TestFinalize_NAPlaceholderTreatedAsSkip(t *testing.T) {
	answers := []Answer{
		{Question: "Q1", Answer: NotAvailablePlaceholder, Mandatory: true},
	}
	if v := Finalize(answers); v.Status != StatusNotQualified {
		t.Fatalf("expected N/A mandatory answer to disqualify, got %s", v.Status)
	}
}
