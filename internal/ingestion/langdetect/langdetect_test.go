package langdetect

import "testing"

func TestDetectEnglish(t *testing.T) {
	text := "The quick brown fox jumps over the lazy dog. " +
		"This document describes the quarterly financial results of the company " +
		"and provides an outlook for the remainder of the fiscal year."
	if got := Detect(text); got != "en" {
		t.Fatalf("Detect: want=en got=%q", got)
	}
}

func TestDetectRussian(t *testing.T) {
	text := "Этот документ описывает квартальные финансовые результаты компании " +
		"и содержит прогноз на оставшуюся часть финансового года."
	if got := Detect(text); got != "ru" {
		t.Fatalf("Detect: want=ru got=%q", got)
	}
}

func TestDetectEmptyIsUnknown(t *testing.T) {
	if got := Detect("   "); got != "" {
		t.Fatalf("Detect blank: want empty, got=%q", got)
	}
}
