package classifier

import (
	"testing"
)

func TestParseResultSingleLabel(t *testing.T) {
	result, err := ParseResult("lesser panda, red panda (score = 0.00264)", DefaultParserConfig())
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if len(result.ImageLabels) != 1 {
		t.Fatalf("expected 1 label, got %d", len(result.ImageLabels))
	}
	label := result.ImageLabels[0]
	if label.Name != "lesser panda, red panda" {
		t.Fatalf("unexpected name: %q", label.Name)
	}
	if label.Score != "0.00264" {
		t.Fatalf("unexpected score: %q", label.Score)
	}
	if result.SlothCheck.ContainsSloth {
		t.Fatal("expected contains_sloth to be false")
	}
}

func TestParseResultPreservesLineOrder(t *testing.T) {
	output := "giant panda (score = 0.89107)\nlesser panda, red panda (score = 0.00264)"
	result, err := ParseResult(output, DefaultParserConfig())
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if len(result.ImageLabels) != 2 {
		t.Fatalf("expected 2 labels, got %d", len(result.ImageLabels))
	}
	if result.ImageLabels[0].Name != "giant panda" {
		t.Fatalf("unexpected first label: %q", result.ImageLabels[0].Name)
	}
	if result.ImageLabels[1].Name != "lesser panda, red panda" {
		t.Fatalf("unexpected second label: %q", result.ImageLabels[1].Name)
	}
}

func TestParseResultToleratesGarbage(t *testing.T) {
	result, err := ParseResult("malformed-strings,whoa", DefaultParserConfig())
	if err != nil {
		t.Fatalf("garbage input must not error, got: %v", err)
	}
	if len(result.ImageLabels) != 0 {
		t.Fatalf("expected no labels, got %d", len(result.ImageLabels))
	}
	if result.SlothCheck.ContainsSloth {
		t.Fatal("expected contains_sloth to be false")
	}
}

func TestParseResultSkipsMalformedLinesOnly(t *testing.T) {
	output := "no separator here\nthree-toed sloth (score = 0.85)\n\njunk"
	result, err := ParseResult(output, DefaultParserConfig())
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if len(result.ImageLabels) != 1 {
		t.Fatalf("expected 1 label, got %d", len(result.ImageLabels))
	}
	if !result.SlothCheck.ContainsSloth {
		t.Fatal("expected contains_sloth to be true")
	}
}

func TestParseResultRejectsEmptyInput(t *testing.T) {
	if _, err := ParseResult("", DefaultParserConfig()); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestTargetDetection(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   bool
	}{
		{"sloth above threshold", "three-toed sloth (score = 0.85)", true},
		{"sloth at threshold", "three-toed sloth (score = 0.70)", false},
		{"sloth below threshold", "three-toed sloth (score = 0.12)", false},
		{"exclusion guard", "sloth bear, Ursus ursinus (score = 0.99)", false},
		{"no target", "bath towel (score = 0.92)", false},
		{"unparseable score counts as below threshold", "three-toed sloth (score = ..9)", false},
		{"monotonic across lines", "bath towel (score = 0.1)\nthree-toed sloth (score = 0.91)", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseResult(tt.output, DefaultParserConfig())
			if err != nil {
				t.Fatalf("expected success, got error: %v", err)
			}
			if result.SlothCheck.ContainsSloth != tt.want {
				t.Fatalf("expected contains_sloth=%v for %q", tt.want, tt.output)
			}
		})
	}
}

func TestTargetDetectionConfigurableExclusions(t *testing.T) {
	cfg := DefaultParserConfig()
	cfg.Exclusions = nil

	result, err := ParseResult("sloth bear, Ursus ursinus (score = 0.99)", cfg)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if !result.SlothCheck.ContainsSloth {
		t.Fatal("with no exclusions the sloth bear line must match")
	}
}
