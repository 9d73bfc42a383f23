package classifier

import (
	"errors"
	"strconv"
	"strings"

	"github.com/example/slothbucket/internal/httperr"
)

// Label is one parsed classifier line: the trimmed text before the opening
// parenthesis and the confidence digits extracted from the remainder. Scores
// stay strings on the wire, matching the classifier's own output.
type Label struct {
	Name  string `json:"name"`
	Score string `json:"score"`
}

// SlothCheck carries the derived target-detection signal.
type SlothCheck struct {
	ContainsSloth bool `json:"contains_sloth"`
}

// Result is the structured form of a classifier run.
type Result struct {
	ImageLabels []Label    `json:"image_labels"`
	SlothCheck  SlothCheck `json:"sloth_check"`
}

// ParserConfig controls target detection. The exclusion list guards against
// taxonomic names that contain the target substring without denoting it
// ("Ursus ursinus", the sloth bear).
type ParserConfig struct {
	Target     string
	Exclusions []string
	Threshold  float64
}

// DefaultParserConfig returns the stock sloth-detection configuration.
func DefaultParserConfig() ParserConfig {
	return ParserConfig{
		Target:     "sloth",
		Exclusions: []string{"Ursus ursinus"},
		Threshold:  0.70,
	}
}

// ParseResult converts the classifier's line-oriented stdout into a Result.
// Classifier output is untrusted text with no format guarantee: lines that do
// not split into exactly a name and a parenthesized score are skipped, and
// fully garbled input yields an empty label list with a false flag rather
// than an error. Only an empty input is rejected.
func ParseResult(output string, cfg ParserConfig) (*Result, error) {
	if output == "" {
		return nil, httperr.InvalidArgument(errors.New("classifier output is empty"))
	}

	result := &Result{ImageLabels: []Label{}}
	for _, line := range strings.Split(output, "\n") {
		if line == "" {
			continue
		}
		name, rest, found := strings.Cut(line, "(")
		if !found {
			continue
		}
		label := Label{
			Name:  strings.TrimSpace(name),
			Score: extractScore(rest),
		}
		result.ImageLabels = append(result.ImageLabels, label)

		if cfg.matches(label) {
			result.SlothCheck.ContainsSloth = true
		}
	}
	return result, nil
}

func (cfg ParserConfig) matches(label Label) bool {
	if cfg.Target == "" || !strings.Contains(label.Name, cfg.Target) {
		return false
	}
	for _, exclusion := range cfg.Exclusions {
		if strings.Contains(label.Name, exclusion) {
			return false
		}
	}
	score, err := strconv.ParseFloat(label.Score, 64)
	if err != nil {
		return false
	}
	return score > cfg.Threshold
}

// extractScore strips everything except digits and dots from the parenthetical.
func extractScore(rest string) string {
	var b strings.Builder
	for _, r := range rest {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
