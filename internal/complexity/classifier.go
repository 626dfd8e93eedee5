package complexity

import (
	"strings"
	"unicode/utf8"

	"github.com/ShayCichocki/stepwise/pkg/models"
)

// LengthThreshold is the character count above which a request is
// treated as complex regardless of keywords.
const LengthThreshold = 100

// Classification explains how a request was routed.
type Classification struct {
	Complexity models.Complexity
	// SimpleScore and ComplexScore count matched keywords of each set.
	SimpleScore  int
	ComplexScore int
	// LongText is set when the request exceeds LengthThreshold characters.
	LongText bool
	// MultiStep is set when a connective marker was found.
	MultiStep bool
	// Reason is a short human-readable explanation.
	Reason string
}

// Classifier scores requests against a fixed set of keywords.
type Classifier struct {
	keywords Keywords
}

// New creates a Classifier using the given keyword sets.
func New(keywords Keywords) *Classifier {
	return &Classifier{keywords: keywords.clone()}
}

// NewDefault creates a Classifier using DefaultKeywords.
func NewDefault() *Classifier {
	return New(DefaultKeywords)
}

// Classify returns the routing class for text.
func (c *Classifier) Classify(text string) models.Complexity {
	return c.Explain(text).Complexity
}

// Explain classifies text and reports the signals behind the decision.
// Rules, in order:
//  1. more complex than simple matches, long text, or a connective -> complex
//  2. some simple matches and no complex match -> simple
//  3. anything else -> complex
func (c *Classifier) Explain(text string) Classification {
	lower := strings.ToLower(text)
	padded := " " + lower + " "

	result := Classification{
		SimpleScore:  countMatches(lower, c.keywords.Simple),
		ComplexScore: countMatches(lower, c.keywords.Complex),
		LongText:     utf8.RuneCountInString(text) > LengthThreshold,
		MultiStep:    countMatches(padded, c.keywords.Connectives) > 0,
	}

	switch {
	case result.ComplexScore > result.SimpleScore:
		result.Complexity = models.ComplexityComplex
		result.Reason = "more complex keywords than simple keywords"
	case result.LongText:
		result.Complexity = models.ComplexityComplex
		result.Reason = "request is long"
	case result.MultiStep:
		result.Complexity = models.ComplexityComplex
		result.Reason = "request chains several actions"
	case result.SimpleScore > 0 && result.ComplexScore == 0:
		result.Complexity = models.ComplexitySimple
		result.Reason = "matched simple keywords only"
	default:
		result.Complexity = models.ComplexityComplex
		result.Reason = "ambiguous, defaulting to decomposition"
	}

	return result
}

// Classify is a convenience wrapper using DefaultKeywords.
func Classify(text string) models.Complexity {
	return NewDefault().Classify(text)
}

func countMatches(lower string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			n++
		}
	}
	return n
}
