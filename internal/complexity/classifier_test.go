package complexity

import (
	"strings"
	"testing"

	"github.com/ShayCichocki/stepwise/pkg/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  models.Complexity
	}{
		{"chinese concept question", "什么是Python?", models.ComplexitySimple},
		{"chinese why question", "为什么天空是蓝色的", models.ComplexitySimple},
		{"english concept question", "What is a goroutine?", models.ComplexitySimple},
		{"complex keywords", "开发一个完整的电商网站系统", models.ComplexityComplex},
		{"complex outweighs simple", "如何创建一个项目", models.ComplexityComplex},
		{"chinese connective", "先查资料然后写报告", models.ComplexityComplex},
		{"english connective", "explain closures then write an example", models.ComplexityComplex},
		{"no keywords defaults to complex", "hello there", models.ComplexityComplex},
		{"tie defaults to complex", "简单的系统", models.ComplexityComplex},
		{"case insensitive", "DEPLOY the service", models.ComplexityComplex},
	}

	c := NewDefault()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify(tt.input); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestExplain_LongText(t *testing.T) {
	text := strings.Repeat("解释", 51)

	got := NewDefault().Explain(text)

	if !got.LongText {
		t.Errorf("LongText = false for %d characters", len([]rune(text)))
	}
	if got.SimpleScore != 1 || got.ComplexScore != 0 {
		t.Errorf("scores = (%d, %d), want (1, 0)", got.SimpleScore, got.ComplexScore)
	}
	if got.Complexity != models.ComplexityComplex {
		t.Errorf("Complexity = %v, want complex", got.Complexity)
	}
}

func TestExplain_LengthCountsCharacters(t *testing.T) {
	// 100 CJK characters is 300 bytes but must not trip the length rule.
	text := "解释" + strings.Repeat("的", 98)

	got := NewDefault().Explain(text)

	if got.LongText {
		t.Error("LongText = true for exactly 100 characters")
	}
	if got.Complexity != models.ComplexitySimple {
		t.Errorf("Complexity = %v, want simple", got.Complexity)
	}
}

func TestExplain_MultiStep(t *testing.T) {
	got := NewDefault().Explain("先查资料然后写报告")
	if !got.MultiStep {
		t.Error("MultiStep = false, want true")
	}
	if got.Reason == "" {
		t.Error("Reason is empty")
	}
}

func TestClassify_Deterministic(t *testing.T) {
	c := NewDefault()
	inputs := []string{"什么是Go", "设计一个系统然后部署", "", "random words"}
	for _, in := range inputs {
		first := c.Classify(in)
		for i := 0; i < 5; i++ {
			if got := c.Classify(in); got != first {
				t.Fatalf("Classify(%q) changed between calls: %v then %v", in, first, got)
			}
		}
	}
}

func TestNew_CopiesKeywords(t *testing.T) {
	kw := Keywords{Simple: []string{"ping"}}
	c := New(kw)
	kw.Simple[0] = "pong"

	if got := c.Classify("ping"); got != models.ComplexitySimple {
		t.Errorf("Classify(ping) = %v after caller mutated keywords, want simple", got)
	}
}
