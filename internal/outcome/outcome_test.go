package outcome

import (
	"testing"

	"github.com/ShayCichocki/stepwise/pkg/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		text string
		want models.Verdict
	}{
		{"english completion", "All files written. Task complete.", models.VerdictCompleted},
		{"chinese completion", "已经整理完毕，任务已完成", models.VerdictCompleted},
		{"checkmark", "✅ report saved", models.VerdictCompleted},
		{"case insensitive", "TASK COMPLETED", models.VerdictCompleted},
		{"english failure", "I cannot complete this without credentials", models.VerdictFailed},
		{"chinese failure", "网络不可用，任务失败", models.VerdictFailed},
		{"cross mark", "❌ fetch error", models.VerdictFailed},
		{"failure beats completion", "cannot complete the upload; task complete otherwise", models.VerdictFailed},
		{"failed beats checkmark", "✅ step one, but step two failed", models.VerdictFailed},
		{"no marker", "still working on it", models.VerdictIndeterminate},
		{"empty", "", models.VerdictIndeterminate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.text); got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestClassifier_Markers(t *testing.T) {
	v, m := Default.Markers("Unable to complete: missing file")
	if v != models.VerdictFailed || m != "unable to complete" {
		t.Errorf("Markers() = (%q, %q), want (failed, unable to complete)", v, m)
	}

	v, m = Default.Markers("nothing here")
	if v != models.VerdictIndeterminate || m != "" {
		t.Errorf("Markers() = (%q, %q), want (indeterminate, \"\")", v, m)
	}
}

func TestClassifier_CustomMarkers(t *testing.T) {
	c := Classifier{Completion: []string{"DONE!"}, Failure: []string{"BROKEN"}}
	if got := c.Classify("all done!"); got != models.VerdictCompleted {
		t.Errorf("Classify() = %q, want completed", got)
	}
	if got := c.Classify("Task complete"); got != models.VerdictIndeterminate {
		t.Errorf("custom classifier should ignore default markers, got %q", got)
	}
}

func TestClassifyReply(t *testing.T) {
	tests := []struct {
		reply string
		want  ReplyKind
	}{
		{"done", ReplyDone},
		{"Yes", ReplyDone},
		{"yes, it's done", ReplyDone},
		{"是", ReplyDone},
		{"已完成", ReplyDone},
		{"完成了", ReplyDone},
		{"not done", ReplyNotDone},
		{"No", ReplyNotDone},
		{"no, not yet", ReplyNotDone},
		{"否", ReplyNotDone},
		{"还没完成", ReplyNotDone},
		{"未完成", ReplyNotDone},
		{"不是", ReplyNotDone},
		{"failed", ReplyFailed},
		{"skip this one", ReplyFailed},
		{"跳过", ReplyFailed},
		{"失败了", ReplyFailed},
		{"nobody knows", ReplyUnclear},
		{"maybe", ReplyUnclear},
		{"", ReplyUnclear},
	}

	for _, tt := range tests {
		t.Run(tt.reply, func(t *testing.T) {
			if got := ClassifyReply(tt.reply); got != tt.want {
				t.Errorf("ClassifyReply(%q) = %q, want %q", tt.reply, got, tt.want)
			}
		})
	}
}

func TestReplyKind_Verdict(t *testing.T) {
	tests := []struct {
		kind ReplyKind
		want models.Verdict
	}{
		{ReplyDone, models.VerdictCompleted},
		{ReplyFailed, models.VerdictFailed},
		{ReplyNotDone, models.VerdictIndeterminate},
		{ReplyUnclear, models.VerdictIndeterminate},
	}
	for _, tt := range tests {
		if got := tt.kind.Verdict(); got != tt.want {
			t.Errorf("%q.Verdict() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}
