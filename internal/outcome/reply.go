package outcome

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/ShayCichocki/stepwise/pkg/models"
)

// ReplyKind is how a human answered a confirmation inquiry.
type ReplyKind string

const (
	// ReplyDone marks the task completed.
	ReplyDone ReplyKind = "done"
	// ReplyNotDone leaves the task pending and asks again.
	ReplyNotDone ReplyKind = "not_done"
	// ReplyFailed marks the task failed so the next one can start.
	ReplyFailed ReplyKind = "failed"
	// ReplyUnclear was not understood; the same task is asked again.
	ReplyUnclear ReplyKind = "unclear"
)

// Verdict maps the reply onto the task state machine. Not-done and unclear
// replies are both indeterminate.
func (k ReplyKind) Verdict() models.Verdict {
	switch k {
	case ReplyDone:
		return models.VerdictCompleted
	case ReplyFailed:
		return models.VerdictFailed
	default:
		return models.VerdictIndeterminate
	}
}

// Reply phrase sets, checked in the order failed, not done, done.
var (
	FailedPhrases  = []string{"failed", "skip", "skipped", "失败", "跳过"}
	NotDonePhrases = []string{"not done", "not yet", "no", "否", "未完成", "没完成", "不是"}
	DonePhrases    = []string{"done", "yes", "是", "已完成", "完成了", "完成"}
)

var phraseCache = map[string]*regexp.Regexp{}

func init() {
	for _, set := range [][]string{FailedPhrases, NotDonePhrases, DonePhrases} {
		for _, p := range set {
			if isASCII(p) {
				phraseCache[p] = regexp.MustCompile(`\b` + regexp.QuoteMeta(p) + `\b`)
			}
		}
	}
}

// ClassifyReply interprets a human confirmation reply.
func ClassifyReply(reply string) ReplyKind {
	lower := strings.ToLower(strings.TrimSpace(reply))
	if lower == "" {
		return ReplyUnclear
	}
	switch {
	case matchPhrase(lower, FailedPhrases):
		return ReplyFailed
	case matchPhrase(lower, NotDonePhrases):
		return ReplyNotDone
	case matchPhrase(lower, DonePhrases):
		return ReplyDone
	default:
		return ReplyUnclear
	}
}

// matchPhrase matches ASCII phrases on word boundaries and everything else
// as a substring, since CJK text has no spaces between words.
func matchPhrase(lower string, phrases []string) bool {
	for _, p := range phrases {
		if !isASCII(p) {
			if strings.Contains(lower, p) {
				return true
			}
			continue
		}
		re, ok := phraseCache[p]
		if !ok {
			re = regexp.MustCompile(`\b` + regexp.QuoteMeta(p) + `\b`)
		}
		if re.MatchString(lower) {
			return true
		}
	}
	return false
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}
