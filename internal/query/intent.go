package query

import "strings"

// systemKeywords mark questions about the assistant itself rather than the
// data.
var systemKeywords = []string{
	"who are you", "what are you", "your name", "which model",
	"what model", "what system", "what version",
	"你是谁", "你是什么", "什么模型", "什么系统", "什么版本",
}

// historyKeywords mark requests to browse past interactions.
var historyKeywords = []string{
	"history", "previous quer", "past quer", "earlier conversations",
	"chat history", "show history", "历史", "记录", "之前的",
}

// IsSystemQuery reports whether the input asks about the assistant's
// identity or capabilities. Such input is answered directly, without a
// model call.
func IsSystemQuery(q string) bool {
	lower := strings.ToLower(q)
	for _, kw := range systemKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// IsHistoryQuery reports whether the input asks to see past interactions.
func IsHistoryQuery(q string) bool {
	lower := strings.ToLower(q)
	for _, kw := range historyKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
