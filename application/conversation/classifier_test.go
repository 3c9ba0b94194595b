package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		msg     Message
		kind    Kind
		command string
	}{
		{"command", Message{Text: "/add", IsCommand: true}, KindCommand, CommandAdd},
		{"command with bot name", Message{Text: "/Get@diary_bot", IsCommand: true}, KindCommand, CommandGet},
		{"command with args", Message{Text: "/start payload", IsCommand: true}, KindCommand, CommandStart},
		{"date shape", Message{Text: "2024-05-01"}, KindDateCandidate, ""},
		{"impossible date keeps date shape", Message{Text: "2024-13-40"}, KindDateCandidate, ""},
		{"date inside sentence", Message{Text: "on 2024-05-01 I slept"}, KindFreeText, ""},
		{"plain text", Message{Text: "hello"}, KindFreeText, ""},
		{"slash text not flagged as command", Message{Text: "/add"}, KindFreeText, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.msg)
			assert.Equal(t, tt.kind, got.Kind)
			assert.Equal(t, tt.command, got.Command)
		})
	}
}

func TestRepliesEntriesFormat(t *testing.T) {
	reply := DefaultReplies().entries("2024-05-01", []string{"a", "b"})
	assert.Equal(t, "📆 Entries for 2024-05-01:\n\n• a\n• b", reply.Text)
	assert.False(t, reply.HTML)
}
