package conversation

import (
	"strings"

	"github.com/maxsergeev/YD-Project-2/domain/core/valueobjects"
)

// Kind tags the variant of an Intent
type Kind int

const (
	KindCommand Kind = iota
	KindDateCandidate
	KindFreeText
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindDateCandidate:
		return "date_query"
	case KindFreeText:
		return "free_text"
	default:
		return "unknown"
	}
}

// Command names understood by the router
const (
	CommandStart = "start"
	CommandAdd   = "add"
	CommandGet   = "get"
	CommandHelp  = "help"
)

// Intent is a classified message. Command is set for KindCommand,
// Text holds the raw text for the other kinds.
type Intent struct {
	Kind    Kind
	Command string
	Text    string
}

// Classify decides what a message asks for without touching storage.
// Commands win over everything, then the YYYY-MM-DD shape, then free text.
func Classify(msg Message) Intent {
	if msg.IsCommand {
		return Intent{Kind: KindCommand, Command: commandName(msg.Text), Text: msg.Text}
	}
	if valueobjects.LooksLikeDate(msg.Text) {
		return Intent{Kind: KindDateCandidate, Text: msg.Text}
	}
	return Intent{Kind: KindFreeText, Text: msg.Text}
}

// commandName extracts "add" from "/add", "/add@diary_bot" or "/add something".
func commandName(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return strings.ToLower(name)
}
