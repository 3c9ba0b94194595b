package conversation

import (
	"fmt"
	"html"
	"sort"
	"strings"
)

// Placeholders substituted into reply templates
const (
	placeholderMention = "{mention}"
	placeholderDate    = "{date}"
)

// CommandKeyboardRows is the layout of the command keyboard
var CommandKeyboardRows = [][]string{
	{"/add", "/get"},
	{"/help"},
}

// Replies holds every text the bot can send
type Replies struct {
	Welcome             string `yaml:"welcome"`
	AddPrompt           string `yaml:"add_prompt"`
	GetPrompt           string `yaml:"get_prompt"`
	Help                string `yaml:"help"`
	Saved               string `yaml:"saved"`
	InvalidDate         string `yaml:"invalid_date"`
	NoEntries           string `yaml:"no_entries"`
	EntriesHeader       string `yaml:"entries_header"`
	SaveFailed          string `yaml:"save_failed"`
	ReadFailed          string `yaml:"read_failed"`
	Failed              string `yaml:"failed"`
	KeyboardPlaceholder string `yaml:"keyboard_placeholder"`
}

// DefaultReplies returns the built-in texts
func DefaultReplies() Replies {
	return Replies{
		Welcome:       "Hi {mention}! I'm your personal diary 📖\nUse the buttons below to get around:",
		AddPrompt:     "✍️ Describe what interesting happened today:",
		GetPrompt:     "📅 Enter a date in YYYY-MM-DD format:",
		Help:          "🛠 Available commands:\n/start - Restart the bot\n/add - Add an entry\n/get - View entries\n/help - This help",
		Saved:         "✅ Entry saved successfully!",
		InvalidDate:   "❌ Invalid date format! Use YYYY-MM-DD",
		NoEntries:     "📭 No entries for this date",
		EntriesHeader: "📆 Entries for {date}:",
		SaveFailed:    "⚠️ Something went wrong while saving. Please try again later.",
		ReadFailed:    "⚠️ Something went wrong while fetching entries.",
		Failed:        "⚠️ Something went wrong. Please try again later.",

		KeyboardPlaceholder: "Choose a command...",
	}
}

// WithOverrides returns a copy with the given texts replaced.
// Keys are the yaml names of the fields; unknown keys are an error.
func (r Replies) WithOverrides(overrides map[string]string) (Replies, error) {
	fields := map[string]*string{
		"welcome":              &r.Welcome,
		"add_prompt":           &r.AddPrompt,
		"get_prompt":           &r.GetPrompt,
		"help":                 &r.Help,
		"saved":                &r.Saved,
		"invalid_date":         &r.InvalidDate,
		"no_entries":           &r.NoEntries,
		"entries_header":       &r.EntriesHeader,
		"save_failed":          &r.SaveFailed,
		"read_failed":          &r.ReadFailed,
		"failed":               &r.Failed,
		"keyboard_placeholder": &r.KeyboardPlaceholder,
	}

	var unknown []string
	for key, text := range overrides {
		field, ok := fields[key]
		if !ok {
			unknown = append(unknown, key)
			continue
		}
		if strings.TrimSpace(text) != "" {
			*field = text
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return Replies{}, fmt.Errorf("unknown reply keys: %s", strings.Join(unknown, ", "))
	}
	return r, nil
}

func (r Replies) keyboard() *Keyboard {
	return &Keyboard{Rows: CommandKeyboardRows, Placeholder: r.KeyboardPlaceholder}
}

// welcome renders the greeting as HTML with a mention link to the sender
func (r Replies) welcome(s Sender) Reply {
	name := s.DisplayName
	if strings.TrimSpace(name) == "" {
		name = s.ID
	}
	mention := fmt.Sprintf(`<a href="tg://user?id=%s">%s</a>`, html.EscapeString(s.ID), html.EscapeString(name))
	return Reply{
		Text:     strings.ReplaceAll(r.Welcome, placeholderMention, mention),
		HTML:     true,
		Keyboard: r.keyboard(),
	}
}

// entries renders one bullet per entry under a dated header
func (r Replies) entries(date string, entries []string) Reply {
	var b strings.Builder
	b.WriteString(strings.ReplaceAll(r.EntriesHeader, placeholderDate, date))
	b.WriteString("\n")
	for _, e := range entries {
		b.WriteString("\n• ")
		b.WriteString(e)
	}
	return Reply{Text: b.String(), Keyboard: r.keyboard()}
}
