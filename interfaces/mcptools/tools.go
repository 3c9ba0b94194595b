// Package mcptools exposes the diary to MCP clients over stdio. Each tool call
// is one chat message or one lookup, served by the same router and query bus
// as the Telegram transport.
package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/maxsergeev/YD-Project-2/application/conversation"
	"github.com/maxsergeev/YD-Project-2/application/queries"
	querybus "github.com/maxsergeev/YD-Project-2/application/queries/bus"
	pkgerrors "github.com/maxsergeev/YD-Project-2/pkg/errors"
)

// Handler routes one message and replies through out
type Handler interface {
	Handle(ctx context.Context, msg conversation.Message, out conversation.ReplySender)
}

// NewServer builds the MCP server with both diary tools registered
func NewServer(handler Handler, queryBus *querybus.QueryBus, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"diarybot",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(
			"A personal diary. Send chat messages with diary_message exactly as a user would type them "+
				"(/start, /add, /get, /help, free text, or a YYYY-MM-DD date). Read a day with diary_entries.",
		),
	)

	messageTool := NewMessageTool(handler)
	s.AddTool(messageTool.Definition(), messageTool.Handle)

	entriesTool := NewEntriesTool(queryBus)
	s.AddTool(entriesTool.Definition(), entriesTool.Handle)

	return s
}

// MessageTool handles the diary_message MCP tool.
type MessageTool struct {
	handler Handler
}

// NewMessageTool creates a MessageTool
func NewMessageTool(handler Handler) *MessageTool {
	return &MessageTool{handler: handler}
}

// Definition returns the MCP tool definition for diary_message.
func (t *MessageTool) Definition() mcp.Tool {
	return mcp.NewTool("diary_message",
		mcp.WithDescription("Send one chat message to the diary bot and return its reply."),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("Stable identifier of the diary owner"),
		),
		mcp.WithString("display_name",
			mcp.Description("Name used in the welcome message"),
		),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Message text; a leading / marks a command"),
		),
	)
}

// Handle processes the diary_message tool call.
func (t *MessageTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := strings.TrimSpace(req.GetString("user_id", ""))
	if userID == "" {
		return mcp.NewToolResultError("'user_id' is required"), nil
	}
	text := req.GetString("text", "")
	if strings.TrimSpace(text) == "" {
		return mcp.NewToolResultError("'text' is required"), nil
	}

	msg := conversation.Message{
		Sender: conversation.Sender{
			ID:          userID,
			DisplayName: req.GetString("display_name", userID),
		},
		Text:      text,
		IsCommand: strings.HasPrefix(strings.TrimSpace(text), "/"),
	}

	var replies []conversation.Reply
	t.handler.Handle(ctx, msg, conversation.ReplySenderFunc(func(_ context.Context, r conversation.Reply) error {
		replies = append(replies, r)
		return nil
	}))
	if len(replies) == 0 {
		return mcp.NewToolResultError("the bot produced no reply"), nil
	}

	return mcp.NewToolResultText(renderReply(replies[len(replies)-1])), nil
}

// renderReply flattens a reply for a text-only client
func renderReply(r conversation.Reply) string {
	if r.Keyboard == nil {
		return r.Text
	}
	var buttons []string
	for _, row := range r.Keyboard.Rows {
		buttons = append(buttons, row...)
	}
	return fmt.Sprintf("%s\n\nCommands: %s", r.Text, strings.Join(buttons, " "))
}

// EntriesTool handles the diary_entries MCP tool.
type EntriesTool struct {
	queryBus *querybus.QueryBus
}

// NewEntriesTool creates an EntriesTool
func NewEntriesTool(queryBus *querybus.QueryBus) *EntriesTool {
	return &EntriesTool{queryBus: queryBus}
}

// Definition returns the MCP tool definition for diary_entries.
func (t *EntriesTool) Definition() mcp.Tool {
	return mcp.NewTool("diary_entries",
		mcp.WithDescription("List a user's diary entries for one date, oldest first."),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("Stable identifier of the diary owner"),
		),
		mcp.WithString("date",
			mcp.Required(),
			mcp.Description("Day to read, as YYYY-MM-DD"),
		),
	)
}

// Handle processes the diary_entries tool call.
func (t *EntriesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := strings.TrimSpace(req.GetString("user_id", ""))
	if userID == "" {
		return mcp.NewToolResultError("'user_id' is required"), nil
	}
	date := strings.TrimSpace(req.GetString("date", ""))

	out, err := t.queryBus.Ask(ctx, queries.GetEntriesQuery{UserID: userID, Date: date})
	if err != nil {
		switch {
		case pkgerrors.IsInvalidDateFormat(err):
			return mcp.NewToolResultError(fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", date)), nil
		case pkgerrors.IsStorageUnavailable(err):
			return mcp.NewToolResultError("storage is unavailable, try again later"), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to read entries: %v", err)), nil
	}

	res, ok := out.(*queries.GetEntriesResult)
	if !ok {
		return mcp.NewToolResultError("unexpected query result"), nil
	}
	if len(res.Entries) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No entries for %s.", res.Date)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Entries for %s\n\n", res.Date)
	for i, e := range res.Entries {
		fmt.Fprintf(&b, "%d. %s\n", i+1, e)
	}
	return mcp.NewToolResultText(b.String()), nil
}
