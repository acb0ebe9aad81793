package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/kaiwa/internal/models"
)

// Conversation is the part of rag.Conversation the chat loop needs.
type Conversation interface {
	Ask(ctx context.Context, sessionID, question string) (*models.Answer, error)
	History(sessionID string) []models.Turn
	ClearSession(sessionID string) bool
}

// Uploader loads a new document from disk.
type Uploader interface {
	UploadFile(ctx context.Context, path string) (*models.Document, error)
}

// Chat runs an interactive session reading questions from in. Lines starting
// with a slash are commands; see chatHelp.
type Chat struct {
	conv        Conversation
	uploader    Uploader
	sessionID   string
	showSources bool
}

const chatHelp = `Commands:
  /history          show this session's turns
  /clear            forget this session's turns
  /sources          toggle listing retrieved chunks
  /upload <path>    index another document
  /help             show this help
  exit, quit        leave the chat`

// NewChat creates a chat loop for sessionID. uploader may be nil.
func NewChat(conv Conversation, uploader Uploader, sessionID string) *Chat {
	return &Chat{conv: conv, uploader: uploader, sessionID: sessionID}
}

// Run reads lines until EOF, exit, or ctx is done.
func (c *Chat) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	fmt.Fprintf(out, "Session %q. Type /help for commands, exit to quit.\n\n", c.sessionID)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(out, youLabel("You: "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "exit" || line == "quit":
			return nil
		case strings.HasPrefix(line, "/"):
			c.command(ctx, line, out)
		default:
			ans, err := c.conv.Ask(ctx, c.sessionID, line)
			if err != nil {
				WriteError(out, err)
				continue
			}
			_ = WriteAnswer(out, ans, OutputText, c.showSources)
			fmt.Fprintln(out)
		}
	}
}

func (c *Chat) command(ctx context.Context, line string, out io.Writer) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "/history":
		_ = WriteHistory(out, c.sessionID, c.conv.History(c.sessionID), OutputText)
	case "/clear":
		if c.conv.ClearSession(c.sessionID) {
			fmt.Fprintln(out, "History cleared.")
		} else {
			fmt.Fprintln(out, "Nothing to clear.")
		}
	case "/sources":
		c.showSources = !c.showSources
		state := "off"
		if c.showSources {
			state = "on"
		}
		fmt.Fprintf(out, "Sources %s.\n", state)
	case "/upload":
		if c.uploader == nil {
			fmt.Fprintln(out, "Uploading is not available here.")
			return
		}
		if arg == "" {
			fmt.Fprintln(out, "Usage: /upload <path>")
			return
		}
		doc, err := c.uploader.UploadFile(ctx, arg)
		if err != nil {
			WriteError(out, err)
			return
		}
		_ = WriteDocument(out, doc, OutputText)
	case "/help":
		fmt.Fprintln(out, chatHelp)
	default:
		fmt.Fprintf(out, "Unknown command %s. Type /help.\n", name)
	}
}
