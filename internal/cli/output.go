// Package cli renders answers and history for the terminal and runs the
// interactive chat loop.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/hyperjump/kaiwa/internal/models"
	"github.com/hyperjump/kaiwa/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat maps a flag value to an OutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

var (
	youLabel       = color.New(color.FgGreen, color.Bold).SprintFunc()
	assistantLabel = color.New(color.FgCyan, color.Bold).SprintFunc()
	dim            = color.New(color.Faint).SprintFunc()
	errLabel       = color.New(color.FgRed, color.Bold).SprintFunc()
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteAnswer writes one answer. Sources are listed when showSources is set.
func WriteAnswer(w io.Writer, ans *models.Answer, format OutputFormat, showSources bool) error {
	if format == OutputJSON {
		return writeJSON(w, ans)
	}
	if ans.StandaloneQuery != "" && ans.StandaloneQuery != ans.Question {
		fmt.Fprintln(w, dim("(searched for: "+ans.StandaloneQuery+")"))
	}
	fmt.Fprintf(w, "%s %s\n", assistantLabel("Assistant:"), ans.Answer)
	if showSources && len(ans.Sources) > 0 {
		fmt.Fprintln(w, dim("Sources:"))
		for i, s := range ans.Sources {
			fmt.Fprintf(w, "  %d. %s %s\n", i+1, dim(fmt.Sprintf("[%s score=%.4f]", s.ChunkID, s.Score)), utils.Truncate(s.Preview, 80))
		}
	}
	return nil
}

// WriteHistory writes a session's turns, oldest first.
func WriteHistory(w io.Writer, sessionID string, turns []models.Turn, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]interface{}{"session_id": sessionID, "history": turns})
	}
	if len(turns) == 0 {
		fmt.Fprintf(w, "No history for session %q\n", sessionID)
		return nil
	}
	fmt.Fprintf(w, "Session %q (%d turns)\n\n", sessionID, len(turns))
	for i, t := range turns {
		fmt.Fprintf(w, "%s %s\n", dim(fmt.Sprintf("#%d", i+1)), dim(t.CreatedAt.Format("2006-01-02 15:04:05")))
		fmt.Fprintf(w, "%s %s\n", youLabel("You:"), t.Question)
		fmt.Fprintln(w, assistantLabel("Assistant:"))
		fmt.Fprintf(w, "%s\n\n", utils.Indent(t.Answer, "  "))
	}
	return nil
}

// WriteDocument writes the metadata of an uploaded document.
func WriteDocument(w io.Writer, doc *models.Document, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, doc)
	}
	fmt.Fprintf(w, "Indexed %s (%s)\n", doc.Name, doc.ID)
	fmt.Fprintf(w, "  size: %d bytes, text: %d characters, chunks: %d\n", doc.SizeBytes, doc.TextLength, doc.ChunkCount)
	return nil
}

// WriteError writes err with its kind.
func WriteError(w io.Writer, err error) {
	fmt.Fprintf(w, "%s %v %s\n", errLabel("Error:"), err, dim("("+models.ErrorKind(err)+")"))
}
