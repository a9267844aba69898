package checkpoint

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"db-shift/internal/audit"
)

// Choice is the operator's decision at a checkpoint.
type Choice string

const (
	ChoiceProceed     Choice = "PROCEED"
	ChoiceRetry       Choice = "RETRY"
	ChoiceInvestigate Choice = "INVESTIGATE"
	ChoiceAbort       Choice = "ABORT"
)

// ErrNoChoice is returned when the input ends before a valid choice is read.
var ErrNoChoice = errors.New("no checkpoint choice given")

// UserResponse is the auditable record of an operator decision.
type UserResponse struct {
	CheckpointID string    `json:"checkpointId"`
	Choice       Choice    `json:"choice"`
	Notes        string    `json:"notes,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	Status       Status    `json:"status"`
	Score        float64   `json:"score"`
}

// AvailableOptions lists the choices offered for a status. A failed
// checkpoint cannot be passed.
func AvailableOptions(status Status) []Choice {
	if status == StatusFailed {
		return []Choice{ChoiceRetry, ChoiceInvestigate, ChoiceAbort}
	}
	return []Choice{ChoiceProceed, ChoiceRetry, ChoiceInvestigate, ChoiceAbort}
}

// Interaction asks an operator what to do with a checkpoint result.
type Interaction struct {
	in    *bufio.Reader
	out   io.Writer
	audit audit.Sink
}

func NewInteraction(in io.Reader, out io.Writer, sink audit.Sink) *Interaction {
	return &Interaction{in: bufio.NewReader(in), out: out, audit: audit.OrNop(sink)}
}

var statusIcons = map[Status]string{
	StatusPassed:             "✅",
	StatusPassedWithWarnings: "⚠️",
	StatusFailed:             "❌",
	StatusInProgress:         "⏳",
}

// RenderSummary writes a short text summary of the result.
func (it *Interaction) RenderSummary(res *Phase2ValidationResult) {
	fmt.Fprintf(it.out, "\n%s Checkpoint %s: %s (score %.1f)\n", statusIcons[res.Status], res.CheckpointID, res.Status, res.OverallScore)
	fmt.Fprintf(it.out, "   %s\n", res.Summary)
	if len(res.CriticalIssues) > 0 {
		fmt.Fprintln(it.out, "\nCritical issues:")
		for _, c := range res.CriticalIssues {
			fmt.Fprintf(it.out, "  - [%s] %s\n", c.Category, c.Message)
		}
	}
	if len(res.Warnings) > 0 {
		fmt.Fprintf(it.out, "\nWarnings: %d\n", len(res.Warnings))
	}
	if len(res.Recommendations) > 0 {
		fmt.Fprintln(it.out, "\nRecommendations:")
		for _, r := range res.Recommendations {
			fmt.Fprintf(it.out, "  - (%s) %s: %s\n", r.Priority, r.Title, r.Action)
		}
	}
}

// Prompt renders the summary, reads a choice by number or name and optional
// notes, and records the response in the audit sink.
func (it *Interaction) Prompt(res *Phase2ValidationResult) (*UserResponse, error) {
	it.RenderSummary(res)
	options := AvailableOptions(res.Status)

	var choice Choice
	for choice == "" {
		fmt.Fprintln(it.out, "\nHow do you want to continue?")
		for i, o := range options {
			fmt.Fprintf(it.out, "  %d) %s\n", i+1, o)
		}
		fmt.Fprint(it.out, "> ")
		line, err := it.readLine()
		if line == "" && err != nil {
			return nil, ErrNoChoice
		}
		if choice = parseChoice(line, options); choice == "" {
			fmt.Fprintf(it.out, "Invalid choice %q\n", line)
			if err != nil {
				return nil, ErrNoChoice
			}
		}
	}

	fmt.Fprint(it.out, "Notes (optional): ")
	notes, _ := it.readLine()

	resp := &UserResponse{
		CheckpointID: res.CheckpointID,
		Choice:       choice,
		Notes:        notes,
		Timestamp:    time.Now().UTC(),
		Status:       res.Status,
		Score:        res.OverallScore,
	}
	audit.Phase(it.audit, "checkpoint.decision", "Operator chose "+string(choice), map[string]any{
		"checkpoint_id": resp.CheckpointID,
		"choice":        string(resp.Choice),
		"notes":         resp.Notes,
		"status":        string(resp.Status),
		"score":         resp.Score,
	})
	return resp, nil
}

func (it *Interaction) readLine() (string, error) {
	line, err := it.in.ReadString('\n')
	return strings.TrimSpace(line), err
}

func parseChoice(s string, options []Choice) Choice {
	if n, err := strconv.Atoi(s); err == nil {
		if n >= 1 && n <= len(options) {
			return options[n-1]
		}
		return ""
	}
	for _, o := range options {
		if strings.EqualFold(s, string(o)) {
			return o
		}
	}
	return ""
}
