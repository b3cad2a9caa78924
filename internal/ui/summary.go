package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// CallSummary is printed when a call ends.
type CallSummary struct {
	RoomID     string
	Role       string
	Outcome    string
	Connected  bool
	Duration   time.Duration
	Recordings []string
}

func CallSummaryView(title string, s CallSummary) string {
	t := table.NewWriter()
	t.SetTitle(title)
	t.SetStyle(table.StyleRounded)
	t.Style().Title.Align = text.AlignCenter
	t.Style().Color.Header = text.Colors{text.FgCyan, text.Bold}

	duration := "never connected"
	if s.Connected {
		duration = FormatDuration(s.Duration)
	}

	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Room", s.RoomID},
		{"Role", s.Role},
		{"Outcome", s.Outcome},
		{"Duration", duration},
	})
	if len(s.Recordings) > 0 {
		t.AppendRow(table.Row{"Recordings", strings.Join(s.Recordings, "\n")})
	}

	return t.Render()
}

func RenderCallSummary(title string, s CallSummary) {
	fmt.Println(CallSummaryView(title, s))
}
