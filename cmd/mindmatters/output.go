// ABOUTME: Table and JSON rendering for CLI output
// ABOUTME: Tables use go-pretty; JSON is indented for piping into other tools

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/2389/mindmatters/internal/external"
	"github.com/2389/mindmatters/internal/journal"
	"github.com/2389/mindmatters/internal/store"
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

func checkFormat(format string) error {
	switch format {
	case formatTable, formatJSON:
		return nil
	default:
		return fmt.Errorf("invalid format: %s (valid values: table, json)", format)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

// entryJSON is the exported shape of an entry.
type entryJSON struct {
	ID         int64                  `json:"id"`
	UUID       string                 `json:"uuid"`
	Date       string                 `json:"date"`
	MoodValue  int                    `json:"moodValue"`
	Mood       string                 `json:"mood"`
	Thoughts   string                 `json:"thoughts,omitempty"`
	Gratitude  string                 `json:"gratitude,omitempty"`
	Activities []string               `json:"activities,omitempty"`
	Weather    *store.WeatherSnapshot `json:"weather,omitempty"`
	Synced     bool                   `json:"synced"`
}

func renderEntries(w io.Writer, entries []*store.MoodEntry, format string) error {
	if format == formatJSON {
		out := make([]entryJSON, 0, len(entries))
		for _, e := range entries {
			out = append(out, entryJSON{
				ID:         e.ID,
				UUID:       e.UUID,
				Date:       e.Date.Format("2006-01-02T15:04:05Z07:00"),
				MoodValue:  e.MoodValue,
				Mood:       e.Mood,
				Thoughts:   e.Thoughts,
				Gratitude:  e.Gratitude,
				Activities: e.Activities,
				Weather:    e.Weather,
				Synced:     e.Synced == store.SyncDelivered,
			})
		}
		return writeJSON(w, out)
	}

	if len(entries) == 0 {
		fmt.Fprintln(w, "No entries yet.")
		return nil
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Date", "Mood", "Weather", "Activities", "Thoughts", "Synced"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 6, WidthMax: 40},
		{Number: 7, Align: text.AlignCenter},
	})
	for _, e := range entries {
		synced := "·"
		if e.Synced == store.SyncDelivered {
			synced = "✓"
		}
		t.AppendRow(table.Row{
			e.ID,
			e.Date.Format("Jan 02 15:04"),
			fmt.Sprintf("%d %s", e.MoodValue, e.Mood),
			describeSnapshot(e.Weather),
			strings.Join(e.Activities, ", "),
			e.Thoughts,
			synced,
		})
	}
	t.Render()
	return nil
}

func describeSnapshot(w *store.WeatherSnapshot) string {
	if w == nil {
		return ""
	}
	return fmt.Sprintf("%s %.0f°C", external.DescribeWeather(w.WeatherCode), w.Temperature)
}

func renderStats(w io.Writer, stats journal.Stats, patterns journal.WeatherPatterns) {
	fmt.Fprintf(w, "Entries: %d  Average mood: %.2f\n\n", stats.Count, stats.Average)

	if len(stats.Trends) > 0 {
		t := newTable(w)
		t.SetTitle("Moods")
		t.AppendHeader(table.Row{"Mood", "Count", "Share"})
		for _, m := range stats.Trends {
			t.AppendRow(table.Row{m.Mood, m.Count, fmt.Sprintf("%.2f%%", m.Percentage)})
		}
		t.Render()
		fmt.Fprintln(w)
	}

	if !patterns.EnoughData {
		fmt.Fprintln(w, patterns.Message)
		return
	}

	t := newTable(w)
	t.SetTitle("Mood by weather")
	t.AppendHeader(table.Row{"Weather", "Entries", "Average"})
	for _, g := range patterns.Groups {
		t.AppendRow(table.Row{g.Group, g.Count, fmt.Sprintf("%.1f", g.Average)})
	}
	t.Render()

	for _, in := range patterns.Insights {
		fmt.Fprintf(w, "  • %s\n", in.Text)
	}
}
