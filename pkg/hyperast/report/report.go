// Package report renders a diff run's Stats as a human-facing terminal
// summary: a per-phase breakdown, an edit-script operation breakdown, and a
// one-line totals summary.
package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/veridian-labs/hyperdiff/pkg/hyperast/diff"
)

// opKindOrder fixes the row order of the operation-breakdown table,
// matching the order edit-script phases emit them in (insert, delete,
// update, move).
var opKindOrder = []string{"insert", "delete", "update", "move"}

// roundTo rounds durations to millisecond precision for display.
const roundTo = 1_000_000

// Renderer writes diff.Stats to a terminal as formatted tables. Color is on
// by default; set NoColor to emit plain text, e.g. when writing to a file.
type Renderer struct {
	w       io.Writer
	NoColor bool
}

// New creates a Renderer writing to w.
func New(w io.Writer) *Renderer {
	return &Renderer{w: w}
}

// Render writes stats' summary line, per-phase table, and (if ops were
// generated) the operation-kind breakdown table.
func (r *Renderer) Render(stats diff.Stats) {
	r.renderSummary(stats)
	r.renderPhaseTable(stats)

	if len(stats.OpsByKind) > 0 {
		r.renderOpsTable(stats)
	}
}

func (r *Renderer) renderSummary(stats diff.Stats) {
	c := color.New(color.FgGreen)
	if r.NoColor {
		c.DisableColor()
	}

	c.Fprintf(r.w, "diff %s: %s pairs mapped in %s\n",
		stats.RunID, humanize.Comma(int64(stats.Mapped)), stats.Duration.Round(roundTo))
}

func (r *Renderer) renderPhaseTable(stats diff.Stats) {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false

	tbl.AppendHeader(table.Row{"Phase", "Mapped", "Duration"})

	for _, phase := range stats.Phases {
		tbl.AppendRow(table.Row{phase.Phase, humanize.Comma(int64(phase.Mapped)), phase.Duration.Round(roundTo)})
	}

	tbl.AppendFooter(table.Row{"Total", humanize.Comma(int64(stats.Mapped)), stats.Duration.Round(roundTo)})
	fmt.Fprintln(r.w, tbl.Render())
}

func (r *Renderer) renderOpsTable(stats diff.Stats) {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false

	tbl.AppendHeader(table.Row{"Operation", "Count"})

	total := 0
	for _, kind := range orderedOpKinds(stats.OpsByKind) {
		count := stats.OpsByKind[kind]
		total += count
		tbl.AppendRow(table.Row{kind, humanize.Comma(int64(count))})
	}

	tbl.AppendFooter(table.Row{"Total", humanize.Comma(int64(total))})
	fmt.Fprintln(r.w, tbl.Render())
}

// orderedOpKinds returns byKind's keys in opKindOrder first, then any
// remaining keys alphabetically so an unexpected kind is never dropped.
func orderedOpKinds(byKind map[string]int) []string {
	seen := make(map[string]bool, len(byKind))
	ordered := make([]string, 0, len(byKind))

	for _, kind := range opKindOrder {
		if _, ok := byKind[kind]; ok {
			ordered = append(ordered, kind)
			seen[kind] = true
		}
	}

	var rest []string

	for kind := range byKind {
		if !seen[kind] {
			rest = append(rest, kind)
		}
	}

	sort.Strings(rest)

	return append(ordered, rest...)
}
