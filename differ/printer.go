package differ

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"imdirdiff/types"
)

// Printer streams records to the terminal as they are discovered. It is
// safe for use by concurrent comparison workers.
type Printer struct {
	mu      sync.Mutex
	out     io.Writer
	onlyA   *color.Color
	onlyB   *color.Color
	changed *color.Color
}

// NewPrinter creates a printer writing to out
func NewPrinter(out io.Writer, noColor bool) *Printer {
	p := &Printer{
		out:     out,
		onlyA:   color.New(color.FgRed),
		onlyB:   color.New(color.FgGreen),
		changed: color.New(color.FgYellow),
	}
	if noColor {
		p.onlyA.DisableColor()
		p.onlyB.DisableColor()
		p.changed.DisableColor()
	}
	return p
}

// Record prints one line for rec
func (p *Printer) Record(rec types.DiffRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch rec.Kind() {
	case types.KindOnlyInA:
		p.onlyA.Fprintf(p.out, "[-] %s\n", rec.RelPath())
	case types.KindOnlyInB:
		p.onlyB.Fprintf(p.out, "[+] %s\n", rec.RelPath())
	case types.KindChanged:
		p.changed.Fprintf(p.out, "[≠] %s\n", rec.RelPath())
	}
}

// Summary describes a finished run for the closing table
type Summary struct {
	Counts     types.Counts
	Compared   int
	Elapsed    time.Duration
	ReportPath string
	ReportSize int64
}

// Summary prints the closing table of a run
func (p *Printer) Summary(s Summary) {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false
	tbl.Style().Options.SeparateHeader = false

	tbl.AppendRow(table.Row{"Only in A", s.Counts.OnlyInA})
	tbl.AppendRow(table.Row{"Only in B", s.Counts.OnlyInB})
	tbl.AppendRow(table.Row{"Changed", fmt.Sprintf("%d of %d compared", s.Counts.Changed, s.Compared)})
	tbl.AppendRow(table.Row{"Elapsed", s.Elapsed.Round(time.Millisecond)})
	if s.ReportPath != "" {
		tbl.AppendRow(table.Row{"Report", fmt.Sprintf("%s (%s)", s.ReportPath, humanize.Bytes(uint64(s.ReportSize)))})
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, tbl.Render())
}
