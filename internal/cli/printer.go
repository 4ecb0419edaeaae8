package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"carbonweaver/internal/carbon"
	"carbonweaver/internal/dag"
	"carbonweaver/internal/runlog"
)

// printer writes the human-readable run summary.
type printer struct {
	w           io.Writer
	ok, warn    *color.Color
	bad, detail *color.Color
}

func newPrinter(w io.Writer, plain bool) *printer {
	p := &printer{
		w:      w,
		ok:     color.New(color.FgGreen),
		warn:   color.New(color.FgYellow),
		bad:    color.New(color.FgRed, color.Bold),
		detail: color.New(color.FgCyan),
	}
	if plain {
		for _, c := range []*color.Color{p.ok, p.warn, p.bad, p.detail} {
			c.DisableColor()
		}
	}
	return p
}

func (p *printer) result(res *carbon.Result, err error) {
	if res == nil || res.Graph == nil {
		if err != nil {
			p.bad.Fprintf(p.w, "✗ Carbon model did not start\n")
		}
		return
	}

	if prev := res.Run.PreviousRunID; prev != nil {
		p.detail.Fprintf(p.w, "Retry %d of failed run %s\n", res.Run.RetryCount, *prev)
	}

	g := res.Graph
	executed, cached := g.Count(dag.TaskCompleted), g.Count(dag.TaskCached)
	if err == nil {
		p.ok.Fprintf(p.w, "✓ Carbon model finished: %d tasks (%d executed, %d cached)\n",
			len(g.FinalState), executed, cached)
		for _, row := range res.Summary {
			fmt.Fprintf(p.w, "  %-36s %14.2f %s\n", row.Description, row.Value, row.Units)
		}
		if res.ValuationConstant != nil {
			p.detail.Fprintf(p.w, "  valuation constant %g\n", *res.ValuationConstant)
		}
		p.detail.Fprintf(p.w, "Workspace: %s\n", res.Registry.Workspace())
		return
	}

	if te, ok := dag.FirstTaskError(err); ok {
		p.bad.Fprintf(p.w, "✗ Task %s failed\n", te.Task)
	} else {
		p.bad.Fprintf(p.w, "✗ Carbon model failed\n")
	}
	p.warn.Fprintf(p.w, "  %d failed, %d skipped, %d executed, %d cached\n",
		g.Count(dag.TaskFailed), g.Count(dag.TaskSkipped), executed, cached)
	p.detail.Fprintf(p.w, "Workspace: %s\n", res.Registry.Workspace())
}

// runs prints one line per recorded run, oldest first.
func (p *printer) runs(runs []runlog.Run, failures map[string]runlog.Failure) {
	if len(runs) == 0 {
		fmt.Fprintln(p.w, "No runs recorded")
		return
	}
	for _, r := range runs {
		status := p.ok
		switch r.Status {
		case runlog.StatusFailed:
			status = p.bad
		case runlog.StatusRunning:
			status = p.warn
		}
		fmt.Fprintf(p.w, "%s  %s  ", r.RunID, r.StartTime.Format(time.RFC3339))
		status.Fprintf(p.w, "%-9s", r.Status)
		if r.RetryCount > 0 {
			fmt.Fprintf(p.w, "  retry %d", r.RetryCount)
		}
		if f, ok := failures[r.RunID]; ok {
			task := ""
			if f.Task != nil {
				task = " in " + *f.Task
			}
			p.detail.Fprintf(p.w, "  %s%s", f.ErrorCode, task)
		}
		fmt.Fprintln(p.w)
	}
}
