// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/resume-onepage/internal/db"
	"github.com/jonathan/resume-onepage/internal/rendering"
	"github.com/jonathan/resume-onepage/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// PrintDocument outputs what the resolver starts from: the sections and how
// much content each carries.
func (p *Printer) PrintDocument(doc *types.ResolvedDocument) {
	if doc == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Name:     %s\n", doc.Name))
	if doc.Title != "" {
		sb.WriteString(fmt.Sprintf("Title:    %s\n", doc.Title))
	}
	sb.WriteString(fmt.Sprintf("Slug:     %s\n", doc.Slug))
	sb.WriteString("\n")

	if len(doc.Experiences) > 0 {
		sb.WriteString("Experience:\n")
		count := min(len(doc.Experiences), maxItemsToShow)
		for i := 0; i < count; i++ {
			exp := doc.Experiences[i]
			line := fmt.Sprintf("  • %s (%d bullets)", exp.Company, len(exp.Bullets))
			if exp.Pinned {
				line += " pinned"
			}
			sb.WriteString(line + "\n")
		}
		if len(doc.Experiences) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(doc.Experiences)-maxItemsToShow))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("Projects: %d  Skill groups: %d  Leadership: %d\n",
		len(doc.Projects), len(doc.SkillGroups), len(doc.Leadership)))

	r := doc.Rules
	sb.WriteString(fmt.Sprintf("Rules:    bullets %d..%d, projects ≤ %d\n", r.MinBullets, r.MaxBulletsPerRole, r.MaxProjects))
	sb.WriteString(fmt.Sprintf("          font ≥ %.2f, line height ≥ %.2f", r.FontScaleRange.Lo(), r.LineHeightRange.Lo()))

	p.printBox("RESOLVED DOCUMENT", sb.String())
}

// PrintCompression outputs the final compression state of an export.
func (p *Printer) PrintCompression(tmpl rendering.Template, st *types.CompressionState) {
	if st == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Template:    %s (%s)\n", tmpl.ID, tmpl.Engine))
	if st.CanFit {
		sb.WriteString("Result:      ✓ fits on one page\n")
	} else {
		sb.WriteString("Result:      ⚠ overflows one page\n")
	}
	sb.WriteString(fmt.Sprintf("Iterations:  %d\n", st.Iterations))
	sb.WriteString(fmt.Sprintf("Font scale:  %.4f\n", st.FontScale))
	sb.WriteString(fmt.Sprintf("Line height: %.4f\n", st.LineHeightScale))

	if len(st.LeversApplied) > 0 {
		sb.WriteString(fmt.Sprintf("\nLevers applied (%d):\n", len(st.LeversApplied)))
		for _, l := range st.LeversApplied {
			sb.WriteString(fmt.Sprintf("  • %s\n", l.String()))
		}
	}
	if st.Warning != "" {
		sb.WriteString(fmt.Sprintf("\n%s\n", st.Warning))
	}

	p.printBox("COMPRESSION SUMMARY", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintTemplates lists the available templates.
func (p *Printer) PrintTemplates(templates []rendering.Template) {
	var sb strings.Builder
	for i, t := range templates {
		sb.WriteString(fmt.Sprintf("%s  %s\n", t.ID, t.Name))
		photo := "no"
		if t.SupportsPhoto {
			photo = "yes"
		}
		sb.WriteString(fmt.Sprintf("  engine: %s  photo: %s  ats: %s", t.Engine, photo, t.ATSScore))
		if i < len(templates)-1 {
			sb.WriteString("\n\n")
		}
	}
	p.printBox("TEMPLATES", sb.String())
}

// PrintExportHistory outputs recent export runs, newest first.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintExportHistory(loadout string, records []db.ExportRecord) {
	if len(records) == 0 {
		fmt.Fprintf(p.out, "┌%s┐\n", strings.Repeat("─", boxWidth-2))
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, "NO EXPORTS FOR "+strings.ToUpper(loadout))
		fmt.Fprintf(p.out, "└%s┘\n", strings.Repeat("─", boxWidth-2))
		return
	}

	var sb strings.Builder
	for i, rec := range records {
		mark := "✓"
		if !rec.CanFit {
			mark = "⚠"
		}
		sb.WriteString(fmt.Sprintf("%s %s  %s\n", mark, rec.CreatedAt.Format("2006-01-02 15:04"), rec.TemplateID))
		sb.WriteString(fmt.Sprintf("  font %.4f  iterations %d  %dms", rec.FontScale, rec.Iterations, rec.Duration.Milliseconds()))
		if i < len(records)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox("EXPORT HISTORY: "+loadout, sb.String())
}
