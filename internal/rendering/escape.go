// Package rendering turns a resolved document plus visual parameters into template source.
package rendering

import "strings"

// latexReplacer maps characters that are special to LaTeX, plus a few
// typographic characters pdflatex cannot take verbatim, to safe sequences.
var latexReplacer = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	`{`, `\{`,
	`}`, `\}`,
	`$`, `\$`,
	`&`, `\&`,
	`%`, `\%`,
	`#`, `\#`,
	`^`, `\textasciicircum{}`,
	`_`, `\_`,
	`~`, `\textasciitilde{}`,
	"–", "--",
	"—", "---",
	"·", `\textperiodcentered{}`,
	"•", `\textbullet{}`,
)

// EscapeLaTeX makes arbitrary user text safe to place inside a LaTeX body.
func EscapeLaTeX(text string) string {
	if text == "" {
		return ""
	}
	return latexReplacer.Replace(text)
}
