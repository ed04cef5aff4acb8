package rendering

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/jonathan/resume-onepage/internal/types"
)

//go:embed templates/ats_classic.tex.tmpl
var atsClassicSource string

// Base sizes in points at scale 1.0.
const (
	latexBodyPt    = 10.0
	latexNamePt    = 20.0
	latexSectionPt = 10.5
	latexLeading   = 1.2
)

// LeadershipBulletLimit is the number of bullets rendered per leadership entry.
const LeadershipBulletLimit = 2

// LaTeXData is the data passed to the ATS Classic template. All text fields
// are already escaped; size fields are formatted LaTeX dimensions.
type LaTeXData struct {
	Name    string
	Title   string
	Contact string

	BodySize       string
	BodyLeading    string
	NameSize       string
	NameLeading    string
	SectionSize    string
	SectionLeading string
	SectionBefore  string
	SectionAfter   string
	ItemSep        string

	Experiences     []latexExperience
	Projects        []latexProject
	ProjectsCompact bool
	SkillGroups     []latexSkillGroup
	Education       []latexEducation
	Certifications  []latexCertification
	Leadership      []latexLeadership
}

type latexExperience struct {
	Role     string
	Company  string
	Dates    string
	Location string
	Bullets  []string
}

type latexProject struct {
	Title string
	Tech  string
	Pitch string
	Link  string
}

type latexSkillGroup struct {
	Group  string
	Skills string
}

type latexEducation struct {
	School string
	Degree string
	Extra  string
	Dates  string
}

type latexCertification struct {
	Name   string
	Issuer string
	Date   string
}

type latexLeadership struct {
	Role    string
	Org     string
	Dates   string
	Bullets []string
}

// The template uses << >> so that LaTeX braces never collide with actions.
var atsClassicTemplate = template.Must(
	template.New(TemplateATSClassic).Delims("<<", ">>").Parse(atsClassicSource),
)

// RenderLaTeX renders the ATS Classic LaTeX source for doc under params.
func RenderLaTeX(doc *types.ResolvedDocument, params types.VisualParams) (string, error) {
	if doc == nil {
		return "", &RenderError{Message: "document is nil"}
	}

	data := BuildLaTeXData(doc, params)

	var out strings.Builder
	if err := atsClassicTemplate.Execute(&out, data); err != nil {
		return "", &TemplateError{
			TemplateID: TemplateATSClassic,
			Message:    "failed to execute template",
			Cause:      err,
		}
	}
	return out.String(), nil
}

// BuildLaTeXData escapes doc and applies params to produce template data.
func BuildLaTeXData(doc *types.ResolvedDocument, params types.VisualParams) *LaTeXData {
	fs := scaleOrOne(params.FontScale)
	lh := scaleOrOne(params.LineHeightScale)

	body := latexBodyPt * fs
	name := latexNamePt * fs
	section := latexSectionPt * fs

	data := &LaTeXData{
		Name:    EscapeLaTeX(doc.Name),
		Title:   EscapeLaTeX(doc.Title),
		Contact: latexContact(doc),

		BodySize:       pt(body),
		BodyLeading:    pt(body * latexLeading * lh),
		NameSize:       pt(name),
		NameLeading:    pt(name * latexLeading),
		SectionSize:    pt(section),
		SectionLeading: pt(section * latexLeading * lh),
		SectionBefore:  pt(6 * lh),
		SectionAfter:   pt(3 * lh),
		ItemSep:        pt(1 * lh),

		ProjectsCompact: params.ProjectsCompact,
	}

	for _, exp := range doc.Experiences {
		bullets := params.BulletsFor(exp)
		e := latexExperience{
			Role:     EscapeLaTeX(exp.Role),
			Company:  EscapeLaTeX(exp.Company),
			Dates:    EscapeLaTeX(types.FormatDateRange(exp.StartDate, exp.EndDate)),
			Location: EscapeLaTeX(exp.Location),
			Bullets:  make([]string, 0, len(bullets)),
		}
		for _, b := range bullets {
			e.Bullets = append(e.Bullets, EscapeLaTeX(b.Text))
		}
		data.Experiences = append(data.Experiences, e)
	}

	for _, p := range params.VisibleProjects(doc.Projects) {
		data.Projects = append(data.Projects, latexProject{
			Title: EscapeLaTeX(p.Title),
			Tech:  EscapeLaTeX(strings.Join(p.TechStack, ", ")),
			Pitch: EscapeLaTeX(p.Pitch),
			Link:  latexURL(p.GithubURL),
		})
	}

	for _, g := range doc.SkillGroups {
		names := make([]string, 0, len(g.Skills))
		for _, s := range g.Skills {
			names = append(names, s.Name)
		}
		data.SkillGroups = append(data.SkillGroups, latexSkillGroup{
			Group:  EscapeLaTeX(g.Group),
			Skills: EscapeLaTeX(strings.Join(names, ", ")),
		})
	}

	for _, ed := range doc.Education {
		data.Education = append(data.Education, latexEducation{
			School: EscapeLaTeX(ed.School),
			Degree: EscapeLaTeX(degreeLine(ed)),
			Extra:  EscapeLaTeX(educationExtra(ed)),
			Dates:  EscapeLaTeX(types.FormatDateRange(ed.StartDate, ed.EndDate)),
		})
	}

	for _, c := range doc.Certifications {
		data.Certifications = append(data.Certifications, latexCertification{
			Name:   EscapeLaTeX(c.Name),
			Issuer: EscapeLaTeX(c.Issuer),
			Date:   EscapeLaTeX(c.Date),
		})
	}

	if params.ShowLeadership {
		for _, l := range doc.Leadership {
			entry := latexLeadership{
				Role:  EscapeLaTeX(l.Role),
				Org:   EscapeLaTeX(l.Org),
				Dates: EscapeLaTeX(types.FormatDateRange(l.StartDate, l.EndDate)),
			}
			for _, b := range leadershipBullets(l) {
				entry.Bullets = append(entry.Bullets, EscapeLaTeX(b))
			}
			data.Leadership = append(data.Leadership, entry)
		}
	}

	return data
}

func latexContact(doc *types.ResolvedDocument) string {
	var parts []string
	if doc.Email != "" {
		parts = append(parts, EscapeLaTeX(doc.Email))
	}
	for _, link := range doc.Links {
		if link != "" {
			parts = append(parts, latexURL(link))
		}
	}
	return strings.Join(parts, ` \textbar{} `)
}

// latexURL renders a link as a hyperref \href with the scheme stripped from
// the visible text.
func latexURL(raw string) string {
	if raw == "" {
		return ""
	}
	display := strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
	return fmt.Sprintf(`\href{%s}{%s}`, escapeURL(raw), EscapeLaTeX(display))
}

// escapeURL escapes only what breaks \href's argument.
func escapeURL(raw string) string {
	return strings.NewReplacer(`%`, `\%`, `#`, `\#`, `{`, "", `}`, "", `\`, "").Replace(raw)
}

func degreeLine(ed types.Education) string {
	if ed.Field == "" {
		return ed.Degree
	}
	if ed.Degree == "" {
		return ed.Field
	}
	return ed.Degree + " in " + ed.Field
}

func educationExtra(ed types.Education) string {
	var parts []string
	if ed.GPA != "" {
		parts = append(parts, "GPA "+ed.GPA)
	}
	if ed.Honors != "" {
		parts = append(parts, ed.Honors)
	}
	return strings.Join(parts, ", ")
}

// leadershipBullets returns the bullets shown under a leadership entry.
func leadershipBullets(l types.Leadership) []string {
	if len(l.Bullets) > LeadershipBulletLimit {
		return l.Bullets[:LeadershipBulletLimit]
	}
	return l.Bullets
}

func pt(v float64) string {
	return fmt.Sprintf("%.2fpt", v)
}

func scaleOrOne(s float64) float64 {
	if s <= 0 {
		return 1.0
	}
	return s
}
