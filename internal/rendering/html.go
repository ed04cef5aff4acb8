package rendering

import (
	_ "embed"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"github.com/jonathan/resume-onepage/internal/types"
)

//go:embed templates/modern_dark.html.tmpl
var modernDarkSource string

// Letter at 96 CSS px per inch.
const (
	PageWidthPx  = 816
	PageHeightPx = 1056
)

const htmlBaseLineHeight = 1.4

// HTMLData is the data passed to the Modern Dark template.
type HTMLData struct {
	Name     string
	Title    string
	Email    string
	Links    []string
	PhotoURL template.URL

	PageWidth  template.CSS
	PageHeight template.CSS
	LineHeight template.CSS

	Experiences     []htmlExperience
	Projects        []htmlProject
	ProjectsCompact bool
	SkillGroups     []htmlSkillGroup
	Education       []htmlEducation
	Certifications  []types.Certification
	Leadership      []htmlLeadership
}

type htmlExperience struct {
	ID      string
	Role    string
	Company string
	Dates   string
	Bullets []string
}

type htmlProject struct {
	Title string
	Tech  string
	Pitch string
}

type htmlSkillGroup struct {
	Group string
	Names []string
}

type htmlEducation struct {
	School string
	Degree string
	Dates  string
}

type htmlLeadership struct {
	Role    string
	Org     string
	Dates   string
	Bullets []string
}

func parseModernDark(fontScale float64) (*template.Template, error) {
	funcs := template.FuncMap{
		"px": func(n float64) template.CSS {
			return template.CSS(fmt.Sprintf("%.2fpx", n*fontScale))
		},
		"join": strings.Join,
	}
	tmpl, err := template.New(TemplateModernDark).Funcs(funcs).Parse(modernDarkSource)
	if err != nil {
		return nil, &TemplateError{
			TemplateID: TemplateModernDark,
			Message:    "failed to parse template",
			Cause:      err,
		}
	}
	return tmpl, nil
}

// RenderHTML renders the Modern Dark page for doc under params. photoURL is
// optional; only http(s) and data:image URLs are rendered.
func RenderHTML(doc *types.ResolvedDocument, params types.VisualParams, photoURL string) (string, error) {
	if doc == nil {
		return "", &RenderError{Message: "document is nil"}
	}

	// px is bound to the font scale, so the template is parsed per render.
	tmpl, err := parseModernDark(scaleOrOne(params.FontScale))
	if err != nil {
		return "", err
	}

	var out strings.Builder
	if err := tmpl.Execute(&out, BuildHTMLData(doc, params, photoURL)); err != nil {
		return "", &TemplateError{
			TemplateID: TemplateModernDark,
			Message:    "failed to execute template",
			Cause:      err,
		}
	}
	return out.String(), nil
}

// BuildHTMLData applies params to doc to produce template data. Escaping is
// left to html/template.
func BuildHTMLData(doc *types.ResolvedDocument, params types.VisualParams, photoURL string) *HTMLData {
	lh := scaleOrOne(params.LineHeightScale)

	data := &HTMLData{
		Name:            doc.Name,
		Title:           doc.Title,
		Email:           doc.Email,
		Links:           doc.Links,
		PhotoURL:        safePhotoURL(photoURL),
		PageWidth:       template.CSS(fmt.Sprintf("%dpx", PageWidthPx)),
		PageHeight:      template.CSS(fmt.Sprintf("%dpx", PageHeightPx)),
		LineHeight:      template.CSS(fmt.Sprintf("%.3f", htmlBaseLineHeight*lh)),
		ProjectsCompact: params.ProjectsCompact,
		Certifications:  doc.Certifications,
	}

	for _, exp := range doc.Experiences {
		e := htmlExperience{
			ID:      exp.ID,
			Role:    exp.Role,
			Company: exp.Company,
			Dates:   types.FormatDateRange(exp.StartDate, exp.EndDate),
		}
		for _, b := range params.BulletsFor(exp) {
			e.Bullets = append(e.Bullets, b.Text)
		}
		data.Experiences = append(data.Experiences, e)
	}

	for _, p := range params.VisibleProjects(doc.Projects) {
		data.Projects = append(data.Projects, htmlProject{
			Title: p.Title,
			Tech:  strings.Join(p.TechStack, " · "),
			Pitch: p.Pitch,
		})
	}

	for _, g := range doc.SkillGroups {
		names := make([]string, 0, len(g.Skills))
		for _, s := range g.Skills {
			names = append(names, s.Name)
		}
		data.SkillGroups = append(data.SkillGroups, htmlSkillGroup{Group: g.Group, Names: names})
	}

	for _, ed := range doc.Education {
		data.Education = append(data.Education, htmlEducation{
			School: ed.School,
			Degree: degreeLine(ed),
			Dates:  types.FormatDateRange(ed.StartDate, ed.EndDate),
		})
	}

	if params.ShowLeadership {
		for _, l := range doc.Leadership {
			data.Leadership = append(data.Leadership, htmlLeadership{
				Role:    l.Role,
				Org:     l.Org,
				Dates:   types.FormatDateRange(l.StartDate, l.EndDate),
				Bullets: leadershipBullets(l),
			})
		}
	}

	return data
}

func safePhotoURL(raw string) template.URL {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "data:image/") {
		return template.URL(raw)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ""
	}
	return template.URL(u.String())
}
