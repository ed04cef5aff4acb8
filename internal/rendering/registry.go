package rendering

// Engine identifies the rendering pipeline, and with it the fit oracle, a template uses.
type Engine string

const (
	// EngineLaTeX renders fixed-flow paginated output; fit is a page count.
	EngineLaTeX Engine = "latex"
	// EngineChrome renders a viewport-constrained composition; fit is a measured height.
	EngineChrome Engine = "chrome"
)

// Template ids.
const (
	TemplateATSClassic = "ats-classic"
	TemplateModernDark = "modern-dark"
)

// Template describes one selectable output format.
type Template struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Engine        Engine `json:"engine"`
	SupportsPhoto bool   `json:"supports_photo"`
	ATSScore      string `json:"ats_score"`
}

var templates = []Template{
	{
		ID:            TemplateATSClassic,
		Name:          "ATS Classic",
		Description:   "Single-column LaTeX layout. Helvetica only, no backgrounds. Maximum compatibility with applicant tracking systems.",
		Engine:        EngineLaTeX,
		SupportsPhoto: false,
		ATSScore:      "high",
	},
	{
		ID:            TemplateModernDark,
		Name:          "Modern Dark",
		Description:   "Two-column dark layout rendered in headless Chrome. Sidebar (skills, education, certifications) plus main column (experience, projects). Supports a profile photo.",
		Engine:        EngineChrome,
		SupportsPhoto: true,
		ATSScore:      "low",
	},
}

var registry = func() map[string]Template {
	m := make(map[string]Template, len(templates))
	for _, t := range templates {
		m[t.ID] = t
	}
	return m
}()

// GetTemplate returns the template for id, falling back to ATS Classic for
// unknown ids so that loadouts saved with a retired template still export.
func GetTemplate(id string) Template {
	if t, ok := registry[id]; ok {
		return t
	}
	return registry[TemplateATSClassic]
}

// ListTemplates returns every registered template in display order.
func ListTemplates() []Template {
	out := make([]Template, len(templates))
	copy(out, templates)
	return out
}

// IsValidTemplateID reports whether id names a registered template.
func IsValidTemplateID(id string) bool {
	_, ok := registry[id]
	return ok
}
