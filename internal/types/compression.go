package types

import (
	"fmt"
	"strings"
)

// LeverKind names one operation of the degradation sequence.
type LeverKind string

// Lever kinds, in the order Strategy A applies them.
const (
	LeverBulletReduction  LeverKind = "bullet_reduction"
	LeverCompactProjects  LeverKind = "compact_projects"
	LeverProjectReduction LeverKind = "project_reduction"
	LeverHideLeadership   LeverKind = "hide_leadership"
	LeverLineHeight       LeverKind = "line_height"
	LeverFontScale        LeverKind = "font_scale"
	LeverFontScaleSearch  LeverKind = "font_scale_search"
)

// Lever is one applied entry of the audit trail.
type Lever struct {
	Kind   LeverKind `json:"kind"`
	Target string    `json:"target,omitempty"` // company of a bullet reduction
	Value  float64   `json:"value,omitempty"`  // new count or scale
	Detail string    `json:"detail,omitempty"`
}

func (l Lever) String() string {
	switch l.Kind {
	case LeverBulletReduction:
		return fmt.Sprintf("Reduced bullets for %s to %d", l.Target, int(l.Value))
	case LeverCompactProjects:
		return "Compact project format"
	case LeverProjectReduction:
		return fmt.Sprintf("Reduced projects to %d", int(l.Value))
	case LeverHideLeadership:
		return "Removed leadership section"
	case LeverLineHeight:
		return fmt.Sprintf("lineHeight → %.2f", l.Value)
	case LeverFontScale:
		return fmt.Sprintf("fontSize → %.2f", l.Value)
	case LeverFontScaleSearch:
		return fmt.Sprintf("fontScale → %.4f", l.Value)
	default:
		return string(l.Kind)
	}
}

// VisualParams is everything a renderer needs besides the document itself.
type VisualParams struct {
	// VisibleBullets maps experience ID to the ascending indices of bullets to render.
	VisibleBullets  map[string][]int
	ProjectCount    int
	ProjectsCompact bool
	ShowLeadership  bool
	LineHeightScale float64
	FontScale       float64
}

// IdentityParams renders every bullet, every project in detail and both scales at 1.0.
func IdentityParams(doc *ResolvedDocument) VisualParams {
	visible := make(map[string][]int, len(doc.Experiences))
	for _, exp := range doc.Experiences {
		idx := make([]int, len(exp.Bullets))
		for i := range idx {
			idx[i] = i
		}
		visible[exp.ID] = idx
	}
	return VisualParams{
		VisibleBullets:  visible,
		ProjectCount:    len(doc.Projects),
		ShowLeadership:  true,
		LineHeightScale: 1.0,
		FontScale:       1.0,
	}
}

// BulletsFor returns the bullets of exp selected by these params, in source order.
// An experience missing from VisibleBullets renders all of its bullets.
func (p VisualParams) BulletsFor(exp Experience) []Bullet {
	idx, ok := p.VisibleBullets[exp.ID]
	if !ok {
		return exp.Bullets
	}
	out := make([]Bullet, 0, len(idx))
	for _, i := range idx {
		if i >= 0 && i < len(exp.Bullets) {
			out = append(out, exp.Bullets[i])
		}
	}
	return out
}

// VisibleProjects returns the first ProjectCount projects.
func (p VisualParams) VisibleProjects(projects []Project) []Project {
	n := min(max(p.ProjectCount, 0), len(projects))
	return projects[:n]
}

// CompressionState is the working state of one resolution and its final summary.
type CompressionState struct {
	VisibleBullets  map[string][]int `json:"-"`
	BulletCaps      map[string]int   `json:"bullet_caps"`
	ProjectCount    int              `json:"project_count"`
	ProjectsCompact bool             `json:"projects_compact"`
	ShowLeadership  bool             `json:"show_leadership"`
	LineHeightScale float64          `json:"line_height_scale"`
	FontScale       float64          `json:"font_scale"`
	LeversApplied   []Lever          `json:"levers_applied"`
	Iterations      int              `json:"iterations"`
	CanFit          bool             `json:"can_fit"`
	Warning         string           `json:"warning,omitempty"`
}

// Params snapshots the state as renderer input. The returned value shares no
// memory with the state.
func (s *CompressionState) Params() VisualParams {
	visible := make(map[string][]int, len(s.VisibleBullets))
	for id, idx := range s.VisibleBullets {
		visible[id] = append([]int(nil), idx...)
	}
	return VisualParams{
		VisibleBullets:  visible,
		ProjectCount:    s.ProjectCount,
		ProjectsCompact: s.ProjectsCompact,
		ShowLeadership:  s.ShowLeadership,
		LineHeightScale: s.LineHeightScale,
		FontScale:       s.FontScale,
	}
}

// BulletCap returns the number of visible bullets for an experience.
func (s *CompressionState) BulletCap(experienceID string) int {
	return len(s.VisibleBullets[experienceID])
}

// SyncCaps refreshes BulletCaps from VisibleBullets.
func (s *CompressionState) SyncCaps() {
	s.BulletCaps = make(map[string]int, len(s.VisibleBullets))
	for id, idx := range s.VisibleBullets {
		s.BulletCaps[id] = len(idx)
	}
}

// Apply appends a lever to the audit trail.
func (s *CompressionState) Apply(l Lever) {
	s.LeversApplied = append(s.LeversApplied, l)
}

// CompressionLog joins the applied levers for a response header.
func (s *CompressionState) CompressionLog() string {
	parts := make([]string, len(s.LeversApplied))
	for i, l := range s.LeversApplied {
		parts[i] = l.String()
	}
	return strings.Join(parts, "; ")
}
