// Package types provides type definitions for structured data used throughout the one-page export system.
//
//nolint:revive // types is a standard Go package name pattern
package types

// DefaultImpactScore is used when ranking a bullet whose impact score is unset.
const DefaultImpactScore = 5

// ResolvedDocument is a loadout with every referenced career entity loaded.
// It is built once per export request and never mutated afterwards.
type ResolvedDocument struct {
	LoadoutID      string          `json:"loadout_id,omitempty"`
	Name           string          `json:"name"`
	Slug           string          `json:"slug"`
	Title          string          `json:"title,omitempty"`
	Email          string          `json:"email,omitempty"`
	Links          []string        `json:"links,omitempty"`
	TemplateID     string          `json:"template_id,omitempty"`
	Rules          ExportRules     `json:"export_rules"`
	Experiences    []Experience    `json:"experiences"`
	Projects       []Project       `json:"projects"`
	SkillGroups    []SkillGroup    `json:"skill_groups"`
	Education      []Education     `json:"education"`
	Certifications []Certification `json:"certifications"`
	Leadership     []Leadership    `json:"leadership"`
}

// Experience is a role held at a company, with its ordered bullet bank.
type Experience struct {
	ID                string   `json:"id"`
	Role              string   `json:"role"`
	Company           string   `json:"company"`
	StartDate         string   `json:"start_date"`
	EndDate           string   `json:"end_date,omitempty"` // empty means present
	Location          string   `json:"location,omitempty"`
	Bullets           []Bullet `json:"bullets"`
	Pinned            bool     `json:"pinned"`
	BulletCapOverride *int     `json:"bullet_cap_override,omitempty"`
}

// Bullet is a single accomplishment line under an experience.
type Bullet struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	ImpactScore int    `json:"impact_score"` // 1-10
	Metric      string `json:"metric,omitempty"`
}

// Impact returns the bullet's impact score, substituting DefaultImpactScore when unset.
func (b Bullet) Impact() int {
	if b.ImpactScore <= 0 {
		return DefaultImpactScore
	}
	return b.ImpactScore
}

// Project is a side project or case study.
type Project struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Pitch     string   `json:"pitch"`
	TechStack []string `json:"tech_stack,omitempty"`
	GithubURL string   `json:"github_url,omitempty"`
	Pinned    bool     `json:"pinned"`
}

// SkillGroup is a named group of skills, e.g. "Languages".
type SkillGroup struct {
	Group  string  `json:"group"`
	Skills []Skill `json:"skills"`
}

// Skill is a single named skill.
type Skill struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Proficiency int    `json:"proficiency,omitempty"`
}

// Education is a degree entry.
type Education struct {
	ID        string `json:"id,omitempty"`
	School    string `json:"school"`
	Degree    string `json:"degree"`
	Field     string `json:"field,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	GPA       string `json:"gpa,omitempty"`
	Honors    string `json:"honors,omitempty"`
}

// Certification is a credential entry.
type Certification struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Issuer  string `json:"issuer"`
	Date    string `json:"date,omitempty"`
	Expires string `json:"expires,omitempty"`
}

// Leadership is an organisational role outside of employment.
type Leadership struct {
	ID        string   `json:"id,omitempty"`
	Org       string   `json:"org"`
	Role      string   `json:"role"`
	StartDate string   `json:"start_date,omitempty"`
	EndDate   string   `json:"end_date,omitempty"`
	Bullets   []string `json:"bullets,omitempty"`
}

// IsEmpty reports whether the document has no renderable sections.
func (d *ResolvedDocument) IsEmpty() bool {
	return len(d.Experiences) == 0 &&
		len(d.Projects) == 0 &&
		len(d.SkillGroups) == 0 &&
		len(d.Education) == 0 &&
		len(d.Certifications) == 0 &&
		len(d.Leadership) == 0
}

// FormatDateRange renders "start – end" using "Present" for an open range.
func FormatDateRange(start, end string) string {
	switch {
	case start == "" && end == "":
		return ""
	case end == "" || end == "present":
		return start + " – Present"
	case start == "":
		return end
	default:
		return start + " – " + end
	}
}
