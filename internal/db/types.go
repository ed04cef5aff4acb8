package db

import (
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/resume-onepage/internal/types"
)

// Entity types a loadout item may reference
const (
	EntityExperience    = "experience"
	EntityProject       = "project"
	EntitySkill         = "skill"
	EntityEducation     = "education"
	EntityCertification = "certification"
	EntityLeadership    = "leadership"
)

// Loadout is a row of the loadouts table
type Loadout struct {
	ID          uuid.UUID         `json:"id"`
	Slug        string            `json:"slug"`
	Name        string            `json:"name"`
	TemplateID  string            `json:"template_id"`
	ExportRules types.ExportRules `json:"export_rules"`
	CreatedAt   time.Time         `json:"created_at"`
}

// LoadoutItem places one career entity into a loadout
type LoadoutItem struct {
	EntityType        string    `json:"entity_type"`
	EntityID          string    `json:"entity_id"`
	Position          int       `json:"position"`
	Pinned            bool      `json:"pinned"`
	BulletCapOverride *int      `json:"bullet_cap_override,omitempty"`
}

// Profile holds the person the resume is about
type Profile struct {
	Name  string   `json:"name"`
	Title string   `json:"title"`
	Email string   `json:"email"`
	Links []string `json:"links"`
}

// ExportRecord is one row of the export_runs audit table
type ExportRecord struct {
	ID              uuid.UUID     `json:"id"`
	LoadoutID       string        `json:"loadout_id"`
	TemplateID      string        `json:"template_id"`
	CanFit          bool          `json:"can_fit"`
	FontScale       float64       `json:"font_scale"`
	LineHeightScale float64       `json:"line_height_scale"`
	Iterations      int           `json:"iterations"`
	Levers          []types.Lever `json:"levers"`
	Warning         string        `json:"warning,omitempty"`
	ArtifactBytes   int           `json:"artifact_bytes"`
	Duration        time.Duration `json:"duration"`
	CreatedAt       time.Time     `json:"created_at"`
}

// entities holds every referenced entity of one loadout, keyed by id
type entities struct {
	experiences    map[string]types.Experience
	projects       map[string]types.Project
	skills         map[string]skillRow
	education      map[string]types.Education
	certifications map[string]types.Certification
	leadership     map[string]types.Leadership
}

type skillRow struct {
	Group string
	Skill types.Skill
}
