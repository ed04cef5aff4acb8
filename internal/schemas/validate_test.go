package schemas

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resume-onepage/internal/types"
)

const validRequest = `{
	"template_id": "modern-dark",
	"photo_url": "https://example.com/me.jpg",
	"document": {
		"name": "Ada Lovelace",
		"slug": "backend",
		"export_rules": {"max_projects": 2, "font_scale_range": [0.85, 1.0]},
		"experiences": [{
			"id": "exp-1",
			"role": "Engineer",
			"company": "Analytical Engines",
			"bullets": [{"id": "b1", "text": "Wrote the first program", "impact_score": 9}],
			"bullet_cap_override": null
		}],
		"projects": [{"id": "p1", "title": "Difference Engine", "tech_stack": ["brass"]}],
		"skill_groups": [{"group": "Languages", "skills": [{"name": "Go"}]}],
		"leadership": [{"org": "Royal Society", "role": "Member"}]
	}
}`

func TestValidateExportRequest_Valid(t *testing.T) {
	assert.NoError(t, ValidateExportRequest([]byte(validRequest)))
}

func TestValidateExportRequest_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantText string
	}{
		{name: "missing document", body: `{"template_id": "ats-classic"}`, wantText: "document is required"},
		{name: "unknown template", body: `{"template_id": "retro", "document": {"name": "A", "slug": "a"}}`, wantText: "template_id"},
		{name: "unknown top level field", body: `{"doc": {}, "document": {"name": "A", "slug": "a"}}`, wantText: "Additional property doc"},
		{name: "empty name", body: `{"document": {"name": "", "slug": "a"}}`, wantText: "document.name"},
		{name: "bad slug", body: `{"document": {"name": "A", "slug": "Has Spaces"}}`, wantText: "document.slug"},
		{
			name:     "scale above one",
			body:     `{"document": {"name": "A", "slug": "a", "export_rules": {"font_scale_range": [0.9, 1.2]}}}`,
			wantText: "font_scale_range",
		},
		{
			name:     "scale range wrong length",
			body:     `{"document": {"name": "A", "slug": "a", "export_rules": {"line_height_range": [0.9]}}}`,
			wantText: "line_height_range",
		},
		{
			name:     "bullet without id",
			body:     `{"document": {"name": "A", "slug": "a", "experiences": [{"id": "e", "role": "r", "company": "c", "bullets": [{"text": "t"}]}]}}`,
			wantText: "id is required",
		},
		{
			name:     "impact out of range",
			body:     `{"document": {"name": "A", "slug": "a", "experiences": [{"id": "e", "role": "r", "company": "c", "bullets": [{"id": "b", "text": "t", "impact_score": 11}]}]}}`,
			wantText: "impact_score",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateExportRequest([]byte(tt.body))
			require.Error(t, err)

			var validationErr *ValidationError
			require.True(t, errors.As(err, &validationErr), "error should be ValidationError type")
			assert.NotEmpty(t, validationErr.Errors)
			assert.Contains(t, err.Error(), tt.wantText)
		})
	}
}

func TestValidateExportRequest_MalformedJSON(t *testing.T) {
	err := ValidateExportRequest([]byte(`{"document": `))
	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Contains(t, err.Error(), "validation failed")
}

func TestParseExportRequest(t *testing.T) {
	req, err := ParseExportRequest([]byte(validRequest))
	require.NoError(t, err)

	assert.Equal(t, "modern-dark", req.TemplateID)
	assert.Equal(t, "https://example.com/me.jpg", req.PhotoURL)
	require.NotNil(t, req.Document)
	assert.Equal(t, "backend", req.Document.Slug)
	require.Len(t, req.Document.Experiences, 1)
	assert.Nil(t, req.Document.Experiences[0].BulletCapOverride)

	rules := req.Document.Rules
	assert.Equal(t, 2, rules.MaxProjects)
	assert.Equal(t, types.ScaleRange{0.85, 1.0}, rules.FontScaleRange)
	assert.Equal(t, types.DefaultExportRules().MaxBulletsPerRole, rules.MaxBulletsPerRole, "omitted rules keep defaults")
	assert.Equal(t, types.DefaultExportRules().LineHeightRange, rules.LineHeightRange)
}

func TestParseExportRequest_NoRules(t *testing.T) {
	req, err := ParseExportRequest([]byte(`{"document": {"name": "A", "slug": "a"}}`))
	require.NoError(t, err)
	assert.Equal(t, types.DefaultExportRules(), req.Document.Rules)
	assert.True(t, req.Document.IsEmpty())
}

func TestParseExportRequest_Invalid(t *testing.T) {
	req, err := ParseExportRequest([]byte(`{"document": {"slug": "a"}}`))
	assert.Nil(t, req)
	var validationErr *ValidationError
	assert.True(t, errors.As(err, &validationErr))
}

func TestValidateJSONString(t *testing.T) {
	schema := `{"type": "object", "required": ["name"], "properties": {"name": {"type": "string"}}}`

	assert.NoError(t, ValidateJSONString(schema, `{"name": "x"}`))

	err := ValidateJSONString(schema, `{"name": 3}`)
	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "name", validationErr.Errors[0].Field)

	err = ValidateJSONString(`{"type": 12}`, `{}`)
	var loadErr *SchemaLoadError
	assert.True(t, errors.As(err, &loadErr))
}
