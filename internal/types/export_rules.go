package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ScaleRange is an inclusive [lo, hi] scale interval, serialized as a two element array.
type ScaleRange [2]float64

// Lo returns the lower bound.
func (r ScaleRange) Lo() float64 { return r[0] }

// Hi returns the upper bound.
func (r ScaleRange) Hi() float64 { return r[1] }

// ExportRules bounds how far a single export may degrade the document.
type ExportRules struct {
	MinBullets        int        `json:"min_bullets" validate:"gte=0"`
	MaxBulletsPerRole int        `json:"max_bullets_per_role" validate:"gte=1"`
	MaxProjects       int        `json:"max_projects" validate:"gte=1"`
	FontScaleRange    ScaleRange `json:"font_scale_range"`
	LineHeightRange   ScaleRange `json:"line_height_range"`
}

// DefaultExportRules returns the rules applied to loadouts that never configured any.
func DefaultExportRules() ExportRules {
	return ExportRules{
		MinBullets:        1,
		MaxBulletsPerRole: 5,
		MaxProjects:       5,
		FontScaleRange:    ScaleRange{0.92, 1.0},
		LineHeightRange:   ScaleRange{0.92, 1.0},
	}
}

// InvalidRulesError reports export rules rejected before resolution starts.
type InvalidRulesError struct {
	Field   string
	Message string
	Cause   error
}

func (e *InvalidRulesError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid export rules: %s: %s: %v", e.Field, e.Message, e.Cause)
	}
	return fmt.Sprintf("invalid export rules: %s: %s", e.Field, e.Message)
}

func (e *InvalidRulesError) Unwrap() error {
	return e.Cause
}

// Validate checks field domains and the cross-field invariants.
func (r ExportRules) Validate() error {
	validate := validator.New()
	if err := validate.Struct(r); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &InvalidRulesError{
				Field:   toSnake(fe.Field()),
				Message: fmt.Sprintf("must satisfy %s=%s", fe.Tag(), fe.Param()),
			}
		}
		return &InvalidRulesError{Field: "(root)", Message: "validation failed", Cause: err}
	}

	if r.MinBullets > r.MaxBulletsPerRole {
		return &InvalidRulesError{
			Field:   "min_bullets",
			Message: fmt.Sprintf("%d exceeds max_bullets_per_role %d", r.MinBullets, r.MaxBulletsPerRole),
		}
	}
	if err := validateRange("font_scale_range", r.FontScaleRange); err != nil {
		return err
	}
	return validateRange("line_height_range", r.LineHeightRange)
}

func validateRange(field string, r ScaleRange) error {
	if r.Lo() <= 0 {
		return &InvalidRulesError{Field: field, Message: fmt.Sprintf("lower bound %.2f must be positive", r.Lo())}
	}
	if r.Lo() > r.Hi() {
		return &InvalidRulesError{Field: field, Message: fmt.Sprintf("range [%.2f, %.2f] is inverted", r.Lo(), r.Hi())}
	}
	if r.Hi() > 1.0 {
		return &InvalidRulesError{Field: field, Message: fmt.Sprintf("upper bound %.2f exceeds 1.0", r.Hi())}
	}
	return nil
}

// toSnake converts a Go field name such as MaxBulletsPerRole to max_bullets_per_role.
func toSnake(name string) string {
	var sb strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				sb.WriteByte('_')
			}
			sb.WriteRune(r - 'A' + 'a')
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
