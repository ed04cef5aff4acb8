package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/resume-onepage/internal/types"
)

// GetLoadout fetches a loadout by UUID or slug. Returns nil, nil when no row matches.
func (db *DB) GetLoadout(ctx context.Context, idOrSlug string) (*Loadout, error) {
	var l Loadout
	var rules []byte
	err := db.pool.QueryRow(ctx,
		`SELECT id, slug, name, template_id, export_rules, created_at
		 FROM loadouts
		 WHERE id::text = $1 OR slug = $1
		 LIMIT 1`,
		idOrSlug,
	).Scan(&l.ID, &l.Slug, &l.Name, &l.TemplateID, &rules, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get loadout: %w", err)
	}

	l.ExportRules, err = decodeExportRules(rules)
	if err != nil {
		return nil, fmt.Errorf("loadout %s: %w", l.Slug, err)
	}
	return &l, nil
}

// GetProfile fetches the single profile row. Returns an empty profile when unset.
func (db *DB) GetProfile(ctx context.Context) (*Profile, error) {
	var p Profile
	err := db.pool.QueryRow(ctx,
		`SELECT name, title, email, links FROM profile WHERE id = 1`,
	).Scan(&p.Name, &p.Title, &p.Email, &p.Links)
	if errors.Is(err, pgx.ErrNoRows) {
		return &Profile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &p, nil
}

// ListLoadoutItems returns the items of a loadout in render order.
func (db *DB) ListLoadoutItems(ctx context.Context, loadoutID string) ([]LoadoutItem, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT entity_type, entity_id::text, position, pinned, bullet_cap_override
		 FROM loadout_items
		 WHERE loadout_id = $1::uuid
		 ORDER BY position, entity_type, entity_id`,
		loadoutID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list loadout items: %w", err)
	}
	defer rows.Close()

	var items []LoadoutItem
	for rows.Next() {
		var it LoadoutItem
		if err := rows.Scan(&it.EntityType, &it.EntityID, &it.Position, &it.Pinned, &it.BulletCapOverride); err != nil {
			return nil, fmt.Errorf("failed to scan loadout item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating loadout items: %w", err)
	}
	return items, nil
}

// LoadDocument resolves a loadout and every entity it references into a
// ResolvedDocument. Returns nil, nil when the loadout does not exist.
func (db *DB) LoadDocument(ctx context.Context, idOrSlug string) (*types.ResolvedDocument, error) {
	loadout, err := db.GetLoadout(ctx, idOrSlug)
	if err != nil || loadout == nil {
		return nil, err
	}
	profile, err := db.GetProfile(ctx)
	if err != nil {
		return nil, err
	}
	items, err := db.ListLoadoutItems(ctx, loadout.ID.String())
	if err != nil {
		return nil, err
	}

	ids := idsByType(items)
	ents := entities{}
	if ents.experiences, err = db.fetchExperiences(ctx, ids[EntityExperience]); err != nil {
		return nil, err
	}
	if ents.projects, err = db.fetchProjects(ctx, ids[EntityProject]); err != nil {
		return nil, err
	}
	if ents.skills, err = db.fetchSkills(ctx, ids[EntitySkill]); err != nil {
		return nil, err
	}
	if ents.education, err = db.fetchEducation(ctx, ids[EntityEducation]); err != nil {
		return nil, err
	}
	if ents.certifications, err = db.fetchCertifications(ctx, ids[EntityCertification]); err != nil {
		return nil, err
	}
	if ents.leadership, err = db.fetchLeadership(ctx, ids[EntityLeadership]); err != nil {
		return nil, err
	}

	return assembleDocument(loadout, profile, items, ents), nil
}

// assembleDocument places entities in item order. Items pointing at rows that
// no longer exist are skipped. Skills are grouped by first appearance of their group.
func assembleDocument(l *Loadout, p *Profile, items []LoadoutItem, ents entities) *types.ResolvedDocument {
	doc := &types.ResolvedDocument{
		LoadoutID:  l.ID.String(),
		Name:       p.Name,
		Slug:       l.Slug,
		Title:      p.Title,
		Email:      p.Email,
		Links:      p.Links,
		TemplateID: l.TemplateID,
		Rules:      l.ExportRules,
	}

	groupIndex := map[string]int{}
	for _, it := range items {
		switch it.EntityType {
		case EntityExperience:
			exp, ok := ents.experiences[it.EntityID]
			if !ok {
				continue
			}
			exp.Pinned = it.Pinned
			exp.BulletCapOverride = it.BulletCapOverride
			doc.Experiences = append(doc.Experiences, exp)
		case EntityProject:
			if proj, ok := ents.projects[it.EntityID]; ok {
				proj.Pinned = it.Pinned
				doc.Projects = append(doc.Projects, proj)
			}
		case EntitySkill:
			row, ok := ents.skills[it.EntityID]
			if !ok {
				continue
			}
			i, seen := groupIndex[row.Group]
			if !seen {
				i = len(doc.SkillGroups)
				groupIndex[row.Group] = i
				doc.SkillGroups = append(doc.SkillGroups, types.SkillGroup{Group: row.Group})
			}
			doc.SkillGroups[i].Skills = append(doc.SkillGroups[i].Skills, row.Skill)
		case EntityEducation:
			if ed, ok := ents.education[it.EntityID]; ok {
				doc.Education = append(doc.Education, ed)
			}
		case EntityCertification:
			if c, ok := ents.certifications[it.EntityID]; ok {
				doc.Certifications = append(doc.Certifications, c)
			}
		case EntityLeadership:
			if ld, ok := ents.leadership[it.EntityID]; ok {
				doc.Leadership = append(doc.Leadership, ld)
			}
		}
	}
	return doc
}

// decodeExportRules overlays stored JSON on the defaults so partially
// configured loadouts keep sensible bounds.
func decodeExportRules(raw []byte) (types.ExportRules, error) {
	rules := types.DefaultExportRules()
	if len(raw) == 0 {
		return rules, nil
	}
	if err := json.Unmarshal(raw, &rules); err != nil {
		return rules, fmt.Errorf("failed to decode export rules: %w", err)
	}
	return rules, nil
}

func idsByType(items []LoadoutItem) map[string][]string {
	out := make(map[string][]string)
	for _, it := range items {
		out[it.EntityType] = append(out[it.EntityType], it.EntityID)
	}
	return out
}

func (db *DB) fetchExperiences(ctx context.Context, ids []string) (map[string]types.Experience, error) {
	out := make(map[string]types.Experience, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := db.pool.Query(ctx,
		`SELECT id::text, role, company, start_date, end_date, location
		 FROM experiences WHERE id = ANY($1::uuid[])`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch experiences: %w", err)
	}
	for rows.Next() {
		var e types.Experience
		if err := rows.Scan(&e.ID, &e.Role, &e.Company, &e.StartDate, &e.EndDate, &e.Location); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan experience: %w", err)
		}
		out[e.ID] = e
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating experiences: %w", err)
	}

	bulletRows, err := db.pool.Query(ctx,
		`SELECT id::text, experience_id::text, text, impact_score, metric
		 FROM bullets WHERE experience_id = ANY($1::uuid[])
		 ORDER BY experience_id, position, id`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bullets: %w", err)
	}
	defer bulletRows.Close()

	for bulletRows.Next() {
		var b types.Bullet
		var expID string
		if err := bulletRows.Scan(&b.ID, &expID, &b.Text, &b.ImpactScore, &b.Metric); err != nil {
			return nil, fmt.Errorf("failed to scan bullet: %w", err)
		}
		if e, ok := out[expID]; ok {
			e.Bullets = append(e.Bullets, b)
			out[expID] = e
		}
	}
	if err := bulletRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bullets: %w", err)
	}
	return out, nil
}

func (db *DB) fetchProjects(ctx context.Context, ids []string) (map[string]types.Project, error) {
	return collect(ctx, db, ids,
		`SELECT id::text, title, pitch, tech_stack, github_url FROM projects WHERE id = ANY($1::uuid[])`,
		func(row pgx.Rows) (string, types.Project, error) {
			var p types.Project
			err := row.Scan(&p.ID, &p.Title, &p.Pitch, &p.TechStack, &p.GithubURL)
			return p.ID, p, err
		})
}

func (db *DB) fetchSkills(ctx context.Context, ids []string) (map[string]skillRow, error) {
	return collect(ctx, db, ids,
		`SELECT id::text, name, skill_group, proficiency FROM skills WHERE id = ANY($1::uuid[])`,
		func(row pgx.Rows) (string, skillRow, error) {
			var s skillRow
			err := row.Scan(&s.Skill.ID, &s.Skill.Name, &s.Group, &s.Skill.Proficiency)
			return s.Skill.ID, s, err
		})
}

func (db *DB) fetchEducation(ctx context.Context, ids []string) (map[string]types.Education, error) {
	return collect(ctx, db, ids,
		`SELECT id::text, school, degree, field, start_date, end_date, gpa, honors
		 FROM education WHERE id = ANY($1::uuid[])`,
		func(row pgx.Rows) (string, types.Education, error) {
			var e types.Education
			err := row.Scan(&e.ID, &e.School, &e.Degree, &e.Field, &e.StartDate, &e.EndDate, &e.GPA, &e.Honors)
			return e.ID, e, err
		})
}

func (db *DB) fetchCertifications(ctx context.Context, ids []string) (map[string]types.Certification, error) {
	return collect(ctx, db, ids,
		`SELECT id::text, name, issuer, issued, expires FROM certifications WHERE id = ANY($1::uuid[])`,
		func(row pgx.Rows) (string, types.Certification, error) {
			var c types.Certification
			err := row.Scan(&c.ID, &c.Name, &c.Issuer, &c.Date, &c.Expires)
			return c.ID, c, err
		})
}

func (db *DB) fetchLeadership(ctx context.Context, ids []string) (map[string]types.Leadership, error) {
	return collect(ctx, db, ids,
		`SELECT id::text, org, role, start_date, end_date, bullets FROM leadership WHERE id = ANY($1::uuid[])`,
		func(row pgx.Rows) (string, types.Leadership, error) {
			var l types.Leadership
			err := row.Scan(&l.ID, &l.Org, &l.Role, &l.StartDate, &l.EndDate, &l.Bullets)
			return l.ID, l, err
		})
}

// collect runs a bulk id query and keys each scanned row by its id.
func collect[T any](ctx context.Context, db *DB, ids []string, query string, scan func(pgx.Rows) (string, T, error)) (map[string]T, error) {
	out := make(map[string]T, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := db.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		id, v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		out[id] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entities: %w", err)
	}
	return out, nil
}
