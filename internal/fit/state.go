package fit

import (
	"math"
	"sort"

	"github.com/jonathan/resume-onepage/internal/types"
)

// scaleStep is the decrement applied per typography step, in hundredths.
const scaleStep = 2

// state wraps the CompressionState of one resolution together with the
// per-experience floors it must respect.
type state struct {
	doc    *types.ResolvedDocument
	rules  types.ExportRules
	cs     *types.CompressionState
	floors map[string]int
}

// newState builds the identity state: every experience shows its leading
// min(override or maxBulletsPerRole, available) bullets, projects are capped
// at maxProjects and rendered in detail, leadership is visible and both
// scales are 1.0.
func newState(doc *types.ResolvedDocument) *state {
	rules := doc.Rules
	cs := &types.CompressionState{
		VisibleBullets:  make(map[string][]int, len(doc.Experiences)),
		ProjectCount:    min(len(doc.Projects), rules.MaxProjects),
		ShowLeadership:  true,
		LineHeightScale: 1.0,
		FontScale:       1.0,
	}
	floors := make(map[string]int, len(doc.Experiences))

	for _, exp := range doc.Experiences {
		limit := rules.MaxBulletsPerRole
		if exp.BulletCapOverride != nil {
			limit = *exp.BulletCapOverride
		}
		initial := max(min(limit, len(exp.Bullets)), 0)

		idx := make([]int, initial)
		for i := range idx {
			idx[i] = i
		}
		cs.VisibleBullets[exp.ID] = idx
		floors[exp.ID] = bulletFloor(exp, rules.MinBullets, initial)
	}
	cs.SyncCaps()

	return &state{doc: doc, rules: rules, cs: cs, floors: floors}
}

// bulletFloor is max(minBullets, pinned floor) clamped to the initial cap. A
// pinned experience keeps everything it starts with.
func bulletFloor(exp types.Experience, minBullets, initial int) int {
	if exp.Pinned {
		return initial
	}
	return min(max(minBullets, 0), initial)
}

// bulletCandidate is an experience that can lose one more bullet.
type bulletCandidate struct {
	order   int
	exp     types.Experience
	excess  int
	victim  int // bullet index to remove
	impact  int // impact of the victim
	visible []int
}

// lowestImpactBullet returns the position in visible of the bullet with the
// lowest impact score, preferring the highest bullet index on ties.
func lowestImpactBullet(exp types.Experience, visible []int) (pos int, impact int) {
	pos = -1
	for i, bi := range visible {
		score := exp.Bullets[bi].Impact()
		if pos == -1 || score < impact || (score == impact && bi > visible[pos]) {
			pos, impact = i, score
		}
	}
	return pos, impact
}

// nextBulletCandidate picks the unpinned experience with the most visible
// bullets above its floor. Ties go to the experience whose removable bullet
// has the lower impact, then to source order.
func (s *state) nextBulletCandidate() (bulletCandidate, bool) {
	var candidates []bulletCandidate
	for i, exp := range s.doc.Experiences {
		if exp.Pinned {
			continue
		}
		visible := s.cs.VisibleBullets[exp.ID]
		excess := len(visible) - s.floors[exp.ID]
		if excess <= 0 {
			continue
		}
		pos, impact := lowestImpactBullet(exp, visible)
		candidates = append(candidates, bulletCandidate{
			order:   i,
			exp:     exp,
			excess:  excess,
			victim:  pos,
			impact:  impact,
			visible: visible,
		})
	}
	if len(candidates) == 0 {
		return bulletCandidate{}, false
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		ca, cb := candidates[a], candidates[b]
		if ca.excess != cb.excess {
			return ca.excess > cb.excess
		}
		if ca.impact != cb.impact {
			return ca.impact < cb.impact
		}
		return ca.order < cb.order
	})
	return candidates[0], true
}

// reduceBullet removes one bullet from the best candidate. It reports false
// when every experience is at its floor.
func (s *state) reduceBullet() (types.Lever, bool) {
	c, ok := s.nextBulletCandidate()
	if !ok {
		return types.Lever{}, false
	}

	removed := c.visible[c.victim]
	next := make([]int, 0, len(c.visible)-1)
	next = append(next, c.visible[:c.victim]...)
	next = append(next, c.visible[c.victim+1:]...)
	s.cs.VisibleBullets[c.exp.ID] = next
	s.cs.SyncCaps()

	target := c.exp.Company
	if target == "" {
		target = c.exp.ID
	}
	return types.Lever{
		Kind:   types.LeverBulletReduction,
		Target: target,
		Value:  float64(len(next)),
		Detail: c.exp.Bullets[removed].ID,
	}, true
}

func (s *state) compactProjects() (types.Lever, bool) {
	if s.cs.ProjectsCompact || s.cs.ProjectCount == 0 {
		return types.Lever{}, false
	}
	s.cs.ProjectsCompact = true
	return types.Lever{Kind: types.LeverCompactProjects}, true
}

func (s *state) reduceProjects() (types.Lever, bool) {
	if s.cs.ProjectCount <= 1 {
		return types.Lever{}, false
	}
	s.cs.ProjectCount--
	return types.Lever{Kind: types.LeverProjectReduction, Value: float64(s.cs.ProjectCount)}, true
}

func (s *state) hideLeadership() (types.Lever, bool) {
	if !s.cs.ShowLeadership || len(s.doc.Leadership) == 0 {
		return types.Lever{}, false
	}
	s.cs.ShowLeadership = false
	return types.Lever{Kind: types.LeverHideLeadership}, true
}

func (s *state) stepLineHeight() (types.Lever, bool) {
	next, ok := stepDown(s.cs.LineHeightScale, s.rules.LineHeightRange.Lo())
	if !ok {
		return types.Lever{}, false
	}
	s.cs.LineHeightScale = next
	return types.Lever{Kind: types.LeverLineHeight, Value: next}, true
}

func (s *state) stepFontScale() (types.Lever, bool) {
	next, ok := stepDown(s.cs.FontScale, s.rules.FontScaleRange.Lo())
	if !ok {
		return types.Lever{}, false
	}
	s.cs.FontScale = next
	return types.Lever{Kind: types.LeverFontScale, Value: next}, true
}

// stepDown returns the next scale below current on the 0.98, 0.96, ... ladder,
// or false when that would fall below lo. Arithmetic is in hundredths.
func stepDown(current, lo float64) (float64, bool) {
	cur := int(math.Round(current * 100))
	floor := int(math.Ceil(lo*100 - 1e-9))
	next := cur - scaleStep
	if next < floor {
		return current, false
	}
	return float64(next) / 100, true
}

// totalBullets is the number of visible experience bullets.
func (s *state) totalBullets() int {
	n := 0
	for _, idx := range s.cs.VisibleBullets {
		n += len(idx)
	}
	return n
}
