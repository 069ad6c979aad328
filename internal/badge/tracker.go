// Package badge evaluates achievement definitions against player state.
//
// Earned badges are sticky: a badge carrying a timestamp in the prior state
// is reported unchanged no matter what the snapshot says, and an unlock is
// reported only on the evaluation that performs the Locked -> Earned edge.
package badge

import (
	"time"

	"github.com/salesarmbiz-Dev/aimacademy/internal/domain"
)

// Evaluate returns one view per definition, in definition order, plus the
// badges that transitioned to earned during this call.
func Evaluate(defs []domain.BadgeDefinition, snap domain.PlayerSnapshot, prior map[string]domain.BadgeState, now time.Time) ([]domain.BadgeView, []domain.BadgeUnlock) {
	views := make([]domain.BadgeView, 0, len(defs))
	var unlocks []domain.BadgeUnlock

	for _, def := range defs {
		next := Transition(def, snap, prior[def.ID], now)

		if earned, ok := next.(domain.BadgeEarned); ok {
			if _, was := prior[def.ID].(domain.BadgeEarned); !was {
				unlocks = append(unlocks, domain.BadgeUnlock{
					BadgeID:  def.ID,
					Name:     def.Name,
					XPReward: def.XPReward,
					EarnedAt: earned.At,
				})
			}
		}
		views = append(views, View(def, next))
	}
	return views, unlocks
}

// Transition applies the one-way ratchet to a single badge. An Earned prior
// state is returned as is; otherwise the rule is re-evaluated.
func Transition(def domain.BadgeDefinition, snap domain.PlayerSnapshot, prior domain.BadgeState, now time.Time) domain.BadgeState {
	if earned, ok := prior.(domain.BadgeEarned); ok {
		return earned
	}

	if def.Predicate != nil {
		if def.Predicate(snap) {
			return domain.BadgeEarned{At: now}
		}
		return domain.BadgeLocked{}
	}

	metric, err := ResolveMetric(def.Metric)
	if err != nil || def.Target <= 0 {
		return domain.BadgeLocked{}
	}

	current := max(metric(snap), 0)
	if current >= def.Target {
		return domain.BadgeEarned{At: now}
	}
	return domain.BadgeLocked{Progress: &domain.Progress{Current: current, Target: def.Target}}
}

// View renders a state for the UI
func View(def domain.BadgeDefinition, state domain.BadgeState) domain.BadgeView {
	v := domain.BadgeView{
		ID:          def.ID,
		Name:        def.Name,
		Requirement: def.Requirement,
		XPReward:    def.XPReward,
	}
	switch s := state.(type) {
	case domain.BadgeEarned:
		at := s.At
		v.Earned = true
		v.EarnedAt = &at
	case domain.BadgeLocked:
		v.Progress = s.Progress
	}
	return v
}

// PriorFromEarned builds the prior-state map from persisted earn timestamps
func PriorFromEarned(earned map[string]time.Time) map[string]domain.BadgeState {
	prior := make(map[string]domain.BadgeState, len(earned))
	for id, at := range earned {
		prior[id] = domain.BadgeEarned{At: at}
	}
	return prior
}
