package player

import (
	"github.com/salesarmbiz-Dev/aimacademy/internal/domain"
	"github.com/salesarmbiz-Dev/aimacademy/internal/progression"
)

// Snapshot derives the cumulative state badge rules read
func Snapshot(rec *domain.PlayerRecord) domain.PlayerSnapshot {
	total := rec.TotalXP()
	snap := domain.PlayerSnapshot{
		PlayerID:            rec.ID,
		TotalXP:             total,
		Level:               progression.ComputeLevel(total).Level,
		XPByPool:            make(map[string]int, len(rec.XPPools)),
		CompletedChallenges: make(map[string]bool),
		ChallengeBadges:     make(map[string]bool, len(rec.ChallengeBadges)),
		BlockUsage:          make(map[domain.BlockType]int, len(rec.BlockUsage)),
		CurrentStreak:       rec.Streak.Current,
		LongestStreak:       rec.Streak.Longest,
	}

	for pool, xp := range rec.XPPools {
		snap.XPByPool[pool] = xp
	}
	for id, cr := range rec.Challenges {
		if !cr.Completed {
			continue
		}
		snap.ChallengesCompleted++
		snap.CompletedChallenges[id] = true
		if cr.BestStars == 3 {
			snap.ThreeStarChallenges++
		}
	}
	for id, ok := range rec.ChallengeBadges {
		if ok {
			snap.ChallengeBadges[id] = true
		}
	}
	for _, lp := range rec.Levels {
		if lp.Completed {
			snap.LevelsCompleted++
		}
		if lp.Stars == 3 {
			snap.PerfectLevels++
		}
	}
	for bt, n := range rec.BlockUsage {
		snap.BlockUsage[bt] = n
	}
	return snap
}
