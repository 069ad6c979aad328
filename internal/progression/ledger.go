package progression

import (
	"fmt"
	"math"
	"sort"

	"github.com/salesarmbiz-Dev/aimacademy/internal/domain"
)

// Ledger is a set of independently accumulated XP pools keyed by source.
// The zero value is not usable; convert an existing map or call NewLedger.
type Ledger map[string]int

// NewLedger creates an empty ledger
func NewLedger() Ledger {
	return make(Ledger)
}

// Credit appends amount to pool and returns the new pool total. A credit that
// would push the ledger total past math.MaxInt is rejected and leaves the
// ledger unchanged, so the total never wraps negative.
func (l Ledger) Credit(pool string, amount int) (int, error) {
	if pool == "" {
		return 0, fmt.Errorf("%w: pool name is required", domain.ErrInvalidInput)
	}
	if amount < 0 {
		return 0, fmt.Errorf("%w: xp amount must not be negative", domain.ErrInvalidInput)
	}
	if amount > math.MaxInt-l.Total() {
		return 0, fmt.Errorf("%w: xp amount %d overflows the ledger total", domain.ErrInvalidInput, amount)
	}
	l[pool] += amount
	return l[pool], nil
}

// Pool returns a single pool total
func (l Ledger) Pool(name string) int {
	return l[name]
}

// Total sums every pool, saturating at math.MaxInt
func (l Ledger) Total() int {
	total := 0
	for _, xp := range l {
		if xp > math.MaxInt-total {
			return math.MaxInt
		}
		total += xp
	}
	return total
}

// Pools returns the pool names in sorted order
func (l Ledger) Pools() []string {
	names := make([]string, 0, len(l))
	for name := range l {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UserStats is the derived read view over a ledger. It is never persisted.
type UserStats struct {
	TotalXP             int            `json:"total_xp"`
	Level               int            `json:"level"`
	LevelTitle          string         `json:"level_title"`
	XPForCurrentLevel   int            `json:"xp_for_current_level"`
	XPForNextLevel      int            `json:"xp_for_next_level"`
	ProgressToNextLevel float64        `json:"progress_to_next_level"`
	Pools               map[string]int `json:"pools"`
}

// Stats projects pools onto the level curve. The input map is copied.
func Stats(pools map[string]int) UserStats {
	copied := make(map[string]int, len(pools))
	for k, v := range pools {
		copied[k] = v
	}
	total := Ledger(copied).Total()
	info := ComputeLevel(total)

	return UserStats{
		TotalXP:             total,
		Level:               info.Level,
		LevelTitle:          info.Title,
		XPForCurrentLevel:   info.XPForCurrent,
		XPForNextLevel:      info.XPForNext,
		ProgressToNextLevel: info.ProgressPercent,
		Pools:               copied,
	}
}
