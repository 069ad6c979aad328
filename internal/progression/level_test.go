package progression

import (
	"errors"
	"math"
	"testing"

	"github.com/salesarmbiz-Dev/aimacademy/internal/domain"
)

func TestRequirement(t *testing.T) {
	tests := []struct {
		level int
		want  int
	}{
		{1, 100},
		{2, 250},
		{3, 400},
		{10, 1450},
		{99, 14800},
		{0, 100},
	}
	for _, tt := range tests {
		if got := Requirement(tt.level); got != tt.want {
			t.Errorf("Requirement(%d) = %d, want %d", tt.level, got, tt.want)
		}
	}
	if Requirement(MaxLevel) != capRequirement {
		t.Errorf("Requirement(MaxLevel) = %d, want cap", Requirement(MaxLevel))
	}
}

func TestComputeLevel(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		level     int
		current   int
		next      int
		progress  float64
		wantTitle string
	}{
		{"zero", 0, 1, 0, 100, 0, "Prompt Rookie"},
		{"negative", -50, 1, 0, 100, 0, "Prompt Rookie"},
		{"half way", 50, 1, 50, 100, 50, "Prompt Rookie"},
		{"exact threshold", 100, 2, 0, 250, 0, "Prompt Rookie"},
		{"into level 3", 400, 3, 50, 400, 12.5, "Prompt Rookie"},
		{"level 6", XPToReach(6), 6, 0, Requirement(6), 0, "Prompt Apprentice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeLevel(tt.total)
			if got.Level != tt.level || got.XPForCurrent != tt.current || got.XPForNext != tt.next {
				t.Errorf("ComputeLevel(%d) = %+v, want level %d (%d/%d)", tt.total, got, tt.level, tt.current, tt.next)
			}
			if got.ProgressPercent != tt.progress {
				t.Errorf("ProgressPercent = %v, want %v", got.ProgressPercent, tt.progress)
			}
			if got.Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", got.Title, tt.wantTitle)
			}
		})
	}
}

func TestComputeLevel_Monotonic(t *testing.T) {
	prev := ComputeLevel(0).Level
	for xp := 0; xp <= 50_000; xp += 37 {
		got := ComputeLevel(xp).Level
		if got < 1 {
			t.Fatalf("ComputeLevel(%d).Level = %d, want >= 1", xp, got)
		}
		if got < prev {
			t.Fatalf("level decreased from %d to %d at %d xp", prev, got, xp)
		}
		prev = got
	}
}

func TestComputeLevel_Cap(t *testing.T) {
	for _, total := range []int{XPToReach(MaxLevel), XPToReach(MaxLevel) + 1, math.MaxInt32, math.MaxInt} {
		got := ComputeLevel(total)
		if got.Level != MaxLevel {
			t.Errorf("ComputeLevel(%d).Level = %d, want %d", total, got.Level, MaxLevel)
		}
		if got.XPForNext != 0 || got.ProgressPercent != 0 {
			t.Errorf("cap view = %+v, want next 0 and progress 0", got)
		}
		if math.IsNaN(got.ProgressPercent) {
			t.Error("ProgressPercent is NaN")
		}
	}
}

func TestProgressPercent(t *testing.T) {
	tests := []struct {
		current, next int
		want          float64
	}{
		{0, 0, 0},
		{10, 0, 0},
		{10, -5, 0},
		{25, 100, 25},
		{150, 100, 100},
	}
	for _, tt := range tests {
		if got := ProgressPercent(tt.current, tt.next); got != tt.want {
			t.Errorf("ProgressPercent(%d, %d) = %v, want %v", tt.current, tt.next, got, tt.want)
		}
	}
}

func TestTitle_Monotonic(t *testing.T) {
	rank := make(map[string]int, len(titleBuckets))
	for i, b := range titleBuckets {
		rank[b.title] = i
	}
	prev := 0
	for level := 1; level <= MaxLevel; level++ {
		r, ok := rank[Title(level)]
		if !ok {
			t.Fatalf("Title(%d) = %q is not a known title", level, Title(level))
		}
		if r < prev {
			t.Fatalf("title rank dropped at level %d", level)
		}
		prev = r
	}
	if Title(MaxLevel) != "Prompt Legend" {
		t.Errorf("Title(MaxLevel) = %q", Title(MaxLevel))
	}
}

func TestLedger(t *testing.T) {
	l := NewLedger()

	if total, err := l.Credit(domain.PoolPromptLab, 70); err != nil || total != 70 {
		t.Fatalf("Credit() = %d, %v", total, err)
	}
	if total, _ := l.Credit(domain.PoolPromptLab, 30); total != 100 {
		t.Errorf("pool total = %d, want 100", total)
	}
	l.Credit(domain.PoolDebugger, 45)

	if l.Total() != 145 {
		t.Errorf("Total() = %d, want 145", l.Total())
	}
	if l.Pool(domain.PoolAchievements) != 0 {
		t.Error("unknown pool should be 0")
	}
	if names := l.Pools(); len(names) != 2 || names[0] != domain.PoolDebugger {
		t.Errorf("Pools() = %v", names)
	}

	if _, err := l.Credit("", 5); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("Credit(no pool) error = %v", err)
	}
	if _, err := l.Credit(domain.PoolDebugger, -1); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("Credit(negative) error = %v", err)
	}
	if l.Pool(domain.PoolDebugger) != 45 {
		t.Error("rejected credit mutated the pool")
	}
}

func TestLedger_RejectsOverflow(t *testing.T) {
	l := NewLedger()
	l.Credit(domain.PoolPromptLab, 5000)
	before := ComputeLevel(l.Total()).Level

	tests := []struct {
		name   string
		pool   string
		amount int
	}{
		{"other pool", domain.PoolDebugger, math.MaxInt},
		{"same pool", domain.PoolPromptLab, math.MaxInt - 4999},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := l.Credit(tt.pool, tt.amount); !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("Credit(%d) error = %v, want ErrInvalidInput", tt.amount, err)
			}
			if l.Total() != 5000 {
				t.Errorf("Total() = %d after rejected credit, want 5000", l.Total())
			}
			if got := ComputeLevel(l.Total()).Level; got != before {
				t.Errorf("level = %d, want %d", got, before)
			}
		})
	}

	if _, err := l.Credit(domain.PoolDebugger, math.MaxInt-5000); err != nil {
		t.Fatalf("credit up to MaxInt: %v", err)
	}
	if l.Total() != math.MaxInt {
		t.Errorf("Total() = %d, want MaxInt", l.Total())
	}
}

func TestLedger_TotalSaturates(t *testing.T) {
	l := Ledger{domain.PoolPromptLab: math.MaxInt, domain.PoolDebugger: 10}
	if l.Total() != math.MaxInt {
		t.Errorf("Total() = %d, want MaxInt", l.Total())
	}
	if lvl := Stats(l).Level; lvl != MaxLevel {
		t.Errorf("Level = %d, want %d", lvl, MaxLevel)
	}
}

func TestStats(t *testing.T) {
	pools := map[string]int{
		domain.PoolPromptLab:    300,
		domain.PoolDebugger:     150,
		domain.PoolAchievements: 50,
	}
	stats := Stats(pools)

	if stats.TotalXP != 500 {
		t.Errorf("TotalXP = %d, want 500", stats.TotalXP)
	}
	// 100 + 250 consumed, 150 of 400 into level 3
	if stats.Level != 3 || stats.XPForCurrentLevel != 150 || stats.XPForNextLevel != 400 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.ProgressToNextLevel != 37.5 {
		t.Errorf("ProgressToNextLevel = %v, want 37.5", stats.ProgressToNextLevel)
	}

	stats.Pools[domain.PoolDebugger] = 0
	if pools[domain.PoolDebugger] != 150 {
		t.Error("Stats() must not alias the input pools")
	}

	empty := Stats(nil)
	if empty.Level != 1 || empty.TotalXP != 0 || empty.Pools == nil {
		t.Errorf("Stats(nil) = %+v", empty)
	}
}
