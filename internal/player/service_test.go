package player

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/salesarmbiz-Dev/aimacademy/internal/badge"
	"github.com/salesarmbiz-Dev/aimacademy/internal/domain"
	"github.com/salesarmbiz-Dev/aimacademy/internal/transcript"
)

type challengeMap map[string]domain.Challenge

func (m challengeMap) Get(id string) (domain.Challenge, error) {
	ch, ok := m[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrChallengeNotFound, id)
	}
	return ch, nil
}

type badgeList []domain.BadgeDefinition

func (l badgeList) Definitions() []domain.BadgeDefinition { return l }

type captureSink struct {
	mu  sync.Mutex
	got []*transcript.Transcript
}

func (c *captureSink) Publish(_ context.Context, t *transcript.Transcript) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, t)
	return nil
}

func mustBlock(t *testing.T, id string, bt domain.BlockType) domain.PromptBlock {
	t.Helper()
	b, err := domain.NewBlock(id, bt, "content for "+id)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

// passing scores 92 with four blocks
func passingBlocks(t *testing.T) []domain.PromptBlock {
	return []domain.PromptBlock{
		mustBlock(t, "r", domain.BlockRole),
		mustBlock(t, "t", domain.BlockTask),
		mustBlock(t, "c", domain.BlockContext),
		mustBlock(t, "n", domain.BlockTone),
	}
}

func failingBlocks(t *testing.T) []domain.PromptBlock {
	return []domain.PromptBlock{mustBlock(t, "t", domain.BlockTask)}
}

func testChallenge(t *testing.T) domain.Challenge {
	t.Helper()
	ch, err := domain.NewMinimizeChallenge(domain.ChallengeSpec{
		ID:          "lean",
		Title:       "Lean",
		TargetScore: 70,
		MaxAttempts: 3,
		Rewards:     domain.Rewards{BaseXP: 50},
	}, 4, 10)
	if err != nil {
		t.Fatal(err)
	}
	return ch
}

func testBadges() badgeList {
	return badgeList{
		{ID: "first", Name: "First", Requirement: "1 challenge", XPReward: 45, Metric: badge.MetricChallengesCompleted, Target: 1},
		{ID: "level-2", Name: "Level 2", Requirement: "reach level 2", XPReward: 10, Metric: badge.MetricLevel, Target: 2},
		{ID: "perfect", Name: "Perfect", Requirement: "3-star debugger level", XPReward: 20, Metric: badge.MetricPerfectLevels, Target: 1},
	}
}

type fixture struct {
	svc    *Service
	store  *JSONStore
	events []domain.Event
	sink   *captureSink
	now    time.Time
	mu     sync.Mutex
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := NewJSONStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	f := &fixture{store: store, sink: &captureSink{}, now: time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)}
	f.svc = NewService(store, challengeMap{"lean": testChallenge(t)}, testBadges())
	f.svc.SetClock(func() time.Time {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.now
	})
	f.svc.SetTranscriptSink(f.sink)

	d := domain.NewEventDispatcher()
	d.SubscribeAll(func(e domain.Event) {
		f.mu.Lock()
		f.events = append(f.events, e)
		f.mu.Unlock()
	})
	f.svc.SetDispatcher(d)
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func (f *fixture) eventTypes() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[string]int)
	for _, e := range f.events {
		counts[e.EventType()]++
	}
	return counts
}

func TestSubmitChallenge_FirstPassCreditsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.svc.SubmitChallenge(ctx, "ada", "lean", passingBlocks(t), 30)
	if err != nil {
		t.Fatalf("SubmitChallenge() error = %v", err)
	}
	if !out.Result.Passed || out.Result.Score != 92 || out.Result.Stars != 3 {
		t.Fatalf("result = %+v", out.Result)
	}
	if out.XPCredited != 60 || !out.FirstCompletion || out.AttemptsLeft != 2 {
		t.Errorf("outcome = %+v, want 60 xp, first completion, 2 left", out)
	}

	// first (45) lifts total to 105, level 2 unlocks level-2 (10)
	if len(out.Unlocked) != 2 {
		t.Fatalf("unlocked = %+v, want first and level-2", out.Unlocked)
	}
	if out.Stats.TotalXP != 115 || out.Stats.Level != 2 {
		t.Errorf("stats = %+v, want 115 xp at level 2", out.Stats)
	}

	f.advance(time.Minute)
	again, err := f.svc.SubmitChallenge(ctx, "ada", "lean", passingBlocks(t), 30)
	if err != nil {
		t.Fatal(err)
	}
	if again.XPCredited != 0 || again.FirstCompletion || len(again.Unlocked) != 0 {
		t.Errorf("second pass = %+v, want no credit", again)
	}
	if again.Result.XPEarned != 60 {
		t.Errorf("result XPEarned = %d, the evaluator still reports the reward", again.Result.XPEarned)
	}

	rec, _ := f.svc.Player(ctx, "ada")
	if rec.XPPools[domain.PoolPromptLab] != 60 || rec.XPPools[domain.PoolAchievements] != 55 {
		t.Errorf("pools = %v", rec.XPPools)
	}
	if cr := rec.Challenges["lean"]; cr.Attempts != 2 || !cr.Completed || cr.BestStars != 3 {
		t.Errorf("challenge record = %+v", cr)
	}
	if rec.BlockUsage[domain.BlockRole] != 2 {
		t.Errorf("ROLE usage = %d, want 2", rec.BlockUsage[domain.BlockRole])
	}

	types := f.eventTypes()
	if types[domain.EventLevelUp] != 1 || types[domain.EventBadgeUnlocked] != 2 || types[domain.EventChallengeEvaluated] != 2 {
		t.Errorf("events = %v", types)
	}

	f.svc.Wait()
	if len(f.sink.got) != 2 {
		t.Fatalf("transcripts = %d, want 2", len(f.sink.got))
	}
	xpByAttempt := map[int]int{}
	for _, tr := range f.sink.got {
		xpByAttempt[tr.Attempt] = tr.XPEarned
	}
	if xpByAttempt[1] != 60 || xpByAttempt[2] != 0 {
		t.Errorf("transcript xp by attempt = %v, want only the first pass credited", xpByAttempt)
	}
}

func TestSubmitChallenge_FailureAndExhaustion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		out, err := f.svc.SubmitChallenge(ctx, "bob", "lean", failingBlocks(t), 10)
		if err != nil {
			t.Fatalf("attempt %d error = %v", i, err)
		}
		if out.Result.Passed || out.Result.XPEarned != 0 || out.XPCredited != 0 {
			t.Errorf("attempt %d = %+v, want failed without xp", i, out.Result)
		}
		if out.Result.Attempt != i {
			t.Errorf("Attempt = %d, want %d", out.Result.Attempt, i)
		}
	}

	_, err := f.svc.SubmitChallenge(ctx, "bob", "lean", passingBlocks(t), 10)
	var exhausted *domain.AttemptsExhaustedError
	if !errors.As(err, &exhausted) || !errors.Is(err, domain.ErrAttemptsExhausted) {
		t.Fatalf("4th attempt error = %v, want AttemptsExhaustedError", err)
	}
	if exhausted.Attempt != 4 || exhausted.MaxAttempts != 3 {
		t.Errorf("exhausted = %+v", exhausted)
	}

	rec, _ := f.svc.Player(ctx, "bob")
	if rec.Challenges["lean"].Attempts != 3 || rec.TotalXP() != 0 {
		t.Errorf("exhausted attempt mutated the record: %+v", rec.Challenges["lean"])
	}
}

func TestSubmitChallenge_UnknownChallenge(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.SubmitChallenge(context.Background(), "ada", "nope", nil, 0); !errors.Is(err, domain.ErrChallengeNotFound) {
		t.Errorf("error = %v, want ErrChallengeNotFound", err)
	}
	if _, err := f.svc.Player(context.Background(), "ada"); !errors.Is(err, domain.ErrPlayerNotFound) {
		t.Error("unknown challenge must not create a player")
	}
}

func TestSubmitDebuggerRun_KeepsBest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	runs := []struct {
		progress   domain.LevelProgress
		newBest    bool
		xpCredited int
	}{
		{domain.LevelProgress{Level: 1, Score: 48, Stars: 1, XPEarned: 96, TimeSeconds: 140, Completed: true}, true, 96},
		{domain.LevelProgress{Level: 1, Score: 30, Stars: 1, XPEarned: 60, TimeSeconds: 90, Completed: true}, false, 0},
		{domain.LevelProgress{Level: 1, Score: 48, Stars: 1, XPEarned: 96, TimeSeconds: 100, Completed: true}, true, 0},
		{domain.LevelProgress{Level: 1, Score: 100, Stars: 3, XPEarned: 200, TimeSeconds: 80, Completed: true}, true, 104},
	}

	for i, r := range runs {
		p := r.progress
		out, err := f.svc.SubmitDebuggerRun(ctx, "cy", &p)
		if err != nil {
			t.Fatalf("run %d error = %v", i, err)
		}
		if out.NewBest != r.newBest || out.XPCredited != r.xpCredited {
			t.Errorf("run %d: NewBest = %v XPCredited = %d, want %v/%d", i, out.NewBest, out.XPCredited, r.newBest, r.xpCredited)
		}
	}

	levels, err := f.svc.LevelProgress(ctx, "cy")
	if err != nil {
		t.Fatal(err)
	}
	if len(levels) != 1 || levels[0].Score != 100 {
		t.Errorf("levels = %+v, want best score 100", levels)
	}

	rec, _ := f.svc.Player(ctx, "cy")
	if rec.XPPools[domain.PoolDebugger] != 200 {
		t.Errorf("debugger pool = %d, want 200", rec.XPPools[domain.PoolDebugger])
	}
	if _, ok := rec.Badges["perfect"]; !ok {
		t.Error("perfect badge should unlock on the 3-star run")
	}

	if _, err := f.svc.SubmitDebuggerRun(ctx, "cy", &domain.LevelProgress{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("level 0 error = %v, want ErrInvalidInput", err)
	}
}

func TestRecordDebuggerRun(t *testing.T) {
	f := newFixture(t)
	p := &domain.LevelProgress{Level: 2, Score: 60, Stars: 2, XPEarned: 90, Completed: true}
	if err := f.svc.RecordDebuggerRun(context.Background(), "dee", p); err != nil {
		t.Fatal(err)
	}
	stats, err := f.svc.Stats(context.Background(), "dee")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Pools[domain.PoolDebugger] != 90 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestAddXP(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.AddXP(ctx, "eve", "bonus", 40); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.AddXP(ctx, "eve", "bonus", 0); err != nil {
		t.Errorf("AddXP(0) error = %v", err)
	}

	for _, tc := range []struct {
		player, pool string
		amount       int
	}{
		{"", "bonus", 1},
		{"eve", "", 1},
		{"eve", "bonus", -1},
	} {
		if err := f.svc.AddXP(ctx, tc.player, tc.pool, tc.amount); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("AddXP(%q, %q, %d) error = %v, want ErrInvalidInput", tc.player, tc.pool, tc.amount, err)
		}
	}

	stats, _ := f.svc.Stats(ctx, "eve")
	if stats.TotalXP != 40 || stats.Level != 1 {
		t.Errorf("stats = %+v", stats)
	}

	history, err := f.svc.History(ctx, "eve", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].Amount != 40 || history[0].Pool != "bonus" {
		t.Errorf("history = %+v, want the single non-zero credit", history)
	}
}

func TestAddXP_OverflowKeepsLevel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.AddXP(ctx, "gil", domain.PoolPromptLab, 5000); err != nil {
		t.Fatal(err)
	}
	before, _ := f.svc.Stats(ctx, "gil")

	err := f.svc.AddXP(ctx, "gil", domain.PoolDebugger, math.MaxInt)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("AddXP(MaxInt) error = %v, want ErrInvalidInput", err)
	}

	after, _ := f.svc.Stats(ctx, "gil")
	if after.TotalXP != before.TotalXP || after.Level != before.Level {
		t.Errorf("stats after rejected credit = %+v, want %+v", after, before)
	}
	if after.TotalXP < 0 {
		t.Errorf("TotalXP = %d, must stay non-negative", after.TotalXP)
	}
}

func TestAddXP_ConcurrentCreditsAreNotLost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f.svc.AddXP(ctx, "fay", "pool", 3); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	rec, _ := f.svc.Player(ctx, "fay")
	if rec.XPPools["pool"] != 60 {
		t.Errorf("pool = %d, want 60", rec.XPPools["pool"])
	}
}

func TestBadges_StickyAcrossReads(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Badges(ctx, "nobody"); !errors.Is(err, domain.ErrPlayerNotFound) {
		t.Errorf("Badges(unknown) error = %v", err)
	}

	f.svc.SubmitChallenge(ctx, "gus", "lean", passingBlocks(t), 30)
	first, err := f.svc.Badges(ctx, "gus")
	if err != nil {
		t.Fatal(err)
	}

	f.advance(48 * time.Hour)
	second, _ := f.svc.Badges(ctx, "gus")

	for i := range first {
		if first[i].Earned != second[i].Earned {
			t.Errorf("%s earned flag changed", first[i].ID)
		}
		if first[i].Earned && !first[i].EarnedAt.Equal(*second[i].EarnedAt) {
			t.Errorf("%s timestamp moved from %v to %v", first[i].ID, first[i].EarnedAt, second[i].EarnedAt)
		}
	}
	if second[2].Earned || second[2].Progress == nil || second[2].Progress.Target != 1 {
		t.Errorf("perfect = %+v, want locked 0/1", second[2])
	}
}

func TestBadges_NewDefinitionUnlocksOnRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.AddXP(ctx, "hal", "bonus", 10)

	f.svc.badges = append(testBadges(), domain.BadgeDefinition{
		ID: "any-xp", Name: "Any XP", XPReward: 5, Metric: badge.MetricTotalXP, Target: 1,
	})

	views, err := f.svc.Badges(ctx, "hal")
	if err != nil {
		t.Fatal(err)
	}
	if !views[3].Earned {
		t.Fatalf("any-xp = %+v, want earned", views[3])
	}

	rec, _ := f.svc.Player(ctx, "hal")
	if rec.XPPools[domain.PoolAchievements] != 5 {
		t.Errorf("achievements = %d, want 5", rec.XPPools[domain.PoolAchievements])
	}

	f.svc.Badges(ctx, "hal")
	rec, _ = f.svc.Player(ctx, "hal")
	if rec.XPPools[domain.PoolAchievements] != 5 {
		t.Error("badge XP credited twice")
	}
}

func TestStreakAcrossDays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for day := 0; day < 3; day++ {
		p := &domain.LevelProgress{Level: 1, Score: 10, XPEarned: 5}
		f.svc.SubmitDebuggerRun(ctx, "ivy", p)
		f.advance(24 * time.Hour)
	}
	rec, _ := f.svc.Player(ctx, "ivy")
	if rec.Streak.Current != 3 || rec.Streak.Longest != 3 {
		t.Errorf("streak = %+v, want 3/3", rec.Streak)
	}
}
