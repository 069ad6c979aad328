package transcript

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/salesarmbiz-Dev/aimacademy/internal/domain"
	"github.com/salesarmbiz-Dev/aimacademy/internal/storage/local"
)

func block(id string, bt domain.BlockType, content string) domain.PromptBlock {
	b, err := domain.NewBlock(id, bt, content)
	if err != nil {
		panic(err)
	}
	return b
}

func fixture() (domain.Challenge, []domain.PromptBlock, *domain.ChallengeResult) {
	ch, err := domain.NewMaximizeChallenge(domain.ChallengeSpec{
		ID:          "max-1",
		Title:       "Max One",
		TargetScore: 80,
		MaxAttempts: 3,
		Rewards:     domain.Rewards{BaseXP: 40},
		StartingBlocks: []domain.PromptBlock{
			block("r", domain.BlockRole, "You are a tutor."),
			block("t", domain.BlockTask, "Explain fractions."),
			block("x", domain.BlockConstraint, "No jargon."),
		},
	})
	if err != nil {
		panic(err)
	}
	final := []domain.PromptBlock{
		block("r", domain.BlockRole, "You are a patient maths tutor."),
		block("t", domain.BlockTask, "Explain fractions."),
		block("f", domain.BlockFormat, "Three bullet points."),
	}
	result := &domain.ChallengeResult{
		ChallengeID: "max-1",
		Mode:        domain.ModeMaximize,
		Attempt:     2,
		Passed:      true,
		Score:       88,
		Stars:       2,
		XPEarned:    40,
		EvaluatedAt: time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC),
	}
	return ch, final, result
}

func TestDiff(t *testing.T) {
	ch, final, _ := fixture()
	changes := Diff(ch.Spec().StartingBlocks, final)

	want := []struct {
		kind ChangeKind
		id   string
	}{
		{ChangeRemoved, "x"},
		{ChangeEdited, "r"},
		{ChangeAdded, "f"},
	}
	if len(changes) != len(want) {
		t.Fatalf("Diff() = %+v, want %d changes", changes, len(want))
	}
	for i, w := range want {
		if changes[i].Kind != w.kind || changes[i].BlockID != w.id {
			t.Errorf("change %d = %s %s, want %s %s", i, changes[i].Kind, changes[i].BlockID, w.kind, w.id)
		}
	}
	if changes[1].Before != "You are a tutor." || changes[1].After != "You are a patient maths tutor." {
		t.Errorf("edit = %+v", changes[1])
	}

	if got := Diff(final, final); len(got) != 0 {
		t.Errorf("Diff(same) = %+v, want none", got)
	}
}

func TestSummarize(t *testing.T) {
	ch, final, result := fixture()
	tr := Summarize("p1", ch, final, result, result.XPEarned)

	if tr.PlayerID != "p1" || tr.ChallengeID != "max-1" || tr.Title != "Max One" {
		t.Errorf("unexpected header: %+v", tr)
	}
	if tr.Score != 88 || tr.Stars != 2 || !tr.Passed || tr.Attempt != 2 {
		t.Errorf("unexpected outcome: %+v", tr)
	}
	if !tr.CreatedAt.Equal(result.EvaluatedAt) {
		t.Errorf("CreatedAt = %v", tr.CreatedAt)
	}
	if tr.XPEarned != result.XPEarned {
		t.Errorf("XPEarned = %d, want %d", tr.XPEarned, result.XPEarned)
	}
	if repeat := Summarize("p1", ch, final, result, 0); repeat.XPEarned != 0 || !strings.Contains(repeat.Markdown(), "XP: 0") {
		t.Errorf("repeat pass transcript claims %d xp", repeat.XPEarned)
	}

	final[0].Content = "changed later"
	if tr.Blocks[0].Content == "changed later" {
		t.Error("transcript must copy blocks")
	}

	md := tr.Markdown()
	for _, want := range []string{"# Max One", "Score: 88", "passed, 2 stars", "removed CONSTRAINT `x`", "added FORMAT `f`"} {
		if !strings.Contains(md, want) {
			t.Errorf("Markdown() missing %q:\n%s", want, md)
		}
	}
}

type flakySink struct {
	mu       sync.Mutex
	failures int
	err      error
	got      []*Transcript
	calls    int
}

func (s *flakySink) Publish(_ context.Context, t *Transcript) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failures > 0 {
		s.failures--
		return s.err
	}
	s.got = append(s.got, t)
	return nil
}

func fastConfig() ResilientConfig {
	cfg := DefaultResilientConfig()
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = 5 * time.Millisecond
	return cfg
}

func TestResilientPublisher_RetriesTransientFailures(t *testing.T) {
	sink := &flakySink{failures: 2, err: errors.New("connection reset")}
	p := NewResilientPublisher(sink, fastConfig())

	ch, final, result := fixture()
	if err := p.Publish(context.Background(), Summarize("p1", ch, final, result, result.XPEarned)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if sink.calls != 3 || len(sink.got) != 1 {
		t.Errorf("calls = %d delivered = %d, want 3/1", sink.calls, len(sink.got))
	}
}

func TestResilientPublisher_PermanentFailureNotRetried(t *testing.T) {
	sink := &flakySink{failures: 5, err: ErrPermanent}
	p := NewResilientPublisher(sink, fastConfig())

	ch, final, result := fixture()
	err := p.Publish(context.Background(), Summarize("p1", ch, final, result, result.XPEarned))
	if !errors.Is(err, ErrPermanent) {
		t.Fatalf("Publish() error = %v, want ErrPermanent", err)
	}
	if sink.calls != 1 {
		t.Errorf("calls = %d, want 1", sink.calls)
	}
}

func TestLocalSink(t *testing.T) {
	store, err := local.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	sink := NewLocalSink(store)
	ctx := context.Background()

	ch, final, result := fixture()
	first := Summarize("p1", ch, final, result, result.XPEarned)
	result2 := *result
	result2.EvaluatedAt = result.EvaluatedAt.Add(time.Hour)
	second := Summarize("p1", ch, final, &result2, 0)

	for _, tr := range []*Transcript{second, first} {
		if err := sink.Publish(ctx, tr); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}

	got, err := sink.List("p1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != first.ID || got[1].ID != second.ID {
		t.Errorf("List() order wrong: %+v", got)
	}

	orphan := Summarize("", ch, final, result, 0)
	if err := sink.Publish(ctx, orphan); !errors.Is(err, ErrPermanent) {
		t.Errorf("Publish(no player) error = %v, want ErrPermanent", err)
	}
}

func TestFanout(t *testing.T) {
	ok := &flakySink{}
	bad := &flakySink{failures: 1, err: errors.New("down")}
	ch, final, result := fixture()

	err := Fanout{ok, bad}.Publish(context.Background(), Summarize("p1", ch, final, result, result.XPEarned))
	if err == nil {
		t.Fatal("Fanout should report the failing sink")
	}
	if len(ok.got) != 1 {
		t.Error("healthy sink should still receive the transcript")
	}
}
