package challenge

import (
	"fmt"
	"sort"
	"sync"

	"github.com/salesarmbiz-Dev/aimacademy/internal/domain"
)

// Pack is a named group of challenges loaded from one content file
type Pack struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Version     string             `json:"version,omitempty"`
	Description string             `json:"description,omitempty"`
	Challenges  []domain.Challenge `json:"-"`
}

// Registry provides access to challenges and packs
type Registry struct {
	loader     *Loader
	mu         sync.RWMutex
	packs      map[string]*Pack
	challenges map[string]domain.Challenge
	order      []string
}

// NewRegistry creates a new challenge registry
func NewRegistry(loader *Loader) *Registry {
	return &Registry{
		loader:     loader,
		packs:      make(map[string]*Pack),
		challenges: make(map[string]domain.Challenge),
	}
}

// Load loads all packs and challenges into memory
func (r *Registry) Load() error {
	packs, err := r.loader.LoadAllPacks()
	if err != nil {
		return fmt.Errorf("load packs: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.packs = make(map[string]*Pack, len(packs))
	r.challenges = make(map[string]domain.Challenge)
	r.order = nil

	for _, pack := range packs {
		if _, dup := r.packs[pack.ID]; dup {
			return fmt.Errorf("%w: duplicate pack id %q", domain.ErrInvalidChallenge, pack.ID)
		}
		r.packs[pack.ID] = pack

		for _, ch := range pack.Challenges {
			id := ch.Spec().ID
			if _, dup := r.challenges[id]; dup {
				return fmt.Errorf("%w: duplicate challenge id %q", domain.ErrInvalidChallenge, id)
			}
			r.challenges[id] = ch
			r.order = append(r.order, id)
		}
	}

	return nil
}

// Get returns a challenge by ID
func (r *Registry) Get(id string) (domain.Challenge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ch, ok := r.challenges[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrChallengeNotFound, id)
	}
	return ch, nil
}

// List returns all challenges in content order
func (r *Registry) List() []domain.Challenge {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Challenge, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.challenges[id])
	}
	return out
}

// ListByMode returns the challenges of one mode in content order
func (r *Registry) ListByMode(mode domain.ChallengeMode) []domain.Challenge {
	var out []domain.Challenge
	for _, ch := range r.List() {
		if ch.Mode() == mode {
			out = append(out, ch)
		}
	}
	return out
}

// ListPacks returns all packs sorted by ID
func (r *Registry) ListPacks() []*Pack {
	r.mu.RLock()
	defer r.mu.RUnlock()

	packs := make([]*Pack, 0, len(r.packs))
	for _, pack := range r.packs {
		packs = append(packs, pack)
	}
	sort.Slice(packs, func(i, j int) bool { return packs[i].ID < packs[j].ID })
	return packs
}

// Count returns the number of loaded challenges
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.challenges)
}
