package agent

import (
	"sync"

	"go.uber.org/zap"

	"github.com/dusk-indust/foresight/internal/forecast"
)

// Registry maps agent ids to their capability cards. It is a permissive,
// last-write-wins registry: re-registering an existing id overwrites the
// previous card with a warning, not an error. Candidate order for ByStage is
// registration order, which keeps downstream tie-breaking stable.
type Registry struct {
	mu    sync.RWMutex
	cards map[string]Card
	order []string

	logger *zap.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		cards:  make(map[string]Card),
		logger: logger,
	}
}

// Register adds a card, overwriting any existing card with the same id.
func (r *Registry) Register(card Card) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.cards[card.ID]; exists {
		r.logger.Warn("overwriting registered agent card", zap.String("agent", card.ID))
	} else {
		r.order = append(r.order, card.ID)
	}
	r.cards[card.ID] = card
}

// Get returns the card for id and whether it exists.
func (r *Registry) Get(id string) (Card, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	card, ok := r.cards[id]
	return card, ok
}

// ByStage returns all cards declaring support for the stage, in registration
// order.
func (r *Registry) ByStage(stage forecast.Stage) []Card {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var cards []Card
	for _, id := range r.order {
		if card := r.cards[id]; card.SupportsStage(stage) {
			cards = append(cards, card)
		}
	}
	return cards
}

// Validate splits ids into those with a registered card and those without.
func (r *Registry) Validate(ids []string) (valid, missing []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range ids {
		if _, ok := r.cards[id]; ok {
			valid = append(valid, id)
		} else {
			missing = append(missing, id)
		}
	}
	return valid, missing
}

// Len returns the number of registered cards.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cards)
}
