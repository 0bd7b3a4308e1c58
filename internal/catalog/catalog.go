// Package catalog abstracts the content provider collaborator that
// supplies product and promotion payloads for broadcasts.
package catalog

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Item is one product payload.
type Item struct {
	Title       string `yaml:"title" json:"title"`
	Price       string `yaml:"price" json:"price"`
	URL         string `yaml:"url" json:"url"`
	Platform    string `yaml:"platform" json:"platform"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Image       string `yaml:"image,omitempty" json:"image,omitempty"`
}

// Promotion is one promotion payload.
type Promotion struct {
	Title       string
	Discount    string
	EndsAt      time.Time
	Description string
}

// Provider supplies the items for the daily recommendation digest.
type Provider interface {
	DailyItems(ctx context.Context, count int) ([]Item, error)
}

// StaticProvider serves a configured item pool, returning a random
// sample per call. It stands in for a real recommendation backend.
type StaticProvider struct {
	mu    sync.Mutex
	rng   *rand.Rand
	items []Item
}

func NewStaticProvider(items []Item) *StaticProvider {
	return &StaticProvider{
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		items: items,
	}
}

// SetItems swaps the item pool. Used by config hot-reload.
func (p *StaticProvider) SetItems(items []Item) {
	p.mu.Lock()
	p.items = items
	p.mu.Unlock()
}

func (p *StaticProvider) DailyItems(_ context.Context, count int) ([]Item, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if count <= 0 || len(p.items) == 0 {
		return nil, nil
	}

	idx := p.rng.Perm(len(p.items))
	if count > len(idx) {
		count = len(idx)
	}
	out := make([]Item, 0, count)
	for _, i := range idx[:count] {
		out = append(out, p.items[i])
	}
	return out, nil
}
