package subscription

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process implementation of Store and TemplateStore.
// Records are deep-copied on the way in and out. Safe for concurrent use.
type MemoryStore struct {
	mu        sync.RWMutex
	sellers   map[uuid.UUID]*Seller
	subs      map[uuid.UUID]*Subscription
	bySeller  map[uuid.UUID][]uuid.UUID // insertion order
	templates map[string]*Template
}

// NewMemoryStore returns an empty store seeded with the given templates.
func NewMemoryStore(templates ...*Template) *MemoryStore {
	m := &MemoryStore{
		sellers:   make(map[uuid.UUID]*Seller),
		subs:      make(map[uuid.UUID]*Subscription),
		bySeller:  make(map[uuid.UUID][]uuid.UUID),
		templates: make(map[string]*Template, len(templates)),
	}
	for _, t := range templates {
		m.PutTemplate(t)
	}
	return m
}

// PutTemplate adds or replaces a catalog template.
func (m *MemoryStore) PutTemplate(t *Template) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[t.ID] = t.Clone()
}

// PutSeller adds or replaces a seller record, bypassing version checks.
func (m *MemoryStore) PutSeller(s *Seller) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := s.Clone()
	c.Version = max(c.Version, 1)
	m.sellers[c.ID] = c
}

// PutSubscription adds or replaces a subscription record, bypassing version checks.
// Unsaved records are stored at version 1.
func (m *MemoryStore) PutSubscription(sub *Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := sub.Clone()
	c.Version = max(c.Version, 1)
	m.putSubscription(c)
}

// EnsureSeller creates an empty seller record unless one exists.
func (m *MemoryStore) EnsureSeller(_ context.Context, sellerID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sellers[sellerID]; !ok {
		m.sellers[sellerID] = &Seller{ID: sellerID, Version: 1}
	}
	return nil
}

func (m *MemoryStore) putSubscription(sub *Subscription) {
	c := sub.Clone()
	c.Template = nil
	if _, ok := m.subs[c.ID]; !ok {
		m.bySeller[c.SellerID] = append(m.bySeller[c.SellerID], c.ID)
	}
	m.subs[c.ID] = c
}

func (m *MemoryStore) GetSeller(_ context.Context, sellerID uuid.UUID) (*Seller, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sellers[sellerID]
	if !ok {
		return nil, ErrSellerNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) GetTemplate(_ context.Context, templateID string) (*Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.templates[templateID]
	if !ok {
		return nil, ErrTemplateNotFound
	}
	return t.Clone(), nil
}

func (m *MemoryStore) FindActiveFreeTemplate(_ context.Context) (*Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *Template
	for _, t := range m.templates {
		if !t.Active || !t.IsFree() || t.IsMini() {
			continue
		}
		if best == nil || t.Price.LessThan(best.Price) ||
			(t.Price.Equal(best.Price) && t.ID < best.ID) {
			best = t
		}
	}
	if best == nil {
		return nil, ErrTemplateNotFound
	}
	return best.Clone(), nil
}

func (m *MemoryStore) FindBySeller(_ context.Context, sellerID uuid.UUID) ([]*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.bySeller[sellerID]
	out := make([]*Subscription, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.subs[id].Clone())
	}
	slices.SortStableFunc(out, func(a, b *Subscription) int {
		return cmp.Compare(a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano())
	})
	return out, nil
}

func (m *MemoryStore) GetSubscription(_ context.Context, subscriptionID uuid.UUID) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sub, ok := m.subs[subscriptionID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return sub.Clone(), nil
}

// Commit applies cs if every record's version still matches the stored one.
func (m *MemoryStore) Commit(ctx context.Context, cs *Changeset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if cs.Empty() {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if cs.Seller != nil {
		stored, ok := m.sellers[cs.Seller.ID]
		if !ok {
			return ErrSellerNotFound
		}
		if stored.Version != cs.Seller.Version {
			return ErrVersionConflict
		}
	}
	for _, sub := range cs.Subscriptions {
		stored, ok := m.subs[sub.ID]
		switch {
		case sub.Version == 0 && ok:
			return ErrVersionConflict
		case sub.Version != 0 && !ok:
			return ErrSubscriptionNotFound
		case ok && stored.Version != sub.Version:
			return ErrVersionConflict
		}
	}

	if cs.Seller != nil {
		cs.Seller.Version++
		m.sellers[cs.Seller.ID] = cs.Seller.Clone()
	}
	for _, sub := range cs.Subscriptions {
		sub.Version++
		m.putSubscription(sub)
	}
	return nil
}

var (
	_ Store         = (*MemoryStore)(nil)
	_ TemplateStore = (*MemoryStore)(nil)
)
