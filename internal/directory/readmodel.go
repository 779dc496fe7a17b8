// Package directory holds the in-memory directory read model and the
// mutation pipeline that keeps it current.
package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"galleria/api/internal/catalog"
	"galleria/api/internal/store"
)

// DefaultBanner is served whenever no banner row is persisted.
var DefaultBanner = store.BannerConfig{
	ImageURL: "https://images.unsplash.com/photo-1519567241046-e0b6ba687e04?w=1200&q=80",
	Title:    "Mall Directory",
	Subtitle: "Find your favorite stores with ease",
}

// Source is the persistence the read model refreshes from.
type Source interface {
	ListStores(ctx context.Context) ([]store.StoreEntry, error)
	GetBanner(ctx context.Context) (store.BannerConfig, error)
}

// ReadModel is a snapshot of the directory, replaced wholesale on every
// refresh. Reads never touch the database.
type ReadModel struct {
	source Source

	mu      sync.RWMutex
	entries []store.StoreEntry
	banner  store.BannerConfig
}

func NewReadModel(source Source) *ReadModel {
	return &ReadModel{
		source: source,
		banner: DefaultBanner,
	}
}

// RefreshEntries refetches every store entry and swaps the snapshot. On
// failure the previous snapshot stays in place.
func (m *ReadModel) RefreshEntries(ctx context.Context) error {
	entries, err := m.source.ListStores(ctx)
	if err != nil {
		return fmt.Errorf("refresh entries: %w", err)
	}
	m.mu.Lock()
	m.entries = entries
	m.mu.Unlock()
	return nil
}

// RefreshBanner refetches the banner config, substituting the default
// when nothing is persisted.
func (m *ReadModel) RefreshBanner(ctx context.Context) error {
	banner, err := m.source.GetBanner(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		banner = DefaultBanner
	} else if err != nil {
		return fmt.Errorf("refresh banner: %w", err)
	}
	m.mu.Lock()
	m.banner = banner
	m.mu.Unlock()
	return nil
}

// Entries returns a copy of the current snapshot.
func (m *ReadModel) Entries() []store.StoreEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]store.StoreEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Banner returns the current banner config.
func (m *ReadModel) Banner() store.BannerConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.banner
}

// Filter applies the facet criteria to the snapshot.
func (m *ReadModel) Filter(criteria catalog.Criteria) []store.StoreEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	matched := make([]store.StoreEntry, 0)
	for _, entry := range m.entries {
		if criteria.Matches(catalogView(entry)) {
			matched = append(matched, entry)
		}
	}
	return matched
}

// Counts tallies the full snapshot per canonical category, unaffected by
// any active filter.
func (m *ReadModel) Counts() catalog.Counts {
	m.mu.RLock()
	defer m.mu.RUnlock()
	views := make([]catalog.Entry, len(m.entries))
	for i, entry := range m.entries {
		views[i] = catalogView(entry)
	}
	return catalog.CategoryCounts(views)
}

func catalogView(entry store.StoreEntry) catalog.Entry {
	return catalog.Entry{
		Name:     entry.Name,
		Category: entry.Category,
		Block:    entry.Block,
		Floor:    entry.Floor,
	}
}
