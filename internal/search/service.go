package search

import (
	"context"
	"log"

	"galleria/api/internal/store"
)

// Service is the facade that tries Meilisearch first and falls back to
// the Postgres searcher.
type Service struct {
	meili *Meili
	pg    *PgSearch
}

// NewService creates a search service. meili may be nil when Meilisearch
// is not configured.
func NewService(meili *Meili, pg *PgSearch) *Service {
	return &Service{meili: meili, pg: pg}
}

// Search tries Meilisearch if healthy, otherwise falls back to Postgres.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to postgres: %v", err)
	}

	results, total, err := s.pg.Search(q)
	if err != nil {
		log.Printf("search: postgres error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexStore pushes a store into Meilisearch, fire-and-forget.
func (s *Service) IndexStore(entry store.StoreEntry) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	record := recordOf(entry)
	go func() {
		if err := s.meili.IndexStore(record); err != nil {
			log.Printf("search: index store %s: %v", record.ID, err)
		}
	}()
}

// RemoveStore drops a store from Meilisearch, fire-and-forget.
func (s *Service) RemoveStore(storeID string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteStore(storeID); err != nil {
			log.Printf("search: delete store %s: %v", storeID, err)
		}
	}()
}

// ReindexAllFromPG reindexes every store from PostgreSQL into Meilisearch.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pg == nil {
		return
	}
	records, err := s.pg.LoadAllRecords(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	if len(records) == 0 {
		return
	}
	if err := s.meili.IndexStores(records); err != nil {
		log.Printf("search: reindex stores: %v", err)
	}
}

func nonNil(results []Result) []Result {
	if results == nil {
		return []Result{}
	}
	return results
}

func recordOf(entry store.StoreEntry) StoreRecord {
	return StoreRecord{
		ID:          entry.ID,
		Name:        entry.Name,
		Description: entry.Description,
		Category:    entry.Category,
		Location:    entry.Location,
		Floor:       entry.Floor,
		Block:       entry.Block,
		ImageURL:    entry.ImageURL,
	}
}
