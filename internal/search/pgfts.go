package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgSearch implements Searcher on PostgreSQL as a fallback when
// Meilisearch is unavailable.
type PgSearch struct {
	db *sql.DB
}

func NewPgSearch(db *sql.DB) *PgSearch {
	return &PgSearch{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgSearch) Healthy() bool {
	return true
}

// Search runs a case-insensitive substring match over name,
// description and location, honoring the facet filters.
func (p *PgSearch) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	where := []string{"(name ILIKE $1 OR description ILIKE $1 OR location ILIKE $1)"}
	args := []any{"%" + q.Text + "%"}
	if q.Category != "" {
		args = append(args, q.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if q.Block != "" {
		args = append(args, q.Block)
		where = append(where, fmt.Sprintf("block = $%d", len(args)))
	}
	if q.Floor != nil {
		args = append(args, *q.Floor)
		where = append(where, fmt.Sprintf("floor = $%d", len(args)))
	}

	query := fmt.Sprintf(`
		SELECT id, name, description, category, location, floor, block, image_url, COUNT(*) OVER() AS total
		FROM stores
		WHERE %s
		ORDER BY name ASC
		LIMIT %d OFFSET %d
	`, strings.Join(where, " AND "), limit, offset)

	rows, err := p.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pg search: %w", err)
	}
	defer rows.Close()

	var results []Result
	total := 0
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.Category, &r.Location, &r.Floor, &r.Block, &r.ImageURL, &total); err != nil {
			return nil, 0, fmt.Errorf("scan search row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate search rows: %w", err)
	}
	return results, total, nil
}

// LoadAllRecords reads every store for reindexing into Meilisearch.
func (p *PgSearch) LoadAllRecords(ctx context.Context) ([]StoreRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, name, description, category, location, floor, block, image_url
		FROM stores
	`)
	if err != nil {
		return nil, fmt.Errorf("load store records: %w", err)
	}
	defer rows.Close()

	var records []StoreRecord
	for rows.Next() {
		var r StoreRecord
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.Category, &r.Location, &r.Floor, &r.Block, &r.ImageURL); err != nil {
			return nil, fmt.Errorf("scan store record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate store records: %w", err)
	}
	return records, nil
}
