package directory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"galleria/api/internal/catalog"
	"galleria/api/internal/store"
	"galleria/api/internal/util"
)

// PlaceholderImage backs store entries submitted without imagery.
const PlaceholderImage = "https://images.unsplash.com/photo-1441984904996-e0b6ba687e04?w=400&q=80"

const instagramRoot = "https://instagram.com/"

// ErrValidation marks input rejected before any store call.
var ErrValidation = errors.New("validation failed")

// ErrNotConfirmed is returned when a delete runs without confirmation.
var ErrNotConfirmed = errors.New("deletion not confirmed")

// Mutator is the persistence side of the pipeline.
type Mutator interface {
	InsertStore(ctx context.Context, item store.StoreEntry) (store.StoreEntry, error)
	UpdateStore(ctx context.Context, storeID string, update store.StoreUpdate) (store.StoreEntry, error)
	DeleteStore(ctx context.Context, storeID string) error
}

// Refresher is notified exactly once after each successful mutation.
type Refresher interface {
	RefreshEntries(ctx context.Context) error
}

// Indexer receives fire-and-forget search index updates.
type Indexer interface {
	IndexStore(entry store.StoreEntry)
	RemoveStore(storeID string)
}

// StoreInput is a full submission for create. Floor arrives as text.
type StoreInput struct {
	Name        string
	Description string
	Category    string
	Location    string
	Floor       string
	Block       string
	Image       string
	Instagram   string
}

// StorePatch is a partial submission for update. Nil fields are omitted.
type StorePatch struct {
	Name        *string
	Description *string
	Category    *string
	Location    *string
	Floor       *string
	Block       *string
	Image       *string
	Instagram   *string
}

// Pipeline validates, normalizes and persists directory mutations, then
// refreshes the read model. It trusts its caller for authorization.
type Pipeline struct {
	stores  Mutator
	model   Refresher
	indexer Indexer
}

func NewPipeline(stores Mutator, model Refresher, indexer Indexer) *Pipeline {
	return &Pipeline{stores: stores, model: model, indexer: indexer}
}

// Create persists a new entry and returns it with its assigned identity.
func (p *Pipeline) Create(ctx context.Context, input StoreInput) (store.StoreEntry, error) {
	if strings.TrimSpace(input.Name) == "" {
		return store.StoreEntry{}, fmt.Errorf("%w: name is required", ErrValidation)
	}
	category, ok := catalog.NormalizeCategory(input.Category)
	if !ok {
		return store.StoreEntry{}, fmt.Errorf("%w: unknown category %q", ErrValidation, input.Category)
	}
	if !catalog.ValidBlock(input.Block) {
		return store.StoreEntry{}, fmt.Errorf("%w: unknown block %q", ErrValidation, input.Block)
	}
	floor, err := parseFloor(input.Floor)
	if err != nil {
		return store.StoreEntry{}, err
	}

	entry := store.StoreEntry{
		ID:          util.NewID("st"),
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		Category:    string(category),
		Location:    strings.TrimSpace(input.Location),
		Floor:       floor,
		Block:       input.Block,
		ImageURL:    imageOrPlaceholder(input.Image),
		Instagram:   normalizeInstagram(input.Instagram),
	}

	created, err := p.stores.InsertStore(ctx, entry)
	if err != nil {
		return store.StoreEntry{}, err
	}
	if err := p.model.RefreshEntries(ctx); err != nil {
		return created, err
	}
	if p.indexer != nil {
		p.indexer.IndexStore(created)
	}
	return created, nil
}

// Update applies a partial update and refreshes the read model once. The
// snapshot is never merged locally.
func (p *Pipeline) Update(ctx context.Context, storeID string, patch StorePatch) (store.StoreEntry, error) {
	update := store.StoreUpdate{
		Description: patch.Description,
		Location:    patch.Location,
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return store.StoreEntry{}, fmt.Errorf("%w: name is required", ErrValidation)
		}
		update.Name = &name
	}
	if patch.Category != nil {
		category, ok := catalog.NormalizeCategory(*patch.Category)
		if !ok {
			return store.StoreEntry{}, fmt.Errorf("%w: unknown category %q", ErrValidation, *patch.Category)
		}
		canonical := string(category)
		update.Category = &canonical
	}
	if patch.Block != nil {
		if !catalog.ValidBlock(*patch.Block) {
			return store.StoreEntry{}, fmt.Errorf("%w: unknown block %q", ErrValidation, *patch.Block)
		}
		update.Block = patch.Block
	}
	if patch.Floor != nil {
		floor, err := parseFloor(*patch.Floor)
		if err != nil {
			return store.StoreEntry{}, err
		}
		update.Floor = &floor
	}
	if patch.Image != nil {
		image := imageOrPlaceholder(*patch.Image)
		update.ImageURL = &image
	}
	if patch.Instagram != nil {
		instagram := normalizeInstagram(*patch.Instagram)
		update.Instagram = &instagram
	}

	updated, err := p.stores.UpdateStore(ctx, storeID, update)
	if err != nil {
		return store.StoreEntry{}, err
	}
	if err := p.model.RefreshEntries(ctx); err != nil {
		return updated, err
	}
	if p.indexer != nil {
		p.indexer.IndexStore(updated)
	}
	return updated, nil
}

// Delete removes an entry after the confirm callback approves. A declined
// confirmation performs no store calls and no refresh.
func (p *Pipeline) Delete(ctx context.Context, storeID string, confirm func() bool) error {
	if confirm == nil || !confirm() {
		return ErrNotConfirmed
	}
	if err := p.stores.DeleteStore(ctx, storeID); err != nil {
		return err
	}
	if err := p.model.RefreshEntries(ctx); err != nil {
		return err
	}
	if p.indexer != nil {
		p.indexer.RemoveStore(storeID)
	}
	return nil
}

func parseFloor(raw string) (int, error) {
	floor, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: floor %q is not numeric", ErrValidation, raw)
	}
	return floor, nil
}

func imageOrPlaceholder(image string) string {
	if strings.TrimSpace(image) == "" {
		return PlaceholderImage
	}
	return image
}

func normalizeInstagram(handle string) string {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return ""
	}
	if strings.HasPrefix(handle, "http://") || strings.HasPrefix(handle, "https://") {
		return handle
	}
	return instagramRoot + strings.TrimPrefix(handle, "@")
}
