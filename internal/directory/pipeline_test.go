package directory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"galleria/api/internal/store"
)

type fakeMutator struct {
	insertFn func(ctx context.Context, item store.StoreEntry) (store.StoreEntry, error)
	updateFn func(ctx context.Context, storeID string, update store.StoreUpdate) (store.StoreEntry, error)
	deleteFn func(ctx context.Context, storeID string) error

	insertCalls int
	updateCalls int
	deleteCalls int
}

func (f *fakeMutator) InsertStore(ctx context.Context, item store.StoreEntry) (store.StoreEntry, error) {
	f.insertCalls++
	return f.insertFn(ctx, item)
}

func (f *fakeMutator) UpdateStore(ctx context.Context, storeID string, update store.StoreUpdate) (store.StoreEntry, error) {
	f.updateCalls++
	return f.updateFn(ctx, storeID, update)
}

func (f *fakeMutator) DeleteStore(ctx context.Context, storeID string) error {
	f.deleteCalls++
	return f.deleteFn(ctx, storeID)
}

type countingRefresher struct {
	calls int
	err   error
}

func (c *countingRefresher) RefreshEntries(context.Context) error {
	c.calls++
	return c.err
}

func echoMutator() *fakeMutator {
	return &fakeMutator{
		insertFn: func(_ context.Context, item store.StoreEntry) (store.StoreEntry, error) {
			return item, nil
		},
		updateFn: func(_ context.Context, storeID string, _ store.StoreUpdate) (store.StoreEntry, error) {
			return store.StoreEntry{ID: storeID}, nil
		},
		deleteFn: func(context.Context, string) error { return nil },
	}
}

func validInput() StoreInput {
	return StoreInput{
		Name:      "Fashion Forward",
		Category:  "Fashion",
		Floor:     "1",
		Block:     "1",
		Instagram: "@fashionforward",
	}
}

func TestCreateAssignsIdentityAndNormalizes(t *testing.T) {
	mutator := echoMutator()
	refresher := &countingRefresher{}
	pipeline := NewPipeline(mutator, refresher, nil)

	created, err := pipeline.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !strings.HasPrefix(created.ID, "st_") {
		t.Errorf("expected assigned identity, got %q", created.ID)
	}
	if created.Floor != 1 {
		t.Errorf("expected parsed floor 1, got %d", created.Floor)
	}
	if created.ImageURL != PlaceholderImage {
		t.Errorf("expected placeholder image, got %q", created.ImageURL)
	}
	if created.Instagram != "https://instagram.com/fashionforward" {
		t.Errorf("expected expanded instagram URL, got %q", created.Instagram)
	}
	if refresher.calls != 1 {
		t.Errorf("expected exactly one refresh, got %d", refresher.calls)
	}
}

func TestCreateCanonicalizesCategorySynonym(t *testing.T) {
	mutator := echoMutator()
	pipeline := NewPipeline(mutator, &countingRefresher{}, nil)

	input := validInput()
	input.Category = "Service"
	created, err := pipeline.Create(context.Background(), input)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.Category != "Services" {
		t.Errorf("expected canonical category Services, got %q", created.Category)
	}
}

func TestCreateKeepsSubmittedImageAndURLInstagram(t *testing.T) {
	mutator := echoMutator()
	pipeline := NewPipeline(mutator, &countingRefresher{}, nil)

	input := validInput()
	input.Image = "https://cdn.galleria.dev/storefront.jpg"
	input.Instagram = "https://instagram.com/already"
	created, err := pipeline.Create(context.Background(), input)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.ImageURL != input.Image {
		t.Errorf("submitted image must win, got %q", created.ImageURL)
	}
	if created.Instagram != input.Instagram {
		t.Errorf("full instagram URL must pass through, got %q", created.Instagram)
	}
}

func TestCreateRejectsBadInputBeforeStoreCalls(t *testing.T) {
	cases := map[string]func(*StoreInput){
		"missing name":      func(in *StoreInput) { in.Name = "  " },
		"unknown category":  func(in *StoreInput) { in.Category = "Pop-up" },
		"unknown block":     func(in *StoreInput) { in.Block = "A" },
		"non-numeric floor": func(in *StoreInput) { in.Floor = "ground" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			mutator := echoMutator()
			refresher := &countingRefresher{}
			pipeline := NewPipeline(mutator, refresher, nil)

			input := validInput()
			mutate(&input)
			_, err := pipeline.Create(context.Background(), input)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if mutator.insertCalls != 0 {
				t.Errorf("validation must reject before any store call, got %d", mutator.insertCalls)
			}
			if refresher.calls != 0 {
				t.Errorf("failed create must not refresh, got %d", refresher.calls)
			}
		})
	}
}

func TestCreateStoreFailureSkipsRefresh(t *testing.T) {
	mutator := echoMutator()
	mutator.insertFn = func(context.Context, store.StoreEntry) (store.StoreEntry, error) {
		return store.StoreEntry{}, errors.New("db down")
	}
	refresher := &countingRefresher{}
	pipeline := NewPipeline(mutator, refresher, nil)

	if _, err := pipeline.Create(context.Background(), validInput()); err == nil {
		t.Fatal("expected store error")
	}
	if refresher.calls != 0 {
		t.Errorf("failed create must not refresh, got %d", refresher.calls)
	}
}

func TestUpdateRefreshesOnceWithoutLocalMerge(t *testing.T) {
	mutator := echoMutator()
	mutator.updateFn = func(_ context.Context, storeID string, update store.StoreUpdate) (store.StoreEntry, error) {
		if update.Name == nil || *update.Name != "Tech Haven 2.0" {
			t.Errorf("expected name in update, got %+v", update)
		}
		if update.Category != nil {
			t.Errorf("omitted fields must stay nil, got %+v", update)
		}
		return store.StoreEntry{ID: storeID, Name: "Tech Haven 2.0", Category: "Electronics"}, nil
	}
	refresher := &countingRefresher{}
	pipeline := NewPipeline(mutator, refresher, nil)

	name := "Tech Haven 2.0"
	updated, err := pipeline.Update(context.Background(), "st_2", StorePatch{Name: &name})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Category != "Electronics" {
		t.Fatalf("result must come from the store, got %+v", updated)
	}
	if refresher.calls != 1 {
		t.Errorf("expected exactly one refresh, got %d", refresher.calls)
	}
}

func TestUpdateParsesFloorAndValidatesBlock(t *testing.T) {
	mutator := echoMutator()
	refresher := &countingRefresher{}
	pipeline := NewPipeline(mutator, refresher, nil)

	badFloor := "mezzanine"
	if _, err := pipeline.Update(context.Background(), "st_1", StorePatch{Floor: &badFloor}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for floor, got %v", err)
	}
	badBlock := "9"
	if _, err := pipeline.Update(context.Background(), "st_1", StorePatch{Block: &badBlock}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for block, got %v", err)
	}
	if mutator.updateCalls != 0 || refresher.calls != 0 {
		t.Errorf("rejected updates must not reach the store: updates=%d refreshes=%d", mutator.updateCalls, refresher.calls)
	}
}

func TestUpdateStoreFailureSkipsRefresh(t *testing.T) {
	mutator := echoMutator()
	mutator.updateFn = func(context.Context, string, store.StoreUpdate) (store.StoreEntry, error) {
		return store.StoreEntry{}, errors.New("db down")
	}
	refresher := &countingRefresher{}
	pipeline := NewPipeline(mutator, refresher, nil)

	name := "New Name"
	if _, err := pipeline.Update(context.Background(), "st_1", StorePatch{Name: &name}); err == nil {
		t.Fatal("expected store error")
	}
	if refresher.calls != 0 {
		t.Errorf("failed update must not refresh, got %d", refresher.calls)
	}
}

func TestDeleteDeclinedIsCompleteNoOp(t *testing.T) {
	mutator := echoMutator()
	refresher := &countingRefresher{}
	pipeline := NewPipeline(mutator, refresher, nil)

	err := pipeline.Delete(context.Background(), "st_1", func() bool { return false })
	if !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("expected ErrNotConfirmed, got %v", err)
	}
	if mutator.deleteCalls != 0 || refresher.calls != 0 {
		t.Errorf("declined delete must touch nothing: deletes=%d refreshes=%d", mutator.deleteCalls, refresher.calls)
	}
}

func TestDeleteConfirmedRefreshesOnce(t *testing.T) {
	mutator := echoMutator()
	refresher := &countingRefresher{}
	pipeline := NewPipeline(mutator, refresher, nil)

	if err := pipeline.Delete(context.Background(), "st_1", func() bool { return true }); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if mutator.deleteCalls != 1 {
		t.Errorf("expected one delete call, got %d", mutator.deleteCalls)
	}
	if refresher.calls != 1 {
		t.Errorf("expected exactly one refresh, got %d", refresher.calls)
	}
}
