package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/atspro/atspro/internal/localstore"
)

func mustDoc(t *testing.T, v any) Document {
	t.Helper()
	doc, err := ToDocument(v)
	if err != nil {
		t.Fatalf("ToDocument: %v", err)
	}
	return doc
}

func newTestLocal() (*Local, *localstore.MemoryStore) {
	store := localstore.NewMemoryStore()
	return NewLocal(store, "ats_db"), store
}

func TestLocal_FindEmptyCollection(t *testing.T) {
	t.Parallel()
	local, _ := newTestLocal()

	result, err := local.Do(context.Background(), ActionFind, "users", Payload{})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if result.Documents == nil || len(result.Documents) != 0 {
		t.Errorf("Documents = %v, want empty non-nil slice", result.Documents)
	}
}

func TestLocal_InsertOne_AppendsAndPersistsFullArray(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	local, store := newTestLocal()

	first, err := local.Do(ctx, ActionInsertOne, "reports", Payload{Document: mustDoc(t, map[string]any{"id": "r1"})})
	if err != nil {
		t.Fatalf("insert r1: %v", err)
	}
	second, err := local.Do(ctx, ActionInsertOne, "reports", Payload{Document: mustDoc(t, map[string]any{"id": "r2"})})
	if err != nil {
		t.Fatalf("insert r2: %v", err)
	}

	if !strings.HasPrefix(first.InsertedID, "local-") {
		t.Errorf("InsertedID = %q, want local- prefix", first.InsertedID)
	}
	if first.InsertedID == second.InsertedID {
		t.Error("generated ids must be distinct")
	}

	raw, ok, err := store.Get(ctx, "ats_db_reports")
	if err != nil || !ok {
		t.Fatalf("expected collection under ats_db_reports, ok=%v err=%v", ok, err)
	}
	var stored []map[string]any
	if err := json.Unmarshal(raw, &stored); err != nil {
		t.Fatalf("stored value is not a JSON array: %v", err)
	}
	if len(stored) != 2 || stored[0]["id"] != "r1" || stored[1]["id"] != "r2" {
		t.Errorf("stored = %v, want [r1 r2]", stored)
	}
}

func TestLocal_UpdateOne_ShallowMerge(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	local, _ := newTestLocal()

	original := map[string]any{
		"id":     "r1",
		"status": "pending",
		"score":  80,
		"nested": map[string]any{"a": 1, "b": 2},
	}
	if _, err := local.Do(ctx, ActionInsertOne, "reports", Payload{Document: mustDoc(t, original)}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	result, err := local.Do(ctx, ActionUpdateOne, "reports", Payload{
		Filter: &Filter{ID: "r1"},
		Update: mustDoc(t, map[string]any{"status": "shortlisted", "nested": map[string]any{"a": 9}}),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if result.ModifiedCount != 1 {
		t.Errorf("ModifiedCount = %d, want 1", result.ModifiedCount)
	}

	found, _ := local.Do(ctx, ActionFind, "reports", Payload{})
	if len(found.Documents) != 1 {
		t.Fatalf("expected 1 document, got %d", len(found.Documents))
	}
	var got map[string]any
	if err := found.Documents[0].Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["status"] != "shortlisted" {
		t.Errorf("status = %v, want shortlisted", got["status"])
	}
	if got["score"] != float64(80) {
		t.Errorf("score = %v, want untouched 80", got["score"])
	}
	nested := got["nested"].(map[string]any)
	if _, ok := nested["b"]; ok {
		t.Errorf("merge must be shallow, nested = %v", nested)
	}
}

func TestLocal_UpdateOne_MissingWithoutUpsert(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	local, store := newTestLocal()

	if _, err := local.Do(ctx, ActionInsertOne, "users", Payload{Document: mustDoc(t, map[string]any{"id": "u1"})}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	before, _, _ := store.Get(ctx, "ats_db_users")

	result, err := local.Do(ctx, ActionUpdateOne, "users", Payload{
		Filter: &Filter{ID: "nope"},
		Update: mustDoc(t, map[string]any{"id": "nope", "name": "ghost"}),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if result.ModifiedCount != 0 {
		t.Errorf("ModifiedCount = %d, want 0", result.ModifiedCount)
	}

	after, _, _ := store.Get(ctx, "ats_db_users")
	if string(before) != string(after) {
		t.Errorf("collection changed without upsert: %s -> %s", before, after)
	}
}

func TestLocal_UpdateOne_Upsert(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	local, _ := newTestLocal()

	result, err := local.Do(ctx, ActionUpdateOne, "users", Payload{
		Filter: &Filter{ID: "u9"},
		Update: mustDoc(t, map[string]any{"id": "u9", "email": "u9@example.com"}),
		Upsert: true,
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if result.ModifiedCount != 1 || result.UpsertedID != "u9" {
		t.Errorf("result = %+v, want ModifiedCount 1 and UpsertedID u9", result)
	}

	found, _ := local.Do(ctx, ActionFind, "users", Payload{})
	if len(found.Documents) != 1 || found.Documents[0].ID() != "u9" {
		t.Errorf("documents = %v, want single u9", found.Documents)
	}

	// Upserting again updates in place.
	_, _ = local.Do(ctx, ActionUpdateOne, "users", Payload{
		Filter: &Filter{ID: "u9"},
		Update: mustDoc(t, map[string]any{"id": "u9", "email": "new@example.com"}),
		Upsert: true,
	})
	found, _ = local.Do(ctx, ActionFind, "users", Payload{})
	if len(found.Documents) != 1 {
		t.Errorf("second upsert duplicated the document: %d documents", len(found.Documents))
	}
}

func TestLocal_UnknownAction(t *testing.T) {
	t.Parallel()
	local, _ := newTestLocal()

	_, err := local.Do(context.Background(), Action("deleteOne"), "users", Payload{})
	if !errors.Is(err, ErrUnknownAction) {
		t.Errorf("err = %v, want ErrUnknownAction", err)
	}
}

// failingStore fails every call.
type failingStore struct{}

func (failingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, fmt.Errorf("%w: disk gone", localstore.ErrIOFailure)
}

func (failingStore) Set(ctx context.Context, key string, value []byte) error {
	return fmt.Errorf("%w: disk gone", localstore.ErrIOFailure)
}

func (failingStore) Ping(ctx context.Context) error { return nil }
func (failingStore) Close() error                   { return nil }

func TestLocal_StoreFailurePropagates(t *testing.T) {
	t.Parallel()
	local := NewLocal(failingStore{}, "")

	for _, action := range []Action{ActionFind, ActionInsertOne, ActionUpdateOne} {
		_, err := local.Do(context.Background(), action, "users", Payload{Filter: &Filter{ID: "x"}})
		if !errors.Is(err, localstore.ErrIOFailure) {
			t.Errorf("%s: err = %v, want ErrIOFailure", action, err)
		}
	}
}

func TestLocal_CorruptCollectionIsIOFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	local, store := newTestLocal()

	_ = store.Set(ctx, "ats_db_users", []byte("{not json"))

	_, err := local.Do(ctx, ActionFind, "users", Payload{})
	if !errors.Is(err, localstore.ErrIOFailure) {
		t.Errorf("err = %v, want ErrIOFailure", err)
	}
}

func TestLocal_ConcurrentUpdatesAreSerialized(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	local, _ := newTestLocal()

	const writers = 25
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := range writers {
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("u%02d", i)
			_, err := local.Do(ctx, ActionUpdateOne, "users", Payload{
				Filter: &Filter{ID: id},
				Update: mustDoc(t, map[string]any{"id": id}),
				Upsert: true,
			})
			if err != nil {
				t.Errorf("upsert %s: %v", id, err)
			}
		}(i)
	}
	wg.Wait()

	found, err := local.Do(ctx, ActionFind, "users", Payload{})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(found.Documents) != writers {
		t.Errorf("got %d documents, want %d (lost update)", len(found.Documents), writers)
	}
}
