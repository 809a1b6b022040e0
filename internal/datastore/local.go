package datastore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/atspro/atspro/internal/localstore"
)

// DefaultPrefix namespaces collection keys in the local store.
const DefaultPrefix = "ats_db"

// localIDPrefix marks ids generated by the local fallback.
const localIDPrefix = "local-"

// Local executes operations against the local key-value store. Each
// collection is one JSON array stored under "<prefix>_<collection>".
type Local struct {
	store  localstore.Store
	prefix string

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	newID func() string
}

// NewLocal creates a Local over store.
func NewLocal(store localstore.Store, prefix string) *Local {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Local{
		store:  store,
		prefix: prefix,
		locks:  make(map[string]*sync.Mutex),
		newID: func() string {
			return localIDPrefix + ulid.Make().String()
		},
	}
}

// Key returns the store key of a collection.
func (l *Local) Key(collection string) string {
	return l.prefix + "_" + collection
}

// lock serializes read-merge-write sequences per collection.
func (l *Local) lock(collection string) func() {
	l.mu.Lock()
	m, ok := l.locks[collection]
	if !ok {
		m = &sync.Mutex{}
		l.locks[collection] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// Do performs the action. Store failures are returned wrapped in
// localstore.ErrIOFailure.
func (l *Local) Do(ctx context.Context, action Action, collection string, payload Payload) (Result, error) {
	switch action {
	case ActionFind:
		docs, err := l.load(ctx, collection)
		if err != nil {
			return Result{}, err
		}
		return Result{Documents: docs}, nil
	case ActionInsertOne:
		return l.insertOne(ctx, collection, payload)
	case ActionUpdateOne:
		return l.updateOne(ctx, collection, payload)
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

func (l *Local) insertOne(ctx context.Context, collection string, payload Payload) (Result, error) {
	unlock := l.lock(collection)
	defer unlock()

	docs, err := l.load(ctx, collection)
	if err != nil {
		return Result{}, err
	}

	docs = append(docs, payload.Document)
	if err := l.save(ctx, collection, docs); err != nil {
		return Result{}, err
	}

	return Result{InsertedID: l.newID()}, nil
}

func (l *Local) updateOne(ctx context.Context, collection string, payload Payload) (Result, error) {
	unlock := l.lock(collection)
	defer unlock()

	docs, err := l.load(ctx, collection)
	if err != nil {
		return Result{}, err
	}

	var id string
	if payload.Filter != nil {
		id = payload.Filter.ID
	}

	index := -1
	for i, doc := range docs {
		if doc.ID() == id {
			index = i
			break
		}
	}

	var result Result
	switch {
	case index >= 0:
		docs[index] = docs[index].Merge(payload.Update)
		result.ModifiedCount = 1
	case payload.Upsert:
		doc := Document{}.Merge(payload.Update)
		if doc.ID() == "" && id != "" {
			raw, _ := json.Marshal(id)
			doc["id"] = raw
		}
		docs = append(docs, doc)
		result.ModifiedCount = 1
		result.UpsertedID = doc.ID()
	default:
		return Result{ModifiedCount: 0}, nil
	}

	if err := l.save(ctx, collection, docs); err != nil {
		return Result{}, err
	}
	return result, nil
}

func (l *Local) load(ctx context.Context, collection string) ([]Document, error) {
	key := l.Key(collection)
	data, ok, err := l.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok || len(data) == 0 {
		return []Document{}, nil
	}

	var docs []Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("%w: decode %q: %w", localstore.ErrIOFailure, key, err)
	}
	if docs == nil {
		docs = []Document{}
	}
	return docs, nil
}

func (l *Local) save(ctx context.Context, collection string, docs []Document) error {
	key := l.Key(collection)
	data, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("%w: encode %q: %w", localstore.ErrIOFailure, key, err)
	}
	return l.store.Set(ctx, key, data)
}
