// Package datastore implements the persistence adapter: collection
// operations against a remote document Data API with a transparent
// fallback to the local key-value store.
package datastore

import (
	"encoding/json"
	"errors"
)

// Action is a collection operation.
type Action string

const (
	ActionFind      Action = "find"
	ActionInsertOne Action = "insertOne"
	ActionUpdateOne Action = "updateOne"
)

// IsValid checks if the action is supported.
func (a Action) IsValid() bool {
	return a == ActionFind || a == ActionInsertOne || a == ActionUpdateOne
}

var (
	// ErrUnknownAction is returned for actions other than find, insertOne and updateOne.
	ErrUnknownAction = errors.New("unknown datastore action")
	// ErrRemoteUnavailable is the root of every remote failure reason.
	// It never reaches callers of Adapter.Execute.
	ErrRemoteUnavailable = errors.New("remote data API unavailable")
)

// Document is a stored record. Values stay raw so that a shallow merge keeps
// every field byte-identical unless it is overwritten.
type Document map[string]json.RawMessage

// ID returns the document's "id" field, or "" if absent or not a string.
func (d Document) ID() string {
	raw, ok := d["id"]
	if !ok {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return ""
	}
	return id
}

// Merge returns a copy of d with every field of update laid over it.
func (d Document) Merge(update Document) Document {
	merged := make(Document, len(d)+len(update))
	for k, v := range d {
		merged[k] = v
	}
	for k, v := range update {
		merged[k] = v
	}
	return merged
}

// ToDocument converts any JSON-serializable value to a Document.
func ToDocument(v any) (Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Decode unmarshals the document into v.
func (d Document) Decode(v any) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// Filter selects a document by id.
type Filter struct {
	ID string `json:"id"`
}

// Payload carries the operation arguments.
type Payload struct {
	Filter   *Filter
	Update   Document
	Document Document
	Upsert   bool
}

// Result is the outcome of an operation. Only the fields relevant to the
// action are set.
type Result struct {
	Documents     []Document
	InsertedID    string
	ModifiedCount int
	UpsertedID    string
}

// RemoteResult is either Ok(result) or Unavailable(reason).
type RemoteResult struct {
	result Result
	reason error
}

// Ok wraps a successful remote result.
func Ok(result Result) RemoteResult {
	return RemoteResult{result: result}
}

// Unavailable records why the remote could not serve the request.
func Unavailable(reason error) RemoteResult {
	if reason == nil {
		reason = ErrRemoteUnavailable
	}
	return RemoteResult{reason: reason}
}

// IsOk returns true for the Ok variant.
func (r RemoteResult) IsOk() bool {
	return r.reason == nil
}

// Result returns the result and true for the Ok variant.
func (r RemoteResult) Result() (Result, bool) {
	return r.result, r.reason == nil
}

// Reason returns the failure reason for the Unavailable variant.
func (r RemoteResult) Reason() error {
	return r.reason
}
