// Package storage persists the client's session slots in durable,
// client-local storage. Three backends are provided: a JSON file, a SQLite
// database and Redis.
package storage

import "context"

// Slot names used by the session layer.
const (
	SlotToken = "token"
	SlotUser  = "user"
)

// Slots is a small named key/value store. Values are opaque strings.
type Slots interface {
	// Get returns the value of slot and whether it was present.
	Get(ctx context.Context, slot string) (string, bool, error)
	// Put writes every entry of values in one operation.
	Put(ctx context.Context, values map[string]string) error
	// Delete removes the named slots. Missing slots are not an error.
	Delete(ctx context.Context, slots ...string) error
}
