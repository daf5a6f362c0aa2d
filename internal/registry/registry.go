// Package registry owns the durable mapping from hash keys to registered
// certificates. Registration is atomic with respect to the uniqueness check:
// of two concurrent registrations of the same fingerprint, exactly one
// succeeds and the other observes ErrDuplicate.
package registry

import (
	"context"
	"errors"

	"certproof/internal/models"
)

var (
	// ErrDuplicate means a record with the same hash key is already registered.
	ErrDuplicate = errors.New("certificate already registered")
	// ErrNotFound means no record exists for the hash key.
	ErrNotFound = errors.New("certificate not found")
)

// Filter narrows a List call. Zero value lists everything in insertion order.
type Filter struct {
	// Query is matched as a case-insensitive substring against student name,
	// roll number and course.
	Query string
	// Verified, when set, restricts to records with that verification status.
	Verified *bool
	// Limit caps the page size; 0 means the store's default.
	Limit  int
	Offset int
}

// Registry is the durable hash_key -> CertificateRecord store.
type Registry interface {
	// Register stores a new record. Fails with ErrDuplicate if the hash key
	// is already present; any other error is a store failure. On success the
	// returned record carries the creation timestamp.
	Register(ctx context.Context, rec models.CertificateRecord) (models.CertificateRecord, error)

	// Lookup returns the record for a hash key, or ErrNotFound.
	Lookup(ctx context.Context, hashKey string) (models.CertificateRecord, error)

	// List returns records matching the filter, ordered by insertion time
	// ascending.
	List(ctx context.Context, f Filter) ([]models.CertificateRecord, error)

	// Delete removes a record, or returns ErrNotFound.
	Delete(ctx context.Context, hashKey string) error

	// SetVerified updates the administrative verified flag, or returns
	// ErrNotFound.
	SetVerified(ctx context.Context, hashKey string, verified bool) error
}

// DefaultListLimit bounds unpaginated listing requests.
const DefaultListLimit = 100
