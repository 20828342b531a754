// Package syncer drains the offline action queue against the remote system.
package syncer

import (
	"context"

	"github.com/jbetancur12/parking-app-sub001/internal/models"
)

// Submitter submits one queued action to the remote system. Implementations
// own transport, auth, and timeouts; the coordinator only sees success or
// an error message. Validation failures, authorization failures, and
// transient network drops are all reported the same way.
type Submitter interface {
	Submit(ctx context.Context, rec *models.ActionRecord) error
}

// SubmitterFunc adapts a function to the Submitter interface.
type SubmitterFunc func(ctx context.Context, rec *models.ActionRecord) error

// Submit calls f.
func (f SubmitterFunc) Submit(ctx context.Context, rec *models.ActionRecord) error {
	return f(ctx, rec)
}

// Registry maps action kinds to their submitters. New kinds are supported
// by registering a submitter; the drain loop never changes.
type Registry struct {
	submitters map[models.ActionKind]Submitter
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		submitters: make(map[models.ActionKind]Submitter),
	}
}

// Register binds a kind to a submitter, replacing any previous binding.
func (r *Registry) Register(kind models.ActionKind, s Submitter) {
	r.submitters[kind] = s
}

// Lookup returns the submitter for a kind.
func (r *Registry) Lookup(kind models.ActionKind) (Submitter, bool) {
	s, ok := r.submitters[kind]
	return s, ok
}

// Kinds returns the registered kinds.
func (r *Registry) Kinds() []models.ActionKind {
	kinds := make([]models.ActionKind, 0, len(r.submitters))
	for k := range r.submitters {
		kinds = append(kinds, k)
	}
	return kinds
}
