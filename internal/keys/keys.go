// Package keys derives record identifiers and resolves event aliases.
//
// Event ids are assigned by the store when sampling events are inserted, so
// every later entity that refers to an event by its source alias needs the
// alias map first. [AliasResolver] makes that ordering explicit: it accepts
// registrations until it is sealed and answers lookups only afterwards.
package keys

import (
	"crypto/md5"
	"encoding/hex"
	"sync"

	"github.com/JonMunkholm/asvimport/internal/importerr"
)

const sep = ":"

// ASVID returns the content-addressed id of an amplicon sequence:
// "ASV:" followed by the lowercase hex MD5 of the sequence's UTF-8 bytes.
func ASVID(sequence string) string {
	sum := md5.Sum([]byte(sequence))
	return "ASV" + sep + hex.EncodeToString(sum[:])
}

// EventID joins a dataset id and an event alias.
func EventID(datasetID, alias string) string {
	return datasetID + sep + alias
}

// MeasurementID joins an event id and a measurement type.
func MeasurementID(eventID, measurementType string) string {
	return eventID + sep + measurementType
}

// OccurrenceID joins an event id and an ASV id.
func OccurrenceID(eventID, asvID string) string {
	return eventID + sep + asvID
}

// AliasResolver maps event aliases to the event ids assigned by the store.
// It is safe for concurrent use.
type AliasResolver struct {
	mu     sync.RWMutex
	ids    map[string]string
	sealed bool
}

// NewAliasResolver returns an empty, unsealed resolver.
func NewAliasResolver() *AliasResolver {
	return &AliasResolver{ids: make(map[string]string)}
}

// Register records the id assigned to alias. Registering the same pair twice
// is allowed; a conflicting id or a call after Seal is an Internal error.
func (r *AliasResolver) Register(alias, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return importerr.Errorf(importerr.Internal, "register alias", alias, "resolver is sealed")
	}
	if prev, ok := r.ids[alias]; ok && prev != id {
		return importerr.Errorf(importerr.Internal, "register alias", alias,
			"already registered as %q, got %q", prev, id)
	}
	r.ids[alias] = id
	return nil
}

// Seal ends the registration phase. It is idempotent.
func (r *AliasResolver) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether Seal has been called.
func (r *AliasResolver) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Resolve returns the id registered for alias. It fails with UnresolvedAlias
// before Seal or when the alias was never registered.
func (r *AliasResolver) Resolve(alias string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.sealed {
		return "", importerr.New(importerr.UnresolvedAlias, "resolve alias", alias, "resolver not sealed")
	}
	id, ok := r.ids[alias]
	if !ok {
		return "", importerr.New(importerr.UnresolvedAlias, "resolve alias", alias, "no sampling event with this alias")
	}
	return id, nil
}

// Len returns the number of registered aliases.
func (r *AliasResolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ids)
}
