// © Copyright 2025-2026, Warting - https://warting.se
// SPDX-License-Identifier: Apache-2.0

package appfn

import (
	"fmt"
)

// Translator maps containers between a legacy wire shape and the current
// canonical shape for one published contract. Implementations are stateless,
// pure functions of their input plus embedded knowledge of the two shapes,
// and are shared across concurrent requests.
//
// Upgrade must supply defaults for canonical fields the legacy shape never
// carried; it must never fabricate a value for a required legacy field that
// is absent — that is a data error and fails the call. Downgrade may drop
// canonical fields that have no legacy counterpart.
type Translator interface {
	// UpgradeRequest maps a legacy-shaped parameter container to the
	// canonical shape current handlers expect.
	UpgradeRequest(legacy *Data) (*Data, error)
	// DowngradeResponse maps a canonical-shaped return value back to the
	// legacy shape the caller expects.
	DowngradeResponse(canonical *Data) (*Data, error)
}

// schemaKey identifies a contract independent of version. Translation need
// is decided by comparing the caller's version against the contract's
// canonical version.
type schemaKey struct {
	category string
	name     string
}

type translatorEntry struct {
	canonicalVersion int64
	translator       Translator
}

// TranslatorRegistry is the process-wide identity→translator table. It is
// populated once at startup and read-only afterwards.
type TranslatorRegistry struct {
	entries map[schemaKey]translatorEntry
}

// NewTranslatorRegistry creates an empty registry.
func NewTranslatorRegistry() *TranslatorRegistry {
	return &TranslatorRegistry{entries: make(map[schemaKey]translatorEntry)}
}

// Register installs a translator for the contract named (category, name).
// canonicalVersion is the first schema version that needs no translation;
// callers at any earlier version go through the translator. Registering the
// same contract twice panics: the registry is startup-time configuration and
// a duplicate is a programming error.
func (r *TranslatorRegistry) Register(category, name string, canonicalVersion int64, t Translator) {
	key := schemaKey{category: category, name: name}
	if _, dup := r.entries[key]; dup {
		panic(fmt.Sprintf("appfn: translator for %s/%s registered twice", category, name))
	}
	r.entries[key] = translatorEntry{canonicalVersion: canonicalVersion, translator: t}
}

// Select returns the translator for the given schema identity, or (nil,
// false) when the caller's shape is already canonical or no legacy shape is
// registered for the contract — in both cases dispatch passes containers
// through unchanged.
func (r *TranslatorRegistry) Select(id SchemaIdentity) (Translator, bool) {
	entry, ok := r.entries[schemaKey{category: id.Category, name: id.Name}]
	if !ok || id.Version >= entry.canonicalVersion {
		return nil, false
	}
	return entry.translator, true
}

// Len returns the number of registered contracts.
func (r *TranslatorRegistry) Len() int { return len(r.entries) }
