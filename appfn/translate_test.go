// © Copyright 2025-2026, Warting - https://warting.se
// SPDX-License-Identifier: Apache-2.0

package appfn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type passthroughTranslator struct{}

func (passthroughTranslator) UpgradeRequest(legacy *Data) (*Data, error)      { return legacy, nil }
func (passthroughTranslator) DowngradeResponse(canonical *Data) (*Data, error) { return canonical, nil }

func TestTranslatorRegistry_Select(t *testing.T) {
	r := NewTranslatorRegistry()
	r.Register("notes", "createNote", 2, passthroughTranslator{})

	// A caller at an older version goes through the translator.
	tr, ok := r.Select(SchemaIdentity{Category: "notes", Name: "createNote", Version: 1})
	assert.True(t, ok)
	assert.NotNil(t, tr)

	// Canonical and newer versions pass through untranslated.
	_, ok = r.Select(SchemaIdentity{Category: "notes", Name: "createNote", Version: 2})
	assert.False(t, ok)
	_, ok = r.Select(SchemaIdentity{Category: "notes", Name: "createNote", Version: 3})
	assert.False(t, ok)

	// Unregistered contracts never translate.
	_, ok = r.Select(SchemaIdentity{Category: "calendar", Name: "createEvent", Version: 1})
	assert.False(t, ok)

	require.Equal(t, 1, r.Len())
}

func TestTranslatorRegistry_DuplicatePanics(t *testing.T) {
	r := NewTranslatorRegistry()
	r.Register("notes", "createNote", 2, passthroughTranslator{})
	assert.Panics(t, func() {
		r.Register("notes", "createNote", 3, passthroughTranslator{})
	})
}
