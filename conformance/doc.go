// © Copyright 2025-2026, Warting - https://warting.se
// SPDX-License-Identifier: Apache-2.0

// Package conformance provides internal test fixtures for the appfn
// invocation conformance suite. It registers a set of functions that
// exercise every feature of the layer: scalar and list parameter kinds,
// nested containers, required and nullable properties, contract translation
// across schema versions, availability overrides, typed error propagation,
// and caller-directed logging.
//
// The entry points intended for external use are [NewInventory], which
// builds the function metadata table, and [Service.Register], which binds
// the handlers and translators on a dispatcher. The translators
// [CreateNoteTranslator] and [CreateEventTranslator] are exported because
// they serve as examples of [appfn.Translator] implementations.
package conformance
