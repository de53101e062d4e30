// © Copyright 2025-2026, Warting - https://warting.se
// SPDX-License-Identifier: Apache-2.0

package conformance

import (
	"fmt"
	"time"

	"github.com/warting/appfunctions-go/appfn"
)

// CreateNoteTranslator maps between the version-1 and version-2 shapes of the
// notes/createNote contract. Version 2 renamed the external correlation field
// from externalId to externalUuid and introduced attachments.
type CreateNoteTranslator struct{}

// UpgradeRequest maps a v1 parameter container to the v2 shape: the external
// id moves under its new name and absent attachments default to an empty
// list. The required title must be present in the legacy container; it is a
// data error otherwise.
func (CreateNoteTranslator) UpgradeRequest(legacy *appfn.Data) (*appfn.Data, error) {
	title, err := legacy.GetString("title")
	if err != nil {
		return nil, fmt.Errorf("legacy createNote request: %w", err)
	}

	b := appfn.NewDataBuilder(legacy.QualifiedName())
	b.SetString("title", title)
	if legacy.Has("content") {
		content, err := legacy.GetString("content")
		if err != nil {
			return nil, fmt.Errorf("legacy createNote request: %w", err)
		}
		b.SetString("content", content)
	}
	if legacy.Has("externalId") {
		externalID, err := legacy.GetString("externalId")
		if err != nil {
			return nil, fmt.Errorf("legacy createNote request: %w", err)
		}
		b.SetString("externalUuid", externalID)
	}
	// v1 callers cannot express attachments; the canonical shape wants an
	// explicit empty list.
	b.SetDataList("attachments", nil)
	return b.Build(), nil
}

// DowngradeResponse maps a v2 note back to the v1 shape: externalUuid moves
// back under its old name and attachments, which v1 cannot represent, are
// dropped.
func (CreateNoteTranslator) DowngradeResponse(canonical *appfn.Data) (*appfn.Data, error) {
	note, err := canonical.GetData(appfn.ReturnValueKey)
	if err != nil {
		return nil, fmt.Errorf("canonical createNote response: %w", err)
	}

	b := appfn.NewDataBuilder(note.QualifiedName())
	for _, key := range []string{"id", "title", "content"} {
		if !note.Has(key) {
			continue
		}
		v, err := note.GetString(key)
		if err != nil {
			return nil, fmt.Errorf("canonical createNote response: %w", err)
		}
		b.SetString(key, v)
	}
	if note.Has("externalUuid") {
		externalUUID, err := note.GetString("externalUuid")
		if err != nil {
			return nil, fmt.Errorf("canonical createNote response: %w", err)
		}
		b.SetString("externalId", externalUUID)
	}

	out := appfn.NewDataBuilder("")
	out.SetData(appfn.ReturnValueKey, b.Build())
	return out.Build(), nil
}

// Event status wire values. v1 carried an integer, v2 carries a string.
const (
	statusConfirmed = "confirmed"
	statusTentative = "tentative"
	statusCancelled = "cancelled"
)

func statusFromLegacy(code int64) string {
	switch code {
	case 0:
		return statusConfirmed
	case 2:
		return statusCancelled
	default:
		// Unknown codes degrade to tentative, the weakest commitment.
		return statusTentative
	}
}

func statusToLegacy(status string) int64 {
	switch status {
	case statusConfirmed:
		return 0
	case statusCancelled:
		return 2
	default:
		return 1
	}
}

// CreateEventTranslator maps between the version-1 and version-2 shapes of
// the calendar/createEvent contract. Version 2 replaced the six broken-out
// calendar fields with a single epoch-milliseconds instant plus a zone, and
// replaced the integer status enum with strings.
type CreateEventTranslator struct{}

// UpgradeRequest converts v1 calendar fields to the canonical epoch instant.
func (CreateEventTranslator) UpgradeRequest(legacy *appfn.Data) (*appfn.Data, error) {
	title, err := legacy.GetString("title")
	if err != nil {
		return nil, fmt.Errorf("legacy createEvent request: %w", err)
	}
	zone, err := legacy.GetString("timeZone")
	if err != nil {
		return nil, fmt.Errorf("legacy createEvent request: %w", err)
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("legacy createEvent request: unknown time zone %q", zone)
	}

	var parts [5]int64
	for i, key := range []string{"year", "month", "day", "hour", "minute"} {
		v, err := legacy.GetLong(key)
		if err != nil {
			return nil, fmt.Errorf("legacy createEvent request: %w", err)
		}
		parts[i] = v
	}
	start := time.Date(int(parts[0]), time.Month(parts[1]), int(parts[2]),
		int(parts[3]), int(parts[4]), 0, 0, loc)

	b := appfn.NewDataBuilder(legacy.QualifiedName())
	b.SetString("title", title)
	b.SetLong("startEpochMillis", start.UnixMilli())
	b.SetString("timeZone", zone)
	if legacy.Has("status") {
		code, err := legacy.GetLong("status")
		if err != nil {
			return nil, fmt.Errorf("legacy createEvent request: %w", err)
		}
		b.SetString("status", statusFromLegacy(code))
	}
	return b.Build(), nil
}

// DowngradeResponse converts the canonical event back to v1 calendar fields
// in the event's own zone.
func (CreateEventTranslator) DowngradeResponse(canonical *appfn.Data) (*appfn.Data, error) {
	event, err := canonical.GetData(appfn.ReturnValueKey)
	if err != nil {
		return nil, fmt.Errorf("canonical createEvent response: %w", err)
	}

	id, err := event.GetString("id")
	if err != nil {
		return nil, fmt.Errorf("canonical createEvent response: %w", err)
	}
	title, err := event.GetString("title")
	if err != nil {
		return nil, fmt.Errorf("canonical createEvent response: %w", err)
	}
	epochMillis, err := event.GetLong("startEpochMillis")
	if err != nil {
		return nil, fmt.Errorf("canonical createEvent response: %w", err)
	}
	zone, err := event.GetString("timeZone")
	if err != nil {
		return nil, fmt.Errorf("canonical createEvent response: %w", err)
	}
	status, err := event.GetString("status")
	if err != nil {
		return nil, fmt.Errorf("canonical createEvent response: %w", err)
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("canonical createEvent response: unknown time zone %q", zone)
	}
	start := time.UnixMilli(epochMillis).In(loc)

	b := appfn.NewDataBuilder(event.QualifiedName())
	b.SetString("id", id)
	b.SetString("title", title)
	b.SetLong("year", int64(start.Year()))
	b.SetLong("month", int64(start.Month()))
	b.SetLong("day", int64(start.Day()))
	b.SetLong("hour", int64(start.Hour()))
	b.SetLong("minute", int64(start.Minute()))
	b.SetString("timeZone", zone)
	b.SetLong("status", statusToLegacy(status))

	out := appfn.NewDataBuilder("")
	out.SetData(appfn.ReturnValueKey, b.Build())
	return out.Build(), nil
}

// NewTranslatorRegistry builds the registry covering both evolved contracts.
func NewTranslatorRegistry() *appfn.TranslatorRegistry {
	r := appfn.NewTranslatorRegistry()
	r.Register(CreateNoteSchema.Category, CreateNoteSchema.Name, CreateNoteSchema.Version, CreateNoteTranslator{})
	r.Register(CreateEventSchema.Category, CreateEventSchema.Name, CreateEventSchema.Version, CreateEventTranslator{})
	return r
}
