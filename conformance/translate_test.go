// © Copyright 2025-2026, Warting - https://warting.se
// SPDX-License-Identifier: Apache-2.0

package conformance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warting/appfunctions-go/appfn"
)

func TestCreateNoteTranslator_Upgrade(t *testing.T) {
	legacy := appfn.NewDataBuilder("").
		SetString("title", "groceries").
		SetString("content", "milk").
		SetString("externalId", "ext-1").
		Build()

	got, err := CreateNoteTranslator{}.UpgradeRequest(legacy)
	require.NoError(t, err)

	title, err := got.GetString("title")
	require.NoError(t, err)
	assert.Equal(t, "groceries", title)

	// externalId moved under its v2 name.
	uuid, err := got.GetString("externalUuid")
	require.NoError(t, err)
	assert.Equal(t, "ext-1", uuid)
	assert.False(t, got.Has("externalId"))

	// v1 cannot express attachments; the canonical shape gets an empty list.
	attachments, err := got.GetDataList("attachments")
	require.NoError(t, err)
	assert.Empty(t, attachments)
}

func TestCreateNoteTranslator_UpgradeMissingTitle(t *testing.T) {
	legacy := appfn.NewDataBuilder("").SetString("content", "milk").Build()
	_, err := CreateNoteTranslator{}.UpgradeRequest(legacy)
	assert.Error(t, err)
}

func TestCreateNoteTranslator_Downgrade(t *testing.T) {
	note := appfn.NewDataBuilder("com.example.notes.Note").
		SetString("id", "note-1").
		SetString("title", "groceries").
		SetString("externalUuid", "ext-1").
		SetDataList("attachments", []*appfn.Data{
			appfn.NewDataBuilder("com.example.notes.Attachment").SetString("uri", "content://1").Build(),
		}).
		Build()
	canonical := appfn.NewDataBuilder("").SetData(appfn.ReturnValueKey, note).Build()

	got, err := CreateNoteTranslator{}.DowngradeResponse(canonical)
	require.NoError(t, err)

	legacyNote, err := got.GetData(appfn.ReturnValueKey)
	require.NoError(t, err)

	id, err := legacyNote.GetString("id")
	require.NoError(t, err)
	assert.Equal(t, "note-1", id)

	externalID, err := legacyNote.GetString("externalId")
	require.NoError(t, err)
	assert.Equal(t, "ext-1", externalID)
	assert.False(t, legacyNote.Has("externalUuid"))

	// Attachments have no v1 counterpart and are dropped.
	assert.False(t, legacyNote.Has("attachments"))
}

func TestCreateEventTranslator_Upgrade(t *testing.T) {
	legacy := appfn.NewDataBuilder("").
		SetString("title", "standup").
		SetLong("year", 2026).
		SetLong("month", 8).
		SetLong("day", 23).
		SetLong("hour", 9).
		SetLong("minute", 30).
		SetString("timeZone", "America/New_York").
		SetLong("status", 0).
		Build()

	got, err := CreateEventTranslator{}.UpgradeRequest(legacy)
	require.NoError(t, err)

	millis, err := got.GetLong("startEpochMillis")
	require.NoError(t, err)
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	want := time.Date(2026, time.August, 23, 9, 30, 0, 0, loc).UnixMilli()
	assert.Equal(t, want, millis)

	status, err := got.GetString("status")
	require.NoError(t, err)
	assert.Equal(t, "confirmed", status)
}

func TestCreateEventTranslator_UpgradeUnknownStatusDegrades(t *testing.T) {
	legacy := appfn.NewDataBuilder("").
		SetString("title", "standup").
		SetLong("year", 2026).
		SetLong("month", 1).
		SetLong("day", 1).
		SetLong("hour", 0).
		SetLong("minute", 0).
		SetString("timeZone", "UTC").
		SetLong("status", 42).
		Build()

	got, err := CreateEventTranslator{}.UpgradeRequest(legacy)
	require.NoError(t, err)

	status, err := got.GetString("status")
	require.NoError(t, err)
	assert.Equal(t, "tentative", status)
}

func TestCreateEventTranslator_UpgradeBadZone(t *testing.T) {
	legacy := appfn.NewDataBuilder("").
		SetString("title", "standup").
		SetLong("year", 2026).
		SetLong("month", 1).
		SetLong("day", 1).
		SetLong("hour", 0).
		SetLong("minute", 0).
		SetString("timeZone", "Mars/Olympus").
		Build()

	_, err := CreateEventTranslator{}.UpgradeRequest(legacy)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "time zone")
}

func TestCreateEventTranslator_Downgrade(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Stockholm")
	require.NoError(t, err)
	start := time.Date(2026, time.December, 24, 15, 0, 0, 0, loc)

	event := appfn.NewDataBuilder("com.example.calendar.Event").
		SetString("id", "event-1").
		SetString("title", "julbord").
		SetLong("startEpochMillis", start.UnixMilli()).
		SetString("timeZone", "Europe/Stockholm").
		SetString("status", "cancelled").
		Build()
	canonical := appfn.NewDataBuilder("").SetData(appfn.ReturnValueKey, event).Build()

	got, err := CreateEventTranslator{}.DowngradeResponse(canonical)
	require.NoError(t, err)

	legacyEvent, err := got.GetData(appfn.ReturnValueKey)
	require.NoError(t, err)

	for key, want := range map[string]int64{
		"year": 2026, "month": 12, "day": 24, "hour": 15, "minute": 0, "status": 2,
	} {
		v, err := legacyEvent.GetLong(key)
		require.NoError(t, err, key)
		assert.Equal(t, want, v, key)
	}
}

func TestCreateEventTranslator_RoundTripInstant(t *testing.T) {
	legacy := appfn.NewDataBuilder("").
		SetString("title", "standup").
		SetLong("year", 2026).
		SetLong("month", 8).
		SetLong("day", 23).
		SetLong("hour", 9).
		SetLong("minute", 30).
		SetString("timeZone", "Asia/Tokyo").
		Build()

	upgraded, err := CreateEventTranslator{}.UpgradeRequest(legacy)
	require.NoError(t, err)
	millis, err := upgraded.GetLong("startEpochMillis")
	require.NoError(t, err)

	event := appfn.NewDataBuilder("com.example.calendar.Event").
		SetString("id", "event-1").
		SetString("title", "standup").
		SetLong("startEpochMillis", millis).
		SetString("timeZone", "Asia/Tokyo").
		SetString("status", "confirmed").
		Build()
	canonical := appfn.NewDataBuilder("").SetData(appfn.ReturnValueKey, event).Build()

	got, err := CreateEventTranslator{}.DowngradeResponse(canonical)
	require.NoError(t, err)
	legacyEvent, err := got.GetData(appfn.ReturnValueKey)
	require.NoError(t, err)

	for key, want := range map[string]int64{
		"year": 2026, "month": 8, "day": 23, "hour": 9, "minute": 30,
	} {
		v, err := legacyEvent.GetLong(key)
		require.NoError(t, err, key)
		assert.Equal(t, want, v, key)
	}
}

func TestNewTranslatorRegistry(t *testing.T) {
	r := NewTranslatorRegistry()
	assert.Equal(t, 2, r.Len())

	_, ok := r.Select(appfn.SchemaIdentity{Category: "notes", Name: "createNote", Version: 1})
	assert.True(t, ok)
	_, ok = r.Select(appfn.SchemaIdentity{Category: "calendar", Name: "createEvent", Version: 2})
	assert.False(t, ok)
}
