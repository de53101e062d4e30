// © Copyright 2025-2026, Warting - https://warting.se
// SPDX-License-Identifier: Apache-2.0

package conformance

import (
	"github.com/warting/appfunctions-go/appfn"
)

// Function ids registered by this package.
const (
	CreateNoteID  = "com.example.notes#createNote"
	GetNoteID     = "com.example.notes#getNote"
	DeleteNoteID  = "com.example.notes#deleteNote"
	CreateEventID = "com.example.calendar#createEvent"
	EchoAllID     = "com.example.test#echoAll"
	DisabledFnID  = "com.example.test#disabledFn"
	RaiseErrorID  = "com.example.test#raiseError"
	LogAndAddID   = "com.example.test#logAndAdd"
)

// Published contract identities. The notes and calendar contracts are at
// version 2; version-1 callers go through the translators in translate.go.
var (
	CreateNoteSchema  = appfn.SchemaIdentity{Category: "notes", Name: "createNote", Version: 2}
	CreateEventSchema = appfn.SchemaIdentity{Category: "calendar", Name: "createEvent", Version: 2}
)

// Component names in the notes inventory.
const (
	noteComponent       = "Note"
	attachmentComponent = "Attachment"
)

func str(nullable bool) *appfn.PrimitiveType {
	return &appfn.PrimitiveType{Kind: appfn.PrimitiveString, IsNullable: nullable}
}

func long(nullable bool) *appfn.PrimitiveType {
	return &appfn.PrimitiveType{Kind: appfn.PrimitiveLong, IsNullable: nullable}
}

// noteComponents is the shared shape table for the notes functions.
func noteComponents() appfn.Components {
	return appfn.Components{
		attachmentComponent: &appfn.ObjectType{
			QualifiedName: "com.example.notes.Attachment",
			Properties: []appfn.Property{
				{Name: "uri", Type: str(false)},
				{Name: "displayName", Type: str(true)},
			},
			Required: []string{"uri"},
		},
		noteComponent: &appfn.ObjectType{
			QualifiedName: "com.example.notes.Note",
			Properties: []appfn.Property{
				{Name: "id", Type: str(false)},
				{Name: "title", Type: str(false)},
				{Name: "content", Type: str(true)},
				{Name: "externalUuid", Type: str(true)},
				{Name: "attachments", Type: &appfn.ArrayType{
					Item: &appfn.ReferenceType{Name: attachmentComponent},
				}},
			},
			Required: []string{"id", "title"},
		},
	}
}

func createNoteMetadata() *appfn.FunctionMetadata {
	return &appfn.FunctionMetadata{
		ID:               CreateNoteID,
		EnabledByDefault: true,
		Schema:           &CreateNoteSchema,
		Parameters: &appfn.ObjectType{
			Properties: []appfn.Property{
				{Name: "title", Type: str(false)},
				{Name: "content", Type: str(true)},
				{Name: "externalUuid", Type: str(true)},
				{Name: "attachments", Type: &appfn.ArrayType{
					Item: &appfn.ReferenceType{Name: attachmentComponent},
					IsNullable: true,
				}},
			},
			Required: []string{"title"},
		},
		Response:   &appfn.ReferenceType{Name: noteComponent},
		Components: noteComponents(),
	}
}

func getNoteMetadata() *appfn.FunctionMetadata {
	return &appfn.FunctionMetadata{
		ID:               GetNoteID,
		EnabledByDefault: true,
		Parameters: &appfn.ObjectType{
			Properties: []appfn.Property{
				{Name: "id", Type: str(false)},
			},
			Required: []string{"id"},
		},
		Response:   &appfn.ReferenceType{Name: noteComponent},
		Components: noteComponents(),
	}
}

func deleteNoteMetadata() *appfn.FunctionMetadata {
	return &appfn.FunctionMetadata{
		ID:               DeleteNoteID,
		EnabledByDefault: true,
		Parameters: &appfn.ObjectType{
			Properties: []appfn.Property{
				{Name: "id", Type: str(false)},
			},
			Required: []string{"id"},
		},
		Response: &appfn.PrimitiveType{Kind: appfn.PrimitiveUnit},
	}
}

func createEventMetadata() *appfn.FunctionMetadata {
	return &appfn.FunctionMetadata{
		ID:               CreateEventID,
		EnabledByDefault: true,
		Schema:           &CreateEventSchema,
		Parameters: &appfn.ObjectType{
			Properties: []appfn.Property{
				{Name: "title", Type: str(false)},
				{Name: "startEpochMillis", Type: long(false)},
				{Name: "timeZone", Type: str(false)},
				{Name: "status", Type: str(true)},
			},
			Required: []string{"title", "startEpochMillis", "timeZone"},
		},
		Response: &appfn.ObjectType{
			QualifiedName: "com.example.calendar.Event",
			Properties: []appfn.Property{
				{Name: "id", Type: str(false)},
				{Name: "title", Type: str(false)},
				{Name: "startEpochMillis", Type: long(false)},
				{Name: "timeZone", Type: str(false)},
				{Name: "status", Type: str(false)},
			},
			Required: []string{"id", "title", "startEpochMillis", "timeZone", "status"},
		},
	}
}

func echoAllMetadata() *appfn.FunctionMetadata {
	return &appfn.FunctionMetadata{
		ID:               EchoAllID,
		EnabledByDefault: true,
		Parameters: &appfn.ObjectType{
			Properties: []appfn.Property{
				{Name: "flag", Type: &appfn.PrimitiveType{Kind: appfn.PrimitiveBool}},
				{Name: "count", Type: long(false)},
				{Name: "small", Type: &appfn.PrimitiveType{Kind: appfn.PrimitiveInt}},
				{Name: "ratio", Type: &appfn.PrimitiveType{Kind: appfn.PrimitiveDouble}},
				{Name: "label", Type: str(false)},
				{Name: "payload", Type: &appfn.PrimitiveType{Kind: appfn.PrimitiveBytes, IsNullable: true}},
				{Name: "tags", Type: &appfn.ArrayType{Item: str(false), IsNullable: true}},
				{Name: "scores", Type: &appfn.ArrayType{Item: long(false), IsNullable: true}},
			},
			Required: []string{"flag", "count", "small", "ratio", "label"},
		},
		Response: &appfn.PrimitiveType{Kind: appfn.PrimitiveString},
	}
}

func disabledFnMetadata() *appfn.FunctionMetadata {
	return &appfn.FunctionMetadata{
		ID:               DisabledFnID,
		EnabledByDefault: false,
		Parameters:       &appfn.ObjectType{},
		Response:         &appfn.PrimitiveType{Kind: appfn.PrimitiveUnit},
	}
}

func raiseErrorMetadata() *appfn.FunctionMetadata {
	return &appfn.FunctionMetadata{
		ID:               RaiseErrorID,
		EnabledByDefault: true,
		Parameters: &appfn.ObjectType{
			Properties: []appfn.Property{
				{Name: "code", Type: long(false)},
				{Name: "message", Type: str(false)},
			},
			Required: []string{"code", "message"},
		},
		Response: &appfn.PrimitiveType{Kind: appfn.PrimitiveUnit},
	}
}

func logAndAddMetadata() *appfn.FunctionMetadata {
	return &appfn.FunctionMetadata{
		ID:               LogAndAddID,
		EnabledByDefault: true,
		Parameters: &appfn.ObjectType{
			Properties: []appfn.Property{
				{Name: "a", Type: long(false)},
				{Name: "b", Type: long(false)},
			},
			Required: []string{"a", "b"},
		},
		Response: &appfn.PrimitiveType{Kind: appfn.PrimitiveLong},
	}
}

// NewInventory builds the conformance inventory.
func NewInventory() (*appfn.Inventory, error) {
	return appfn.NewInventory(
		createNoteMetadata(),
		getNoteMetadata(),
		deleteNoteMetadata(),
		createEventMetadata(),
		echoAllMetadata(),
		disabledFnMetadata(),
		raiseErrorMetadata(),
		logAndAddMetadata(),
	)
}
