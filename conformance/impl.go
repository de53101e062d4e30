// © Copyright 2025-2026, Warting - https://warting.se
// SPDX-License-Identifier: Apache-2.0

package conformance

import (
	"fmt"

	"github.com/warting/appfunctions-go/appfn"
)

// Service holds the in-memory state behind the conformance functions.
// Handlers run on the dispatcher's serial executor, so the maps need no
// locking.
type Service struct {
	notes     map[string]*appfn.Data
	events    map[string]*appfn.Data
	nextNote  int
	nextEvent int
}

// NewService creates an empty conformance service.
func NewService() *Service {
	return &Service{
		notes:  make(map[string]*appfn.Data),
		events: make(map[string]*appfn.Data),
	}
}

// Register binds every conformance handler and installs the contract
// translators.
func (s *Service) Register(d *appfn.Dispatcher) error {
	handlers := map[string]appfn.Handler{
		CreateNoteID:  s.createNote,
		GetNoteID:     s.getNote,
		DeleteNoteID:  s.deleteNote,
		CreateEventID: s.createEvent,
		EchoAllID:     s.echoAll,
		DisabledFnID:  s.disabledFn,
		RaiseErrorID:  s.raiseError,
		LogAndAddID:   s.logAndAdd,
	}
	for id, h := range handlers {
		if err := d.RegisterHandler(id, h); err != nil {
			return err
		}
	}
	d.SetTranslators(NewTranslatorRegistry())
	return nil
}

func (s *Service) createNote(cc *appfn.CallContext, params map[string]any) (any, error) {
	title := params["title"].(string)

	s.nextNote++
	id := fmt.Sprintf("note-%d", s.nextNote)

	b := appfn.NewDataBuilder("com.example.notes.Note")
	b.SetString("id", id)
	b.SetString("title", title)
	if content, ok := params["content"].(string); ok {
		b.SetString("content", content)
	}
	if externalUUID, ok := params["externalUuid"].(string); ok {
		b.SetString("externalUuid", externalUUID)
	}
	attachments, _ := params["attachments"].([]*appfn.Data)
	b.SetDataList("attachments", attachments)

	note := b.Build()
	s.notes[id] = note
	return note, nil
}

func (s *Service) getNote(cc *appfn.CallContext, params map[string]any) (any, error) {
	id := params["id"].(string)
	note, ok := s.notes[id]
	if !ok {
		return nil, appfn.NewFunctionError(appfn.ErrorElementNotFound, "note %q does not exist", id)
	}
	return note, nil
}

func (s *Service) deleteNote(cc *appfn.CallContext, params map[string]any) (any, error) {
	id := params["id"].(string)
	if _, ok := s.notes[id]; !ok {
		return nil, appfn.NewFunctionError(appfn.ErrorElementNotFound, "note %q does not exist", id)
	}
	delete(s.notes, id)
	return nil, nil
}

func (s *Service) createEvent(cc *appfn.CallContext, params map[string]any) (any, error) {
	title := params["title"].(string)
	start := params["startEpochMillis"].(int64)
	zone := params["timeZone"].(string)
	status, ok := params["status"].(string)
	if !ok {
		status = statusConfirmed
	}

	s.nextEvent++
	id := fmt.Sprintf("event-%d", s.nextEvent)

	b := appfn.NewDataBuilder("com.example.calendar.Event")
	b.SetString("id", id)
	b.SetString("title", title)
	b.SetLong("startEpochMillis", start)
	b.SetString("timeZone", zone)
	b.SetString("status", status)

	event := b.Build()
	s.events[id] = event
	return event, nil
}

func (s *Service) echoAll(cc *appfn.CallContext, params map[string]any) (any, error) {
	flag := params["flag"].(bool)
	count := params["count"].(int64)
	small := params["small"].(int32)
	ratio := params["ratio"].(float64)
	label := params["label"].(string)
	payload, _ := params["payload"].([]byte)
	tags, _ := params["tags"].([]string)
	scores, _ := params["scores"].([]int64)

	return fmt.Sprintf("flag=%t count=%d small=%d ratio=%g label=%s payload=%d tags=%d scores=%d",
		flag, count, small, ratio, label, len(payload), len(tags), len(scores)), nil
}

func (s *Service) disabledFn(cc *appfn.CallContext, params map[string]any) (any, error) {
	// Only reachable when a runtime override enables the function.
	return nil, nil
}

func (s *Service) raiseError(cc *appfn.CallContext, params map[string]any) (any, error) {
	code := params["code"].(int64)
	message := params["message"].(string)
	return nil, appfn.NewFunctionError(appfn.ErrorCode(code), "%s", message)
}

func (s *Service) logAndAdd(cc *appfn.CallContext, params map[string]any) (any, error) {
	a := params["a"].(int64)
	b := params["b"].(int64)
	cc.ClientLog(appfn.LogInfo, "adding", appfn.KV{Key: "a", Value: fmt.Sprint(a)}, appfn.KV{Key: "b", Value: fmt.Sprint(b)})
	return a + b, nil
}
