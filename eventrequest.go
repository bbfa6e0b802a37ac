// SPDX-License-Identifier: GPL-3.0-or-later

package jdwp

import "context"

// EventRequest command set.
const (
	eventRequestCommandSet = uint8(15)

	eventRequestSet                 = uint8(1)
	eventRequestClear               = uint8(2)
	eventRequestClearAllBreakpoints = uint8(3)
)

// Modifier kinds defined by the protocol.
const (
	modKindCount         = uint8(1)
	modKindThreadOnly    = uint8(3)
	modKindClassOnly     = uint8(4)
	modKindClassMatch    = uint8(5)
	modKindClassExclude  = uint8(6)
	modKindLocationOnly  = uint8(7)
	modKindExceptionOnly = uint8(8)
	modKindStep          = uint8(10)
)

// EventModifier restricts when an event request fires. Modifiers are
// encoded as a 1-byte kind followed by a kind-specific body.
type EventModifier interface {
	modKind() uint8
	appendBody(w *wireWriter)
}

// CountModifier fires the event after count occurrences, then never
// again.
type CountModifier struct {
	// Count is the number of occurrences to skip plus one.
	Count int32
}

func (m CountModifier) modKind() uint8 { return modKindCount }

func (m CountModifier) appendBody(w *wireWriter) {
	w.I32(m.Count)
}

// ThreadOnlyModifier restricts the event to one thread.
type ThreadOnlyModifier struct {
	// Thread is the only thread reported.
	Thread ThreadID
}

func (m ThreadOnlyModifier) modKind() uint8 { return modKindThreadOnly }

func (m ThreadOnlyModifier) appendBody(w *wireWriter) {
	w.ThreadID(m.Thread)
}

// ClassOnlyModifier restricts the event to locations in the given
// reference type and its subtypes.
type ClassOnlyModifier struct {
	// Type is the reference type.
	Type ReferenceTypeID
}

func (m ClassOnlyModifier) modKind() uint8 { return modKindClassOnly }

func (m ClassOnlyModifier) appendBody(w *wireWriter) {
	w.ReferenceTypeID(m.Type)
}

// ClassMatchModifier restricts the event to classes whose name matches
// the pattern, which may lead or trail with "*".
type ClassMatchModifier struct {
	// Pattern is the class name pattern.
	Pattern string
}

func (m ClassMatchModifier) modKind() uint8 { return modKindClassMatch }

func (m ClassMatchModifier) appendBody(w *wireWriter) {
	w.String(m.Pattern)
}

// ClassExcludeModifier excludes classes whose name matches the pattern.
type ClassExcludeModifier struct {
	// Pattern is the class name pattern.
	Pattern string
}

func (m ClassExcludeModifier) modKind() uint8 { return modKindClassExclude }

func (m ClassExcludeModifier) appendBody(w *wireWriter) {
	w.String(m.Pattern)
}

// LocationOnlyModifier restricts the event to one code location. This
// is the modifier that turns a breakpoint request into a breakpoint.
type LocationOnlyModifier struct {
	// Location is the code location.
	Location Location
}

func (m LocationOnlyModifier) modKind() uint8 { return modKindLocationOnly }

func (m LocationOnlyModifier) appendBody(w *wireWriter) {
	w.Location(m.Location)
}

// ExceptionOnlyModifier restricts an exception event by exception type
// and by whether the exception is caught.
type ExceptionOnlyModifier struct {
	// Type restricts to the given exception type and its subtypes;
	// zero means any exception type.
	Type ReferenceTypeID

	// Caught reports caught exceptions.
	Caught bool

	// Uncaught reports uncaught exceptions.
	Uncaught bool
}

func (m ExceptionOnlyModifier) modKind() uint8 { return modKindExceptionOnly }

func (m ExceptionOnlyModifier) appendBody(w *wireWriter) {
	w.ReferenceTypeID(m.Type)
	w.Bool(m.Caught)
	w.Bool(m.Uncaught)
}

// StepModifier restricts a single-step event to one thread with the
// given step granularity and depth.
type StepModifier struct {
	// Thread is the stepped thread.
	Thread ThreadID

	// Size is the step granularity.
	Size StepSize

	// Depth is the step depth.
	Depth StepDepth
}

func (m StepModifier) modKind() uint8 { return modKindStep }

func (m StepModifier) appendBody(w *wireWriter) {
	w.ThreadID(m.Thread)
	w.I32(int32(m.Size))
	w.I32(int32(m.Depth))
}

// SetEventRequest issues EventRequest.Set, returning the request ID the
// VM will stamp on matching events.
//
// Register an interest via [*Conn.OnEvent] with the returned ID, or
// rely on a wildcard handler to catch events racing the registration.
func (c *Conn) SetEventRequest(ctx context.Context, kind EventKind,
	policy SuspendPolicy, modifiers ...EventModifier) (uint32, error) {
	w := newWireWriter(c.IDSizes())
	w.U8(uint8(kind))
	w.U8(uint8(policy))
	w.U32(uint32(len(modifiers)))
	for _, modifier := range modifiers {
		w.U8(modifier.modKind())
		modifier.appendBody(w)
	}
	body, err := c.Send(ctx, eventRequestCommandSet, eventRequestSet, w.Bytes())
	if err != nil {
		return 0, err
	}
	r := newWireReader(c.IDSizes(), body)
	requestID := r.U32()
	if err := r.Err(); err != nil {
		return 0, err
	}
	return requestID, nil
}

// ClearEventRequest issues EventRequest.Clear. Events already queued
// for the request may still arrive.
func (c *Conn) ClearEventRequest(ctx context.Context, kind EventKind, requestID uint32) error {
	w := newWireWriter(c.IDSizes())
	w.U8(uint8(kind))
	w.U32(requestID)
	_, err := c.Send(ctx, eventRequestCommandSet, eventRequestClear, w.Bytes())
	return err
}

// ClearAllBreakpoints issues EventRequest.ClearAllBreakpoints.
func (c *Conn) ClearAllBreakpoints(ctx context.Context) error {
	_, err := c.Send(ctx, eventRequestCommandSet, eventRequestClearAllBreakpoints, nil)
	return err
}
