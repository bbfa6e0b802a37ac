// SPDX-License-Identifier: GPL-3.0-or-later

package jdwp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The decoder consumes each record's exact wire length for every event
// kind the VM may ever send, so a record in the middle of a composite
// packet cannot desynchronise the ones after it.
func TestDecodeCompositeEvent(t *testing.T) {
	location := Location{Tag: TypeTagClass, Class: 0xAA, Method: 0xBB, Index: 4}
	catch := Location{Tag: TypeTagClass, Class: 0xCC, Method: 0xDD, Index: 9}

	tests := []struct {
		// name describes what this test case verifies.
		name string

		// encode writes the record under test.
		encode func(w *wireWriter)

		// want is the expected decoded event.
		want Event
	}{
		{
			name: "single step",
			encode: func(w *wireWriter) {
				w.U8(uint8(EventKindSingleStep))
				w.U32(3)
				w.ThreadID(0x10)
				w.Location(location)
			},
			want: &SingleStepEvent{Request: 3, Thread: 0x10, Location: location},
		},

		{
			name: "breakpoint",
			encode: func(w *wireWriter) {
				w.U8(uint8(EventKindBreakpoint))
				w.U32(1)
				w.ThreadID(0xCAFE)
				w.Location(location)
			},
			want: &BreakpointEvent{Request: 1, Thread: 0xCAFE, Location: location},
		},

		{
			name: "frame pop",
			encode: func(w *wireWriter) {
				w.U8(uint8(EventKindFramePop))
				w.U32(2)
				w.ThreadID(0x10)
				w.Location(location)
			},
			want: &FramePopEvent{Request: 2, Thread: 0x10, Location: location},
		},

		{
			name: "exception",
			encode: func(w *wireWriter) {
				w.U8(uint8(EventKindException))
				w.U32(4)
				w.ThreadID(0x10)
				w.Location(location)
				w.U8(uint8(TagObject))
				w.ObjectID(0xE0)
				w.Location(catch)
			},
			want: &ExceptionEvent{
				Request:       4,
				Thread:        0x10,
				ThrowLocation: location,
				ExceptionTag:  TagObject,
				Exception:     0xE0,
				CatchLocation: catch,
			},
		},

		{
			name: "user defined",
			encode: func(w *wireWriter) {
				w.U8(uint8(EventKindUserDefined))
				w.U32(5)
			},
			want: &UserDefinedEvent{Request: 5},
		},

		{
			name: "thread start",
			encode: func(w *wireWriter) {
				w.U8(uint8(EventKindThreadStart))
				w.U32(0)
				w.ThreadID(0x77)
			},
			want: &ThreadStartEvent{Request: 0, Thread: 0x77},
		},

		{
			name: "thread death",
			encode: func(w *wireWriter) {
				w.U8(uint8(EventKindThreadDeath))
				w.U32(0)
				w.ThreadID(0x77)
			},
			want: &ThreadDeathEvent{Request: 0, Thread: 0x77},
		},

		{
			name: "class prepare",
			encode: func(w *wireWriter) {
				w.U8(uint8(EventKindClassPrepare))
				w.U32(6)
				w.ThreadID(0x10)
				w.U8(uint8(TypeTagClass))
				w.ReferenceTypeID(0xAA)
				w.String("Landroid/app/Activity;")
				w.I32(ClassStatusPrepared)
			},
			want: &ClassPrepareEvent{
				Request:   6,
				Thread:    0x10,
				TypeTag:   TypeTagClass,
				Type:      0xAA,
				Signature: "Landroid/app/Activity;",
				Status:    ClassStatusPrepared,
			},
		},

		{
			name: "class unload",
			encode: func(w *wireWriter) {
				w.U8(uint8(EventKindClassUnload))
				w.U32(7)
				w.ThreadID(0x10)
				w.String("Lcom/example/Gone;")
			},
			want: &ClassUnloadEvent{Request: 7, Thread: 0x10, Signature: "Lcom/example/Gone;"},
		},

		{
			name: "field access",
			encode: func(w *wireWriter) {
				w.U8(uint8(EventKindFieldAccess))
				w.U32(8)
				w.ThreadID(0x10)
				w.U8(uint8(TypeTagClass))
				w.ReferenceTypeID(0xAA)
				w.FieldID(0xF1)
				w.U8(uint8(TagObject))
				w.ObjectID(0xE0)
				w.Location(location)
			},
			want: &FieldAccessEvent{
				Request:   8,
				Thread:    0x10,
				TypeTag:   TypeTagClass,
				Type:      0xAA,
				Field:     0xF1,
				ObjectTag: TagObject,
				Object:    0xE0,
				Location:  location,
			},
		},

		{
			name: "field modification",
			encode: func(w *wireWriter) {
				w.U8(uint8(EventKindFieldModification))
				w.U32(9)
				w.ThreadID(0x10)
				w.U8(uint8(TypeTagClass))
				w.ReferenceTypeID(0xAA)
				w.FieldID(0xF1)
				w.U8(uint8(TagObject))
				w.ObjectID(0xE0)
				w.Location(location)
				w.TaggedValue(NewIntValue(41))
			},
			want: &FieldModificationEvent{
				Request:   9,
				Thread:    0x10,
				TypeTag:   TypeTagClass,
				Type:      0xAA,
				Field:     0xF1,
				ObjectTag: TagObject,
				Object:    0xE0,
				Location:  location,
				Value:     NewIntValue(41),
			},
		},

		{
			name: "exception catch",
			encode: func(w *wireWriter) {
				w.U8(uint8(EventKindExceptionCatch))
				w.U32(10)
				w.ThreadID(0x10)
				w.Location(location)
				w.Location(catch)
			},
			want: &ExceptionCatchEvent{Request: 10, Thread: 0x10, Location: location, CatchLocation: catch},
		},

		{
			name: "method entry",
			encode: func(w *wireWriter) {
				w.U8(uint8(EventKindMethodEntry))
				w.U32(11)
				w.ThreadID(0x10)
				w.Location(location)
			},
			want: &MethodEntryEvent{Request: 11, Thread: 0x10, Location: location},
		},

		{
			name: "method exit with return value",
			encode: func(w *wireWriter) {
				w.U8(uint8(EventKindMethodExitWithReturnValue))
				w.U32(12)
				w.ThreadID(0x10)
				w.Location(location)
				w.TaggedValue(NewLongValue(-9))
			},
			want: &MethodExitWithReturnValueEvent{
				Request:  12,
				Thread:   0x10,
				Location: location,
				Return:   NewLongValue(-9),
			},
		},

		{
			name: "monitor contended enter",
			encode: func(w *wireWriter) {
				w.U8(uint8(EventKindMonitorContendedEnter))
				w.U32(13)
				w.ThreadID(0x10)
				w.U8(uint8(TypeTagClass))
				w.ReferenceTypeID(0xAA)
				w.Location(location)
			},
			want: &MonitorEvent{
				Op:       EventKindMonitorContendedEnter,
				Request:  13,
				Thread:   0x10,
				TypeTag:  TypeTagClass,
				Type:     0xAA,
				Location: location,
			},
		},

		{
			name: "vm start",
			encode: func(w *wireWriter) {
				w.U8(uint8(EventKindVMStart))
				w.U32(0)
				w.ThreadID(0x1)
			},
			want: &VMStartEvent{Request: 0, Thread: 0x1},
		},

		{
			name: "vm death",
			encode: func(w *wireWriter) {
				w.U8(uint8(EventKindVMDeath))
				w.U32(0)
			},
			want: &VMDeathEvent{Request: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWireWriter(DefaultIDSizes())
			w.U8(uint8(SuspendPolicyAll))
			w.U32(1)
			tt.encode(w)

			composite, err := decodeCompositeEvent(DefaultIDSizes(), w.Bytes())
			require.NoError(t, err)
			assert.Equal(t, SuspendPolicyAll, composite.SuspendPolicy)
			require.Len(t, composite.Events, 1)
			assert.Equal(t, tt.want, composite.Events[0])
		})
	}
}

// Multiple records in one packet decode in wire order, each advancing
// the offset by exactly its own length.
func TestDecodeCompositeEventMultiple(t *testing.T) {
	location := Location{Tag: TypeTagClass, Class: 0xAA, Method: 0xBB}

	w := newWireWriter(DefaultIDSizes())
	w.U8(uint8(SuspendPolicyEventThread))
	w.U32(3)
	payload := w.Bytes()
	payload = append(payload, encodeThreadRecord(EventKindThreadStart, 0, 5)...)
	payload = append(payload, encodeBreakpointRecord(2, 0xCAFE, location)...)
	payload = append(payload, encodeThreadRecord(EventKindThreadDeath, 0, 6)...)

	composite, err := decodeCompositeEvent(DefaultIDSizes(), payload)
	require.NoError(t, err)
	require.Len(t, composite.Events, 3)
	assert.Equal(t, EventKindThreadStart, composite.Events[0].Kind())
	assert.Equal(t, EventKindBreakpoint, composite.Events[1].Kind())
	assert.Equal(t, EventKindThreadDeath, composite.Events[2].Kind())
}

// Unknown kinds and trailing garbage are malformed, since lenient
// skipping would desynchronise the stream.
func TestDecodeCompositeEventErrors(t *testing.T) {
	tests := []struct {
		// name describes what this test case verifies.
		name string

		// payload is the malformed composite payload.
		payload []byte
	}{
		{
			name:    "unknown event kind",
			payload: []byte{2, 0, 0, 0, 1, 200, 0, 0, 0, 1},
		},

		{
			name:    "truncated record",
			payload: []byte{2, 0, 0, 0, 1, 2, 0, 0, 0, 1, 0xCA},
		},

		{
			name: "trailing bytes",
			payload: append(append([]byte{0, 0, 0, 0, 1},
				encodeThreadRecord(EventKindThreadStart, 0, 5)...), 0xFF),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			composite, err := decodeCompositeEvent(DefaultIDSizes(), tt.payload)
			var malformed *MalformedPacketError
			require.ErrorAs(t, err, &malformed)
			assert.Nil(t, composite)
		})
	}
}
