// SPDX-License-Identifier: GPL-3.0-or-later

package jdwp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ThreadName fetches the thread's name.
func TestThreadName(t *testing.T) {
	vm := newVMStub()
	vm.Handle = func(pkt *Packet) {
		r := newWireReader(DefaultIDSizes(), pkt.Payload)
		assert.Equal(t, ThreadID(0xCAFE), r.ThreadID())
		w := newWireWriter(DefaultIDSizes())
		w.String("main")
		vm.pushReply(pkt.ID, w.Bytes())
	}
	conn := NewConn(NewConfig(), vm.Conn(), DefaultSLogger())
	defer conn.Close()

	name, err := conn.ThreadName(context.Background(), 0xCAFE)
	require.NoError(t, err)
	assert.Equal(t, "main", name)
}

// ThreadStatus decodes the run and suspend statuses.
func TestThreadStatus(t *testing.T) {
	vm := newVMStub()
	vm.Handle = func(pkt *Packet) {
		w := newWireWriter(DefaultIDSizes())
		w.I32(ThreadStatusRunning)
		w.I32(SuspendStatusSuspended)
		vm.pushReply(pkt.ID, w.Bytes())
	}
	conn := NewConn(NewConfig(), vm.Conn(), DefaultSLogger())
	defer conn.Close()

	status, err := conn.ThreadStatus(context.Background(), 0xCAFE)
	require.NoError(t, err)
	assert.Equal(t, ThreadStatusRunning, status.ThreadStatus)
	assert.True(t, status.Suspended())
}

// ThreadSuspendCount decodes the nesting depth.
func TestThreadSuspendCount(t *testing.T) {
	vm := newVMStub()
	vm.Handle = func(pkt *Packet) {
		w := newWireWriter(DefaultIDSizes())
		w.I32(2)
		vm.pushReply(pkt.ID, w.Bytes())
	}
	conn := NewConn(NewConfig(), vm.Conn(), DefaultSLogger())
	defer conn.Close()

	count, err := conn.ThreadSuspendCount(context.Background(), 0xCAFE)
	require.NoError(t, err)
	assert.Equal(t, int32(2), count)
}

// Frames encodes thread, start, and length and decodes the frame list.
func TestFrames(t *testing.T) {
	location := Location{Tag: TypeTagClass, Class: 0xAA, Method: 0xBB, Index: 12}
	vm := newVMStub()
	vm.Handle = func(pkt *Packet) {
		r := newWireReader(DefaultIDSizes(), pkt.Payload)
		assert.Equal(t, ThreadID(0xCAFE), r.ThreadID())
		assert.Equal(t, int32(0), r.I32())
		assert.Equal(t, int32(-1), r.I32())
		w := newWireWriter(DefaultIDSizes())
		w.U32(1)
		w.FrameID(0x1000)
		w.Location(location)
		vm.pushReply(pkt.ID, w.Bytes())
	}
	conn := NewConn(NewConfig(), vm.Conn(), DefaultSLogger())
	defer conn.Close()

	frames, err := conn.Frames(context.Background(), 0xCAFE, 0, -1)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, FrameID(0x1000), frames[0].ID)
	assert.Equal(t, location, frames[0].Location)
}

// FrameValues encodes the slot/tag pairs and decodes the tagged values.
func TestFrameValues(t *testing.T) {
	vm := newVMStub()
	vm.Handle = func(pkt *Packet) {
		r := newWireReader(DefaultIDSizes(), pkt.Payload)
		assert.Equal(t, ThreadID(0xCAFE), r.ThreadID())
		assert.Equal(t, FrameID(0x1000), r.FrameID())
		assert.Equal(t, uint32(2), r.U32())
		assert.Equal(t, uint32(0), r.U32())
		assert.Equal(t, TagObject, Tag(r.U8()))
		assert.Equal(t, uint32(1), r.U32())
		assert.Equal(t, TagInt, Tag(r.U8()))
		require.NoError(t, r.Err())

		w := newWireWriter(DefaultIDSizes())
		w.U32(2)
		w.TaggedValue(NewStringValue(0x51))
		w.TaggedValue(NewIntValue(9))
		vm.pushReply(pkt.ID, w.Bytes())
	}
	conn := NewConn(NewConfig(), vm.Conn(), DefaultSLogger())
	defer conn.Close()

	values, err := conn.FrameValues(context.Background(), 0xCAFE, 0x1000, []SlotRequest{
		{Slot: 0, Tag: TagObject},
		{Slot: 1, Tag: TagInt},
	})
	require.NoError(t, err)
	assert.Equal(t, []TaggedValue{NewStringValue(0x51), NewIntValue(9)}, values)
}
