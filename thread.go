// SPDX-License-Identifier: GPL-3.0-or-later

package jdwp

import "context"

// ThreadReference and StackFrame command sets.
const (
	threadCommandSet = uint8(11)

	threadName         = uint8(1)
	threadSuspend      = uint8(2)
	threadResume       = uint8(3)
	threadStatus       = uint8(4)
	threadFrames       = uint8(6)
	threadSuspendCount = uint8(12)

	stackFrameCommandSet = uint8(16)
	stackFrameGetValues  = uint8(1)
)

// ThreadName issues ThreadReference.Name.
func (c *Conn) ThreadName(ctx context.Context, thread ThreadID) (string, error) {
	w := newWireWriter(c.IDSizes())
	w.ThreadID(thread)
	body, err := c.Send(ctx, threadCommandSet, threadName, w.Bytes())
	if err != nil {
		return "", err
	}
	r := newWireReader(c.IDSizes(), body)
	name := r.String()
	if err := r.Err(); err != nil {
		return "", err
	}
	return name, nil
}

// SuspendThread issues ThreadReference.Suspend. Suspensions nest: each
// one must be undone by a matching resume.
func (c *Conn) SuspendThread(ctx context.Context, thread ThreadID) error {
	w := newWireWriter(c.IDSizes())
	w.ThreadID(thread)
	_, err := c.Send(ctx, threadCommandSet, threadSuspend, w.Bytes())
	return err
}

// ResumeThread issues ThreadReference.Resume.
func (c *Conn) ResumeThread(ctx context.Context, thread ThreadID) error {
	w := newWireWriter(c.IDSizes())
	w.ThreadID(thread)
	_, err := c.Send(ctx, threadCommandSet, threadResume, w.Bytes())
	return err
}

// ThreadStatusInfo is the answer to ThreadReference.Status.
type ThreadStatusInfo struct {
	// ThreadStatus is the thread's run status.
	ThreadStatus int32

	// SuspendStatus holds the suspend status bits.
	SuspendStatus int32
}

// Suspended reports whether the thread is suspended by the debugger.
func (s *ThreadStatusInfo) Suspended() bool {
	return s.SuspendStatus&SuspendStatusSuspended != 0
}

// ThreadStatus issues ThreadReference.Status.
func (c *Conn) ThreadStatus(ctx context.Context, thread ThreadID) (*ThreadStatusInfo, error) {
	w := newWireWriter(c.IDSizes())
	w.ThreadID(thread)
	body, err := c.Send(ctx, threadCommandSet, threadStatus, w.Bytes())
	if err != nil {
		return nil, err
	}
	r := newWireReader(c.IDSizes(), body)
	out := &ThreadStatusInfo{
		ThreadStatus:  r.I32(),
		SuspendStatus: r.I32(),
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ThreadSuspendCount issues ThreadReference.SuspendCount.
func (c *Conn) ThreadSuspendCount(ctx context.Context, thread ThreadID) (int32, error) {
	w := newWireWriter(c.IDSizes())
	w.ThreadID(thread)
	body, err := c.Send(ctx, threadCommandSet, threadSuspendCount, w.Bytes())
	if err != nil {
		return 0, err
	}
	r := newWireReader(c.IDSizes(), body)
	count := r.I32()
	if err := r.Err(); err != nil {
		return 0, err
	}
	return count, nil
}

// FrameInfo describes one stack frame of a suspended thread.
type FrameInfo struct {
	// ID identifies the frame for StackFrame commands.
	ID FrameID

	// Location is the code location executing in the frame.
	Location Location
}

// Frames issues ThreadReference.Frames for length frames starting at
// start. Pass length -1 for all remaining frames. The thread must be
// suspended.
func (c *Conn) Frames(ctx context.Context, thread ThreadID, start, length int32) ([]FrameInfo, error) {
	w := newWireWriter(c.IDSizes())
	w.ThreadID(thread)
	w.I32(start)
	w.I32(length)
	body, err := c.Send(ctx, threadCommandSet, threadFrames, w.Bytes())
	if err != nil {
		return nil, err
	}
	r := newWireReader(c.IDSizes(), body)
	count := r.U32()
	out := make([]FrameInfo, 0, count)
	for i := uint32(0); i < count && r.Err() == nil; i++ {
		out = append(out, FrameInfo{
			ID:       r.FrameID(),
			Location: r.Location(),
		})
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SlotRequest names one frame slot to fetch together with the tag to
// decode it as. Use [SignatureTag] to derive the tag from a variable's
// signature.
type SlotRequest struct {
	// Slot is the frame slot index.
	Slot uint32

	// Tag selects the decoding of the slot's value.
	Tag Tag
}

// FrameValues issues StackFrame.GetValues, returning one tagged value
// per requested slot in order. The thread must be suspended.
func (c *Conn) FrameValues(ctx context.Context, thread ThreadID, frame FrameID, slots []SlotRequest) ([]TaggedValue, error) {
	w := newWireWriter(c.IDSizes())
	w.ThreadID(thread)
	w.FrameID(frame)
	w.U32(uint32(len(slots)))
	for _, slot := range slots {
		w.U32(slot.Slot)
		w.U8(uint8(slot.Tag))
	}
	body, err := c.Send(ctx, stackFrameCommandSet, stackFrameGetValues, w.Bytes())
	if err != nil {
		return nil, err
	}
	r := newWireReader(c.IDSizes(), body)
	count := r.U32()
	out := make([]TaggedValue, 0, count)
	for i := uint32(0); i < count && r.Err() == nil; i++ {
		out = append(out, r.TaggedValue())
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
