// SPDX-License-Identifier: GPL-3.0-or-later

package jdwp

// EventKind discriminates the records inside a composite event packet.
type EventKind uint8

// Event kinds defined by the protocol.
const (
	EventKindSingleStep                = EventKind(1)
	EventKindBreakpoint                = EventKind(2)
	EventKindFramePop                  = EventKind(3)
	EventKindException                 = EventKind(4)
	EventKindUserDefined               = EventKind(5)
	EventKindThreadStart               = EventKind(6)
	EventKindThreadDeath               = EventKind(7)
	EventKindClassPrepare              = EventKind(8)
	EventKindClassUnload               = EventKind(9)
	EventKindClassLoad                 = EventKind(10)
	EventKindFieldAccess               = EventKind(20)
	EventKindFieldModification         = EventKind(21)
	EventKindExceptionCatch            = EventKind(30)
	EventKindMethodEntry               = EventKind(40)
	EventKindMethodExit                = EventKind(41)
	EventKindMethodExitWithReturnValue = EventKind(42)
	EventKindMonitorContendedEnter     = EventKind(43)
	EventKindMonitorContendedEntered   = EventKind(44)
	EventKindMonitorWait               = EventKind(45)
	EventKindMonitorWaited             = EventKind(46)
	EventKindVMStart                   = EventKind(90)
	EventKindVMDeath                   = EventKind(99)
	EventKindVMDisconnected            = EventKind(100)
)

// WildcardRequestID subscribes to events with no specific subscriber.
// Unsolicited events (VM start, thread lifecycle, class prepare) carry
// request ID zero on the wire, so the wildcard also receives those.
const WildcardRequestID = uint32(0)

// Event is one record inside a composite event packet.
type Event interface {
	// Kind returns the event kind.
	Kind() EventKind

	// RequestID returns the ID of the event request that produced the
	// event, or zero for unsolicited events.
	RequestID() uint32
}

// SingleStepEvent reports a completed step.
type SingleStepEvent struct {
	Request  uint32
	Thread   ThreadID
	Location Location
}

// Kind implements [Event].
func (e *SingleStepEvent) Kind() EventKind { return EventKindSingleStep }

// RequestID implements [Event].
func (e *SingleStepEvent) RequestID() uint32 { return e.Request }

// BreakpointEvent reports a hit breakpoint.
type BreakpointEvent struct {
	Request  uint32
	Thread   ThreadID
	Location Location
}

// Kind implements [Event].
func (e *BreakpointEvent) Kind() EventKind { return EventKindBreakpoint }

// RequestID implements [Event].
func (e *BreakpointEvent) RequestID() uint32 { return e.Request }

// FramePopEvent reports a popped frame.
type FramePopEvent struct {
	Request  uint32
	Thread   ThreadID
	Location Location
}

// Kind implements [Event].
func (e *FramePopEvent) Kind() EventKind { return EventKindFramePop }

// RequestID implements [Event].
func (e *FramePopEvent) RequestID() uint32 { return e.Request }

// ExceptionEvent reports a thrown exception.
type ExceptionEvent struct {
	Request       uint32
	Thread        ThreadID
	ThrowLocation Location
	ExceptionTag  Tag
	Exception     ObjectID
	CatchLocation Location
}

// Kind implements [Event].
func (e *ExceptionEvent) Kind() EventKind { return EventKindException }

// RequestID implements [Event].
func (e *ExceptionEvent) RequestID() uint32 { return e.Request }

// UserDefinedEvent is a user-defined event. It carries no thread.
type UserDefinedEvent struct {
	Request uint32
}

// Kind implements [Event].
func (e *UserDefinedEvent) Kind() EventKind { return EventKindUserDefined }

// RequestID implements [Event].
func (e *UserDefinedEvent) RequestID() uint32 { return e.Request }

// ThreadStartEvent reports a started thread.
type ThreadStartEvent struct {
	Request uint32
	Thread  ThreadID
}

// Kind implements [Event].
func (e *ThreadStartEvent) Kind() EventKind { return EventKindThreadStart }

// RequestID implements [Event].
func (e *ThreadStartEvent) RequestID() uint32 { return e.Request }

// ThreadDeathEvent reports a terminated thread.
type ThreadDeathEvent struct {
	Request uint32
	Thread  ThreadID
}

// Kind implements [Event].
func (e *ThreadDeathEvent) Kind() EventKind { return EventKindThreadDeath }

// RequestID implements [Event].
func (e *ThreadDeathEvent) RequestID() uint32 { return e.Request }

// ClassPrepareEvent reports a prepared reference type.
type ClassPrepareEvent struct {
	Request   uint32
	Thread    ThreadID
	TypeTag   TypeTag
	Type      ReferenceTypeID
	Signature string
	Status    int32
}

// Kind implements [Event].
func (e *ClassPrepareEvent) Kind() EventKind { return EventKindClassPrepare }

// RequestID implements [Event].
func (e *ClassPrepareEvent) RequestID() uint32 { return e.Request }

// ClassLoadEvent reports a loaded reference type.
type ClassLoadEvent struct {
	Request   uint32
	Thread    ThreadID
	TypeTag   TypeTag
	Type      ReferenceTypeID
	Signature string
	Status    int32
}

// Kind implements [Event].
func (e *ClassLoadEvent) Kind() EventKind { return EventKindClassLoad }

// RequestID implements [Event].
func (e *ClassLoadEvent) RequestID() uint32 { return e.Request }

// ClassUnloadEvent reports an unloaded reference type.
type ClassUnloadEvent struct {
	Request   uint32
	Thread    ThreadID
	Signature string
}

// Kind implements [Event].
func (e *ClassUnloadEvent) Kind() EventKind { return EventKindClassUnload }

// RequestID implements [Event].
func (e *ClassUnloadEvent) RequestID() uint32 { return e.Request }

// FieldAccessEvent reports a watched field read.
type FieldAccessEvent struct {
	Request   uint32
	Thread    ThreadID
	TypeTag   TypeTag
	Type      ReferenceTypeID
	Field     FieldID
	ObjectTag Tag
	Object    ObjectID
	Location  Location
}

// Kind implements [Event].
func (e *FieldAccessEvent) Kind() EventKind { return EventKindFieldAccess }

// RequestID implements [Event].
func (e *FieldAccessEvent) RequestID() uint32 { return e.Request }

// FieldModificationEvent reports a watched field write.
type FieldModificationEvent struct {
	Request   uint32
	Thread    ThreadID
	TypeTag   TypeTag
	Type      ReferenceTypeID
	Field     FieldID
	ObjectTag Tag
	Object    ObjectID
	Location  Location
	Value     TaggedValue
}

// Kind implements [Event].
func (e *FieldModificationEvent) Kind() EventKind { return EventKindFieldModification }

// RequestID implements [Event].
func (e *FieldModificationEvent) RequestID() uint32 { return e.Request }

// ExceptionCatchEvent reports a caught exception.
type ExceptionCatchEvent struct {
	Request       uint32
	Thread        ThreadID
	Location      Location
	CatchLocation Location
}

// Kind implements [Event].
func (e *ExceptionCatchEvent) Kind() EventKind { return EventKindExceptionCatch }

// RequestID implements [Event].
func (e *ExceptionCatchEvent) RequestID() uint32 { return e.Request }

// MethodEntryEvent reports entry into a watched method.
type MethodEntryEvent struct {
	Request  uint32
	Thread   ThreadID
	Location Location
}

// Kind implements [Event].
func (e *MethodEntryEvent) Kind() EventKind { return EventKindMethodEntry }

// RequestID implements [Event].
func (e *MethodEntryEvent) RequestID() uint32 { return e.Request }

// MethodExitEvent reports exit from a watched method.
type MethodExitEvent struct {
	Request  uint32
	Thread   ThreadID
	Location Location
}

// Kind implements [Event].
func (e *MethodExitEvent) Kind() EventKind { return EventKindMethodExit }

// RequestID implements [Event].
func (e *MethodExitEvent) RequestID() uint32 { return e.Request }

// MethodExitWithReturnValueEvent reports exit from a watched method
// along with the returned value.
type MethodExitWithReturnValueEvent struct {
	Request  uint32
	Thread   ThreadID
	Location Location
	Return   TaggedValue
}

// Kind implements [Event].
func (e *MethodExitWithReturnValueEvent) Kind() EventKind {
	return EventKindMethodExitWithReturnValue
}

// RequestID implements [Event].
func (e *MethodExitWithReturnValueEvent) RequestID() uint32 { return e.Request }

// MonitorEvent reports monitor contention or waiting. The Op field
// distinguishes the four monitor event kinds, which share a layout.
type MonitorEvent struct {
	Op       EventKind
	Request  uint32
	Thread   ThreadID
	TypeTag  TypeTag
	Type     ReferenceTypeID
	Location Location
}

// Kind implements [Event].
func (e *MonitorEvent) Kind() EventKind { return e.Op }

// RequestID implements [Event].
func (e *MonitorEvent) RequestID() uint32 { return e.Request }

// VMStartEvent reports VM initialization.
type VMStartEvent struct {
	Request uint32
	Thread  ThreadID
}

// Kind implements [Event].
func (e *VMStartEvent) Kind() EventKind { return EventKindVMStart }

// RequestID implements [Event].
func (e *VMStartEvent) RequestID() uint32 { return e.Request }

// VMDeathEvent reports VM termination. It carries no thread. After this
// event the session is over: pending commands are rejected and further
// sends fail.
type VMDeathEvent struct {
	Request uint32
}

// Kind implements [Event].
func (e *VMDeathEvent) Kind() EventKind { return EventKindVMDeath }

// RequestID implements [Event].
func (e *VMDeathEvent) RequestID() uint32 { return e.Request }

// VMDisconnectedEvent reports transport loss. It carries no thread.
type VMDisconnectedEvent struct {
	Request uint32
}

// Kind implements [Event].
func (e *VMDisconnectedEvent) Kind() EventKind { return EventKindVMDisconnected }

// RequestID implements [Event].
func (e *VMDisconnectedEvent) RequestID() uint32 { return e.Request }

// CompositeEvent is the decoded payload of a composite event packet.
type CompositeEvent struct {
	// SuspendPolicy tells which threads the VM suspended before sending.
	SuspendPolicy SuspendPolicy

	// Events holds the contained records in wire order.
	Events []Event
}

// decodeCompositeEvent decodes a composite event payload.
//
// The decode is length-exact for every kind the VM may send: a record
// that cannot be decoded exactly desynchronises the remainder of the
// stream, so an unknown kind or a short record is an error and the
// caller must treat it as fatal to the session.
func decodeCompositeEvent(sizes IDSizes, payload []byte) (*CompositeEvent, error) {
	r := newWireReader(sizes, payload)
	out := &CompositeEvent{SuspendPolicy: SuspendPolicy(r.U8())}
	count := r.U32()
	for i := uint32(0); i < count && r.Err() == nil; i++ {
		event, err := decodeEventRecord(r)
		if err != nil {
			return nil, err
		}
		out.Events = append(out.Events, event)
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	if r.Remaining() != 0 {
		return nil, &MalformedPacketError{Reason: "trailing bytes after composite event"}
	}
	return out, nil
}

// decodeEventRecord decodes one record, advancing the reader by exactly
// the record's wire length.
func decodeEventRecord(r *wireReader) (Event, error) {
	kind := EventKind(r.U8())
	request := r.U32()
	switch kind {
	case EventKindSingleStep:
		return &SingleStepEvent{Request: request, Thread: r.ThreadID(), Location: r.Location()}, r.Err()
	case EventKindBreakpoint:
		return &BreakpointEvent{Request: request, Thread: r.ThreadID(), Location: r.Location()}, r.Err()
	case EventKindFramePop:
		return &FramePopEvent{Request: request, Thread: r.ThreadID(), Location: r.Location()}, r.Err()
	case EventKindException:
		event := &ExceptionEvent{Request: request, Thread: r.ThreadID(), ThrowLocation: r.Location()}
		event.ExceptionTag, event.Exception = r.TaggedObjectID()
		event.CatchLocation = r.Location()
		return event, r.Err()
	case EventKindUserDefined:
		return &UserDefinedEvent{Request: request}, r.Err()
	case EventKindThreadStart:
		return &ThreadStartEvent{Request: request, Thread: r.ThreadID()}, r.Err()
	case EventKindThreadDeath:
		return &ThreadDeathEvent{Request: request, Thread: r.ThreadID()}, r.Err()
	case EventKindClassPrepare:
		return &ClassPrepareEvent{
			Request:   request,
			Thread:    r.ThreadID(),
			TypeTag:   TypeTag(r.U8()),
			Type:      r.ReferenceTypeID(),
			Signature: r.String(),
			Status:    r.I32(),
		}, r.Err()
	case EventKindClassLoad:
		return &ClassLoadEvent{
			Request:   request,
			Thread:    r.ThreadID(),
			TypeTag:   TypeTag(r.U8()),
			Type:      r.ReferenceTypeID(),
			Signature: r.String(),
			Status:    r.I32(),
		}, r.Err()
	case EventKindClassUnload:
		return &ClassUnloadEvent{Request: request, Thread: r.ThreadID(), Signature: r.String()}, r.Err()
	case EventKindFieldAccess:
		event := &FieldAccessEvent{
			Request: request,
			Thread:  r.ThreadID(),
			TypeTag: TypeTag(r.U8()),
			Type:    r.ReferenceTypeID(),
			Field:   r.FieldID(),
		}
		event.ObjectTag, event.Object = r.TaggedObjectID()
		event.Location = r.Location()
		return event, r.Err()
	case EventKindFieldModification:
		event := &FieldModificationEvent{
			Request: request,
			Thread:  r.ThreadID(),
			TypeTag: TypeTag(r.U8()),
			Type:    r.ReferenceTypeID(),
			Field:   r.FieldID(),
		}
		event.ObjectTag, event.Object = r.TaggedObjectID()
		event.Location = r.Location()
		event.Value = r.TaggedValue()
		return event, r.Err()
	case EventKindExceptionCatch:
		return &ExceptionCatchEvent{
			Request:       request,
			Thread:        r.ThreadID(),
			Location:      r.Location(),
			CatchLocation: r.Location(),
		}, r.Err()
	case EventKindMethodEntry:
		return &MethodEntryEvent{Request: request, Thread: r.ThreadID(), Location: r.Location()}, r.Err()
	case EventKindMethodExit:
		return &MethodExitEvent{Request: request, Thread: r.ThreadID(), Location: r.Location()}, r.Err()
	case EventKindMethodExitWithReturnValue:
		return &MethodExitWithReturnValueEvent{
			Request:  request,
			Thread:   r.ThreadID(),
			Location: r.Location(),
			Return:   r.TaggedValue(),
		}, r.Err()
	case EventKindMonitorContendedEnter, EventKindMonitorContendedEntered,
		EventKindMonitorWait, EventKindMonitorWaited:
		return &MonitorEvent{
			Op:       kind,
			Request:  request,
			Thread:   r.ThreadID(),
			TypeTag:  TypeTag(r.U8()),
			Type:     r.ReferenceTypeID(),
			Location: r.Location(),
		}, r.Err()
	case EventKindVMStart:
		return &VMStartEvent{Request: request, Thread: r.ThreadID()}, r.Err()
	case EventKindVMDeath:
		return &VMDeathEvent{Request: request}, r.Err()
	case EventKindVMDisconnected:
		return &VMDisconnectedEvent{Request: request}, r.Err()
	default:
		return nil, &MalformedPacketError{
			Reason: "unknown event kind " + kind.String(),
		}
	}
}

// String implements [fmt.Stringer].
func (k EventKind) String() string {
	switch k {
	case EventKindSingleStep:
		return "SINGLE_STEP"
	case EventKindBreakpoint:
		return "BREAKPOINT"
	case EventKindFramePop:
		return "FRAME_POP"
	case EventKindException:
		return "EXCEPTION"
	case EventKindUserDefined:
		return "USER_DEFINED"
	case EventKindThreadStart:
		return "THREAD_START"
	case EventKindThreadDeath:
		return "THREAD_DEATH"
	case EventKindClassPrepare:
		return "CLASS_PREPARE"
	case EventKindClassUnload:
		return "CLASS_UNLOAD"
	case EventKindClassLoad:
		return "CLASS_LOAD"
	case EventKindFieldAccess:
		return "FIELD_ACCESS"
	case EventKindFieldModification:
		return "FIELD_MODIFICATION"
	case EventKindExceptionCatch:
		return "EXCEPTION_CATCH"
	case EventKindMethodEntry:
		return "METHOD_ENTRY"
	case EventKindMethodExit:
		return "METHOD_EXIT"
	case EventKindMethodExitWithReturnValue:
		return "METHOD_EXIT_WITH_RETURN_VALUE"
	case EventKindMonitorContendedEnter:
		return "MONITOR_CONTENDED_ENTER"
	case EventKindMonitorContendedEntered:
		return "MONITOR_CONTENDED_ENTERED"
	case EventKindMonitorWait:
		return "MONITOR_WAIT"
	case EventKindMonitorWaited:
		return "MONITOR_WAITED"
	case EventKindVMStart:
		return "VM_START"
	case EventKindVMDeath:
		return "VM_DEATH"
	case EventKindVMDisconnected:
		return "VM_DISCONNECTED"
	default:
		return "EVENT_" + itoa(uint64(k))
	}
}

// itoa formats a small unsigned integer without pulling fmt into the
// String fast path.
func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	pos := len(buf)
	for v > 0 {
		pos--
		buf[pos] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[pos:])
}
