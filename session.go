// SPDX-License-Identifier: GPL-3.0-or-later

package jdwp

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"sync"
	"time"
)

// Well-known runtime signatures used by [*Session.Exec] and
// [*Session.LoadLibrary].
const (
	runtimeClassSignature = "Ljava/lang/Runtime;"
	processClassSignature = "Ljava/lang/Process;"
	systemClassSignature  = "Ljava/lang/System;"
)

// maxBufferedHits bounds how many unclaimed breakpoint hits the session
// retains per request while no waiter is registered.
const maxBufferedHits = 16

// Breakpoint is one entry of the session's breakpoint registry.
type Breakpoint struct {
	// RequestID is the event request backing the breakpoint.
	RequestID uint32

	// Location is the code location of the breakpoint.
	Location Location

	// ClassSignature is the signature the breakpoint was set through,
	// or empty for breakpoints set by raw location.
	ClassSignature string

	// MethodName is the method the breakpoint was set through, or
	// empty for breakpoints set by raw location.
	MethodName string

	// Enabled reports whether the request is live on the VM.
	Enabled bool

	// HitCount counts the matching breakpoint events observed.
	HitCount uint64
}

// BreakpointHit describes one observed breakpoint event.
type BreakpointHit struct {
	// RequestID is the event request that fired.
	RequestID uint32

	// Thread is the thread that hit the breakpoint. It is left
	// suspended according to the request's suspend policy.
	Thread ThreadID

	// Location is the code location of the hit.
	Location Location
}

// Session is a per-PID debug session over an attached connection.
//
// A session owns its [*Conn]: stopping the session clears breakpoints,
// resumes suspended threads, and closes the connection. Construct via
// [NewSession] or through [*Debugger.StartDebugging]. All methods are
// safe for concurrent use.
type Session struct {
	// ErrClassifier classifies errors for structured logging.
	ErrClassifier ErrClassifier

	// Logger is the SLogger to use.
	Logger SLogger

	// TimeNow is the function to get the current time.
	TimeNow func() time.Time

	// conn is the owned protocol connection.
	conn *Conn

	// packageName is the debugged application package, informational.
	packageName string

	// pid is the debugged process.
	pid int

	// mu guards the fields below.
	mu            sync.Mutex
	breakpoints   map[uint32]*Breakpoint
	currentThread ThreadID
	handlers      map[uint32]EventHandler
	hitWaiters    map[uint32][]chan *BreakpointHit
	kindHandlers  map[EventKind]EventHandler
	pendingHits   map[uint32][]*BreakpointHit
	stepRequests  map[uint32]bool
	stopped       bool
	suspended     map[ThreadID]bool
	threads       map[ThreadID]bool
}

// NewSession attaches a session over a connection that already
// completed the handshake.
//
// Attach negotiates ID sizes, registers the bookkeeping event handler,
// requests thread lifecycle events (failure to do so is logged and
// non-fatal), and seeds the thread registry via AllThreads. On failure
// the connection is closed.
func NewSession(ctx context.Context, cfg *Config, conn net.Conn, pid int, packageName string, logger SLogger) (*Session, error) {
	s := &Session{
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		TimeNow:       cfg.TimeNow,
		conn:          NewConn(cfg, conn, logger),
		packageName:   packageName,
		pid:           pid,
		breakpoints:   make(map[uint32]*Breakpoint),
		handlers:      make(map[uint32]EventHandler),
		hitWaiters:    make(map[uint32][]chan *BreakpointHit),
		kindHandlers:  make(map[EventKind]EventHandler),
		pendingHits:   make(map[uint32][]*BreakpointHit),
		stepRequests:  make(map[uint32]bool),
		suspended:     make(map[ThreadID]bool),
		threads:       make(map[ThreadID]bool),
	}
	s.conn.OnEvent(WildcardRequestID, s.handleEvent)

	if _, err := s.conn.NegotiateIDSizes(ctx); err != nil {
		s.conn.Close()
		return nil, err
	}

	// Thread bookkeeping degrades gracefully when the VM refuses the
	// lifecycle requests.
	for _, kind := range []EventKind{EventKindThreadStart, EventKindThreadDeath} {
		if _, err := s.conn.SetEventRequest(ctx, kind, SuspendPolicyNone); err != nil {
			s.logAttachWarning("jdwpThreadEventRequestFailed", kind.String(), err)
		}
	}

	threads, err := s.conn.AllThreads(ctx)
	if err != nil {
		s.conn.Close()
		return nil, err
	}
	s.mu.Lock()
	for _, thread := range threads {
		s.threads[thread] = true
	}
	s.mu.Unlock()
	return s, nil
}

// PID returns the debugged process ID.
func (s *Session) PID() int {
	return s.pid
}

// PackageName returns the debugged application package name.
func (s *Session) PackageName() string {
	return s.packageName
}

// Conn returns the underlying protocol connection for callers needing
// commands the facade does not wrap.
func (s *Session) Conn() *Conn {
	return s.conn
}

// OnRequest registers a handler for events produced by the given event
// request. The handler runs on the connection's read loop and must not
// block; see [EventHandler].
func (s *Session) OnRequest(requestID uint32, handler EventHandler) {
	defer s.mu.Unlock()
	s.mu.Lock()
	s.handlers[requestID] = handler
}

// OffRequest removes the handler for the given event request.
func (s *Session) OffRequest(requestID uint32) {
	defer s.mu.Unlock()
	s.mu.Lock()
	delete(s.handlers, requestID)
}

// OnEventKind registers a handler for events of the given kind that
// have no per-request handler.
func (s *Session) OnEventKind(kind EventKind, handler EventHandler) {
	defer s.mu.Unlock()
	s.mu.Lock()
	s.kindHandlers[kind] = handler
}

// OffEventKind removes the handler for the given event kind.
func (s *Session) OffEventKind(kind EventKind) {
	defer s.mu.Unlock()
	s.mu.Lock()
	delete(s.kindHandlers, kind)
}

// handleEvent is the connection-level wildcard handler: it updates the
// session registries and then forwards the event to the user handler,
// if any. It runs on the read loop and must not send commands inline.
func (s *Session) handleEvent(policy SuspendPolicy, event Event) {
	var (
		clearStep uint32
		forward   EventHandler
		waiter    chan *BreakpointHit
		hit       *BreakpointHit
	)

	s.mu.Lock()
	switch event := event.(type) {
	case *ThreadStartEvent:
		s.threads[event.Thread] = true

	case *ThreadDeathEvent:
		delete(s.threads, event.Thread)
		delete(s.suspended, event.Thread)

	case *BreakpointEvent:
		s.threads[event.Thread] = true
		if policy != SuspendPolicyNone {
			s.suspended[event.Thread] = true
		}
		s.currentThread = event.Thread
		if bp := s.breakpoints[event.Request]; bp != nil {
			bp.HitCount++
		}
		hit = &BreakpointHit{
			RequestID: event.Request,
			Thread:    event.Thread,
			Location:  event.Location,
		}
		if waiters := s.hitWaiters[event.Request]; len(waiters) > 0 {
			waiter = waiters[0]
			s.hitWaiters[event.Request] = waiters[1:]
		} else if buffered := s.pendingHits[event.Request]; len(buffered) < maxBufferedHits {
			s.pendingHits[event.Request] = append(buffered, hit)
		}

	case *SingleStepEvent:
		if policy != SuspendPolicyNone {
			s.suspended[event.Thread] = true
		}
		s.currentThread = event.Thread
		if s.stepRequests[event.Request] {
			delete(s.stepRequests, event.Request)
			clearStep = event.Request
		}

	case *VMDeathEvent:
		s.teardownLocked()
	}

	forward = s.handlers[event.RequestID()]
	if forward == nil {
		forward = s.kindHandlers[event.Kind()]
	}
	s.mu.Unlock()

	if waiter != nil {
		waiter <- hit
	}
	if clearStep != 0 {
		// One-shot step request: clear it off the read loop, since
		// sends from an event handler must not block packet delivery.
		go s.clearStepRequest(clearStep)
	}
	if forward != nil {
		forward(policy, event)
	}
}

// clearStepRequest clears a fired one-shot step request, best effort.
func (s *Session) clearStepRequest(requestID uint32) {
	ctx, cancel := context.WithTimeout(context.Background(), s.conn.ReplyTimeout)
	defer cancel()
	if err := s.conn.ClearEventRequest(ctx, EventKindSingleStep, requestID); err != nil {
		s.Logger.Info(
			"jdwpClearStepRequestFailed",
			slog.Any("err", err),
			slog.String("errClass", s.ErrClassifier.Classify(err)),
			slog.Uint64("requestID", uint64(requestID)),
			slog.Time("t", s.TimeNow()),
		)
	}
}

// teardownLocked clears every registry. Callers hold s.mu.
func (s *Session) teardownLocked() {
	s.stopped = true
	s.breakpoints = make(map[uint32]*Breakpoint)
	s.pendingHits = make(map[uint32][]*BreakpointHit)
	s.stepRequests = make(map[uint32]bool)
	s.suspended = make(map[ThreadID]bool)
	s.threads = make(map[ThreadID]bool)
	for _, waiters := range s.hitWaiters {
		for _, ch := range waiters {
			close(ch)
		}
	}
	s.hitWaiters = make(map[uint32][]chan *BreakpointHit)
}

// resolveMethodEntry resolves a class signature and method name into
// the method-entry location used by breakpoint helpers.
func (s *Session) resolveMethodEntry(ctx context.Context, classSignature, methodName string) (Location, error) {
	classes, err := s.conn.ClassesBySignature(ctx, classSignature)
	if err != nil {
		return Location{}, err
	}
	class := classes[0]
	method, err := s.conn.FindMethod(ctx, class.Type, methodName, "")
	if err != nil {
		return Location{}, err
	}
	return Location{
		Tag:    class.TypeTag,
		Class:  class.Type,
		Method: method.ID,
		Index:  0,
	}, nil
}

// SetBreakpoint sets a breakpoint at the entry of the named method,
// suspending all threads when it fires. With overloaded methods the
// first listed overload wins; use [*Session.SetBreakpointAtLocation]
// with a resolved method when a specific overload matters.
//
// The registry records the breakpoint only after the VM confirmed the
// request; a failed set mutates nothing.
func (s *Session) SetBreakpoint(ctx context.Context, classSignature, methodName string) (uint32, error) {
	location, err := s.resolveMethodEntry(ctx, classSignature, methodName)
	if err != nil {
		return 0, err
	}
	return s.setBreakpoint(ctx, location, SuspendPolicyAll, classSignature, methodName)
}

// SetBreakpointAtLocation sets a breakpoint at an explicit location
// with the given suspend policy.
func (s *Session) SetBreakpointAtLocation(ctx context.Context, location Location, policy SuspendPolicy) (uint32, error) {
	return s.setBreakpoint(ctx, location, policy, "", "")
}

func (s *Session) setBreakpoint(ctx context.Context, location Location,
	policy SuspendPolicy, classSignature, methodName string) (uint32, error) {
	requestID, err := s.conn.SetEventRequest(
		ctx, EventKindBreakpoint, policy, LocationOnlyModifier{Location: location})
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	// Hits dispatched before this registration were buffered without a
	// registry entry to count them; count them now.
	s.breakpoints[requestID] = &Breakpoint{
		RequestID:      requestID,
		Location:       location,
		ClassSignature: classSignature,
		MethodName:     methodName,
		Enabled:        true,
		HitCount:       uint64(len(s.pendingHits[requestID])),
	}
	s.mu.Unlock()
	return requestID, nil
}

// SetBreakpointAndWait sets a breakpoint at the entry of the named
// method and blocks until the first matching hit. The hitting thread is
// left suspended, ready for [*Session.Exec] and friends.
//
// A hit racing the registration of the waiter is not lost: the
// session's wildcard bookkeeping buffers unclaimed hits.
func (s *Session) SetBreakpointAndWait(ctx context.Context, classSignature, methodName string) (*BreakpointHit, error) {
	requestID, err := s.SetBreakpoint(ctx, classSignature, methodName)
	if err != nil {
		return nil, err
	}
	return s.WaitForBreakpoint(ctx, requestID)
}

// WaitForBreakpoint blocks until the next hit of the given breakpoint,
// consuming a buffered hit if one is already waiting.
func (s *Session) WaitForBreakpoint(ctx context.Context, requestID uint32) (*BreakpointHit, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if buffered := s.pendingHits[requestID]; len(buffered) > 0 {
		hit := buffered[0]
		s.pendingHits[requestID] = buffered[1:]
		s.mu.Unlock()
		return hit, nil
	}
	ch := make(chan *BreakpointHit, 1)
	s.hitWaiters[requestID] = append(s.hitWaiters[requestID], ch)
	s.mu.Unlock()

	select {
	case hit, ok := <-ch:
		if !ok {
			return nil, ErrDisconnected
		}
		return hit, nil
	case <-ctx.Done():
		s.dropHitWaiter(requestID, ch)
		return nil, ctx.Err()
	case <-s.conn.Done():
		s.dropHitWaiter(requestID, ch)
		return nil, ErrDisconnected
	}
}

// dropHitWaiter removes an abandoned waiter channel.
func (s *Session) dropHitWaiter(requestID uint32, ch chan *BreakpointHit) {
	defer s.mu.Unlock()
	s.mu.Lock()
	waiters := s.hitWaiters[requestID]
	for i, other := range waiters {
		if other == ch {
			s.hitWaiters[requestID] = append(waiters[:i], waiters[i+1:]...)
			return
		}
	}
}

// ClearBreakpoint clears the breakpoint's event request and removes it
// from the registry. Hits already buffered for it are discarded.
func (s *Session) ClearBreakpoint(ctx context.Context, requestID uint32) error {
	if err := s.conn.ClearEventRequest(ctx, EventKindBreakpoint, requestID); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.breakpoints, requestID)
	delete(s.pendingHits, requestID)
	s.mu.Unlock()
	return nil
}

// Breakpoints returns a snapshot of the breakpoint registry.
func (s *Session) Breakpoints() []Breakpoint {
	defer s.mu.Unlock()
	s.mu.Lock()
	out := make([]Breakpoint, 0, len(s.breakpoints))
	for _, bp := range s.breakpoints {
		out = append(out, *bp)
	}
	slices.SortFunc(out, func(a, b Breakpoint) int {
		return int(a.RequestID) - int(b.RequestID)
	})
	return out
}

// Threads returns a snapshot of the known threads.
func (s *Session) Threads() []ThreadID {
	defer s.mu.Unlock()
	s.mu.Lock()
	out := make([]ThreadID, 0, len(s.threads))
	for thread := range s.threads {
		out = append(out, thread)
	}
	slices.Sort(out)
	return out
}

// SuspendedThreads returns a snapshot of the threads the session knows
// to be suspended.
func (s *Session) SuspendedThreads() []ThreadID {
	defer s.mu.Unlock()
	s.mu.Lock()
	out := make([]ThreadID, 0, len(s.suspended))
	for thread := range s.suspended {
		out = append(out, thread)
	}
	slices.Sort(out)
	return out
}

// CurrentThread returns the thread of the most recent breakpoint or
// step hit, or zero when none fired yet.
func (s *Session) CurrentThread() ThreadID {
	defer s.mu.Unlock()
	s.mu.Lock()
	return s.currentThread
}

// Resume resumes every thread suspended by the debugger.
func (s *Session) Resume(ctx context.Context) error {
	if err := s.conn.ResumeAll(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.suspended = make(map[ThreadID]bool)
	s.mu.Unlock()
	return nil
}

// SuspendThread suspends one thread and records it as suspended. The
// suspended flag flips only after the VM confirmed the call.
func (s *Session) SuspendThread(ctx context.Context, thread ThreadID) error {
	if err := s.conn.SuspendThread(ctx, thread); err != nil {
		return err
	}
	s.mu.Lock()
	s.suspended[thread] = true
	s.mu.Unlock()
	return nil
}

// ResumeThread resumes one thread and clears its suspended flag.
func (s *Session) ResumeThread(ctx context.Context, thread ThreadID) error {
	if err := s.conn.ResumeThread(ctx, thread); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.suspended, thread)
	s.mu.Unlock()
	return nil
}

// StepThread arranges a one-shot single step of the given thread and
// resumes it. The step event suspends the thread again and is cleared
// automatically; subscribe via [*Session.OnRequest] with the returned
// request ID to observe it.
func (s *Session) StepThread(ctx context.Context, thread ThreadID, size StepSize, depth StepDepth) (uint32, error) {
	requestID, err := s.conn.SetEventRequest(
		ctx, EventKindSingleStep, SuspendPolicyAll,
		StepModifier{Thread: thread, Size: size, Depth: depth},
		CountModifier{Count: 1},
	)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.stepRequests[requestID] = true
	s.mu.Unlock()
	if err := s.ResumeThread(ctx, thread); err != nil {
		return 0, err
	}
	return requestID, nil
}

// StackFrames returns every frame of a suspended thread.
func (s *Session) StackFrames(ctx context.Context, thread ThreadID) ([]FrameInfo, error) {
	return s.conn.Frames(ctx, thread, 0, -1)
}

// LocalVariable is one named variable of a stack frame with its
// fetched value.
type LocalVariable struct {
	// Name is the variable name.
	Name string

	// Signature is the JNI-style type signature.
	Signature string

	// Value is the raw tagged value.
	Value TaggedValue

	// Text renders the value for display: string contents for string
	// references, a length summary for arrays, the tag-prefixed value
	// for primitives (such as "int:7"), and an opaque ID for other object
	// references.
	Text string
}

// LocalVariables fetches the named variables of one frame of a
// suspended thread.
//
// The frame's method is derived from the frame's location as reported
// by ThreadReference.Frames, since the frame ID alone does not identify
// the method.
func (s *Session) LocalVariables(ctx context.Context, thread ThreadID, frame FrameID) ([]LocalVariable, error) {
	frames, err := s.conn.Frames(ctx, thread, 0, -1)
	if err != nil {
		return nil, err
	}
	var location *Location
	for _, info := range frames {
		if info.ID == frame {
			location = &info.Location
			break
		}
	}
	if location == nil {
		return nil, &FrameNotFoundError{Frame: frame}
	}

	table, err := s.conn.VariableTable(ctx, location.Class, location.Method)
	if err != nil {
		return nil, err
	}

	variables := make([]Variable, 0, len(table.Variables))
	slots := make([]SlotRequest, 0, len(table.Variables))
	for _, variable := range table.Variables {
		tag, ok := SignatureTag(variable.Signature)
		if !ok {
			continue
		}
		variables = append(variables, variable)
		slots = append(slots, SlotRequest{Slot: variable.Slot, Tag: tag})
	}
	if len(slots) == 0 {
		return nil, nil
	}

	values, err := s.conn.FrameValues(ctx, thread, frame, slots)
	if err != nil {
		return nil, err
	}
	if len(values) != len(slots) {
		return nil, &MalformedPacketError{Reason: "frame value count differs from request"}
	}

	out := make([]LocalVariable, 0, len(values))
	for i, value := range values {
		text, err := s.renderValue(ctx, value)
		if err != nil {
			return nil, err
		}
		out = append(out, LocalVariable{
			Name:      variables[i].Name,
			Signature: variables[i].Signature,
			Value:     value,
			Text:      text,
		})
	}
	return out, nil
}

// renderValue produces the display text of a tagged value, fetching
// string contents and array lengths as needed. Array elements are not
// fetched; use [*Session.ArrayValues] for that.
func (s *Session) renderValue(ctx context.Context, value TaggedValue) (string, error) {
	switch {
	case value.Tag.IsObject() && value.Object() == 0:
		return "null", nil
	case value.Tag == TagString:
		return s.conn.StringValue(ctx, StringID(value.Object()))
	case value.Tag == TagArray:
		length, err := s.conn.ArrayLength(ctx, ArrayID(value.Object()))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("array[%d]@0x%x", length, value.Data), nil
	case value.Tag.IsObject():
		return fmt.Sprintf("object@0x%x", value.Data), nil
	default:
		return value.String(), nil
	}
}

// FieldValue is one object field with its fetched value.
type FieldValue struct {
	// Name is the field name.
	Name string

	// Signature is the JNI-style type signature.
	Signature string

	// Value is the raw tagged value.
	Value TaggedValue
}

// ObjectInfo describes an inspected object: its runtime type and the
// values of its instance fields.
type ObjectInfo struct {
	// TypeTag classifies the object's runtime type.
	TypeTag TypeTag

	// Type is the object's runtime type.
	Type ReferenceTypeID

	// Signature is the runtime type's JNI-style signature.
	Signature string

	// Fields holds the instance fields in declaration order.
	Fields []FieldValue
}

// InspectObject fetches the runtime type of an object and the values of
// its instance fields.
func (s *Session) InspectObject(ctx context.Context, object ObjectID) (*ObjectInfo, error) {
	typeTag, ref, err := s.conn.ObjectReferenceType(ctx, object)
	if err != nil {
		return nil, err
	}
	signature, err := s.conn.TypeSignature(ctx, ref)
	if err != nil {
		return nil, err
	}
	fields, err := s.conn.Fields(ctx, ref)
	if err != nil {
		return nil, err
	}
	instance := make([]FieldInfo, 0, len(fields))
	ids := make([]FieldID, 0, len(fields))
	for _, field := range fields {
		if field.IsStatic() {
			continue
		}
		instance = append(instance, field)
		ids = append(ids, field.ID)
	}
	out := &ObjectInfo{TypeTag: typeTag, Type: ref, Signature: signature}
	if len(ids) == 0 {
		return out, nil
	}
	values, err := s.conn.ObjectFieldValues(ctx, object, ids)
	if err != nil {
		return nil, err
	}
	if len(values) != len(ids) {
		return nil, &MalformedPacketError{Reason: "field value count differs from request"}
	}
	for i, value := range values {
		out.Fields = append(out.Fields, FieldValue{
			Name:      instance[i].Name,
			Signature: instance[i].Signature,
			Value:     value,
		})
	}
	return out, nil
}

// FieldValue fetches one named instance field of an object.
func (s *Session) FieldValue(ctx context.Context, object ObjectID, name string) (TaggedValue, error) {
	_, ref, err := s.conn.ObjectReferenceType(ctx, object)
	if err != nil {
		return TaggedValue{}, err
	}
	fields, err := s.conn.Fields(ctx, ref)
	if err != nil {
		return TaggedValue{}, err
	}
	for _, field := range fields {
		if field.IsStatic() || field.Name != name {
			continue
		}
		values, err := s.conn.ObjectFieldValues(ctx, object, []FieldID{field.ID})
		if err != nil {
			return TaggedValue{}, err
		}
		if len(values) != 1 {
			return TaggedValue{}, &MalformedPacketError{Reason: "field value count differs from request"}
		}
		return values[0], nil
	}
	return TaggedValue{}, &FieldNotFoundError{Name: name}
}

// ArrayValues fetches count elements of an array starting at first.
// Pass a negative count to fetch through the end of the array.
func (s *Session) ArrayValues(ctx context.Context, array ArrayID, first, count int32) ([]TaggedValue, error) {
	if count < 0 {
		length, err := s.conn.ArrayLength(ctx, array)
		if err != nil {
			return nil, err
		}
		count = length - first
		if count <= 0 {
			return nil, nil
		}
	}
	return s.conn.ArrayValues(ctx, array, first, count)
}

// execThread picks the thread for an invocation helper: the caller's
// choice when non-zero, else the current thread if suspended, else any
// suspended thread.
func (s *Session) execThread(thread ThreadID) (ThreadID, error) {
	if thread != 0 {
		return thread, nil
	}
	defer s.mu.Unlock()
	s.mu.Lock()
	if s.currentThread != 0 && s.suspended[s.currentThread] {
		return s.currentThread, nil
	}
	for candidate := range s.suspended {
		return candidate, nil
	}
	return 0, ErrNoThreadAvailable
}

// expectObject unwraps an invocation result into a non-null object ID.
func expectObject(res *InvokeResult) (ObjectID, error) {
	if err := res.Err(); err != nil {
		return 0, err
	}
	if !res.Return.Tag.IsObject() {
		return 0, &InvalidTagError{Want: TagObject, Got: res.Return.Tag}
	}
	if res.Return.Object() == 0 {
		return 0, ErrNullResult
	}
	return res.Return.Object(), nil
}

// Exec runs an OS command synchronously inside the debugged VM through
// java.lang.Runtime.getRuntime().exec(command).waitFor(), returning the
// child's exit code.
//
// The thread must be suspended by an event, typically a breakpoint hit
// obtained via [*Session.SetBreakpointAndWait]; pass zero to use the
// current suspended thread. The VM blocks that thread until the child
// exits, which can take arbitrarily long: bound the wait through ctx
// and [Config.ReplyTimeout]. The dispatcher stays responsive
// throughout, only the debugged thread is busy.
func (s *Session) Exec(ctx context.Context, thread ThreadID, command string) (int32, error) {
	thread, err := s.execThread(thread)
	if err != nil {
		return 0, err
	}

	classes, err := s.conn.ClassesBySignature(ctx, runtimeClassSignature)
	if err != nil {
		return 0, err
	}
	runtimeClass := classes[0].Type
	methods, err := s.conn.Methods(ctx, runtimeClass)
	if err != nil {
		return 0, err
	}
	getRuntime, err := findMethodIn(methods, "getRuntime", "()Ljava/lang/Runtime;")
	if err != nil {
		return 0, err
	}
	res, err := s.conn.InvokeStaticMethod(ctx, runtimeClass, thread, getRuntime.ID, nil, 0)
	if err != nil {
		return 0, err
	}
	runtime, err := expectObject(res)
	if err != nil {
		return 0, err
	}

	commandString, err := s.conn.CreateString(ctx, command)
	if err != nil {
		return 0, err
	}
	// The exec method lives on java.lang.Runtime, in the method list
	// already fetched above.
	execMethod, err := findMethodIn(methods, "exec", "(Ljava/lang/String;)Ljava/lang/Process;")
	if err != nil {
		return 0, err
	}
	res, err = s.conn.InvokeInstanceMethod(ctx, runtime, thread, runtimeClass,
		execMethod.ID, []TaggedValue{NewStringValue(commandString)}, 0)
	if err != nil {
		return 0, err
	}
	process, err := expectObject(res)
	if err != nil {
		return 0, err
	}

	classes, err = s.conn.ClassesBySignature(ctx, processClassSignature)
	if err != nil {
		return 0, err
	}
	processClass := classes[0].Type
	waitFor, err := s.conn.FindMethod(ctx, processClass, "waitFor", "()I")
	if err != nil {
		return 0, err
	}
	res, err = s.conn.InvokeInstanceMethod(ctx, process, thread, processClass, waitFor.ID, nil, 0)
	if err != nil {
		return 0, err
	}
	if err := res.Err(); err != nil {
		return 0, err
	}
	if res.Return.Tag != TagInt {
		return 0, &InvalidTagError{Want: TagInt, Got: res.Return.Tag}
	}
	return res.Return.Int(), nil
}

// LoadLibrary loads a native library inside the debugged VM through
// java.lang.System.load(absolutePath). The same thread contract as
// [*Session.Exec] applies.
func (s *Session) LoadLibrary(ctx context.Context, thread ThreadID, absolutePath string) error {
	thread, err := s.execThread(thread)
	if err != nil {
		return err
	}
	classes, err := s.conn.ClassesBySignature(ctx, systemClassSignature)
	if err != nil {
		return err
	}
	systemClass := classes[0].Type
	load, err := s.conn.FindMethod(ctx, systemClass, "load", "(Ljava/lang/String;)V")
	if err != nil {
		return err
	}
	pathString, err := s.conn.CreateString(ctx, absolutePath)
	if err != nil {
		return err
	}
	res, err := s.conn.InvokeStaticMethod(ctx, systemClass, thread, load.ID,
		[]TaggedValue{NewStringValue(pathString)}, 0)
	if err != nil {
		return err
	}
	if err := res.Err(); err != nil {
		return err
	}
	if !res.Return.IsVoid() {
		return &InvalidTagError{Want: TagVoid, Got: res.Return.Tag}
	}
	return nil
}

// Stop detaches in order: clear every recorded breakpoint, resume every
// suspended thread (both warn-and-continue), tell the VM the debugger
// is going, and close the connection, rejecting pending commands. Stop
// is idempotent.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	breakpoints := make([]uint32, 0, len(s.breakpoints))
	for requestID := range s.breakpoints {
		breakpoints = append(breakpoints, requestID)
	}
	suspended := make([]ThreadID, 0, len(s.suspended))
	for thread := range s.suspended {
		suspended = append(suspended, thread)
	}
	s.teardownLocked()
	s.mu.Unlock()

	for _, requestID := range breakpoints {
		if err := s.conn.ClearEventRequest(ctx, EventKindBreakpoint, requestID); err != nil {
			s.logStopWarning("jdwpClearBreakpointFailed", err)
		}
	}
	for _, thread := range suspended {
		if err := s.conn.ResumeThread(ctx, thread); err != nil {
			s.logStopWarning("jdwpResumeThreadFailed", err)
		}
	}
	if err := s.conn.Dispose(ctx); err != nil {
		s.logStopWarning("jdwpDisposeFailed", err)
	}
	return s.conn.Close()
}

func (s *Session) logAttachWarning(msg, kind string, err error) {
	s.Logger.Info(
		msg,
		slog.Any("err", err),
		slog.String("errClass", s.ErrClassifier.Classify(err)),
		slog.String("eventKind", kind),
		slog.Int("pid", s.pid),
		slog.Time("t", s.TimeNow()),
	)
}

func (s *Session) logStopWarning(msg string, err error) {
	s.Logger.Info(
		msg,
		slog.Any("err", err),
		slog.String("errClass", s.ErrClassifier.Classify(err)),
		slog.Int("pid", s.pid),
		slog.Time("t", s.TimeNow()),
	)
}
