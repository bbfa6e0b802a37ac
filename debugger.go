// SPDX-License-Identifier: GPL-3.0-or-later

package jdwp

import (
	"context"
	"net"
	"net/netip"
	"sync"
)

// DefaultADBEndpoint is the adb server's conventional listening endpoint.
var DefaultADBEndpoint = netip.MustParseAddrPort("127.0.0.1:5037")

// Debugger manages at most one debug session per PID.
//
// Construct via [NewDebugger]. All methods are safe for concurrent use.
type Debugger struct {
	// Config holds the common configuration.
	//
	// Set by [NewDebugger] to the user-provided config.
	Config *Config

	// Endpoint is the adb server endpoint to dial.
	//
	// Set by [NewDebugger] to [DefaultADBEndpoint].
	Endpoint netip.AddrPort

	// Logger is the SLogger to use.
	//
	// Set by [NewDebugger] to the user-provided logger.
	Logger SLogger

	// Serial optionally selects a device by serial number; empty means
	// the only connected device.
	//
	// Set by [NewDebugger] to the empty string.
	Serial string

	// mu guards sessions.
	mu       sync.Mutex
	sessions map[int]*Session
}

// NewDebugger returns a new [*Debugger].
//
// The cfg argument contains the common configuration for jdwp operations.
//
// The logger argument is the [SLogger] to use for structured logging.
func NewDebugger(cfg *Config, logger SLogger) *Debugger {
	return &Debugger{
		Config:   cfg,
		Endpoint: DefaultADBEndpoint,
		Logger:   logger,
		Serial:   "",
		sessions: make(map[int]*Session),
	}
}

// attachPipeline composes the attach workflow for one PID: inject the
// adb endpoint, dial it, open the jdwp service, and handshake. The
// caller's context bounds the attach attempt only, so there is no
// [*CancelWatchFunc] stage: the session outlives the attach context and
// closes the connection on stop.
func (d *Debugger) attachPipeline(pid int) Func[Unit, net.Conn] {
	adbOpen := NewADBOpenFunc(d.Config, pid, d.Logger)
	adbOpen.Serial = d.Serial
	return Compose4(
		NewEndpointFunc(d.Endpoint),
		NewConnectFunc(d.Config, d.Logger),
		adbOpen,
		NewHandshakeFunc(d.Config, d.Logger),
	)
}

// StartDebugging attaches to the given PID and registers the session.
//
// A PID with a live session is rejected with [*DuplicateSessionError];
// the slot frees up again when [*Debugger.StopDebugging] runs or the
// session dies.
func (d *Debugger) StartDebugging(ctx context.Context, packageName string, pid int) (*Session, error) {
	// Reserve the slot first so concurrent attaches to one PID race on
	// the registry, not on the device.
	d.mu.Lock()
	if _, found := d.sessions[pid]; found {
		d.mu.Unlock()
		return nil, &DuplicateSessionError{PID: pid}
	}
	d.sessions[pid] = nil
	d.mu.Unlock()

	conn, err := d.attachPipeline(pid).Call(ctx, Unit{})
	if err != nil {
		d.release(pid)
		return nil, err
	}
	session, err := NewSession(ctx, d.Config, conn, pid, packageName, d.Logger)
	if err != nil {
		d.release(pid)
		return nil, err
	}

	d.mu.Lock()
	d.sessions[pid] = session
	d.mu.Unlock()

	// Free the slot once the session's connection goes away, however
	// that happens.
	go func() {
		<-session.Conn().Done()
		d.releaseSession(pid, session)
	}()
	return session, nil
}

// Session returns the live session for the given PID, if any.
func (d *Debugger) Session(pid int) (*Session, bool) {
	defer d.mu.Unlock()
	d.mu.Lock()
	session, found := d.sessions[pid]
	return session, found && session != nil
}

// StopDebugging stops the session for the given PID. Stopping a PID
// without a session is a no-op, making teardown idempotent.
func (d *Debugger) StopDebugging(ctx context.Context, pid int) error {
	d.mu.Lock()
	session := d.sessions[pid]
	d.mu.Unlock()
	if session == nil {
		return nil
	}
	err := session.Stop(ctx)
	d.releaseSession(pid, session)
	return err
}

// release frees the registry slot for pid unconditionally. Used while
// the slot is still a reservation.
func (d *Debugger) release(pid int) {
	defer d.mu.Unlock()
	d.mu.Lock()
	delete(d.sessions, pid)
}

// releaseSession frees the slot only while it still holds the given
// session, so a stale cleanup cannot evict a newer session for the
// same PID.
func (d *Debugger) releaseSession(pid int, session *Session) {
	defer d.mu.Unlock()
	d.mu.Lock()
	if d.sessions[pid] == session {
		delete(d.sessions, pid)
	}
}
