// SPDX-License-Identifier: GPL-3.0-or-later

// Package jdwp implements a client for the Java Debug Wire Protocol as
// spoken by Android-hosted virtual machines.
//
// The client attaches to a running managed process through the Android
// debug bridge, observes its execution (threads, class loads, breakpoints,
// single steps), manipulates its state (suspend and resume, frame and
// object inspection, method invocation), and composes higher-level
// operations such as running a shell command inside the process via the
// standard runtime facilities.
//
// # Layers
//
// The package is organised in three layers:
//
//   - The protocol connection ([Conn]): packet framing over a byte
//     stream, command/reply correlation by packet ID, and routing of
//     asynchronously delivered composite events to registered handlers.
//     Typed methods cover every command used, from
//     [Conn.ClassesBySignature] to [Conn.InvokeStaticMethod] and
//     [Conn.SetEventRequest].
//
//   - The session facade ([Session]): per-PID state on top of a Conn,
//     with a breakpoint registry, thread bookkeeping, the
//     [Session.SetBreakpointAndWait] primitive, and the helpers built
//     on method invocation ([Session.Exec], [Session.LoadLibrary],
//     [Session.LocalVariables], [Session.InspectObject]).
//
//   - The attach pipeline: [Func] primitives composed via [Compose2]
//     and friends, mirroring how connections are established step by
//     step: [NewEndpointFunc] injects the adb server endpoint,
//     [ConnectFunc] dials it, [ADBOpenFunc] opens the jdwp service for
//     a PID, and [HandshakeFunc] performs the opening exchange.
//     [Debugger] wires the pipeline and enforces one session per PID.
//
// # Connection Lifecycle
//
// Dial operations ([ConnectFunc]) create connections and transfer
// ownership to the next stage on success; stages taking a connection as
// input ([ADBOpenFunc], [HandshakeFunc]) close it when they fail. The
// session owns the connection afterwards: [Session.Stop] clears
// breakpoints, resumes suspended threads, and closes it. A dying
// transport rejects every pending command with [ErrDisconnected].
//
// # Concurrency
//
// One goroutine per connection reads the stream, resolves replies, and
// delivers events synchronously in wire order. Event handlers must not
// block and must not send commands inline; see [EventHandler]. Commands
// may be issued from any goroutine: outbound packets are serialized and
// every command awaits its own reply subject to [Config.ReplyTimeout]
// and the caller's context.
//
// # Observability
//
// All primitives support structured logging via [SLogger] (compatible with [log/slog]).
//
// By default, logging is disabled. Set the Logger field to a custom [*slog.Logger]
// to enable logging. Error classification is configurable via [ErrClassifier]; by
// default, errors are classified with the errclass package.
//
// Lifecycle and protocol events (connect, adb open, handshake, event
// delivery, close) are logged at [slog.LevelInfo] with a common set of
// fields: localAddr, remoteAddr, protocol, and t (timestamp); completion
// events additionally include t0, err, and errClass. Per-command send
// events of [Conn] and per-I/O events emitted by [ObserveConnFunc] use
// [slog.LevelDebug].
//
// Use [NewSpanID] to generate a unique, time-ordered identifier (UUIDv7) for each
// operation, then attach it to the logger with [*slog.Logger.With]. All log entries
// from that operation will share the same spanID, enabling correlation across
// pipeline stages and simplifying log analysis.
//
// # Timeout and Context Philosophy
//
// This package is context-transparent: operations never modify the context they
// receive. The caller controls timeouts externally via [context.WithTimeout],
// [context.WithDeadline], or [signal.NotifyContext]. Two exceptions are
// documented where they apply: [Conn.Send] arms the per-command reply
// deadline of [Config.ReplyTimeout], and the session clears fired
// one-shot step requests in the background.
//
// Attach pipelines may include [CancelWatchFunc] to bind the attach
// context to the connection; long-lived sessions instead rely on
// [Session.Stop] for cleanup, since the connection outlives the attach
// context by design.
//
// # Design Boundaries
//
// The package is a library: device discovery, PID enumeration, and user
// interfaces belong to higher-level tooling. Source-level debugging
// (line tables, expression evaluation) and transport security are out
// of scope; the byte stream to the VM is assumed trusted.
package jdwp
