// SPDX-License-Identifier: GPL-3.0-or-later

package jdwp

import (
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/bassosimone/safeconn"
)

// Command set and command of the composite event packet, the only
// command the VM sends on its own initiative.
const (
	eventCommandSet  = uint8(64)
	compositeCommand = uint8(100)
)

// EventHandler consumes one event record together with the suspend
// policy of the composite packet that carried it.
//
// Handlers run synchronously on the connection's read loop and must not
// block: events inside one composite packet are delivered in wire order
// before the next inbound packet is processed. A handler that needs to
// send commands must do so from its own goroutine, otherwise it
// deadlocks waiting for a reply the read loop cannot receive.
type EventHandler func(policy SuspendPolicy, event Event)

// Conn multiplexes command/reply transactions and asynchronously
// delivered composite events over a single debug stream.
//
// This type owns the underlying connection. The caller must call Close
// when done, which rejects pending commands and closes the stream.
//
// Construct via [NewConn], which starts the read loop. All methods are
// safe for concurrent use.
type Conn struct {
	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewConn] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the SLogger to use.
	//
	// Set by [NewConn] to the user-provided logger.
	Logger SLogger

	// ReplyTimeout is the per-command reply deadline.
	//
	// Set by [NewConn] from [Config.ReplyTimeout].
	ReplyTimeout time.Duration

	// TimeNow is the function to get the current time.
	//
	// Set by [NewConn] from [Config.TimeNow].
	TimeNow func() time.Time

	// conn is the owned connection, already past the handshake.
	conn net.Conn

	// laddr, protocol, and raddr are cached for log fields.
	laddr    string
	protocol string
	raddr    string

	// writeMu serializes outbound packets.
	writeMu sync.Mutex

	// done is closed when the connection shuts down.
	done chan struct{}

	// mu guards the fields below.
	mu       sync.Mutex
	closed   bool
	failErr  error
	handlers map[uint32]EventHandler
	nextID   uint32
	pending  map[uint32]chan *Packet
	sizes    IDSizes
}

// NewConn wraps a connection that already completed the handshake (see
// [*HandshakeFunc]) and starts the read loop that correlates replies and
// routes events.
//
// The cfg argument contains the common configuration for jdwp operations.
//
// The logger argument is the [SLogger] to use for structured logging.
func NewConn(cfg *Config, conn net.Conn, logger SLogger) *Conn {
	c := &Conn{
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		ReplyTimeout:  cfg.ReplyTimeout,
		TimeNow:       cfg.TimeNow,
		conn:          conn,
		laddr:         safeconn.LocalAddr(conn),
		protocol:      safeconn.Network(conn),
		raddr:         safeconn.RemoteAddr(conn),
		done:          make(chan struct{}),
		handlers:      make(map[uint32]EventHandler),
		nextID:        1,
		pending:       make(map[uint32]chan *Packet),
		sizes:         DefaultIDSizes(),
	}
	go c.readLoop()
	return c
}

// IDSizes returns the ID widths currently used to encode and decode.
func (c *Conn) IDSizes() IDSizes {
	defer c.mu.Unlock()
	c.mu.Lock()
	return c.sizes
}

// SetIDSizes installs the ID widths negotiated with the VM.
//
// Call this with the answer of [*Conn.NegotiateIDSizes] before issuing
// commands that carry IDs. [*Session] attach does this automatically.
func (c *Conn) SetIDSizes(sizes IDSizes) {
	defer c.mu.Unlock()
	c.mu.Lock()
	c.sizes = sizes
}

// OnEvent registers the handler for events produced by the given event
// request. Use [WildcardRequestID] to receive every event that has no
// specific subscriber. An event reaches at most one handler: the
// specific one, or the wildcard if none.
func (c *Conn) OnEvent(requestID uint32, handler EventHandler) {
	defer c.mu.Unlock()
	c.mu.Lock()
	if c.closed {
		return
	}
	c.handlers[requestID] = handler
}

// ClearEventHandler removes the handler for the given event request.
func (c *Conn) ClearEventHandler(requestID uint32) {
	defer c.mu.Unlock()
	c.mu.Lock()
	delete(c.handlers, requestID)
}

// Close rejects every pending command and closes the stream. Subsequent
// calls are no-ops returning nil.
func (c *Conn) Close() error {
	return c.shutdown(ErrClosed)
}

// Done returns a channel closed when the connection shuts down, either
// by [*Conn.Close] or because the transport died.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Send issues one command and awaits the matching reply.
//
// The payload must already be encoded for the given command. On success
// the returned slice holds the reply payload with the 2-byte error code
// stripped; command decoders therefore see only command-specific bytes.
// A zero-length reply counts as success with an empty payload.
//
// A non-zero error code is returned as a [*ProtocolError]. No reply
// within [Conn.ReplyTimeout] returns [ErrReplyTimeout], and a reply
// arriving later is logged and dropped. The caller's context cancels
// the wait, not the command: the VM may still execute it.
func (c *Conn) Send(ctx context.Context, commandSet, command uint8, payload []byte) ([]byte, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	id := c.nextID
	c.nextID++
	ch := make(chan *Packet, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	pkt := &Packet{ID: id, CommandSet: commandSet, Command: command, Payload: payload}
	t0 := c.TimeNow()
	deadline, _ := ctx.Deadline()
	c.logSendStart(pkt, t0, deadline)

	if err := c.writePacket(pkt); err != nil {
		c.forget(id)
		c.logSendDone(pkt, t0, deadline, err)
		return nil, err
	}

	timer := time.NewTimer(c.ReplyTimeout)
	defer timer.Stop()

	var (
		body []byte
		err  error
	)
	select {
	case reply, ok := <-ch:
		if !ok {
			err = c.failureReason()
			break
		}
		body, err = c.parseReply(reply)
	case <-timer.C:
		c.forget(id)
		err = ErrReplyTimeout
	case <-ctx.Done():
		c.forget(id)
		err = ctx.Err()
	}
	c.logSendDone(pkt, t0, deadline, err)
	return body, err
}

// parseReply validates the error-code field and strips it.
func (c *Conn) parseReply(reply *Packet) ([]byte, error) {
	// A bare header reply is a success with an implicit zero error code.
	if len(reply.Payload) == 0 {
		return nil, nil
	}
	if len(reply.Payload) < 2 {
		err := &MalformedPacketError{Reason: "reply payload shorter than error code"}
		c.shutdown(ErrDisconnected)
		return nil, err
	}
	if code := ErrorCode(binary.BigEndian.Uint16(reply.Payload[0:2])); code != ErrCodeNone {
		return nil, &ProtocolError{Code: code, PacketID: reply.ID}
	}
	return reply.Payload[2:], nil
}

// writePacket encodes and writes one packet under the single-writer lock.
func (c *Conn) writePacket(pkt *Packet) error {
	defer c.writeMu.Unlock()
	c.writeMu.Lock()
	_, err := c.conn.Write(appendPacket(nil, pkt))
	return err
}

// forget drops the pending entry for id, if still present.
func (c *Conn) forget(id uint32) {
	defer c.mu.Unlock()
	c.mu.Lock()
	delete(c.pending, id)
}

// failureReason returns the error that tore the connection down.
func (c *Conn) failureReason() error {
	defer c.mu.Unlock()
	c.mu.Lock()
	if c.failErr != nil {
		return c.failErr
	}
	return ErrDisconnected
}

// shutdown transitions to closed once: pending waiters are rejected,
// handlers are dropped, and the stream is closed.
func (c *Conn) shutdown(reason error) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.failErr = reason
	pending := c.pending
	c.pending = make(map[uint32]chan *Packet)
	c.handlers = make(map[uint32]EventHandler)
	c.mu.Unlock()

	for _, ch := range pending {
		close(ch)
	}
	close(c.done)
	err := c.conn.Close()
	c.Logger.Info(
		"jdwpConnClose",
		slog.Any("err", err),
		slog.String("errClass", c.ErrClassifier.Classify(err)),
		slog.String("localAddr", c.laddr),
		slog.String("protocol", c.protocol),
		slog.Any("reason", reason),
		slog.String("remoteAddr", c.raddr),
		slog.Time("t", c.TimeNow()),
	)
	return err
}

// readLoop recovers whole packets from the stream and routes them until
// the stream dies or the connection is closed.
func (c *Conn) readLoop() {
	header := make([]byte, headerSize)
	for {
		if _, err := io.ReadFull(c.conn, header); err != nil {
			c.readFailed(err)
			return
		}
		length := binary.BigEndian.Uint32(header[0:4])
		if length < headerSize {
			c.readFailed(&MalformedPacketError{Reason: "declared length below header size"})
			return
		}
		buf := make([]byte, length)
		copy(buf, header)
		if _, err := io.ReadFull(c.conn, buf[headerSize:]); err != nil {
			c.readFailed(err)
			return
		}
		pkt, err := parsePacket(buf)
		if err != nil {
			c.readFailed(err)
			return
		}
		if pkt.IsReply() {
			c.dispatchReply(pkt)
			continue
		}
		if pkt.CommandSet == eventCommandSet && pkt.Command == compositeCommand {
			if !c.dispatchComposite(pkt) {
				return
			}
			continue
		}
		// The VM has no business sending other commands; drop.
		c.Logger.Info(
			"jdwpUnexpectedCommand",
			slog.Uint64("command", uint64(pkt.Command)),
			slog.Uint64("commandSet", uint64(pkt.CommandSet)),
			slog.Uint64("packetID", uint64(pkt.ID)),
			slog.String("localAddr", c.laddr),
			slog.String("remoteAddr", c.raddr),
			slog.Time("t", c.TimeNow()),
		)
	}
}

// readFailed logs the read loop's terminal error and tears down.
func (c *Conn) readFailed(err error) {
	c.Logger.Info(
		"jdwpReadFailed",
		slog.Any("err", err),
		slog.String("errClass", c.ErrClassifier.Classify(err)),
		slog.String("localAddr", c.laddr),
		slog.String("remoteAddr", c.raddr),
		slog.Time("t", c.TimeNow()),
	)
	c.shutdown(ErrDisconnected)
}

// dispatchReply resolves the pending command waiting on the reply's ID.
func (c *Conn) dispatchReply(pkt *Packet) {
	c.mu.Lock()
	ch, ok := c.pending[pkt.ID]
	delete(c.pending, pkt.ID)
	c.mu.Unlock()
	if !ok {
		// Late reply after a timeout, or a reply the VM invented.
		c.Logger.Info(
			"jdwpUnmatchedReply",
			slog.Uint64("packetID", uint64(pkt.ID)),
			slog.String("localAddr", c.laddr),
			slog.String("remoteAddr", c.raddr),
			slog.Time("t", c.TimeNow()),
		)
		return
	}
	ch <- pkt
}

// dispatchComposite decodes a composite event packet and delivers each
// contained record in wire order. Returns false when the read loop must
// stop because the packet was malformed or the VM reported its death.
func (c *Conn) dispatchComposite(pkt *Packet) bool {
	composite, err := decodeCompositeEvent(c.IDSizes(), pkt.Payload)
	if err != nil {
		c.readFailed(err)
		return false
	}
	dead := false
	for _, event := range composite.Events {
		c.Logger.Info(
			"jdwpEvent",
			slog.String("eventKind", event.Kind().String()),
			slog.Uint64("requestID", uint64(event.RequestID())),
			slog.Uint64("suspendPolicy", uint64(composite.SuspendPolicy)),
			slog.String("localAddr", c.laddr),
			slog.String("remoteAddr", c.raddr),
			slog.Time("t", c.TimeNow()),
		)
		c.deliver(composite.SuspendPolicy, event)
		if event.Kind() == EventKindVMDeath {
			dead = true
		}
	}
	if dead {
		// No reply will ever arrive again; reject waiters now rather
		// than letting each of them run into its timeout.
		c.shutdown(ErrDisconnected)
		return false
	}
	return true
}

// deliver routes one event to its handler, isolating handler panics.
func (c *Conn) deliver(policy SuspendPolicy, event Event) {
	c.mu.Lock()
	handler := c.handlers[event.RequestID()]
	if handler == nil {
		handler = c.handlers[WildcardRequestID]
	}
	c.mu.Unlock()
	if handler == nil {
		c.Logger.Info(
			"jdwpUnhandledEvent",
			slog.String("eventKind", event.Kind().String()),
			slog.Uint64("requestID", uint64(event.RequestID())),
			slog.Time("t", c.TimeNow()),
		)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.Logger.Info(
				"jdwpEventHandlerPanic",
				slog.Any("panic", r),
				slog.String("eventKind", event.Kind().String()),
				slog.Uint64("requestID", uint64(event.RequestID())),
				slog.Time("t", c.TimeNow()),
			)
		}
	}()
	handler(policy, event)
}

func (c *Conn) logSendStart(pkt *Packet, t0 time.Time, deadline time.Time) {
	c.Logger.Debug(
		"jdwpSendStart",
		slog.Uint64("command", uint64(pkt.Command)),
		slog.Uint64("commandSet", uint64(pkt.CommandSet)),
		slog.Time("deadline", deadline),
		slog.Uint64("packetID", uint64(pkt.ID)),
		slog.Int("payloadSize", len(pkt.Payload)),
		slog.String("localAddr", c.laddr),
		slog.String("protocol", c.protocol),
		slog.String("remoteAddr", c.raddr),
		slog.Time("t", t0),
	)
}

func (c *Conn) logSendDone(pkt *Packet, t0 time.Time, deadline time.Time, err error) {
	c.Logger.Debug(
		"jdwpSendDone",
		slog.Uint64("command", uint64(pkt.Command)),
		slog.Uint64("commandSet", uint64(pkt.CommandSet)),
		slog.Time("deadline", deadline),
		slog.Any("err", err),
		slog.String("errClass", c.ErrClassifier.Classify(err)),
		slog.Uint64("packetID", uint64(pkt.ID)),
		slog.String("localAddr", c.laddr),
		slog.String("protocol", c.protocol),
		slog.String("remoteAddr", c.raddr),
		slog.Time("t0", t0),
		slog.Time("t", c.TimeNow()),
	)
}
