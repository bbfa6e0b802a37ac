// SPDX-License-Identifier: GPL-3.0-or-later

package jdwp

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/bassosimone/safeconn"
)

// handshakeMagic is the 14-byte US-ASCII exchange opening every debug
// stream. The client writes it; the VM echoes it back verbatim. The
// byte after the 14th is already the first byte of a packet, which is
// why the func reads exactly 14 bytes and not a byte more.
const handshakeMagic = "JDWP-Handshake"

// NewHandshakeFunc returns a new [*HandshakeFunc].
//
// The cfg argument contains the common configuration for jdwp operations.
//
// The logger argument is the [SLogger] to use for structured logging.
func NewHandshakeFunc(cfg *Config, logger SLogger) *HandshakeFunc {
	return &HandshakeFunc{
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		TimeNow:       cfg.TimeNow,
	}
}

// HandshakeFunc performs the opening handshake over an existing stream
// already addressed to the debugged process.
//
// The input is a [net.Conn], typically produced by [*ADBOpenFunc].
//
// Returns either the same connection, now positioned at the first packet
// boundary, or an error, never both. Any mismatch or short read is fatal
// and closes the connection, per the pipeline cleanup contract.
//
// All fields are safe to modify after construction but before first use.
// Fields must not be mutated concurrently with calls to [Call].
type HandshakeFunc struct {
	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewHandshakeFunc] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use (configurable for testing or custom logging).
	//
	// Set by [NewHandshakeFunc] to the user-provided logger.
	Logger SLogger

	// TimeNow is the function to get the current time (configurable for testing).
	//
	// Set by [NewHandshakeFunc] from [Config.TimeNow].
	TimeNow func() time.Time
}

var _ Func[net.Conn, net.Conn] = &HandshakeFunc{}

// Call invokes the [*HandshakeFunc] to perform the handshake.
func (op *HandshakeFunc) Call(ctx context.Context, conn net.Conn) (net.Conn, error) {
	t0 := op.TimeNow()
	deadline, _ := ctx.Deadline()
	op.logHandshakeStart(conn, t0, deadline)
	err := op.handshake(conn)
	op.logHandshakeDone(conn, t0, deadline, err)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func (op *HandshakeFunc) handshake(conn net.Conn) error {
	if _, err := conn.Write([]byte(handshakeMagic)); err != nil {
		return err
	}
	echo := make([]byte, len(handshakeMagic))
	if _, err := io.ReadFull(conn, echo); err != nil {
		return err
	}
	if !bytes.Equal(echo, []byte(handshakeMagic)) {
		return &HandshakeError{Got: echo}
	}
	return nil
}

func (op *HandshakeFunc) logHandshakeStart(conn net.Conn, t0 time.Time, deadline time.Time) {
	op.Logger.Info(
		"jdwpHandshakeStart",
		slog.Time("deadline", deadline),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", safeconn.Network(conn)),
		slog.String("remoteAddr", safeconn.RemoteAddr(conn)),
		slog.Time("t", t0),
	)
}

func (op *HandshakeFunc) logHandshakeDone(conn net.Conn, t0 time.Time, deadline time.Time, err error) {
	op.Logger.Info(
		"jdwpHandshakeDone",
		slog.Time("deadline", deadline),
		slog.Any("err", err),
		slog.String("errClass", op.ErrClassifier.Classify(err)),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", safeconn.Network(conn)),
		slog.String("remoteAddr", safeconn.RemoteAddr(conn)),
		slog.Time("t0", t0),
		slog.Time("t", op.TimeNow()),
	)
}
