// SPDX-License-Identifier: GPL-3.0-or-later

package jdwp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/bassosimone/safeconn"
)

// NewADBOpenFunc returns a new [*ADBOpenFunc] for the given PID.
//
// The cfg argument contains the common configuration for jdwp operations.
//
// The pid argument is the debuggable process to open a jdwp stream to.
//
// The logger argument is the [SLogger] to use for structured logging.
func NewADBOpenFunc(cfg *Config, pid int, logger SLogger) *ADBOpenFunc {
	return &ADBOpenFunc{
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		PID:           pid,
		Serial:        "",
		TimeNow:       cfg.TimeNow,
	}
}

// ADBOpenFunc turns a connection to the adb server into a jdwp stream
// addressed to a debuggable process on the device.
//
// The adb host protocol frames each request as four ASCII hex digits
// encoding the request length, followed by the request bytes; the server
// answers with the status word "OKAY" or "FAIL", the latter followed by
// a length-prefixed failure message. The func issues two requests: a
// transport request selecting the device, then "jdwp:<pid>". After the
// second OKAY the connection carries the raw debug stream and the next
// step is the [*HandshakeFunc].
//
// The input connection is owned by this func: on failure it is closed
// before returning, per the pipeline cleanup contract.
//
// All fields are safe to modify after construction but before first use.
// Fields must not be mutated concurrently with calls to [Call].
type ADBOpenFunc struct {
	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewADBOpenFunc] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use (configurable for testing or custom logging).
	//
	// Set by [NewADBOpenFunc] to the user-provided logger.
	Logger SLogger

	// PID is the debuggable process to attach to.
	//
	// Set by [NewADBOpenFunc] to the user-provided value.
	PID int

	// Serial optionally selects a device by serial number. When empty,
	// the func uses "host:transport-any", which requires exactly one
	// connected device.
	//
	// Set by [NewADBOpenFunc] to the empty string.
	Serial string

	// TimeNow is the function to get the current time (configurable for testing).
	//
	// Set by [NewADBOpenFunc] from [Config.TimeNow].
	TimeNow func() time.Time
}

var _ Func[net.Conn, net.Conn] = &ADBOpenFunc{}

// Call issues the transport and jdwp service requests over the given
// adb server connection.
func (op *ADBOpenFunc) Call(ctx context.Context, conn net.Conn) (net.Conn, error) {
	transport := "host:transport-any"
	if op.Serial != "" {
		transport = "host:transport:" + op.Serial
	}
	for _, service := range []string{transport, fmt.Sprintf("jdwp:%d", op.PID)} {
		t0 := op.TimeNow()
		deadline, _ := ctx.Deadline()
		op.logOpenStart(conn, service, t0, deadline)
		err := adbRequest(conn, service)
		op.logOpenDone(conn, service, t0, deadline, err)
		if err != nil {
			conn.Close()
			return nil, err
		}
	}
	return conn, nil
}

// adbRequest sends one service request and consumes the status answer.
func adbRequest(conn net.Conn, service string) error {
	request := fmt.Sprintf("%04x%s", len(service), service)
	if _, err := conn.Write([]byte(request)); err != nil {
		return err
	}
	status := make([]byte, 4)
	if _, err := io.ReadFull(conn, status); err != nil {
		return err
	}
	switch string(status) {
	case "OKAY":
		return nil
	case "FAIL":
		message, err := adbReadMessage(conn)
		if err != nil {
			return err
		}
		return &ADBError{Service: service, Message: message}
	default:
		return &ADBError{Service: service, Message: fmt.Sprintf("unexpected status %q", status)}
	}
}

// adbReadMessage reads a hex-length-prefixed message from the server.
func adbReadMessage(conn net.Conn) (string, error) {
	hexlen := make([]byte, 4)
	if _, err := io.ReadFull(conn, hexlen); err != nil {
		return "", err
	}
	length, err := strconv.ParseUint(string(hexlen), 16, 16)
	if err != nil {
		return "", err
	}
	message := make([]byte, length)
	if _, err := io.ReadFull(conn, message); err != nil {
		return "", err
	}
	return string(message), nil
}

func (op *ADBOpenFunc) logOpenStart(conn net.Conn, service string, t0 time.Time, deadline time.Time) {
	op.Logger.Info(
		"adbOpenStart",
		slog.String("adbService", service),
		slog.Time("deadline", deadline),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", safeconn.Network(conn)),
		slog.String("remoteAddr", safeconn.RemoteAddr(conn)),
		slog.Time("t", t0),
	)
}

func (op *ADBOpenFunc) logOpenDone(conn net.Conn, service string, t0 time.Time, deadline time.Time, err error) {
	op.Logger.Info(
		"adbOpenDone",
		slog.String("adbService", service),
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
