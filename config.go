// SPDX-License-Identifier: GPL-3.0-or-later

package jdwp

import (
	"net"
	"time"
)

// DefaultReplyTimeout is the default per-command reply deadline.
const DefaultReplyTimeout = 5 * time.Second

// Config holds common configuration for jdwp operations.
//
// Pass this to constructor functions to pre-wire dependencies.
// All fields have sensible defaults set by [NewConfig].
type Config struct {
	// Dialer is used by [*ConnectFunc].
	//
	// Set by [NewConfig] to [*net.Dialer].
	Dialer Dialer

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewConfig] to [DefaultErrClassifier].
	ErrClassifier ErrClassifier

	// ReplyTimeout is the per-command reply deadline used by [*Conn.Send]
	// when the caller's context does not expire first.
	//
	// Set by [NewConfig] to [DefaultReplyTimeout].
	ReplyTimeout time.Duration

	// TimeNow returns the current time.
	//
	// Set by [NewConfig] to [time.Now].
	TimeNow func() time.Time
}

// NewConfig creates a [*Config] with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Dialer:        &net.Dialer{},
		ErrClassifier: DefaultErrClassifier,
		ReplyTimeout:  DefaultReplyTimeout,
		TimeNow:       time.Now,
	}
}
