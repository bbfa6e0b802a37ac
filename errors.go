// SPDX-License-Identifier: GPL-3.0-or-later

package jdwp

import (
	"errors"
	"fmt"
)

// ErrorCode is the numeric error code carried by a reply packet.
type ErrorCode uint16

// Error codes defined by the protocol. The list is not exhaustive; an
// unlisted code still round-trips through [*ProtocolError] unchanged.
const (
	ErrCodeNone               = ErrorCode(0)
	ErrCodeInvalidThread      = ErrorCode(10)
	ErrCodeInvalidThreadGroup = ErrorCode(11)
	ErrCodeInvalidPriority    = ErrorCode(12)
	ErrCodeThreadNotSuspended = ErrorCode(13)
	ErrCodeThreadSuspended    = ErrorCode(14)
	ErrCodeThreadNotAlive     = ErrorCode(15)
	ErrCodeInvalidObject      = ErrorCode(20)
	ErrCodeInvalidClass       = ErrorCode(21)
	ErrCodeClassNotPrepared   = ErrorCode(22)
	ErrCodeInvalidMethodID    = ErrorCode(23)
	ErrCodeInvalidLocation    = ErrorCode(24)
	ErrCodeInvalidFieldID     = ErrorCode(25)
	ErrCodeInvalidFrameID     = ErrorCode(30)
	ErrCodeNoMoreFrames       = ErrorCode(31)
	ErrCodeOpaqueFrame        = ErrorCode(32)
	ErrCodeNotCurrentFrame    = ErrorCode(33)
	ErrCodeTypeMismatch       = ErrorCode(34)
	ErrCodeInvalidSlot        = ErrorCode(35)
	ErrCodeDuplicate          = ErrorCode(40)
	ErrCodeNotFound           = ErrorCode(41)
	ErrCodeNotImplemented     = ErrorCode(99)
	ErrCodeNullPointer        = ErrorCode(100)
	ErrCodeAbsentInformation  = ErrorCode(101)
	ErrCodeInvalidEventType   = ErrorCode(102)
	ErrCodeIllegalArgument    = ErrorCode(103)
	ErrCodeOutOfMemory        = ErrorCode(110)
	ErrCodeAccessDenied       = ErrorCode(111)
	ErrCodeVMDead             = ErrorCode(112)
	ErrCodeInternal           = ErrorCode(113)
	ErrCodeInvalidTag         = ErrorCode(500)
	ErrCodeAlreadyInvoking    = ErrorCode(502)
	ErrCodeInvalidIndex       = ErrorCode(503)
	ErrCodeInvalidLength      = ErrorCode(504)
	ErrCodeInvalidString      = ErrorCode(506)
	ErrCodeInvalidArray       = ErrorCode(508)
	ErrCodeInvalidCount       = ErrorCode(512)
)

var errorCodeNames = map[ErrorCode]string{
	ErrCodeInvalidThread:      "INVALID_THREAD",
	ErrCodeInvalidThreadGroup: "INVALID_THREAD_GROUP",
	ErrCodeInvalidPriority:    "INVALID_PRIORITY",
	ErrCodeThreadNotSuspended: "THREAD_NOT_SUSPENDED",
	ErrCodeThreadSuspended:    "THREAD_SUSPENDED",
	ErrCodeThreadNotAlive:     "THREAD_NOT_ALIVE",
	ErrCodeInvalidObject:      "INVALID_OBJECT",
	ErrCodeInvalidClass:       "INVALID_CLASS",
	ErrCodeClassNotPrepared:   "CLASS_NOT_PREPARED",
	ErrCodeInvalidMethodID:    "INVALID_METHODID",
	ErrCodeInvalidLocation:    "INVALID_LOCATION",
	ErrCodeInvalidFieldID:     "INVALID_FIELDID",
	ErrCodeInvalidFrameID:     "INVALID_FRAMEID",
	ErrCodeNoMoreFrames:       "NO_MORE_FRAMES",
	ErrCodeOpaqueFrame:        "OPAQUE_FRAME",
	ErrCodeNotCurrentFrame:    "NOT_CURRENT_FRAME",
	ErrCodeTypeMismatch:       "TYPE_MISMATCH",
	ErrCodeInvalidSlot:        "INVALID_SLOT",
	ErrCodeDuplicate:          "DUPLICATE",
	ErrCodeNotFound:           "NOT_FOUND",
	ErrCodeNotImplemented:     "NOT_IMPLEMENTED",
	ErrCodeNullPointer:        "NULL_POINTER",
	ErrCodeAbsentInformation:  "ABSENT_INFORMATION",
	ErrCodeInvalidEventType:   "INVALID_EVENT_TYPE",
	ErrCodeIllegalArgument:    "ILLEGAL_ARGUMENT",
	ErrCodeOutOfMemory:        "OUT_OF_MEMORY",
	ErrCodeAccessDenied:       "ACCESS_DENIED",
	ErrCodeVMDead:             "VM_DEAD",
	ErrCodeInternal:           "INTERNAL",
	ErrCodeInvalidTag:         "INVALID_TAG",
	ErrCodeAlreadyInvoking:    "ALREADY_INVOKING",
	ErrCodeInvalidIndex:       "INVALID_INDEX",
	ErrCodeInvalidLength:      "INVALID_LENGTH",
	ErrCodeInvalidString:      "INVALID_STRING",
	ErrCodeInvalidArray:       "INVALID_ARRAY",
	ErrCodeInvalidCount:       "INVALID_COUNT",
}

// String implements [fmt.Stringer].
func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ERROR_%d", uint16(c))
}

// ErrClosed indicates an operation on a connection that was closed by
// [*Conn.Close] or by session teardown.
var ErrClosed = errors.New("jdwp: connection closed")

// ErrDisconnected rejects pending waiters and subscribers when the
// transport dies underneath the connection.
var ErrDisconnected = errors.New("jdwp: disconnected")

// ErrReplyTimeout indicates that no reply arrived within the per-command
// deadline. The command may be retried; a late reply is dropped.
var ErrReplyTimeout = errors.New("jdwp: reply timeout")

// ErrNoThreadAvailable indicates that an operation requiring a suspended
// thread found none.
var ErrNoThreadAvailable = errors.New("jdwp: no suspended thread available")

// ErrNullResult indicates that an invoked method returned null where an
// object was required.
var ErrNullResult = errors.New("jdwp: invoked method returned null")

// HandshakeError indicates that the VM answered the opening handshake
// with unexpected bytes.
type HandshakeError struct {
	// Got holds the bytes received instead of the expected magic.
	Got []byte
}

// Error implements the error interface.
func (e *HandshakeError) Error() string {
	return fmt.Sprintf("jdwp: handshake mismatch: got %q", e.Got)
}

// MalformedPacketError indicates bytes that cannot be parsed as the
// protocol requires. Such errors are fatal to the session because the
// byte stream has no resynchronisation points.
type MalformedPacketError struct {
	// Reason describes what could not be parsed.
	Reason string
}

// Error implements the error interface.
func (e *MalformedPacketError) Error() string {
	return "jdwp: malformed packet: " + e.Reason
}

// ProtocolError is a reply whose error code is non-zero.
type ProtocolError struct {
	// Code is the error code carried by the reply.
	Code ErrorCode

	// PacketID is the ID of the command the reply answers.
	PacketID uint32
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("jdwp: protocol error %s (packet %d)", e.Code, e.PacketID)
}

// VMDead reports whether the code implies that the VM is gone and the
// session cannot continue.
func (e *ProtocolError) VMDead() bool {
	return e.Code == ErrCodeVMDead
}

// UnsupportedIDSizesError indicates that the VM negotiated ID widths
// outside the 1..8 byte range this package can represent.
type UnsupportedIDSizesError struct {
	// Sizes holds the widths announced by the VM.
	Sizes IDSizes
}

// Error implements the error interface.
func (e *UnsupportedIDSizesError) Error() string {
	return fmt.Sprintf("jdwp: unsupported ID sizes: %+v", e.Sizes)
}

// ClassNotFoundError indicates that no loaded class matches a signature.
type ClassNotFoundError struct {
	// Signature is the JNI-style signature that did not match.
	Signature string
}

// Error implements the error interface.
func (e *ClassNotFoundError) Error() string {
	return fmt.Sprintf("jdwp: class not found: %s", e.Signature)
}

// MethodNotFoundError indicates that a reference type declares no method
// with the requested name and signature.
type MethodNotFoundError struct {
	// Name is the method name that did not match.
	Name string

	// Signature is the method signature that did not match; empty when
	// the lookup matched by name alone.
	Signature string
}

// Error implements the error interface.
func (e *MethodNotFoundError) Error() string {
	return fmt.Sprintf("jdwp: method not found: %s%s", e.Name, e.Signature)
}

// FieldNotFoundError indicates that a reference type declares no field
// with the requested name.
type FieldNotFoundError struct {
	// Name is the field name that did not match.
	Name string
}

// Error implements the error interface.
func (e *FieldNotFoundError) Error() string {
	return fmt.Sprintf("jdwp: field not found: %s", e.Name)
}

// FrameNotFoundError indicates that a suspended thread has no frame
// with the requested ID.
type FrameNotFoundError struct {
	// Frame is the frame ID that did not match.
	Frame FrameID
}

// Error implements the error interface.
func (e *FrameNotFoundError) Error() string {
	return fmt.Sprintf("jdwp: frame not found: 0x%x", uint64(e.Frame))
}

// InvalidTagError indicates a tagged value whose tag differs from the
// one the operation requires.
type InvalidTagError struct {
	// Want is the expected tag.
	Want Tag

	// Got is the tag actually observed.
	Got Tag
}

// Error implements the error interface.
func (e *InvalidTagError) Error() string {
	return fmt.Sprintf("jdwp: invalid tag: want %c, got %c", byte(e.Want), byte(e.Got))
}

// InvokeExceptionError indicates that an invoked method completed by
// throwing. The exception object remains inspectable inside the VM.
type InvokeExceptionError struct {
	// Exception is the thrown exception object.
	Exception ObjectID
}

// Error implements the error interface.
func (e *InvokeExceptionError) Error() string {
	return fmt.Sprintf("jdwp: invoked method threw exception 0x%x", uint64(e.Exception))
}

// DuplicateSessionError indicates an attach attempt for a PID that
// already has a live debug session.
type DuplicateSessionError struct {
	// PID is the process ID with the existing session.
	PID int
}

// Error implements the error interface.
func (e *DuplicateSessionError) Error() string {
	return fmt.Sprintf("jdwp: session already exists for pid %d", e.PID)
}

// ADBError indicates that the Android debug bridge server refused a
// service request.
type ADBError struct {
	// Service is the service request that failed.
	Service string

	// Message is the failure reason reported by the server.
	Message string
}

// Error implements the error interface.
func (e *ADBError) Error() string {
	return fmt.Sprintf("jdwp: adb request %q failed: %s", e.Service, e.Message)
}
