// SPDX-License-Identifier: GPL-3.0-or-later

package jdwp

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// wireReader decodes protocol values from a payload slice.
//
// All multi-byte integers are big-endian. The reader is total: it never
// reads past the supplied slice, and the first decoding failure sticks as
// a [*MalformedPacketError] that short-circuits every subsequent call.
// Check [wireReader.Err] after the last field.
type wireReader struct {
	sizes IDSizes
	buf   []byte
	off   int
	err   error
}

func newWireReader(sizes IDSizes, buf []byte) *wireReader {
	return &wireReader{sizes: sizes, buf: buf}
}

// fail records the first decoding failure.
func (r *wireReader) fail(format string, args ...any) {
	if r.err == nil {
		r.err = &MalformedPacketError{Reason: fmt.Sprintf(format, args...)}
	}
}

// take consumes the next n bytes, or fails if fewer remain.
func (r *wireReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.buf)-r.off < n {
		r.fail("need %d bytes at offset %d, have %d", n, r.off, len(r.buf)-r.off)
		return nil
	}
	out := r.buf[r.off : r.off+n]
	r.off += n
	return out
}

// Err returns the sticky decoding error, if any.
func (r *wireReader) Err() error {
	return r.err
}

// Remaining returns the number of bytes not yet consumed.
func (r *wireReader) Remaining() int {
	return len(r.buf) - r.off
}

func (r *wireReader) U8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *wireReader) U16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (r *wireReader) U32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *wireReader) U64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (r *wireReader) I32() int32 {
	return int32(r.U32())
}

func (r *wireReader) I64() int64 {
	return int64(r.U64())
}

func (r *wireReader) Bool() bool {
	return r.U8() != 0
}

// String reads a u32 length followed by that many UTF-8 bytes.
func (r *wireReader) String() string {
	length := r.U32()
	b := r.take(int(length))
	if b == nil {
		return ""
	}
	if !utf8.Valid(b) {
		r.fail("string at offset %d is not valid UTF-8", r.off-len(b))
		return ""
	}
	return string(b)
}

// id reads a big-endian unsigned integer of the given width in bytes.
func (r *wireReader) id(size uint32) uint64 {
	b := r.take(int(size))
	if b == nil {
		return 0
	}
	var out uint64
	for _, octet := range b {
		out = out<<8 | uint64(octet)
	}
	return out
}

func (r *wireReader) ObjectID() ObjectID {
	return ObjectID(r.id(r.sizes.ObjectID))
}

func (r *wireReader) ThreadID() ThreadID {
	return ThreadID(r.id(r.sizes.ObjectID))
}

func (r *wireReader) StringID() StringID {
	return StringID(r.id(r.sizes.ObjectID))
}

func (r *wireReader) ReferenceTypeID() ReferenceTypeID {
	return ReferenceTypeID(r.id(r.sizes.ReferenceTypeID))
}

func (r *wireReader) MethodID() MethodID {
	return MethodID(r.id(r.sizes.MethodID))
}

func (r *wireReader) FieldID() FieldID {
	return FieldID(r.id(r.sizes.FieldID))
}

func (r *wireReader) FrameID() FrameID {
	return FrameID(r.id(r.sizes.FrameID))
}

// Location reads a type tag, a reference type ID, a method ID, and a
// u64 byte-code index.
func (r *wireReader) Location() Location {
	return Location{
		Tag:    TypeTag(r.U8()),
		Class:  r.ReferenceTypeID(),
		Method: r.MethodID(),
		Index:  r.U64(),
	}
}

// TaggedValue reads a 1-byte tag followed by the tag-specific payload.
// An unknown tag is a decoding failure.
func (r *wireReader) TaggedValue() TaggedValue {
	tag := Tag(r.U8())
	if r.err != nil {
		return TaggedValue{}
	}
	size, ok := tag.payloadSize(r.sizes)
	if !ok {
		r.fail("unknown value tag 0x%02x at offset %d", byte(tag), r.off-1)
		return TaggedValue{}
	}
	return TaggedValue{Tag: tag, Data: r.id(uint32(size))}
}

// untaggedValue reads a value whose tag is known from context, as in the
// primitive branch of an array region.
func (r *wireReader) untaggedValue(tag Tag) TaggedValue {
	size, ok := tag.payloadSize(r.sizes)
	if !ok {
		r.fail("unknown value tag 0x%02x", byte(tag))
		return TaggedValue{}
	}
	return TaggedValue{Tag: tag, Data: r.id(uint32(size))}
}

// TaggedObjectID reads a 1-byte tag followed by an object ID.
func (r *wireReader) TaggedObjectID() (Tag, ObjectID) {
	tag := Tag(r.U8())
	return tag, r.ObjectID()
}

// wireWriter encodes protocol values into a growing payload slice.
//
// All multi-byte integers are big-endian. Writing cannot fail; the
// caller collects the payload with [wireWriter.Bytes].
type wireWriter struct {
	sizes IDSizes
	buf   []byte
}

func newWireWriter(sizes IDSizes) *wireWriter {
	return &wireWriter{sizes: sizes}
}

// Bytes returns the accumulated payload.
func (w *wireWriter) Bytes() []byte {
	return w.buf
}

func (w *wireWriter) U8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *wireWriter) U16(v uint16) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
}

func (w *wireWriter) U32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

func (w *wireWriter) U64(v uint64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, v)
}

func (w *wireWriter) I32(v int32) {
	w.U32(uint32(v))
}

func (w *wireWriter) Bool(v bool) {
	if v {
		w.U8(1)
		return
	}
	w.U8(0)
}

// String writes a u32 length followed by the UTF-8 bytes, without a
// terminator.
func (w *wireWriter) String(s string) {
	w.U32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

// id writes a big-endian unsigned integer of the given width in bytes.
func (w *wireWriter) id(size uint32, v uint64) {
	for shift := int(size)*8 - 8; shift >= 0; shift -= 8 {
		w.buf = append(w.buf, byte(v>>shift))
	}
}

func (w *wireWriter) ObjectID(v ObjectID) {
	w.id(w.sizes.ObjectID, uint64(v))
}

func (w *wireWriter) ThreadID(v ThreadID) {
	w.id(w.sizes.ObjectID, uint64(v))
}

func (w *wireWriter) StringID(v StringID) {
	w.id(w.sizes.ObjectID, uint64(v))
}

func (w *wireWriter) ReferenceTypeID(v ReferenceTypeID) {
	w.id(w.sizes.ReferenceTypeID, uint64(v))
}

func (w *wireWriter) MethodID(v MethodID) {
	w.id(w.sizes.MethodID, uint64(v))
}

func (w *wireWriter) FieldID(v FieldID) {
	w.id(w.sizes.FieldID, uint64(v))
}

func (w *wireWriter) FrameID(v FrameID) {
	w.id(w.sizes.FrameID, uint64(v))
}

// Location writes the type tag, reference type ID, method ID, and
// byte-code index.
func (w *wireWriter) Location(l Location) {
	w.U8(uint8(l.Tag))
	w.ReferenceTypeID(l.Class)
	w.MethodID(l.Method)
	w.U64(l.Index)
}

// TaggedValue writes the 1-byte tag followed by the tag-specific payload.
// Unknown tags encode as the bare tag byte; the VM rejects them.
func (w *wireWriter) TaggedValue(v TaggedValue) {
	w.U8(uint8(v.Tag))
	size, ok := v.Tag.payloadSize(w.sizes)
	if !ok {
		return
	}
	w.id(uint32(size), v.Data)
}
