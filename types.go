// SPDX-License-Identifier: GPL-3.0-or-later

package jdwp

import (
	"fmt"
	"math"
)

// ObjectID identifies an object inside the debugged VM.
//
// The VM negotiates the on-wire width of each ID kind (see [IDSizes]);
// in memory every ID is an opaque 64-bit quantity. Equality and registry
// lookup are the only operations this package performs on IDs.
type ObjectID uint64

// ThreadID identifies a thread inside the debugged VM.
type ThreadID uint64

// StringID identifies a string object inside the debugged VM.
type StringID uint64

// ArrayID identifies an array object inside the debugged VM.
type ArrayID uint64

// ReferenceTypeID identifies a loaded reference type (class, interface,
// or array type) inside the debugged VM.
type ReferenceTypeID uint64

// ClassID identifies a class type. On the wire it has the same width
// as a [ReferenceTypeID].
type ClassID = ReferenceTypeID

// MethodID identifies a method within its declaring reference type.
type MethodID uint64

// FieldID identifies a field within its declaring reference type.
type FieldID uint64

// FrameID identifies a stack frame within a suspended thread.
type FrameID uint64

// IDSizes holds the negotiated on-wire width, in bytes, of each ID kind.
//
// Use [DefaultIDSizes] until the VM has answered VirtualMachine.IDSizes;
// the Android debug profile uses eight bytes for every kind.
type IDSizes struct {
	// FieldID is the width of field IDs.
	FieldID uint32

	// MethodID is the width of method IDs.
	MethodID uint32

	// ObjectID is the width of object, thread, string, and array IDs.
	ObjectID uint32

	// ReferenceTypeID is the width of reference-type IDs.
	ReferenceTypeID uint32

	// FrameID is the width of stack-frame IDs.
	FrameID uint32
}

// DefaultIDSizes returns the ID widths of the Android debug profile,
// where every ID kind is eight bytes wide.
func DefaultIDSizes() IDSizes {
	return IDSizes{
		FieldID:         8,
		MethodID:        8,
		ObjectID:        8,
		ReferenceTypeID: 8,
		FrameID:         8,
	}
}

// valid reports whether every negotiated width fits the opaque 64-bit
// representation used by this package.
func (s IDSizes) valid() bool {
	for _, size := range []uint32{s.FieldID, s.MethodID, s.ObjectID, s.ReferenceTypeID, s.FrameID} {
		if size < 1 || size > 8 {
			return false
		}
	}
	return true
}

// Tag is the 1-byte type tag prefixing a [TaggedValue] on the wire.
type Tag byte

// Type tags defined by the protocol. Each is an ASCII letter.
const (
	TagArray       = Tag('[')
	TagByte        = Tag('B')
	TagChar        = Tag('C')
	TagObject      = Tag('L')
	TagFloat       = Tag('F')
	TagDouble      = Tag('D')
	TagInt         = Tag('I')
	TagLong        = Tag('J')
	TagShort       = Tag('S')
	TagVoid        = Tag('V')
	TagBoolean     = Tag('Z')
	TagString      = Tag('s')
	TagThread      = Tag('t')
	TagThreadGroup = Tag('g')
	TagClassLoader = Tag('l')
	TagClassObject = Tag('c')
)

// IsObject reports whether the tag denotes a reference value whose wire
// representation is an object ID.
func (t Tag) IsObject() bool {
	switch t {
	case TagArray, TagObject, TagString, TagThread, TagThreadGroup, TagClassLoader, TagClassObject:
		return true
	default:
		return false
	}
}

// payloadSize returns the number of bytes following the tag byte on the
// wire, or false if the tag is unknown. Reference tags use the negotiated
// object ID width.
func (t Tag) payloadSize(sizes IDSizes) (int, bool) {
	switch t {
	case TagByte, TagBoolean:
		return 1, true
	case TagChar, TagShort:
		return 2, true
	case TagInt, TagFloat:
		return 4, true
	case TagLong, TagDouble:
		return 8, true
	case TagVoid:
		return 0, true
	default:
		if t.IsObject() {
			return int(sizes.ObjectID), true
		}
		return 0, false
	}
}

// TypeTag classifies a reference type as a class, an interface, or an array.
type TypeTag byte

// Type-tag values defined by the protocol.
const (
	TypeTagClass     = TypeTag(1)
	TypeTagInterface = TypeTag(2)
	TypeTagArray     = TypeTag(3)
)

// SuspendPolicy selects which threads the VM suspends when an event fires.
type SuspendPolicy uint8

// Suspend policies defined by the protocol.
const (
	SuspendPolicyNone        = SuspendPolicy(0)
	SuspendPolicyEventThread = SuspendPolicy(1)
	SuspendPolicyAll         = SuspendPolicy(2)
)

// StepSize selects the granularity of a single step.
type StepSize int32

// Step sizes defined by the protocol.
const (
	StepSizeMin  = StepSize(0)
	StepSizeLine = StepSize(1)
)

// StepDepth selects the call-stack behavior of a single step.
type StepDepth int32

// Step depths defined by the protocol.
const (
	StepDepthInto = StepDepth(0)
	StepDepthOver = StepDepth(1)
	StepDepthOut  = StepDepth(2)
)

// Invoke options for ClassType.InvokeMethod and ObjectReference.InvokeMethod.
const (
	// InvokeSingleThreaded resumes only the invoking thread for the call.
	InvokeSingleThreaded = uint32(0x01)

	// InvokeNonvirtual invokes the exact method without virtual dispatch.
	InvokeNonvirtual = uint32(0x02)
)

// Class status bits reported by VirtualMachine.ClassesBySignature and
// the class-prepare event.
const (
	ClassStatusVerified    = int32(1)
	ClassStatusPrepared    = int32(2)
	ClassStatusInitialized = int32(4)
	ClassStatusError       = int32(8)
)

// Thread statuses reported by ThreadReference.Status.
const (
	ThreadStatusZombie   = int32(0)
	ThreadStatusRunning  = int32(1)
	ThreadStatusSleeping = int32(2)
	ThreadStatusMonitor  = int32(3)
	ThreadStatusWait     = int32(4)
)

// SuspendStatusSuspended is the suspend-status bit reported by
// ThreadReference.Status for a suspended thread.
const SuspendStatusSuspended = int32(1)

// Location addresses a point in executable code: a reference type, a
// method within it, and a byte-code index within the method.
type Location struct {
	// Tag classifies the reference type holding the code.
	Tag TypeTag

	// Class is the reference type holding the code.
	Class ReferenceTypeID

	// Method is the method holding the code.
	Method MethodID

	// Index is the byte-code index within the method.
	Index uint64
}

// String implements [fmt.Stringer].
func (l Location) String() string {
	return fmt.Sprintf("class=0x%x method=0x%x index=%d", uint64(l.Class), uint64(l.Method), l.Index)
}

// TaggedValue is a type-tagged primitive or reference value, the sole
// form in which the VM exchanges variables, method results, invocation
// arguments, and array elements.
//
// Data holds the raw value bits: the two's-complement integer for
// integral tags, the IEEE 754 bit pattern for float and double tags,
// the object ID for reference tags, and zero for void.
type TaggedValue struct {
	// Tag is the value's type tag.
	Tag Tag

	// Data is the raw value bits.
	Data uint64
}

// NewByteValue returns a byte [TaggedValue].
func NewByteValue(v byte) TaggedValue {
	return TaggedValue{Tag: TagByte, Data: uint64(v)}
}

// NewBooleanValue returns a boolean [TaggedValue].
func NewBooleanValue(v bool) TaggedValue {
	var data uint64
	if v {
		data = 1
	}
	return TaggedValue{Tag: TagBoolean, Data: data}
}

// NewCharValue returns a char [TaggedValue].
func NewCharValue(v uint16) TaggedValue {
	return TaggedValue{Tag: TagChar, Data: uint64(v)}
}

// NewShortValue returns a short [TaggedValue].
func NewShortValue(v int16) TaggedValue {
	return TaggedValue{Tag: TagShort, Data: uint64(uint16(v))}
}

// NewIntValue returns an int [TaggedValue].
func NewIntValue(v int32) TaggedValue {
	return TaggedValue{Tag: TagInt, Data: uint64(uint32(v))}
}

// NewLongValue returns a long [TaggedValue].
func NewLongValue(v int64) TaggedValue {
	return TaggedValue{Tag: TagLong, Data: uint64(v)}
}

// NewFloatValue returns a float [TaggedValue].
func NewFloatValue(v float32) TaggedValue {
	return TaggedValue{Tag: TagFloat, Data: uint64(math.Float32bits(v))}
}

// NewDoubleValue returns a double [TaggedValue].
func NewDoubleValue(v float64) TaggedValue {
	return TaggedValue{Tag: TagDouble, Data: math.Float64bits(v)}
}

// NewObjectValue returns a reference [TaggedValue] with the given tag,
// which must be one of the reference tags.
func NewObjectValue(tag Tag, id ObjectID) TaggedValue {
	return TaggedValue{Tag: tag, Data: uint64(id)}
}

// NewStringValue returns a string-reference [TaggedValue].
func NewStringValue(id StringID) TaggedValue {
	return TaggedValue{Tag: TagString, Data: uint64(id)}
}

// NewVoidValue returns the void [TaggedValue].
func NewVoidValue() TaggedValue {
	return TaggedValue{Tag: TagVoid}
}

// Byte returns the value as a byte.
func (v TaggedValue) Byte() byte {
	return byte(v.Data)
}

// Boolean returns the value as a boolean.
func (v TaggedValue) Boolean() bool {
	return v.Data != 0
}

// Char returns the value as a char.
func (v TaggedValue) Char() uint16 {
	return uint16(v.Data)
}

// Short returns the value as a short.
func (v TaggedValue) Short() int16 {
	return int16(uint16(v.Data))
}

// Int returns the value as an int.
func (v TaggedValue) Int() int32 {
	return int32(uint32(v.Data))
}

// Long returns the value as a long.
func (v TaggedValue) Long() int64 {
	return int64(v.Data)
}

// Float returns the value as a float.
func (v TaggedValue) Float() float32 {
	return math.Float32frombits(uint32(v.Data))
}

// Double returns the value as a double.
func (v TaggedValue) Double() float64 {
	return math.Float64frombits(v.Data)
}

// Object returns the value as an object ID. The result is only
// meaningful when [Tag.IsObject] is true for the value's tag.
func (v TaggedValue) Object() ObjectID {
	return ObjectID(v.Data)
}

// IsVoid reports whether the value is void.
func (v TaggedValue) IsVoid() bool {
	return v.Tag == TagVoid
}

// String implements [fmt.Stringer].
func (v TaggedValue) String() string {
	switch v.Tag {
	case TagByte:
		return fmt.Sprintf("byte:%d", v.Byte())
	case TagBoolean:
		return fmt.Sprintf("boolean:%t", v.Boolean())
	case TagChar:
		return fmt.Sprintf("char:%d", v.Char())
	case TagShort:
		return fmt.Sprintf("short:%d", v.Short())
	case TagInt:
		return fmt.Sprintf("int:%d", v.Int())
	case TagLong:
		return fmt.Sprintf("long:%d", v.Long())
	case TagFloat:
		return fmt.Sprintf("float:%g", v.Float())
	case TagDouble:
		return fmt.Sprintf("double:%g", v.Double())
	case TagVoid:
		return "void"
	default:
		return fmt.Sprintf("%c:0x%x", byte(v.Tag), v.Data)
	}
}

// SignatureTag maps a JNI-style type signature to the tag used when
// requesting the corresponding slot from StackFrame.GetValues.
//
// Array signatures map to [TagArray]. Class signatures ("L...;") map to
// [TagObject] regardless of the concrete runtime type: the VM answers
// with the precise tag (for example [TagString] for a string-valued slot).
func SignatureTag(signature string) (Tag, bool) {
	if signature == "" {
		return 0, false
	}
	switch signature[0] {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z', '[':
		return Tag(signature[0]), true
	case 'L':
		return TagObject, true
	default:
		return 0, false
	}
}
