// SPDX-License-Identifier: GPL-3.0-or-later

package jdwp

import (
	"context"
	"strings"
)

// ReferenceType, ClassType, and Method command sets.
const (
	refTypeCommandSet = uint8(2)

	refTypeSignature = uint8(1)
	refTypeFields    = uint8(4)
	refTypeMethods   = uint8(5)

	classTypeCommandSet   = uint8(3)
	classTypeInvokeMethod = uint8(3)

	methodCommandSet    = uint8(6)
	methodVariableTable = uint8(2)
)

// accStatic is the ACC_STATIC modifier bit of fields and methods.
const accStatic = uint32(0x0008)

// MethodInfo describes one method of a reference type.
type MethodInfo struct {
	// ID identifies the method within its declaring type.
	ID MethodID

	// Name is the method name.
	Name string

	// Signature is the JNI-style method signature.
	Signature string

	// ModBits holds the access modifier bits.
	ModBits uint32
}

// FieldInfo describes one field of a reference type.
type FieldInfo struct {
	// ID identifies the field within its declaring type.
	ID FieldID

	// Name is the field name.
	Name string

	// Signature is the JNI-style field signature.
	Signature string

	// ModBits holds the access modifier bits.
	ModBits uint32
}

// IsStatic reports whether the field is static.
func (f FieldInfo) IsStatic() bool {
	return f.ModBits&accStatic != 0
}

// TypeSignature issues ReferenceType.Signature.
func (c *Conn) TypeSignature(ctx context.Context, ref ReferenceTypeID) (string, error) {
	w := newWireWriter(c.IDSizes())
	w.ReferenceTypeID(ref)
	body, err := c.Send(ctx, refTypeCommandSet, refTypeSignature, w.Bytes())
	if err != nil {
		return "", err
	}
	r := newWireReader(c.IDSizes(), body)
	signature := r.String()
	if err := r.Err(); err != nil {
		return "", err
	}
	return signature, nil
}

// Methods issues ReferenceType.Methods.
func (c *Conn) Methods(ctx context.Context, ref ReferenceTypeID) ([]MethodInfo, error) {
	w := newWireWriter(c.IDSizes())
	w.ReferenceTypeID(ref)
	body, err := c.Send(ctx, refTypeCommandSet, refTypeMethods, w.Bytes())
	if err != nil {
		return nil, err
	}
	r := newWireReader(c.IDSizes(), body)
	count := r.U32()
	out := make([]MethodInfo, 0, count)
	for i := uint32(0); i < count && r.Err() == nil; i++ {
		out = append(out, MethodInfo{
			ID:        r.MethodID(),
			Name:      r.String(),
			Signature: r.String(),
			ModBits:   r.U32(),
		})
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Fields issues ReferenceType.Fields.
func (c *Conn) Fields(ctx context.Context, ref ReferenceTypeID) ([]FieldInfo, error) {
	w := newWireWriter(c.IDSizes())
	w.ReferenceTypeID(ref)
	body, err := c.Send(ctx, refTypeCommandSet, refTypeFields, w.Bytes())
	if err != nil {
		return nil, err
	}
	r := newWireReader(c.IDSizes(), body)
	count := r.U32()
	out := make([]FieldInfo, 0, count)
	for i := uint32(0); i < count && r.Err() == nil; i++ {
		out = append(out, FieldInfo{
			ID:        r.FieldID(),
			Name:      r.String(),
			Signature: r.String(),
			ModBits:   r.U32(),
		})
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// FindMethod scans ReferenceType.Methods for the method with the given
// name and signature. An empty signature matches the first method with
// the given name, which for overloaded methods is whichever the VM
// listed first; pass the signature when a specific overload matters.
func (c *Conn) FindMethod(ctx context.Context, ref ReferenceTypeID, name, signature string) (*MethodInfo, error) {
	methods, err := c.Methods(ctx, ref)
	if err != nil {
		return nil, err
	}
	return findMethodIn(methods, name, signature)
}

// findMethodIn resolves a method within an already-fetched method list,
// sparing a round trip when several methods of one type are needed.
func findMethodIn(methods []MethodInfo, name, signature string) (*MethodInfo, error) {
	for _, method := range methods {
		if method.Name != name {
			continue
		}
		if signature == "" || method.Signature == signature {
			return &method, nil
		}
	}
	return nil, &MethodNotFoundError{Name: name, Signature: signature}
}

// FindMethodDescriptor resolves a method from a combined descriptor of
// the form "name(argTypes)returnType", splitting at the first "(".
func (c *Conn) FindMethodDescriptor(ctx context.Context, ref ReferenceTypeID, descriptor string) (*MethodInfo, error) {
	open := strings.IndexByte(descriptor, '(')
	if open < 0 {
		return c.FindMethod(ctx, ref, descriptor, "")
	}
	return c.FindMethod(ctx, ref, descriptor[:open], descriptor[open:])
}

// InvokeResult is the answer to a method invocation: the returned value
// and the exception the method completed with, if any.
type InvokeResult struct {
	// Return is the returned value; void for void methods.
	Return TaggedValue

	// ExceptionTag is the tag of the exception reference.
	ExceptionTag Tag

	// Exception is the thrown exception, or zero when the method
	// returned normally.
	Exception ObjectID
}

// Err returns a [*InvokeExceptionError] when the invocation completed
// by throwing, and nil otherwise.
func (res *InvokeResult) Err() error {
	if res.Exception != 0 {
		return &InvokeExceptionError{Exception: res.Exception}
	}
	return nil
}

// appendInvokeArguments writes the argument count, the tagged argument
// values, and the invoke options.
func appendInvokeArguments(w *wireWriter, args []TaggedValue, options uint32) {
	w.U32(uint32(len(args)))
	for _, arg := range args {
		w.TaggedValue(arg)
	}
	w.U32(options)
}

// decodeInvokeResult reads the tagged return value and the tagged
// exception reference.
func decodeInvokeResult(r *wireReader) (*InvokeResult, error) {
	out := &InvokeResult{Return: r.TaggedValue()}
	out.ExceptionTag, out.Exception = r.TaggedObjectID()
	if err := r.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// InvokeStaticMethod issues ClassType.InvokeMethod.
//
// The thread must be suspended by an event (for example, a breakpoint
// the caller waited for). The VM runs the method on that thread and
// re-suspends it before replying; an exception thrown by the invoked
// method is reported in the result, not as a protocol failure.
func (c *Conn) InvokeStaticMethod(ctx context.Context, class ClassID, thread ThreadID,
	method MethodID, args []TaggedValue, options uint32) (*InvokeResult, error) {
	w := newWireWriter(c.IDSizes())
	w.ReferenceTypeID(class)
	w.ThreadID(thread)
	w.MethodID(method)
	appendInvokeArguments(w, args, options)
	body, err := c.Send(ctx, classTypeCommandSet, classTypeInvokeMethod, w.Bytes())
	if err != nil {
		return nil, err
	}
	return decodeInvokeResult(newWireReader(c.IDSizes(), body))
}

// Variable describes one entry of a method's variable table.
type Variable struct {
	// CodeIndex is the first byte-code index at which the variable is
	// live.
	CodeIndex uint64

	// Name is the variable name.
	Name string

	// Signature is the JNI-style type signature of the variable.
	Signature string

	// Length is the size of the live range starting at CodeIndex.
	Length uint32

	// Slot is the frame slot holding the variable.
	Slot uint32
}

// VariableTable is the answer to Method.VariableTable.
type VariableTable struct {
	// ArgCount is the number of words occupied by arguments; the
	// leading entries of Variables describe the arguments.
	ArgCount int32

	// Variables lists the method's variables.
	Variables []Variable
}

// VariableTable issues Method.VariableTable.
func (c *Conn) VariableTable(ctx context.Context, ref ReferenceTypeID, method MethodID) (*VariableTable, error) {
	w := newWireWriter(c.IDSizes())
	w.ReferenceTypeID(ref)
	w.MethodID(method)
	body, err := c.Send(ctx, methodCommandSet, methodVariableTable, w.Bytes())
	if err != nil {
		return nil, err
	}
	r := newWireReader(c.IDSizes(), body)
	out := &VariableTable{ArgCount: r.I32()}
	count := r.U32()
	for i := uint32(0); i < count && r.Err() == nil; i++ {
		out.Variables = append(out.Variables, Variable{
			CodeIndex: r.U64(),
			Name:      r.String(),
			Signature: r.String(),
			Length:    r.U32(),
			Slot:      r.U32(),
		})
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
