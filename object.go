// SPDX-License-Identifier: GPL-3.0-or-later

package jdwp

import "context"

// ObjectReference, StringReference, and ArrayReference command sets.
const (
	objectCommandSet = uint8(9)

	objectReferenceType = uint8(1)
	objectGetValues     = uint8(2)
	objectInvokeMethod  = uint8(6)

	stringCommandSet = uint8(10)
	stringValue      = uint8(1)

	arrayCommandSet = uint8(13)
	arrayLength     = uint8(1)
	arrayGetValues  = uint8(2)
)

// ObjectReferenceType issues ObjectReference.ReferenceType, returning
// the runtime type of an object.
func (c *Conn) ObjectReferenceType(ctx context.Context, object ObjectID) (TypeTag, ReferenceTypeID, error) {
	w := newWireWriter(c.IDSizes())
	w.ObjectID(object)
	body, err := c.Send(ctx, objectCommandSet, objectReferenceType, w.Bytes())
	if err != nil {
		return 0, 0, err
	}
	r := newWireReader(c.IDSizes(), body)
	tag := TypeTag(r.U8())
	ref := r.ReferenceTypeID()
	if err := r.Err(); err != nil {
		return 0, 0, err
	}
	return tag, ref, nil
}

// ObjectFieldValues issues ObjectReference.GetValues for the given
// instance fields, returning one tagged value per field in order.
func (c *Conn) ObjectFieldValues(ctx context.Context, object ObjectID, fields []FieldID) ([]TaggedValue, error) {
	w := newWireWriter(c.IDSizes())
	w.ObjectID(object)
	w.U32(uint32(len(fields)))
	for _, field := range fields {
		w.FieldID(field)
	}
	body, err := c.Send(ctx, objectCommandSet, objectGetValues, w.Bytes())
	if err != nil {
		return nil, err
	}
	r := newWireReader(c.IDSizes(), body)
	count := r.U32()
	out := make([]TaggedValue, 0, count)
	for i := uint32(0); i < count && r.Err() == nil; i++ {
		out = append(out, r.TaggedValue())
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// InvokeInstanceMethod issues ObjectReference.InvokeMethod.
//
// The same suspension contract as [*Conn.InvokeStaticMethod] applies.
func (c *Conn) InvokeInstanceMethod(ctx context.Context, object ObjectID, thread ThreadID,
	class ClassID, method MethodID, args []TaggedValue, options uint32) (*InvokeResult, error) {
	w := newWireWriter(c.IDSizes())
	w.ObjectID(object)
	w.ThreadID(thread)
	w.ReferenceTypeID(class)
	w.MethodID(method)
	appendInvokeArguments(w, args, options)
	body, err := c.Send(ctx, objectCommandSet, objectInvokeMethod, w.Bytes())
	if err != nil {
		return nil, err
	}
	return decodeInvokeResult(newWireReader(c.IDSizes(), body))
}

// StringValue issues StringReference.Value, fetching the contents of a
// string object.
func (c *Conn) StringValue(ctx context.Context, id StringID) (string, error) {
	w := newWireWriter(c.IDSizes())
	w.StringID(id)
	body, err := c.Send(ctx, stringCommandSet, stringValue, w.Bytes())
	if err != nil {
		return "", err
	}
	r := newWireReader(c.IDSizes(), body)
	value := r.String()
	if err := r.Err(); err != nil {
		return "", err
	}
	return value, nil
}

// ArrayLength issues ArrayReference.Length.
func (c *Conn) ArrayLength(ctx context.Context, array ArrayID) (int32, error) {
	w := newWireWriter(c.IDSizes())
	w.ObjectID(ObjectID(array))
	body, err := c.Send(ctx, arrayCommandSet, arrayLength, w.Bytes())
	if err != nil {
		return 0, err
	}
	r := newWireReader(c.IDSizes(), body)
	length := r.I32()
	if err := r.Err(); err != nil {
		return 0, err
	}
	return length, nil
}

// ArrayValues issues ArrayReference.GetValues for count elements
// starting at first.
//
// The answer is an array region: elements of a primitive-typed array
// arrive untagged and are decoded using the region's leading tag, while
// elements of a reference-typed array arrive individually tagged.
func (c *Conn) ArrayValues(ctx context.Context, array ArrayID, first, count int32) ([]TaggedValue, error) {
	w := newWireWriter(c.IDSizes())
	w.ObjectID(ObjectID(array))
	w.I32(first)
	w.I32(count)
	body, err := c.Send(ctx, arrayCommandSet, arrayGetValues, w.Bytes())
	if err != nil {
		return nil, err
	}
	r := newWireReader(c.IDSizes(), body)
	tag := Tag(r.U8())
	total := r.U32()
	out := make([]TaggedValue, 0, total)
	for i := uint32(0); i < total && r.Err() == nil; i++ {
		if tag.IsObject() {
			out = append(out, r.TaggedValue())
			continue
		}
		out = append(out, r.untaggedValue(tag))
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
