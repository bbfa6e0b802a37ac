// SPDX-License-Identifier: GPL-3.0-or-later

package jdwp

import "context"

// VirtualMachine command set.
const (
	vmCommandSet = uint8(1)

	vmVersion            = uint8(1)
	vmClassesBySignature = uint8(2)
	vmAllThreads         = uint8(4)
	vmDispose            = uint8(6)
	vmIDSizes            = uint8(7)
	vmSuspend            = uint8(8)
	vmResume             = uint8(9)
	vmCreateString       = uint8(11)
)

// VersionInfo is the answer to VirtualMachine.Version, used as a
// capability probe.
type VersionInfo struct {
	// Description is a human-readable VM description.
	Description string

	// Major and Minor are the protocol version.
	Major int32
	Minor int32

	// VMVersion is the target VM's version string.
	VMVersion string

	// VMName is the target VM's name.
	VMName string
}

// Version issues VirtualMachine.Version.
func (c *Conn) Version(ctx context.Context) (*VersionInfo, error) {
	body, err := c.Send(ctx, vmCommandSet, vmVersion, nil)
	if err != nil {
		return nil, err
	}
	r := newWireReader(c.IDSizes(), body)
	out := &VersionInfo{
		Description: r.String(),
		Major:       r.I32(),
		Minor:       r.I32(),
		VMVersion:   r.String(),
		VMName:      r.String(),
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ClassInfo describes one loaded reference type matching a signature.
type ClassInfo struct {
	// TypeTag classifies the reference type.
	TypeTag TypeTag

	// Type is the reference type ID.
	Type ReferenceTypeID

	// Status holds the class status bits.
	Status int32
}

// ClassesBySignature issues VirtualMachine.ClassesBySignature with a
// JNI-style signature such as "Landroid/app/Activity;" or "[I".
//
// An empty answer becomes a [*ClassNotFoundError].
func (c *Conn) ClassesBySignature(ctx context.Context, signature string) ([]ClassInfo, error) {
	w := newWireWriter(c.IDSizes())
	w.String(signature)
	body, err := c.Send(ctx, vmCommandSet, vmClassesBySignature, w.Bytes())
	if err != nil {
		return nil, err
	}
	r := newWireReader(c.IDSizes(), body)
	count := r.U32()
	out := make([]ClassInfo, 0, count)
	for i := uint32(0); i < count && r.Err() == nil; i++ {
		out = append(out, ClassInfo{
			TypeTag: TypeTag(r.U8()),
			Type:    r.ReferenceTypeID(),
			Status:  r.I32(),
		})
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, &ClassNotFoundError{Signature: signature}
	}
	return out, nil
}

// AllThreads issues VirtualMachine.AllThreads.
func (c *Conn) AllThreads(ctx context.Context) ([]ThreadID, error) {
	body, err := c.Send(ctx, vmCommandSet, vmAllThreads, nil)
	if err != nil {
		return nil, err
	}
	r := newWireReader(c.IDSizes(), body)
	count := r.U32()
	out := make([]ThreadID, 0, count)
	for i := uint32(0); i < count && r.Err() == nil; i++ {
		out = append(out, r.ThreadID())
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Dispose issues VirtualMachine.Dispose, telling the VM that the
// debugger is going away. Event requests are cancelled and threads
// suspended by the debugger resume.
func (c *Conn) Dispose(ctx context.Context) error {
	_, err := c.Send(ctx, vmCommandSet, vmDispose, nil)
	return err
}

// NegotiateIDSizes issues VirtualMachine.IDSizes and installs the
// negotiated widths on the connection.
//
// Widths outside the representable 1..8 byte range yield a
// [*UnsupportedIDSizesError] so that a foreign profile fails fast
// instead of corrupting every subsequent decode.
func (c *Conn) NegotiateIDSizes(ctx context.Context) (IDSizes, error) {
	body, err := c.Send(ctx, vmCommandSet, vmIDSizes, nil)
	if err != nil {
		return IDSizes{}, err
	}
	r := newWireReader(c.IDSizes(), body)
	sizes := IDSizes{
		FieldID:         uint32(r.I32()),
		MethodID:        uint32(r.I32()),
		ObjectID:        uint32(r.I32()),
		ReferenceTypeID: uint32(r.I32()),
		FrameID:         uint32(r.I32()),
	}
	if err := r.Err(); err != nil {
		return IDSizes{}, err
	}
	if !sizes.valid() {
		return IDSizes{}, &UnsupportedIDSizesError{Sizes: sizes}
	}
	c.SetIDSizes(sizes)
	return sizes, nil
}

// SuspendAll issues VirtualMachine.Suspend, suspending every thread.
func (c *Conn) SuspendAll(ctx context.Context) error {
	_, err := c.Send(ctx, vmCommandSet, vmSuspend, nil)
	return err
}

// ResumeAll issues VirtualMachine.Resume, resuming every thread
// suspended by the debugger.
func (c *Conn) ResumeAll(ctx context.Context) error {
	_, err := c.Send(ctx, vmCommandSet, vmResume, nil)
	return err
}

// CreateString issues VirtualMachine.CreateString, interning the given
// string inside the VM and returning its ID.
func (c *Conn) CreateString(ctx context.Context, value string) (StringID, error) {
	w := newWireWriter(c.IDSizes())
	w.String(value)
	body, err := c.Send(ctx, vmCommandSet, vmCreateString, w.Bytes())
	if err != nil {
		return 0, err
	}
	r := newWireReader(c.IDSizes(), body)
	id := r.StringID()
	if err := r.Err(); err != nil {
		return 0, err
	}
	return id, nil
}
