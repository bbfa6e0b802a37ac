// SPDX-License-Identifier: GPL-3.0-or-later

package jdwp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Version decodes the five-field capability probe answer.
func TestVersion(t *testing.T) {
	vm := newVMStub()
	vm.Handle = func(pkt *Packet) {
		w := newWireWriter(DefaultIDSizes())
		w.String("Android Runtime debugger")
		w.I32(1)
		w.I32(8)
		w.String("2.1.0")
		w.String("Dalvik")
		vm.pushReply(pkt.ID, w.Bytes())
	}
	conn := NewConn(NewConfig(), vm.Conn(), DefaultSLogger())
	defer conn.Close()

	version, err := conn.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), version.Major)
	assert.Equal(t, int32(8), version.Minor)
	assert.Equal(t, "Dalvik", version.VMName)
}

// ClassesBySignature encodes the signature and decodes the class list;
// an empty answer is a ClassNotFoundError.
func TestClassesBySignature(t *testing.T) {
	tests := []struct {
		// name describes what this test case verifies.
		name string

		// classes is the number of classes the stub answers with.
		classes uint32

		// wantErr indicates whether we expect a ClassNotFoundError.
		wantErr bool
	}{
		{
			name:    "one class",
			classes: 1,
			wantErr: false,
		},

		{
			name:    "no class",
			classes: 0,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := newVMStub()
			vm.Handle = func(pkt *Packet) {
				r := newWireReader(DefaultIDSizes(), pkt.Payload)
				assert.Equal(t, "Landroid/app/Activity;", r.String())
				w := newWireWriter(DefaultIDSizes())
				w.U32(tt.classes)
				for i := uint32(0); i < tt.classes; i++ {
					w.U8(uint8(TypeTagClass))
					w.ReferenceTypeID(0xAA)
					w.I32(ClassStatusPrepared | ClassStatusInitialized)
				}
				vm.pushReply(pkt.ID, w.Bytes())
			}
			conn := NewConn(NewConfig(), vm.Conn(), DefaultSLogger())
			defer conn.Close()

			classes, err := conn.ClassesBySignature(context.Background(), "Landroid/app/Activity;")
			if tt.wantErr {
				var notFound *ClassNotFoundError
				require.ErrorAs(t, err, &notFound)
				assert.Equal(t, "Landroid/app/Activity;", notFound.Signature)
				return
			}
			require.NoError(t, err)
			require.Len(t, classes, 1)
			assert.Equal(t, ReferenceTypeID(0xAA), classes[0].Type)
		})
	}
}

// AllThreads decodes the thread ID list.
func TestAllThreads(t *testing.T) {
	vm := newVMStub()
	vm.Handle = func(pkt *Packet) {
		w := newWireWriter(DefaultIDSizes())
		w.U32(3)
		w.ThreadID(0x1)
		w.ThreadID(0x2)
		w.ThreadID(0xCAFE)
		vm.pushReply(pkt.ID, w.Bytes())
	}
	conn := NewConn(NewConfig(), vm.Conn(), DefaultSLogger())
	defer conn.Close()

	threads, err := conn.AllThreads(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []ThreadID{0x1, 0x2, 0xCAFE}, threads)
}

// NegotiateIDSizes installs the negotiated widths on the connection.
func TestNegotiateIDSizes(t *testing.T) {
	vm := newVMStub()
	vm.Handle = func(pkt *Packet) {
		w := newWireWriter(DefaultIDSizes())
		for i := 0; i < 5; i++ {
			w.I32(8)
		}
		vm.pushReply(pkt.ID, w.Bytes())
	}
	conn := NewConn(NewConfig(), vm.Conn(), DefaultSLogger())
	defer conn.Close()

	sizes, err := conn.NegotiateIDSizes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultIDSizes(), sizes)
	assert.Equal(t, sizes, conn.IDSizes())
}

// Widths outside 1..8 bytes fail fast instead of corrupting decodes.
func TestNegotiateIDSizesUnsupported(t *testing.T) {
	vm := newVMStub()
	vm.Handle = func(pkt *Packet) {
		w := newWireWriter(DefaultIDSizes())
		w.I32(16)
		w.I32(8)
		w.I32(8)
		w.I32(8)
		w.I32(8)
		vm.pushReply(pkt.ID, w.Bytes())
	}
	conn := NewConn(NewConfig(), vm.Conn(), DefaultSLogger())
	defer conn.Close()

	_, err := conn.NegotiateIDSizes(context.Background())
	var unsupported *UnsupportedIDSizesError
	require.ErrorAs(t, err, &unsupported)
	// The connection keeps the previous profile.
	assert.Equal(t, DefaultIDSizes(), conn.IDSizes())
}

// CreateString encodes the string and decodes the interned ID.
func TestCreateString(t *testing.T) {
	vm := newVMStub()
	vm.Handle = func(pkt *Packet) {
		r := newWireReader(DefaultIDSizes(), pkt.Payload)
		assert.Equal(t, "id", r.String())
		w := newWireWriter(DefaultIDSizes())
		w.StringID(0x5)
		vm.pushReply(pkt.ID, w.Bytes())
	}
	conn := NewConn(NewConfig(), vm.Conn(), DefaultSLogger())
	defer conn.Close()

	id, err := conn.CreateString(context.Background(), "id")
	require.NoError(t, err)
	assert.Equal(t, StringID(0x5), id)
}
