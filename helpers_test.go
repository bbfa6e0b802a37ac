// SPDX-License-Identifier: GPL-3.0-or-later

package jdwp

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/bassosimone/netstub"
	"github.com/bassosimone/slogstub"
)

// capturedLog collects log records emitted by the code under test. The
// mutex matters because the connection's read loop logs from its own
// goroutine.
type capturedLog struct {
	mu      sync.Mutex
	records []slog.Record
}

// Messages returns the captured record messages in order.
func (c *capturedLog) Messages() []string {
	defer c.mu.Unlock()
	c.mu.Lock()
	var out []string
	for _, record := range c.records {
		out = append(out, record.Message)
	}
	return out
}

// Contains reports whether a record with the given message was captured.
func (c *capturedLog) Contains(message string) bool {
	for _, msg := range c.Messages() {
		if msg == message {
			return true
		}
	}
	return false
}

// Len returns the number of captured records.
func (c *capturedLog) Len() int {
	defer c.mu.Unlock()
	c.mu.Lock()
	return len(c.records)
}

// newCapturingLogger returns a logger that captures all log records. The
// caller can inspect the capture after exercising the code under test to
// verify which events were emitted.
func newCapturingLogger() (*slog.Logger, *capturedLog) {
	captured := &capturedLog{}
	handler := &slogstub.FuncHandler{
		EnabledFunc: func(ctx context.Context, level slog.Level) bool {
			return true
		},
		HandleFunc: func(ctx context.Context, record slog.Record) error {
			captured.mu.Lock()
			captured.records = append(captured.records, record)
			captured.mu.Unlock()
			return nil
		},
	}
	return slog.New(handler), captured
}

// vmStub phases: the stub optionally consumes the adb service requests
// and the handshake before it starts parsing packets.
const (
	vmPhaseADBTransport = iota
	vmPhaseADBJDWP
	vmPhaseHandshake
	vmPhasePackets
)

// vmStub simulates the VM end of a debug stream behind a
// [*netstub.FuncConn]. Bytes written by the code under test are parsed
// into packets and handed to Handle; bytes pushed by the test surface
// as reads, with chunk boundaries preserved so that tests control how
// the stream is split.
type vmStub struct {
	// Handle answers one parsed command packet. Nil drops commands.
	Handle func(pkt *Packet)

	mu        sync.Mutex
	phase     int
	inbound   chan []byte
	leftover  []byte
	incoming  []byte
	commands  []*Packet
	closed    chan struct{}
	closeOnce sync.Once
}

// newVMStub returns a stub that is already past the adb exchange and
// the handshake, as the conn handed to [NewConn] would be.
func newVMStub() *vmStub {
	return &vmStub{
		phase:   vmPhasePackets,
		inbound: make(chan []byte, 128),
		closed:  make(chan struct{}),
	}
}

// newAttachVMStub returns a stub that expects the full attach sequence:
// two adb service requests, then the handshake, then packets.
func newAttachVMStub() *vmStub {
	vm := newVMStub()
	vm.phase = vmPhaseADBTransport
	return vm
}

// Conn returns the [net.Conn] facing the code under test.
func (vm *vmStub) Conn() net.Conn {
	return &netstub.FuncConn{
		ReadFunc:  vm.read,
		WriteFunc: vm.write,
		CloseFunc: vm.close,
		LocalAddrFunc: func() net.Addr {
			return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000}
		},
		RemoteAddrFunc: func() net.Addr {
			return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 5037}
		},
	}
}

// push makes one chunk of bytes readable. Chunk boundaries map to one
// Read call each, so a packet pushed in two chunks needs two reads.
func (vm *vmStub) push(chunk []byte) {
	vm.inbound <- chunk
}

// pushPacket pushes one whole packet as a single chunk.
func (vm *vmStub) pushPacket(pkt *Packet) {
	vm.push(appendPacket(nil, pkt))
}

// pushReply pushes a successful reply with the given body.
func (vm *vmStub) pushReply(id uint32, body []byte) {
	payload := append([]byte{0, 0}, body...)
	vm.pushPacket(&Packet{ID: id, Flags: flagReply, Payload: payload})
}

// pushErrorReply pushes a reply carrying a bare error code.
func (vm *vmStub) pushErrorReply(id uint32, code ErrorCode) {
	payload := binary.BigEndian.AppendUint16(nil, uint16(code))
	vm.pushPacket(&Packet{ID: id, Flags: flagReply, Payload: payload})
}

// pushEvents pushes one composite event packet with the given records.
func (vm *vmStub) pushEvents(policy SuspendPolicy, records ...[]byte) {
	w := newWireWriter(DefaultIDSizes())
	w.U8(uint8(policy))
	w.U32(uint32(len(records)))
	payload := w.Bytes()
	for _, record := range records {
		payload = append(payload, record...)
	}
	vm.pushPacket(&Packet{Flags: 0, CommandSet: eventCommandSet, Command: compositeCommand, Payload: payload})
}

// Commands returns the packets parsed off the write side so far.
func (vm *vmStub) Commands() []*Packet {
	defer vm.mu.Unlock()
	vm.mu.Lock()
	out := make([]*Packet, len(vm.commands))
	copy(out, vm.commands)
	return out
}

// CommandNames renders the parsed commands as "set.command" strings.
func (vm *vmStub) CommandNames() []string {
	var out []string
	for _, pkt := range vm.Commands() {
		out = append(out, fmt.Sprintf("%d.%d", pkt.CommandSet, pkt.Command))
	}
	return out
}

// read implements the conn's Read.
func (vm *vmStub) read(buf []byte) (int, error) {
	vm.mu.Lock()
	if len(vm.leftover) > 0 {
		n := copy(buf, vm.leftover)
		vm.leftover = vm.leftover[n:]
		vm.mu.Unlock()
		return n, nil
	}
	vm.mu.Unlock()
	// Drain queued chunks before reporting a hangup, so that a test
	// pushing an event and then hanging up delivers the event first.
	select {
	case chunk := <-vm.inbound:
		return vm.consume(buf, chunk)
	default:
	}
	select {
	case chunk := <-vm.inbound:
		return vm.consume(buf, chunk)
	case <-vm.closed:
		return 0, io.EOF
	}
}

func (vm *vmStub) consume(buf, chunk []byte) (int, error) {
	n := copy(buf, chunk)
	vm.mu.Lock()
	vm.leftover = chunk[n:]
	vm.mu.Unlock()
	return n, nil
}

// write implements the conn's Write, feeding the phase machine.
func (vm *vmStub) write(data []byte) (int, error) {
	select {
	case <-vm.closed:
		return 0, net.ErrClosed
	default:
	}
	vm.mu.Lock()
	vm.incoming = append(vm.incoming, data...)
	var handle []*Packet
	for {
		consumed, pkt := vm.step()
		if !consumed {
			break
		}
		if pkt != nil {
			vm.commands = append(vm.commands, pkt)
			handle = append(handle, pkt)
		}
	}
	vm.mu.Unlock()
	for _, pkt := range handle {
		if vm.Handle != nil {
			vm.Handle(pkt)
		}
	}
	return len(data), nil
}

// step consumes at most one protocol unit from the incoming buffer.
// Callers hold vm.mu.
func (vm *vmStub) step() (bool, *Packet) {
	switch vm.phase {
	case vmPhaseADBTransport, vmPhaseADBJDWP:
		if len(vm.incoming) < 4 {
			return false, nil
		}
		length, err := strconv.ParseUint(string(vm.incoming[:4]), 16, 16)
		if err != nil {
			panic("vmStub: bad adb request length")
		}
		if len(vm.incoming) < 4+int(length) {
			return false, nil
		}
		service := string(vm.incoming[4 : 4+length])
		vm.incoming = vm.incoming[4+length:]
		if vm.phase == vmPhaseADBTransport && !strings.HasPrefix(service, "host:transport") {
			panic("vmStub: expected transport request, got " + service)
		}
		if vm.phase == vmPhaseADBJDWP && !strings.HasPrefix(service, "jdwp:") {
			panic("vmStub: expected jdwp request, got " + service)
		}
		vm.inbound <- []byte("OKAY")
		vm.phase++
		return true, nil
	case vmPhaseHandshake:
		if len(vm.incoming) < len(handshakeMagic) {
			return false, nil
		}
		if string(vm.incoming[:len(handshakeMagic)]) != handshakeMagic {
			panic("vmStub: bad handshake")
		}
		vm.incoming = vm.incoming[len(handshakeMagic):]
		vm.inbound <- []byte(handshakeMagic)
		vm.phase = vmPhasePackets
		return true, nil
	default:
		if len(vm.incoming) < headerSize {
			return false, nil
		}
		length := binary.BigEndian.Uint32(vm.incoming[0:4])
		if len(vm.incoming) < int(length) {
			return false, nil
		}
		pkt, err := parsePacket(vm.incoming[:length])
		if err != nil {
			panic("vmStub: " + err.Error())
		}
		vm.incoming = vm.incoming[length:]
		return true, pkt
	}
}

// close implements the conn's Close.
func (vm *vmStub) close() error {
	vm.closeOnce.Do(func() {
		close(vm.closed)
	})
	return nil
}

// Hangup simulates the transport dying: subsequent reads report EOF.
func (vm *vmStub) Hangup() {
	vm.close()
}

// encodeBreakpointRecord encodes one breakpoint event record.
func encodeBreakpointRecord(requestID uint32, thread ThreadID, location Location) []byte {
	w := newWireWriter(DefaultIDSizes())
	w.U8(uint8(EventKindBreakpoint))
	w.U32(requestID)
	w.ThreadID(thread)
	w.Location(location)
	return w.Bytes()
}

// encodeThreadRecord encodes a thread start or death record.
func encodeThreadRecord(kind EventKind, requestID uint32, thread ThreadID) []byte {
	w := newWireWriter(DefaultIDSizes())
	w.U8(uint8(kind))
	w.U32(requestID)
	w.ThreadID(thread)
	return w.Bytes()
}

// encodeVMDeathRecord encodes a VM death record.
func encodeVMDeathRecord(requestID uint32) []byte {
	w := newWireWriter(DefaultIDSizes())
	w.U8(uint8(EventKindVMDeath))
	w.U32(requestID)
	return w.Bytes()
}

// encodeSingleStepRecord encodes one single-step event record.
func encodeSingleStepRecord(requestID uint32, thread ThreadID, location Location) []byte {
	w := newWireWriter(DefaultIDSizes())
	w.U8(uint8(EventKindSingleStep))
	w.U32(requestID)
	w.ThreadID(thread)
	w.Location(location)
	return w.Bytes()
}
