// SPDX-License-Identifier: GPL-3.0-or-later

package jdwp

import "encoding/binary"

// headerSize is the fixed size of the packet header: u32 length,
// u32 id, u8 flags, u8 command set, u8 command.
const headerSize = 11

// flagReply marks a reply packet; commands carry zero flags.
const flagReply = uint8(0x80)

// Packet is one protocol message. The on-wire length field is implied
// by the payload size and never stored.
type Packet struct {
	// ID correlates a reply with its command. The debugger chooses IDs
	// for the commands it sends; the VM echoes them in replies.
	ID uint32

	// Flags distinguishes commands (0) from replies (0x80).
	Flags uint8

	// CommandSet selects the command grouping.
	CommandSet uint8

	// Command selects the command within its set.
	Command uint8

	// Payload is the command-specific data after the header.
	Payload []byte
}

// IsReply reports whether the packet is a reply.
func (p *Packet) IsReply() bool {
	return p.Flags&flagReply != 0
}

// appendPacket appends the packet's wire representation to dst.
func appendPacket(dst []byte, p *Packet) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(headerSize+len(p.Payload)))
	dst = binary.BigEndian.AppendUint32(dst, p.ID)
	dst = append(dst, p.Flags, p.CommandSet, p.Command)
	return append(dst, p.Payload...)
}

// parsePacket parses one whole packet, header included. The buffer must
// contain exactly the bytes declared by the length field.
func parsePacket(buf []byte) (*Packet, error) {
	if len(buf) < headerSize {
		return nil, &MalformedPacketError{Reason: "packet shorter than header"}
	}
	if length := binary.BigEndian.Uint32(buf[0:4]); int(length) != len(buf) {
		return nil, &MalformedPacketError{Reason: "declared length does not match packet size"}
	}
	return &Packet{
		ID:         binary.BigEndian.Uint32(buf[4:8]),
		Flags:      buf[8],
		CommandSet: buf[9],
		Command:    buf[10],
		Payload:    buf[headerSize:],
	}, nil
}
