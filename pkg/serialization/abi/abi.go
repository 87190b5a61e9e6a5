// Package abi implements the contract wire format: fixed-width integers,
// 16-byte unsigned big integers, optionals, addresses, and length-prefixed
// vectors and strings, over a byte cursor. State snapshots are encoded
// little-endian, action payloads big-endian.
package abi

import "encoding/binary"

// AddressLength is the fixed encoded size of a blockchain address:
// one type byte followed by a 20-byte identifier hash.
const AddressLength = 21

// U128Length is the fixed encoded size of an unsigned 128-bit integer.
const U128Length = 16

// Address is a fixed-width blockchain address.
type Address [AddressLength]byte

// IsZero reports whether the address is the all-zero address.
func (a Address) IsZero() bool {
	return a == Address{}
}

type byteOrder uint8

const (
	littleEndian byteOrder = iota
	bigEndian
)

func (o byteOrder) order() interface {
	binary.ByteOrder
	binary.AppendByteOrder
} {
	if o == bigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}
