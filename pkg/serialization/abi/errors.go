package abi

import "fmt"

// DecodeError reports malformed input: a truncated buffer, a negative length
// prefix, or an unknown discriminant byte. It carries the cursor offset at
// which decoding failed and, where one exists, the unexpected value read.
type DecodeError struct {
	Offset int
	Value  uint64
	Msg    string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("abi: %s at offset %d", e.Msg, e.Offset)
}

func truncatedError(offset, need, have int) *DecodeError {
	return &DecodeError{
		Offset: offset,
		Msg:    fmt.Sprintf("truncated input: need %d bytes, have %d", need, have),
	}
}

// UnknownDiscriminantError builds the decode error raised when a tag byte does
// not match any variant of a closed tagged union.
func UnknownDiscriminantError(offset int, got uint8) *DecodeError {
	return &DecodeError{
		Offset: offset,
		Value:  uint64(got),
		Msg:    fmt.Sprintf("unknown discriminant 0x%02x", got),
	}
}
