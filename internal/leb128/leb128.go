// Package leb128 implements the LEB128 variable-length integer encoding
// used throughout the Wasm binary format, plus the "padded" 5-byte
// encoding used for immediates a linker may need to rewrite after
// layout is fixed (see codebuilder's padded function-index encoding).
package leb128

import (
	"fmt"
	"io"
)

// EncodeInt32 encodes v as a signed LEB128.
func EncodeInt32(v int32) []byte {
	return encodeSigned(int64(v))
}

// EncodeInt64 encodes v as a signed LEB128.
func EncodeInt64(v int64) []byte {
	return encodeSigned(v)
}

func encodeSigned(v int64) []byte {
	out := make([]byte, 0, 10)
	for {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			out = append(out, b)
			return out
		}
		out = append(out, b|0x80)
	}
}

// EncodeUint32 encodes v as an unsigned LEB128.
func EncodeUint32(v uint32) []byte {
	return EncodeUint64(uint64(v))
}

// EncodeUint64 encodes v as an unsigned LEB128.
func EncodeUint64(v uint64) []byte {
	out := make([]byte, 0, 10)
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			out = append(out, b)
			return out
		}
		out = append(out, b|0x80)
	}
}

// EncodePaddedUint32 always emits exactly 5 bytes, setting the
// continuation bit on every byte but the last even when the value would
// fit in fewer. This is used for immediates a linker must be able to
// overwrite in place without shifting any other byte in the stream, such
// as the function index in a `call` instruction.
func EncodePaddedUint32(v uint32) []byte {
	out := make([]byte, 5)
	x := uint64(v)
	for i := 0; i < 5; i++ {
		b := byte(x & 0x7f)
		x >>= 7
		if i < 4 {
			b |= 0x80
		}
		out[i] = b
	}
	return out
}

// LoadUint32 decodes an unsigned LEB128 from the front of buf, returning
// the value and the number of bytes consumed.
func LoadUint32(buf []byte) (uint32, uint64, error) {
	v, n, err := loadUnsigned(buf, 32)
	return uint32(v), n, err
}

// LoadUint64 decodes an unsigned LEB128 from the front of buf, returning
// the value and the number of bytes consumed.
func LoadUint64(buf []byte) (uint64, uint64, error) {
	return loadUnsigned(buf, 64)
}

func loadUnsigned(buf []byte, bits int) (uint64, uint64, error) {
	maxBytes := (bits + 6) / 7
	var result uint64
	for i := 0; ; i++ {
		if i >= len(buf) {
			return 0, 0, fmt.Errorf("leb128: unexpected end of buffer")
		}
		if i >= maxBytes {
			return 0, 0, fmt.Errorf("leb128: integer representation too long for %d bits", bits)
		}
		b := buf[i]
		chunk := uint64(b & 0x7f)
		validBits := bits - i*7
		if validBits < 7 && chunk>>uint(validBits) != 0 {
			return 0, 0, fmt.Errorf("leb128: integer overflows %d bits", bits)
		}
		result |= chunk << uint(i*7)
		if b&0x80 == 0 {
			return result, uint64(i + 1), nil
		}
	}
}

// LoadInt32 decodes a signed LEB128 from the front of buf, returning the
// value and the number of bytes consumed.
func LoadInt32(buf []byte) (int32, uint64, error) {
	v, n, err := loadSigned(buf, 32)
	return int32(v), n, err
}

// LoadInt64 decodes a signed LEB128 from the front of buf, returning the
// value and the number of bytes consumed.
func LoadInt64(buf []byte) (int64, uint64, error) {
	return loadSigned(buf, 64)
}

func loadSigned(buf []byte, bits int) (int64, uint64, error) {
	maxBytes := (bits + 6) / 7
	var result int64
	for i := 0; ; i++ {
		if i >= len(buf) {
			return 0, 0, fmt.Errorf("leb128: unexpected end of buffer")
		}
		if i >= maxBytes {
			return 0, 0, fmt.Errorf("leb128: integer representation too long for %d bits", bits)
		}
		b := buf[i]
		chunk := int64(b & 0x7f)
		validBits := bits - i*7
		if validBits < 7 {
			width := uint(8 - validBits)
			upper := uint64(chunk) >> uint(validBits-1)
			allOnes := uint64(1)<<width - 1
			if upper != 0 && upper != allOnes {
				return 0, 0, fmt.Errorf("leb128: integer overflows %d bits", bits)
			}
		}
		result |= chunk << uint(i*7)
		if b&0x80 == 0 {
			shift := uint(i+1) * 7
			if shift < 64 && b&0x40 != 0 {
				result |= -1 << shift
			}
			return result, uint64(i + 1), nil
		}
	}
}

// DecodeUint32 decodes an unsigned LEB128 from r, one byte at a time,
// mirroring the style module decoders use when streaming a section body
// from an io.Reader instead of a fully-buffered slice.
func DecodeUint32(r io.ByteReader) (uint32, uint64, error) {
	maxBytes := 5
	var result uint64
	for i := 0; ; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, 0, err
		}
		if i >= maxBytes {
			return 0, 0, fmt.Errorf("leb128: integer representation too long for 32 bits")
		}
		chunk := uint64(b & 0x7f)
		validBits := 32 - i*7
		if validBits < 7 && chunk>>uint(validBits) != 0 {
			return 0, 0, fmt.Errorf("leb128: integer overflows 32 bits")
		}
		result |= chunk << uint(i*7)
		if b&0x80 == 0 {
			return uint32(result), uint64(i + 1), nil
		}
	}
}

// DecodeInt32 decodes a signed LEB128 from r, one byte at a time.
func DecodeInt32(r io.ByteReader) (int32, uint64, error) {
	v, n, err := decodeSignedReader(r, 32)
	return int32(v), n, err
}

// DecodeInt64 decodes a signed LEB128 from r, one byte at a time.
func DecodeInt64(r io.ByteReader) (int64, uint64, error) {
	return decodeSignedReader(r, 64)
}

func decodeSignedReader(r io.ByteReader, bits int) (int64, uint64, error) {
	maxBytes := (bits + 6) / 7
	var result int64
	for i := 0; ; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, 0, err
		}
		if i >= maxBytes {
			return 0, 0, fmt.Errorf("leb128: integer representation too long for %d bits", bits)
		}
		chunk := int64(b & 0x7f)
		validBits := bits - i*7
		if validBits < 7 {
			width := uint(8 - validBits)
			upper := uint64(chunk) >> uint(validBits-1)
			allOnes := uint64(1)<<width - 1
			if upper != 0 && upper != allOnes {
				return 0, 0, fmt.Errorf("leb128: integer overflows %d bits", bits)
			}
		}
		result |= chunk << uint(i*7)
		if b&0x80 == 0 {
			shift := uint(i+1) * 7
			if shift < 64 && b&0x40 != 0 {
				result |= -1 << shift
			}
			return result, uint64(i + 1), nil
		}
	}
}

// DecodeInt33AsInt64 decodes a signed LEB128 of up to 33 significant bits
// (as used by Wasm's s33 encoding for block types) into an int64, one
// byte at a time from r.
func DecodeInt33AsInt64(r io.ByteReader) (int64, uint64, error) {
	const bits = 33
	maxBytes := (bits + 6) / 7
	var result int64
	for i := 0; ; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, 0, err
		}
		if i >= maxBytes {
			return 0, 0, fmt.Errorf("leb128: integer representation too long for %d bits", bits)
		}
		chunk := int64(b & 0x7f)
		validBits := bits - i*7
		if validBits < 7 {
			width := uint(8 - validBits)
			upper := uint64(chunk) >> uint(validBits-1)
			allOnes := uint64(1)<<width - 1
			if upper != 0 && upper != allOnes {
				return 0, 0, fmt.Errorf("leb128: integer overflows %d bits", bits)
			}
		}
		result |= chunk << uint(i*7)
		if b&0x80 == 0 {
			shift := uint(i+1) * 7
			if shift < 64 && b&0x40 != 0 {
				result |= -1 << shift
			}
			return result, uint64(i + 1), nil
		}
	}
}
