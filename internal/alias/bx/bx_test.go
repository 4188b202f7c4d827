package bx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLittleEndianReadWrite(t *testing.T) {
	b := make([]byte, 2)
	PutU16(b, 0x1234)
	// least-significant byte first
	assert.Equal(t, []byte{0x34, 0x12}, b)
	assert.Equal(t, uint16(0x1234), U16(b))

	b = make([]byte, 4)
	PutU32(b, 0x01020304)
	assert.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, b)
	assert.Equal(t, uint32(0x01020304), U32(b))

	b = make([]byte, 8)
	PutU64(b, 0x0102030405060708)
	assert.Equal(t, []byte{0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01}, b)
	assert.Equal(t, uint64(0x0102030405060708), U64(b))
}

func TestSignedReads(t *testing.T) {
	assert.Equal(t, int16(-2), I16([]byte{0xFE, 0xFF}))
	assert.Equal(t, int32(-1), I32([]byte{0xFF, 0xFF, 0xFF, 0xFF}))
	assert.Equal(t, int64(-1), I64([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}))
}

func TestAppend(t *testing.T) {
	out := []byte{0xAA}
	out = AppendU16(out, 0x0102)
	out = AppendU32(out, 0x03040506)
	out = AppendU64(out, 7)

	assert.Len(t, out, 1+2+4+8)
	assert.Equal(t, byte(0xAA), out[0])
	assert.Equal(t, uint16(0x0102), U16(out[1:]))
	assert.Equal(t, uint32(0x03040506), U32(out[3:]))
	assert.Equal(t, uint64(7), U64(out[7:]))
}
