package metadata

import (
	"encoding/binary"
	gomath "math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeInstancesLayout(t *testing.T) {
	inst := Instance{
		Blas: BlasID{Address: 0xDEADBEEF00, Generation: 1},
		Transform: [12]float32{
			1, 0, 0, 10,
			0, 1, 0, 20,
			0, 0, 1, 30,
		},
		CustomIndex: 0xABCDEF,
		Mask:        0x7F,
		Flags:       InstanceForceOpaque,
	}

	out := EncodeInstances([]Instance{inst})
	require.Len(t, out, InstanceRecordSize)

	// Transform occupies the first 48 bytes, row-major.
	for i, want := range inst.Transform {
		got := gomath.Float32frombits(binary.LittleEndian.Uint32(out[i*4:]))
		assert.Equal(t, want, got, "transform element %d", i)
	}

	// Custom index in the low 24 bits, mask in the high 8.
	word := binary.LittleEndian.Uint32(out[48:])
	assert.Equal(t, uint32(0xABCDEF), word&0x00FFFFFF)
	assert.Equal(t, uint8(0x7F), uint8(word>>24))

	// SBT offset is always zero; flags ride the high byte.
	word = binary.LittleEndian.Uint32(out[52:])
	assert.Equal(t, uint32(0), word&0x00FFFFFF)
	assert.Equal(t, uint8(InstanceForceOpaque), uint8(word>>24))

	assert.Equal(t, uint64(0xDEADBEEF00), binary.LittleEndian.Uint64(out[56:]))
}

func TestEncodeInstancesCustomIndexTruncatedTo24Bits(t *testing.T) {
	out := EncodeInstances([]Instance{{
		Blas:        BlasID{Address: 1},
		CustomIndex: 0xFF123456,
		Mask:        0xFF,
	}})
	word := binary.LittleEndian.Uint32(out[48:])
	assert.Equal(t, uint32(0x123456), word&0x00FFFFFF)
}

func TestEncodeInstancesMultipleRecords(t *testing.T) {
	instances := []Instance{
		{Blas: BlasID{Address: 0x1000}, Mask: 0xFF},
		{Blas: BlasID{Address: 0x2000}, Mask: 0x01},
	}
	out := EncodeInstances(instances)
	require.Len(t, out, 2*InstanceRecordSize)

	assert.Equal(t, uint64(0x1000), binary.LittleEndian.Uint64(out[56:]))
	assert.Equal(t, uint64(0x2000), binary.LittleEndian.Uint64(out[InstanceRecordSize+56:]))
}
