package metadata

import (
	"encoding/binary"
	gomath "math"
)

// InstanceRecordSize is the size in bytes of one instance record as the
// device consumes it during a top-level build: a 3x4 row-major float
// transform, a packed custom-index/mask word, a packed SBT-offset/flags word
// and the 64-bit BLAS device address.
const InstanceRecordSize = 64

// pack24x8 packs a 24-bit value and an 8-bit value into one word, low 24 bits
// first.
func pack24x8(low24 uint32, high8 uint8) uint32 {
	return (low24 & 0x00FFFFFF) | uint32(high8)<<24
}

// EncodeInstances serializes instance records into the exact device layout,
// ready to be uploaded to the instance buffer of a top-level build. The
// caller validates the instances first.
func EncodeInstances(instances []Instance) []byte {
	out := make([]byte, len(instances)*InstanceRecordSize)
	for i, inst := range instances {
		rec := out[i*InstanceRecordSize:]
		for j, f := range inst.Transform {
			binary.LittleEndian.PutUint32(rec[j*4:], gomath.Float32bits(f))
		}
		binary.LittleEndian.PutUint32(rec[48:], pack24x8(inst.CustomIndex, inst.Mask))
		binary.LittleEndian.PutUint32(rec[52:], pack24x8(0, uint8(inst.Flags)))
		binary.LittleEndian.PutUint64(rec[56:], inst.Blas.Address)
	}
	return out
}
