package assets

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const spirvMagic = 0x07230203

func writeShader(t *testing.T, words []uint32) string {
	t.Helper()
	buf := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[i*4:], w)
	}
	path := filepath.Join(t.TempDir(), "test.spv")
	require.NoError(t, os.WriteFile(path, buf, 0o644))
	return path
}

func TestLoadShaderValidBlob(t *testing.T) {
	path := writeShader(t, []uint32{spirvMagic, 0x00010000, 0, 1, 0})

	bin, err := LoadShader(path, []DescriptorBinding{
		{Set: 0, Binding: 0, Kind: DESCRIPTOR_KIND_UNIFORM_BUFFER, Count: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, "test.spv", bin.Name)
	assert.Len(t, bin.Code, 20)
	assert.Len(t, bin.Bindings, 1)
}

func TestLoadShaderRejectsBadMagic(t *testing.T) {
	path := writeShader(t, []uint32{0xDEADBEEF, 0x00010000})
	_, err := LoadShader(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "magic")
}

func TestLoadShaderRejectsTruncatedBlob(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.spv")
	require.NoError(t, os.WriteFile(path, []byte{0x03, 0x02, 0x23}, 0o644))
	_, err := LoadShader(path, nil)
	assert.Error(t, err)
}

func TestLoadShaderMissingFile(t *testing.T) {
	_, err := LoadShader(filepath.Join(t.TempDir(), "absent.spv"), nil)
	assert.Error(t, err)
}
