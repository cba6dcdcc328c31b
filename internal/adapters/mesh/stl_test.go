package mesh

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/print-quote-service/internal/domain"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	return path
}

func TestParse(t *testing.T) {
	box := Box(10, 20, 30)

	solidHeader := EncodeBinary(box)
	copy(solidHeader, "solid looks-like-ascii")

	tests := []struct {
		name  string
		data  []byte
		facet int
	}{
		{name: "binary", data: EncodeBinary(box), facet: 12},
		{name: "ascii", data: EncodeASCII("box", box), facet: 12},
		{name: "binary with solid header", data: solidHeader, facet: 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Parse(tt.data)

			require.NoError(t, err)
			assert.Len(t, m.Triangles, tt.facet)
			assert.InDelta(t, 6000, m.Volume(), 1e-3)

			x, y, z := m.Bounds().Dimensions()
			assert.InDelta(t, 10, x, 1e-6)
			assert.InDelta(t, 20, y, 1e-6)
			assert.InDelta(t, 30, z, 1e-6)
			assert.True(t, m.IsWatertight())
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	truncated := EncodeBinary(Box(1, 1, 1))
	truncated = truncated[:len(truncated)-7]

	zeroFacets := make([]byte, headerSize+countSize)
	binary.LittleEndian.PutUint32(zeroFacets[headerSize:], 0)

	tests := []struct {
		name string
		data []byte
	}{
		{name: "truncated binary", data: truncated},
		{name: "binary with no facets", data: zeroFacets},
		{name: "garbage", data: []byte("not a mesh")},
		{name: "empty", data: nil},
		{name: "ascii without vertices", data: []byte("solid x\nendsolid x\n")},
		{name: "ascii dangling vertex", data: []byte("solid x\nvertex 0 0 0\nvertex 1 0 0\nendsolid x\n")},
		{name: "ascii bad number", data: []byte("solid x\nvertex 0 zero 0\nendsolid x\n")},
		{name: "ascii nan", data: []byte("solid x\nvertex NaN 0 0\nvertex 1 0 0\nvertex 0 1 0\nendsolid x\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Parse(tt.data)

			require.Error(t, err)
			assert.Nil(t, m)
		})
	}
}

func TestSTLLoader_Load(t *testing.T) {
	loader := NewSTLLoader()

	t.Run("reads file", func(t *testing.T) {
		path := writeFile(t, "cube.stl", EncodeBinary(Box(10, 10, 10)))

		m, err := loader.Load(context.Background(), path)

		require.NoError(t, err)
		assert.InDelta(t, 1000, m.Volume(), 1e-3)
	})

	t.Run("malformed content is a processing error", func(t *testing.T) {
		path := writeFile(t, "bad.stl", []byte("this is not an stl file at all"))

		_, err := loader.Load(context.Background(), path)

		require.Error(t, err)
		assert.True(t, domain.IsProcessing(err))
		assert.False(t, domain.IsValidation(err))
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := loader.Load(ctx, "/does/not/matter.stl")

		require.ErrorIs(t, err, context.Canceled)
	})
}

func BenchmarkParseBinary(b *testing.B) {
	data := EncodeBinary(Box(50, 50, 50))

	b.ReportAllocs()

	for b.Loop() {
		_, _ = Parse(data)
	}
}
