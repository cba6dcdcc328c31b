// Package mesh reads STL triangle meshes from disk.
package mesh

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/jsamuelsen/print-quote-service/internal/domain"
)

// Binary STL layout: 80-byte header, uint32 facet count, 50 bytes per facet
// (normal, three vertices as little-endian float32, uint16 attribute count).
const (
	headerSize = 80
	countSize  = 4
	facetSize  = 50
)

var (
	errTruncated    = errors.New("binary STL size does not match facet count")
	errVertexCount  = errors.New("vertex count is not a multiple of three")
	errNoFacets     = errors.New("mesh contains no facets")
	errNonFinite    = errors.New("vertex coordinate is not finite")
	errUnrecognized = errors.New("content is neither binary nor ASCII STL")
)

// STLLoader implements ports.MeshLoader for binary and ASCII STL files.
type STLLoader struct{}

// NewSTLLoader creates an STL loader.
func NewSTLLoader() *STLLoader {
	return &STLLoader{}
}

// Load reads and parses the file at path.
func (l *STLLoader) Load(ctx context.Context, path string) (*domain.Mesh, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.NewProcessingError("failed to read mesh file", err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, domain.NewProcessingError("STL processing failed", err)
	}

	return m, nil
}

// Parse decodes STL content, detecting binary or ASCII encoding.
// Binary files may also begin with "solid", so the size check takes precedence.
func Parse(data []byte) (*domain.Mesh, error) {
	if isBinary(data) {
		return parseBinary(data)
	}

	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if bytes.HasPrefix(bytes.ToLower(trimmed[:min(len(trimmed), 5)]), []byte("solid")) {
		return parseASCII(bytes.NewReader(data))
	}

	if len(data) >= headerSize+countSize {
		return nil, errTruncated
	}

	return nil, errUnrecognized
}

func isBinary(data []byte) bool {
	if len(data) < headerSize+countSize {
		return false
	}

	n := binary.LittleEndian.Uint32(data[headerSize:])

	return uint64(len(data)) == uint64(headerSize+countSize)+uint64(n)*facetSize
}

func parseBinary(data []byte) (*domain.Mesh, error) {
	n := int(binary.LittleEndian.Uint32(data[headerSize:]))
	if n == 0 {
		return nil, errNoFacets
	}

	m := &domain.Mesh{Triangles: make([]domain.Triangle, n)}
	body := data[headerSize+countSize:]

	for i := range n {
		rec := body[i*facetSize : (i+1)*facetSize]
		// Skip the 12-byte normal; it is recomputed from the vertices when needed.
		for v := range 3 {
			off := 12 + v*12

			vert, err := readVertex(rec[off : off+12])
			if err != nil {
				return nil, fmt.Errorf("facet %d: %w", i, err)
			}

			m.Triangles[i][v] = vert
		}
	}

	return m, nil
}

func readVertex(b []byte) (domain.Vec3, error) {
	x := float64(math.Float32frombits(binary.LittleEndian.Uint32(b[0:])))
	y := float64(math.Float32frombits(binary.LittleEndian.Uint32(b[4:])))
	z := float64(math.Float32frombits(binary.LittleEndian.Uint32(b[8:])))

	for _, c := range [...]float64{x, y, z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return domain.Vec3{}, errNonFinite
		}
	}

	return domain.Vec3{X: x, Y: y, Z: z}, nil
}

func parseASCII(r io.Reader) (*domain.Mesh, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		vertices []domain.Vec3
		line     int
	)

	for scanner.Scan() {
		line++

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || !strings.EqualFold(fields[0], "vertex") {
			continue
		}

		if len(fields) != 4 {
			return nil, fmt.Errorf("line %d: malformed vertex", line)
		}

		var coords [3]float64

		for i, f := range fields[1:] {
			c, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}

			if math.IsNaN(c) || math.IsInf(c, 0) {
				return nil, fmt.Errorf("line %d: %w", line, errNonFinite)
			}

			coords[i] = c
		}

		vertices = append(vertices, domain.Vec3{X: coords[0], Y: coords[1], Z: coords[2]})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ASCII STL: %w", err)
	}

	if len(vertices) == 0 {
		return nil, errNoFacets
	}

	if len(vertices)%3 != 0 {
		return nil, errVertexCount
	}

	m := &domain.Mesh{Triangles: make([]domain.Triangle, len(vertices)/3)}
	for i := range m.Triangles {
		m.Triangles[i] = domain.Triangle{vertices[3*i], vertices[3*i+1], vertices[3*i+2]}
	}

	return m, nil
}
