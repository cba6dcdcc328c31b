package mesh

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/jsamuelsen/print-quote-service/internal/domain"
)

// EncodeBinary writes m as a binary STL. Facet normals are computed from
// the vertex winding.
func EncodeBinary(m *domain.Mesh) []byte {
	buf := make([]byte, headerSize+countSize+len(m.Triangles)*facetSize)
	copy(buf, "binary STL")
	binary.LittleEndian.PutUint32(buf[headerSize:], uint32(len(m.Triangles))) //nolint:gosec // facet count fits

	body := buf[headerSize+countSize:]

	for i, t := range m.Triangles {
		rec := body[i*facetSize:]
		putVertex(rec[0:], normal(t))

		for v := range 3 {
			putVertex(rec[12+v*12:], t[v])
		}
	}

	return buf
}

// EncodeASCII writes m as an ASCII STL solid with the given name.
func EncodeASCII(name string, m *domain.Mesh) []byte {
	var sb strings.Builder

	fmt.Fprintf(&sb, "solid %s\n", name)

	for _, t := range m.Triangles {
		n := normal(t)
		fmt.Fprintf(&sb, "  facet normal %g %g %g\n    outer loop\n", n.X, n.Y, n.Z)

		for _, v := range t {
			fmt.Fprintf(&sb, "      vertex %g %g %g\n", v.X, v.Y, v.Z)
		}

		sb.WriteString("    endloop\n  endfacet\n")
	}

	fmt.Fprintf(&sb, "endsolid %s\n", name)

	return []byte(sb.String())
}

func normal(t domain.Triangle) domain.Vec3 {
	n := t[1].Sub(t[0]).Cross(t[2].Sub(t[0]))
	if l := n.Norm(); l > 0 {
		return domain.Vec3{X: n.X / l, Y: n.Y / l, Z: n.Z / l}
	}

	return domain.Vec3{}
}

func putVertex(b []byte, v domain.Vec3) {
	binary.LittleEndian.PutUint32(b[0:], math.Float32bits(float32(v.X)))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(float32(v.Y)))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(float32(v.Z)))
}

// Box returns a closed, outward-wound box mesh spanning the origin to (x, y, z) in mm.
func Box(x, y, z float64) *domain.Mesh {
	v := func(i, j, k float64) domain.Vec3 { return domain.Vec3{X: i * x, Y: j * y, Z: k * z} }

	return &domain.Mesh{Triangles: []domain.Triangle{
		{v(0, 0, 0), v(0, 1, 0), v(1, 1, 0)}, {v(0, 0, 0), v(1, 1, 0), v(1, 0, 0)},
		{v(0, 0, 1), v(1, 0, 1), v(1, 1, 1)}, {v(0, 0, 1), v(1, 1, 1), v(0, 1, 1)},
		{v(0, 0, 0), v(1, 0, 0), v(1, 0, 1)}, {v(0, 0, 0), v(1, 0, 1), v(0, 0, 1)},
		{v(0, 1, 0), v(0, 1, 1), v(1, 1, 1)}, {v(0, 1, 0), v(1, 1, 1), v(1, 1, 0)},
		{v(0, 0, 0), v(0, 0, 1), v(0, 1, 1)}, {v(0, 0, 0), v(0, 1, 1), v(0, 1, 0)},
		{v(1, 0, 0), v(1, 1, 0), v(1, 1, 1)}, {v(1, 0, 0), v(1, 1, 1), v(1, 0, 1)},
	}}
}
