package domain

import "math"

// degenerateAreaEpsilon is the triangle area (mm²) below which a facet counts as degenerate.
const degenerateAreaEpsilon = 1e-10

// Vec3 is a point or vector in millimetres.
type Vec3 struct {
	X, Y, Z float64
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Cross returns the cross product v × o.
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		X: v.Y*o.Z - v.Z*o.Y,
		Y: v.Z*o.X - v.X*o.Z,
		Z: v.X*o.Y - v.Y*o.X,
	}
}

// Dot returns the dot product v · o.
func (v Vec3) Dot(o Vec3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// Triangle is a single mesh facet.
type Triangle [3]Vec3

// Area returns the facet area.
func (t Triangle) Area() float64 {
	return 0.5 * t[1].Sub(t[0]).Cross(t[2].Sub(t[0])).Norm()
}

// Mesh is a triangle soup as read from an STL file.
type Mesh struct {
	Triangles []Triangle
}

// SignedVolume returns the signed tetrahedron sum in mm³. It is negative for
// meshes whose facets are wound inward.
func (m *Mesh) SignedVolume() float64 {
	var sum float64
	for _, t := range m.Triangles {
		sum += t[0].Dot(t[1].Cross(t[2]))
	}

	return sum / 6.0
}

// Volume returns the enclosed volume in mm³, independent of winding order.
func (m *Mesh) Volume() float64 {
	return math.Abs(m.SignedVolume())
}

// Bounds returns the axis-aligned bounding box of all vertices.
// An empty mesh yields the zero box.
func (m *Mesh) Bounds() BoundingBox {
	if len(m.Triangles) == 0 {
		return BoundingBox{}
	}

	first := m.Triangles[0][0]
	box := BoundingBox{
		MinX: first.X, MinY: first.Y, MinZ: first.Z,
		MaxX: first.X, MaxY: first.Y, MaxZ: first.Z,
	}

	for _, t := range m.Triangles {
		for _, v := range t {
			box.MinX = math.Min(box.MinX, v.X)
			box.MinY = math.Min(box.MinY, v.Y)
			box.MinZ = math.Min(box.MinZ, v.Z)
			box.MaxX = math.Max(box.MaxX, v.X)
			box.MaxY = math.Max(box.MaxY, v.Y)
			box.MaxZ = math.Max(box.MaxZ, v.Z)
		}
	}

	return box
}

// IsWatertight is a conservative approximation of a closed-manifold check:
// it fails empty meshes and meshes containing degenerate facets.
// Passing it does not prove the surface is closed; edge pairing is not verified.
func (m *Mesh) IsWatertight() bool {
	if len(m.Triangles) == 0 {
		return false
	}

	for _, t := range m.Triangles {
		if t.Area() < degenerateAreaEpsilon {
			return false
		}
	}

	return true
}

// BoundingBox is an axis-aligned box in millimetres.
type BoundingBox struct {
	MinX, MinY, MinZ float64
	MaxX, MaxY, MaxZ float64
}

// Dimensions returns the extent along X, Y and Z.
func (b BoundingBox) Dimensions() (x, y, z float64) {
	return b.MaxX - b.MinX, b.MaxY - b.MinY, b.MaxZ - b.MinZ
}

// MaxExtent returns the largest single-axis extent.
func (b BoundingBox) MaxExtent() float64 {
	x, y, z := b.Dimensions()
	return math.Max(x, math.Max(y, z))
}

// Volume returns the volume of the box itself in mm³.
func (b BoundingBox) Volume() float64 {
	x, y, z := b.Dimensions()
	return x * y * z
}
