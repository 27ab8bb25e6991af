package grid

import (
	"fmt"
	"sort"
)

type Vec3i struct {
	X int
	Y int
	Z int
}

func (v Vec3i) ToArray() [3]int { return [3]int{v.X, v.Y, v.Z} }

func FromArray(a [3]int) Vec3i { return Vec3i{X: a[0], Y: a[1], Z: a[2]} }

func (v Vec3i) Add(o Vec3i) Vec3i { return Vec3i{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z} }

func (v Vec3i) Offset(f Face) Vec3i { return v.Add(f.Dir()) }

func (v Vec3i) String() string { return fmt.Sprintf("(%d,%d,%d)", v.X, v.Y, v.Z) }

// Less orders cells by Y, then Z, then X.
func (v Vec3i) Less(o Vec3i) bool {
	if v.Y != o.Y {
		return v.Y < o.Y
	}
	if v.Z != o.Z {
		return v.Z < o.Z
	}
	return v.X < o.X
}

func Manhattan(a, b Vec3i) int {
	return AbsInt(a.X-b.X) + AbsInt(a.Y-b.Y) + AbsInt(a.Z-b.Z)
}

func AbsInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Face is one of the six sides of a cell.
type Face uint8

const (
	FaceDown Face = iota
	FaceUp
	FaceNorth
	FaceSouth
	FaceWest
	FaceEast
)

// Faces lists every face in the fixed order used for neighbor scans.
var Faces = [6]Face{FaceDown, FaceUp, FaceNorth, FaceSouth, FaceWest, FaceEast}

var faceNames = [6]string{"DOWN", "UP", "NORTH", "SOUTH", "WEST", "EAST"}

func (f Face) String() string {
	if int(f) < len(faceNames) {
		return faceNames[f]
	}
	return "UNKNOWN"
}

func (f Face) Dir() Vec3i {
	switch f {
	case FaceDown:
		return Vec3i{Y: -1}
	case FaceUp:
		return Vec3i{Y: 1}
	case FaceNorth:
		return Vec3i{Z: -1}
	case FaceSouth:
		return Vec3i{Z: 1}
	case FaceWest:
		return Vec3i{X: -1}
	case FaceEast:
		return Vec3i{X: 1}
	}
	return Vec3i{}
}

func ParseFace(s string) (Face, bool) {
	for i, n := range faceNames {
		if n == s {
			return Face(i), true
		}
	}
	return FaceUp, false
}

// AABB is an inclusive axis-aligned box of cells.
type AABB struct {
	Min Vec3i
	Max Vec3i
}

func NewAABB(a, b Vec3i) AABB {
	return AABB{
		Min: Vec3i{X: min(a.X, b.X), Y: min(a.Y, b.Y), Z: min(a.Z, b.Z)},
		Max: Vec3i{X: max(a.X, b.X), Y: max(a.Y, b.Y), Z: max(a.Z, b.Z)},
	}
}

func (b AABB) Contains(p Vec3i) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

func (b AABB) Volume() int {
	return (b.Max.X - b.Min.X + 1) * (b.Max.Y - b.Min.Y + 1) * (b.Max.Z - b.Min.Z + 1)
}

// Area is an arbitrary (possibly non-cuboid) set of cells.
type Area struct {
	cells map[Vec3i]struct{}
}

func NewArea(cells ...Vec3i) Area {
	a := Area{cells: make(map[Vec3i]struct{}, len(cells))}
	for _, c := range cells {
		a.cells[c] = struct{}{}
	}
	return a
}

// AreaFromBoxes returns the union of every cell in boxes.
func AreaFromBoxes(boxes ...AABB) Area {
	a := Area{cells: map[Vec3i]struct{}{}}
	for _, b := range boxes {
		for y := b.Min.Y; y <= b.Max.Y; y++ {
			for z := b.Min.Z; z <= b.Max.Z; z++ {
				for x := b.Min.X; x <= b.Max.X; x++ {
					a.cells[Vec3i{X: x, Y: y, Z: z}] = struct{}{}
				}
			}
		}
	}
	return a
}

func (a Area) Len() int { return len(a.cells) }

func (a Area) Contains(p Vec3i) bool {
	_, ok := a.cells[p]
	return ok
}

// Bounds returns the smallest box holding every cell; ok is false for an empty area.
func (a Area) Bounds() (AABB, bool) {
	if len(a.cells) == 0 {
		return AABB{}, false
	}
	first := true
	var b AABB
	for c := range a.cells {
		if first {
			b = AABB{Min: c, Max: c}
			first = false
			continue
		}
		b.Min = Vec3i{X: min(b.Min.X, c.X), Y: min(b.Min.Y, c.Y), Z: min(b.Min.Z, c.Z)}
		b.Max = Vec3i{X: max(b.Max.X, c.X), Y: max(b.Max.Y, c.Y), Z: max(b.Max.Z, c.Z)}
	}
	return b, true
}

// Cells returns the cells in deterministic order.
func (a Area) Cells() []Vec3i {
	out := make([]Vec3i, 0, len(a.cells))
	for c := range a.cells {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
