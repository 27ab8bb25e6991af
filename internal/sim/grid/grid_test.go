package grid

import "testing"

func TestAreaBoundsNonCuboid(t *testing.T) {
	a := NewArea(Vec3i{X: 0}, Vec3i{X: 4, Y: 2}, Vec3i{Z: -3})
	b, ok := a.Bounds()
	if !ok {
		t.Fatalf("expected bounds for non-empty area")
	}
	if b.Min != (Vec3i{X: 0, Y: 0, Z: -3}) || b.Max != (Vec3i{X: 4, Y: 2, Z: 0}) {
		t.Fatalf("bounds mismatch: %+v", b)
	}
	// Inside the box but not part of the area.
	if a.Contains(Vec3i{X: 2, Y: 1}) {
		t.Fatalf("area should not contain cells outside its set")
	}
	if !b.Contains(Vec3i{X: 2, Y: 1}) {
		t.Fatalf("bounding box should contain interior cell")
	}
}

func TestAreaEmpty(t *testing.T) {
	if _, ok := NewArea().Bounds(); ok {
		t.Fatalf("empty area must not report bounds")
	}
}

func TestAreaFromBoxesUnion(t *testing.T) {
	a := AreaFromBoxes(
		NewAABB(Vec3i{}, Vec3i{X: 1, Y: 1, Z: 1}),
		NewAABB(Vec3i{X: 1, Y: 1, Z: 1}, Vec3i{X: 2, Y: 1, Z: 1}),
	)
	if got := a.Len(); got != 9 {
		t.Fatalf("union size=%d want=9", got)
	}
	cells := a.Cells()
	if cells[0] != (Vec3i{}) {
		t.Fatalf("cells should start at origin, got %v", cells[0])
	}
}

func TestFaceOffsetsAreUnitAndDistinct(t *testing.T) {
	seen := map[Vec3i]bool{}
	for _, f := range Faces {
		d := f.Dir()
		if Manhattan(Vec3i{}, d) != 1 {
			t.Fatalf("face %s dir %v is not a unit step", f, d)
		}
		if seen[d] {
			t.Fatalf("duplicate dir for face %s", f)
		}
		seen[d] = true
		if pf, ok := ParseFace(f.String()); !ok || pf != f {
			t.Fatalf("ParseFace(%q)=%v,%v", f.String(), pf, ok)
		}
	}
}
