package pathing

import (
	"testing"

	"dronelogistics.ai/internal/sim/grid"
)

// flat allows only the y=0 plane, minus the given walls.
func flat(walls ...grid.Vec3i) Passable {
	solid := map[grid.Vec3i]bool{}
	for _, w := range walls {
		solid[w] = true
	}
	return func(p grid.Vec3i) bool { return p.Y == 0 && !solid[p] }
}

// box allows every cell with all coordinates in [-6,6], minus the given walls.
func box(walls ...grid.Vec3i) Passable {
	solid := map[grid.Vec3i]bool{}
	for _, w := range walls {
		solid[w] = true
	}
	in := func(v int) bool { return v >= -6 && v <= 6 }
	return func(p grid.Vec3i) bool { return in(p.X) && in(p.Y) && in(p.Z) && !solid[p] }
}

// walk drives w from start until it is adjacent to its target, fails, or runs
// out of calls. It fails the test if a cell is entered twice.
func walk(t *testing.T, w *Walker, start grid.Vec3i, passable Passable, calls int) (grid.Vec3i, bool) {
	t.Helper()
	pos := start
	visits := map[grid.Vec3i]int{start: 1}
	for i := 0; i < calls; i++ {
		if grid.Manhattan(pos, w.Target) <= 1 {
			return pos, true
		}
		next, ok := w.Next(pos, passable)
		if !ok {
			return pos, false
		}
		if grid.Manhattan(pos, next) != 1 || !passable(next) {
			t.Fatalf("illegal move %v -> %v", pos, next)
		}
		pos = next
		visits[pos]++
		if visits[pos] > 1 {
			t.Fatalf("cell %v entered twice: visits=%v", pos, visits)
		}
	}
	return pos, grid.Manhattan(pos, w.Target) <= 1
}

func TestGreedyInOpenSpace(t *testing.T) {
	next, ok := Greedy(grid.Vec3i{}, grid.Vec3i{X: 3}, flat())
	if !ok || next != (grid.Vec3i{X: 1}) {
		t.Fatalf("next=%v ok=%v", next, ok)
	}
}

func TestGreedyUsesVerticalMoves(t *testing.T) {
	open := func(grid.Vec3i) bool { return true }
	next, ok := Greedy(grid.Vec3i{}, grid.Vec3i{Y: 5}, open)
	if !ok || next != (grid.Vec3i{Y: 1}) {
		t.Fatalf("expected to climb, got %v ok=%v", next, ok)
	}
}

func TestDetourAroundWall(t *testing.T) {
	walls := []grid.Vec3i{{X: 1, Z: -1}, {X: 1}, {X: 1, Z: 1}}
	next, ok := Detour(grid.Vec3i{}, grid.Vec3i{X: 3}, 8, flat(walls...))
	if !ok {
		t.Fatalf("expected a detour")
	}
	// Both sides are symmetric; the deterministic tie-break prefers the lower Z.
	if next != (grid.Vec3i{Z: -1}) {
		t.Fatalf("next=%v want (0,0,-1)", next)
	}

	again, _ := Detour(grid.Vec3i{}, grid.Vec3i{X: 3}, 8, flat(walls...))
	if again != next {
		t.Fatalf("detour is not deterministic: %v vs %v", again, next)
	}
}

func TestDetourPathIsContiguous(t *testing.T) {
	walls := []grid.Vec3i{{X: 1, Z: -1}, {X: 1}, {X: 1, Z: 1}}
	passable := flat(walls...)
	target := grid.Vec3i{X: 3}
	path, ok := DetourPath(grid.Vec3i{}, target, 8, passable)
	if !ok || len(path) == 0 {
		t.Fatalf("expected a path, ok=%v", ok)
	}
	prev := grid.Vec3i{}
	for _, p := range path {
		if grid.Manhattan(prev, p) != 1 || !passable(p) {
			t.Fatalf("broken path %v at %v", path, p)
		}
		prev = p
	}
	if len(path) != 7 || path[len(path)-1] != target {
		t.Fatalf("path=%v, want 7 steps ending at %v", path, target)
	}
}

func TestDetourRespectsDepthBound(t *testing.T) {
	walls := []grid.Vec3i{{X: 1, Z: -1}, {X: 1}, {X: 1, Z: 1}}
	if _, ok := Detour(grid.Vec3i{}, grid.Vec3i{X: 3}, 2, flat(walls...)); ok {
		t.Fatalf("depth 2 cannot get around a 3-wide wall")
	}
}

func TestWalkerEnclosedFails(t *testing.T) {
	var walls []grid.Vec3i
	for _, f := range grid.Faces {
		walls = append(walls, grid.Vec3i{}.Offset(f))
	}
	w := &Walker{Target: grid.Vec3i{X: 5}, MaxDepth: 16}
	if _, ok := w.Next(grid.Vec3i{}, flat(walls...)); ok {
		t.Fatalf("enclosed start must not move")
	}
}

func TestWalkerCrossesConcaveWall(t *testing.T) {
	target := grid.Vec3i{X: 4}
	walls := []grid.Vec3i{target}
	for y := -1; y <= 1; y++ {
		for z := -1; z <= 1; z++ {
			walls = append(walls, grid.Vec3i{X: 1, Y: y, Z: z})
		}
	}
	w := &Walker{Target: target, MaxDepth: 12}
	pos, ok := walk(t, w, grid.Vec3i{}, box(walls...), 40)
	if !ok {
		t.Fatalf("walker stopped at %v", pos)
	}
}

func TestWalkerGivesUpOnSealedTarget(t *testing.T) {
	target := grid.Vec3i{X: 4}
	walls := []grid.Vec3i{target}
	for _, f := range grid.Faces {
		walls = append(walls, target.Offset(f))
	}
	w := &Walker{Target: target, MaxDepth: 12}
	pos, ok := walk(t, w, grid.Vec3i{}, box(walls...), 40)
	if ok {
		t.Fatalf("reached %v next to a sealed target", pos)
	}
	if _, again := w.Next(pos, box(walls...)); again {
		t.Fatalf("walker moved again after giving up at %v", pos)
	}
}

func TestWalkerReplansWhenRouteIsCut(t *testing.T) {
	target := grid.Vec3i{X: 3}
	walls := []grid.Vec3i{{X: 1, Z: -1}, {X: 1}, {X: 1, Z: 1}}
	w := &Walker{Target: target, MaxDepth: 8}

	first, ok := w.Next(grid.Vec3i{}, flat(walls...))
	if !ok || first != (grid.Vec3i{Z: -1}) {
		t.Fatalf("first=%v ok=%v", first, ok)
	}
	// Block the planned side so the remaining route is no longer usable.
	cut := append(append([]grid.Vec3i{}, walls...), grid.Vec3i{Z: -2})
	pos, ok := walk(t, w, first, flat(cut...), 20)
	if !ok {
		t.Fatalf("walker stopped at %v", pos)
	}
}

func TestWalkerStopsWithoutProgress(t *testing.T) {
	passable := func(p grid.Vec3i) bool { return p.Y == 0 && p.Z == 0 }
	w := &Walker{Target: grid.Vec3i{X: 10}, MaxDepth: 2}
	// pos never advances, as if every move were undone.
	pos := grid.Vec3i{X: 5}
	calls := 0
	for ; calls < 50; calls++ {
		if _, ok := w.Next(pos, passable); !ok {
			break
		}
	}
	if calls > 2*w.MaxDepth+1 {
		t.Fatalf("walker kept moving for %d calls without getting closer", calls)
	}
}
