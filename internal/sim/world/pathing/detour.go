package pathing

import "dronelogistics.ai/internal/sim/grid"

// Passable reports whether a drone may occupy p.
type Passable func(p grid.Vec3i) bool

// Walker moves towards a fixed target one face step per call. Once a detour
// is chosen it is followed to its end, so every greedy run or finished detour
// leaves the walker strictly closer than it has ever been.
type Walker struct {
	Target   grid.Vec3i
	MaxDepth int

	route   []grid.Vec3i
	best    int
	stall   int
	started bool
}

// Next returns the cell to move to from pos. It reports false when no move
// gets closer to the target, or when the closest distance reached so far has
// not improved for more than 2*MaxDepth calls.
func (w *Walker) Next(pos grid.Vec3i, passable Passable) (grid.Vec3i, bool) {
	d := grid.Manhattan(pos, w.Target)
	if !w.started || d < w.best {
		w.started = true
		w.best = d
		w.stall = 0
	} else {
		w.stall++
	}
	if w.stall > 2*max(w.MaxDepth, 1) {
		w.route = nil
		return grid.Vec3i{}, false
	}

	if len(w.route) > 0 {
		next := w.route[0]
		if grid.Manhattan(pos, next) == 1 && passable(next) {
			w.route = w.route[1:]
			return next, true
		}
		// The world changed under the route; plan again from here.
		w.route = nil
	}

	if next, ok := Greedy(pos, w.Target, passable); ok {
		return next, true
	}
	path, ok := DetourPath(pos, w.Target, w.MaxDepth, passable)
	if !ok {
		return grid.Vec3i{}, false
	}
	w.route = path[1:]
	return path[0], true
}

// Greedy picks the first neighbor, in face order, that is passable and closer to target.
func Greedy(start, target grid.Vec3i, passable Passable) (grid.Vec3i, bool) {
	d0 := grid.Manhattan(start, target)
	for _, f := range grid.Faces {
		np := start.Offset(f)
		if grid.Manhattan(np, target) >= d0 {
			continue
		}
		if passable(np) {
			return np, true
		}
	}
	return grid.Vec3i{}, false
}

// Detour returns the first step of DetourPath.
func Detour(start, target grid.Vec3i, maxDepth int, passable Passable) (grid.Vec3i, bool) {
	path, ok := DetourPath(start, target, maxDepth, passable)
	if !ok {
		return grid.Vec3i{}, false
	}
	return path[0], true
}

// DetourPath runs a bounded BFS from start and returns the shortest path, start
// excluded, to the cell closest to target among those closer than start. Ties
// break on (distance, depth, first step order) so the same world always yields
// the same path.
func DetourPath(start, target grid.Vec3i, maxDepth int, passable Passable) ([]grid.Vec3i, bool) {
	if maxDepth <= 0 {
		return nil, false
	}
	startDist := grid.Manhattan(start, target)

	type qItem struct {
		p     grid.Vec3i
		depth int
		first grid.Vec3i
	}

	parent := make(map[grid.Vec3i]grid.Vec3i, 256)
	parent[start] = start

	queue := make([]qItem, 0, 256)
	for _, f := range grid.Faces {
		np := start.Offset(f)
		if !passable(np) {
			continue
		}
		parent[np] = start
		queue = append(queue, qItem{p: np, depth: 1, first: np})
	}

	var (
		best  qItem
		bestD int
		found bool
	)
	better := func(dist int, it qItem) bool {
		if !found {
			return true
		}
		if dist != bestD {
			return dist < bestD
		}
		if it.depth != best.depth {
			return it.depth < best.depth
		}
		return it.first.Less(best.first)
	}

	for head := 0; head < len(queue); head++ {
		it := queue[head]

		d := grid.Manhattan(it.p, target)
		if d < startDist && better(d, it) {
			found = true
			bestD = d
			best = it
		}

		if it.depth >= maxDepth {
			continue
		}
		for _, f := range grid.Faces {
			np := it.p.Offset(f)
			if _, seen := parent[np]; seen || !passable(np) {
				continue
			}
			parent[np] = it.p
			queue = append(queue, qItem{p: np, depth: it.depth + 1, first: it.first})
		}
	}

	if !found {
		return nil, false
	}
	path := make([]grid.Vec3i, best.depth)
	for i, p := best.depth-1, best.p; i >= 0; i, p = i-1, parent[p] {
		path[i] = p
	}
	return path, true
}
