package world

import (
	"fmt"
	"sort"

	"dronelogistics.ai/internal/persistence/snapshot"
	"dronelogistics.ai/internal/sim/grid"
	"dronelogistics.ai/internal/sim/logistics"
)

func (w *World) ExportSnapshot(nowTick uint64) snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header:               snapshot.Header{Version: snapshot.Version, WorldID: w.cfg.ID, Tick: nowTick},
		TickRate:             w.cfg.TickRateHz,
		Bounds:               [2][3]int{w.cfg.Bounds.Min.ToArray(), w.cfg.Bounds.Max.ToArray()},
		RestartCooldownTicks: w.cfg.RestartCooldownTicks,
		DetourMaxDepth:       w.cfg.DetourMaxDepth,
		DroneItemCapacity:    w.cfg.DroneItemCapacity,
		DroneFluidCapacity:   w.cfg.DroneFluidCapacity,
		SnapshotEveryTicks:   w.cfg.SnapshotEveryTicks,
	}

	solid := make([]grid.Vec3i, 0, len(w.solid))
	for p := range w.solid {
		solid = append(solid, p)
	}
	sort.Slice(solid, func(i, j int) bool { return solid[i].Less(solid[j]) })
	for _, p := range solid {
		snap.Solid = append(snap.Solid, p.ToArray())
	}

	for _, f := range w.Frames() {
		fv := snapshot.FrameV1{
			ID:       f.id,
			Pos:      f.pos.ToArray(),
			Side:     f.side.String(),
			Roles:    rolesString(f.roles),
			Priority: f.priority,
			Items:    copyCounts(f.items),
			Fluids:   copyCounts(f.fluids),
		}
		for _, r := range f.demand {
			fv.Demand = append(fv.Demand, resourceV1(r))
		}
		snap.Frames = append(snap.Frames, fv)
	}

	for _, d := range w.Drones() {
		dv := snapshot.DroneV1{
			ID:            d.id,
			Pos:           d.pos.ToArray(),
			ItemCapacity:  d.itemCap,
			FluidCapacity: d.fluidCap,
			Item:          resourceV1(d.item),
			Fluid:         resourceV1(d.fluid),
			NextStartTick: d.nextStartTick,
		}
		for _, c := range d.area.Cells() {
			dv.Area = append(dv.Area, c.ToArray())
		}
		snap.Drones = append(snap.Drones, dv)
	}
	snap.Header.Frames = len(snap.Frames)
	snap.Header.Drones = len(snap.Drones)
	return snap
}

// ConfigFromSnapshot restores the operational parameters a snapshot was taken with.
func ConfigFromSnapshot(worldID string, snap snapshot.SnapshotV1) WorldConfig {
	if worldID == "" {
		worldID = snap.Header.WorldID
	}
	return WorldConfig{
		ID:                   worldID,
		TickRateHz:           snap.TickRate,
		Bounds:               grid.NewAABB(grid.FromArray(snap.Bounds[0]), grid.FromArray(snap.Bounds[1])),
		RestartCooldownTicks: snap.RestartCooldownTicks,
		DetourMaxDepth:       snap.DetourMaxDepth,
		DroneItemCapacity:    snap.DroneItemCapacity,
		DroneFluidCapacity:   snap.DroneFluidCapacity,
		SnapshotEveryTicks:   snap.SnapshotEveryTicks,
	}
}

// ImportSnapshot loads frames, drones and solids into an empty world. Every
// drone starts idle; its first rescan happens at its saved restart tick.
func (w *World) ImportSnapshot(snap snapshot.SnapshotV1) error {
	if len(w.frames) != 0 || len(w.drones) != 0 {
		return fmt.Errorf("import snapshot: world is not empty")
	}
	if snap.Header.WorldID != "" && snap.Header.WorldID != w.cfg.ID {
		return fmt.Errorf("import snapshot: world id mismatch: have %s, snapshot %s", w.cfg.ID, snap.Header.WorldID)
	}

	for _, p := range snap.Solid {
		w.SetSolid(grid.FromArray(p), true)
	}
	for _, fv := range snap.Frames {
		side, ok := grid.ParseFace(fv.Side)
		if !ok {
			return fmt.Errorf("import snapshot: frame %s: bad side %q", fv.ID, fv.Side)
		}
		roles, ok := ParseRoles(fv.Roles)
		if !ok {
			return fmt.Errorf("import snapshot: frame %s: bad roles %q", fv.ID, fv.Roles)
		}
		cfg := FrameConfig{
			ID:       fv.ID,
			Pos:      grid.FromArray(fv.Pos),
			Side:     side,
			Roles:    roles,
			Priority: fv.Priority,
			Items:    fv.Items,
			Fluids:   fv.Fluids,
		}
		for _, r := range fv.Demand {
			res, err := resourceFromV1(r)
			if err != nil {
				return fmt.Errorf("import snapshot: frame %s: %w", fv.ID, err)
			}
			cfg.Demand = append(cfg.Demand, res)
		}
		if _, err := w.AddFrame(cfg); err != nil {
			return fmt.Errorf("import snapshot: %w", err)
		}
	}
	for _, dv := range snap.Drones {
		item, err := resourceFromV1(dv.Item)
		if err != nil {
			return fmt.Errorf("import snapshot: drone %s: %w", dv.ID, err)
		}
		fluid, err := resourceFromV1(dv.Fluid)
		if err != nil {
			return fmt.Errorf("import snapshot: drone %s: %w", dv.ID, err)
		}
		cells := make([]grid.Vec3i, 0, len(dv.Area))
		for _, c := range dv.Area {
			cells = append(cells, grid.FromArray(c))
		}
		d, err := w.AddDrone(DroneConfig{
			ID:            dv.ID,
			Pos:           grid.FromArray(dv.Pos),
			Area:          grid.NewArea(cells...),
			ItemCapacity:  dv.ItemCapacity,
			FluidCapacity: dv.FluidCapacity,
			Item:          item,
			Fluid:         fluid,
		})
		if err != nil {
			return fmt.Errorf("import snapshot: %w", err)
		}
		d.nextStartTick = dv.NextStartTick
	}

	w.tick.Store(snap.Header.Tick + 1)
	return nil
}

func copyCounts(m map[string]int) map[string]int {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func resourceV1(r logistics.Resource) snapshot.ResourceV1 {
	if r.IsEmpty() {
		return snapshot.ResourceV1{}
	}
	return snapshot.ResourceV1{Kind: r.Kind.String(), ID: r.ID, Amount: r.Amount}
}

func resourceFromV1(r snapshot.ResourceV1) (logistics.Resource, error) {
	switch r.Kind {
	case "", "NONE":
		return logistics.Empty(), nil
	case "ITEM":
		return logistics.Item(r.ID, r.Amount), nil
	case "FLUID":
		return logistics.Fluid(r.ID, r.Amount), nil
	}
	return logistics.Empty(), fmt.Errorf("unknown resource kind %q", r.Kind)
}
