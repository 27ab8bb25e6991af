package world

import "dronelogistics.ai/internal/sim/grid"

type WorldConfig struct {
	ID         string
	TickRateHz int

	// Bounds limits where drones may fly. Cells outside are unreachable.
	Bounds grid.AABB

	// Idle drones rescan their area this many ticks after going idle.
	RestartCooldownTicks int
	DetourMaxDepth       int

	DroneItemCapacity  int
	DroneFluidCapacity int

	// Operational parameters. These are included in snapshots for resume.
	SnapshotEveryTicks int
}

func (c *WorldConfig) applyDefaults() {
	if c.ID == "" {
		c.ID = "world_1"
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = 5
	}
	if c.RestartCooldownTicks <= 0 {
		c.RestartCooldownTicks = 20
	}
	if c.DetourMaxDepth <= 0 {
		c.DetourMaxDepth = 12
	}
	if c.DroneItemCapacity <= 0 {
		c.DroneItemCapacity = 64
	}
	if c.DroneFluidCapacity <= 0 {
		c.DroneFluidCapacity = 16000
	}
	if c.SnapshotEveryTicks < 0 {
		c.SnapshotEveryTicks = 0
	}
	if c.Bounds == (grid.AABB{}) {
		c.Bounds = grid.NewAABB(grid.Vec3i{X: -64, Y: 0, Z: -64}, grid.Vec3i{X: 64, Y: 32, Z: 64})
	}
}
