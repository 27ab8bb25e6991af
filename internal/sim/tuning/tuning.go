package tuning

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"dronelogistics.ai/internal/sim/grid"
	"dronelogistics.ai/internal/sim/world"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version" json:"protocol_version"`

	TickRateHz         int `yaml:"tick_rate_hz" json:"tick_rate_hz"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks" json:"snapshot_every_ticks"`

	RestartCooldownTicks int `yaml:"restart_cooldown_ticks" json:"restart_cooldown_ticks"`
	DetourMaxDepth       int `yaml:"detour_max_depth" json:"detour_max_depth"`

	DroneItemCapacity  int `yaml:"drone_item_capacity" json:"drone_item_capacity"`
	DroneFluidCapacity int `yaml:"drone_fluid_capacity" json:"drone_fluid_capacity"`

	Bounds Bounds `yaml:"bounds" json:"bounds"`

	Observer Observer `yaml:"observer" json:"observer"`
}

// Bounds is the flyable box, both corners inclusive.
type Bounds struct {
	Min [3]int `yaml:"min" json:"min"`
	Max [3]int `yaml:"max" json:"max"`
}

type Observer struct {
	MaxSessions  int `yaml:"max_sessions" json:"max_sessions"`
	SendQueueLen int `yaml:"send_queue_len" json:"send_queue_len"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:      "0.1",
		TickRateHz:           5,
		SnapshotEveryTicks:   3000,
		RestartCooldownTicks: 20,
		DetourMaxDepth:       12,
		DroneItemCapacity:    64,
		DroneFluidCapacity:   16000,
		Bounds: Bounds{
			Min: [3]int{-64, 0, -64},
			Max: [3]int{64, 32, 64},
		},
		Observer: Observer{
			MaxSessions:  16,
			SendQueueLen: 8,
		},
	}
}

// Load reads path on top of Defaults; keys missing from the file keep their default.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	var errs []error
	if t.TickRateHz <= 0 || t.TickRateHz > 100 {
		errs = append(errs, fmt.Errorf("tick_rate_hz must be in 1..100, got %d", t.TickRateHz))
	}
	if t.SnapshotEveryTicks < 0 {
		errs = append(errs, fmt.Errorf("snapshot_every_ticks must be >= 0"))
	}
	if t.RestartCooldownTicks <= 0 {
		errs = append(errs, fmt.Errorf("restart_cooldown_ticks must be > 0"))
	}
	if t.DetourMaxDepth <= 0 {
		errs = append(errs, fmt.Errorf("detour_max_depth must be > 0"))
	}
	if t.DroneItemCapacity <= 0 || t.DroneFluidCapacity <= 0 {
		errs = append(errs, fmt.Errorf("drone capacities must be > 0"))
	}
	for i := 0; i < 3; i++ {
		if t.Bounds.Min[i] > t.Bounds.Max[i] {
			errs = append(errs, fmt.Errorf("bounds.min %v exceeds bounds.max %v", t.Bounds.Min, t.Bounds.Max))
			break
		}
	}
	if t.Observer.SendQueueLen < 0 || t.Observer.MaxSessions < 0 {
		errs = append(errs, fmt.Errorf("observer limits must be >= 0"))
	}
	return errors.Join(errs...)
}

// WorldConfig maps tuning onto the world runtime config.
func (t Tuning) WorldConfig(worldID string) world.WorldConfig {
	return world.WorldConfig{
		ID:                   worldID,
		TickRateHz:           t.TickRateHz,
		Bounds:               grid.NewAABB(grid.FromArray(t.Bounds.Min), grid.FromArray(t.Bounds.Max)),
		RestartCooldownTicks: t.RestartCooldownTicks,
		DetourMaxDepth:       t.DetourMaxDepth,
		DroneItemCapacity:    t.DroneItemCapacity,
		DroneFluidCapacity:   t.DroneFluidCapacity,
		SnapshotEveryTicks:   t.SnapshotEveryTicks,
	}
}
