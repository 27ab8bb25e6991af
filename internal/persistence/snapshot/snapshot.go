package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
	Frames  int    `json:"frames"`
	Drones  int    `json:"drones"`
}

// SnapshotV1 captures frames, drones and the voxel grid. Tasks and incoming
// reservations are not captured; drones rebuild their registries after
// a resume.
type SnapshotV1 struct {
	Header Header `json:"header"`

	TickRate int       `json:"tick_rate_hz"`
	Bounds   [2][3]int `json:"bounds"`

	// Operational parameters (captured for resume).
	RestartCooldownTicks int `json:"restart_cooldown_ticks,omitempty"`
	DetourMaxDepth       int `json:"detour_max_depth,omitempty"`
	DroneItemCapacity    int `json:"drone_item_capacity,omitempty"`
	DroneFluidCapacity   int `json:"drone_fluid_capacity,omitempty"`
	SnapshotEveryTicks   int `json:"snapshot_every_ticks,omitempty"`

	Solid  [][3]int  `json:"solid,omitempty"`
	Frames []FrameV1 `json:"frames"`
	Drones []DroneV1 `json:"drones"`
}

type ResourceV1 struct {
	Kind   string `json:"kind"`
	ID     string `json:"id"`
	Amount int    `json:"amount"`
}

type FrameV1 struct {
	ID       string         `json:"id"`
	Pos      [3]int         `json:"pos"`
	Side     string         `json:"side"`
	Roles    string         `json:"roles"`
	Priority int            `json:"priority"`
	Items    map[string]int `json:"items,omitempty"`
	Fluids   map[string]int `json:"fluids,omitempty"`
	Demand   []ResourceV1   `json:"demand,omitempty"`
}

type DroneV1 struct {
	ID            string     `json:"id"`
	Pos           [3]int     `json:"pos"`
	Area          [][3]int   `json:"area"`
	ItemCapacity  int        `json:"item_capacity"`
	FluidCapacity int        `json:"fluid_capacity"`
	Item          ResourceV1 `json:"item"`
	Fluid         ResourceV1 `json:"fluid"`
	NextStartTick uint64     `json:"next_start_tick,omitempty"`
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}

	if snap.Header.Version == 0 {
		snap.Header.Version = Version
	}
	snap.Header.Frames = len(snap.Frames)
	snap.Header.Drones = len(snap.Drones)

	bw := bufio.NewWriterSize(enc, 256*1024)
	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		_ = enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	br, closeFn, err := open(path)
	if err != nil {
		return snap, err
	}
	defer closeFn()

	hdr, err := readHeader(br)
	if err != nil {
		return snap, err
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header != hdr {
		return snap, fmt.Errorf("snapshot header mismatch: line=%+v body=%+v", hdr, snap.Header)
	}
	return snap, nil
}

// ReadHeader decodes only the JSON header line.
func ReadHeader(path string) (Header, error) {
	br, closeFn, err := open(path)
	if err != nil {
		return Header{}, err
	}
	defer closeFn()
	return readHeader(br)
}

func open(path string) (*bufio.Reader, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	closeFn := func() {
		dec.Close()
		_ = f.Close()
	}
	return bufio.NewReaderSize(dec, 256*1024), closeFn, nil
}

func readHeader(br *bufio.Reader) (Header, error) {
	var hdr Header
	line, err := br.ReadBytes('\n')
	if err != nil && err != io.EOF {
		return hdr, err
	}
	if err := json.Unmarshal(line, &hdr); err != nil {
		return hdr, fmt.Errorf("snapshot header: %w", err)
	}
	if hdr.Version != Version {
		return hdr, fmt.Errorf("snapshot version %d not supported", hdr.Version)
	}
	return hdr, nil
}
