package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"

	"dronelogistics.ai/internal/sim/grid"
	"dronelogistics.ai/internal/sim/logistics"
)

// stateDigest hashes everything that influences future ticks, so two runs of
// the same scenario can be compared tick by tick.
func (w *World) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, nowTick)
	for _, f := range w.Frames() {
		h.Write([]byte(f.id))
		digestWritePos(h, &tmp, f.pos)
		for _, r := range f.Offers() {
			digestWriteResource(h, &tmp, r)
		}
		digestWriteResource(h, &tmp, f.incoming)
	}
	for _, id := range w.order {
		d := w.drones[id]
		h.Write([]byte(d.id))
		digestWritePos(h, &tmp, d.pos)
		digestWriteResource(h, &tmp, d.item)
		digestWriteResource(h, &tmp, d.fluid)
		h.Write([]byte{byte(d.machine.State()), byte(d.machine.Phase())})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func digestWriteU64(h hash.Hash, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWritePos(h hash.Hash, tmp *[8]byte, p grid.Vec3i) {
	digestWriteU64(h, tmp, uint64(int64(p.X)))
	digestWriteU64(h, tmp, uint64(int64(p.Y)))
	digestWriteU64(h, tmp, uint64(int64(p.Z)))
}

func digestWriteResource(h hash.Hash, tmp *[8]byte, r logistics.Resource) {
	h.Write([]byte{byte(r.Kind)})
	h.Write([]byte(r.ID))
	digestWriteU64(h, tmp, uint64(int64(r.Amount)))
}
