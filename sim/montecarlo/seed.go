package montecarlo

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/stochastix-twin/twin-sim/sim"
)

// BaseSeed returns the seed of replication 0: the configured seed, or a fresh
// one from the operating system's entropy source when none is set.
func BaseSeed(cfg sim.SimulationConfig) int64 {
	if cfg.Seed != nil {
		return *cfg.Seed
	}
	return int64(sim.RandomSimulationKey())
}

// ReplicationSeed derives the seed of replication index from base.
// Replication 0 uses base unchanged so a one-replication job reproduces a
// plain single run. Other indices hash (base, index) with FNV-1a and mix the
// result with the splitmix64 finaliser, so neighbouring indices land far apart.
func ReplicationSeed(base int64, index int) int64 {
	if index == 0 {
		return base
	}
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], uint64(base))
	binary.LittleEndian.PutUint64(buf[8:], uint64(index))
	h := fnv.New64a()
	h.Write(buf[:])
	return int64(splitmix64(h.Sum64()))
}

func splitmix64(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
