package service

import (
	"context"
	"hash/maphash"
	"sync"

	"market-price-alerts/internal/storage"
)

const pairLockShards = 64

// pairLocks serialises reconciliation per (market, product) inside one process.
// Distinct pairs may share a shard; that only costs parallelism.
type pairLocks struct {
	seed   maphash.Seed
	shards [pairLockShards]sync.Mutex
}

func newPairLocks() *pairLocks {
	return &pairLocks{seed: maphash.MakeSeed()}
}

func (p *pairLocks) lock(pair storage.Pair) func() {
	var h maphash.Hash
	h.SetSeed(p.seed)
	var buf [16]byte
	putInt64(buf[:8], pair.MarketID)
	putInt64(buf[8:], pair.ProductID)
	h.Write(buf[:])

	m := &p.shards[h.Sum64()%pairLockShards]
	m.Lock()
	return m.Unlock
}

func putInt64(b []byte, v int64) {
	u := uint64(v)
	for i := 0; i < 8; i++ {
		b[i] = byte(u >> (8 * i))
	}
}

// lockPair takes the in-process lock and, when the store supports it, the
// cross-process pair lock. The returned func releases both.
// A held pair lock pins a pool connection, so remoteSlots bounds how many are held
// at once and leaves connections for the queries run under them.
func (s *Service) lockPair(ctx context.Context, pair storage.Pair) (func(), error) {
	unlockLocal := s.pairs.lock(pair)
	if s.pairLocker == nil {
		return unlockLocal, nil
	}

	select {
	case s.remoteSlots <- struct{}{}:
	case <-ctx.Done():
		unlockLocal()
		return nil, ctx.Err()
	}

	unlockRemote, err := s.pairLocker.LockPair(ctx, pair)
	if err != nil {
		<-s.remoteSlots
		unlockLocal()
		return nil, err
	}
	return func() {
		unlockRemote()
		<-s.remoteSlots
		unlockLocal()
	}, nil
}

// pgxpool defaults to at least four connections when unset.
func remoteLockSlots(maxConns int) int {
	if maxConns <= 0 {
		return 2
	}
	if maxConns <= 2 {
		return 1
	}
	return maxConns / 2
}
