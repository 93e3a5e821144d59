package sync

import (
	"hash/fnv"
	"sync"
)

// keyedMutex serializes sync-metadata read-modify-write per tool using a
// fixed set of striped locks. Two tools may share a stripe; that only costs
// contention, never correctness.
type keyedMutex struct {
	stripes [64]sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	m := &k.stripes[h.Sum32()%uint32(len(k.stripes))]
	m.Lock()
	return m.Unlock
}
