package crawl

import (
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/fwojciec/partcrawl"
	"github.com/fwojciec/partcrawl/bloom"
)

const dedupShards = 16

// KeyKind distinguishes the identity namespaces.
type KeyKind byte

const (
	ModelKeyKind KeyKind = 'm'
	PartKeyKind  KeyKind = 'p'
	LinkKeyKind  KeyKind = 'l'
)

// Key is a canonical natural key.
type Key struct {
	Kind  KeyKind
	Value string
}

func (k Key) String() string {
	return string(k.Kind) + ":" + k.Value
}

// ModelKey returns the identity of a model.
func ModelKey(number string) Key {
	return Key{Kind: ModelKeyKind, Value: partcrawl.CanonicalModelNumber(number)}
}

// PartKey returns the identity of a part.
func PartKey(number string) Key {
	return Key{Kind: PartKeyKind, Value: partcrawl.CanonicalPartNumber(number)}
}

// LinkKey returns the identity of a model-part link.
func LinkKey(model, part string) Key {
	return Key{Kind: LinkKeyKind, Value: partcrawl.CanonicalModelNumber(model) + "|" + partcrawl.CanonicalPartNumber(part)}
}

// Deduplicator records which natural keys have been claimed during a run.
// It is safe for concurrent use.
type Deduplicator struct {
	shards [dedupShards]dedupShard
}

type dedupShard struct {
	mu      sync.Mutex
	maybe   *bloom.Filter
	claimed map[string]struct{}
}

// NewDeduplicator creates a Deduplicator sized for n expected keys.
func NewDeduplicator(n uint) *Deduplicator {
	per := n/dedupShards + 1
	d := &Deduplicator{}
	for i := range d.shards {
		d.shards[i].maybe = bloom.NewFilter(per, 0.01)
		d.shards[i].claimed = make(map[string]struct{})
	}
	return d
}

// Claim atomically marks key as seen. It returns true for exactly one
// caller per key; every later claim returns false.
func (d *Deduplicator) Claim(key Key) bool {
	if key.Value == "" {
		return false
	}
	s := key.String()
	shard := &d.shards[xxhash.Sum64String(s)%dedupShards]

	shard.mu.Lock()
	defer shard.mu.Unlock()

	if shard.maybe.TestAndAdd(s) {
		if _, ok := shard.claimed[s]; ok {
			return false
		}
	}
	shard.claimed[s] = struct{}{}
	return true
}

// Claimed reports whether key has already been claimed.
func (d *Deduplicator) Claimed(key Key) bool {
	s := key.String()
	shard := &d.shards[xxhash.Sum64String(s)%dedupShards]

	shard.mu.Lock()
	defer shard.mu.Unlock()

	if !shard.maybe.Test(s) {
		return false
	}
	_, ok := shard.claimed[s]
	return ok
}
