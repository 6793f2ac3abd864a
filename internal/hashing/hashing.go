// Package hashing derives the stable step identifiers used to correlate
// step state across invocations of a durable function. Step hashes must
// stay identical for the same logical call across every replay, and must
// diverge when the same logical id is reused within one run.
package hashing

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"sync"
)

// ID returns the hex-encoded SHA-1 digest of name. Logical ids are hashed
// as-is on their first occurrence; subsequent occurrences within a run are
// hashed with a ":N" suffix, see Indexer.
func ID(name string) string {
	sum := sha1.Sum([]byte(name))
	return hex.EncodeToString(sum[:])
}

// Indexer assigns a hashed step id to each logical step id encountered
// during a single invocation's replay, automatically disambiguating
// repeated calls to the same logical id (e.g. a loop calling step.Run
// with a constant id every iteration).
//
// The first occurrence of a logical id hashes the id verbatim. Every
// later occurrence n (n >= 2) hashes "<id>:<n-1>" instead, matching the
// convention the platform uses to keep loop-generated steps addressable.
type Indexer struct {
	mu        sync.Mutex
	counts    map[string]int
	lastBatch map[string]int
}

// NewIndexer returns an empty Indexer, one per invocation.
func NewIndexer() *Indexer {
	return &Indexer{
		counts:    make(map[string]int),
		lastBatch: make(map[string]int),
	}
}

// Occurrence is the result of resolving one logical step id.
type Occurrence struct {
	HashedID string
	// Index is the 1-based occurrence count of this logical id so far.
	Index int
	// ParallelIndexing is true when this logical id was last seen in a
	// different discovery batch, meaning its index depends on execution
	// order across batches rather than within a single synchronous burst.
	// Callers should surface this as a warning: such ids are not safe to
	// reorder across deploys.
	ParallelIndexing bool
}

// Next resolves the hashed id for logical id name within discovery batch
// batch (the engine's notion of one synchronous step-discovery tick).
func (ix *Indexer) Next(name string, batch int) Occurrence {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.counts[name]++
	n := ix.counts[name]

	id := name
	if n > 1 {
		id = name + ":" + strconv.Itoa(n-1)
	}

	occ := Occurrence{HashedID: ID(id), Index: n}
	if prev, ok := ix.lastBatch[name]; ok && prev != batch && n > 1 {
		occ.ParallelIndexing = true
	}
	ix.lastBatch[name] = batch
	return occ
}
