// Package thread implements the reply-thread linker: given a
// date-sorted array of message records, it reconstructs reply chains
// from Message-ID / In-Reply-To digests and threads each message onto
// the tail of its parent's chain, breaking cycles with a Brent-like
// doubling-stride "seen" pointer. original_source/mailbox.c predates
// this feature, so there is no C source to port directly; index.h's
// idx_message.t substructure (pn/nn + date quadruples) is the layout
// this package populates.
package thread

import "github.com/openwall/blists/internal/idx"

const numBuckets = 65536

type dayKey struct {
	y, m, d uint8
	ord     int32
}

// Link assigns thread.PN/NN and the neighbor date quadruples on every
// record in place. records must already be sorted by (y, m, d); ords
// gives each record's 1-based ordinal within its day (position minus
// the day's first ordinal plus one), which the caller derives from
// the per-day slot array while building the record table.
func Link(records []idx.Record, ords []int32) {
	if len(records) != len(ords) {
		panic("thread: records and ords length mismatch")
	}

	// 1. Clear stale links from any previous run.
	for i := range records {
		records[i].Thread = idx.ThreadLinks{}
	}

	// 2. Hash table keyed by the first two bytes of the Message-ID
	// digest, chaining every message that has one.
	buckets := make(map[uint16][]int)
	posOf := make(map[dayKey]int, len(records))
	for i, r := range records {
		if r.Flags&idx.FlagHaveMsgID != 0 {
			key := bucketKey(r.MsgIDHash)
			buckets[key] = append(buckets[key], i)
		}
		posOf[dayKey{r.Y, r.M, r.D, ords[i]}] = i
	}

	// 3. For each message with an In-Reply-To (or References fallback)
	// digest, find its parent and append to the parent thread's tail.
	for i, r := range records {
		if r.Flags&idx.FlagHaveIRT == 0 {
			continue
		}
		parent, ok := findParent(records, buckets, r.IRTHash, i)
		if !ok {
			continue
		}
		tail := walkToTail(records, posOf, parent)
		linkAppend(records, ords, tail, i)
	}
}

func bucketKey(hash [16]byte) uint16 {
	return uint16(hash[0])<<8 | uint16(hash[1])
}

func findParent(records []idx.Record, buckets map[uint16][]int, irtHash [16]byte, self int) (int, bool) {
	for _, j := range buckets[bucketKey(irtHash)] {
		if j == self {
			continue
		}
		if records[j].MsgIDHash == irtHash {
			return j, true
		}
	}
	return 0, false
}

// walkToTail follows thread.NN links from parent to the last message
// in its chain, using a doubling-stride "seen" pointer to terminate on
// a cycle instead of looping forever.
func walkToTail(records []idx.Record, posOf map[dayKey]int, parent int) int {
	cur := parent
	seen := parent
	steps := 0
	power := 1
	for {
		r := records[cur]
		if r.Thread.NN == 0 {
			return cur
		}
		next, ok := posOf[dayKey{r.Thread.NY, r.Thread.NM, r.Thread.ND, r.Thread.NN}]
		if !ok {
			return cur
		}
		cur = next
		steps++
		if cur == seen {
			// Cycle: stop walking, treat the current position as the
			// effective tail so the caller can still make progress.
			return cur
		}
		if steps == power {
			seen = cur
			power *= 2
		}
	}
}

func linkAppend(records []idx.Record, ords []int32, tail, m int) {
	records[m].Thread.PN = ords[tail]
	records[m].Thread.PY = records[tail].Y
	records[m].Thread.PM = records[tail].M
	records[m].Thread.PD = records[tail].D

	records[tail].Thread.NN = ords[m]
	records[tail].Thread.NY = records[m].Y
	records[tail].Thread.NM = records[m].M
	records[tail].Thread.ND = records[m].D
}
