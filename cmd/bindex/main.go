// Command bindex builds or incrementally updates the binary index for
// a single mailing list's mbox file. It is the Go rendering of
// original_source/bindex.c's driver loop: take a shared lock, read
// the previous run's resume offset, parse any new messages appended
// since, re-thread the whole table, then take an exclusive lock to
// rewrite the index in full.
package main

import (
	"flag"
	"log"
	"os"
	"sort"

	"github.com/openwall/blists/internal/idx"
	"github.com/openwall/blists/internal/mailbox"
	"github.com/openwall/blists/internal/thread"
)

func main() {
	log.SetFlags(0)
	flag.Parse()
	if flag.NArg() != 1 {
		log.Fatalf("usage: bindex <mailbox-path>")
	}
	mboxPath := flag.Arg(0)
	idxPath := mboxPath + ".idx"

	if err := run(mboxPath, idxPath); err != nil {
		log.Printf("bindex: %v", err)
		os.Exit(1)
	}
}

func run(mboxPath, idxPath string) error {
	resume, prior, err := readResumeState(idxPath)
	if err != nil {
		return err
	}

	mb, err := os.Open(mboxPath)
	if err != nil {
		return err
	}
	defer mb.Close()

	if fi, err := mb.Stat(); err == nil && fi.Size() > 0 {
		// Open Question 1: logged, not aborted, when the mailbox grows
		// past the soft size cap.
		const softCapBytes = 100 * 1024 * 1024 * 1024
		if fi.Size() > softCapBytes {
			log.Printf("bindex: %s is %d bytes, past the %d soft cap; continuing", mboxPath, fi.Size(), softCapBytes)
		}
	}

	if _, err := mb.Seek(resume, 0); err != nil {
		return err
	}

	var fresh []mailbox.Record
	endOffset, err := mailbox.Parse(mb, resume, func(r mailbox.Record) {
		fresh = append(fresh, r)
	})
	if err != nil {
		return err
	}

	all := append(prior, fresh...)
	sort.SliceStable(all, func(i, j int) bool {
		ai := all[i].Y*12*31 + (all[i].M-1)*31 + (all[i].D - 1)
		aj := all[j].Y*12*31 + (all[j].M-1)*31 + (all[j].D - 1)
		return ai < aj
	})

	slots, records, ords := buildSlotsAndRecords(all)
	thread.Link(records, ords)

	w, err := idx.CreateWriter(idxPath)
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.WriteAll(endOffset, slots, records); err != nil {
		return err
	}

	log.Printf("bindex: %s indexed, %d messages (%d new), resume offset %d", mboxPath, len(all), len(fresh), endOffset)
	return nil
}

// readResumeState opens an existing index under a shared lock (per
// the indexer's "shared, validate, read resume point, then drop to
// read the old record table, then release" protocol), returning the
// resume offset and every previously-indexed message re-expressed as
// mailbox.Record so the table can be rebuilt with the new messages
// merged in. A missing or stale index starts from scratch.
func readResumeState(idxPath string) (resume int64, prior []mailbox.Record, err error) {
	ix, err := idx.Open(idxPath)
	switch {
	case os.IsNotExist(err):
		return 0, nil, nil
	case err == idx.ErrNeedsRebuild:
		return 0, nil, nil
	case err != nil:
		return 0, nil, err
	}
	defer ix.Close()

	resume = ix.NextOffset
	for aday := 0; aday < idx.NADay+1; aday++ {
		s0, err := ix.ReadSlot(aday)
		if err != nil || s0 <= 0 {
			continue
		}
		count, err := dayCount(ix, aday, s0)
		if err != nil {
			continue
		}
		for n := int32(0); n < count; n++ {
			rec, err := ix.ReadRecord(int(s0) + int(n) - 1)
			if err != nil {
				break
			}
			prior = append(prior, recordToMailbox(rec))
		}
	}
	return resume, prior, nil
}

func dayCount(ix *idx.Index, aday int, s0 int32) (int32, error) {
	for a := aday + 1; a < idx.NADay+1; a++ {
		s1, err := ix.ReadSlot(a)
		if err != nil {
			return 0, err
		}
		if s1 == 0 {
			continue
		}
		if s1 < 0 {
			return -s1 - s0 + 1, nil
		}
		return s1 - s0, nil
	}
	return 0, nil
}

func recordToMailbox(rec idx.Record) mailbox.Record {
	subject, from := idx.UnpackStrings(rec.Strings)
	return mailbox.Record{
		Offset:    rec.Offset,
		Size:      rec.Size,
		Y:         int(rec.Y),
		M:         int(rec.M),
		D:         int(rec.D),
		HaveMsgID: rec.Flags&idx.FlagHaveMsgID != 0,
		HaveIRT:   rec.Flags&idx.FlagHaveIRT != 0,
		MsgIDHash: rec.MsgIDHash,
		IRTHash:   rec.IRTHash,
		From:      from,
		Subject:   subject,
	}
}

// buildSlotsAndRecords derives the per-day slot array and the packed
// record array from a date-sorted message list, matching index.c's
// two-pass slot-fill. Each populated day's slot holds the 1-based
// index of its first record; empty days stay zero. Slot index NADay
// (one past the last real day) is a sentinel holding -(total record
// count), so a reader scanning forward from any populated day's slot
// for the next non-zero entry always terminates, even for the most
// recent day.
func buildSlotsAndRecords(all []mailbox.Record) (slots []int32, records []idx.Record, ords []int32) {
	slots = make([]int32, idx.NADay+1)
	records = make([]idx.Record, len(all))
	ords = make([]int32, len(all))

	dayStart := 0
	for i := 0; i <= len(all); i++ {
		boundary := i == len(all) ||
			all[i].Y != all[dayStart].Y || all[i].M != all[dayStart].M || all[i].D != all[dayStart].D
		if !boundary {
			continue
		}
		if i > dayStart {
			aday := all[dayStart].Y*12*31 + (all[dayStart].M-1)*31 + (all[dayStart].D - 1)
			slots[aday] = int32(dayStart + 1)
			for j := dayStart; j < i; j++ {
				ords[j] = int32(j - dayStart + 1)
			}
		}
		dayStart = i
	}
	slots[idx.NADay] = -int32(len(all))

	for i, m := range all {
		var flags uint8
		if m.HaveMsgID {
			flags |= idx.FlagHaveMsgID
		}
		if m.HaveIRT {
			flags |= idx.FlagHaveIRT
		}
		if m.FromTrunc {
			flags |= idx.FlagFromTrunc
		}
		if m.SubjectTrunc {
			flags |= idx.FlagSubjectTrunc
		}
		records[i] = idx.Record{
			Offset:    m.Offset,
			Size:      m.Size,
			MsgIDHash: m.MsgIDHash,
			IRTHash:   m.IRTHash,
			Y:         uint8(m.Y),
			M:         uint8(m.M),
			D:         uint8(m.D),
			Flags:     flags,
			Strings:   idx.PackStrings(m.Subject, m.From),
		}
	}

	return slots, records, ords
}
