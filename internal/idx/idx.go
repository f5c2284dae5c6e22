// Package idx implements the blists on-disk index format: a fixed
// 32-byte header, a messages-per-day slot array, and a packed array
// of message records, all multi-byte integers little-endian regardless
// of the host. It is the Go rendering
// of original_source/index.c and index.h, kept byte-exact to that
// on-disk layout.
package idx

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/openwall/blists/internal/filelock"
)

const (
	// MinYear and MaxYear bound the absolute-day numbering.
	MinYear = 1970
	MaxYear = 2038

	tag        = "blists"
	revision   = 2
	endianness = 0x1234

	headerSize = 32

	monthsPerYear = 12
	daysPerMonth  = 31

	// NADay is the number of absolute-day slots the header range spans.
	NADay = (MaxYear - MinYear + 1) * monthsPerYear * daysPerMonth

	// StringsSize is the packed From+Subject field width in a Record.
	StringsSize = 160

	// SubjectMinGuaranteed is the length the mailbox parser truncates
	// Subject to. Subject is packed first into the 160-byte strings
	// field, so From always keeps the bytes left after it and its NUL.
	SubjectMinGuaranteed = 120
)

// PackStrings packs a truncated subject and sender display string
// into a Record's fixed-width Strings field as "subject\0from",
// silently truncating from if subject alone left too little room.
func PackStrings(subject, from string) [StringsSize]byte {
	var out [StringsSize]byte
	n := copy(out[:], subject)
	if n < StringsSize {
		out[n] = 0
		n++
	}
	if n < StringsSize {
		copy(out[n:], from)
	}
	return out
}

// UnpackStrings splits a Record's Strings field back into subject and
// from, the inverse of PackStrings.
func UnpackStrings(s [StringsSize]byte) (subject, from string) {
	b := s[:]
	nul := bytes.IndexByte(b, 0)
	if nul < 0 {
		return string(b), ""
	}
	subject = string(b[:nul])
	rest := b[nul+1:]
	if nul2 := bytes.IndexByte(rest, 0); nul2 >= 0 {
		from = string(rest[:nul2])
	} else {
		from = string(rest)
	}
	return subject, from
}

// Flags bits for Record.Flags.
const (
	FlagHaveMsgID = 1 << iota
	FlagHaveIRT
	FlagFromTrunc
	FlagSubjectTrunc
)

// ErrNeedsRebuild is returned by Open when the index header's magic,
// revision, year range, or endianness sentinel doesn't match -- the
// "stale/corrupt index" case from the error taxonomy. The caller
// should treat it as "run the indexer".
var ErrNeedsRebuild = errors.New("idx: index needs rebuild")

// ADay computes the absolute day number for a date triple, using the
// original's deliberately naive 12*31 calendar (every month counts as
// 31 days, so invalid dates like April 31 map to unused slots rather
// than aliasing a real one).
func ADay(y, m, d int) int {
	return y*monthsPerYear*daysPerMonth + (m-1)*daysPerMonth + (d - 1)
}

// header is the on-disk 32-byte fixed header.
type header struct {
	Tag        [6]byte
	Revision   int16
	MinYear    int16
	MaxYear    int16
	Endianness int16
	_          int16 // pad to align NextOffset at offset 16
	NextOffset int64
	_          int64 // pad header to 32 bytes
}

// ThreadLinks is the packed thread-navigation substructure of a Record.
type ThreadLinks struct {
	PN, NN             int32
	PY, PM, PD         uint8
	NY, NM, ND         uint8
}

// Record is one packed message-record entry.
type Record struct {
	Offset    int64
	Size      int64
	MsgIDHash [16]byte
	IRTHash   [16]byte
	Thread    ThreadLinks
	Y, M, D   uint8
	Flags     uint8
	Strings   [StringsSize]byte
}

// recordOnDiskSize is the packed, padding-free size of Record as
// written to disk. encodeRecord/decodeRecord operate on exactly this shape.
const recordOnDiskSize = 8 + 8 + 16 + 16 + (4 + 4 + 1*6) + 1 + 1 + 1 + 1 + StringsSize

// Index is an open index file: a read-only, shared-locked handle
// returned by Open. Full rewrites go through Writer instead.
type Index struct {
	lock       *filelock.Lock
	NextOffset int64
}

// Open opens path, takes a shared lock, and validates the header.
// Returns ErrNeedsRebuild if the header doesn't match the expected
// tag/revision/year-range/endianness.
func Open(path string) (*Index, error) {
	l, err := filelock.Open(path, true)
	if err != nil {
		return nil, err
	}
	h, err := readHeader(l.File())
	if err != nil {
		l.Close()
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, ErrNeedsRebuild
	}
	if !validHeader(h) {
		l.Close()
		return nil, ErrNeedsRebuild
	}
	return &Index{lock: l, NextOffset: h.NextOffset}, nil
}

// Close releases the lock and closes the file.
func (ix *Index) Close() error {
	return ix.lock.Close()
}

func validHeader(h header) bool {
	return bytes.Equal(h.Tag[:], []byte(tag)) &&
		h.Revision == revision &&
		h.MinYear == MinYear &&
		h.MaxYear == MaxYear &&
		h.Endianness == endianness
}

func readHeader(f *os.File) (header, error) {
	var h header
	buf := make([]byte, headerSize)
	if _, err := f.ReadAt(buf, 0); err != nil {
		return h, err
	}
	copy(h.Tag[:], buf[0:6])
	h.Revision = int16(binary.LittleEndian.Uint16(buf[6:8]))
	h.MinYear = int16(binary.LittleEndian.Uint16(buf[8:10]))
	h.MaxYear = int16(binary.LittleEndian.Uint16(buf[10:12]))
	h.Endianness = int16(binary.LittleEndian.Uint16(buf[12:14]))
	h.NextOffset = int64(binary.LittleEndian.Uint64(buf[16:24]))
	return h, nil
}

// WriteHeader rewrites the fixed 32-byte header at offset 0 with the
// given next-mbox-offset resume point.
func WriteHeader(f *os.File, nextOffset int64) error {
	buf := make([]byte, headerSize)
	copy(buf[0:6], []byte(tag))
	binary.LittleEndian.PutUint16(buf[6:8], uint16(revision))
	binary.LittleEndian.PutUint16(buf[8:10], uint16(MinYear))
	binary.LittleEndian.PutUint16(buf[10:12], uint16(MaxYear))
	binary.LittleEndian.PutUint16(buf[12:14], uint16(endianness))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(nextOffset))
	_, err := f.WriteAt(buf, 0)
	return err
}

// slotOffset and recordOffset compute on-disk byte positions relative
// to the end of the fixed header, matching idx_read_aday_ok/
// idx_read_msg_ok's IDX2MSG-style arithmetic.
func slotOffset(aday int) int64 {
	return headerSize + int64(aday)*4
}

func recordOffset(ord int) int64 {
	return headerSize + int64(NADay+1)*4 + int64(ord)*int64(recordOnDiskSize)
}

// ReadSlot reads one signed 32-bit per-day slot counter.
func (ix *Index) ReadSlot(aday int) (int32, error) {
	var buf [4]byte
	if _, err := ix.lock.File().ReadAt(buf[:], slotOffset(aday)); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(buf[:])), nil
}

// ReadRecord reads the ord'th (0-based) packed message record.
func (ix *Index) ReadRecord(ord int) (Record, error) {
	buf := make([]byte, recordOnDiskSize)
	if _, err := ix.lock.File().ReadAt(buf, recordOffset(ord)); err != nil {
		return Record{}, err
	}
	return decodeRecord(buf), nil
}

func decodeRecord(buf []byte) Record {
	var r Record
	le := binary.LittleEndian
	r.Offset = int64(le.Uint64(buf[0:8]))
	r.Size = int64(le.Uint64(buf[8:16]))
	copy(r.MsgIDHash[:], buf[16:32])
	copy(r.IRTHash[:], buf[32:48])
	r.Thread.PN = int32(le.Uint32(buf[48:52]))
	r.Thread.NN = int32(le.Uint32(buf[52:56]))
	r.Thread.PY = buf[56]
	r.Thread.PM = buf[57]
	r.Thread.PD = buf[58]
	r.Thread.NY = buf[59]
	r.Thread.NM = buf[60]
	r.Thread.ND = buf[61]
	r.Y = buf[62]
	r.M = buf[63]
	r.D = buf[64]
	r.Flags = buf[65]
	copy(r.Strings[:], buf[66:66+StringsSize])
	return r
}

func encodeRecord(r Record) []byte {
	buf := make([]byte, recordOnDiskSize)
	le := binary.LittleEndian
	le.PutUint64(buf[0:8], uint64(r.Offset))
	le.PutUint64(buf[8:16], uint64(r.Size))
	copy(buf[16:32], r.MsgIDHash[:])
	copy(buf[32:48], r.IRTHash[:])
	le.PutUint32(buf[48:52], uint32(r.Thread.PN))
	le.PutUint32(buf[52:56], uint32(r.Thread.NN))
	buf[56] = r.Thread.PY
	buf[57] = r.Thread.PM
	buf[58] = r.Thread.PD
	buf[59] = r.Thread.NY
	buf[60] = r.Thread.NM
	buf[61] = r.Thread.ND
	buf[62] = r.Y
	buf[63] = r.M
	buf[64] = r.D
	buf[65] = r.Flags
	copy(buf[66:66+StringsSize], r.Strings[:])
	return buf
}

// Writer builds a full index file from scratch: header, slot array,
// and record array, written in that order and flushed in one rewrite
// pass, matching the "header and slot array rewritten in full on
// every run, full record table re-flushed at the end" lifecycle.
type Writer struct {
	f    *os.File
	lock *filelock.Lock
}

// CreateWriter opens (creating if needed) path for a full index
// rewrite under an exclusive lock.
func CreateWriter(path string) (*Writer, error) {
	l, err := filelock.Create(path)
	if err != nil {
		return nil, err
	}
	return &Writer{f: l.File(), lock: l}, nil
}

// Close releases the lock and closes the file.
func (w *Writer) Close() error {
	return w.lock.Close()
}

// WriteAll writes the header, the full slot array (length NADay+1),
// and the full record array, in that order, truncating any previous
// contents first.
func (w *Writer) WriteAll(nextOffset int64, slots []int32, records []Record) error {
	if len(slots) != NADay+1 {
		return fmt.Errorf("idx: slot array has %d entries, want %d", len(slots), NADay+1)
	}
	if err := w.f.Truncate(0); err != nil {
		return err
	}
	if err := WriteHeader(w.f, nextOffset); err != nil {
		return err
	}
	slotBuf := make([]byte, len(slots)*4)
	for i, s := range slots {
		binary.LittleEndian.PutUint32(slotBuf[i*4:], uint32(s))
	}
	if _, err := w.f.WriteAt(slotBuf, headerSize); err != nil {
		return err
	}
	recOff := recordOffset(0)
	for i, r := range records {
		buf := encodeRecord(r)
		if _, err := w.f.WriteAt(buf, recOff+int64(i)*int64(recordOnDiskSize)); err != nil {
			return err
		}
	}
	return nil
}
