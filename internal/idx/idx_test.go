package idx

import (
	"path/filepath"
	"testing"
)

func TestADay(t *testing.T) {
	if got, want := ADay(0, 1, 1), 0; got != want {
		t.Errorf("ADay(0,1,1) = %d, want %d", got, want)
	}
	if got, want := ADay(31, 1, 1), 31*372; got != want {
		t.Errorf("ADay(31,1,1) = %d, want %d", got, want)
	}
	if got, want := ADay(0, 2, 1), 31; got != want {
		t.Errorf("ADay(0,2,1) = %d, want %d", got, want)
	}
}

func TestWriteAndOpenRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.idx")

	w, err := CreateWriter(path)
	if err != nil {
		t.Fatalf("CreateWriter: %v", err)
	}
	slots := make([]int32, NADay+1)
	aday := ADay(31, 1, 1)
	slots[aday] = 1
	slots[aday+1] = -1

	rec := Record{Offset: 100, Size: 50, Y: 31, M: 1, D: 1, Flags: FlagHaveMsgID}
	rec.MsgIDHash[0] = 0xAB
	rec.Strings[0] = 0              // empty Subject
	copy(rec.Strings[1:], "hi\x00") // From "hi"

	if err := w.WriteAll(150, slots, []Record{rec}); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close writer: %v", err)
	}

	ix, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ix.Close()

	if ix.NextOffset != 150 {
		t.Errorf("NextOffset = %d, want 150", ix.NextOffset)
	}
	gotSlot, err := ix.ReadSlot(aday)
	if err != nil {
		t.Fatalf("ReadSlot: %v", err)
	}
	if gotSlot != 1 {
		t.Errorf("ReadSlot(aday) = %d, want 1", gotSlot)
	}
	gotRec, err := ix.ReadRecord(0)
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if gotRec.Offset != 100 || gotRec.Size != 50 || gotRec.Y != 31 {
		t.Errorf("ReadRecord(0) = %+v, want offset=100 size=50 y=31", gotRec)
	}
	if gotRec.Flags&FlagHaveMsgID == 0 {
		t.Errorf("Flags missing FlagHaveMsgID")
	}
	if gotRec.MsgIDHash[0] != 0xAB {
		t.Errorf("MsgIDHash[0] = %#x, want 0xAB", gotRec.MsgIDHash[0])
	}
}

func TestOpenRejectsBadHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.idx")
	w, err := CreateWriter(path)
	if err != nil {
		t.Fatalf("CreateWriter: %v", err)
	}
	// Write junk instead of a valid header.
	if _, err := w.f.WriteAt(make([]byte, headerSize), 0); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	w.Close()

	if _, err := Open(path); err != ErrNeedsRebuild {
		t.Errorf("Open() err = %v, want ErrNeedsRebuild", err)
	}
}
