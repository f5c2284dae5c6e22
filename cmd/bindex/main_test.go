package main

import (
	"path/filepath"
	"testing"

	"github.com/openwall/blists/internal/idx"
	"github.com/openwall/blists/internal/mailbox"
)

func TestBuildSlotsAndRecordsSingleDay(t *testing.T) {
	all := []mailbox.Record{
		{Y: 31, M: 1, D: 1, Subject: "a"},
		{Y: 31, M: 1, D: 1, Subject: "b"},
		{Y: 31, M: 1, D: 1, Subject: "c"},
	}
	slots, records, ords := buildSlotsAndRecords(all)
	aday := idx.ADay(31, 1, 1)
	if slots[aday] != 1 {
		t.Fatalf("slots[aday] = %d, want 1", slots[aday])
	}
	if slots[idx.NADay] != -3 {
		t.Fatalf("sentinel slot = %d, want -3", slots[idx.NADay])
	}
	if len(records) != 3 {
		t.Fatalf("len(records) = %d, want 3", len(records))
	}
	for i, want := range []int32{1, 2, 3} {
		if ords[i] != want {
			t.Errorf("ords[%d] = %d, want %d", i, ords[i], want)
		}
	}
}

func TestBuildSlotsAndRecordsTwoDays(t *testing.T) {
	all := []mailbox.Record{
		{Y: 31, M: 1, D: 1},
		{Y: 31, M: 1, D: 1},
		{Y: 31, M: 1, D: 2},
		{Y: 31, M: 1, D: 2},
		{Y: 31, M: 1, D: 2},
	}
	slots, _, ords := buildSlotsAndRecords(all)
	day1 := idx.ADay(31, 1, 1)
	day2 := idx.ADay(31, 1, 2)
	if slots[day1] != 1 {
		t.Errorf("slots[day1] = %d, want 1", slots[day1])
	}
	if slots[day2] != 3 {
		t.Errorf("slots[day2] = %d, want 3", slots[day2])
	}
	if ords[2] != 1 || ords[4] != 3 {
		t.Errorf("ords = %v, want day2 ordinals 1..3 starting at index 2", ords)
	}
}

func TestDayCountAcrossSentinel(t *testing.T) {
	all := []mailbox.Record{
		{Y: 31, M: 1, D: 1},
		{Y: 31, M: 1, D: 1},
		{Y: 31, M: 1, D: 2},
		{Y: 31, M: 1, D: 2},
		{Y: 31, M: 1, D: 2},
	}
	slots, records, _ := buildSlotsAndRecords(all)
	day1 := idx.ADay(31, 1, 1)
	day2 := idx.ADay(31, 1, 2)

	path := filepath.Join(t.TempDir(), "test.idx")
	w, err := idx.CreateWriter(path)
	if err != nil {
		t.Fatalf("CreateWriter: %v", err)
	}
	if err := w.WriteAll(0, slots, records); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	ix, err := idx.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ix.Close()

	c1, err := dayCount(ix, day1, slots[day1])
	if err != nil || c1 != 2 {
		t.Errorf("dayCount(day1) = %d, err=%v, want 2", c1, err)
	}
	c2, err := dayCount(ix, day2, slots[day2])
	if err != nil || c2 != 3 {
		t.Errorf("dayCount(day2) = %d, err=%v, want 3 (last day via sentinel)", c2, err)
	}
}
