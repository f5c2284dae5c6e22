package render

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openwall/blists/internal/config"
	"github.com/openwall/blists/internal/idx"
)

// buildTestList writes a one-message mbox and its matching index file
// for list "ml" under dir, returning a Renderer configured to read it.
func buildTestList(t *testing.T, dir string) Renderer {
	t.Helper()
	sep := "From test@example.com Mon Jan 2 15:04:05 2006\r\n"
	raw := sep +
		"Date: Mon, 2 Jan 2006 15:04:05 +0000\r\n" +
		"From: Jane Doe <jane@example.com>\r\n" +
		"Subject: Hello world\r\n" +
		"\r\n" +
		"This is the body, see http://example.com/x for more.\r\n"
	if err := os.WriteFile(filepath.Join(dir, "ml"), []byte(raw), 0644); err != nil {
		t.Fatalf("write mbox: %v", err)
	}

	slots := make([]int32, idx.NADay+1)
	aday := idx.ADay(36, 1, 2) // 2006 - 1970 = 36
	slots[aday] = 1
	slots[idx.NADay] = -1

	rec := idx.Record{
		Offset:  int64(len(sep)),
		Size:    int64(len(raw) - len(sep)),
		Y:       36,
		M:       1,
		D:       2,
		Strings: idx.PackStrings("Hello world", "Jane Doe <jane@example.com>"),
	}

	w, err := idx.CreateWriter(filepath.Join(dir, "ml.idx"))
	if err != nil {
		t.Fatalf("CreateWriter: %v", err)
	}
	if err := w.WriteAll(int64(len(raw)), slots, []idx.Record{rec}); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	cfg := config.Default()
	cfg.SpoolDir = dir
	return Renderer{Config: cfg}
}

func TestMessageRendersSubjectAndLinkifiesURL(t *testing.T) {
	dir := t.TempDir()
	rd := buildTestList(t, dir)

	var buf bytes.Buffer
	if err := rd.Message(&buf, "ml", 36, 1, 2, 1); err != nil {
		t.Fatalf("Message: %v", err)
	}
	out := buf.String()
	if !bytes.Contains(buf.Bytes(), []byte("Hello world")) {
		t.Errorf("output missing subject: %s", out)
	}
	const wantLink = `see <a href="http://example.com/x" rel="nofollow">http://example.com/x</a> for more.`
	if !strings.Contains(out, wantLink) {
		t.Errorf("output missing linkified URL with no duplicated scheme prefix: %s", out)
	}
}

func TestMessageRejectsInvalidDate(t *testing.T) {
	dir := t.TempDir()
	rd := buildTestList(t, dir)
	var buf bytes.Buffer
	if err := rd.Message(&buf, "ml", 36, 13, 2, 1); err == nil {
		t.Errorf("Message with month=13 should fail")
	}
}

func TestMessageRejectsUnknownOrdinal(t *testing.T) {
	dir := t.TempDir()
	rd := buildTestList(t, dir)
	var buf bytes.Buffer
	if err := rd.Message(&buf, "ml", 36, 1, 2, 2); err == nil {
		t.Errorf("Message with n=2 on a one-message day should fail")
	}
}

func TestDayIndexListsMessage(t *testing.T) {
	dir := t.TempDir()
	rd := buildTestList(t, dir)
	var buf bytes.Buffer
	if err := rd.DayIndex(&buf, "ml", 36, 1, 2); err != nil {
		t.Fatalf("DayIndex: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("Hello world")) {
		t.Errorf("day index missing subject: %s", buf.String())
	}
}

func TestMonthIndexShowsDayCount(t *testing.T) {
	dir := t.TempDir()
	rd := buildTestList(t, dir)
	var buf bytes.Buffer
	if err := rd.MonthIndex(&buf, "ml", 36, 1); err != nil {
		t.Fatalf("MonthIndex: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("(1)")) {
		t.Errorf("month index missing day count: %s", buf.String())
	}
}

func TestYearIndexShowsMonthTotal(t *testing.T) {
	dir := t.TempDir()
	rd := buildTestList(t, dir)
	var buf bytes.Buffer
	if err := rd.YearIndex(&buf, "ml", 36); err != nil {
		t.Fatalf("YearIndex: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("January")) {
		t.Errorf("year index missing January: %s", buf.String())
	}
}
