package mailbox

import (
	"strings"
	"testing"
)

func TestParseSimpleMessage(t *testing.T) {
	mbox := "From x@y Mon Jan 1 00:00:00 2001\n" +
		"Message-ID: <a@x>\n" +
		"Subject: hi\n" +
		"\n" +
		"hello\n"

	var got []Record
	end, err := Parse(strings.NewReader(mbox), 0, func(r Record) {
		got = append(got, r)
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d records, want 1", len(got))
	}
	r := got[0]
	if r.Y != 31 || r.M != 1 || r.D != 1 {
		t.Errorf("date = %d/%d/%d, want 31/1/1", r.Y, r.M, r.D)
	}
	if !r.HaveMsgID {
		t.Errorf("HaveMsgID = false, want true")
	}
	if r.Subject != "hi" {
		t.Errorf("Subject = %q, want %q", r.Subject, "hi")
	}
	if int64(len(mbox)) != end {
		t.Errorf("end = %d, want %d", end, len(mbox))
	}
}

func TestParseThreadHeaders(t *testing.T) {
	mbox := "From x@y Mon Jan 1 00:00:00 2001\n" +
		"Message-ID: <r>\n" +
		"\n" +
		"body1\n" +
		"\n" +
		"From x@y Tue Jan 2 00:00:00 2001\n" +
		"Message-ID: <s>\n" +
		"In-Reply-To: <r>\n" +
		"\n" +
		"body2\n"

	var got []Record
	_, err := Parse(strings.NewReader(mbox), 0, func(r Record) {
		got = append(got, r)
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if got[0].MsgIDHash != got[1].IRTHash {
		t.Errorf("second message's IRTHash doesn't match first's MsgIDHash")
	}
}

func TestParseSizeExcludesTrailingSeparatorBlankLine(t *testing.T) {
	mbox := "From x@y Mon Jan 1 00:00:00 2001\n" +
		"Message-ID: <r>\n" +
		"\n" +
		"body1\n" +
		"\n" +
		"From x@y Tue Jan 2 00:00:00 2001\n" +
		"Message-ID: <s>\n" +
		"\n" +
		"body2\n"

	var got []Record
	_, err := Parse(strings.NewReader(mbox), 0, func(r Record) {
		got = append(got, r)
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	first := got[0]
	wantSize := int64(len("Message-ID: <r>\n\nbody1\n"))
	if first.Size != wantSize {
		t.Errorf("first record Size = %d, want %d (trailing separator blank line must not be counted)", first.Size, wantSize)
	}
	data := mbox[first.Offset : first.Offset+first.Size]
	if strings.HasSuffix(data, "\n\n") {
		t.Errorf("first record data still includes the separator blank line: %q", data)
	}
}

func TestStripListPrefix(t *testing.T) {
	cases := []struct{ in, want string }{
		{"[list] hello", "hello"},
		{"[list]hello", "hello"},
		{"no prefix", "no prefix"},
		{"[a] [b] hello", "hello"},
	}
	for _, c := range cases {
		if got := stripListPrefix(c.in); got != c.want {
			t.Errorf("stripListPrefix(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
