package mime

import "testing"

func TestDecodeQuotedPrintable(t *testing.T) {
	cases := []struct {
		in, want string
		header   bool
	}{
		{"hello=20world", "hello world", false},
		{"soft=\nbreak", "softbreak", false},
		{"a=XYb", "a=XYb", false},
		{"under_score", "under score", true},
		{"under_score", "under_score", false},
	}
	for _, c := range cases {
		got := string(DecodeQuotedPrintable([]byte(c.in), c.header))
		if got != c.want {
			t.Errorf("DecodeQuotedPrintable(%q, %v) = %q, want %q", c.in, c.header, got, c.want)
		}
	}
}

func TestDecodeBase64(t *testing.T) {
	cases := []struct{ in, want string }{
		{"aGVsbG8=", "hello"},
		{"aGVsbG8", "hello"},
		{"aGk=", "hi"},
	}
	for _, c := range cases {
		got := string(DecodeBase64([]byte(c.in)))
		if got != c.want {
			t.Errorf("DecodeBase64(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestDecodeHeaderValueEncodedWord(t *testing.T) {
	// =?KOI8-R?Q?=D4=C5=D3=D4?= -> "тест"
	got := string(DecodeHeaderValue([]byte("=?KOI8-R?Q?=D4=C5=D3=D4?=")))
	if want := "тест"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDecodeHeaderValueConcatenatesAdjacentWords(t *testing.T) {
	got := string(DecodeHeaderValue([]byte("=?utf-8?q?Hello=2C?= =?utf-8?q?_World?=")))
	if want := "Hello, World"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDecodeHeaderValuePlainText(t *testing.T) {
	got := string(DecodeHeaderValue([]byte("plain subject")))
	if want := "plain subject"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestMultipartWalk(t *testing.T) {
	msg := "Content-Type: multipart/mixed; boundary=AAA\r\n\r\n" +
		"--AAA\r\n" +
		"Content-Type: text/plain\r\n\r\n" +
		"hello\r\n" +
		"--AAA\r\n" +
		"Content-Type: application/octet-stream\r\n" +
		"Content-Disposition: attachment; filename=\"x.bin\"\r\n\r\n" +
		"binarydata\r\n" +
		"--AAA--\r\n"
	d := New([]byte(msg))
	top := d.ReadHeaders()
	if !top.IsMultipart {
		t.Fatalf("top part not detected as multipart")
	}
	ok, _, err := d.NextBodyPart()
	if err != nil || !ok {
		t.Fatalf("NextBodyPart #1: ok=%v err=%v", ok, err)
	}
	p1 := d.NextBody()
	if p1.ContentType != "text/plain" {
		t.Errorf("part 1 content-type = %q", p1.ContentType)
	}

	ok, _, err = d.NextBodyPart()
	if err != nil || !ok {
		t.Fatalf("NextBodyPart #2: ok=%v err=%v", ok, err)
	}
	p2 := d.NextBody()
	if p2.Filename != "x.bin" {
		t.Errorf("part 2 filename = %q, want x.bin", p2.Filename)
	}
	if p2.Disposition != "attachment" {
		t.Errorf("part 2 disposition = %q, want attachment", p2.Disposition)
	}

	ok, _, err = d.NextBodyPart()
	if err != nil {
		t.Fatalf("NextBodyPart #3: err=%v", err)
	}
	if ok {
		t.Errorf("NextBodyPart #3: ok=true, want false (terminator)")
	}
}
