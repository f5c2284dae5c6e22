package charset

import (
	"testing"

	"github.com/openwall/blists/internal/buffer"
)

func TestAllowed(t *testing.T) {
	cases := []struct {
		label string
		want  bool
	}{
		{"us-ascii", true},
		{"US-ASCII", true},
		{"us-ascii2", false},
		{"iso-8859-1", true},
		{"iso-8859-15", true},
		{"windows-1251", true},
		{"cp1252", true},
		{"gb18030", true},
		{"utf-8", true},
		{"shift_jis", false},
		{"utf-7123456789", false},
	}
	for _, c := range cases {
		if got := Allowed(c.label); got != c.want {
			t.Errorf("Allowed(%q) = %v, want %v", c.label, got, c.want)
		}
	}
}

func TestToUTF8PassesThroughUTF8(t *testing.T) {
	b := buffer.New(0)
	ToUTF8(b, []byte("hello"), "utf-8")
	if got := string(b.Bytes()); got != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}
}

func TestToUTF8PassesThroughUnknownCharset(t *testing.T) {
	b := buffer.New(0)
	ToUTF8(b, []byte("raw bytes"), "application/x-made-up")
	if got := string(b.Bytes()); got != "raw bytes" {
		t.Errorf("got %q, want %q", got, "raw bytes")
	}
}

func TestToUTF8ConvertsKOI8R(t *testing.T) {
	b := buffer.New(0)
	// 0xD4 0xC5 0xD3 0xD4 is KOI8-R for "тест".
	ToUTF8(b, []byte{0xD4, 0xC5, 0xD3, 0xD4}, "KOI8-R")
	if got, want := string(b.Bytes()), "тест"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRemovePartial(t *testing.T) {
	full := "тест" // 8 bytes in UTF-8, 4 two-byte runes
	cases := []struct {
		cut  int
		want int // expected kept length
	}{
		{8, 8},
		{7, 6},
		{6, 6},
		{5, 4},
	}
	for _, c := range cases {
		p := []byte(full)[:c.cut]
		kept, _ := RemovePartial(p)
		if len(kept) != c.want {
			t.Errorf("RemovePartial(%d bytes) kept %d, want %d", c.cut, len(kept), c.want)
		}
	}
}
