package render

import (
	"bytes"
	"testing"
)

func TestHTMLToTextInsertsBreaksAndKeepsText(t *testing.T) {
	src := []byte("<p>Hello</p><div>World</div>")
	got := htmlToText(src)
	if !bytes.Contains(got, []byte("Hello")) || !bytes.Contains(got, []byte("World")) {
		t.Fatalf("missing text: %q", got)
	}
	if !bytes.Contains(got, []byte("\r\n")) {
		t.Fatalf("expected a line break between block elements: %q", got)
	}
}
