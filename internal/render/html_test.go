package render

import (
	"strings"
	"testing"

	"github.com/openwall/blists/internal/buffer"
	"github.com/openwall/blists/internal/config"
)

func TestAppendEscapedLinkifiesURLWithoutDuplicatingScheme(t *testing.T) {
	out := buffer.New(256)
	appendEscaped(out, config.Default(), []byte("see http://example.com/x for more."),
		htmlFlags{detectURLs: true})
	got := string(out.Bytes())
	want := `see <a href="http://example.com/x" rel="nofollow">http://example.com/x</a> for more.`
	if got != want {
		t.Fatalf("appendEscaped = %q, want %q", got, want)
	}
	if strings.Count(got, "http://example.com/x") != 1 {
		t.Fatalf("scheme/URL duplicated: %q", got)
	}
}
