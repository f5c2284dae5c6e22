// Package charset implements the whitelist-driven charset conversion
// blists uses when decoding message text: a label is checked against
// a small set of historically-seen mailing-list charsets, and only
// whitelisted, non-UTF-8 labels get run through a real decoder. This
// mirrors original_source/encoding.c's enc_allowed_charset/enc_to_utf8,
// with golang.org/x/text/encoding standing in for iconv.
package charset

import (
	"strings"

	"github.com/openwall/blists/internal/buffer"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/transform"
)

const (
	maxCharsetLen  = 70
	unknownCharset = "latin1"
)

// whitelist entries: a trailing '$' requires an exact match; otherwise
// the label may carry up to 8 trailing digits after the prefix.
var whitelist = []string{
	"us-ascii$",
	"iso-8859-",
	"utf-7$",
	"koi8-r$",
	"koi8-u$",
	"windows-",
	"cp",
	"gb2312$",
	"gbk$",
	"gb18030$",
	"big5$",
	"iso-2022-jp$",
	"utf-8$",
}

func matchOne(label, mask string) bool {
	i := 0
	for ; i < len(mask); i++ {
		if mask[i] == '$' {
			return i == len(label)
		}
		if i >= len(label) || mask[i] != lower(label[i]) {
			return false
		}
	}
	rest := label[i:]
	if len(rest) > 8 {
		return false
	}
	for _, c := range []byte(rest) {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}

// Allowed reports whether label matches the charset whitelist.
func Allowed(label string) bool {
	for _, mask := range whitelist {
		if matchOne(label, mask) {
			return true
		}
	}
	return false
}

// sanitize reduces charset to [A-Za-z0-9-], up to maxCharsetLen-1
// bytes, matching enc_to_utf8's charset_buf scan. A '?' ends the label
// early (keeping what came before it); a label that runs past the
// length limit or contains any other character falls back to
// unknownCharset.
func sanitize(label string) string {
	n := 0
	for n < len(label) && n < maxCharsetLen-1 {
		c := label[n]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '-' {
			n++
			continue
		}
		break
	}
	if n == len(label) || (n < len(label) && label[n] == '?') {
		return label[:n]
	}
	return unknownCharset
}

// ToUTF8 converts the bytes in enc, labeled charset, into dst as
// UTF-8. If charset is empty, unknownCharset is assumed. If charset is
// UTF-8 or not whitelisted, the bytes are copied verbatim. Conversion
// errors are mapped to U+FFFD and the input advances by one byte, the
// same recovery original_source/encoding.c's enc_to_utf8 performs
// around iconv's E2BIG/otherwise distinction.
func ToUTF8(dst *buffer.Buffer, enc []byte, label string) {
	if label == "" {
		label = unknownCharset
	}
	label = sanitize(label)

	if strings.EqualFold(label, "utf-8") || !Allowed(label) {
		dst.Append(enc)
		return
	}

	dec := lookup(label)
	if dec == nil {
		dst.Append(enc)
		return
	}

	src := enc
	for len(src) > 0 {
		out, n, err := transform.Bytes(dec.NewDecoder(), src)
		dst.Append(out)
		if err == nil {
			return
		}
		// The decoder stopped at the first invalid byte, src[n].
		// Everything x/text already produced is good and has been
		// emitted; emit a replacement character for the offending
		// byte and resume one byte past it, mirroring encoding.c's
		// non-E2BIG recovery path around iconv().
		dst.AppendRune(0xFFFD)
		if n >= len(src) {
			return
		}
		src = src[n+1:]
	}
}

// lookup resolves a sanitized charset label to an x/text decoder, or
// nil if none of the mapped families recognize it. ianaindex covers
// the bulk of IANA-registered names; the CJK families are consulted
// directly because several historical mailing-list charsets
// (gb18030, big5, euc variants) are not always resolved identically
// by every IANA MIB alias.
func lookup(label string) encoding.Encoding {
	if enc, err := ianaindex.MIME.Encoding(label); err == nil && enc != nil {
		return enc
	}
	if enc, err := ianaindex.IANA.Encoding(label); err == nil && enc != nil {
		return enc
	}
	switch strings.ToLower(label) {
	case "gb2312", "gbk":
		return simplifiedchinese.GBK
	case "gb18030":
		return simplifiedchinese.GB18030
	case "big5":
		return traditionalchinese.Big5
	case "iso-2022-jp":
		return japanese.ISO2022JP
	case "koi8-r":
		return charmap.KOI8R
	case "koi8-u":
		return charmap.KOI8U
	}
	_ = korean.EUCKR // referenced to keep the korean family linked in for future aliases
	return nil
}

// RemovePartial shortens p so it ends on a complete UTF-8 sequence,
// returning the number of bytes removed. It mirrors
// encoding.c's enc_utf8_remove_partial: walk forward consuming whole
// lead-byte-determined sequences; whatever doesn't fit in the
// remaining length at the last step is the "partial" tail that gets
// dropped. Like the original, this is a length heuristic based only
// on lead bytes, not a full UTF-8 validator.
func RemovePartial(p []byte) (kept []byte, removed int) {
	pos := 0
	remaining := len(p)
	for remaining > 0 {
		size := 1
		ch := p[pos]
		switch {
		case ch >= 0xf3:
			// illegal lead byte; treat as a single byte, as the original does
		case ch >= 0xf0:
			size = 4
		case ch >= 0xe0:
			size = 3
		case ch >= 0xc0:
			size = 2
		}
		if remaining < size {
			break
		}
		remaining -= size
		pos += size
	}
	return p[:len(p)-remaining], remaining
}
