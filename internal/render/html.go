package render

import (
	"strings"

	"github.com/openwall/blists/internal/buffer"
	"github.com/openwall/blists/internal/config"
)

// htmlFlags mirror html.c's BAH_* bits, parameter-passed per the
// design notes rather than carried in a global.
type htmlFlags struct {
	quote      bool // escape '"' to &quot;, for attribute contexts
	detectURLs bool
	obfuscate  bool
}

// AppendEscaped writes s to dst as HTML text: '<', '>', '&' are always
// escaped; '"' only when flags.quote; URLs are auto-linked when
// flags.detectURLs; '@' is obfuscated when flags.obfuscate. This is
// the Go rendering of html.c's buffer_append_html_generic, with the
// manual byte-switch escaping style also seen in
// html/htmlsafe/htmlsafe.go's escapeAttr.
func appendEscaped(dst *buffer.Buffer, cfg config.Config, s []byte, flags htmlFlags) {
	i := 0
	for i < len(s) {
		c := s[i]
		switch c {
		case '<':
			dst.AppendString("&lt;")
			i++
		case '>':
			dst.AppendString("&gt;")
			i++
		case '&':
			dst.AppendString("&amp;")
			i++
		case '"':
			if flags.quote {
				dst.AppendString("&quot;")
			} else {
				dst.AppendByte('"')
			}
			i++
		case ':':
			if flags.detectURLs {
				if url, safe, schemeLen, consumed, ok := detectURL(s, i, cfg); ok {
					// The scheme's bytes (e.g. "http") were already
					// appended literally by the default case on
					// earlier loop iterations, before this ':' gave
					// away that they were the start of a URL. Rewind
					// the write pointer to the scheme start so
					// emitLink doesn't duplicate them.
					dst.Truncate(dst.Len() - schemeLen)
					emitLink(dst, url, safe)
					i += consumed
					continue
				}
			}
			dst.AppendByte(':')
			i++
		case '@':
			if flags.obfuscate && detectEmail(s, i) {
				dst.AppendString("&#64;")
				i++
				// drop up to three more source bytes, matching
				// html.c's detect_email obfuscation.
				for k := 0; k < 3 && i < len(s); k++ {
					i++
				}
				continue
			}
			dst.AppendString("&#64;")
			i++
			continue
		default:
			if c < 0x20 && c != '\t' && c != '\n' {
				if c != '\r' {
					dst.AppendByte('.')
				}
			} else {
				dst.AppendByte(c)
			}
			i++
		}
	}
}

// AppendHeaderLine HTML-escapes one already-decoded header display
// line and appends a trailing newline (buffer_append_header).
func AppendHeaderLine(dst *buffer.Buffer, cfg config.Config, s []byte) {
	appendEscaped(dst, cfg, s, htmlFlags{})
	dst.AppendByte('\n')
}

func emitLink(dst *buffer.Buffer, url string, safe bool) {
	dst.AppendString(`<a href="`)
	dst.AppendString(url)
	dst.AppendString(`"`)
	if !safe {
		dst.AppendString(` rel="nofollow"`)
	}
	dst.AppendString(`>`)
	appendEscaped(dst, config.Config{}, []byte(url), htmlFlags{})
	dst.AppendString(`</a>`)
}

var schemes = []string{"https", "http", "ftp"}

// detectURL looks for a URL scheme ending right at s[pos] == ':' (so
// s[pos:pos+3] == "://" is expected next), matching html.c's
// detect_url backward-scan-from-"://" technique. On success it
// returns the full URL text, whether its host is in a configured safe
// domain, the scheme's length (the number of bytes the caller already
// wrote literally before recognizing the URL, and must rewind past),
// and how many source bytes (from pos, the ':' itself) the match
// consumed.
func detectURL(s []byte, pos int, cfg config.Config) (url string, safe bool, schemeLen, consumed int, ok bool) {
	if pos+2 >= len(s) || s[pos+1] != '/' || s[pos+2] != '/' {
		return "", false, 0, 0, false
	}
	var scheme string
	for _, sc := range schemes {
		start := pos - len(sc)
		if start < 0 {
			continue
		}
		if strings.EqualFold(string(s[start:pos]), sc) {
			scheme = sc
			break
		}
	}
	if scheme == "" {
		return "", false, 0, 0, false
	}
	schemeStart := pos - len(scheme)

	i := pos + 3
	hostStart := i
	for i < len(s) && isHostChar(s[i]) {
		i++
	}
	host := string(s[hostStart:i])
	host = strings.TrimRight(host, ".")
	if host == "" {
		return "", false, 0, 0, false
	}
	if i < len(s) && (s[i] == '@' || s[i] == ':') {
		return "", false, 0, 0, false
	}
	for i < len(s) && isPathChar(s[i]) {
		i++
	}
	for i > hostStart+len(host) && isTrailingPunct(s[i-1]) {
		i--
	}
	full := string(s[schemeStart:i])
	if len(full) > cfg.MaxURLLength {
		return "", false, 0, 0, false
	}
	if strings.ContainsRune(full, '@') {
		return "", false, 0, 0, false
	}
	return full, cfg.IsSafeDomain(host), len(scheme), i - pos, true
}

func isHostChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '.' || c == '-'
}

func isPathChar(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '<', '>', '"':
		return false
	}
	return true
}

func isTrailingPunct(c byte) bool {
	switch c {
	case '.', '!', ')', ',', ';', ':', '?':
		return true
	}
	return false
}

// detectEmail reports whether the '@' at s[pos] looks like part of an
// email address: non-space bytes surrounding it on both sides,
// matching html.c's detect_email 4-byte lookahead/lookbehind check.
func detectEmail(s []byte, pos int) bool {
	if pos == 0 || pos+4 >= len(s) {
		return false
	}
	if s[pos-1] <= ' ' {
		return false
	}
	for k := 1; k <= 3; k++ {
		if s[pos+k] <= ' ' {
			return false
		}
	}
	return true
}
