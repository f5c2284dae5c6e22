// Package mime implements the MIME-aware pieces of message decoding:
// RFC 2047 encoded words, quoted-printable and base64 transfer
// encodings, and a depth-bounded multipart entity walker. It is
// grounded on original_source/mime.c, generalized from its
// pointer-into-mutable-buffer style into slice-and-offset views, per
// the design notes' "never mutate the shared buffer" strategy, with
// the recursive descent shape kept close to
// email/msgcleaver/msgcleaver.go's walkMimeRec.
package mime

import (
	"bytes"

	"github.com/openwall/blists/internal/buffer"
	"github.com/openwall/blists/internal/charset"
)

// maxEncodedWordLen is the total length limit (excluding surrounding
// whitespace) beyond which an encoded word is emitted as literal text,
// matching mime.c's decode_header 75-byte check.
const maxEncodedWordLen = 75

// DecodeHeaderValue applies RFC 2047 encoded-word expansion to a raw
// header value and converts the result to UTF-8. Adjacent encoded
// words separated only by linear whitespace are concatenated without
// the intervening whitespace, per RFC 2047 section 2.
func DecodeHeaderValue(raw []byte) []byte {
	dst := buffer.New(len(raw))
	i := 0
	lastWasWord := false
	for i < len(raw) {
		start := i
		tok, end, ok := scanEncodedWord(raw, i)
		if ok {
			dst.Append(tok)
			i = end
			lastWasWord = true
			continue
		}
		// Not an encoded word at this position. If we're sitting on
		// linear whitespace right after an encoded word, check
		// whether an encoded word follows the whitespace; if so,
		// drop the whitespace (RFC 2047 concatenation). Otherwise
		// copy one byte literally and keep scanning.
		if lastWasWord && isLWS(raw[i]) {
			j := i
			for j < len(raw) && isLWS(raw[j]) {
				j++
			}
			if _, _, ok2 := scanEncodedWord(raw, j); ok2 {
				i = j
				continue
			}
		}
		dst.AppendByte(raw[i])
		i = start + 1
		lastWasWord = false
	}
	return dst.Bytes()
}

func isLWS(c byte) bool { return c == ' ' || c == '\t' }

// scanEncodedWord attempts to parse a "=?charset?enc?text?=" token
// starting at raw[i]. On success it returns the decoded, UTF-8
// converted bytes and the index just past the token. A well-formed
// token longer than maxEncodedWordLen decodes to its own literal
// source text (mime.c's fallback), still reported ok so the caller
// advances past it. A token with a malformed field is reported not
// ok, and the caller copies its bytes literally.
func scanEncodedWord(raw []byte, i int) (decoded []byte, end int, ok bool) {
	if i+1 >= len(raw) || raw[i] != '=' || raw[i+1] != '?' {
		return nil, 0, false
	}
	p := i + 2
	charsetEnd := bytes.IndexByte(raw[p:], '?')
	if charsetEnd < 0 {
		return nil, 0, false
	}
	charsetName := string(raw[p : p+charsetEnd])
	p += charsetEnd + 1
	if p >= len(raw) {
		return nil, 0, false
	}
	enc := raw[p]
	if enc != 'q' && enc != 'Q' && enc != 'b' && enc != 'B' {
		return nil, 0, false
	}
	p++
	if p >= len(raw) || raw[p] != '?' {
		return nil, 0, false
	}
	p++
	textEnd := bytes.Index(raw[p:], []byte("?="))
	if textEnd < 0 {
		return nil, 0, false
	}
	text := raw[p : p+textEnd]
	tokenEnd := p + textEnd + 2

	if tokenEnd-i > maxEncodedWordLen {
		return raw[i:tokenEnd], tokenEnd, true
	}

	var raw8 []byte
	if enc == 'q' || enc == 'Q' {
		raw8 = DecodeQuotedPrintable(text, true)
	} else {
		raw8 = DecodeBase64(text)
	}
	out := buffer.New(len(raw8) + 8)
	charset.ToUTF8(out, raw8, charsetName)
	return out.Bytes(), tokenEnd, true
}
