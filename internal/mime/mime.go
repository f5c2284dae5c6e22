package mime

import (
	"bytes"
	"errors"
	"strings"

	"github.com/openwall/blists/internal/buffer"
	"github.com/openwall/blists/internal/charset"
)

// MaxDepth bounds multipart nesting, matching mime.c's MIME_DEPTH_MAX.
const MaxDepth = 10

// ErrDepthExceeded is returned when a multipart tree nests deeper
// than MaxDepth; the caller should fall back to showing the remaining
// body as one opaque unit (the "malformed boundaries fall back to
// literal body" rule).
var ErrDepthExceeded = errors.New("mime: multipart nesting exceeds depth limit")

// Entity is one level of the enclosing multipart stack: its content
// type, boundary, and any header-derived metadata that governs how
// its children are decoded.
type Entity struct {
	Type     string
	Boundary string
}

// Part describes one leaf or container part discovered while walking
// a message body, with enough header-derived metadata for the
// renderer to decide attachment vs. inline handling.
type Part struct {
	ContentType             string
	Charset                 string
	Boundary                string
	Name                    string
	Filename                string
	Disposition             string // "inline", "attachment", or ""
	TransferEncoding        string
	IsMultipart             bool
	HeaderStart, HeaderEnd  int
	BodyStart, BodyEnd      int // byte range in the original source, body only
}

// Decoder walks a message's MIME structure over an in-memory byte
// slice. It never mutates src; every field it returns is either a
// slice into src or an owned copy made during header decoding.
type Decoder struct {
	src      []byte
	pos      int
	entities []Entity
}

// New creates a Decoder over a full message's raw bytes (headers and
// body together).
func New(src []byte) *Decoder {
	return &Decoder{src: src}
}

// Pos returns the current read position.
func (d *Decoder) Pos() int { return d.pos }

// SeekBody moves the decoder's read position to offset.
func (d *Decoder) SeekBody(offset int) { d.pos = offset }

// ReadHeaders scans header lines (handling folded continuations)
// until a blank line, returning the parsed top-level Part metadata.
// It leaves the decoder positioned just after the blank line, at the
// start of the body.
func (d *Decoder) ReadHeaders() Part {
	var part Part
	part.HeaderStart = d.pos
	for {
		line, end, isBlank := d.nextHeaderLine()
		if isBlank {
			d.pos = end
			break
		}
		d.pos = end
		applyHeaderLine(&part, line)
	}
	part.HeaderEnd = d.pos
	part.BodyStart = d.pos
	if part.IsMultipart {
		d.entities = append(d.entities, Entity{Type: part.ContentType, Boundary: part.Boundary})
	}
	return part
}

// nextHeaderLine returns one logical header line (folded continuations
// joined with a single space, matching imf's readContinuedLineSlice),
// the offset just past it, and whether it was the blank
// end-of-headers line.
func (d *Decoder) nextHeaderLine() (line []byte, end int, blank bool) {
	start := d.pos
	nl := bytes.IndexByte(d.src[start:], '\n')
	var firstLineEnd int
	if nl < 0 {
		firstLineEnd = len(d.src)
	} else {
		firstLineEnd = start + nl + 1
	}
	raw := trimCRLF(d.src[start:firstLineEnd])
	if len(raw) == 0 {
		return nil, firstLineEnd, true
	}
	buf := append([]byte(nil), raw...)
	pos := firstLineEnd
	for pos < len(d.src) && (d.src[pos] == ' ' || d.src[pos] == '\t') {
		cnl := bytes.IndexByte(d.src[pos:], '\n')
		var contEnd int
		if cnl < 0 {
			contEnd = len(d.src)
		} else {
			contEnd = pos + cnl + 1
		}
		cont := trimCRLF(d.src[pos:contEnd])
		buf = append(buf, ' ')
		buf = append(buf, bytes.TrimLeft(cont, " \t")...)
		pos = contEnd
	}
	return buf, pos, false
}

func trimCRLF(b []byte) []byte {
	b = bytes.TrimSuffix(b, []byte("\n"))
	b = bytes.TrimSuffix(b, []byte("\r"))
	return b
}

func applyHeaderLine(part *Part, line []byte) {
	colon := bytes.IndexByte(line, ':')
	if colon < 0 {
		return
	}
	key := strings.ToLower(strings.TrimSpace(string(line[:colon])))
	val := bytes.TrimSpace(line[colon+1:])
	switch key {
	case "content-type":
		typ, params := parseHeaderParams(val)
		part.ContentType = strings.ToLower(typ)
		if cs, ok := params["charset"]; ok {
			part.Charset = cs
		}
		if n, ok := params["name"]; ok {
			part.Name = n
		}
		if b, ok := params["boundary"]; ok {
			part.Boundary = b
		}
		part.IsMultipart = strings.HasPrefix(part.ContentType, "multipart/")
	case "content-transfer-encoding":
		part.TransferEncoding = strings.ToLower(strings.TrimSpace(string(val)))
	case "content-disposition":
		disp, params := parseHeaderParams(val)
		part.Disposition = strings.ToLower(disp)
		if fn, ok := params["filename"]; ok {
			part.Filename = fn
		}
	}
}

// parseHeaderParams splits "type; attr=value; attr2=\"value2\"" into
// the leading token and a lowercase-keyed parameter map, the minimal
// subset of RFC 2045 parameter syntax this decoder needs (boundary=,
// charset=, name=, filename=).
func parseHeaderParams(v []byte) (string, map[string]string) {
	parts := strings.Split(string(v), ";")
	head := strings.TrimSpace(parts[0])
	params := map[string]string{}
	for _, p := range parts[1:] {
		eq := strings.IndexByte(p, '=')
		if eq < 0 {
			continue
		}
		k := strings.ToLower(strings.TrimSpace(p[:eq]))
		val := strings.TrimSpace(p[eq+1:])
		val = strings.Trim(val, `"`)
		params[k] = val
	}
	return head, params
}

// NextBodyPart searches for the next boundary line belonging to any
// open multipart entity, checking the innermost first, and handles
// terminators ("--BOUNDARY--") by popping the stack down past that
// entity and scanning on, matching mime.c's find_next_boundary. It
// returns false once the outermost entity's terminator has been seen
// or no further boundary exists. bodyEnd is the offset where the
// matched boundary line begins, i.e. the exclusive end of whatever
// part body preceded it; callers reading a part's body slice it as
// src[part.BodyStart:bodyEnd].
func (d *Decoder) NextBodyPart() (ok bool, bodyEnd int, err error) {
	if len(d.entities) == 0 {
		return false, d.pos, nil
	}
	if len(d.entities) > MaxDepth {
		return false, d.pos, ErrDepthExceeded
	}
	for {
		lineStart := d.pos
		line := bytes.IndexByte(d.src[d.pos:], '\n')
		var lineEnd int
		if line < 0 {
			return false, lineStart, nil
		}
		lineEnd = d.pos + line + 1
		text := trimCRLF(d.src[d.pos:lineEnd])
		matched := false
		for i := len(d.entities) - 1; i >= 0; i-- {
			b := d.entities[i].Boundary
			if b == "" {
				continue
			}
			marker := "--" + b
			if bytes.HasPrefix(text, []byte(marker)) {
				rest := text[len(marker):]
				if bytes.HasPrefix(rest, []byte("--")) {
					// terminator: pop this and everything above it
					d.entities = d.entities[:i]
					d.pos = lineEnd
					matched = true
					if i == 0 {
						return false, lineStart, nil
					}
					break
				}
				d.entities = d.entities[:i+1]
				d.pos = lineEnd
				return true, lineStart, nil
			}
		}
		if matched {
			continue
		}
		d.pos = lineEnd
	}
}

// Len returns the length of the decoder's source, so a caller can
// bound a non-multipart top-level body that simply runs to the end
// of the message.
func (d *Decoder) Len() int { return len(d.src) }

// Bytes returns the raw source slice [start:end), bounds-clamped.
func (d *Decoder) Bytes(start, end int) []byte {
	if start < 0 {
		start = 0
	}
	if end > len(d.src) {
		end = len(d.src)
	}
	if end < start {
		end = start
	}
	return d.src[start:end]
}

// NextBody parses the headers of the sub-part found by a preceding
// NextBodyPart call and returns its Part metadata, with the decoder
// left at the sub-part's body start.
func (d *Decoder) NextBody() Part {
	return d.ReadHeaders()
}

// SkipBody advances past a part's body without decoding it, used for
// content types the renderer chooses not to render inline. It is
// mime.c's mime_skip_body: find the next boundary without pushing a
// new entity for the skipped part.
func (d *Decoder) SkipBody() (bool, error) {
	if len(d.entities) == 0 {
		d.pos = len(d.src)
		return false, nil
	}
	ok, _, err := d.NextBodyPart()
	return ok, err
}

// DecodeBody decodes src per transferEncoding, then, if recode is
// true, converts the result from srcCharset to UTF-8.
func DecodeBody(src []byte, transferEncoding, srcCharset string, recode bool) []byte {
	var decoded []byte
	switch strings.ToLower(transferEncoding) {
	case "quoted-printable":
		decoded = DecodeQuotedPrintable(src, false)
	case "base64":
		decoded = DecodeBase64(src)
	default:
		decoded = src
	}
	if !recode {
		return decoded
	}
	out := buffer.New(len(decoded) + 8)
	charset.ToUTF8(out, decoded, srcCharset)
	return out.Bytes()
}
