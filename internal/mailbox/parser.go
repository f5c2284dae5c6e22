// Package mailbox implements the streaming mbox parser: it recognizes
// "From " message separators, extracts the handful of headers the
// index needs (Date, From, Subject, Message-ID, In-Reply-To,
// References), and emits one Record per message without ever holding
// a full message in memory. It is grounded on
// original_source/mailbox.c's line-fragment state machine, expressed
// as a few boolean state flags (open, inHeader, blank) driven line by
// line from a bufio.Reader instead of raw fixed-size file/line
// buffers, and on
// third_party/imf/reader.go's folded-header-line technique.
package mailbox

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"io"
	"strings"
	"time"

	"github.com/openwall/blists/internal/idx"
	"github.com/openwall/blists/internal/mime"
)

// fileBufferSize mirrors params.h's FILE_BUFFER_SIZE.
const fileBufferSize = 0x10000

// Record is one parsed message, ready to be packed into an idx.Record
// once ordinal-within-day and thread links are known.
type Record struct {
	Offset, Size int64
	Y, M, D      int // 0 < Y means a valid date; Y==0 is the 1970-01-01 sentinel
	HaveMsgID    bool
	HaveIRT      bool
	MsgIDHash    [16]byte
	IRTHash      [16]byte
	From         string
	FromTrunc    bool
	Subject      string
	SubjectTrunc bool
}

// hash16 truncates a SHA-256 digest to 16 bytes, chosen over the
// original's MD5 since Go's standard library makes the stronger hash
// free and the 65536-bucket thread table's correctness depends on not
// colliding.
func hash16(s string) [16]byte {
	full := sha256.Sum256([]byte(s))
	var out [16]byte
	copy(out[:], full[:16])
	return out
}

// dateRe-free date parser: the original uses strptime(" %a %b %d %T %Y").
// tail is the "From " line minus its "From " prefix; the envelope
// sender word is skipped and the rest is parsed the way mbox writers
// produce it, e.g. "Mon Jan 02 15:04:05 2006".
func parseFromDate(tail string) (y, m, d int, ok bool) {
	tail = strings.TrimSpace(tail)
	if sp := strings.IndexByte(tail, ' '); sp >= 0 {
		tail = strings.TrimSpace(tail[sp+1:])
	}
	layouts := []string{
		"Mon Jan 2 15:04:05 2006",
		"Mon Jan 02 15:04:05 2006",
		"Mon Jan 2 15:04:05 MST 2006",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, tail); err == nil {
			return t.Year() - idx.MinYear, int(t.Month()), t.Day(), true
		}
	}
	return 0, 0, 0, false
}

// Parse streams mbox bytes starting at startOffset (byte position of
// r's first byte in the underlying file) and calls emit once per
// fully-parsed message. It returns the offset just past the last byte
// consumed, suitable as the index header's next_offset resume point.
func Parse(r io.Reader, startOffset int64, emit func(Record)) (endOffset int64, err error) {
	br := bufio.NewReaderSize(r, fileBufferSize)
	pos := startOffset

	var (
		open         bool
		rec          Record
		bodyStart    int64
		blank        = true // start-of-file counts as preceded by blank
		inHeader     bool
		headerBuf    bytes.Buffer
		lastHeader   string
		bodyBlankLen int64 // length of the most recent blank line seen while in the body
	)

	finalizeHeader := func() {
		if lastHeader == "" {
			return
		}
		applyHeader(&rec, lastHeader)
		lastHeader = ""
	}

	// finalize closes the open record. end is the position of the
	// byte that ended it -- either the start of the next "From " line
	// or EOF. When end was reached via a "From " line, bodyBlankLen
	// holds the length of the blank separator line immediately before
	// it, which belongs to the separator, not the message body, and
	// must not be counted in Size (mailbox.c's data_size = here -
	// (blank & body) - data_offset).
	finalize := func(end int64, trailingBlank int64) {
		finalizeHeader()
		rec.Offset = bodyStart
		rec.Size = end - trailingBlank - bodyStart
		if rec.Size < 0 {
			rec.Size = 0
		}
		emit(rec)
	}

	for {
		line, err := br.ReadString('\n')
		lineLen := int64(len(line))
		if len(line) == 0 && err != nil {
			break
		}
		trimmed := strings.TrimRight(line, "\r\n")

		if blank && strings.HasPrefix(trimmed, "From ") {
			if open {
				finalize(pos, bodyBlankLen)
			}
			open = true
			rec = Record{}
			inHeader = true
			headerBuf.Reset()
			lastHeader = ""
			rec.Y, rec.M, rec.D = 0, 1, 1
			if y, m, d, ok := parseFromDate(strings.TrimPrefix(trimmed, "From ")); ok && y >= 0 && y <= idx.MaxYear-idx.MinYear {
				rec.Y, rec.M, rec.D = y, m, d
			}
			bodyStart = pos + lineLen
			pos += lineLen
			blank = false
			bodyBlankLen = 0
			if err != nil {
				break
			}
			continue
		}

		if open && inHeader {
			if trimmed == "" {
				finalizeHeader()
				inHeader = false
				blank = true
				bodyBlankLen = 0
				pos += lineLen
				if err != nil {
					break
				}
				continue
			}
			if (line[0] == ' ' || line[0] == '\t') && lastHeader != "" {
				lastHeader += " " + strings.TrimSpace(trimmed)
			} else {
				finalizeHeader()
				lastHeader = trimmed
			}
			blank = false
			pos += lineLen
			if err != nil {
				break
			}
			continue
		}

		blank = trimmed == ""
		if blank {
			bodyBlankLen = lineLen
		} else {
			bodyBlankLen = 0
		}
		pos += lineLen
		if err != nil {
			break
		}
	}

	if open {
		finalize(pos, 0)
	}
	return pos, nil
}

// applyHeader recognizes and decodes one logical (already
// continuation-joined) header line.
func applyHeader(rec *Record, line string) {
	colon := strings.IndexByte(line, ':')
	if colon < 0 {
		return
	}
	key := strings.ToLower(strings.TrimSpace(line[:colon]))
	val := strings.TrimSpace(line[colon+1:])

	switch key {
	case "message-id":
		if id, ok := firstAngleToken(val); ok {
			rec.HaveMsgID = true
			rec.MsgIDHash = hash16(id)
		}
	case "in-reply-to":
		if id, ok := firstAngleToken(val); ok {
			rec.HaveIRT = true
			rec.IRTHash = hash16(id)
		}
	case "references":
		if !rec.HaveIRT {
			if id, ok := lastAngleToken(val); ok {
				rec.HaveIRT = true
				rec.IRTHash = hash16(id)
			}
		}
	case "from":
		decoded := string(mime.DecodeHeaderValue([]byte(val)))
		rec.From, rec.FromTrunc = truncateField(decoded, idx.StringsSize)
	case "subject":
		decoded := string(mime.DecodeHeaderValue([]byte(val)))
		decoded = stripListPrefix(decoded)
		rec.Subject, rec.SubjectTrunc = truncateField(decoded, idx.SubjectMinGuaranteed)
	}
}

// firstAngleToken extracts the first "<...>" token at least 4 bytes
// long (the stripped contents), matching mailbox.c's Message-ID /
// In-Reply-To extraction.
func firstAngleToken(s string) (string, bool) {
	start := strings.IndexByte(s, '<')
	if start < 0 {
		return "", false
	}
	end := strings.IndexByte(s[start:], '>')
	if end < 0 {
		return "", false
	}
	tok := s[start+1 : start+end]
	if len(tok) < 4 {
		return "", false
	}
	return tok, true
}

// lastAngleToken extracts the last "<...>" token, used for References.
func lastAngleToken(s string) (string, bool) {
	toks := angleTokens(s)
	if len(toks) == 0 {
		return "", false
	}
	tok := toks[len(toks)-1]
	if len(tok) < 4 {
		return "", false
	}
	return tok, true
}

func angleTokens(s string) []string {
	var toks []string
	for {
		start := strings.IndexByte(s, '<')
		if start < 0 {
			break
		}
		rest := s[start+1:]
		end := strings.IndexByte(rest, '>')
		if end < 0 {
			break
		}
		toks = append(toks, rest[:end])
		s = rest[end+1:]
	}
	return toks
}

// stripListPrefix removes leading "[token]" or "[token] " runs from a
// subject, repeating for nested occurrences, matching html.c's
// `while (p = strchr(p, '['))` loop (Open Question 3: stripped
// greedily from the left, no nested-bracket balancing attempted).
func stripListPrefix(subject string) string {
	for strings.HasPrefix(strings.TrimSpace(subject), "[") {
		s := strings.TrimSpace(subject)
		end := strings.IndexByte(s, ']')
		if end < 0 {
			break
		}
		rest := s[end+1:]
		subject = strings.TrimPrefix(rest, " ")
	}
	return subject
}

// truncateField clips s to at most max bytes on a UTF-8 boundary,
// reporting whether truncation occurred.
func truncateField(s string, max int) (string, bool) {
	if len(s) <= max {
		return s, false
	}
	b := []byte(s)[:max]
	for len(b) > 0 && !isUTF8LeadOrASCII(b[len(b)-1]) {
		b = b[:len(b)-1]
	}
	return string(b), true
}

func isUTF8LeadOrASCII(c byte) bool { return c < 0x80 || c >= 0xc0 }
