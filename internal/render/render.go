// Package render implements the five per-request entry points
// (message, attachment, day_index, month_index, year_index) that the
// original exposed as html_message/html_attachment/html_day_index/
// html_month_index/html_year_index in original_source/html.c. Each
// opens the index (shared lock) and does a handful of positional
// reads; Message and Attachment then open the mbox and re-parse the
// selected message's MIME tree. Each writes HTML or a raw attachment
// to the supplied io.Writer.
package render

import (
	"io"
	"os"
	"path/filepath"
	"regexp"

	"crawshaw.io/iox"

	"github.com/openwall/blists/internal/blog"
	"github.com/openwall/blists/internal/buffer"
	"github.com/openwall/blists/internal/config"
	"github.com/openwall/blists/internal/idx"
	"github.com/openwall/blists/internal/indexcache"
	"github.com/openwall/blists/internal/mime"
)

var listNameRe = regexp.MustCompile(`^[a-z0-9-]{1,99}$`)

// Renderer ties a Config and Logger to the five entry points. Filer
// is optional; when set, Attachment spills the raw message bytes it
// reads from the mbox through an iox.BufferFile instead of an
// unconditional heap allocation, the same role iox.Filer plays
// buffering MIME part bodies in email/msgcleaver.go. Cache is
// optional; when set, per-day (firstOrdinal, count) lookups are
// memoized across requests instead of re-scanning the slot table.
type Renderer struct {
	Config config.Config
	Log    blog.Logger
	Filer  *iox.Filer
	Cache  *indexcache.Cache
}

func (rd Renderer) logf(format string, args ...interface{}) {
	if rd.Log != nil {
		rd.Log(format, args...)
	}
}

func (rd Renderer) paths(list string) (mboxPath, idxPath string, err error) {
	if !listNameRe.MatchString(list) {
		return "", "", errInvalidParams
	}
	return filepath.Join(rd.Config.SpoolDir, list),
		filepath.Join(rd.Config.SpoolDir, list+".idx"), nil
}

func (rd Renderer) openIndex(list string) (*idx.Index, string, error) {
	_, idxPath, err := rd.paths(list)
	if err != nil {
		return nil, "", err
	}
	ix, err := idx.Open(idxPath)
	switch {
	case err == idx.ErrNeedsRebuild:
		return nil, "", errNeedsRebuild
	case os.IsNotExist(err):
		return nil, "", errNoSuchList
	case err != nil:
		return nil, "", wrapErr("Server error", err)
	}
	return ix, idxPath, nil
}

// readSpooled reads size bytes at offset from mb. When rd.Filer is
// set the read is staged through an iox.BufferFile, which keeps small
// reads in memory and spills larger ones to a temp file, rather than
// always allocating size bytes on the heap; an attachment fetch is
// the one path where size can be large (up to MaxWithAttachmentSize).
func (rd Renderer) readSpooled(mb *os.File, offset, size int64) ([]byte, error) {
	if rd.Filer == nil {
		raw := make([]byte, size)
		if _, err := mb.ReadAt(raw, offset); err != nil && err != io.EOF {
			return nil, err
		}
		return raw, nil
	}
	buf := rd.Filer.BufferFile(0)
	defer buf.Close()
	if _, err := io.Copy(buf, io.NewSectionReader(mb, offset, size)); err != nil {
		return nil, err
	}
	if _, err := buf.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	raw := make([]byte, size)
	if _, err := io.ReadFull(buf, raw); err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return raw, nil
}

func validDate(y, m, d int) bool {
	return y >= 0 && y <= idx.MaxYear-idx.MinYear && m >= 1 && m <= 12 && d >= 1 && d <= 31
}

// recordsForDay reads the 1-based first-ordinal and message count for
// aday, consulting rd.Cache first when set. Empty days read zero
// directly; populated days scan forward to the next non-zero slot,
// which is either the next populated day's first ordinal or the
// terminal sentinel at idx.NADay holding -(total record count) -- in
// the sentinel case the day's count is the remainder of the table
// from its first ordinal to the end.
func (rd Renderer) recordsForDay(ix *idx.Index, idxPath, list string, aday int) (firstOrdinal int32, count int32, err error) {
	var size, mtime int64
	if rd.Cache != nil {
		if st, statErr := os.Stat(idxPath); statErr == nil {
			size, mtime = st.Size(), st.ModTime().Unix()
			if f, c, ok, cacheErr := rd.Cache.Lookup(list, size, mtime, aday); cacheErr == nil && ok {
				return f, c, nil
			}
		}
	}

	firstOrdinal, count, err = computeRecordsForDay(ix, aday)
	if err == nil && rd.Cache != nil && size != 0 {
		rd.Cache.Store(list, size, mtime, aday, firstOrdinal, count)
	}
	return firstOrdinal, count, err
}

func computeRecordsForDay(ix *idx.Index, aday int) (firstOrdinal int32, count int32, err error) {
	s0, err := ix.ReadSlot(aday)
	if err != nil {
		return 0, 0, err
	}
	if s0 <= 0 {
		return 0, 0, nil
	}
	for a := aday + 1; a < idx.NADay+1; a++ {
		s1, err := ix.ReadSlot(a)
		if err != nil {
			return 0, 0, err
		}
		if s1 == 0 {
			continue
		}
		if s1 < 0 {
			return s0, -s1 - s0 + 1, nil
		}
		return s0, s1 - s0, nil
	}
	return s0, 0, nil
}

// Message renders message n of (y, m, d) in list to w as an HTML
// fragment.
func (rd Renderer) Message(w io.Writer, list string, y, m, d, n int) error {
	if !validDate(y, m, d) || n < 1 || n > 999999 {
		return errInvalidParams
	}
	mboxPath, _, err := rd.paths(list)
	if err != nil {
		return err
	}
	ix, idxPath, err := rd.openIndex(list)
	if err != nil {
		return err
	}
	defer ix.Close()

	aday := idx.ADay(y, m, d)
	m1, count, err := rd.recordsForDay(ix, idxPath, list, aday)
	if err != nil {
		return wrapErr("Server error", err)
	}
	if m1 <= 0 || int32(n) > count {
		return errNoSuchMessage
	}
	ord := int(m1) + n - 2 // 0-based global record index
	rec, err := ix.ReadRecord(ord)
	if err != nil {
		return wrapErr("Server error", err)
	}
	if int(rec.Y) != y || int(rec.M) != m || int(rec.D) != d {
		return errNoSuchMessage
	}

	var prev, next *idx.Record
	if ord > 0 {
		if p, err := ix.ReadRecord(ord - 1); err == nil {
			prev = &p
		}
	}
	if nx, err := ix.ReadRecord(ord + 1); err == nil {
		next = &nx
	}

	mb, err := os.Open(mboxPath)
	if err != nil {
		return wrapErr("Cannot open mailbox", err)
	}
	defer mb.Close()

	size := rec.Size
	truncated := false
	if size > rd.Config.MaxMessageSize {
		size = rd.Config.MaxMessageSizeTrunc
		truncated = true
	}
	raw := make([]byte, size)
	if _, err := mb.ReadAt(raw, rec.Offset); err != nil && err != io.EOF {
		return wrapErr("Cannot read message", err)
	}

	out := buffer.New(len(raw) * 2)
	dec := mime.New(raw)
	top := dec.ReadHeaders()

	out.AppendString("<pre>\n")
	AppendHeaderLine(out, rd.Config, mime.DecodeHeaderValue(raw[:top.HeaderEnd-top.HeaderStart]))

	rd.renderNav(out, list, rec, prev, next)

	rd.walkBody(out, dec, top, rd.Config)

	if truncated {
		out.AppendString("\n[ Message truncated ]\n")
	}
	out.AppendString("</pre>\n")

	_, err = w.Write(out.Bytes())
	return err
}

func (rd Renderer) renderNav(out *buffer.Buffer, list string, rec idx.Record, prev, next *idx.Record) {
	out.AppendString("<div class=\"nav\">\n")
	if prev != nil {
		out.AppendString("<a href=\"../../../../\">Up</a>\n")
	}
	if rec.Thread.PN != 0 {
		out.Appendf("<a href=\"../../../%d/%02d/%02d/%d/\">Thread: previous message</a>\n",
			int(rec.Thread.PY)+idx.MinYear, rec.Thread.PM, rec.Thread.PD, rec.Thread.PN)
	}
	if rec.Thread.NN != 0 {
		out.Appendf("<a href=\"../../../%d/%02d/%02d/%d/\">Thread: next message</a>\n",
			int(rec.Thread.NY)+idx.MinYear, rec.Thread.NM, rec.Thread.ND, rec.Thread.NN)
	}
	if next != nil && next.Y == rec.Y && next.M == rec.M && next.D == rec.D {
		out.AppendString("<a href=\"../next/\">Next message this day</a>\n")
	}
	out.AppendString("</div>\n")
}

// walkBody walks the remaining multipart structure of a message,
// emitting attachment links, decoded inline text, or skip notices per
// part, matching html.c's html_message body loop. A non-multipart
// message is treated as a single implicit part running to the end of
// the source.
func (rd Renderer) walkBody(out *buffer.Buffer, dec *mime.Decoder, top mime.Part, cfg config.Config) {
	if !top.IsMultipart {
		body := dec.Bytes(top.BodyStart, dec.Len())
		rd.renderPart(out, top, body, cfg)
		return
	}
	rd.walkMultipart(out, dec, cfg, 1)
}

// walkMultipart renders each sibling part of the innermost open
// multipart entity in turn. Every part's body end is discovered by
// the NextBodyPart call that also advances the decoder past the
// following boundary, so headers and body-bounds are read one part
// ahead of rendering.
func (rd Renderer) walkMultipart(out *buffer.Buffer, dec *mime.Decoder, cfg config.Config, depth int) {
	if depth > mime.MaxDepth {
		out.AppendString("[ MIME nesting too deep, remaining body shown as one unit ]\n")
		appendEscaped(out, cfg, dec.Bytes(dec.Pos(), dec.Len()), htmlFlags{detectURLs: true, obfuscate: true})
		dec.SeekBody(dec.Len())
		return
	}
	ok, _, err := dec.NextBodyPart()
	for ok && err == nil {
		part := dec.NextBody()
		if part.IsMultipart {
			// The nested entity was already pushed by NextBody's call
			// to ReadHeaders; recursing consumes it down to its own
			// terminator, after which this level's next sibling
			// boundary (if any) is found by the same NextBodyPart call
			// that drives this loop.
			rd.walkMultipart(out, dec, cfg, depth+1)
			ok, _, err = dec.NextBodyPart()
			continue
		}
		var bodyEnd int
		ok, bodyEnd, err = dec.NextBodyPart()
		body := dec.Bytes(part.BodyStart, bodyEnd)
		rd.renderPart(out, part, body, cfg)
	}
}

func (rd Renderer) renderPart(out *buffer.Buffer, part mime.Part, body []byte, cfg config.Config) {
	if isAttachment(part) {
		out.Appendf("[ attachment: %s of type %s ]\n", part.Filename, part.ContentType)
		return
	}
	if part.ContentType == "" || part.ContentType == "text/plain" {
		decoded := mime.DecodeBody(body, part.TransferEncoding, part.Charset, true)
		appendEscaped(out, cfg, decoded, htmlFlags{detectURLs: true, obfuscate: true})
		return
	}
	if part.ContentType == "text/html" {
		decoded := mime.DecodeBody(body, part.TransferEncoding, part.Charset, true)
		appendEscaped(out, cfg, htmlToText(decoded), htmlFlags{detectURLs: true, obfuscate: true})
		return
	}
	out.Appendf("[ Content of type %s skipped ]\n", part.ContentType)
}

func isAttachment(part mime.Part) bool {
	if part.Disposition == "attachment" {
		return true
	}
	if part.Filename != "" {
		return true
	}
	if part.ContentType != "" && part.ContentType != "text/plain" && part.ContentType != "text/html" &&
		!hasPrefixText(part.ContentType) {
		return true
	}
	return false
}

func hasPrefixText(ct string) bool {
	return len(ct) >= 5 && ct[:5] == "text/"
}

