package render

import (
	"io"
	"os"

	"github.com/openwall/blists/internal/buffer"
	"github.com/openwall/blists/internal/idx"
	"github.com/openwall/blists/internal/mime"
)

// Attachment writes attachment index a (1-based, in document order)
// of message n of (y, m, d) in list to w, along with its content
// type. It re-parses the message's MIME tree exactly as Message does,
// but instead of rendering HTML it walks parts looking for the a'th
// one flagged as an attachment and streams its decoded bytes raw.
func (rd Renderer) Attachment(w io.Writer, list string, y, m, d, n, a int) (contentType string, err error) {
	if !validDate(y, m, d) || n < 1 || a < 1 {
		return "", errInvalidParams
	}
	ix, idxPath, err := rd.openIndex(list)
	if err != nil {
		return "", err
	}
	defer ix.Close()

	aday := idx.ADay(y, m, d)
	m1, count, err := rd.recordsForDay(ix, idxPath, list, aday)
	if err != nil {
		return "", wrapErr("Server error", err)
	}
	if m1 <= 0 || int32(n) > count {
		return "", errNoSuchMessage
	}
	rec, err := ix.ReadRecord(int(m1) + n - 2)
	if err != nil {
		return "", wrapErr("Server error", err)
	}

	mboxPath, _, _ := rd.paths(list)
	mb, err := os.Open(mboxPath)
	if err != nil {
		return "", wrapErr("Cannot open mailbox", err)
	}
	defer mb.Close()

	if rec.Size > rd.Config.MaxWithAttachmentSize {
		return "", errAttachmentTrunc
	}
	raw, err := rd.readSpooled(mb, rec.Offset, rec.Size)
	if err != nil {
		return "", wrapErr("Cannot read message", err)
	}

	dec := mime.New(raw)
	top := dec.ReadHeaders()

	found := 0
	var hit mime.Part
	var hitBody []byte
	if !top.IsMultipart {
		if isAttachment(top) {
			found++
			if found == a {
				hit = top
				hitBody = dec.Bytes(top.BodyStart, dec.Len())
			}
		}
	} else {
		found, hit, hitBody = rd.findAttachment(dec, a, 1)
	}
	if found < a || hitBody == nil {
		return "", errAttachmentNone
	}

	decoded := mime.DecodeBody(hitBody, hit.TransferEncoding, "", false)
	if _, err := w.Write(decoded); err != nil {
		return "", err
	}
	if hit.ContentType == "" {
		return "application/octet-stream", nil
	}
	return hit.ContentType, nil
}

// findAttachment descends the multipart tree in document order,
// counting attachment parts, and returns the body bytes of the n'th
// one found (1-based).
func (rd Renderer) findAttachment(dec *mime.Decoder, want, depth int) (found int, hit mime.Part, body []byte) {
	if depth > mime.MaxDepth {
		return 0, mime.Part{}, nil
	}
	ok, _, err := dec.NextBodyPart()
	for ok && err == nil {
		part := dec.NextBody()
		if part.IsMultipart {
			var subFound int
			subFound, hit, body = rd.findAttachment(dec, want-found, depth+1)
			found += subFound
			if body != nil {
				return found, hit, body
			}
			ok, _, err = dec.NextBodyPart()
			continue
		}
		var bodyEnd int
		ok, bodyEnd, err = dec.NextBodyPart()
		if isAttachment(part) {
			found++
			if found == want {
				return found, part, dec.Bytes(part.BodyStart, bodyEnd)
			}
		}
	}
	return found, mime.Part{}, nil
}

// DayIndex lists every message posted on (y, m, d) in list.
func (rd Renderer) DayIndex(w io.Writer, list string, y, m, d int) error {
	if !validDate(y, m, d) {
		return errInvalidParams
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

	out := buffer.New(4096)
	out.Appendf("<h1>%s %d, %d</h1>\n", monthNames[m-1], d, y+idx.MinYear)
	out.AppendString("<ul>\n")
	for n := int32(1); n <= count; n++ {
		rec, err := ix.ReadRecord(int(m1) + int(n) - 2)
		if err != nil {
			break
		}
		out.AppendString("<li><a href=\"")
		out.Appendf("%d/", n)
		out.AppendString("\">")
		appendEscaped(out, rd.Config, subjectOf(rec), htmlFlags{})
		out.AppendString("</a> &mdash; ")
		appendEscaped(out, rd.Config, fromOf(rec), htmlFlags{obfuscate: true})
		out.AppendString("</li>\n")
	}
	out.AppendString("</ul>\n")

	_, err = w.Write(out.Bytes())
	return err
}

// MonthIndex renders a calendar grid for (y, m) in list, with each
// day that has messages linking to its DayIndex and showing its
// message count.
func (rd Renderer) MonthIndex(w io.Writer, list string, y, m int) error {
	if y < 0 || y > idx.MaxYear-idx.MinYear || m < 1 || m > 12 {
		return errInvalidParams
	}
	ix, idxPath, err := rd.openIndex(list)
	if err != nil {
		return err
	}
	defer ix.Close()

	out := buffer.New(4096)
	out.Appendf("<h1>%s %d</h1>\n", monthNames[m-1], y+idx.MinYear)
	out.AppendString("<table class=\"calendar\">\n<tr>")
	for _, wd := range weekdayAbbrev {
		out.Appendf("<th>%s</th>", wd)
	}
	out.AppendString("</tr>\n<tr>")
	first := dayOfWeek(y+idx.MinYear, m, 1)
	for i := 0; i < first; i++ {
		out.AppendString("<td></td>")
	}
	col := first
	nDays := daysInMonth(y+idx.MinYear, m)
	for d := 1; d <= nDays; d++ {
		if col == 7 {
			out.AppendString("</tr>\n<tr>")
			col = 0
		}
		aday := idx.ADay(y, m, d)
		_, count, err := rd.recordsForDay(ix, idxPath, list, aday)
		if err != nil {
			count = 0
		}
		if count > 0 {
			out.Appendf("<td><a href=\"%d/\">%d</a> (%d)</td>", d, d, count)
		} else {
			out.Appendf("<td>%d</td>", d)
		}
		col++
	}
	out.AppendString("</tr>\n</table>\n")

	_, err = w.Write(out.Bytes())
	return err
}

// YearIndex renders a summary of every month in year y (y==0 means
// the all-years overview, the renamed form of html.c's "index of
// indexes" root page).
func (rd Renderer) YearIndex(w io.Writer, list string, y int) error {
	if y < 0 || y > idx.MaxYear-idx.MinYear {
		return errInvalidParams
	}
	ix, idxPath, err := rd.openIndex(list)
	if err != nil {
		return err
	}
	defer ix.Close()

	out := buffer.New(2048)
	if y == 0 {
		out.AppendString("<h1>All years</h1>\n<ul>\n")
		for yy := 0; yy <= idx.MaxYear-idx.MinYear; yy++ {
			if rd.yearHasMessages(ix, idxPath, list, yy) {
				out.Appendf("<li><a href=\"%d/\">%d</a></li>\n", yy+idx.MinYear, yy+idx.MinYear)
			}
		}
		out.AppendString("</ul>\n")
		_, err = w.Write(out.Bytes())
		return err
	}

	out.Appendf("<h1>%d</h1>\n<ul>\n", y+idx.MinYear)
	for m := 1; m <= 12; m++ {
		total := int32(0)
		for d := 1; d <= daysInMonth(y+idx.MinYear, m); d++ {
			_, c, err := rd.recordsForDay(ix, idxPath, list, idx.ADay(y, m, d))
			if err == nil {
				total += c
			}
		}
		if total > 0 {
			out.Appendf("<li><a href=\"%02d/\">%s</a> (%d)</li>\n", m, monthNames[m-1], total)
		}
	}
	out.AppendString("</ul>\n")

	_, err = w.Write(out.Bytes())
	return err
}

func (rd Renderer) yearHasMessages(ix *idx.Index, idxPath, list string, y int) bool {
	for m := 1; m <= 12; m++ {
		for d := 1; d <= daysInMonth(y+idx.MinYear, m); d++ {
			if _, c, err := rd.recordsForDay(ix, idxPath, list, idx.ADay(y, m, d)); err == nil && c > 0 {
				return true
			}
		}
	}
	return false
}

func subjectOf(rec idx.Record) []byte {
	subject, _ := idx.UnpackStrings(rec.Strings)
	return []byte(subject)
}

func fromOf(rec idx.Record) []byte {
	_, from := idx.UnpackStrings(rec.Strings)
	return []byte(from)
}
