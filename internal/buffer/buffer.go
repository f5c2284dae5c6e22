// Package buffer implements a growable byte buffer with bounded
// reallocation and a sticky error flag, modeled on blists' original
// buffer.c: start/ptr/end cursors, double-or-need growth capped at a
// fixed ceiling, and a single error channel checked after a run of
// appends rather than per call.
package buffer

import "fmt"

const (
	// GrowStep is the minimum amount a Buffer grows by.
	GrowStep = 0x8000
	// GrowMax is the hard cap on a Buffer's capacity. Appends that
	// would cross it set the sticky error flag and become no-ops.
	GrowMax = 0x1000000
)

// Buffer is an auto-growing byte vector with a sticky error flag.
// The zero value is not usable; use New.
type Buffer struct {
	data []byte
	err  bool
}

// New allocates a Buffer with the given capacity hint. A hint of 0
// uses GrowStep.
func New(hint int) *Buffer {
	if hint <= 0 {
		hint = GrowStep
	}
	return &Buffer{data: make([]byte, 0, hint)}
}

// Err reports whether any append has ever failed (hit GrowMax).
// Once set it stays set; Reset is the only way to clear it.
func (b *Buffer) Err() bool { return b.err }

// Bytes returns the buffer's current contents. The slice is valid
// until the next append or Reset.
func (b *Buffer) Bytes() []byte { return b.data }

// Len returns the number of bytes written so far.
func (b *Buffer) Len() int { return len(b.data) }

// Reset empties the buffer and clears the error flag.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
	b.err = false
}

// Truncate discards everything after the first n bytes, so a caller
// that over-wrote speculatively (e.g. appending a URL scheme byte by
// byte before recognizing it as the start of a link) can rewind the
// write pointer and re-emit it. n must be in [0, Len()]; out-of-range
// values are clamped rather than panicking.
func (b *Buffer) Truncate(n int) {
	if n < 0 {
		n = 0
	}
	if n > len(b.data) {
		n = len(b.data)
	}
	b.data = b.data[:n]
}

func (b *Buffer) grow(extra int) bool {
	need := len(b.data) + extra
	if need <= cap(b.data) {
		return true
	}
	if extra > GrowMax {
		b.err = true
		return false
	}
	newSize := 2 * cap(b.data)
	if newSize < need+GrowStep {
		newSize = need + GrowStep
	}
	if newSize > GrowMax {
		if need > GrowMax {
			b.err = true
			return false
		}
		newSize = GrowMax
	}
	grown := make([]byte, len(b.data), newSize)
	copy(grown, b.data)
	b.data = grown
	return true
}

// Append appends a byte run. A no-op, preserving the error flag, if
// the buffer is already in the error state or growth would exceed
// GrowMax.
func (b *Buffer) Append(p []byte) {
	if b.err {
		return
	}
	if !b.grow(len(p)) {
		return
	}
	b.data = append(b.data, p...)
}

// AppendString appends a string's bytes.
func (b *Buffer) AppendString(s string) {
	b.Append([]byte(s))
}

// AppendByte appends a single byte.
func (b *Buffer) AppendByte(c byte) {
	if b.err {
		return
	}
	if !b.grow(1) {
		return
	}
	b.data = append(b.data, c)
}

// AppendRune appends a Unicode scalar, UTF-8 encoded in 1-4 bytes.
// Invalid scalars (out of Unicode range) are mapped to U+FFFD.
func (b *Buffer) AppendRune(r rune) {
	switch {
	case r < 0 || r > 0x10FFFF:
		b.AppendRune(0xFFFD)
	case r <= 0x7f:
		b.AppendByte(byte(r))
	case r <= 0x7ff:
		b.AppendByte(0xc0 | byte(r>>6))
		b.AppendByte(0x80 | byte(r&0x3f))
	case r <= 0xffff:
		b.AppendByte(0xe0 | byte(r>>12))
		b.AppendByte(0x80 | byte((r>>6)&0x3f))
		b.AppendByte(0x80 | byte(r&0x3f))
	default:
		b.AppendByte(0xf0 | byte(r>>18))
		b.AppendByte(0x80 | byte((r>>12)&0x3f))
		b.AppendByte(0x80 | byte((r>>6)&0x3f))
		b.AppendByte(0x80 | byte(r&0x3f))
	}
}

// Appendf appends a printf-style formatted string. It is implemented
// in terms of fmt.Sprintf; the original C version growth-loops around
// vsnprintf for the same effect.
func (b *Buffer) Appendf(format string, args ...interface{}) {
	if b.err {
		return
	}
	b.AppendString(fmt.Sprintf(format, args...))
}
