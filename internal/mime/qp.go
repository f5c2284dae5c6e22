package mime

// DecodeQuotedPrintable decodes quoted-printable bytes per
// original_source/mime.c's decode_qp: "=XX" hex-decodes a byte, "=\n"
// is a soft line break and is deleted, and a lone "=" not followed by
// two hex digits is kept literal. When header is true, "_" decodes to
// a space (the RFC 2047 "Q" encoding variant used only in headers).
func DecodeQuotedPrintable(src []byte, header bool) []byte {
	dst := make([]byte, 0, len(src))
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '_' && header:
			dst = append(dst, ' ')
		case c == '=':
			if i+1 < len(src) && src[i+1] == '\n' {
				i++
				continue
			}
			if i+2 < len(src) && isHex(src[i+1]) && isHex(src[i+2]) {
				dst = append(dst, hexVal(src[i+1])<<4|hexVal(src[i+2]))
				i += 2
				continue
			}
			dst = append(dst, '=')
		default:
			dst = append(dst, c)
		}
	}
	return dst
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexVal(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

const b64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

var b64rev [256]int8

func init() {
	for i := range b64rev {
		b64rev[i] = -1
	}
	for i, c := range []byte(b64Alphabet) {
		b64rev[c] = int8(i)
	}
}

// DecodeBase64 decodes the standard base64 alphabet, ignoring
// whitespace and newlines, terminating at "=". Like
// original_source/mime.c's decode_base64, a partial final group of
// 2 or 3 characters is still emitted (producing 1 or 2 output bytes)
// rather than treated as an error.
func DecodeBase64(src []byte) []byte {
	dst := make([]byte, 0, len(src)*3/4+3)
	var group [4]byte
	n := 0
	flush := func() {
		switch n {
		case 2:
			dst = append(dst, group[0]<<2|group[1]>>4)
		case 3:
			dst = append(dst, group[0]<<2|group[1]>>4, group[1]<<4|group[2]>>2)
		case 4:
			dst = append(dst, group[0]<<2|group[1]>>4, group[1]<<4|group[2]>>2, group[2]<<6|group[3])
		}
		n = 0
	}
	for _, c := range src {
		if c == '=' {
			flush()
			return dst
		}
		if c == '\r' || c == '\n' || c == ' ' || c == '\t' {
			continue
		}
		v := b64rev[c]
		if v < 0 {
			continue
		}
		group[n] = byte(v)
		n++
		if n == 4 {
			flush()
		}
	}
	if n > 0 {
		flush()
	}
	return dst
}
