package normalize

import (
	"strings"
	"unicode"
)

// soundexCode returns the classic American Soundex digit for a letter, or
// 0 for vowels and the separators h/w (which carry no code).
func soundexCode(r rune) byte {
	switch r {
	case 'b', 'f', 'p', 'v':
		return '1'
	case 'c', 'g', 'j', 'k', 'q', 's', 'x', 'z':
		return '2'
	case 'd', 't':
		return '3'
	case 'l':
		return '4'
	case 'm', 'n':
		return '5'
	case 'r':
		return '6'
	}
	return 0
}

// Soundex computes the classic American Soundex of a token, truncated or
// zero-padded to length. When length is 1 the leading letter alone is the
// code. Digits already present in the token pass through unchanged, so a
// soundex code re-encodes to itself. Empty or letterless input yields "".
func Soundex(token string, length int) string {
	if length < 1 {
		length = 1
	}
	token = Fold(token)

	var b strings.Builder
	var lastCode byte
	started := false
	for _, r := range token {
		if r >= '0' && r <= '9' {
			if !started {
				b.WriteRune(r)
				started = true
			} else if b.Len() < length {
				b.WriteByte(byte(r))
			}
			lastCode = byte(r)
			continue
		}
		if !unicode.IsLetter(r) {
			continue
		}
		if r > unicode.MaxASCII {
			// Fold already stripped combining marks; remaining
			// non-ASCII letters carry no soundex class
			continue
		}
		if !started {
			b.WriteRune(unicode.ToUpper(r))
			started = true
			lastCode = soundexCode(r)
			continue
		}
		code := soundexCode(r)
		switch {
		case code == 0:
			// Vowels separate equal codes; h and w do not
			if r != 'h' && r != 'w' {
				lastCode = 0
			}
		case code == lastCode:
			// Adjacent same-class letters collapse
		default:
			if b.Len() < length {
				b.WriteByte(code)
			}
			lastCode = code
		}
	}
	if !started {
		return ""
	}
	for b.Len() < length {
		b.WriteByte('0')
	}
	out := b.String()
	if len(out) > length {
		out = out[:length]
	}
	return out
}
