package payfast

import "strings"

const upperhex = "0123456789ABCDEF"

// Encode percent-encodes a value the way the gateway canonicalizes it
// before hashing. This is PHP's urlencode(), not net/url: spaces become
// '+' (never %20), hex escapes are uppercase, and only ASCII letters,
// digits, '-', '_' and '.' pass through unescaped. Non-ASCII input is
// encoded per raw UTF-8 byte. Any divergence here produces a signature
// the gateway rejects, so this must not be swapped for a stdlib encoder.
func Encode(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case c == '-' || c == '_' || c == '.':
			b.WriteByte(c)
		case c == ' ':
			b.WriteByte('+')
		default:
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&0x0f])
		}
	}

	return b.String()
}
