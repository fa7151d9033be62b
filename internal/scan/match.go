package scan

import "strings"

// NormalizeIdentifier keeps only ASCII letters and digits, lower-cased.
// It is idempotent.
func NormalizeIdentifier(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case c >= 'A' && c <= 'Z':
			b.WriteByte(c + ('a' - 'A'))
		}
	}
	return b.String()
}

// ReverseIdentifier reverses s in 2-character chunks, turning a
// little-endian hex string into its big-endian form. An odd trailing
// character becomes the first chunk.
//
//	ReverseIdentifier("1234abcd") == "cdab3412"
func ReverseIdentifier(s string) string {
	chunks := make([]string, 0, (len(s)+1)/2)
	for i := 0; i < len(s); i += 2 {
		end := i + 2
		if end > len(s) {
			end = len(s)
		}
		chunks = append(chunks, s[i:end])
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := len(chunks) - 1; i >= 0; i-- {
		b.WriteString(chunks[i])
	}
	return b.String()
}

// MatchAddress reports whether address was discovered by the scan.
// Comparison is case-insensitive; an empty address never matches.
func MatchAddress(result BroadcastResult, address string) bool {
	if address == "" {
		return false
	}
	for _, e := range result.Entries {
		if strings.EqualFold(e.Address, address) {
			return true
		}
	}
	return false
}

// MatchIdentifier reports whether some entry advertised identifier.
//
// Each entry's raw payload is normalized, byte-reversed and compared
// exactly against the normalized identifier. An empty identifier never
// matches.
func MatchIdentifier(result BroadcastResult, identifier string) bool {
	want := NormalizeIdentifier(identifier)
	if want == "" {
		return false
	}
	for _, e := range result.Entries {
		if e.Raw == "" {
			continue
		}
		if ReverseIdentifier(NormalizeIdentifier(e.Raw)) == want {
			return true
		}
	}
	return false
}
