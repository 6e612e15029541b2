package validators

import (
	"net/http"
	"strings"
	"unicode"
)

// QueryText reads a free-text query parameter for lookups. Control
// characters are dropped, whitespace runs collapse to one space and the
// result is cut to maxRunes without splitting a character.
func QueryText(r *http.Request, key string, maxRunes int) string {
	return SanitizeString(r.URL.Query().Get(key), maxRunes)
}

func SanitizeString(input string, maxRunes int) string {
	var b strings.Builder
	b.Grow(len(input))
	runes := 0
	pendingSpace := false
	for _, ch := range input {
		if unicode.IsSpace(ch) {
			pendingSpace = runes > 0
			continue
		}
		if unicode.IsControl(ch) || ch == unicode.ReplacementChar {
			continue
		}
		if pendingSpace {
			if maxRunes > 0 && runes+1 >= maxRunes {
				break
			}
			b.WriteByte(' ')
			runes++
			pendingSpace = false
		}
		if maxRunes > 0 && runes >= maxRunes {
			break
		}
		b.WriteRune(ch)
		runes++
	}
	return b.String()
}
