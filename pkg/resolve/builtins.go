package resolve

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// randAlphabet is the default 62-symbol charset for @rand.
const randAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

func nowFunc() time.Time {
	return time.Now()
}

// randomString produces a random string of the requested length drawn from
// charset (default alphanumeric).
func randomString(lengthArg, charset string) (string, error) {
	n, err := strconv.Atoi(strings.TrimSpace(lengthArg))
	if err != nil || n < 0 {
		return "", fmt.Errorf("invalid length %q", lengthArg)
	}
	if charset == "" {
		charset = randAlphabet
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read randomness: %w", err)
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = charset[int(b)%len(charset)]
	}
	return string(out), nil
}

// relOffsetRe matches signed single-unit offsets like +3d, -2h, +1w.
var relOffsetRe = regexp.MustCompile(`^([+-])(\d+)([smhdw])$`)

// formatDate renders a timestamp computed from a relative expression using a
// Go time layout. An unparseable relative expression is a hard error.
func formatDate(layout, rel string, now time.Time) (string, error) {
	t, err := relativeTime(rel, now)
	if err != nil {
		return "", err
	}
	return t.Format(layout), nil
}

func relativeTime(rel string, now time.Time) (time.Time, error) {
	switch strings.TrimSpace(rel) {
	case "", "now":
		return now, nil
	case "today":
		return midnight(now), nil
	case "tomorrow":
		return midnight(now).AddDate(0, 0, 1), nil
	case "yesterday":
		return midnight(now).AddDate(0, 0, -1), nil
	}

	if m := relOffsetRe.FindStringSubmatch(strings.TrimSpace(rel)); m != nil {
		n, _ := strconv.Atoi(m[2])
		var unit time.Duration
		switch m[3] {
		case "s":
			unit = time.Second
		case "m":
			unit = time.Minute
		case "h":
			unit = time.Hour
		case "d":
			unit = 24 * time.Hour
		case "w":
			unit = 7 * 24 * time.Hour
		}
		d := time.Duration(n) * unit
		if m[1] == "-" {
			d = -d
		}
		return now.Add(d), nil
	}

	// Fall back to Go duration syntax ("1h30m", "-15m").
	if d, err := time.ParseDuration(strings.TrimSpace(rel)); err == nil {
		return now.Add(d), nil
	}
	return time.Time{}, fmt.Errorf("invalid relative expression %q", rel)
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// autoCamel converts a value to CamelCase if it contains no uppercase
// character; values that already carry case information pass through
// unchanged.
func autoCamel(v string) string {
	if strings.IndexFunc(v, unicode.IsUpper) >= 0 {
		return v
	}
	words := strings.FieldsFunc(v, func(r rune) bool {
		return unicode.IsSpace(r) || r == '_' || r == '-'
	})
	var b strings.Builder
	for _, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		b.WriteString(string(runes))
	}
	return b.String()
}
