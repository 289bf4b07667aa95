package sticky

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Titles may embed one {{date <pattern>}} token, resolved at post creation.
// The pattern syntax is the date-fns style the configuration format
// inherited; TranslateFormat maps it onto a Go layout and rejects tokens it
// does not know, which is what makes ingestion-time validation meaningful.

var datePlaceholderRe = regexp.MustCompile(`\{\{date (.+?)\}\}`)

// TitleDateFormat extracts the embedded date pattern, if any.
func TitleDateFormat(title string) (pattern string, ok bool) {
	m := datePlaceholderRe.FindStringSubmatch(title)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ResolveTitle substitutes the {{date ...}} token with now formatted per the
// embedded pattern. Titles without a token pass through unchanged.
func ResolveTitle(title string, now time.Time) (string, error) {
	m := datePlaceholderRe.FindStringSubmatch(title)
	if m == nil {
		return title, nil
	}
	formatted, err := FormatDate(now, m[1])
	if err != nil {
		return "", err
	}
	return strings.Replace(title, m[0], formatted, 1), nil
}

// FormatDate formats t per a date-fns style pattern.
func FormatDate(t time.Time, pattern string) (string, error) {
	layout, err := TranslateFormat(pattern)
	if err != nil {
		return "", err
	}
	return t.Format(layout), nil
}

// TranslateFormat converts a date-fns style pattern into a Go time layout.
// Supported tokens: yyyy yy MMMM MMM MM M dd d EEEE EEE HH hh h mm m ss s a.
// Single-quoted runs are literals ('' is an escaped quote). Any other
// alphabetic run is an error.
func TranslateFormat(pattern string) (string, error) {
	var b strings.Builder
	rs := []rune(pattern)
	for i := 0; i < len(rs); {
		r := rs[i]

		if r == '\'' {
			// Quoted literal.
			i++
			closed := false
			for i < len(rs) {
				if rs[i] == '\'' {
					if i+1 < len(rs) && rs[i+1] == '\'' {
						b.WriteRune('\'')
						i += 2
						continue
					}
					i++
					closed = true
					break
				}
				b.WriteRune(rs[i])
				i++
			}
			if !closed {
				return "", fmt.Errorf("unterminated quote in date format %q", pattern)
			}
			continue
		}

		if !isFormatLetter(r) {
			b.WriteRune(r)
			i++
			continue
		}

		n := 1
		for i+n < len(rs) && rs[i+n] == r {
			n++
		}
		layout, err := tokenLayout(r, n)
		if err != nil {
			return "", fmt.Errorf("date format %q: %w", pattern, err)
		}
		b.WriteString(layout)
		i += n
	}
	return b.String(), nil
}

func isFormatLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func tokenLayout(letter rune, count int) (string, error) {
	switch letter {
	case 'y':
		switch count {
		case 2:
			return "06", nil
		case 4:
			return "2006", nil
		}
	case 'M':
		switch count {
		case 1:
			return "1", nil
		case 2:
			return "01", nil
		case 3:
			return "Jan", nil
		case 4:
			return "January", nil
		}
	case 'd':
		switch count {
		case 1:
			return "2", nil
		case 2:
			return "02", nil
		}
	case 'E':
		switch {
		case count <= 3:
			return "Mon", nil
		case count == 4:
			return "Monday", nil
		}
	case 'H':
		switch count {
		case 1:
			// Go layouts cannot render an unpadded 24-hour value.
			return "", errors.New(`unpadded 24-hour "H" is not supported, use "HH"`)
		case 2:
			return "15", nil
		}
	case 'h':
		switch count {
		case 1:
			return "3", nil
		case 2:
			return "03", nil
		}
	case 'm':
		switch count {
		case 1:
			return "4", nil
		case 2:
			return "04", nil
		}
	case 's':
		switch count {
		case 1:
			return "5", nil
		case 2:
			return "05", nil
		}
	case 'a':
		if count == 1 {
			return "PM", nil
		}
	}
	return "", fmt.Errorf("unsupported token %q", strings.Repeat(string(letter), count))
}
