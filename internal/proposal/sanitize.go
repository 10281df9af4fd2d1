package proposal

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/araddon/dateparse"

	"proposepress/internal/models"
)

var (
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
	octetPattern = regexp.MustCompile(`%[a-fA-F0-9]{2}`)
	spacePattern = regexp.MustCompile(`\s+`)
	datePattern  = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	clockPattern = regexp.MustCompile(`^\D*?(\d{1,2})(?::(\d{2})(?::(\d{2}))?)?(?:\s*([aApP])\.?[mM]\b)?`)
)

// Sanitize cleans user input and returns it as a DateLayout string, or ""
// when no date can be read from it. Input dateparse understands is taken
// as parsed; otherwise junk around a date is tolerated, so
// "2020-06-06 %%%AB 10:25:56 %A%A" yields "2020-06-06 10:25:56". The
// result is the wall clock as typed, offset included.
func Sanitize(input string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("proposed date sanitizer recovered", "input", input, "panic", r)
			out = ""
		}
	}()

	s := cleanText(input)
	if s == "" {
		return ""
	}

	if t, err := dateparse.ParseIn(s, time.UTC); err == nil {
		return t.Format(models.DateLayout)
	}
	v, _ := extractDate(s)
	return v
}

// cleanText strips tags, percent-encoded octets and control characters,
// collapses whitespace and trims.
func cleanText(s string) string {
	s = strings.ToValidUTF8(s, "")
	s = tagPattern.ReplaceAllString(s, "")
	for octetPattern.MatchString(s) {
		s = octetPattern.ReplaceAllString(s, "")
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	s = spacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// extractDate pulls a YYYY-MM-DD date and the first clock reading after
// it out of s. A clock is HH:MM[:SS] or an hour with am/pm, and may carry
// am/pm either way. A missing clock means midnight; an impossible clock
// gives "". The boolean reports whether s held a date at all. The calendar
// date is checked at save time, not here.
func extractDate(s string) (string, bool) {
	loc := datePattern.FindStringIndex(s)
	if loc == nil {
		return "", false
	}
	date := s[loc[0]:loc[1]]

	clock := "00:00:00"
	m := clockPattern.FindStringSubmatch(s[loc[1]:])
	if m == nil || (m[2] == "" && m[4] == "") {
		return date + " " + clock, true
	}

	hour, _ := strconv.Atoi(m[1])
	minute, second := m[2], m[3]
	if minute == "" {
		minute = "00"
	}
	if second == "" {
		second = "00"
	}
	if meridiem := strings.ToLower(m[4]); meridiem != "" {
		if hour < 1 || hour > 12 {
			return "", true
		}
		switch {
		case meridiem == "a" && hour == 12:
			hour = 0
		case meridiem == "p" && hour != 12:
			hour += 12
		}
	}
	if hour > 23 || minute > "59" || second > "59" {
		return "", true
	}
	clock = fmt.Sprintf("%02d:%s:%s", hour, minute, second)
	return date + " " + clock, true
}
