// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package slug turns content titles into URL path segments.
package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxLength caps generated slugs. Longer titles are cut at a word boundary.
const MaxLength = 200

// Generate derives a slug from a title: accents are folded to plain
// letters, letters and digits are kept in lower case, and every other run
// of characters becomes a single hyphen. "Café: Résumé 2026" gives
// "cafe-resume-2026". Apostrophes are dropped so "How's" stays one word.
func Generate(title string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), title)
	if err != nil {
		folded = title
	}

	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		case r == '\'' || r == '’' || r == '.':
			// joined: "how's" -> "hows", "2.0" -> "20"
		default:
			pendingHyphen = true
		}
	}
	return truncate(b.String())
}

// truncate cuts s to MaxLength, backing off to the last hyphen.
func truncate(s string) string {
	if len(s) <= MaxLength {
		return s
	}
	s = s[:MaxLength]
	if i := strings.LastIndexByte(s, '-'); i > 0 {
		s = s[:i]
	}
	return strings.TrimRight(s, "-")
}
