package handlers

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"proposepress/internal/models"
)

// Field limits, counted in runes.
const (
	maxTitleLen       = 300
	maxSlugLen        = 300
	maxBodyLen        = 100_000
	maxExcerptLen     = 1_000
	maxDisplayNameLen = 100
	minPasswordLen    = 8
)

// tooLong returns the form error for a field over max runes, or "".
func tooLong(field, value string, max int) string {
	if utf8.RuneCountInString(value) <= max {
		return ""
	}
	return fmt.Sprintf("%s is too long (max %s characters).", field, humanize.Comma(int64(max)))
}

// firstError returns the first non-empty message.
func firstError(msgs ...string) string {
	for _, m := range msgs {
		if m != "" {
			return m
		}
	}
	return ""
}

// validateContent checks a submitted post or page. The slug may be empty;
// it is generated from the title afterwards.
func validateContent(c *models.Content) string {
	if strings.TrimSpace(c.Title) == "" {
		return "Title is required."
	}
	excerpt := ""
	if c.Excerpt != nil {
		excerpt = *c.Excerpt
	}
	return firstError(
		tooLong("Title", c.Title, maxTitleLen),
		tooLong("Slug", c.Slug, maxSlugLen),
		tooLong("Body", c.Body, maxBodyLen),
		tooLong("Excerpt", excerpt, maxExcerptLen),
	)
}

// validateUser checks the new user form.
func validateUser(email, displayName, password string, role models.Role) string {
	// Only a bare address is stored; "Name <addr>" is rejected.
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return "A valid email is required."
	}
	if strings.TrimSpace(displayName) == "" {
		return "Display name is required."
	}
	if msg := tooLong("Display name", displayName, maxDisplayNameLen); msg != "" {
		return msg
	}
	if len(password) < minPasswordLen {
		return fmt.Sprintf("Password must be at least %d characters.", minPasswordLen)
	}
	if !role.Can(models.CapRead) {
		return "Invalid role."
	}
	return ""
}
