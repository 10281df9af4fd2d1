// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// ContentType distinguishes between posts, pages and any custom types in
// the unified content table.
type ContentType string

const (
	ContentTypePost ContentType = "post"
	ContentTypePage ContentType = "page"
)

// ContentStatus represents the publishing state of a content item. The set
// is open; StatusRegistry describes how each status behaves.
type ContentStatus string

const (
	ContentStatusAutoDraft ContentStatus = "auto-draft"
	ContentStatusDraft     ContentStatus = "draft"
	ContentStatusPending   ContentStatus = "pending"
	ContentStatusFuture    ContentStatus = "future"
	ContentStatusPublish   ContentStatus = "publish"
	ContentStatusPrivate   ContentStatus = "private"
)

// DateLayout is the canonical wall-clock layout for content dates and the
// proposed publish date meta value.
const DateLayout = "2006-01-02 15:04:05"

// Content represents a post or page in the CMS. Posts and pages share the
// same table, differentiated by the Type field.
//
// Date is the local (site time zone) wall-clock publish date and is always
// set. DateGMT is nil until the item has an explicit date, which is the
// "unset" sentinel the scheduling rules look for.
type Content struct {
	ID        uuid.UUID     `json:"id"`
	Type      ContentType   `json:"type"`
	Title     string        `json:"title"`
	Slug      string        `json:"slug"`
	Body      string        `json:"body"`
	Excerpt   *string       `json:"excerpt,omitempty"`
	Status    ContentStatus `json:"status"`
	AuthorID  uuid.UUID     `json:"author_id"`
	Date      time.Time     `json:"date"`
	DateGMT   *time.Time    `json:"date_gmt,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// IsPublished returns true if the content item is publicly published.
func (c *Content) IsPublished() bool {
	return c.Status == ContentStatusPublish
}

// IsScheduled returns true if the content item waits for its date.
func (c *Content) IsScheduled() bool {
	return c.Status == ContentStatusFuture
}

// HasFixedDate reports whether the item carries an explicit GMT date.
func (c *Content) HasFixedDate() bool {
	return c.DateGMT != nil
}

// LocalDate returns Date formatted with DateLayout.
func (c *Content) LocalDate() string {
	return c.Date.Format(DateLayout)
}
