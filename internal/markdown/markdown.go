// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package markdown renders content bodies for the public site and derives
// plain-text summaries for listings.
package markdown

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
)

// SummaryWords is the default length of a listing summary.
const SummaryWords = 40

// Bodies are written by trusted users (contributor and up), so raw HTML in
// a body is rendered as written.
var md = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Typographer,
		highlighting.NewHighlighting(highlighting.WithStyle("github")),
	),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	goldmark.WithRendererOptions(html.WithUnsafe()),
)

// Render converts a markdown body to HTML ready for a template.
func Render(body string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(body), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}

// Summary returns the text of the first paragraph of body, without
// markup, cut to at most words words. A cut summary ends with "…".
func Summary(body string, words int) string {
	src := []byte(body)
	doc := md.Parser().Parse(text.NewReader(src))

	var (
		b           strings.Builder
		inParagraph bool
	)
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if _, ok := n.(*ast.Paragraph); ok {
			if !entering {
				return ast.WalkStop, nil
			}
			inParagraph = true
		}
		if !entering || !inParagraph {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(src))
			if v.SoftLineBreak() || v.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})

	fields := strings.Fields(b.String())
	if words > 0 && len(fields) > words {
		return strings.Join(fields[:words], " ") + "…"
	}
	return strings.Join(fields, " ")
}
