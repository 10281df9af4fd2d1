// Package web provides embedded static assets (CSS, JS) for the admin interface.
// In development, templates load assets from CDN; in production, the compiled
// files are embedded here and served at /static/.
package web

import "embed"

// StaticFS embeds the web/static/ directory tree: the compiled admin
// stylesheet and the build/ output holding the proposed-date editor bundle
// and its asset-manifest.json.
//
//go:embed all:static
var StaticFS embed.FS
