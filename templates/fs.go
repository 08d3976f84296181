package templates

import "embed"

// FS holds the page layout, partials and pages.
//
//go:embed layouts/*.gohtml partials/*.gohtml pages/*.gohtml
var FS embed.FS
