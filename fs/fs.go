// Package appfs embeds the files shipped inside the binaries: SQL migrations, email templates and the common passwords list.
package appfs

import "embed"

//go:embed migrations passwords templates
var FS embed.FS
