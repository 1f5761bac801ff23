// Package appfs exposes the files embedded in the binary: database migrations, email templates and assets.
package appfs

import "embed"

//go:embed migrations/*.sql templates/email/* assets
var FS embed.FS
