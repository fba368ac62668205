// Package appfs exposes build-time embedded assets.
package appfs

import "embed"

//go:embed migrations
var FS embed.FS
