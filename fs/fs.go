// Package appfs embeds the files shipped with every binary: the seed timetable,
// database migrations and email templates.
package appfs

import "embed"

//go:embed fixtures migrations all:templates
var FS embed.FS

const (
	FixturePath       = "fixtures/timetable.yaml"
	MigrationsDir     = "migrations"
	EmailTemplatesDir = "templates/email"
)
