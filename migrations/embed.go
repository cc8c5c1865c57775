// Package migrations embeds the per-service SQL schemas.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed auth/*.sql tasks/*.sql users/*.sql
var all embed.FS

var (
	// Auth holds the auth-service schema.
	Auth = sub("auth")
	// Tasks holds the task-service schema.
	Tasks = sub("tasks")
	// Users holds the user-service schema (profiles and teams).
	Users = sub("users")
)

func sub(dir string) fs.FS {
	f, err := fs.Sub(all, dir)
	if err != nil {
		panic(err)
	}
	return f
}
