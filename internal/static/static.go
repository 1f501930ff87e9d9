package static

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
)

//go:embed static/*
var StaticFS embed.FS

// FS returns the embedded assets rooted at the static directory.
func FS() http.FileSystem {
	sub, err := fs.Sub(StaticFS, "static")
	if err != nil {
		// the directory is embedded at build time
		panic(fmt.Sprintf("static assets missing: %v", err))
	}
	return http.FS(sub)
}
