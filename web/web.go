// Package web holds the server-rendered pages.
package web

import (
	"embed"
	"io/fs"
	"net/http"

	html "github.com/gofiber/template/html/v2"
)

//go:embed templates/*.html
var templates embed.FS

// Engine returns the template engine over the embedded pages.
func Engine() *html.Engine {
	sub, err := fs.Sub(templates, "templates")
	if err != nil {
		panic(err)
	}
	engine := html.NewFileSystem(http.FS(sub), ".html")
	engine.AddFunc("weekday", func(i int) string {
		return [...]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}[i%7]
	})
	return engine
}
