package server

import (
	"net/http"
	"path"
	"path/filepath"

	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/andrasnagy-data/authscreen/api"
	"github.com/andrasnagy-data/authscreen/internal/shared/config"
)

// NewStaticRoute serves the built screen from ASSETS_DIR. Unknown paths get index.html
// so client side routes survive a reload.
func NewStaticRoute(cfg *config.Config) Route {
	return Route{Pattern: "/", Handler: staticHandler(cfg.AssetsDir)}
}

func staticHandler(dir string) http.Handler {
	root := http.Dir(dir)
	files := http.FileServer(root)
	index := filepath.Join(dir, "index.html")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, err := root.Open(path.Clean("/" + r.URL.Path))
		if err != nil {
			http.ServeFile(w, r, index)
			return
		}
		f.Close()
		files.ServeHTTP(w, r)
	})
}

// NewDocsRoute serves Swagger UI under /api/docs/ outside prod
func NewDocsRoute(cfg *config.Config) Route {
	if cfg.IsEnvProd() {
		return Route{}
	}
	return Route{
		Pattern: "/api/docs",
		Handler: httpSwagger.Handler(httpSwagger.URL("/api/docs/doc.json")),
	}
}
