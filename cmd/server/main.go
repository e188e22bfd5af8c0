// authscreen API
// @title authscreen API
// @version 0.1.0
// @description Registration, login and logout backend for the auth screen

// @contact.name András
// @contact.email andrasna@proton.me

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api
// @schemes http https

package main

import (
	"go.uber.org/fx"

	"github.com/andrasnagy-data/authscreen/internal/components/auth"
	"github.com/andrasnagy-data/authscreen/internal/server"
	"github.com/andrasnagy-data/authscreen/internal/shared/config"
	"github.com/andrasnagy-data/authscreen/internal/shared/database"
	"github.com/andrasnagy-data/authscreen/internal/shared/logging"
)

func main() {
	fx.New(
		fx.Provide(
			config.NewConfig,
			logging.NewLogger,
			database.NewPgxPool,
			server.NewServer,
			server.NewHealthSrvc,
			fx.Annotate(server.NewHealthHandler, fx.ResultTags(`name:"health"`)),
			fx.Annotate(func(cfg *config.Config) int { return cfg.Port }, fx.ResultTags(`name:"port"`)),
			auth.NewRepo,
			auth.NewService,
			fx.Annotate(auth.NewRouter, fx.ResultTags(`name:"authRouter"`)),
			fx.Annotate(server.Mount("/api"), fx.ParamTags(`name:"authRouter"`), fx.ResultTags(`group:"routes"`)),
			fx.Annotate(server.NewDocsRoute, fx.ResultTags(`group:"routes"`)),
			fx.Annotate(server.NewStaticRoute, fx.ResultTags(`group:"routes"`)),
			auth.NewSweeper,
		),
		fx.Invoke(server.Register),
		fx.Invoke(func(*auth.Sweeper) {}),
	).Run()
}
