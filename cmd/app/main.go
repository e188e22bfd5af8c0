// Command app serves the auth screen locally. The page binds its inputs to the forms held
// here, triggers operations against API_URL and shows each outcome with an alert.
package main

import (
	"go.uber.org/fx"

	"github.com/andrasnagy-data/authscreen/internal/components/screen"
	"github.com/andrasnagy-data/authscreen/internal/server"
	"github.com/andrasnagy-data/authscreen/internal/shared/config"
	"github.com/andrasnagy-data/authscreen/internal/shared/gateway"
	"github.com/andrasnagy-data/authscreen/internal/shared/logging"
)

func main() {
	fx.New(
		fx.Provide(
			config.NewConfig,
			logging.NewLogger,
			server.NewServer,
			fx.Annotate(func(cfg *config.Config) int { return cfg.ShellPort }, fx.ResultTags(`name:"port"`)),
			fx.Annotate(gateway.NewGateway, fx.As(new(screen.Poster))),
			fx.Annotate(screen.NewHub, fx.As(fx.Self()), fx.As(new(screen.Notifier))),
			screen.NewForms,
			screen.NewController,
			fx.Annotate(screen.NewHealthHandler, fx.ResultTags(`name:"health"`)),
			fx.Annotate(screen.NewRouter, fx.ResultTags(`name:"screenRouter"`)),
			fx.Annotate(server.Mount("/"), fx.ParamTags(`name:"screenRouter"`), fx.ResultTags(`group:"routes"`)),
		),
		fx.Invoke(server.Register),
	).Run()
}
