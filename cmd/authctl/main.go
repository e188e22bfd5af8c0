// Command authctl drives the auth screen from a terminal.
//
//	authctl -register-name bob -register-password hunter22 register
//	authctl -name alice -password pw1 login logout
//
// Operations run in the order given, each one reported before the next starts,
// unless -parallel submits them all at once.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"golang.org/x/sync/errgroup"

	"github.com/andrasnagy-data/authscreen/internal/components/screen"
	"github.com/andrasnagy-data/authscreen/internal/shared/config"
	"github.com/andrasnagy-data/authscreen/internal/shared/gateway"
	"github.com/andrasnagy-data/authscreen/internal/shared/logging"
)

var errUsage = errors.New("usage: authctl [flags] register|login|logout ...")

type runner interface {
	Run(ctx context.Context, op screen.Operation) error
	Wait()
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.NewConfig()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("authctl", flag.ContinueOnError)
	api := fs.String("api", cfg.APIURL, "API base URL")
	registerName := fs.String("register-name", "", "name in the registration form")
	registerPassword := fs.String("register-password", "", "password in the registration form")
	name := fs.String("name", "", "name in the login form")
	password := fs.String("password", "", "password in the login form")
	parallel := fs.Bool("parallel", false, "submit every operation without waiting for the previous outcome")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ops := make([]screen.Operation, 0, fs.NArg())
	for _, arg := range fs.Args() {
		op, err := screen.ParseOperation(arg)
		if err != nil {
			return err
		}
		ops = append(ops, op)
	}
	if len(ops) == 0 {
		return errUsage
	}

	logger, sentryWriter := logging.NewLogger(cfg)
	if cfg.IsEnvProd() {
		defer func() {
			if sentryWriter != nil {
				sentryWriter.Close()
			}
			sentry.Flush(2 * time.Second)
		}()
	}

	gw, err := gateway.New(*api, cfg.RequestTimeout, logger)
	if err != nil {
		return err
	}

	forms := screen.NewForms()
	forms.Register.Set(screen.Credentials{Name: *registerName, Password: *registerPassword})
	forms.Login.Set(screen.Credentials{Name: *name, Password: *password})

	controller := screen.NewController(gw, screen.NewWriterNotifier(os.Stdout), forms, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return execute(ctx, controller, ops, *parallel)
}

// execute runs ops and returns once every outcome has been reported
func execute(ctx context.Context, r runner, ops []screen.Operation, parallel bool) error {
	// interrupted requests still report their outcome
	defer r.Wait()

	if parallel {
		for _, op := range ops {
			if err := r.Run(ctx, op); err != nil {
				return err
			}
		}
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for _, op := range ops {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := r.Run(ctx, op); err != nil {
				return err
			}
			r.Wait()
		}
		return nil
	})
	return g.Wait()
}
