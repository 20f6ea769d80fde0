// Command tool runs administrative actions against the auth store:
//
//	tool activate <email|username>
//	tool status <email|username> <pending|active|inactive>
//	tool seed-admin -email root@buksu.edu.ph -password secret
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/baechuer/orgdocs/services/auth-service/internal/application/auth"
	"github.com/baechuer/orgdocs/services/auth-service/internal/bootstrap"
	"github.com/baechuer/orgdocs/services/auth-service/internal/config"
	"github.com/baechuer/orgdocs/services/auth-service/internal/logger"
)

const actor = "cli"

var errUsage = errors.New("usage: tool activate <user> | status <user> <status> | seed-admin -email E -password P")

type cli struct {
	users auth.UserRepo
	svc   *auth.Service
	out   io.Writer
}

func (c *cli) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "activate":
		if len(args) != 2 {
			return errUsage
		}
		return c.setStatus(ctx, args[1], "active")
	case "status":
		if len(args) != 3 {
			return errUsage
		}
		return c.setStatus(ctx, args[1], args[2])
	case "seed-admin":
		return c.seedAdmin(ctx, args[1:])
	default:
		return errUsage
	}
}

func (c *cli) setStatus(ctx context.Context, identifier, status string) error {
	u, err := c.users.FindByEmailOrUsername(ctx, identifier)
	if err != nil {
		return fmt.Errorf("find %q: %w", identifier, err)
	}
	u, err = c.svc.SetStatus(ctx, actor, u.ID, status)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s (%s) is now %s\n", u.Username, u.Email, u.Status)
	return nil
}

func (c *cli) seedAdmin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("seed-admin", flag.ContinueOnError)
	fs.SetOutput(c.out)
	email := fs.String("email", "", "admin email")
	password := fs.String("password", "", "admin password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *password == "" {
		return errUsage
	}

	u, created, err := c.svc.EnsureAdmin(ctx, *email, *password)
	if err != nil {
		return err
	}
	if created {
		fmt.Fprintf(c.out, "created admin %s (%s)\n", u.Username, u.ID)
	} else {
		fmt.Fprintf(c.out, "admin %s already exists\n", u.Email)
	}
	return nil
}

func main() {
	logger.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// google sign-in is never needed here
	app, err := bootstrap.NewApp(ctx, cfg, bootstrap.Deps{
		NewIdentity: func(*config.Config) (auth.IdentityVerifier, func(), error) { return nil, nil, nil },
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer app.Close()

	c := &cli{users: app.Users, svc: app.Service, out: os.Stdout}
	if err := c.run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
