package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog/log"

	"github.com/authflow/go-session-auth/auth"
	"github.com/authflow/go-session-auth/internal/config"
	"github.com/authflow/go-session-auth/server"
	"github.com/authflow/go-session-auth/sessions"
	"github.com/authflow/go-session-auth/token"
	"github.com/authflow/go-session-auth/users"
	"github.com/authflow/go-session-auth/users/memrepo"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("error running server")
	}
	log.Info().Msg("server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New()
	if err != nil {
		return fmt.Errorf("config.New: %w", err)
	}
	displayAppname(c.GetAppName())

	userRepo := memrepo.New()
	sessionStore := sessions.NewInMemoryStore()
	tokenManager := token.New(
		token.NewHMACSigner(c.GetSigningSecret()),
		token.WithTokenExpiry(c.GetAccessTokenExpiry(), c.GetRefreshTokenExpiry()),
	)

	authService, err := auth.NewService(
		auth.Repos{Users: userRepo, Sessions: sessionStore},
		tokenManager,
		auth.WithBcryptCost(c.GetBcryptCost()),
	)
	if err != nil {
		return fmt.Errorf("auth.NewService: %w", err)
	}

	if c.GetEnv() == "DEV" {
		seedMockUser(userRepo, c.GetBcryptCost())
	}

	handler, err := server.New(c, authService)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	srv := &http.Server{Addr: c.GetPort(), Handler: handler}
	go listenAndServe(srv)
	waitForStopSignal()
	return shutdown(srv)
}

// seedMockUser preloads a fixture account so the flow can be exercised
// without registering first. DEV only.
func seedMockUser(repo users.Repo, bcryptCost int) {
	const (
		mockEmail    = "test@example.com"
		mockPassword = "W!1234565f"
	)
	hash, err := users.HashPassword(mockPassword, bcryptCost)
	if err != nil {
		log.Err(err).Msg("failed to hash mock user password")
		return
	}
	if err := repo.Upsert(&users.User{Email: mockEmail, PasswordHash: hash, DateJoined: time.Now()}); err != nil {
		log.Err(err).Msg("failed to seed mock user")
		return
	}
	log.Info().Str("email", mockEmail).Str("password", mockPassword).Msg("mock user created")
}

func listenAndServe(srv *http.Server) {
	log.Info().Str("addr", srv.Addr).Msg("server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Err(err).Msg("server.ListenAndServe")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
