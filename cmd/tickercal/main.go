package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bobmcallan/tickercal/internal/app"
	"github.com/bobmcallan/tickercal/internal/common"
	"github.com/bobmcallan/tickercal/internal/server"
)

func main() {
	configPath := flag.String("config", os.Getenv("TICKERCAL_CONFIG"), "path to tickercal.toml")
	issueToken := flag.String("issue-token", "", "print an operator API token for the given subject and exit")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of an issued operator token")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		common.LoadVersionFromFile()
		fmt.Println(common.CurrentBuild())
		return
	}

	if *issueToken != "" {
		config, err := common.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		token, err := server.SignAdminToken(config.Auth.AdminJWTSecret, *issueToken, *tokenTTL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to issue token: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	a, err := app.NewApp(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize app: %v\n", err)
		os.Exit(1)
	}

	common.PrintBanner(a.Config, a.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		a.Logger.Error().Err(err).Msg("Failed to connect to Discord")
		a.Close()
		os.Exit(1)
	}

	a.Logger.Info().
		Str("url", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)).
		Msg("Server ready")

	// Serves until SIGINT/SIGTERM, then drains in-flight requests.
	if err := server.NewServer(a).Run(ctx, 10*time.Second); err != nil {
		a.Logger.Error().Err(err).Msg("HTTP server stopped with error")
	}
	a.Logger.Info().Msg("Shutting down")

	a.Close()
	common.PrintShutdownBanner(a.Logger)
}
