package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jhchabran/ideabox"
	"github.com/jhchabran/ideabox/cmd"
	"github.com/jhchabran/ideabox/identity"
	"github.com/jhchabran/ideabox/notify"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg := cmd.DefaultConfig()
	err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot read configuration")
	}
	logger := cmd.SetupLogger(cfg)

	// setup stores
	stores, err := cmd.OpenStores(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Cannot open stores")
	}
	defer stores.Close()

	// setup identities
	ll := logger.With().Str("component", "identity").Logger()
	identities := identity.NewCookieProvider(cfg.Secret(logger), cfg.SecureCookies, ll)

	s := ideabox.NewServer(
		&ideabox.ServerConfig{Addr: cfg.Addr, ProposalsPerPage: cfg.ProposalsPerPage},
		logger,
		stores.Store,
		stores.Polls,
		identities,
	)

	if cfg.SlackWebhookURL != "" {
		slack := notify.NewSlack(cfg.SlackWebhookURL, logger.With().Str("component", "slack").Logger())
		s.AddProposalHook(slack.ProposalCreated)
		s.AddCommentHook(slack.CommentCreated)
	}

	err = s.Prepare()
	if err != nil {
		logger.Fatal().Err(err).Msg("Cannot prepare server")
	}

	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigs
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
		s.Stop()
	}()

	// fire the server
	err = s.Start()
	if err != nil {
		logger.Fatal().Err(err).Msg("Cannot start server")
	}
}
