package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/jhchabran/ideabox"
	"github.com/jhchabran/ideabox/cmd"
	"github.com/jhchabran/ideabox/identity"
	"github.com/rs/zerolog/log"
)

var authors = []string{"tintin", "milou", "haddock", "castafiore", "tournesol", ""}

var proposals = []string{
	"Add a dark mode to the intranet",
	"Bike lanes on the main avenue",
	"More benches in the park next to the station",
	"Longer opening hours for the library during exams",
	"A repair café every first Saturday of the month",
	"Water fountains in every schoolyard",
	"Plant trees along the river bank",
	"Free public transport for people under 18",
	"A weekly farmers market on the town square",
	"Better lighting in the underground parking",
	"Publish the city council minutes online",
	"Shared gardens on the roofs of public buildings",
}

var comments = []string{
	"Yes please!",
	"I'm not sure this is a priority right now.",
	"We tried that in my previous town and it worked **really** well.",
	"How much would this cost?",
	"See https://example.org/similar-project for a similar project.",
	"# Strongly agree\nThis is long overdue.",
	"Could we start with a small pilot?",
}

func main() {
	cfg := cmd.DefaultConfig()
	err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot read configuration")
	}
	logger := cmd.SetupLogger(cfg)
	logger.Info().Msg("Seeding database")

	ctx := context.Background()
	stores, err := cmd.OpenStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Cannot open stores")
	}
	defer stores.Close()

	if stores.SQL == nil {
		logger.Fatal().Msg("No database configured, nothing to seed")
	}

	tally := ideabox.NewTally(stores.Store, stores.Polls, logger)
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	now := ideabox.NowFunc()

	for i, text := range proposals {
		p := ideabox.NewProposal(text)
		// spread proposals over the last days, so that orderings are meaningful
		p.CreatedAt = now.Add(-time.Duration(len(proposals)-i) * 7 * time.Hour)
		err := stores.Store.InsertProposal(ctx, p)
		if err != nil {
			logger.Fatal().Err(err).Msg("Cannot insert proposal")
		}

		for j := rnd.Intn(30); j > 0; j-- {
			vt := ideabox.VoteUp
			if rnd.Intn(3) == 0 {
				vt = ideabox.VoteDown
			}
			_, err := tally.ApplyProposalVote(ctx, p.ID, vt)
			if err != nil {
				logger.Fatal().Err(err).Msg("Cannot vote on proposal")
			}
		}

		for j := rnd.Intn(4); j > 0; j-- {
			c := ideabox.NewComment(p.ID, comments[rnd.Intn(len(comments))], authors[rnd.Intn(len(authors))])
			c.CreatedAt = p.CreatedAt.Add(time.Duration(j) * time.Hour)
			err := stores.Store.InsertComment(ctx, c)
			if err != nil {
				logger.Fatal().Err(err).Msg("Cannot insert comment")
			}
		}
	}

	for i := 0; i < 40; i++ {
		userID, err := identity.New()
		if err != nil {
			logger.Fatal().Err(err).Msg("Cannot create identifier")
		}
		_, err = tally.SubmitVote(ctx, userID, ideabox.Choices[rnd.Intn(len(ideabox.Choices))])
		if err != nil {
			logger.Fatal().Err(err).Msg("Cannot vote on the big issue")
		}
	}

	counts, err := tally.Counts(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("Cannot read counts")
	}

	logger.Info().
		Int("proposals", len(proposals)).
		Str("big_issue", fmt.Sprintf("%d agree, %d disagree", counts.Agree, counts.Disagree)).
		Msg("Done")
}
