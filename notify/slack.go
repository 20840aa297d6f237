// Package notify posts messages about new proposals and comments to a Slack
// incoming webhook.
package notify

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/jhchabran/ideabox"
	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
)

// excerptLength is the number of characters of user text quoted in a message.
const excerptLength = 140

type Slack struct {
	webhookURL string
	logger     zerolog.Logger
}

func NewSlack(webhookURL string, logger zerolog.Logger) *Slack {
	return &Slack{
		webhookURL: webhookURL,
		logger:     logger,
	}
}

// ProposalCreated is an ideabox.ProposalHook.
func (s *Slack) ProposalCreated(ctx context.Context, p *ideabox.Proposal) error {
	return s.post(ctx, fmt.Sprintf("New proposal #%d: %s", p.ID, excerpt(p.Text)))
}

// CommentCreated is an ideabox.CommentHook.
func (s *Slack) CommentCreated(ctx context.Context, c *ideabox.Comment) error {
	author := "someone"
	if c.UserName != nil {
		author = *c.UserName
	}

	var text string
	if c.Text != nil {
		text = *c.Text
	}

	return s.post(ctx, fmt.Sprintf("%s commented on proposal #%d: %s", author, c.ProposalID, excerpt(text)))
}

func (s *Slack) post(ctx context.Context, text string) error {
	err := slack.PostWebhookContext(ctx, s.webhookURL, &slack.WebhookMessage{Text: text})
	if err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}

	s.logger.Debug().Str("text", text).Msg("posted to slack")
	return nil
}

func excerpt(s string) string {
	if utf8.RuneCountInString(s) <= excerptLength {
		return s
	}
	return string([]rune(s)[:excerptLength]) + "…"
}
