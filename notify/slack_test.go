package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/jhchabran/ideabox"
	"github.com/rs/zerolog"
)

type webhookRecorder struct {
	status   int
	messages []string
}

func (rec *webhookRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var msg struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&msg); err == nil {
		rec.messages = append(rec.messages, msg.Text)
	}
	w.WriteHeader(rec.status)
}

func TestSlack(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	c.Run("proposal created", func(c *qt.C) {
		rec := &webhookRecorder{status: http.StatusOK}
		srv := httptest.NewServer(rec)
		c.Cleanup(srv.Close)

		s := NewSlack(srv.URL, zerolog.Nop())
		err := s.ProposalCreated(ctx, &ideabox.Proposal{ID: 3, Text: "Add dark mode"})
		c.Assert(err, qt.IsNil)
		c.Assert(rec.messages, qt.DeepEquals, []string{"New proposal #3: Add dark mode"})
	})

	c.Run("comment created", func(c *qt.C) {
		rec := &webhookRecorder{status: http.StatusOK}
		srv := httptest.NewServer(rec)
		c.Cleanup(srv.Close)

		s := NewSlack(srv.URL, zerolog.Nop())

		err := s.CommentCreated(ctx, ideabox.NewComment(3, "yes please", "alice"))
		c.Assert(err, qt.IsNil)
		err = s.CommentCreated(ctx, ideabox.NewComment(3, "me too", ""))
		c.Assert(err, qt.IsNil)

		c.Assert(rec.messages, qt.DeepEquals, []string{
			"alice commented on proposal #3: yes please",
			"someone commented on proposal #3: me too",
		})
	})

	c.Run("long texts are cut", func(c *qt.C) {
		rec := &webhookRecorder{status: http.StatusOK}
		srv := httptest.NewServer(rec)
		c.Cleanup(srv.Close)

		s := NewSlack(srv.URL, zerolog.Nop())
		err := s.ProposalCreated(ctx, &ideabox.Proposal{ID: 1, Text: strings.Repeat("é", 300)})
		c.Assert(err, qt.IsNil)
		c.Assert(rec.messages, qt.HasLen, 1)
		c.Assert(rec.messages[0], qt.Equals, "New proposal #1: "+strings.Repeat("é", excerptLength)+"…")
	})

	c.Run("webhook failure", func(c *qt.C) {
		rec := &webhookRecorder{status: http.StatusInternalServerError}
		srv := httptest.NewServer(rec)
		c.Cleanup(srv.Close)

		s := NewSlack(srv.URL, zerolog.Nop())
		err := s.ProposalCreated(ctx, &ideabox.Proposal{ID: 1, Text: "Bike lanes"})
		c.Assert(err, qt.ErrorMatches, "slack webhook: .*")
	})
}
