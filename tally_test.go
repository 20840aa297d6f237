package ideabox_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/jhchabran/ideabox"
	"github.com/jhchabran/ideabox/memstore"
	"github.com/rs/zerolog"
)

const (
	userA = "6f1c0b7e-3a52-4d8e-9a0e-2b9f4c1d7e31"
	userB = "0d3e5f2a-8b7c-4e1d-a6f9-c2b1e0d9f8a7"
)

func newTestTally() (*ideabox.Tally, *memstore.MemStore) {
	store := memstore.New()
	return ideabox.NewTally(store, store, zerolog.Nop()), store
}

func TestTallyProposalVotes(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	c.Run("exactly one counter increases by one", func(c *qt.C) {
		tally, store := newTestTally()
		p := ideabox.NewProposal("Bike lanes")
		c.Assert(store.InsertProposal(ctx, p), qt.IsNil)

		updated, err := tally.ApplyProposalVote(ctx, p.ID, ideabox.VoteUp)
		c.Assert(err, qt.IsNil)
		c.Assert(updated.Upvotes, qt.Equals, int64(1))
		c.Assert(updated.Downvotes, qt.Equals, int64(0))

		updated, err = tally.ApplyProposalVote(ctx, p.ID, ideabox.VoteDown)
		c.Assert(err, qt.IsNil)
		c.Assert(updated.Upvotes, qt.Equals, int64(1))
		c.Assert(updated.Downvotes, qt.Equals, int64(1))
	})

	c.Run("invalid vote type", func(c *qt.C) {
		tally, store := newTestTally()
		p := ideabox.NewProposal("Bike lanes")
		c.Assert(store.InsertProposal(ctx, p), qt.IsNil)

		_, err := tally.ApplyProposalVote(ctx, p.ID, ideabox.VoteType("sideways"))
		c.Assert(err, qt.Not(qt.IsNil))

		found, err := store.FindProposal(ctx, p.ID)
		c.Assert(err, qt.IsNil)
		c.Assert(found.Upvotes+found.Downvotes, qt.Equals, int64(0))
	})

	c.Run("unknown proposal", func(c *qt.C) {
		tally, _ := newTestTally()
		_, err := tally.ApplyProposalVote(ctx, 42, ideabox.VoteUp)
		c.Assert(errors.Is(err, ideabox.ErrNotFound), qt.IsTrue)
	})

	c.Run("concurrent votes", func(c *qt.C) {
		tally, store := newTestTally()
		p := ideabox.NewProposal("Bike lanes")
		c.Assert(store.InsertProposal(ctx, p), qt.IsNil)

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				vt := ideabox.VoteUp
				if i%2 == 1 {
					vt = ideabox.VoteDown
				}
				_, err := tally.ApplyProposalVote(ctx, p.ID, vt)
				c.Check(err, qt.IsNil)
			}(i)
		}
		wg.Wait()

		found, err := store.FindProposal(ctx, p.ID)
		c.Assert(err, qt.IsNil)
		c.Assert(found.Upvotes, qt.Equals, int64(25))
		c.Assert(found.Downvotes, qt.Equals, int64(25))
	})
}

var errConflict = errors.New("watched keys modified")

// retryingPolls runs every unit of work twice, discarding the first attempt as
// a store retrying on a conflict does.
type retryingPolls struct {
	*memstore.MemStore
}

func (s *retryingPolls) RunPollTx(ctx context.Context, userID string, fn func(ideabox.PollTx) error) error {
	err := s.MemStore.RunPollTx(ctx, userID, func(tx ideabox.PollTx) error {
		if err := fn(tx); err != nil {
			return err
		}
		return errConflict
	})
	if !errors.Is(err, errConflict) {
		return err
	}

	return s.MemStore.RunPollTx(ctx, userID, fn)
}

func TestTallyBigIssue(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	c.Run("scenario", func(c *qt.C) {
		tally, _ := newTestTally()

		counts, err := tally.SubmitVote(ctx, userA, ideabox.ChoiceAgree)
		c.Assert(err, qt.IsNil)
		c.Assert(*counts, qt.Equals, ideabox.Counts{Agree: 1, Disagree: 0})
		choice, err := tally.Choice(ctx, userA)
		c.Assert(err, qt.IsNil)
		c.Assert(choice, qt.Equals, ideabox.ChoiceAgree)

		counts, err = tally.SubmitVote(ctx, userA, ideabox.ChoiceDisagree)
		c.Assert(err, qt.IsNil)
		c.Assert(*counts, qt.Equals, ideabox.Counts{Agree: 0, Disagree: 1})
		choice, err = tally.Choice(ctx, userA)
		c.Assert(err, qt.IsNil)
		c.Assert(choice, qt.Equals, ideabox.ChoiceDisagree)

		counts, err = tally.SubmitVote(ctx, userB, ideabox.ChoiceAgree)
		c.Assert(err, qt.IsNil)
		c.Assert(*counts, qt.Equals, ideabox.Counts{Agree: 1, Disagree: 1})
	})

	c.Run("voting twice the same way changes nothing", func(c *qt.C) {
		tally, _ := newTestTally()

		first, err := tally.SubmitVote(ctx, userA, ideabox.ChoiceAgree)
		c.Assert(err, qt.IsNil)
		second, err := tally.SubmitVote(ctx, userA, ideabox.ChoiceAgree)
		c.Assert(err, qt.IsNil)
		c.Assert(*second, qt.Equals, *first)

		counts, err := tally.Counts(ctx)
		c.Assert(err, qt.IsNil)
		c.Assert(*counts, qt.Equals, ideabox.Counts{Agree: 1})
	})

	c.Run("an identifier never voted", func(c *qt.C) {
		tally, _ := newTestTally()

		choice, err := tally.Choice(ctx, userA)
		c.Assert(err, qt.IsNil)
		c.Assert(choice, qt.Equals, ideabox.ChoiceNone)

		choice, err = tally.Choice(ctx, "")
		c.Assert(err, qt.IsNil)
		c.Assert(choice, qt.Equals, ideabox.ChoiceNone)
	})

	c.Run("invalid choice", func(c *qt.C) {
		tally, _ := newTestTally()

		_, err := tally.SubmitVote(ctx, userA, ideabox.Choice("maybe"))
		c.Assert(err, qt.Not(qt.IsNil))

		counts, err := tally.Counts(ctx)
		c.Assert(err, qt.IsNil)
		c.Assert(*counts, qt.Equals, ideabox.Counts{})
	})

	c.Run("any sequence of choices counts the last one only", func(c *qt.C) {
		tally, _ := newTestTally()
		rnd := rand.New(rand.NewSource(42))

		users := make([]string, 8)
		for i := range users {
			users[i] = fmt.Sprintf("00000000-0000-4000-8000-%012d", i)
		}

		last := map[string]ideabox.Choice{}
		for i := 0; i < 200; i++ {
			u := users[rnd.Intn(len(users))]
			choice := ideabox.Choices[rnd.Intn(len(ideabox.Choices))]

			_, err := tally.SubmitVote(ctx, u, choice)
			c.Assert(err, qt.IsNil)
			last[u] = choice
		}

		want := ideabox.Counts{}
		for u, choice := range last {
			want.Add(choice, 1)

			got, err := tally.Choice(ctx, u)
			c.Assert(err, qt.IsNil)
			c.Assert(got, qt.Equals, choice)
		}

		counts, err := tally.Counts(ctx)
		c.Assert(err, qt.IsNil)
		c.Assert(*counts, qt.Equals, want)
	})

	c.Run("concurrent switches of a single identifier", func(c *qt.C) {
		tally, _ := newTestTally()

		var wg sync.WaitGroup
		for i := 0; i < 40; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := tally.SubmitVote(ctx, userA, ideabox.Choices[i%2])
				c.Check(err, qt.IsNil)
			}(i)
		}
		wg.Wait()

		counts, err := tally.Counts(ctx)
		c.Assert(err, qt.IsNil)
		c.Assert(counts.Agree+counts.Disagree, qt.Equals, int64(1))

		choice, err := tally.Choice(ctx, userA)
		c.Assert(err, qt.IsNil)
		c.Assert(counts.Get(choice), qt.Equals, int64(1))
	})

	c.Run("store failures are reported as store errors", func(c *qt.C) {
		store := ideabox.UnconfiguredStore()
		tally := ideabox.NewTally(store, store, zerolog.Nop())

		_, err := tally.SubmitVote(ctx, userA, ideabox.ChoiceAgree)
		var serr *ideabox.StoreError
		c.Assert(errors.As(err, &serr), qt.IsTrue)
		c.Assert(errors.Is(err, ideabox.ErrStoreNotConfigured), qt.IsTrue)

		_, err = tally.Counts(ctx)
		c.Assert(errors.Is(err, ideabox.ErrStoreNotConfigured), qt.IsTrue)
	})

	c.Run("a retried vote is logged once", func(c *qt.C) {
		store := memstore.New()
		var buf bytes.Buffer
		tally := ideabox.NewTally(store, &retryingPolls{store}, zerolog.New(&buf).Level(zerolog.DebugLevel))

		counts, err := tally.SubmitVote(ctx, userA, ideabox.ChoiceAgree)
		c.Assert(err, qt.IsNil)
		c.Assert(*counts, qt.Equals, ideabox.Counts{Agree: 1})
		c.Assert(strings.Count(buf.String(), "big issue vote recorded"), qt.Equals, 1)
	})
}
