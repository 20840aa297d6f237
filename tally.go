package ideabox

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Tally owns every mutation of vote counters: the up/down counters of
// proposals and the single choice big issue poll.
type Tally struct {
	store  Store
	polls  PollStore
	logger zerolog.Logger
}

func NewTally(store Store, polls PollStore, logger zerolog.Logger) *Tally {
	return &Tally{
		store:  store,
		polls:  polls,
		logger: logger,
	}
}

// ApplyProposalVote increments by one the counter of the proposal matching vt and
// returns the proposal as it is after the update. The increment is performed by
// the store in a single statement, so concurrent votes are never lost.
func (t *Tally) ApplyProposalVote(ctx context.Context, id int64, vt VoteType) (*Proposal, error) {
	if _, err := ParseVoteType(string(vt)); err != nil {
		return nil, err
	}

	p, err := t.store.IncrementProposalVote(ctx, id, vt)
	if err != nil {
		return nil, storeError("increment proposal vote", err)
	}

	t.logger.Debug().Int64("proposal_id", id).Str("vote", string(vt)).
		Int64("upvotes", p.Upvotes).Int64("downvotes", p.Downvotes).Msg("proposal vote applied")

	return p, nil
}

// Counts returns the aggregate counters of the poll.
func (t *Tally) Counts(ctx context.Context) (*Counts, error) {
	counts, err := t.polls.PollCounts(ctx)
	if err != nil {
		return nil, storeError("poll counts", err)
	}
	return counts, nil
}

// Choice returns the recorded choice of userID, ChoiceNone if it never voted.
// userID must already be validated.
func (t *Tally) Choice(ctx context.Context, userID string) (Choice, error) {
	if userID == "" {
		return ChoiceNone, nil
	}

	c, err := t.polls.FindChoice(ctx, userID)
	if err != nil {
		return ChoiceNone, storeError("find choice", err)
	}
	return c, nil
}

// SubmitVote records next as the choice of userID and returns the resulting counters.
//
// An identifier has at most one choice counted at any time: voting again for the
// same choice changes nothing, and voting for the other choice moves the
// identifier's unit from one counter to the other. The whole switch is applied in
// a single unit of work of the poll store.
func (t *Tally) SubmitVote(ctx context.Context, userID string, next Choice) (*Counts, error) {
	if _, err := ParseChoice(string(next)); err != nil {
		return nil, err
	}

	var (
		prev   Choice
		counts *Counts
	)
	err := t.polls.RunPollTx(ctx, userID, func(tx PollTx) error {
		var err error
		prev, err = tx.Choice()
		if err != nil {
			return err
		}

		if prev == next {
			counts, err = tx.Counts()
			return err
		}

		deltas := map[Choice]int64{next: 1}
		if prev != ChoiceNone {
			deltas[prev] = -1
		}

		// counters are always adjusted in the same order, so that switches in
		// opposite directions lock them in the same order too
		for _, c := range Choices {
			delta, ok := deltas[c]
			if !ok {
				continue
			}
			if err := tx.AdjustCount(c, delta); err != nil {
				return fmt.Errorf("adjust %s by %d: %w", c, delta, err)
			}
		}

		if err := tx.SetChoice(next); err != nil {
			return err
		}

		counts, err = tx.Counts()
		return err
	})
	if err != nil {
		return nil, storeError("submit vote", err)
	}

	// logged once committed, the unit of work may have been retried
	t.logger.Debug().Str("user_id", userID).Str("prev", string(prev)).Str("next", string(next)).
		Int64("agree", counts.Agree).Int64("disagree", counts.Disagree).Msg("big issue vote recorded")

	return counts, nil
}
