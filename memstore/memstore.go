// Package memstore keeps proposals, comments and the big issue poll in memory.
// It is meant for tests and for trying the server without a database: nothing
// survives a restart.
package memstore

import (
	"context"
	"strings"
	"sync"

	"github.com/jhchabran/ideabox"
	"github.com/jhchabran/ideabox/ranking"
)

type MemStore struct {
	mu        sync.Mutex
	proposals []*ideabox.Proposal
	comments  []*ideabox.Comment
	choices   map[string]ideabox.Choice
	counts    ideabox.Counts
	lastID    int64
}

func New() *MemStore {
	return &MemStore{
		choices: map[string]ideabox.Choice{},
	}
}

func (s *MemStore) Connect() error                 { return nil }
func (s *MemStore) Ping(ctx context.Context) error { return ctx.Err() }

func (s *MemStore) nextID() int64 {
	s.lastID++
	return s.lastID
}

func (s *MemStore) ListProposals(ctx context.Context, q ideabox.ProposalQuery) ([]*ideabox.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	needle := strings.ToLower(q.Search)
	res := []*ideabox.Proposal{}
	for _, p := range s.proposals {
		if needle != "" && !strings.Contains(strings.ToLower(p.Text), needle) {
			continue
		}
		cp := *p
		res = append(res, &cp)
	}

	ranking.Sort(res, q.Order, ideabox.NowFunc())

	return paginate(res, q.Page, q.PerPage), nil
}

func paginate(ps []*ideabox.Proposal, page int, perPage int) []*ideabox.Proposal {
	if perPage <= 0 {
		return ps
	}

	start := page * perPage
	if start >= len(ps) {
		return []*ideabox.Proposal{}
	}
	end := start + perPage
	if end > len(ps) {
		end = len(ps)
	}
	return ps[start:end]
}

func (s *MemStore) findProposal(id int64) *ideabox.Proposal {
	for _, p := range s.proposals {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (s *MemStore) FindProposal(ctx context.Context, id int64) (*ideabox.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.findProposal(id)
	if p == nil {
		return nil, ideabox.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemStore) InsertProposal(ctx context.Context, p *ideabox.Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.ID = s.nextID()
	cp := *p
	s.proposals = append(s.proposals, &cp)
	return nil
}

func (s *MemStore) IncrementProposalVote(ctx context.Context, id int64, vt ideabox.VoteType) (*ideabox.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.findProposal(id)
	if p == nil {
		return nil, ideabox.ErrNotFound
	}

	switch vt {
	case ideabox.VoteUp:
		p.Upvotes++
	case ideabox.VoteDown:
		p.Downvotes++
	}

	cp := *p
	return &cp, nil
}

func (s *MemStore) ListComments(ctx context.Context, proposalID int64) ([]*ideabox.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := []*ideabox.Comment{}
	// comments are appended in creation order, walk backwards for newest first
	for i := len(s.comments) - 1; i >= 0; i-- {
		if c := s.comments[i]; c.ProposalID == proposalID {
			cp := *c
			res = append(res, &cp)
		}
	}
	return res, nil
}

func (s *MemStore) InsertComment(ctx context.Context, c *ideabox.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findProposal(c.ProposalID) == nil {
		return ideabox.ErrNotFound
	}

	c.ID = s.nextID()
	cp := *c
	s.comments = append(s.comments, &cp)
	return nil
}

func (s *MemStore) PollCounts(ctx context.Context) (*ideabox.Counts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := s.counts
	return &counts, nil
}

func (s *MemStore) FindChoice(ctx context.Context, userID string) (ideabox.Choice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.choices[userID], nil
}

// RunPollTx holds the store lock for the whole unit of work, and only applies
// the changes if fn succeeds.
func (s *MemStore) RunPollTx(ctx context.Context, userID string, fn func(ideabox.PollTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &pollTx{
		choice: s.choices[userID],
		counts: s.counts,
	}
	if err := fn(tx); err != nil {
		return err
	}

	if tx.choice != ideabox.ChoiceNone {
		s.choices[userID] = tx.choice
	}
	s.counts = tx.counts

	return nil
}

type pollTx struct {
	choice ideabox.Choice
	counts ideabox.Counts
}

func (tx *pollTx) Choice() (ideabox.Choice, error) {
	return tx.choice, nil
}

func (tx *pollTx) SetChoice(c ideabox.Choice) error {
	tx.choice = c
	return nil
}

func (tx *pollTx) AdjustCount(c ideabox.Choice, delta int64) error {
	tx.counts.Add(c, delta)
	return nil
}

func (tx *pollTx) Counts() (*ideabox.Counts, error) {
	counts := tx.counts
	return &counts, nil
}
