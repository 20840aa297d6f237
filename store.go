package ideabox

import "context"

// A Store persists proposals and comments.
//
// Implementations return ErrNotFound when a single record lookup or update
// matches no row. Any other error is treated as the store being unavailable.
type Store interface {
	Connect() error
	Ping(ctx context.Context) error
	ListProposals(ctx context.Context, q ProposalQuery) ([]*Proposal, error)
	FindProposal(ctx context.Context, id int64) (*Proposal, error)
	InsertProposal(ctx context.Context, p *Proposal) error
	// IncrementProposalVote adds one to the counter matching vt in a single
	// atomic update and returns the updated proposal.
	IncrementProposalVote(ctx context.Context, id int64, vt VoteType) (*Proposal, error)
	ListComments(ctx context.Context, proposalID int64) ([]*Comment, error)
	InsertComment(ctx context.Context, c *Comment) error
}

// A PollStore persists the big issue poll: one choice per identifier and the
// aggregate counters.
type PollStore interface {
	Connect() error
	PollCounts(ctx context.Context) (*Counts, error)
	FindChoice(ctx context.Context, userID string) (Choice, error)
	// RunPollTx runs fn with exclusive access to the choice of userID. Changes
	// made through the PollTx are committed only if fn returns nil.
	RunPollTx(ctx context.Context, userID string, fn func(PollTx) error) error
}

// PollTx is a unit of work on the poll, scoped to a single identifier.
type PollTx interface {
	Choice() (Choice, error)
	SetChoice(c Choice) error
	// AdjustCount adds delta to the counter of c, flooring the result at zero.
	AdjustCount(c Choice, delta int64) error
	// Counts returns the counters, including changes made in this unit of work.
	Counts() (*Counts, error)
}

// unconfiguredStore stands in for the stores when no database credentials are
// configured, so that the server can still start.
type unconfiguredStore struct{}

// UnconfiguredStore returns a Store and PollStore whose operations all fail with ErrStoreNotConfigured.
func UnconfiguredStore() interface {
	Store
	PollStore
} {
	return unconfiguredStore{}
}

func (unconfiguredStore) Connect() error                 { return nil }
func (unconfiguredStore) Ping(ctx context.Context) error { return ErrStoreNotConfigured }

func (unconfiguredStore) ListProposals(ctx context.Context, q ProposalQuery) ([]*Proposal, error) {
	return nil, ErrStoreNotConfigured
}

func (unconfiguredStore) FindProposal(ctx context.Context, id int64) (*Proposal, error) {
	return nil, ErrStoreNotConfigured
}

func (unconfiguredStore) InsertProposal(ctx context.Context, p *Proposal) error {
	return ErrStoreNotConfigured
}

func (unconfiguredStore) IncrementProposalVote(ctx context.Context, id int64, vt VoteType) (*Proposal, error) {
	return nil, ErrStoreNotConfigured
}

func (unconfiguredStore) ListComments(ctx context.Context, proposalID int64) ([]*Comment, error) {
	return nil, ErrStoreNotConfigured
}

func (unconfiguredStore) InsertComment(ctx context.Context, c *Comment) error {
	return ErrStoreNotConfigured
}

func (unconfiguredStore) PollCounts(ctx context.Context) (*Counts, error) {
	return nil, ErrStoreNotConfigured
}

func (unconfiguredStore) FindChoice(ctx context.Context, userID string) (Choice, error) {
	return ChoiceNone, ErrStoreNotConfigured
}

func (unconfiguredStore) RunPollTx(ctx context.Context, userID string, fn func(PollTx) error) error {
	return ErrStoreNotConfigured
}
