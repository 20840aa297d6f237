package ideabox

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jhchabran/ideabox/ranking"
)

// MaxProposalLength is the maximum number of characters of a proposal text.
const MaxProposalLength = 500

type Proposal struct {
	ID        int64     `db:"id" json:"id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	Text      string    `db:"text" json:"text"`
	Upvotes   int64     `db:"upvotes" json:"upvotes"`
	Downvotes int64     `db:"downvotes" json:"downvotes"`
}

// VoteType is the direction of a vote on a proposal.
type VoteType string

const (
	VoteUp   VoteType = "up"
	VoteDown VoteType = "down"
)

func ParseVoteType(s string) (VoteType, error) {
	switch VoteType(s) {
	case VoteUp, VoteDown:
		return VoteType(s), nil
	default:
		return "", fmt.Errorf("invalid vote type %q", s)
	}
}

// ProposalQuery filters and orders a listing of proposals. A zero PerPage
// disables pagination.
type ProposalQuery struct {
	Search  string
	Order   ranking.Order
	Page    int
	PerPage int
}

func NewProposal(text string) *Proposal {
	return &Proposal{
		Text:      text,
		CreatedAt: NowFunc(),
	}
}

// NormalizeProposalText trims the text and checks it is neither blank nor too long.
func NormalizeProposalText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("text is required")
	}
	if utf8.RuneCountInString(text) > MaxProposalLength {
		return "", fmt.Errorf("text must be at most %d characters", MaxProposalLength)
	}

	return text, nil
}

func (p *Proposal) GetScore() int64 {
	return p.Upvotes - p.Downvotes
}

func (p *Proposal) Age() time.Time {
	return p.CreatedAt
}

func (p *Proposal) GetID() int64        { return p.ID }
func (p *Proposal) GetUpvotes() int64   { return p.Upvotes }
func (p *Proposal) GetDownvotes() int64 { return p.Downvotes }
