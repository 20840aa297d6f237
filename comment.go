package ideabox

import (
	"strings"
	"time"
)

// A Comment is immutable once stored. UserName and Text are nullable in the
// comments relation.
type Comment struct {
	ID         int64     `db:"id" json:"id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	ProposalID int64     `db:"proposal_id" json:"proposal_id"`
	UserName   *string   `db:"user_name" json:"user_name"`
	Text       *string   `db:"text" json:"text"`

	// HTML is the text rendered as restricted markdown, filled when serving.
	HTML string `db:"-" json:"html,omitempty"`
}

// NewComment builds a comment for a given proposal. A blank userName is stored as null.
func NewComment(proposalID int64, text string, userName string) *Comment {
	c := &Comment{
		ProposalID: proposalID,
		CreatedAt:  NowFunc(),
	}

	text = strings.TrimSpace(text)
	c.Text = &text

	userName = strings.TrimSpace(userName)
	if userName != "" {
		c.UserName = &userName
	}

	return c
}

func (c *Comment) render() {
	if c.Text == nil {
		return
	}
	c.HTML = renderText(*c.Text)
}
