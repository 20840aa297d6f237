package ideabox

import (
	"encoding/json"
	"fmt"
)

// A Choice is a vote on the big issue poll. ChoiceNone means the identifier
// never voted.
type Choice string

const (
	ChoiceNone     Choice = ""
	ChoiceAgree    Choice = "agree"
	ChoiceDisagree Choice = "disagree"
)

// Choices lists every valid choice, in the order counters are reported.
var Choices = []Choice{ChoiceAgree, ChoiceDisagree}

func ParseChoice(s string) (Choice, error) {
	switch Choice(s) {
	case ChoiceAgree, ChoiceDisagree:
		return Choice(s), nil
	default:
		return ChoiceNone, fmt.Errorf("invalid choice %q", s)
	}
}

// MarshalJSON encodes ChoiceNone as null.
func (c Choice) MarshalJSON() ([]byte, error) {
	if c == ChoiceNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(c))
}

// BigIssueVote is the recorded choice of a single identifier.
type BigIssueVote struct {
	UserID string `db:"user_id" json:"user_id"`
	Choice Choice `db:"choice" json:"choice"`
}

// Counts is the aggregate of all live choices.
type Counts struct {
	Agree    int64 `json:"agree"`
	Disagree int64 `json:"disagree"`
}

// Get returns the counter of a choice.
func (c *Counts) Get(choice Choice) int64 {
	switch choice {
	case ChoiceAgree:
		return c.Agree
	case ChoiceDisagree:
		return c.Disagree
	}
	return 0
}

// Add adds delta to the counter of a choice, never going below zero.
func (c *Counts) Add(choice Choice, delta int64) {
	var n *int64
	switch choice {
	case ChoiceAgree:
		n = &c.Agree
	case ChoiceDisagree:
		n = &c.Disagree
	default:
		return
	}

	*n += delta
	if *n < 0 {
		*n = 0
	}
}
