package ranking

import (
	"fmt"
	"sort"
	"time"
)

const (
	// HotGravity and HotTimebase tune the decay of the Hot order.
	HotGravity  = 1.8
	HotTimebase = 2
)

// An Order is a way of sorting proposals.
type Order string

const (
	Newest    Order = "newest"
	Oldest    Order = "oldest"
	Top       Order = "top"
	Downvoted Order = "downvoted"
	Hot       Order = "hot"
)

// ParseOrder parses an order name, defaulting to Newest when empty.
func ParseOrder(s string) (Order, error) {
	switch o := Order(s); o {
	case "":
		return Newest, nil
	case Newest, Oldest, Top, Downvoted, Hot:
		return o, nil
	default:
		return "", fmt.Errorf("unknown order %q", s)
	}
}

// Sortable is an item that can be sorted with any Order.
type Sortable interface {
	Rankable
	GetID() int64
	GetUpvotes() int64
	GetDownvotes() int64
}

// Sort sorts items in place. Ties are broken by recency, then by id.
func Sort[T Sortable](items []T, order Order, referenceTime time.Time) {
	newer := func(a, b T) bool {
		if !a.Age().Equal(b.Age()) {
			return a.Age().After(b.Age())
		}
		return a.GetID() > b.GetID()
	}

	var less func(a, b T) bool
	switch order {
	case Oldest:
		less = func(a, b T) bool { return newer(b, a) }
	case Top:
		less = func(a, b T) bool {
			if a.GetUpvotes() != b.GetUpvotes() {
				return a.GetUpvotes() > b.GetUpvotes()
			}
			return newer(a, b)
		}
	case Downvoted:
		less = func(a, b T) bool {
			if a.GetDownvotes() != b.GetDownvotes() {
				return a.GetDownvotes() > b.GetDownvotes()
			}
			return newer(a, b)
		}
	case Hot:
		ranks := make(map[int64]float64, len(items))
		for _, it := range items {
			ranks[it.GetID()] = Rank(it, HotGravity, HotTimebase, referenceTime)
		}
		less = func(a, b T) bool {
			ra, rb := ranks[a.GetID()], ranks[b.GetID()]
			if ra != rb {
				return ra > rb
			}
			return newer(a, b)
		}
	default:
		less = newer
	}

	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
}
