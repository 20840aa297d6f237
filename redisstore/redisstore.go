// Package redisstore keeps the big issue poll in Redis: the counters in one hash
// and the choice of every identifier in another.
package redisstore

import (
	"context"
	"errors"

	"github.com/go-redis/redis"
	"github.com/jhchabran/ideabox"
	"github.com/mitchellh/mapstructure"
)

const (
	countsKey  = "ideabox:bigissue:counts"
	choicesKey = "ideabox:bigissue:choices"

	maxTxAttempts = 50
)

// ErrContention is returned when a vote could not be applied because the
// poll kept being modified concurrently.
var ErrContention = errors.New("too many concurrent poll updates")

// A RedisStore implements ideabox.PollStore.
type RedisStore struct {
	opts   *redis.Options
	client *redis.Client
}

func New(addr string) *RedisStore {
	return &RedisStore{opts: &redis.Options{Addr: addr}}
}

// Connect creates the client and checks the server answers. Calling it on a
// connected store does nothing.
func (s *RedisStore) Connect() error {
	if s.client != nil {
		return nil
	}

	client := redis.NewClient(s.opts)
	if err := client.Ping().Err(); err != nil {
		client.Close()
		return err
	}

	s.client = client
	return nil
}

func (s *RedisStore) Client() *redis.Client {
	return s.client
}

func (s *RedisStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *RedisStore) PollCounts(ctx context.Context) (*ideabox.Counts, error) {
	return readCounts(s.client.WithContext(ctx))
}

func (s *RedisStore) FindChoice(ctx context.Context, userID string) (ideabox.Choice, error) {
	return readChoice(s.client.WithContext(ctx), userID)
}

// RunPollTx reads the poll under WATCH and writes the changes made by fn in a
// MULTI/EXEC block. The whole unit of work is retried when the watched keys
// were modified in the meantime, so fn may be called more than once.
func (s *RedisStore) RunPollTx(ctx context.Context, userID string, fn func(ideabox.PollTx) error) error {
	client := s.client.WithContext(ctx)

	for i := 0; i < maxTxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := client.Watch(func(tx *redis.Tx) error {
			ptx, err := newPollTx(tx, userID)
			if err != nil {
				return err
			}

			if err := fn(ptx); err != nil {
				return err
			}
			if !ptx.dirty {
				return nil
			}

			_, err = tx.Pipelined(func(pipe redis.Pipeliner) error {
				if ptx.choice != ideabox.ChoiceNone {
					pipe.HSet(choicesKey, userID, string(ptx.choice))
				}
				pipe.HMSet(countsKey, map[string]interface{}{
					string(ideabox.ChoiceAgree):    ptx.counts.Agree,
					string(ideabox.ChoiceDisagree): ptx.counts.Disagree,
				})
				return nil
			})
			return err
		}, countsKey, choicesKey)

		if err == redis.TxFailedErr {
			continue
		}
		return err
	}

	return ErrContention
}

type cmdable interface {
	HGet(key, field string) *redis.StringCmd
	HGetAll(key string) *redis.StringStringMapCmd
}

func readChoice(c cmdable, userID string) (ideabox.Choice, error) {
	v, err := c.HGet(choicesKey, userID).Result()
	if err == redis.Nil {
		return ideabox.ChoiceNone, nil
	}
	if err != nil {
		return ideabox.ChoiceNone, err
	}

	return ideabox.ParseChoice(v)
}

func readCounts(c cmdable) (*ideabox.Counts, error) {
	fields, err := c.HGetAll(countsKey).Result()
	if err != nil {
		return nil, err
	}

	return decodeCounts(fields)
}

// decodeCounts reads the counters hash, whose fields are named after the choices.
// Missing fields are zero.
func decodeCounts(fields map[string]string) (*ideabox.Counts, error) {
	counts := &ideabox.Counts{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           counts,
	})
	if err != nil {
		return nil, err
	}

	if err := dec.Decode(fields); err != nil {
		return nil, err
	}

	return counts, nil
}

// pollTx buffers the changes of a unit of work, which are written all at once
// when it completes. Counts are written as absolute values computed from the
// watched reads.
type pollTx struct {
	choice ideabox.Choice
	counts ideabox.Counts
	dirty  bool
}

func newPollTx(tx *redis.Tx, userID string) (*pollTx, error) {
	choice, err := readChoice(tx, userID)
	if err != nil {
		return nil, err
	}
	counts, err := readCounts(tx)
	if err != nil {
		return nil, err
	}

	return &pollTx{choice: choice, counts: *counts}, nil
}

func (tx *pollTx) Choice() (ideabox.Choice, error) {
	return tx.choice, nil
}

func (tx *pollTx) SetChoice(c ideabox.Choice) error {
	tx.choice = c
	tx.dirty = true
	return nil
}

func (tx *pollTx) AdjustCount(c ideabox.Choice, delta int64) error {
	tx.counts.Add(c, delta)
	tx.dirty = true
	return nil
}

func (tx *pollTx) Counts() (*ideabox.Counts, error) {
	counts := tx.counts
	return &counts, nil
}
