// Package lockout throttles credential guessing per account. Counters live
// on the account row so every server process sees the same state, and all
// updates are single conditional statements in the backing store.
package lockout

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/dropkeeper/internal/common"
)

const (
	DefaultMaxAttempts = 5
	DefaultWindow      = 60 * time.Second
)

// Store is the slice of the journalists repository the tracker needs.
type Store interface {
	ReserveAttempt(ctx context.Context, username string, now, cutoff time.Time, max int) (int, error)
	RecordFailure(ctx context.Context, username string, now, cutoff time.Time) (int, error)
	ResetAttempts(ctx context.Context, username string) error
	Attempts(ctx context.Context, username string) (int, time.Time, error)
}

type Tracker struct {
	store       Store
	maxAttempts int
	window      time.Duration
	now         func() time.Time
}

type Option func(*Tracker)

func WithMaxAttempts(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.maxAttempts = n
		}
	}
}

func WithWindow(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.window = d
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

func NewTracker(store Store, opts ...Option) *Tracker {
	t := &Tracker{
		store:       store,
		maxAttempts: DefaultMaxAttempts,
		window:      DefaultWindow,
		now:         time.Now,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *Tracker) MaxAttempts() int      { return t.maxAttempts }
func (t *Tracker) Window() time.Duration { return t.window }

func (t *Tracker) bounds() (now, cutoff time.Time) {
	now = t.now().UTC()
	return now, now.Add(-t.window)
}

// Acquire counts one attempt for username before any factor is checked.
// It returns common.ErrLocked, leaving the counter untouched, when the
// account already holds MaxAttempts failures inside the window. A later
// RecordSuccess undoes the count for attempts that turn out valid.
func (t *Tracker) Acquire(ctx context.Context, username string) error {
	now, cutoff := t.bounds()
	_, err := t.store.ReserveAttempt(ctx, username, now, cutoff, t.maxAttempts)
	return err
}

func (t *Tracker) IsLocked(ctx context.Context, username string) (bool, error) {
	n, last, err := t.store.Attempts(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		return false, err
	}
	_, cutoff := t.bounds()
	return n >= t.maxAttempts && !last.IsZero() && !last.Before(cutoff), nil
}

// RecordFailure counts a failure outside of Acquire and reports whether the
// account is now locked.
func (t *Tracker) RecordFailure(ctx context.Context, username string) (bool, error) {
	now, cutoff := t.bounds()
	n, err := t.store.RecordFailure(ctx, username, now, cutoff)
	if err != nil {
		return false, err
	}
	return n >= t.maxAttempts, nil
}

func (t *Tracker) RecordSuccess(ctx context.Context, username string) error {
	return t.store.ResetAttempts(ctx, username)
}
