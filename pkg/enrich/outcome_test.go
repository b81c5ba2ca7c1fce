package enrich

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type rateLimitErr struct{ after time.Duration }

func (e *rateLimitErr) Error() string             { return "rate limited" }
func (e *rateLimitErr) RetryAfter() time.Duration { return e.after }

func TestOutcome(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		o := Success(7, 42)
		assert.True(t, o.IsSuccess())
		assert.Equal(t, int64(7), o.PersonID())
		assert.Equal(t, 42, o.Value())
		assert.NoError(t, o.Err())
		_, limited := o.RateLimited()
		assert.False(t, limited)
	})

	t.Run("failure", func(t *testing.T) {
		cause := errors.New("boom")
		o := Fail(7, cause)
		assert.False(t, o.IsSuccess())
		assert.False(t, o.IsCancel())
		assert.ErrorIs(t, o.Err(), cause)
	})

	t.Run("wrapped rate limit", func(t *testing.T) {
		o := Fail(7, fmt.Errorf("outer: %w", &rateLimitErr{after: 3 * time.Second}))
		after, limited := o.RateLimited()
		assert.True(t, limited)
		assert.Equal(t, 3*time.Second, after)
	})

	t.Run("cancel is never rate limited", func(t *testing.T) {
		o := Cancel(7, &rateLimitErr{after: time.Second})
		assert.True(t, o.IsCancel())
		_, limited := o.RateLimited()
		assert.False(t, limited)
	})
}

func TestFetchOutcome_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newFakeClient()
	c.fail = func(id int64) error { return context.Canceled }

	o := fetchOutcome(ctx, c, 1)
	assert.True(t, o.IsCancel())
}
