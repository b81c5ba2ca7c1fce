package enrich

import (
	"context"
	"errors"
	"time"
)

// RateLimitError is implemented by attribute client errors that carry a
// server-requested backoff. client.RateLimitedError satisfies it.
type RateLimitError interface {
	error
	RetryAfter() time.Duration
}

// Outcome is the result of fetching the attribute of one person.
type Outcome struct {
	personID  int64
	value     int
	err       error
	isSuccess bool
	isCancel  bool
}

// Success returns a successful outcome.
func Success(personID int64, value int) Outcome {
	return Outcome{personID: personID, value: value, isSuccess: true}
}

// Fail returns a failed outcome.
func Fail(personID int64, err error) Outcome {
	return Outcome{personID: personID, err: err}
}

// Cancel returns an outcome for a fetch abandoned because the run stopped.
func Cancel(personID int64, err error) Outcome {
	return Outcome{personID: personID, err: err, isCancel: true}
}

// fetchOutcome calls the client and folds its return values into an Outcome.
func fetchOutcome(ctx context.Context, c AttributeClient, personID int64) Outcome {
	value, err := c.FetchAttribute(ctx, personID)
	switch {
	case err == nil:
		return Success(personID, value)
	case ctx.Err() != nil:
		return Cancel(personID, err)
	default:
		return Fail(personID, err)
	}
}

func (o Outcome) PersonID() int64 { return o.personID }
func (o Outcome) Value() int      { return o.value }
func (o Outcome) Err() error      { return o.err }
func (o Outcome) IsSuccess() bool { return o.isSuccess }
func (o Outcome) IsCancel() bool  { return o.isCancel }

// RateLimited reports whether the failure asks for a backoff and for how long.
func (o Outcome) RateLimited() (time.Duration, bool) {
	if o.isSuccess || o.isCancel {
		return 0, false
	}
	var rl RateLimitError
	if errors.As(o.err, &rl) {
		return rl.RetryAfter(), true
	}
	return 0, false
}
