package googledrive

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/googleapi"
)

// RetryPolicy controls the exponential backoff applied to every Drive call.
type RetryPolicy struct {
	Attempts   int
	Initial    time.Duration
	Multiplier float64
	Max        time.Duration
}

// DefaultRetryPolicy makes up to three attempts. gax applies full jitter, so the
// pause before the second attempt is random in (0, 1s] and before the third in (0, 2s].
var DefaultRetryPolicy = RetryPolicy{
	Attempts:   3,
	Initial:    1 * time.Second,
	Multiplier: 2,
	Max:        30 * time.Second,
}

type sleepFunc func(ctx context.Context, d time.Duration) error

// executeWithRetry runs call until it succeeds, fails permanently, or the policy is exhausted.
func executeWithRetry[T any](ctx context.Context, policy RetryPolicy, sleep sleepFunc, call func() (T, error)) (T, error) {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}
	bo := gax.Backoff{
		Initial:    policy.Initial,
		Max:        policy.Max,
		Multiplier: policy.Multiplier,
	}

	var (
		result T
		err    error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err = call()
		if err == nil || !isRetryable(err) || attempt == attempts {
			return result, err
		}
		if serr := sleep(ctx, bo.Pause()); serr != nil {
			return result, err
		}
	}
	return result, err
}

// isRetryable reports whether err is a transient failure worth another attempt.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		switch {
		case gErr.Code == http.StatusTooManyRequests:
			return true
		case gErr.Code >= 500:
			return true
		case gErr.Code == http.StatusForbidden:
			for _, item := range gErr.Errors {
				if item.Reason == "rateLimitExceeded" || item.Reason == "userRateLimitExceeded" {
					return true
				}
			}
		}
		return false
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
