package storage

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryOnConflict wraps a write transaction body, retrying with
// exponential backoff until it succeeds or maxElapsed passes (spec §4.4
// "Conflicts ... fail at commit; caller retries"). Every non-nil error
// from body is retried, not only commit conflicts; an error wrapped in
// backoff.Permanent ends the retries at once. body must begin and
// commit its own transaction via db.Begin/Commit; it is re-invoked from
// scratch on each retry since a failed commit's writes are discarded.
func RetryOnConflict(maxElapsed time.Duration, body func() error) error {
	bo := backoff.NewExponentialBackOff()
	if maxElapsed > 0 {
		bo.MaxElapsedTime = maxElapsed
	}
	return backoff.Retry(body, bo)
}
