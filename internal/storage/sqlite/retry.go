package sqlite

import (
	"math/rand/v2"
	"strings"
	"time"
)

// backoff schedules retries for sqlite write contention. The writer
// lock is short-lived, so a handful of doubling delays with jitter
// rides out concurrent ingestion bursts.
type backoff struct {
	attempts int
	base     time.Duration
	jitter   float64
	sleep    func(time.Duration)
}

func defaultBackoff() backoff {
	return backoff{
		attempts: 7,
		base:     50 * time.Millisecond,
		jitter:   0.25,
		sleep:    time.Sleep,
	}
}

// withBusyRetry runs op, retrying while sqlite reports the database
// locked. Any other error returns immediately.
func withBusyRetry(op func() error) error {
	return defaultBackoff().run(op)
}

func (b backoff) run(op func() error) error {
	err := op()
	for attempt := 1; attempt <= b.attempts && busyErr(err); attempt++ {
		delay := b.base << (attempt - 1)
		b.sleep(delay + time.Duration(float64(delay)*rand.Float64()*b.jitter))
		err = op()
	}
	return err
}

func busyErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "sqlite_busy")
}
