package webhook

import (
	"math/rand/v2"
	"net/http"
	"time"
)

// DefaultMaxAttempts counts the first try.
const DefaultMaxAttempts = 5

// backoff doubles the wait after each failure, from base up to ceiling,
// spread by ±jitter.
type backoff struct {
	base    time.Duration
	ceiling time.Duration
	jitter  float64
	rnd     func() float64
}

var defaultBackoff = backoff{
	base:    time.Second,
	ceiling: 2 * time.Minute,
	jitter:  0.2,
	rnd:     rand.Float64,
}

// after returns the wait following the given number of failed attempts.
func (b backoff) after(failures int) time.Duration {
	d := b.base
	for i := 1; i < failures && d < b.ceiling; i++ {
		d *= 2
	}
	d = min(d, b.ceiling)
	spread := (b.rnd()*2 - 1) * b.jitter
	return time.Duration(float64(d) * (1 + spread))
}

// retryable reports whether a delivery answered with status may succeed on
// a later attempt. Status 0 stands for a transport error.
func retryable(status int) bool {
	switch {
	case status == 0, status >= http.StatusInternalServerError:
		return true
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return true
	}
	return false
}
