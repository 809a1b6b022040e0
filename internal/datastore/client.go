package datastore

import (
	"net/http"
	"time"
)

// DefaultTimeout bounds one Data API call when DATA_API_TIMEOUT is unset.
const DefaultTimeout = 10 * time.Second

// NewHTTPClient returns the client used for Data API calls. Header and
// handshake deadlines sit below timeout so a stalled remote is abandoned
// quickly and the operation falls back to the local store.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.TLSHandshakeTimeout = min(5*time.Second, timeout)
	t.ResponseHeaderTimeout = timeout * 4 / 5
	t.MaxIdleConnsPerHost = 10

	return &http.Client{
		Timeout:   timeout,
		Transport: t,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
