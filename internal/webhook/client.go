package webhook

import (
	"net/http"
	"time"
)

// Headers set on every delivery.
const (
	HeaderSignature  = "X-ATSPro-Signature"
	HeaderTimestamp  = "X-ATSPro-Timestamp"
	HeaderDeliveryID = "X-ATSPro-Delivery-Id"
	HeaderEvent      = "X-ATSPro-Event"
)

// EventStatusChanged is the only event type delivered.
const EventStatusChanged = "report.status_changed"

const (
	attemptTimeout = 15 * time.Second
	userAgent      = "ATSPro-Webhook/1.0"
)

// newHTTPClient returns a client with short connection timeouts. Redirects
// are returned to the caller as-is so a 3xx counts as a failed attempt.
func newHTTPClient() *http.Client {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.TLSHandshakeTimeout = 5 * time.Second
	t.ResponseHeaderTimeout = 10 * time.Second
	t.MaxIdleConnsPerHost = 2
	t.Proxy = nil

	return &http.Client{
		Timeout:   attemptTimeout,
		Transport: t,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
