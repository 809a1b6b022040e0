package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// run delivers queued events in order until Close.
func (p *Publisher) run() {
	defer close(p.done)

	p.logger.Info("webhook worker started", "target_host", p.host)
	for {
		select {
		case <-p.stop:
			return
		case d := <-p.queue:
			p.attempt(d)
		}
	}
}

// attempt posts d until it is accepted, rejected for good, or out of tries.
// Every try reuses the delivery id so receivers can deduplicate.
func (p *Publisher) attempt(d delivery) {
	for n := 1; ; n++ {
		began := time.Now()
		status, err := p.post(d)
		log := p.logger.With("delivery_id", d.id, "report_id", d.report, "attempt", n, "http_status", status)

		if err == nil {
			log.Info("webhook delivered", "duration", time.Since(began))
			return
		}

		final := n >= p.maxAttempts || !retryable(status)
		log.Warn("webhook delivery failed", "final", final, "error", err)
		if final || !p.sleep(p.backoff.after(n)) {
			return
		}
	}
}

// post sends one signed request and returns the response status, or 0 when
// no response arrived.
func (p *Publisher) post(d delivery) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(d.payload))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	unix := p.now().Unix()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(HeaderEvent, EventStatusChanged)
	req.Header.Set(HeaderDeliveryID, d.id)
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(unix, 10))
	req.Header.Set(HeaderSignature, p.signer.Sign(unix, d.payload))

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode/100 != 2 {
		return resp.StatusCode, fmt.Errorf("receiver answered %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}
