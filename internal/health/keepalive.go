package health

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Pinger periodically requests the health endpoint so a free-tier host does
// not put the process to sleep.
type Pinger struct {
	url      string
	interval time.Duration
	client   *http.Client
	log      *slog.Logger
}

func NewPinger(url string, interval time.Duration, log *slog.Logger) *Pinger {
	return &Pinger{
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: 30 * time.Second},
		log:      log,
	}
}

// Start runs the keep-alive loop until the context is cancelled.
func (p *Pinger) Start(ctx context.Context) {
	p.log.Info("keep-alive started", "url", p.url, "interval", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.ping(ctx); err != nil {
				p.log.Warn("keep-alive ping failed", "error", err)
			}
		}
	}
}

func (p *Pinger) ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	p.log.Debug("keep-alive ping ok")
	return nil
}
