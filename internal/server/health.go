package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/quartz"
)

// WaitHealthy polls baseURL's /health endpoint every interval until it answers
// 200 OK. It gives up with the last failure when ctx ends. A probe cut short
// by ctx itself does not replace an earlier failure.
func WaitHealthy(ctx context.Context, clock quartz.Clock, baseURL string, interval time.Duration) error {
	client := &http.Client{Timeout: time.Second}
	ticker := clock.NewTicker(interval, "health")
	defer ticker.Stop()

	var last error
	for ctx.Err() == nil {
		err := probe(ctx, client, baseURL+"/health")
		if err == nil {
			return nil
		}
		if last == nil || !errors.Is(err, ctx.Err()) {
			last = err
		}
		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}
	if last == nil {
		return fmt.Errorf("waiting for %s: %w", baseURL, ctx.Err())
	}
	return fmt.Errorf("waiting for %s: %w (last error: %v)", baseURL, ctx.Err(), last)
}

func probe(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned %s", resp.Status)
	}
	return nil
}
