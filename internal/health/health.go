// Package health implements the liveness endpoint and a couple of
// reachability probes (CheckOrigin, CheckDecisionCollaborator). Only
// Handler is wired into the service; no component calls the probes.
package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Handler serves GET /health -> 200 "OK" (spec §6).
func Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "OK")
}

// CheckOrigin fetches originURL (HEAD semantics via GET, body discarded) and
// returns nil if it answered 200, otherwise a descriptive error. Some
// origins don't support HEAD, so GET-and-discard is used uniformly.
func CheckOrigin(ctx context.Context, originURL string) error {
	if originURL == "" {
		return fmt.Errorf("no origin URL configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, originURL, nil)
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("origin unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("origin returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// CheckDecisionCollaborator verifies the decision collaborator base URL
// answers at all (any non-5xx status is treated as "reachable" since the
// decision endpoint itself requires a POST body this probe doesn't send).
func CheckDecisionCollaborator(ctx context.Context, decisionBaseURL string) error {
	if decisionBaseURL == "" {
		return fmt.Errorf("no decision URL configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, decisionBaseURL, nil)
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("decision collaborator unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 500 {
		return fmt.Errorf("decision collaborator returned HTTP %d", resp.StatusCode)
	}
	return nil
}
