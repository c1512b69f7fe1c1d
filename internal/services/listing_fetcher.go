package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/codyseavey/card-valuer/internal/metrics"
	"github.com/codyseavey/card-valuer/internal/models"
)

const (
	renderDefaultPageTimeout = 15 * time.Second
	renderProbeTimeout       = 5 * time.Second
	renderCreateTimeout      = 30 * time.Second
)

var (
	// ErrFetchFault marks navigation, timeout and session failures. Zero
	// listings is never a fault.
	ErrFetchFault = errors.New("listing fetch fault")

	// ErrSessionUnavailable is returned when a fetch session cannot be created
	ErrSessionUnavailable = errors.New("fetch session unavailable")
)

// ListingSession is one long-lived fetch session (a browser tab behind the
// render service). A session is owned by exactly one worker.
type ListingSession interface {
	Fetch(ctx context.Context, query string, limit int) (models.FetchResult, error)
	Alive(ctx context.Context) bool
	Close() error
}

// SessionFactory creates a fresh session
type SessionFactory func(ctx context.Context) (ListingSession, error)

// RenderClient talks to the page-rendering sidecar that owns the browser
// sessions and extracts listing text from completed-sale result pages
type RenderClient struct {
	baseURL     string
	client      *http.Client
	limiter     *rate.Limiter
	pageTimeout time.Duration
}

type renderSearchRequest struct {
	Query     string `json:"query"`
	Limit     int    `json:"limit"`
	TimeoutMS int64  `json:"timeout_ms"`
}

type renderSessionResponse struct {
	ID string `json:"id"`
}

// NewRenderClient creates a client for the render service at baseURL.
// requestsPerSecond <= 0 disables pacing.
func NewRenderClient(baseURL string, pageTimeout time.Duration, requestsPerSecond float64) *RenderClient {
	if pageTimeout <= 0 {
		pageTimeout = renderDefaultPageTimeout
	}
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}

	return &RenderClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		// page load + element wait, plus slack for the sidecar itself
		client:      &http.Client{Timeout: 2*pageTimeout + 5*time.Second},
		limiter:     rate.NewLimiter(limit, 1),
		pageTimeout: pageTimeout,
	}
}

// NewSession opens a session on the render service. It satisfies SessionFactory.
func (c *RenderClient) NewSession(ctx context.Context) (ListingSession, error) {
	ctx, cancel := context.WithTimeout(ctx, renderCreateTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sessions", nil)
	if err != nil {
		return nil, fmt.Errorf("create session request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrSessionUnavailable, resp.StatusCode)
	}

	var out renderSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode session response: %v", ErrSessionUnavailable, err)
	}
	if out.ID == "" {
		return nil, fmt.Errorf("%w: empty session id", ErrSessionUnavailable)
	}

	return &renderSession{client: c, id: out.ID}, nil
}

type renderSession struct {
	client *RenderClient
	id     string
}

func (s *renderSession) sessionURL(suffix string) string {
	return s.client.baseURL + "/sessions/" + url.PathEscape(s.id) + suffix
}

// Fetch renders the completed-sales results page for query
func (s *renderSession) Fetch(ctx context.Context, query string, limit int) (models.FetchResult, error) {
	if err := s.client.limiter.Wait(ctx); err != nil {
		return models.FetchResult{}, fmt.Errorf("%w: rate limiter: %v", ErrFetchFault, err)
	}

	start := time.Now()
	defer func() { metrics.FetchDuration.Observe(time.Since(start).Seconds()) }()

	body, err := json.Marshal(renderSearchRequest{
		Query:     query,
		Limit:     limit,
		TimeoutMS: s.client.pageTimeout.Milliseconds(),
	})
	if err != nil {
		return models.FetchResult{}, fmt.Errorf("encode search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.sessionURL("/search"), bytes.NewReader(body))
	if err != nil {
		return models.FetchResult{}, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.client.Do(req)
	if err != nil {
		return models.FetchResult{}, fmt.Errorf("%w: %v", ErrFetchFault, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.FetchResult{}, fmt.Errorf("%w: render service status %d", ErrFetchFault, resp.StatusCode)
	}

	var out models.FetchResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.FetchResult{}, fmt.Errorf("%w: decode search response: %v", ErrFetchFault, err)
	}
	if out.Listings == nil {
		out.Listings = []models.RawListing{}
	}
	return out, nil
}

// Alive is the lightweight liveness probe
func (s *renderSession) Alive(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, renderProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.sessionURL("/health"), nil)
	if err != nil {
		return false
	}
	resp, err := s.client.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Close releases the browser session on the render service
func (s *renderSession) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), renderProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.sessionURL(""), nil)
	if err != nil {
		return err
	}
	resp, err := s.client.client.Do(req)
	if err != nil {
		return fmt.Errorf("close session %s: %w", s.id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("close session %s: status %d", s.id, resp.StatusCode)
	}
	return nil
}
