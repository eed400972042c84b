package annict

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"anisync/internal/catalog"
	"anisync/internal/config"
	"anisync/internal/logging"
	"anisync/internal/services"
	"anisync/internal/services/httpx"
	"anisync/internal/watch"
)

const (
	defaultBaseURL = "https://api.annict.com"
	defaultPerPage = 50
)

// Client wraps the Annict v1 REST API.
type Client struct {
	token      string
	baseURL    string
	perPage    int
	httpClient httpx.Doer
	retry      httpx.Retry
	logger     *slog.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(doer httpx.Doer) Option {
	return func(c *Client) {
		if doer != nil {
			c.httpClient = doer
		}
	}
}

// WithRetry overrides the transient-failure retry policy.
func WithRetry(retry httpx.Retry) Option {
	return func(c *Client) {
		c.retry = retry
	}
}

// New constructs an Annict client from the [annict] config section.
func New(cfg config.Annict, logger *slog.Logger, opts ...Option) *Client {
	timeout := httpx.DefaultTimeout
	if cfg.RequestTimeout > 0 {
		timeout = time.Duration(cfg.RequestTimeout) * time.Second
	}
	client := &Client{
		token:      strings.TrimSpace(cfg.Token),
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		perPage:    cfg.PerPage,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.WithComponent(logger, "annict"),
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}
	if client.perPage <= 0 {
		client.perPage = defaultPerPage
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: timeout}
	}
	return client
}

// FetchLibrary lists every work on the user's five status shelves and
// returns the catalog records alongside the watch collection, both in the
// API's shelf-then-id order.
func (c *Client) FetchLibrary(ctx context.Context) ([]catalog.SourceEntry, []watch.Entry, error) {
	if c.token == "" {
		return nil, nil, services.Wrap(services.ErrConfiguration, "annict", "fetch library", "token required", nil)
	}
	var (
		records []catalog.SourceEntry
		entries []watch.Entry
	)
	for _, kind := range libraryStatusKinds {
		status := statusByKind[kind]
		page := 1
		for {
			result, err := c.fetchShelfPage(ctx, kind, page)
			if err != nil {
				return nil, nil, err
			}
			for _, work := range result.Works {
				if work.ID <= 0 {
					continue
				}
				records = append(records, work.sourceEntry())
				entries = append(entries, work.watchEntry(status))
			}
			if result.NextPage == nil || *result.NextPage <= page {
				break
			}
			page = *result.NextPage
		}
	}
	c.logger.Info("fetched annict library", logging.Int("works", len(entries)))
	return records, entries, nil
}

func (c *Client) fetchShelfPage(ctx context.Context, kind string, page int) (worksPage, error) {
	query := url.Values{}
	query.Set("filter_status", kind)
	query.Set("page", strconv.Itoa(page))
	query.Set("per_page", strconv.Itoa(c.perPage))
	query.Set("sort_id", "asc")

	var payload worksPage
	if err := c.getJSON(ctx, "/v1/me/works", query, &payload); err != nil {
		return worksPage{}, services.Wrap(services.ErrRemoteLookup, "annict", "fetch library",
			fmt.Sprintf("list %s works page %d", kind, page), err)
	}
	return payload, nil
}

// FetchSourceEntry resolves one work by id for the catalog fallback path.
// A work without a release date only resolves in relaxed mode.
func (c *Client) FetchSourceEntry(ctx context.Context, id int, relaxed bool) (catalog.SourceEntry, bool, error) {
	if id <= 0 {
		return catalog.SourceEntry{}, false, nil
	}
	query := url.Values{}
	query.Set("filter_ids", strconv.Itoa(id))
	query.Set("per_page", "1")

	var payload worksPage
	if err := c.getJSON(ctx, "/v1/works", query, &payload); err != nil {
		return catalog.SourceEntry{}, false, services.Wrap(services.ErrRemoteLookup, "annict", "fetch work",
			fmt.Sprintf("work %d", id), err)
	}
	if len(payload.Works) == 0 {
		return catalog.SourceEntry{}, false, nil
	}
	entry := payload.Works[0].sourceEntry()
	if entry.StartDate.IsZero() {
		entry.Relaxed = true
		if !relaxed {
			return catalog.SourceEntry{}, false, nil
		}
	}
	return entry, true, nil
}

// FetchEpisodeTotal reports a work's episode count, zero when unknown.
func (c *Client) FetchEpisodeTotal(ctx context.Context, sourceID int) (int, error) {
	entry, ok, err := c.FetchSourceEntry(ctx, sourceID, true)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return entry.EpisodeCount, nil
}

// ApplyChanges writes each Annict-bound instruction as a status update and
// returns how many landed. The first failure stops the walk; instructions
// for other platforms or without a usable work id are skipped.
func (c *Client) ApplyChanges(ctx context.Context, instructions []watch.Instruction) (int, error) {
	applied := 0
	for _, instruction := range instructions {
		if instruction.Platform != watch.PlatformAnnict {
			continue
		}
		workID := instruction.After.AnnictID
		if workID <= 0 {
			c.logger.Warn("skipping instruction without annict id",
				logging.String(logging.FieldEventType, "apply_skipped"),
				logging.String("title", instruction.After.Title))
			continue
		}
		kind, ok := kindFor(instruction.After.Status)
		if !ok {
			c.logger.Warn("skipping instruction with unmappable status",
				logging.String(logging.FieldEventType, "apply_skipped"),
				logging.Int("work_id", workID),
				logging.String("status", instruction.After.Status.String()))
			continue
		}
		if err := c.postStatus(ctx, workID, kind); err != nil {
			return applied, services.Wrap(services.ErrRemoteApply, "annict", "apply changes",
				fmt.Sprintf("set status for work %d", workID), err)
		}
		applied++
		c.logger.Debug("updated annict status",
			logging.Int("work_id", workID),
			logging.String("kind", kind))
	}
	return applied, nil
}

func (c *Client) postStatus(ctx context.Context, workID int, kind string) error {
	form := url.Values{}
	form.Set("work_id", strconv.Itoa(workID))
	form.Set("kind", kind)
	encoded := form.Encode()

	return c.retry.Do(ctx, func(ctx context.Context) error {
		endpoint, err := url.JoinPath(c.baseURL, "/v1/me/statuses")
		if err != nil {
			return fmt.Errorf("build url: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(encoded))
		if err != nil {
			return fmt.Errorf("new request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if runID, ok := services.RunIDFromContext(ctx); ok {
			req.Header.Set("X-Request-ID", runID)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("send request: %w", err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		if resp.StatusCode >= http.StatusMultipleChoices {
			return httpx.NewStatusError(resp.StatusCode, string(body), resp.Header.Get("Retry-After"))
		}
		return nil
	})
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, target any) error {
	return c.retry.Do(ctx, func(ctx context.Context) error {
		endpoint, err := url.JoinPath(c.baseURL, path)
		if err != nil {
			return fmt.Errorf("build url: %w", err)
		}
		if len(query) > 0 {
			endpoint += "?" + query.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("new request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")
		if runID, ok := services.RunIDFromContext(ctx); ok {
			req.Header.Set("X-Request-ID", runID)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("send request: %w", err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		if resp.StatusCode >= http.StatusMultipleChoices {
			return httpx.NewStatusError(resp.StatusCode, string(body), resp.Header.Get("Retry-After"))
		}
		if err := json.Unmarshal(body, target); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	})
}
