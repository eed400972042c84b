package anilist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
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
	defaultBaseURL = "https://graphql.anilist.co"

	// perChunk is AniList's MediaListCollection page size ceiling.
	perChunk = 500
	// searchPageSize bounds title-search rescue results.
	searchPageSize = 10
)

const viewerQuery = `query {
  Viewer { id name }
}`

const libraryQuery = `query ($userName: String, $chunk: Int, $perChunk: Int) {
  MediaListCollection(userName: $userName, type: ANIME, chunk: $chunk, perChunk: $perChunk) {
    hasNextChunk
    lists {
      entries {
        status
        score(format: POINT_10_DECIMAL)
        progress
        notes
        updatedAt
        media {
          id
          idMal
          title { romaji english native }
          synonyms
          format
          episodes
          season
          seasonYear
        }
      }
    }
  }
}`

const searchQuery = `query ($search: String, $perPage: Int) {
  Page(page: 1, perPage: $perPage) {
    media(search: $search, type: ANIME) {
      id
      idMal
      title { romaji english native }
      synonyms
      format
      episodes
      season
      seasonYear
    }
  }
}`

const saveEntryMutation = `mutation ($mediaId: Int, $status: MediaListStatus, $progress: Int, $scoreRaw: Int, $notes: String) {
  SaveMediaListEntry(mediaId: $mediaId, status: $status, progress: $progress, scoreRaw: $scoreRaw, notes: $notes) {
    id
    status
  }
}`

// Account identifies the token's owner.
type Account struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Client wraps the AniList GraphQL API.
type Client struct {
	token        string
	baseURL      string
	userName     string
	syncComments bool
	httpClient   httpx.Doer
	retry        httpx.Retry
	logger       *slog.Logger
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

// New constructs an AniList client from the [anilist] config section.
// syncComments controls whether ApplyChanges writes the notes field.
func New(cfg config.AniList, syncComments bool, logger *slog.Logger, opts ...Option) *Client {
	timeout := httpx.DefaultTimeout
	if cfg.RequestTimeout > 0 {
		timeout = time.Duration(cfg.RequestTimeout) * time.Second
	}
	client := &Client{
		token:        strings.TrimSpace(cfg.Token),
		baseURL:      strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		userName:     strings.TrimSpace(cfg.UserName),
		syncComments: syncComments,
		httpClient:   &http.Client{Timeout: timeout},
		logger:       logging.WithComponent(logger, "anilist"),
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: timeout}
	}
	return client
}

// Viewer resolves the authenticated account.
func (c *Client) Viewer(ctx context.Context) (Account, error) {
	var payload struct {
		Viewer Account `json:"Viewer"`
	}
	if err := c.query(ctx, viewerQuery, nil, &payload); err != nil {
		return Account{}, services.Wrap(services.ErrRemoteLookup, "anilist", "viewer", "resolve account", err)
	}
	if payload.Viewer.Name == "" {
		return Account{}, services.Wrap(services.ErrRemoteLookup, "anilist", "viewer", "token resolved no account", nil)
	}
	return payload.Viewer, nil
}

// FetchLibrary walks the user's full anime list, chunk by chunk, and returns
// the catalog snapshot alongside the watch collection. Entries appearing on
// several lists (custom lists mirror status lists) collapse to their first
// occurrence.
func (c *Client) FetchLibrary(ctx context.Context) ([]catalog.TargetEntry, []watch.Entry, error) {
	if c.token == "" {
		return nil, nil, services.Wrap(services.ErrConfiguration, "anilist", "fetch library", "token required", nil)
	}
	userName := c.userName
	if userName == "" {
		account, err := c.Viewer(ctx)
		if err != nil {
			return nil, nil, err
		}
		userName = account.Name
	}

	var (
		records []catalog.TargetEntry
		entries []watch.Entry
		seen    = make(map[int]struct{})
	)
	for chunk := 1; ; chunk++ {
		var payload struct {
			Collection struct {
				HasNextChunk bool `json:"hasNextChunk"`
				Lists        []struct {
					Entries []listEntryPayload `json:"entries"`
				} `json:"lists"`
			} `json:"MediaListCollection"`
		}
		variables := map[string]any{
			"userName": userName,
			"chunk":    chunk,
			"perChunk": perChunk,
		}
		if err := c.query(ctx, libraryQuery, variables, &payload); err != nil {
			return nil, nil, services.Wrap(services.ErrRemoteLookup, "anilist", "fetch library",
				fmt.Sprintf("list chunk %d for %s", chunk, userName), err)
		}
		for _, list := range payload.Collection.Lists {
			for _, item := range list.Entries {
				if item.Media.ID <= 0 {
					continue
				}
				if _, dup := seen[item.Media.ID]; dup {
					continue
				}
				seen[item.Media.ID] = struct{}{}
				records = append(records, item.Media.targetEntry())
				entries = append(entries, item.watchEntry())
			}
		}
		if !payload.Collection.HasNextChunk {
			break
		}
	}
	c.logger.Info("fetched anilist library",
		logging.String("user", userName),
		logging.Int("entries", len(entries)))
	return records, entries, nil
}

// SearchTarget runs a title search for the match rescue path.
func (c *Client) SearchTarget(ctx context.Context, title string) ([]catalog.TargetEntry, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, nil
	}
	var payload struct {
		Page struct {
			Media []mediaPayload `json:"media"`
		} `json:"Page"`
	}
	variables := map[string]any{
		"search":  title,
		"perPage": searchPageSize,
	}
	if err := c.query(ctx, searchQuery, variables, &payload); err != nil {
		return nil, services.Wrap(services.ErrRemoteLookup, "anilist", "search",
			fmt.Sprintf("search %q", title), err)
	}
	results := make([]catalog.TargetEntry, 0, len(payload.Page.Media))
	for _, media := range payload.Page.Media {
		if media.ID <= 0 {
			continue
		}
		results = append(results, media.targetEntry())
	}
	return results, nil
}

// ApplyChanges writes each AniList-bound instruction through
// SaveMediaListEntry and returns how many landed. Zero score and zero
// progress are unset values, never written; notes ride along only when
// comment syncing is on and either side of the instruction actually carries
// one. The first failure stops the walk.
func (c *Client) ApplyChanges(ctx context.Context, instructions []watch.Instruction) (int, error) {
	applied := 0
	for _, instruction := range instructions {
		if instruction.Platform != watch.PlatformAniList {
			continue
		}
		mediaID := instruction.After.AniListID
		if mediaID <= 0 {
			c.logger.Warn("skipping instruction without anilist id",
				logging.String(logging.FieldEventType, "apply_skipped"),
				logging.String("title", instruction.After.Title))
			continue
		}
		list, ok := listFor(instruction.After.Status)
		if !ok {
			c.logger.Warn("skipping instruction with unmappable status",
				logging.String(logging.FieldEventType, "apply_skipped"),
				logging.Int("media_id", mediaID),
				logging.String("status", instruction.After.Status.String()))
			continue
		}
		variables := map[string]any{
			"mediaId": mediaID,
			"status":  list,
		}
		if instruction.After.Progress > 0 {
			variables["progress"] = instruction.After.Progress
		}
		if raw := scoreRaw(instruction.After.Score); raw > 0 {
			variables["scoreRaw"] = raw
		}
		if c.noteWorthWriting(instruction) {
			variables["notes"] = instruction.After.Comment
		}
		var payload struct {
			SaveMediaListEntry struct {
				ID int `json:"id"`
			} `json:"SaveMediaListEntry"`
		}
		if err := c.query(ctx, saveEntryMutation, variables, &payload); err != nil {
			return applied, services.Wrap(services.ErrRemoteApply, "anilist", "apply changes",
				fmt.Sprintf("save entry for media %d", mediaID), err)
		}
		applied++
		c.logger.Debug("updated anilist entry",
			logging.Int("media_id", mediaID),
			logging.String("status", list),
			logging.Int("progress", instruction.After.Progress))
	}
	return applied, nil
}

// noteWorthWriting reports whether the instruction should carry the notes
// field. Writing an empty note is only meaningful as a clear, so it needs a
// before-side comment to clear.
func (c *Client) noteWorthWriting(instruction watch.Instruction) bool {
	if !c.syncComments {
		return false
	}
	if instruction.After.Comment != "" {
		return true
	}
	return instruction.Before != nil && instruction.Before.Comment != ""
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// query posts one GraphQL document and decodes the data envelope into
// target. Transport retries live here; GraphQL-level errors are terminal.
func (c *Client) query(ctx context.Context, document string, variables map[string]any, target any) error {
	encoded, err := json.Marshal(graphQLRequest{Query: document, Variables: variables})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return c.retry.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(encoded))
		if err != nil {
			return fmt.Errorf("new request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", "application/json")
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
		var envelope graphQLResponse
		if err := json.Unmarshal(body, &envelope); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		if len(envelope.Errors) > 0 {
			return fmt.Errorf("graphql error: %s", strings.TrimSpace(envelope.Errors[0].Message))
		}
		if target == nil || len(envelope.Data) == 0 {
			return nil
		}
		if err := json.Unmarshal(envelope.Data, target); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
		return nil
	})
}
