// Package archive downloads a player's games from the chess.com public API.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/freeeve/blunderboard/internal/eco"
	"github.com/freeeve/blunderboard/internal/ingest"
)

// ErrUpstreamFetch is returned when the upstream API cannot be reached or
// answers with something unusable.
var ErrUpstreamFetch = errors.New("error fetching data from chess.com")

// defaultMaxBodyBytes bounds a single archive download.
const defaultMaxBodyBytes = 64 << 20

// Game is one game from a player's archive.
type Game struct {
	Headers map[string]string
	Moves   []string // mainline, UCI
	Opening *eco.Opening
}

// Config configures a Client.
type Config struct {
	BaseURL     string        // default https://api.chess.com/pub
	UserAgent   string        // sent on every request
	Timeout     time.Duration // per request (default 15s)
	Concurrency int           // archive downloads in flight (default 4)
	Cache       BodyCache     // optional archive body cache
	CacheTTL    time.Duration // default 1h
	MaxBody     int64         // largest accepted response body (default 64MB)
	Openings    *eco.Book     // optional opening classifier
	HTTPClient  *http.Client
	Logger      zerolog.Logger
}

// Client fetches player archives.
type Client struct {
	cfg  Config
	http *http.Client
	log  zerolog.Logger
}

// NewClient creates a Client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.chess.com/pub"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 4
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = time.Hour
	}
	if cfg.MaxBody <= 0 {
		cfg.MaxBody = defaultMaxBodyBytes
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, http: hc, log: cfg.Logger}
}

type archivesResponse struct {
	Archives []string `json:"archives"`
}

// Games returns every game in the player's monthly archives, oldest archive
// first and in file order within an archive.
func (c *Client) Games(ctx context.Context, username string) ([]Game, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return nil, fmt.Errorf("%w: empty username", ErrUpstreamFetch)
	}

	listURL := fmt.Sprintf("%s/player/%s/games/archives", c.cfg.BaseURL, url.PathEscape(username))
	body, err := c.get(ctx, listURL)
	if err != nil {
		return nil, err
	}
	var list archivesResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("%w: decode archive list: %v", ErrUpstreamFetch, err)
	}

	start := time.Now()
	perArchive := make([][]Game, len(list.Archives))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for i, archiveURL := range list.Archives {
		g.Go(func() error {
			games, err := c.archiveGames(gctx, archiveURL)
			if err != nil {
				return err
			}
			perArchive[i] = games
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Game
	for _, games := range perArchive {
		out = append(out, games...)
	}

	c.log.Info().
		Str("username", username).
		Int("archives", len(list.Archives)).
		Int("games", len(out)).
		Dur("elapsed", time.Since(start)).
		Msg("fetched archives")

	return out, nil
}

// archiveGames downloads and parses one monthly archive.
func (c *Client) archiveGames(ctx context.Context, archiveURL string) ([]Game, error) {
	pgnText, err := c.archivePGN(ctx, archiveURL)
	if err != nil {
		return nil, err
	}

	parsed, err := ingest.ReadAll(ctx, strings.NewReader(pgnText))
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrUpstreamFetch, archiveURL, err)
	}

	games := make([]Game, 0, len(parsed))
	for _, p := range parsed {
		games = append(games, Game{
			Headers: p.Headers,
			Moves:   p.UCIMoves(),
			Opening: c.cfg.Openings.Classify(p.Moves),
		})
	}
	return games, nil
}

// archivePGN returns the PGN export of an archive, from cache when
// possible. Cache failures only cost a download.
func (c *Client) archivePGN(ctx context.Context, archiveURL string) (string, error) {
	key := cacheKey(archiveURL)
	if c.cfg.Cache != nil {
		body, ok, err := c.cfg.Cache.Get(ctx, key)
		if err != nil {
			c.log.Warn().Err(err).Str("archive", archiveURL).Msg("archive cache read failed")
		} else if ok {
			return body, nil
		}
	}

	body, err := c.get(ctx, strings.TrimRight(archiveURL, "/")+"/pgn")
	if err != nil {
		return "", err
	}

	if c.cfg.Cache != nil {
		if err := c.cfg.Cache.Set(ctx, key, string(body), c.cfg.CacheTTL); err != nil {
			c.log.Warn().Err(err).Str("archive", archiveURL).Msg("archive cache write failed")
		}
	}
	return string(body), nil
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFetch, err)
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned %s", ErrUpstreamFetch, rawURL, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBody+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrUpstreamFetch, rawURL, err)
	}
	if int64(len(body)) > c.cfg.MaxBody {
		return nil, fmt.Errorf("%w: %s body exceeds %d bytes", ErrUpstreamFetch, rawURL, c.cfg.MaxBody)
	}
	return body, nil
}
