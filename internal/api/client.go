package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/draftsight/collector/internal/constants"
	apihttp "github.com/draftsight/collector/internal/http"
	"github.com/draftsight/collector/internal/logging"
	"github.com/draftsight/collector/internal/models"
	"github.com/draftsight/collector/internal/ratelimit"
)

// ApexTier names an apex league endpoint.
type ApexTier string

const (
	TierChallenger  ApexTier = "challenger"
	TierGrandmaster ApexTier = "grandmaster"
	TierMaster      ApexTier = "master"
)

// ApexTiers lists the apex leagues from highest to lowest.
var ApexTiers = []ApexTier{TierChallenger, TierGrandmaster, TierMaster}

// maxBodyBytes bounds a single response; timelines are the largest payloads.
const maxBodyBytes = 32 << 20

// Client is a key-agnostic Riot API client. Every method takes the key to
// use, so the caller decides rotation and retries; Client performs exactly
// one logical request per call and reports the outcome as a typed error.
type Client struct {
	httpClient  *nethttp.Client
	platformURL string // league, summoner (e.g. https://kr.api.riotgames.com)
	regionalURL string // match, account (e.g. https://asia.api.riotgames.com)
	registry    *ratelimit.Registry
	logger      *logging.Logger
	maxBody     int64
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURLs overrides the platform and regional hosts (used by tests).
func WithBaseURLs(platformURL, regionalURL string) Option {
	return func(c *Client) {
		c.platformURL = strings.TrimSuffix(platformURL, "/")
		c.regionalURL = strings.TrimSuffix(regionalURL, "/")
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithRegistry sets the category registry used to label requests.
func WithRegistry(r *ratelimit.Registry) Option {
	return func(c *Client) { c.registry = r }
}

// NewClient creates a client for the given platform (e.g. "kr") and
// regional route (e.g. "asia").
func NewClient(httpClient *nethttp.Client, platform, region string, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = &nethttp.Client{Timeout: constants.HTTPRequestTimeout}
	}
	c := &Client{
		httpClient:  httpClient,
		platformURL: PlatformURL(platform),
		regionalURL: PlatformURL(region),
		registry:    ratelimit.NewRegistry(),
		logger:      logging.Nop(),
		maxBody:     maxBodyBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PlatformURL returns the API host for a platform or regional routing value.
func PlatformURL(route string) string {
	return "https://" + strings.ToLower(route) + ".api.riotgames.com"
}

// Registry returns the category registry.
func (c *Client) Registry() *ratelimit.Registry {
	return c.registry
}

// doRequest performs one authenticated GET and returns the body of a 200
// response. Any other outcome is returned as a typed error.
func (c *Client) doRequest(ctx context.Context, key, baseURL, path string) ([]byte, error) {
	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodGet, baseURL+path, nil)
	if err != nil {
		return nil, &InvalidRequestError{Path: path, Body: err.Error()}
	}
	req.Header.Set(constants.APIKeyHeader, key)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Debug().
			Str("path", path).
			Str("error_type", apihttp.ErrorTypeName(apihttp.ClassifyError(err))).
			Bool("timeout", apihttp.IsTimeout(err)).
			Err(err).
			Msg("Riot API call failed")
		return nil, &TransientError{Path: path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransientError{Path: path, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode == nethttp.StatusOK {
		if int64(len(body)) > c.maxBody {
			// a truncated payload must never be stored
			return nil, &InvalidRequestError{
				Path:       path,
				StatusCode: resp.StatusCode,
				Body:       fmt.Sprintf("response exceeds %d bytes", c.maxBody),
			}
		}
		return body, nil
	}

	if resp.StatusCode == nethttp.StatusTooManyRequests {
		c.logger.Debug().
			Str("path", path).
			Str("category", string(c.registry.Resolve(path))).
			Str("retry_after", resp.Header.Get("Retry-After")).
			Str("limit_type", resp.Header.Get("X-Rate-Limit-Type")).
			Str("app_count", resp.Header.Get("X-App-Rate-Limit-Count")).
			Str("method_count", resp.Header.Get("X-Method-Rate-Limit-Count")).
			Msg("Throttled by Riot API")
	}

	return nil, statusError(path, resp, body)
}

func (c *Client) getJSON(ctx context.Context, key, baseURL, path string, v interface{}) error {
	body, err := c.doRequest(ctx, key, baseURL, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &TransientError{Path: path, StatusCode: nethttp.StatusOK, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}

// LeagueEntries returns one page of ranked entries for a queue, tier and division.
func (c *Client) LeagueEntries(ctx context.Context, key, queue, tier, division string, page int) ([]models.LeagueEntry, error) {
	path := fmt.Sprintf("/lol/league/v4/entries/%s/%s/%s?page=%d",
		url.PathEscape(queue), url.PathEscape(tier), url.PathEscape(division), page)

	var entries []models.LeagueEntry
	if err := c.getJSON(ctx, key, c.platformURL, path, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// ApexLeague returns the challenger, grandmaster or master league of a queue.
func (c *Client) ApexLeague(ctx context.Context, key string, tier ApexTier, queue string) (*models.LeagueList, error) {
	path := fmt.Sprintf("/lol/league/v4/%sleagues/by-queue/%s", tier, url.PathEscape(queue))

	var league models.LeagueList
	if err := c.getJSON(ctx, key, c.platformURL, path, &league); err != nil {
		return nil, err
	}
	return &league, nil
}

// SummonerByID resolves an encrypted summoner id to its profile (and PUUID).
func (c *Client) SummonerByID(ctx context.Context, key, summonerID string) (*models.Summoner, error) {
	path := "/lol/summoner/v4/summoners/" + url.PathEscape(summonerID)

	var s models.Summoner
	if err := c.getJSON(ctx, key, c.platformURL, path, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// AccountByPUUID returns the Riot ID of a player.
func (c *Client) AccountByPUUID(ctx context.Context, key, puuid string) (*models.Account, error) {
	path := "/riot/account/v1/accounts/by-puuid/" + url.PathEscape(puuid)

	var a models.Account
	if err := c.getJSON(ctx, key, c.regionalURL, path, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// MatchIDs returns up to count recent ranked match ids of a player, newest
// first. queueID 0 means any queue.
func (c *Client) MatchIDs(ctx context.Context, key, puuid string, queueID, count int) ([]string, error) {
	q := url.Values{}
	q.Set("type", "ranked")
	q.Set("start", "0")
	q.Set("count", strconv.Itoa(count))
	if queueID > 0 {
		q.Set("queue", strconv.Itoa(queueID))
	}
	path := "/lol/match/v5/matches/by-puuid/" + url.PathEscape(puuid) + "/ids?" + q.Encode()

	var ids []string
	if err := c.getJSON(ctx, key, c.regionalURL, path, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// Match returns the raw match-v5 payload.
func (c *Client) Match(ctx context.Context, key, matchID string) ([]byte, error) {
	path := "/lol/match/v5/matches/" + url.PathEscape(matchID)
	return c.doRequest(ctx, key, c.regionalURL, path)
}

// Timeline returns the raw match-v5 timeline payload.
func (c *Client) Timeline(ctx context.Context, key, matchID string) ([]byte, error) {
	path := "/lol/match/v5/matches/" + url.PathEscape(matchID) + "/timeline"
	return c.doRequest(ctx, key, c.regionalURL, path)
}
