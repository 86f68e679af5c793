// Package appstore looks up the latest published version of an iOS app.
package appstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/parrotnavy/rn-native-updates/pkg/update"
)

const (
	// DefaultLookupURL is the public iTunes lookup endpoint.
	DefaultLookupURL = "https://itunes.apple.com/lookup"

	httpTimeout = 30 * time.Second
	userAgent   = "rn-native-updates"
)

// HTTPDoer interface for HTTP requests (allows mocking in tests).
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client queries the App Store. Results are cached per bundle ID and
// country; concurrent identical lookups share one request.
type Client struct {
	http    HTTPDoer
	baseURL string
	cache   *Cache
	now     func() time.Time
	log     zerolog.Logger
	flights singleflight.Group
}

var _ update.StoreLookup = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPDoer replaces the HTTP client.
func WithHTTPDoer(h HTTPDoer) Option { return func(c *Client) { c.http = h } }

// WithBaseURL replaces the lookup endpoint.
func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = u } }

// WithCache replaces the result cache.
func WithCache(cache *Cache) Option { return func(c *Client) { c.cache = cache } }

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option { return func(c *Client) { c.log = l } }

// WithClock overrides time.Now for the cache-busting parameter.
func WithClock(now func() time.Time) Option { return func(c *Client) { c.now = now } }

// New creates a Client with a one-hour cache.
func New(opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: httpTimeout},
		baseURL: DefaultLookupURL,
		now:     time.Now,
		log:     zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.cache == nil {
		c.cache = NewCache(DefaultCacheDuration, c.now)
	}
	c.log = c.log.With().Str("component", "appstore").Logger()
	return c
}

// Cache returns the client's result cache.
func (c *Client) Cache() *Cache { return c.cache }

// Lookup returns the App Store record for bundleID. forceRefresh skips the
// cache; the fresh result still replaces the cached one.
func (c *Client) Lookup(ctx context.Context, bundleID, country string, forceRefresh bool) (*update.AppStoreInfo, error) {
	if strings.TrimSpace(bundleID) == "" {
		return nil, update.NewError(update.KindInvalidIdentifier, "invalid bundle identifier")
	}

	if !forceRefresh {
		if info, ok := c.cache.Get(bundleID, country); ok {
			c.log.Debug().Str("bundle_id", bundleID).Str("country", country).Msg("lookup cache hit")
			return info, nil
		}
	}

	key := strconv.FormatUint(cacheKey(bundleID, country), 16)
	v, err, shared := c.flights.Do(key, func() (interface{}, error) {
		info, err := c.fetch(ctx, bundleID, country)
		if err != nil {
			return nil, err
		}
		c.cache.Put(bundleID, country, info)
		return info, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.log.Debug().Str("bundle_id", bundleID).Msg("lookup shared with in-flight request")
	}

	info := *v.(*update.AppStoreInfo)
	return &info, nil
}

type lookupResponse struct {
	ResultCount int            `json:"resultCount"`
	Results     []lookupRecord `json:"results"`
}

type lookupRecord struct {
	Version                   string  `json:"version"`
	TrackID                   int64   `json:"trackId"`
	TrackViewURL              string  `json:"trackViewUrl"`
	CurrentVersionReleaseDate string  `json:"currentVersionReleaseDate"`
	ReleaseNotes              *string `json:"releaseNotes"`
	MinimumOSVersion          string  `json:"minimumOsVersion"`
}

func (c *Client) fetch(ctx context.Context, bundleID, country string) (*update.AppStoreInfo, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, update.WrapError(update.KindInvalidURL, "invalid App Store URL", err)
	}
	q := u.Query()
	q.Set("bundleId", bundleID)
	if country != "" {
		q.Set("country", country)
	}
	// The date parameter defeats intermediary caches.
	q.Set("date", strconv.FormatInt(c.now().Unix(), 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, update.WrapError(update.KindInvalidURL, "invalid App Store URL", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, update.WrapError(update.KindNetwork, "network request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.log.Debug().Str("bundle_id", bundleID).Str("country", country).Int("status", resp.StatusCode).Msg("lookup response")

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, update.NewError(update.KindRateLimited, "App Store API rate limit exceeded")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, update.Errorf(update.KindNetwork, "App Store lookup failed: %s", resp.Status)
	}

	var payload lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, update.WrapError(update.KindUnknown, "failed to parse lookup response", err)
	}
	if len(payload.Results) == 0 {
		return nil, update.NewError(update.KindAppNotFound, fmt.Sprintf("app %s not found on App Store", bundleID))
	}

	r := payload.Results[0]
	return &update.AppStoreInfo{
		Version:                   r.Version,
		TrackID:                   r.TrackID,
		TrackViewURL:              r.TrackViewURL,
		CurrentVersionReleaseDate: r.CurrentVersionReleaseDate,
		ReleaseNotes:              r.ReleaseNotes,
		MinimumOSVersion:          r.MinimumOSVersion,
	}, nil
}
