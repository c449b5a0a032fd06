// Package imagesearch finds cover and chapter images. Search never fails:
// without a provider key, or when the provider errors, it returns a
// deterministic placeholder URL.
package imagesearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Orientation of the requested image
type Orientation string

const (
	Landscape Orientation = "landscape"
	Portrait  Orientation = "portrait"
	Squarish  Orientation = "squarish"
)

// Size selects the rendition returned by the provider
type Size string

const (
	SizeSmall   Size = "small"
	SizeRegular Size = "regular"
	SizeFull    Size = "full"
)

// Image is a search result
type Image struct {
	URL         string `json:"url"`
	Placeholder bool   `json:"placeholder,omitempty"`
}

const (
	DefaultBaseURL            = "https://api.unsplash.com"
	DefaultPlaceholderBaseURL = "https://placehold.co"
)

// Searcher queries the Unsplash search API
type Searcher struct {
	baseURL        string
	placeholderURL string
	accessKey      string
	httpClient     *http.Client
	logger         *slog.Logger
}

// Option configures a Searcher
type Option func(*Searcher)

// WithBaseURL overrides the provider endpoint
func WithBaseURL(u string) Option {
	return func(s *Searcher) {
		if u != "" {
			s.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithPlaceholderBaseURL overrides the placeholder host
func WithPlaceholderBaseURL(u string) Option {
	return func(s *Searcher) {
		if u != "" {
			s.placeholderURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient sets the client used for provider calls
func WithHTTPClient(c *http.Client) Option {
	return func(s *Searcher) {
		s.httpClient = c
	}
}

// New creates a searcher. An empty accessKey disables the provider.
func New(accessKey string, logger *slog.Logger, opts ...Option) *Searcher {
	s := &Searcher{
		baseURL:        DefaultBaseURL,
		placeholderURL: DefaultPlaceholderBaseURL,
		accessKey:      accessKey,
		httpClient:     &http.Client{Timeout: 10 * time.Second},
		logger:         logger.With("component", "imagesearch"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type searchResponse struct {
	Results []struct {
		URLs map[string]string `json:"urls"`
	} `json:"results"`
}

// Search returns the first matching image. The error is always nil; it is
// kept so callers can treat image search like every other collaborator.
func (s *Searcher) Search(ctx context.Context, query string, orientation Orientation, size Size) (Image, error) {
	placeholder := Image{URL: s.Placeholder(query, orientation), Placeholder: true}
	if s.accessKey == "" || strings.TrimSpace(query) == "" {
		return placeholder, nil
	}

	u, err := s.fetch(ctx, query, orientation, size)
	if err != nil {
		s.logger.Warn("Image search failed, using placeholder", "query", query, "error", err)
		return placeholder, nil
	}
	if u == "" {
		s.logger.Debug("No image found, using placeholder", "query", query)
		return placeholder, nil
	}
	return Image{URL: u}, nil
}

func (s *Searcher) fetch(ctx context.Context, query string, orientation Orientation, size Size) (string, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("per_page", "1")
	params.Set("content_filter", "high")
	if orientation != "" {
		params.Set("orientation", string(orientation))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/search/photos?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Client-ID "+s.accessKey)
	req.Header.Set("Accept-Version", "v1")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Results) == 0 {
		return "", nil
	}

	urls := result.Results[0].URLs
	if size == "" {
		size = SizeRegular
	}
	if u := urls[string(size)]; u != "" {
		return u, nil
	}
	return urls[string(SizeRegular)], nil
}

// Placeholder returns the deterministic placeholder URL for a query
func (s *Searcher) Placeholder(query string, orientation Orientation) string {
	return fmt.Sprintf("%s/%s?text=%s", s.placeholderURL, dimensions(orientation), url.QueryEscape(query))
}

func dimensions(o Orientation) string {
	switch o {
	case Portrait:
		return "720x1280"
	case Squarish:
		return "1024x1024"
	default:
		return "1280x720"
	}
}
