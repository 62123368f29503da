package footage

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

const (
	pixabayName    = "pixabay"
	pixabayBaseURL = "https://pixabay.com/api/videos/"
)

// PixabayClient searches the Pixabay video API.
type PixabayClient struct {
	apiKey  string
	perPage int
	opts    clientOptions
}

// NewPixabayClient constructs a Pixabay provider.
func NewPixabayClient(apiKey string, perPage int, opts ...ClientOption) *PixabayClient {
	// Pixabay rejects per_page below 3.
	if perPage < 3 {
		perPage = 3
	}
	return &PixabayClient{apiKey: apiKey, perPage: perPage, opts: applyOptions(pixabayBaseURL, opts)}
}

// Configured reports whether an API key is set.
func (c *PixabayClient) Configured() bool { return c != nil && configuredKey(c.apiKey) }

func (c *PixabayClient) Name() string { return pixabayName }

type pixabayRendition struct {
	URL       string `json:"url"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Thumbnail string `json:"thumbnail"`
}

type pixabayResponse struct {
	Hits []struct {
		ID       int     `json:"id"`
		Duration float64 `json:"duration"`
		Videos   struct {
			Large  pixabayRendition `json:"large"`
			Medium pixabayRendition `json:"medium"`
			Small  pixabayRendition `json:"small"`
			Tiny   pixabayRendition `json:"tiny"`
		} `json:"videos"`
	} `json:"hits"`
}

// Search returns one candidate per hit using the largest available rendition.
func (c *PixabayClient) Search(ctx context.Context, keyword string) ([]Candidate, error) {
	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("q", keyword)
	q.Set("per_page", strconv.Itoa(c.perPage))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, &ProviderError{Provider: pixabayName, Op: "search", Err: err}
	}

	var payload pixabayResponse
	if err := getJSON(ctx, c.opts.httpClient, pixabayName, req, &payload); err != nil {
		return nil, err
	}
	candidates := make([]Candidate, 0, len(payload.Hits))
	for _, hit := range payload.Hits {
		var best pixabayRendition
		for _, r := range []pixabayRendition{hit.Videos.Large, hit.Videos.Medium, hit.Videos.Small, hit.Videos.Tiny} {
			if r.URL == "" {
				continue
			}
			if best.URL == "" || r.Width*r.Height > best.Width*best.Height {
				best = r
			}
		}
		if best.URL == "" {
			continue
		}
		candidates = append(candidates, Candidate{
			ID:              strconv.Itoa(hit.ID),
			ThumbnailURL:    best.Thumbnail,
			VideoURL:        best.URL,
			Width:           best.Width,
			Height:          best.Height,
			DurationSeconds: hit.Duration,
			Keyword:         keyword,
			Provider:        pixabayName,
		})
	}
	return candidates, nil
}

// Download fetches videoURL into dest.
func (c *PixabayClient) Download(ctx context.Context, videoURL, dest string) (string, error) {
	return download(ctx, c.opts.httpClient, pixabayName, videoURL, dest)
}
