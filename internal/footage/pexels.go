package footage

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"
)

const (
	pexelsName    = "pexels"
	pexelsBaseURL = "https://api.pexels.com/videos/search"
)

// ClientOption customizes a provider client.
type ClientOption func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
	baseURL    string
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(o *clientOptions) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithBaseURL points the client at a different search endpoint.
func WithBaseURL(base string) ClientOption {
	return func(o *clientOptions) {
		if base != "" {
			o.baseURL = base
		}
	}
}

func applyOptions(base string, opts []ClientOption) clientOptions {
	o := clientOptions{httpClient: &http.Client{Timeout: 5 * time.Minute}, baseURL: base}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// PexelsClient searches the Pexels video API.
type PexelsClient struct {
	apiKey  string
	perPage int
	opts    clientOptions
}

// NewPexelsClient constructs a Pexels provider.
func NewPexelsClient(apiKey string, perPage int, opts ...ClientOption) *PexelsClient {
	if perPage <= 0 {
		perPage = 10
	}
	return &PexelsClient{apiKey: apiKey, perPage: perPage, opts: applyOptions(pexelsBaseURL, opts)}
}

// Configured reports whether an API key is set.
func (c *PexelsClient) Configured() bool { return c != nil && configuredKey(c.apiKey) }

func (c *PexelsClient) Name() string { return pexelsName }

type pexelsResponse struct {
	Videos []struct {
		ID         int     `json:"id"`
		Width      int     `json:"width"`
		Height     int     `json:"height"`
		Duration   float64 `json:"duration"`
		Image      string  `json:"image"`
		VideoFiles []struct {
			Link     string `json:"link"`
			Width    int    `json:"width"`
			Height   int    `json:"height"`
			FileType string `json:"file_type"`
		} `json:"video_files"`
	} `json:"videos"`
}

// Search returns one candidate per video, choosing the largest portrait
// rendition, or the largest rendition when none is portrait.
func (c *PexelsClient) Search(ctx context.Context, keyword string) ([]Candidate, error) {
	q := url.Values{}
	q.Set("query", keyword)
	q.Set("per_page", strconv.Itoa(c.perPage))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, &ProviderError{Provider: pexelsName, Op: "search", Err: err}
	}
	req.Header.Set("Authorization", c.apiKey)

	var payload pexelsResponse
	if err := getJSON(ctx, c.opts.httpClient, pexelsName, req, &payload); err != nil {
		return nil, err
	}
	candidates := make([]Candidate, 0, len(payload.Videos))
	for _, video := range payload.Videos {
		files := video.VideoFiles
		if len(files) == 0 {
			continue
		}
		type rendition struct {
			link          string
			width, height int
		}
		var portrait, all []rendition
		for _, f := range files {
			if f.Link == "" {
				continue
			}
			r := rendition{link: f.Link, width: f.Width, height: f.Height}
			all = append(all, r)
			if f.Width < f.Height {
				portrait = append(portrait, r)
			}
		}
		pool := portrait
		if len(pool) == 0 {
			pool = all
		}
		if len(pool) == 0 {
			continue
		}
		sort.SliceStable(pool, func(i, j int) bool {
			return pool[i].width*pool[i].height > pool[j].width*pool[j].height
		})
		best := pool[0]
		candidates = append(candidates, Candidate{
			ID:              strconv.Itoa(video.ID),
			ThumbnailURL:    video.Image,
			VideoURL:        best.link,
			Width:           best.width,
			Height:          best.height,
			DurationSeconds: video.Duration,
			Keyword:         keyword,
			Provider:        pexelsName,
		})
	}
	return candidates, nil
}

// Download fetches videoURL into dest.
func (c *PexelsClient) Download(ctx context.Context, videoURL, dest string) (string, error) {
	return download(ctx, c.opts.httpClient, pexelsName, videoURL, dest)
}
