package footage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"mmoto/internal/config"
	"mmoto/internal/fileutil"
	"mmoto/internal/logging"
	"mmoto/internal/services"
	"mmoto/internal/services/llm"
	"mmoto/internal/textutil"
	"mmoto/internal/transcode"
)

const stageName = "footage"

// Prober reads media dimensions and duration.
type Prober interface {
	Probe(ctx context.Context, path string) (transcode.MediaInfo, error)
}

// Options bounds a fetch.
type Options struct {
	Dir                 string
	SearchTimeout       time.Duration
	DownloadTimeout     time.Duration
	RetryAttempts       int
	DownloadConcurrency int
	ClipsPerKeyword     int
}

// OptionsFromConfig reads the [footage] section; dir receives the downloads.
func OptionsFromConfig(cfg *config.Config, dir string) Options {
	return Options{
		Dir:                 dir,
		SearchTimeout:       time.Duration(cfg.Footage.SearchTimeoutSeconds) * time.Second,
		DownloadTimeout:     time.Duration(cfg.Footage.DownloadTimeoutSeconds) * time.Second,
		RetryAttempts:       cfg.Footage.RetryAttempts,
		DownloadConcurrency: cfg.Footage.DownloadConcurrency,
		ClipsPerKeyword:     cfg.Footage.ClipsPerKeyword,
	}
}

// ProvidersFromConfig returns the providers that have credentials.
func ProvidersFromConfig(cfg *config.Config) []Provider {
	var providers []Provider
	if p := NewPexelsClient(cfg.Footage.PexelsAPIKey, cfg.Footage.PerPage); p.Configured() {
		providers = append(providers, p)
	}
	if p := NewPixabayClient(cfg.Footage.PixabayAPIKey, cfg.Footage.PerPage); p.Configured() {
		providers = append(providers, p)
	}
	return providers
}

// Result lists the usable clips in keyword order.
type Result struct {
	Clips        []Clip
	Excluded     []string
	Degradations []services.Degradation
}

// Fetcher searches and downloads footage concurrently.
type Fetcher struct {
	providers []Provider
	prober    Prober
	opts      Options
	retry     llm.RetryPolicy
	logger    *slog.Logger
}

// NewFetcher constructs a fetcher.
func NewFetcher(providers []Provider, prober Prober, opts Options, logger *slog.Logger) *Fetcher {
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = 30 * time.Second
	}
	if opts.DownloadTimeout <= 0 {
		opts.DownloadTimeout = 180 * time.Second
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 3
	}
	if opts.DownloadConcurrency <= 0 {
		opts.DownloadConcurrency = 3
	}
	if opts.ClipsPerKeyword <= 0 {
		opts.ClipsPerKeyword = 3
	}
	return &Fetcher{
		providers: providers,
		prober:    prober,
		opts:      opts,
		retry:     llm.DefaultRetryPolicy(),
		logger:    logging.NewComponentLogger(logger, "footage"),
	}
}

// WithRetryPolicy overrides the backoff used between attempts.
func (f *Fetcher) WithRetryPolicy(policy llm.RetryPolicy) {
	if f != nil {
		f.retry = policy
	}
}

type searchSlot struct {
	provider   string
	candidates []Candidate
	err        error
}

// Fetch searches every keyword on every provider, downloads up to
// ClipsPerKeyword candidates per keyword and probes them. Keywords that
// produce no clip are excluded. Only cancellation is returned as an error.
func (f *Fetcher) Fetch(ctx context.Context, keywords []string) (Result, error) {
	logger := logging.WithContext(ctx, f.logger)
	keywords = uniqueKeywords(keywords)
	var result Result
	if len(f.providers) == 0 {
		result.Excluded = keywords
		result.Degradations = append(result.Degradations, services.Degradation{
			Stage: stageName, Kind: services.DegradationProvider,
			Detail: "no footage provider configured",
		})
		logging.WarnWithContext(logger, "no footage provider configured", "footage_unconfigured",
			logging.String(logging.FieldImpact, "video falls back to a placeholder"),
			logging.String(logging.FieldErrorHint, "set [footage] pexels_api_key or pixabay_api_key"),
		)
		return result, nil
	}

	slots := f.search(ctx, logger, keywords)
	if err := ctx.Err(); err != nil {
		return result, err
	}

	picks := make([][]Candidate, len(keywords))
	seen := make(map[string]struct{})
	for ki := range keywords {
		var pool []Candidate
		for pi := range f.providers {
			for _, c := range slots[ki*len(f.providers)+pi].candidates {
				key := c.Provider + "/" + c.ID
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				pool = append(pool, c)
			}
		}
		sort.SliceStable(pool, func(i, j int) bool { return pool[i].Portrait() && !pool[j].Portrait() })
		if len(pool) > f.opts.ClipsPerKeyword {
			pool = pool[:f.opts.ClipsPerKeyword]
		}
		picks[ki] = pool
	}

	clips := f.downloadAll(ctx, logger, picks)
	if err := ctx.Err(); err != nil {
		return result, err
	}

	for ki, keyword := range keywords {
		kept := 0
		for _, clip := range clips[ki] {
			if clip != nil {
				result.Clips = append(result.Clips, *clip)
				kept++
			}
		}
		if kept > 0 {
			continue
		}
		result.Excluded = append(result.Excluded, keyword)
		detail := fmt.Sprintf("keyword %q produced no usable clips", keyword)
		if errs := searchErrors(slots[ki*len(f.providers) : (ki+1)*len(f.providers)]); errs != "" {
			detail += ": " + errs
		}
		result.Degradations = append(result.Degradations, services.Degradation{Stage: stageName, Kind: services.DegradationProvider, Detail: detail})
		logging.WarnWithContext(logger, "keyword excluded from selection", "footage_keyword_excluded",
			logging.String("keyword", keyword),
			logging.String("detail", detail),
			logging.String(logging.FieldImpact, "fewer clips to choose from"),
			logging.String(logging.FieldErrorHint, "check provider credentials and network"),
		)
	}

	logger.Info("footage fetched",
		logging.String(logging.FieldEventType, "footage_fetched"),
		logging.Int("keywords", len(keywords)),
		logging.Int("clips", len(result.Clips)),
		logging.Int("excluded", len(result.Excluded)),
	)
	return result, nil
}

func (f *Fetcher) search(ctx context.Context, logger *slog.Logger, keywords []string) []searchSlot {
	slots := make([]searchSlot, len(keywords)*len(f.providers))
	var g errgroup.Group
	for ki, keyword := range keywords {
		for pi, provider := range f.providers {
			idx := ki*len(f.providers) + pi
			g.Go(func() error {
				var found []Candidate
				err := f.withRetry(ctx, f.opts.SearchTimeout, func(callCtx context.Context) error {
					var err error
					found, err = provider.Search(callCtx, keyword)
					return err
				})
				slots[idx] = searchSlot{provider: provider.Name(), candidates: found, err: err}
				if err != nil {
					logger.Info("footage search failed",
						logging.String(logging.FieldEventType, "footage_search"),
						logging.String("provider", provider.Name()),
						logging.String("keyword", keyword),
						logging.Error(err),
					)
					return nil
				}
				logger.Debug("footage search complete",
					logging.String("provider", provider.Name()),
					logging.String("keyword", keyword),
					logging.Int("candidates", len(found)),
				)
				return nil
			})
		}
	}
	_ = g.Wait()
	return slots
}

func (f *Fetcher) downloadAll(ctx context.Context, logger *slog.Logger, picks [][]Candidate) [][]*Clip {
	byName := make(map[string]Provider, len(f.providers))
	for _, p := range f.providers {
		byName[p.Name()] = p
	}
	clips := make([][]*Clip, len(picks))
	var g errgroup.Group
	g.SetLimit(f.opts.DownloadConcurrency)
	for ki, pool := range picks {
		clips[ki] = make([]*Clip, len(pool))
		for ci, candidate := range pool {
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				clip, err := f.fetchOne(ctx, byName[candidate.Provider], candidate)
				if err != nil {
					logger.Info("footage download skipped",
						logging.String(logging.FieldEventType, "footage_download"),
						logging.String("provider", candidate.Provider),
						logging.String("id", candidate.ID),
						logging.String("keyword", candidate.Keyword),
						logging.Error(err),
					)
					return nil
				}
				clips[ki][ci] = clip
				return nil
			})
		}
	}
	_ = g.Wait()
	return clips
}

func (f *Fetcher) fetchOne(ctx context.Context, provider Provider, c Candidate) (*Clip, error) {
	if provider == nil {
		return nil, fmt.Errorf("unknown provider %q", c.Provider)
	}
	id := c.Provider + "_" + c.ID
	dest := filepath.Join(f.opts.Dir, textutil.SanitizeToken(id)+".mp4")
	if !fileutil.NonEmpty(dest) {
		err := f.withRetry(ctx, f.opts.DownloadTimeout, func(callCtx context.Context) error {
			_, err := provider.Download(callCtx, c.VideoURL, dest)
			return err
		})
		if err != nil {
			return nil, err
		}
	}
	info, err := f.prober.Probe(ctx, dest)
	if err == nil && info.DurationSeconds <= 0 {
		err = errors.New("clip has no duration")
	}
	if err != nil {
		_ = os.Remove(dest)
		return nil, fmt.Errorf("probe %s: %w", dest, err)
	}
	return &Clip{
		ID:              id,
		Path:            dest,
		Keyword:         c.Keyword,
		Width:           info.Width,
		Height:          info.Height,
		DurationSeconds: info.DurationSeconds,
	}, nil
}

// withRetry runs op with a per-call timeout, retrying transient failures with
// exponential backoff.
func (f *Fetcher) withRetry(ctx context.Context, timeout time.Duration, op func(context.Context) error) error {
	for attempt := 1; ; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		err := op(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		if attempt >= f.opts.RetryAttempts || ctx.Err() != nil || !retryable(err) {
			return err
		}
		delay := f.retry.Backoff(attempt)
		var perr *ProviderError
		if errors.As(err, &perr) && perr.RetryAfter > 0 {
			delay = perr.RetryAfter
		}
		if err := f.retry.Sleep(ctx, delay); err != nil {
			return err
		}
	}
}

func retryable(err error) bool {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Retryable()
	}
	return services.IsRetryable(err)
}

func searchErrors(slots []searchSlot) string {
	var parts []string
	for _, slot := range slots {
		if slot.err != nil {
			parts = append(parts, slot.err.Error())
		}
	}
	return strings.Join(parts, "; ")
}

func uniqueKeywords(keywords []string) []string {
	seen := make(map[string]struct{}, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		key := strings.ToLower(k)
		if k == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, k)
	}
	return out
}
