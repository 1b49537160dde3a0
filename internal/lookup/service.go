package lookup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hbollon/go-edlib"

	"github.com/vmunix/pulsarr/internal/router"
	"github.com/vmunix/pulsarr/pkg/tvdb"
)

const (
	defaultCacheTTL = 24 * time.Hour
	lookupTimeout   = 10 * time.Second

	// Jaro-Winkler similarity below this between a requested title and
	// the provider's title suggests a wrong GUID mapping.
	titleSimilarityFloor = 0.8
)

// Service resolves GUIDs to metadata, implementing the source interface
// lookup-backed evaluators depend on. Results are cached in memory.
type Service struct {
	movies *TMDBClient
	series *tvdb.Client
	cache  *cache
	logger *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithCacheTTL sets how long lookup results are cached.
func WithCacheTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) { s.cache = newCache(ttl) }
}

// NewService creates a lookup service. Either client may be nil when the
// corresponding provider isn't configured.
func NewService(movies *TMDBClient, series *tvdb.Client, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		movies: movies,
		series: series,
		cache:  newCache(defaultCacheTTL),
		logger: logger.With("component", "lookup"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MovieByTMDBID resolves movie metadata via TMDB.
func (s *Service) MovieByTMDBID(ctx context.Context, tmdbID int64) (*router.LookupResult, error) {
	if s.movies == nil {
		return nil, fmt.Errorf("tmdb lookup not configured")
	}
	key := fmt.Sprintf("tmdb:movie:%d", tmdbID)
	if result, ok := s.cache.get(key); ok {
		return result, nil
	}

	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	movie, err := s.movies.GetMovie(ctx, tmdbID)
	if err != nil {
		return nil, fmt.Errorf("lookup movie %d: %w", tmdbID, err)
	}

	result := &router.LookupResult{
		Title:            movie.Title,
		Year:             movie.Year(),
		OriginalLanguage: movie.OriginalLanguage,
		Certification:    movie.Certification(),
	}
	s.cache.set(key, result)
	return result, nil
}

// SeriesByTVDBID resolves series metadata via TVDB.
func (s *Service) SeriesByTVDBID(ctx context.Context, tvdbID int64) (*router.LookupResult, error) {
	if s.series == nil {
		return nil, fmt.Errorf("tvdb lookup not configured")
	}
	key := fmt.Sprintf("tvdb:series:%d", tvdbID)
	if result, ok := s.cache.get(key); ok {
		return result, nil
	}

	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	series, err := s.series.GetSeries(ctx, int(tvdbID))
	if err != nil {
		return nil, fmt.Errorf("lookup series %d: %w", tvdbID, err)
	}

	result := &router.LookupResult{
		Title:            series.Name,
		Year:             series.Year,
		OriginalLanguage: series.OriginalLanguage,
	}
	s.cache.set(key, result)
	return result, nil
}

// Enrich resolves an item's GUIDs and backfills metadata fields the request
// didn't carry. A requested title that diverges sharply from the provider's
// title is logged as a likely GUID mismatch. Lookup failures leave the item
// untouched; evaluators fall back to their own behavior.
func (s *Service) Enrich(ctx context.Context, item *router.ContentItem, ct router.ContentType) {
	set := router.ParseGUIDs(item.GUIDs)

	var result *router.LookupResult
	var err error
	switch {
	case ct == router.ContentTypeShow && set.TVDB != 0:
		result, err = s.SeriesByTVDBID(ctx, set.TVDB)
	case ct == router.ContentTypeMovie && set.TMDB != 0:
		result, err = s.MovieByTMDBID(ctx, set.TMDB)
	default:
		return
	}
	if err != nil {
		s.logger.Debug("enrich lookup failed", "title", item.Title, "error", err)
		return
	}

	if item.Title != "" && result.Title != "" {
		if sim := TitleSimilarity(item.Title, result.Title); sim < titleSimilarityFloor {
			s.logger.Warn("requested title diverges from provider metadata",
				"requested", item.Title,
				"provider", result.Title,
				"similarity", sim)
		}
	}

	if item.Metadata == nil {
		item.Metadata = &router.ItemMetadata{}
	}
	if item.Metadata.Year == 0 {
		item.Metadata.Year = result.Year
	}
	if item.Metadata.OriginalLanguage == "" {
		item.Metadata.OriginalLanguage = result.OriginalLanguage
	}
	if item.Metadata.Certification == "" {
		item.Metadata.Certification = result.Certification
	}
}

// TitleSimilarity scores two titles with Jaro-Winkler, tolerant of the
// punctuation drift between providers. Returns 0 on comparison failure.
func TitleSimilarity(a, b string) float32 {
	sim, err := edlib.StringsSimilarity(a, b, edlib.JaroWinkler)
	if err != nil {
		return 0
	}
	return sim
}
