package router

import "context"

// LookupResult is the provider metadata resolved for a GUID.
type LookupResult struct {
	Title            string
	Year             int
	OriginalLanguage string
	Certification    string
}

// MetadataSource resolves typed GUIDs through the download manager's own
// lookup endpoint. Implementations apply a short timeout; lookup-backed
// evaluators treat any failure as "no decision".
type MetadataSource interface {
	MovieByTMDBID(ctx context.Context, tmdbID int64) (*LookupResult, error)
	SeriesByTVDBID(ctx context.Context, tvdbID int64) (*LookupResult, error)
}
