// Package router implements the content routing decision engine: rule
// evaluators, the condition interpreter, and the resolver that decides which
// download-manager instance(s) receive a watchlist item.
package router

import (
	"strconv"
	"strings"
)

// ContentType distinguishes movies from shows.
type ContentType string

const (
	ContentTypeMovie ContentType = "movie"
	ContentTypeShow  ContentType = "show"
)

// TargetType identifies the kind of download manager an instance runs.
type TargetType string

const (
	TargetRadarr TargetType = "radarr"
	TargetSonarr TargetType = "sonarr"
)

// TargetFor returns the download-manager type that serves a content type.
func TargetFor(ct ContentType) TargetType {
	if ct == ContentTypeShow {
		return TargetSonarr
	}
	return TargetRadarr
}

// ItemMetadata carries provider-sourced fields already attached to an item.
// All fields are optional; lookup-backed evaluators fill the gaps.
type ItemMetadata struct {
	Certification    string `json:"certification,omitempty"`
	OriginalLanguage string `json:"original_language,omitempty"`
	Year             int    `json:"year,omitempty"`
}

// ContentItem is an immutable snapshot of a watchlist item under evaluation.
// The engine never mutates it.
type ContentItem struct {
	Title    string        `json:"title"`
	GUIDs    []string      `json:"guids"`
	Genres   []string      `json:"genres"`
	Metadata *ItemMetadata `json:"metadata,omitempty"`
}

// RoutingContext carries the request-side facts for one evaluation.
// User fields support group attribution (several users watchlisting the
// same item); read-only to the engine.
type RoutingContext struct {
	ContentType ContentType `json:"content_type"`
	UserIDs     []int64     `json:"user_ids,omitempty"`
	UserNames   []string    `json:"user_names,omitempty"`
}

// PrimaryUserID returns the requesting user for quota attribution, or 0 if
// the context carries no user.
func (c RoutingContext) PrimaryUserID() int64 {
	if len(c.UserIDs) == 0 {
		return 0
	}
	return c.UserIDs[0]
}

// GUIDSet holds the typed external identifiers parsed from an item.
type GUIDSet struct {
	TMDB int64
	TVDB int64
	IMDB string
}

// ParseGUIDs extracts typed identifiers from "provider:id" strings.
// Unknown providers and malformed entries are skipped.
func ParseGUIDs(guids []string) GUIDSet {
	var set GUIDSet
	for _, g := range guids {
		provider, id, ok := strings.Cut(g, ":")
		if !ok {
			continue
		}
		switch strings.ToLower(provider) {
		case "tmdb":
			if n, err := strconv.ParseInt(id, 10, 64); err == nil && set.TMDB == 0 {
				set.TMDB = n
			}
		case "tvdb":
			if n, err := strconv.ParseInt(id, 10, 64); err == nil && set.TVDB == 0 {
				set.TVDB = n
			}
		case "imdb":
			if set.IMDB == "" {
				set.IMDB = id
			}
		}
	}
	return set
}
