// Package tvdb provides a client for the TVDB API v4.
package tvdb

// Series represents a TV series from TVDB.
type Series struct {
	ID               int    `json:"id"`
	Name             string `json:"name"`
	Year             int    `json:"year"`   // Extracted from firstAired
	Status           string `json:"status"` // "Continuing" or "Ended"
	OriginalLanguage string `json:"original_language"`
	Overview         string `json:"overview"`
}

// SearchResult represents a series search result.
type SearchResult struct {
	ID       int    `json:"tvdb_id"`
	Name     string `json:"name"`
	Year     int    `json:"year"`
	Status   string `json:"status"`
	Overview string `json:"overview"`
	Network  string `json:"network"`
}

// loginResponse is the TVDB login API response.
type loginResponse struct {
	Status string `json:"status"`
	Data   struct {
		Token string `json:"token"`
	} `json:"data"`
}

// searchData is a single entry in the TVDB search API response.
type searchData struct {
	ObjectID string `json:"objectID"`
	Name     string `json:"name"`
	Year     string `json:"year"`
	Status   string `json:"status"`
	Overview string `json:"overview"`
	Network  string `json:"network"`
	TVDBID   string `json:"tvdb_id"`
}

// searchResponse is the TVDB search API response.
type searchResponse struct {
	Status string       `json:"status"`
	Data   []searchData `json:"data"`
}

// seriesData is the payload of the TVDB get series API response.
type seriesData struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Status struct {
		Name string `json:"name"`
	} `json:"status"`
	Overview         string `json:"overview"`
	FirstAired       string `json:"firstAired"` // YYYY-MM-DD
	OriginalLanguage string `json:"originalLanguage"`
}

// seriesResponse is the TVDB get series API response.
type seriesResponse struct {
	Status string     `json:"status"`
	Data   seriesData `json:"data"`
}
