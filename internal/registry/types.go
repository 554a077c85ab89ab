package registry

import (
	"encoding/json"
	"fmt"

	"factorio-mods-cli/internal/mods"
)

// SearchOrder controls the sort order of Client.Search results. The
// string values match the Mod Portal's own "order" querystring values
// exactly; MostDownloaded is the portal's default.
type SearchOrder string

const (
	OrderAlphabetical   SearchOrder = "alpha"
	OrderMostDownloaded SearchOrder = "top"
	OrderRecentlyUpdated SearchOrder = "updated"
)

// DefaultSearchOrder is used when Search is called without an explicit
// order.
const DefaultSearchOrder = OrderMostDownloaded

// SearchOptions controls one Client.Search call.
type SearchOptions struct {
	Query    string
	Tags     []string
	Order    SearchOrder
	PageSize int
}

// SearchResult is one hit of a Client.Search call.
type SearchResult struct {
	Name        mods.Name
	Title       string
	Owner       []string
	Summary     string
	Tags        []string
	DownloadsCount uint64
}

type searchResponseMod struct {
	Name    string          `json:"name"`
	Title   string          `json:"title"`
	Owner   json.RawMessage `json:"owner"`
	Summary string          `json:"summary"`
	Tags    json.RawMessage `json:"tags"`
	DownloadsCount uint64   `json:"downloads_count"`
}

type searchResponsePaginationLinks struct {
	Next string `json:"next"`
}

type searchResponsePagination struct {
	Links searchResponsePaginationLinks `json:"links"`
}

type searchResponse struct {
	Pagination searchResponsePagination `json:"pagination"`
	Results    []searchResponseMod      `json:"results"`
}

// stringOrSlice unmarshals a JSON value that is either a single string
// or an array of strings into a []string, the same leniency the portal
// itself exercises for "owner" and "tags".
func stringOrSlice(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}, nil
	}
	var seq []string
	if err := json.Unmarshal(raw, &seq); err != nil {
		return nil, fmt.Errorf("expected a string or array of strings: %w", err)
	}
	return seq, nil
}

type wireReleaseInfo struct {
	Name            string   `json:"name"`
	Title           string   `json:"title"`
	Version         string   `json:"version"`
	FactorioVersion string   `json:"factorio_version"`
	Dependencies    []string `json:"dependencies"`
}

type wireRelease struct {
	Version     string          `json:"version"`
	DownloadURL string          `json:"download_url"`
	FileName    string          `json:"file_name"`
	FileSize    uint64          `json:"file_size"`
	Sha1        string          `json:"sha1"`
	InfoJSON    wireReleaseInfo `json:"info_json"`
}

type wireMod struct {
	Name        string          `json:"name"`
	Owner       json.RawMessage `json:"owner"`
	Title       string          `json:"title"`
	Summary     string          `json:"summary"`
	Description string          `json:"description"`
	Homepage    string          `json:"homepage"`
	LicenseName string          `json:"license_name"`
	GameVersions []string       `json:"game_versions"`
	Tags        json.RawMessage `json:"tags"`
	Releases    []wireRelease   `json:"releases"`
	Deprecated  bool            `json:"deprecated"`
}

func (w wireRelease) toRelease() (mods.Release, error) {
	version, err := mods.ParseVersion(w.Version)
	if err != nil {
		return mods.Release{}, err
	}

	deps := make([]mods.Dependency, 0, len(w.InfoJSON.Dependencies))
	for _, depStr := range w.InfoJSON.Dependencies {
		dep, err := mods.ParseDependency(depStr)
		if err != nil {
			continue
		}
		deps = append(deps, dep)
	}

	return mods.Release{
		Version:     version,
		DownloadURL: w.DownloadURL,
		FileName:    w.FileName,
		FileSize:    w.FileSize,
		Sha1:        w.Sha1,
		Info: mods.ReleaseInfo{
			Name:            mods.Name(w.InfoJSON.Name),
			Title:           w.InfoJSON.Title,
			Version:         version,
			FactorioVersion: w.InfoJSON.FactorioVersion,
			Dependencies:    deps,
		},
	}, nil
}

func (w wireMod) toMod() (mods.Mod, error) {
	owner, err := stringOrSlice(w.Owner)
	if err != nil {
		return mods.Mod{}, fmt.Errorf("parsing owner: %w", err)
	}
	tags, err := stringOrSlice(w.Tags)
	if err != nil {
		return mods.Mod{}, fmt.Errorf("parsing tags: %w", err)
	}

	releases := make([]mods.Release, 0, len(w.Releases))
	for _, wr := range w.Releases {
		r, err := wr.toRelease()
		if err != nil {
			return mods.Mod{}, fmt.Errorf("parsing release: %w", err)
		}
		releases = append(releases, r)
	}

	return mods.Mod{
		Name:         mods.Name(w.Name),
		Owner:        owner,
		Title:        w.Title,
		Summary:      w.Summary,
		Description:  w.Description,
		Homepage:     w.Homepage,
		LicenseName:  w.LicenseName,
		GameVersions: w.GameVersions,
		Tags:         tags,
		Releases:     releases,
		Deprecated:   w.Deprecated,
	}, nil
}

type loginFailureResponse struct {
	Message string `json:"message"`
}
