// Package version provides update checking against GitHub releases and
// semantic version comparison.
package version

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	repoOwner = "marcus"
	repoName  = "featuregate"
	apiURL    = "https://api.github.com/repos/%s/%s/releases/latest"
)

// Release represents a GitHub release response.
type Release struct {
	TagName     string    `json:"tag_name"`
	PublishedAt time.Time `json:"published_at"`
	HTMLURL     string    `json:"html_url"`
}

// CheckResult holds the result of a version check.
type CheckResult struct {
	CurrentVersion string `json:"current_version"`
	LatestVersion  string `json:"latest_version,omitempty"`
	UpdateURL      string `json:"update_url,omitempty"`
	HasUpdate      bool   `json:"has_update"`
	Error          error  `json:"-"`
}

// Check fetches the latest release from GitHub and compares versions.
func Check(ctx context.Context, currentVersion string) CheckResult {
	return check(ctx, http.DefaultClient, fmt.Sprintf(apiURL, repoOwner, repoName), currentVersion)
}

func check(ctx context.Context, client *http.Client, url, currentVersion string) CheckResult {
	result := CheckResult{CurrentVersion: currentVersion}

	if IsDevelopmentVersion(currentVersion) {
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		result.Error = err
		return result
	}
	resp, err := client.Do(req)
	if err != nil {
		result.Error = err
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		result.Error = fmt.Errorf("github api: %s", resp.Status)
		return result
	}

	var release Release
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		result.Error = err
		return result
	}

	result.LatestVersion = release.TagName
	result.UpdateURL = release.HTMLURL
	result.HasUpdate = isNewer(release.TagName, currentVersion)

	return result
}

// CheckCached is Check backed by the on-disk cache. Failed checks are not
// cached.
func CheckCached(ctx context.Context, currentVersion string) CheckResult {
	if cached, err := LoadCache(); err == nil && IsCacheValid(cached, currentVersion) {
		return CheckResult{
			CurrentVersion: currentVersion,
			LatestVersion:  cached.LatestVersion,
			HasUpdate:      cached.HasUpdate,
		}
	}

	result := Check(ctx, currentVersion)
	if result.Error == nil && !IsDevelopmentVersion(currentVersion) {
		_ = SaveCache(&CacheEntry{
			LatestVersion:  result.LatestVersion,
			CurrentVersion: currentVersion,
			CheckedAt:      time.Now(),
			HasUpdate:      result.HasUpdate,
		})
	}
	return result
}

// IsDevelopmentVersion returns true for non-release versions.
func IsDevelopmentVersion(v string) bool {
	if v == "" || v == "unknown" || v == "dev" || v == "devel" {
		return true
	}
	return strings.HasPrefix(v, "devel+")
}

// validVersionRegex matches valid semver versions (v1.2.3, v1.2.3-beta, etc.)
// Prerelease identifiers must be alphanumeric, separated by dots or hyphens.
var validVersionRegex = regexp.MustCompile(`^v?\d+\.\d+\.\d+(-[a-zA-Z0-9]+([.-][a-zA-Z0-9]+)*)?$`)

// UpdateCommand generates the go install command for updating.
// Returns empty string if version is invalid (prevents shell injection).
func UpdateCommand(version string) string {
	if !validVersionRegex.MatchString(version) {
		return ""
	}
	return fmt.Sprintf(
		"go install -ldflags \"-X main.Version=%s\" github.com/%s/%s@%s",
		version, repoOwner, repoName, version,
	)
}

// parseSemver extracts major.minor.patch, ignoring prerelease and build
// metadata. Missing or invalid parts are 0.
func parseSemver(v string) [3]int {
	var out [3]int
	v = strings.TrimPrefix(v, "v")
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		v = v[:i]
	}
	for i, part := range strings.SplitN(v, ".", 3) {
		n, err := strconv.Atoi(part)
		if err != nil {
			return [3]int{}
		}
		out[i] = n
	}
	return out
}

// isNewer reports whether latest has a higher core version than current
func isNewer(latest, current string) bool {
	l, c := parseSemver(latest), parseSemver(current)
	for i := range l {
		if l[i] != c[i] {
			return l[i] > c[i]
		}
	}
	return false
}
