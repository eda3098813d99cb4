// Package github watches GitHub repositories for new releases. It provides the
// github_repos module (explicit repositories) and the github_orgs module (every
// public repository of an organisation).
package github

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v66/github"

	"richard/internal/bot"
)

const (
	releasesPerPage = 60
	orgReposPerPage = 100
	userAgent       = "richard/0.0.0"
)

var ErrBadFullName = errors.New("repository must be written owner/name")

// Config is shared by both modules.
type Config struct {
	Token string `env:"GITHUB_TOKEN,notEmpty"`
	// APIURL points at a GitHub Enterprise or test server; empty means api.github.com.
	APIURL string `env:"GITHUB_API_URL"`
}

func newClient(hc *http.Client, cfg Config) (*gh.Client, error) {
	c := gh.NewClient(hc).WithAuthToken(cfg.Token)
	c.UserAgent = userAgent
	if cfg.APIURL != "" {
		base, err := url.Parse(strings.TrimRight(cfg.APIURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("GITHUB_API_URL: %w", err)
		}
		c.BaseURL = base
	}
	return c, nil
}

func splitFullName(full string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(full, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("%w: %q", ErrBadFullName, full)
	}
	return owner, repo, nil
}

func tokenParams() []bot.Param {
	return []bot.Param{
		{Name: "GITHUB_TOKEN", Description: "Github token to make api calls", Mandatory: true},
		{Name: "GITHUB_API_URL", Description: "Github API base URL, api.github.com by default"},
	}
}
