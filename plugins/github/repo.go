package github

import (
	"context"
	"fmt"
	"time"

	gh "github.com/google/go-github/v66/github"

	logx "richard/pkg/logx"
)

// MaxReleaseAge is how old a newly seen release may be and still be announced.
const MaxReleaseAge = 10 * 24 * time.Hour

// repo tracks the releases of one repository. The zero releases set means the
// first listing has not happened yet.
type repo struct {
	fullName string
	owner    string
	name     string

	detailsKnown bool
	maintained   bool
	releases     map[string]struct{}
}

func newRepo(fullName string) (*repo, error) {
	owner, name, err := splitFullName(fullName)
	if err != nil {
		return nil, err
	}
	return &repo{fullName: fullName, owner: owner, name: name}, nil
}

// setDetails records fork/archived state when already known from a listing.
func (r *repo) setDetails(gr *gh.Repository) {
	r.detailsKnown = true
	r.maintained = !gr.GetFork() && !gr.GetArchived()
}

// check returns one message per release not seen before. The first successful
// listing only primes the known set.
func (r *repo) check(ctx context.Context, c *gh.Client, now time.Time, log logx.Logger) []string {
	log = log.With(logx.String("repo", r.fullName))
	if !r.detailsKnown {
		gr, _, err := c.Repositories.Get(ctx, r.owner, r.name)
		if err != nil {
			log.Error("cannot read repo", logx.Err(err))
			return nil
		}
		r.setDetails(gr)
	}
	if !r.maintained {
		log.Trace("repo is not maintained, not getting releases")
		return nil
	}

	releases, err := r.listReleases(ctx, c)
	if err != nil {
		log.Error("cannot list releases", logx.Err(err))
		return nil
	}
	if r.releases == nil {
		r.releases = make(map[string]struct{}, len(releases))
		for _, rel := range releases {
			r.releases[rel.GetTagName()] = struct{}{}
		}
		log.Debug("initial release mapping", logx.Int("releases", len(releases)))
		return nil
	}

	var out []string
	for _, rel := range releases {
		tag := rel.GetTagName()
		if _, seen := r.releases[tag]; seen {
			continue
		}
		r.releases[tag] = struct{}{}
		if tooOld(rel, now) {
			continue
		}
		log.Info("new release", logx.String("tag", tag))
		out = append(out, r.message(rel))
	}
	return out
}

func (r *repo) listReleases(ctx context.Context, c *gh.Client) ([]*gh.RepositoryRelease, error) {
	opts := &gh.ListOptions{PerPage: releasesPerPage}
	var all []*gh.RepositoryRelease
	for {
		page, resp, err := c.Repositories.ListReleases(ctx, r.owner, r.name, opts)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if resp == nil || resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}

func (r *repo) message(rel *gh.RepositoryRelease) string {
	name := rel.GetName()
	if name == "" {
		name = rel.GetTagName()
	}
	return fmt.Sprintf("👋 Release de [%s %s](%s)", r.fullName, name, rel.GetHTMLURL())
}

func tooOld(rel *gh.RepositoryRelease, now time.Time) bool {
	if rel.PublishedAt == nil || rel.PublishedAt.IsZero() {
		return false
	}
	return now.Sub(rel.PublishedAt.Time) >= MaxReleaseAge
}
