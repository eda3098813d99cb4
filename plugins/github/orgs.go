package github

import (
	"context"
	"net/http"
	"sort"
	"time"

	gh "github.com/google/go-github/v66/github"

	"richard/internal/bot"
	"richard/internal/config"
	logx "richard/pkg/logx"
)

const OrgsName = "github_orgs"

const (
	OrgsReleaseEvery = time.Hour
	OrgsListingEvery = 24 * time.Hour
)

type org struct {
	name  string
	repos map[string]*repo
}

// Orgs announces releases of every public repository of the configured organisations.
type Orgs struct {
	bot.Base
	log  logx.Logger
	gh   *gh.Client
	now  func() time.Time
	orgs []*org
}

func NewOrgs(cfg Config, names []string, hc *http.Client, log logx.Logger) (*Orgs, error) {
	c, err := newClient(hc, cfg)
	if err != nil {
		return nil, err
	}
	m := &Orgs{log: log, gh: c, now: time.Now}
	for _, n := range names {
		log.Info("github organisation configured", logx.String("org", n))
		m.orgs = append(m.orgs, &org{name: n, repos: map[string]*repo{}})
	}
	if len(m.orgs) == 0 {
		log.Warn("github_orgs module enabled but no organisation configured")
	}
	return m, nil
}

func OrgsFactory() bot.Factory {
	return bot.Factory{
		Name:   OrgsName,
		Params: orgsParams(),
		New: func(d bot.Deps) (bot.Module, error) {
			var cfg Config
			if err := config.ParseEnv(&cfg); err != nil {
				return nil, err
			}
			var names []string
			for _, g := range config.Indexed("GITHUB_ORG", "NAME") {
				names = append(names, g["NAME"])
			}
			return NewOrgs(cfg, names, d.HTTP, d.Log)
		},
	}
}

func orgsParams() []bot.Param {
	return append(tokenParams(), bot.Param{
		Name:        "GITHUB_ORG_<i>_NAME",
		Description: "Github organisation name",
	})
}

func (m *Orgs) Name() string        { return OrgsName }
func (m *Orgs) Params() []bot.Param { return orgsParams() }

func (m *Orgs) Variations() []bot.Variation {
	return []bot.Variation{
		bot.Every("releases", OrgsReleaseEvery),
		bot.Every("listing", OrgsListingEvery),
	}
}

func (m *Orgs) Run(ctx context.Context, idx int) []string {
	switch idx {
	case 0:
		var out []string
		for _, o := range m.orgs {
			if len(o.repos) == 0 {
				m.refresh(ctx, o)
			}
			out = append(out, m.checkOrg(ctx, o)...)
		}
		return out
	case 1:
		for _, o := range m.orgs {
			m.refresh(ctx, o)
		}
		return nil
	default:
		m.log.Error("bad variation", logx.Int("variation", idx))
		return nil
	}
}

func (m *Orgs) checkOrg(ctx context.Context, o *org) []string {
	names := make([]string, 0, len(o.repos))
	for n := range o.repos {
		names = append(names, n)
	}
	sort.Strings(names)
	var out []string
	for _, n := range names {
		if ctx.Err() != nil {
			break
		}
		out = append(out, o.repos[n].check(ctx, m.gh, m.now(), m.log)...)
	}
	return out
}

// refresh adds repositories new to the listing. Known repositories keep their
// release state.
func (m *Orgs) refresh(ctx context.Context, o *org) {
	opts := &gh.RepositoryListByOrgOptions{
		Type:        "public",
		Sort:        "full_name",
		ListOptions: gh.ListOptions{PerPage: orgReposPerPage},
	}
	added := 0
	for {
		page, resp, err := m.gh.Repositories.ListByOrg(ctx, o.name, opts)
		if err != nil {
			m.log.Error("cannot fetch org repos", logx.String("org", o.name), logx.Err(err))
			return
		}
		for _, gr := range page {
			full := gr.GetFullName()
			if r, ok := o.repos[full]; ok {
				r.setDetails(gr)
				continue
			}
			r, err := newRepo(full)
			if err != nil {
				m.log.Warn("skipping repo", logx.Err(err))
				continue
			}
			r.setDetails(gr)
			o.repos[full] = r
			added++
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	m.log.Debug("org listing refreshed", logx.String("org", o.name), logx.Int("added", added), logx.Int("repos", len(o.repos)))
}
