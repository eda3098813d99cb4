package github

import (
	"context"
	"net/http"
	"time"

	gh "github.com/google/go-github/v66/github"

	"richard/internal/bot"
	"richard/internal/config"
	logx "richard/pkg/logx"
)

const ReposName = "github_repos"

const ReposEvery = time.Hour

// Repos announces releases of explicitly configured repositories.
type Repos struct {
	bot.Base
	log   logx.Logger
	gh    *gh.Client
	now   func() time.Time
	repos []*repo
}

func NewRepos(cfg Config, fullNames []string, hc *http.Client, log logx.Logger) (*Repos, error) {
	c, err := newClient(hc, cfg)
	if err != nil {
		return nil, err
	}
	m := &Repos{log: log, gh: c, now: time.Now}
	for _, fn := range fullNames {
		r, err := newRepo(fn)
		if err != nil {
			return nil, err
		}
		log.Info("github repo configured", logx.String("repo", fn))
		m.repos = append(m.repos, r)
	}
	if len(m.repos) == 0 {
		log.Warn("github_repos module enabled but no repository configured")
	}
	return m, nil
}

func ReposFactory() bot.Factory {
	return bot.Factory{
		Name:   ReposName,
		Params: reposParams(),
		New: func(d bot.Deps) (bot.Module, error) {
			var cfg Config
			if err := config.ParseEnv(&cfg); err != nil {
				return nil, err
			}
			var names []string
			for _, g := range config.Indexed("GITHUB_REPOS", "FULLNAME") {
				names = append(names, g["FULLNAME"])
			}
			return NewRepos(cfg, names, d.HTTP, d.Log)
		},
	}
}

func reposParams() []bot.Param {
	return append(tokenParams(), bot.Param{
		Name:        "GITHUB_REPOS_<i>_FULLNAME",
		Description: "Specific github repo to watch. e.g. kubernetes/kubernetes",
	})
}

func (m *Repos) Name() string                { return ReposName }
func (m *Repos) Params() []bot.Param         { return reposParams() }
func (m *Repos) Variations() []bot.Variation { return []bot.Variation{bot.Every("releases", ReposEvery)} }

func (m *Repos) Run(ctx context.Context, _ int) []string {
	var out []string
	for _, r := range m.repos {
		if ctx.Err() != nil {
			break
		}
		out = append(out, r.check(ctx, m.gh, m.now(), m.log)...)
	}
	return out
}
