package webpages

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"time"

	"richard/internal/bot"
	"richard/internal/config"
	"richard/internal/httpx"
	logx "richard/pkg/logx"
)

const Name = "webpages"

const DefaultEvery = 60 * time.Second

// maxBody caps how much of a page is hashed.
const maxBody = 8 << 20

var ErrNoPages = errors.New("no WEBPAGES_<i>_NAME / WEBPAGES_<i>_URL configured")

type page struct {
	name   string
	url    string
	sum    uint64
	primed bool
}

// Module reports pages whose body changed since the previous fetch.
type Module struct {
	bot.Base
	log   logx.Logger
	http  *http.Client
	pages []*page
}

func New(names, urls []string, client *http.Client, log logx.Logger) (*Module, error) {
	if len(names) == 0 || len(names) != len(urls) {
		return nil, ErrNoPages
	}
	m := &Module{log: log, http: client}
	for i := range names {
		m.pages = append(m.pages, &page{name: names[i], url: urls[i]})
	}
	return m, nil
}

func Factory() bot.Factory {
	return bot.Factory{
		Name:   Name,
		Params: params(),
		New: func(d bot.Deps) (bot.Module, error) {
			var names, urls []string
			for _, g := range config.Indexed("WEBPAGES", "NAME", "URL") {
				names = append(names, g["NAME"])
				urls = append(urls, g["URL"])
			}
			return New(names, urls, d.HTTP, d.Log)
		},
	}
}

func params() []bot.Param {
	return []bot.Param{
		{Name: "WEBPAGES_<i>_NAME", Description: "name of web page i"},
		{Name: "WEBPAGES_<i>_URL", Description: "URL of web page i"},
	}
}

func (m *Module) Name() string                { return Name }
func (m *Module) Params() []bot.Param         { return params() }
func (m *Module) Variations() []bot.Variation { return []bot.Variation{bot.Every("poll", DefaultEvery)} }

func (m *Module) Run(ctx context.Context, _ int) []string {
	var out []string
	for _, p := range m.pages {
		if ctx.Err() != nil {
			return out
		}
		sum, err := m.fetch(ctx, p.url)
		if err != nil {
			m.log.Warn("cannot fetch page", logx.String("page", p.name), logx.Err(err))
			continue
		}
		if p.primed && sum != p.sum {
			out = append(out, fmt.Sprintf("[%s](%s) has changed", p.name, p.url))
		}
		p.sum, p.primed = sum, true
	}
	return out
}

func (m *Module) fetch(ctx context.Context, url string) (uint64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := m.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if err := httpx.CheckStatus(resp); err != nil {
		return 0, err
	}
	h := fnv.New64a()
	if _, err := io.Copy(h, io.LimitReader(resp.Body, maxBody)); err != nil {
		return 0, fmt.Errorf("read body: %w", err)
	}
	return h.Sum64(), nil
}
