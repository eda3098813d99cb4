package feeds

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"richard/internal/bot"
	"richard/internal/config"
	logx "richard/pkg/logx"
)

const Name = "feeds"

const DefaultEvery = time.Hour

var ErrNoFeeds = errors.New("no FEED_<i>_NAME / FEED_<i>_URL configured")

// Entry is the part of a feed item that is announced.
type Entry struct {
	ID        string
	Title     string
	URL       string
	Published time.Time
}

func (e Entry) announce(feed string) string {
	switch {
	case e.Title != "" && e.URL != "":
		return fmt.Sprintf("%s: [%s](%s)", feed, e.Title, e.URL)
	case e.Title != "":
		return fmt.Sprintf("New post on %s: %s", feed, e.Title)
	case e.URL != "":
		return fmt.Sprintf("New post on [%s](%s)", feed, e.URL)
	default:
		return "New post on " + feed
	}
}

type feed struct {
	name   string
	url    string
	latest *Entry
}

// Module announces the newest entry of each feed when it changes.
type Module struct {
	bot.Base
	log    logx.Logger
	parser *gofeed.Parser
	feeds  []*feed
}

func New(names, urls []string, client *http.Client, log logx.Logger) (*Module, error) {
	if len(names) == 0 || len(names) != len(urls) {
		return nil, ErrNoFeeds
	}
	p := gofeed.NewParser()
	p.Client = client
	m := &Module{log: log, parser: p}
	for i := range names {
		m.feeds = append(m.feeds, &feed{name: names[i], url: urls[i]})
	}
	return m, nil
}

func Factory() bot.Factory {
	return bot.Factory{
		Name:   Name,
		Params: params(),
		New: func(d bot.Deps) (bot.Module, error) {
			var names, urls []string
			for _, g := range config.Indexed("FEED", "NAME", "URL") {
				names = append(names, g["NAME"])
				urls = append(urls, g["URL"])
			}
			return New(names, urls, d.HTTP, d.Log)
		},
	}
}

func params() []bot.Param {
	return []bot.Param{
		{Name: "FEED_<i>_NAME", Description: "name of feed i"},
		{Name: "FEED_<i>_URL", Description: "RSS or Atom URL of feed i"},
	}
}

func (m *Module) Name() string                { return Name }
func (m *Module) Params() []bot.Param         { return params() }
func (m *Module) Variations() []bot.Variation { return []bot.Variation{bot.Every("poll", DefaultEvery)} }

func (m *Module) Run(ctx context.Context, _ int) []string {
	var out []string
	for _, f := range m.feeds {
		if ctx.Err() != nil {
			return out
		}
		newest, err := m.newest(ctx, f.url)
		if err != nil {
			m.log.Warn("cannot fetch feed", logx.String("feed", f.name), logx.Err(err))
			continue
		}
		if newest == nil {
			continue
		}
		if f.latest != nil && f.latest.ID != newest.ID {
			out = append(out, newest.announce(f.name))
		}
		f.latest = newest
	}
	return out
}

func (m *Module) newest(ctx context.Context, url string) (*Entry, error) {
	parsed, err := m.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, err
	}
	var best *gofeed.Item
	for _, it := range parsed.Items {
		if it == nil || it.PublishedParsed == nil {
			continue
		}
		if best == nil || it.PublishedParsed.After(*best.PublishedParsed) {
			best = it
		}
	}
	if best == nil {
		return nil, nil
	}
	id := best.GUID
	if id == "" {
		id = best.Link
	}
	return &Entry{ID: id, Title: best.Title, URL: best.Link, Published: *best.PublishedParsed}, nil
}
