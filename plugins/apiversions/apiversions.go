// Package apiversions announces version changes of Outscale API endpoints.
package apiversions

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"richard/internal/bot"
	"richard/internal/config"
	"richard/internal/httpx"
	logx "richard/pkg/logx"
)

const Name = "outscale_api_versions"

const DefaultEvery = 600 * time.Second

// Trigger lists the last known version of every endpoint.
const Trigger = "/oapi-versions"

// Unknown is shown for an endpoint whose version was never fetched.
const Unknown = "unkown"

var errEmptyVersion = errors.New("empty version in response")

// Fetch POSTs an empty body to endpoint and returns the Version field of the reply.
func Fetch(ctx context.Context, c *http.Client, endpoint string) (string, error) {
	var resp struct {
		Version string `json:"Version"`
	}
	if err := httpx.DoJSON(ctx, c, http.MethodPost, endpoint, nil, nil, &resp); err != nil {
		return "", err
	}
	if resp.Version == "" {
		return "", errEmptyVersion
	}
	return resp.Version, nil
}

// Tracker remembers the last version of one endpoint.
type Tracker struct {
	Name     string
	Endpoint string
	version  string
}

// Update fetches the version and returns it when it differs from a previously
// known one. The first successful fetch only records it.
func (t *Tracker) Update(ctx context.Context, c *http.Client) (changed string, err error) {
	v, err := Fetch(ctx, c, t.Endpoint)
	if err != nil {
		return "", err
	}
	if t.version != "" && t.version != v {
		changed = v
	}
	t.version = v
	return changed, nil
}

// Version returns the last known version or Unknown.
func (t *Tracker) Version() string {
	if t.version == "" {
		return Unknown
	}
	return t.version
}

// Announce is the chat line for a new version.
func Announce(name, version string) string {
	return fmt.Sprintf("New API version on %s: %s", name, version)
}

type Module struct {
	bot.Base
	log      logx.Logger
	http     *http.Client
	trackers []*Tracker
}

func New(names, endpoints []string, client *http.Client, log logx.Logger) *Module {
	m := &Module{log: log, http: client}
	for i := range names {
		if i >= len(endpoints) {
			break
		}
		log.Info("endpoint configured", logx.String("endpoint", names[i]))
		m.trackers = append(m.trackers, &Tracker{Name: names[i], Endpoint: endpoints[i]})
	}
	if len(m.trackers) == 0 {
		log.Warn("outscale_api_versions module enabled but no endpoint configured")
	}
	return m
}

func Factory() bot.Factory {
	return bot.Factory{
		Name:   Name,
		Params: params(),
		New: func(d bot.Deps) (bot.Module, error) {
			var names, endpoints []string
			for _, g := range config.Indexed("OUTSCALE_API_VERSIONS", "NAME", "ENDPOINT") {
				names = append(names, g["NAME"])
				endpoints = append(endpoints, g["ENDPOINT"])
			}
			return New(names, endpoints, d.HTTP, d.Log), nil
		},
	}
}

func params() []bot.Param {
	return []bot.Param{
		{Name: "OUTSCALE_API_VERSIONS_<i>_NAME", Description: "Outscale API name"},
		{Name: "OUTSCALE_API_VERSIONS_<i>_ENDPOINT", Description: "Outscale API endpoint"},
	}
}

func (m *Module) Name() string                { return Name }
func (m *Module) Params() []bot.Param         { return params() }
func (m *Module) Variations() []bot.Variation { return []bot.Variation{bot.Every("version", DefaultEvery)} }

func (m *Module) Capabilities() bot.Capabilities {
	return bot.Capabilities{Triggers: []string{Trigger}}
}

func (m *Module) Run(ctx context.Context, _ int) []string {
	var out []string
	for _, t := range m.trackers {
		v, err := t.Update(ctx, m.http)
		if err != nil {
			m.log.Debug("cannot fetch version", logx.String("endpoint", t.Name), logx.Err(err))
			continue
		}
		if v != "" {
			out = append(out, Announce(t.Name, v))
		}
	}
	return out
}

func (m *Module) Trigger(context.Context, string) []string {
	var b strings.Builder
	for _, t := range m.trackers {
		fmt.Fprintf(&b, "%s: version=%s\n", t.Name, t.Version())
	}
	if b.Len() == 0 {
		return nil
	}
	return []string{b.String()}
}
