// Package endpoints watches Outscale regional API endpoints: reachability,
// rolling error rate and announced API version.
package endpoints

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"richard/internal/bot"
	"richard/internal/config"
	"richard/internal/liveness"
	"richard/plugins/apiversions"
	logx "richard/pkg/logx"
)

const Name = "endpoints"

const (
	ErrorRateEvery = 2 * time.Second
	AliveEvery     = 2 * time.Second
	VersionEvery   = 600 * time.Second
)

type region struct {
	mon     liveness.Monitor
	version apiversions.Tracker
}

type Module struct {
	bot.Base
	log     logx.Logger
	obs     bot.Observer
	http    *http.Client
	regions []*region
}

func New(names, endpoints []string, client *http.Client, obs bot.Observer, log logx.Logger) *Module {
	if obs == nil {
		obs = bot.NopObserver{}
	}
	m := &Module{log: log, obs: obs, http: client}
	for i := range names {
		if i >= len(endpoints) {
			break
		}
		log.Info("endpoint configured", logx.String("region", names[i]))
		m.regions = append(m.regions, &region{
			mon:     liveness.Monitor{Name: names[i], Target: endpoints[i]},
			version: apiversions.Tracker{Name: names[i], Endpoint: endpoints[i]},
		})
	}
	return m
}

func Factory() bot.Factory {
	return bot.Factory{
		Name:   Name,
		Params: params(),
		New: func(d bot.Deps) (bot.Module, error) {
			var names, endpoints []string
			for _, g := range config.Indexed("REGION", "NAME", "ENDPOINT") {
				names = append(names, g["NAME"])
				endpoints = append(endpoints, g["ENDPOINT"])
			}
			return New(names, endpoints, d.HTTP, d.Observer, d.Log), nil
		},
	}
}

func params() []bot.Param {
	return []bot.Param{
		{Name: "REGION_<i>_NAME", Description: "Outscale region name of the endpoints"},
		{Name: "REGION_<i>_ENDPOINT", Description: "Outscale region endpoint"},
	}
}

func (m *Module) Name() string        { return Name }
func (m *Module) Params() []bot.Param { return params() }

func (m *Module) Capabilities() bot.Capabilities {
	return bot.Capabilities{Triggers: []string{"/status"}}
}

func (m *Module) Variations() []bot.Variation {
	return []bot.Variation{
		bot.Every("error_rate", ErrorRateEvery),
		bot.Every("alive", AliveEvery),
		bot.Every("version", VersionEvery),
	}
}

func (m *Module) Run(ctx context.Context, idx int) []string {
	switch idx {
	case 0:
		m.runErrorRate(ctx)
		return nil
	case 1:
		return m.runAlive(ctx)
	case 2:
		return m.runVersion(ctx)
	default:
		m.log.Error("variation is not managed", logx.Int("variation", idx))
		return nil
	}
}

func (m *Module) runErrorRate(ctx context.Context) {
	for _, r := range m.regions {
		_, err := apiversions.Fetch(ctx, m.http, r.mon.Target)
		if ctx.Err() != nil {
			return
		}
		rate, ok := r.mon.Errors.Record(err != nil)
		m.obs.TargetState(Name, r.mon.Name, r.mon.Live.Alive(), rate, ok)
		if ok && rate > liveness.HighErrorRate {
			m.log.Warn(fmt.Sprintf("high error rate on %s: %d%%", r.mon.Name, liveness.Percent(rate)))
		}
	}
}

func (m *Module) runAlive(ctx context.Context) []string {
	var out []string
	for _, r := range m.regions {
		err := liveness.Probe(ctx, m.http, http.MethodPost, r.mon.Target)
		if ctx.Err() != nil {
			return out
		}
		tr := r.mon.Live.Record(err)
		rate, ok := r.mon.Errors.Rate()
		m.obs.TargetState(Name, r.mon.Name, r.mon.Live.Alive(), rate, ok)
		if msg, send := m.transition(r, tr); send {
			out = append(out, msg)
		}
		if !r.mon.Live.Alive() {
			m.log.Warn("API of region is not alive", logx.String("region", r.mon.Name))
		}
	}
	return out
}

func (m *Module) transition(r *region, tr liveness.Transition) (string, bool) {
	switch tr {
	case liveness.WentDown:
		last := r.mon.Live.LastErr()
		if last == nil {
			return fmt.Sprintf("API on %s region seems down (no reason found)", r.mon.Name), true
		}
		if !liveness.Reportable(last) {
			m.log.Error("probe failed", logx.String("region", r.mon.Name), logx.Err(last))
			return "", false
		}
		return fmt.Sprintf("%s region: %s", r.mon.Name, last), true
	case liveness.CameUp:
		return fmt.Sprintf("API on %s region is up", r.mon.Name), true
	default:
		return "", false
	}
}

func (m *Module) runVersion(ctx context.Context) []string {
	var out []string
	for _, r := range m.regions {
		m.log.Debug("updating version", logx.String("region", r.mon.Name))
		v, err := r.version.Update(ctx, m.http)
		if err != nil {
			m.log.Debug("cannot fetch version", logx.String("region", r.mon.Name), logx.Err(err))
			continue
		}
		if v != "" {
			out = append(out, apiversions.Announce(r.mon.Name, v))
		}
	}
	return out
}

// Trigger answers /status with one line per region.
func (m *Module) Trigger(context.Context, string) []string {
	var b strings.Builder
	for _, r := range m.regions {
		rate, ok := r.mon.Errors.Rate()
		fmt.Fprintf(&b, "%s: alive=%t, version=%s, error_rate=%s\n",
			r.mon.Name, r.mon.Live.Alive(), r.version.Version(), liveness.FormatRate(rate, ok))
	}
	if b.Len() == 0 {
		return nil
	}
	return []string{b.String()}
}
