// Package downdetectors watches arbitrary URLs with GET probes.
package downdetectors

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"richard/internal/bot"
	"richard/internal/config"
	"richard/internal/liveness"
	logx "richard/pkg/logx"
)

const Name = "down_detectors"

const Every = 2 * time.Second

type Module struct {
	bot.Base
	log     logx.Logger
	obs     bot.Observer
	http    *http.Client
	watched []*liveness.Monitor
}

func New(names, urls []string, client *http.Client, obs bot.Observer, log logx.Logger) *Module {
	if obs == nil {
		obs = bot.NopObserver{}
	}
	m := &Module{log: log, obs: obs, http: client}
	for i := range names {
		if i >= len(urls) {
			break
		}
		log.Info("down detector configured", logx.String("target", names[i]))
		m.watched = append(m.watched, &liveness.Monitor{Name: names[i], Target: urls[i]})
	}
	if len(m.watched) == 0 {
		log.Warn("down_detectors module enabled but no target configured")
	}
	return m
}

func Factory() bot.Factory {
	return bot.Factory{
		Name:   Name,
		Params: params(),
		New: func(d bot.Deps) (bot.Module, error) {
			var names, urls []string
			for _, g := range config.Indexed("DOWN_DETECTORS", "NAME", "URL") {
				names = append(names, g["NAME"])
				urls = append(urls, g["URL"])
			}
			return New(names, urls, d.HTTP, d.Observer, d.Log), nil
		},
	}
}

func params() []bot.Param {
	return []bot.Param{
		{Name: "DOWN_DETECTORS_<i>_NAME", Description: "Friendly name of what is watched"},
		{Name: "DOWN_DETECTORS_<i>_URL", Description: "URL of what is watched"},
	}
}

func (m *Module) Name() string        { return Name }
func (m *Module) Params() []bot.Param { return params() }

func (m *Module) Capabilities() bot.Capabilities {
	return bot.Capabilities{Triggers: []string{"/status"}}
}

func (m *Module) Variations() []bot.Variation {
	return []bot.Variation{bot.Every("error_rate", Every), bot.Every("alive", Every)}
}

func (m *Module) Run(ctx context.Context, idx int) []string {
	var out []string
	for _, w := range m.watched {
		err := liveness.Probe(ctx, m.http, http.MethodGet, w.Target)
		if ctx.Err() != nil {
			return out
		}
		switch idx {
		case 0:
			rate, ok := w.Errors.Record(err != nil)
			if ok && rate > liveness.HighErrorRate {
				m.log.Warn(fmt.Sprintf("high error rate on %s: %d%%", w.Name, liveness.Percent(rate)))
			}
		case 1:
			if msg := m.transition(w, w.Live.Record(err)); msg != "" {
				out = append(out, msg)
			}
		default:
			m.log.Error("variation is not managed", logx.Int("variation", idx))
			return nil
		}
		rate, ok := w.Errors.Rate()
		m.obs.TargetState(Name, w.Name, w.Live.Alive(), rate, ok)
	}
	return out
}

func (m *Module) transition(w *liveness.Monitor, tr liveness.Transition) string {
	switch tr {
	case liveness.WentDown:
		last := w.Live.LastErr()
		if last == nil {
			return w.Name + " seems down (no reason found)"
		}
		if !liveness.Reportable(last) {
			m.log.Error("probe failed", logx.String("target", w.Name), logx.Err(last))
			return ""
		}
		return fmt.Sprintf("%s: %s", w.Name, last)
	case liveness.CameUp:
		return w.Name + " is up"
	}
	return ""
}

func (m *Module) Trigger(context.Context, string) []string {
	var b strings.Builder
	for _, w := range m.watched {
		rate, ok := w.Errors.Rate()
		fmt.Fprintf(&b, "%s: alive=%t, error_rate=%s\n", w.Name, w.Live.Alive(), liveness.FormatRate(rate, ok))
	}
	if b.Len() == 0 {
		return nil
	}
	return []string{b.String()}
}
