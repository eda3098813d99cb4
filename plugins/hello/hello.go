package hello

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"richard/internal/bot"
	"richard/internal/config"
	logx "richard/pkg/logx"
)

const Name = "hello"

// DefaultEvery is one week.
const DefaultEvery = 7 * 24 * time.Hour

type Config struct {
	// Schedule overrides the weekly cadence; cron ("0 9 * * 1") or duration.
	Schedule string `env:"HELLO_SCHEDULE"`
}

// Module broadcasts a random quote on each activation except the first.
type Module struct {
	bot.Base
	log     logx.Logger
	cadence bot.Variation
	quotes  []Quote
	pick    func(n int) int
	primed  bool
}

func New(cfg Config, log logx.Logger) (*Module, error) {
	v := bot.Every("weekly", DefaultEvery)
	if cfg.Schedule != "" {
		var err error
		if v, err = bot.ParseCadence("weekly", cfg.Schedule); err != nil {
			return nil, fmt.Errorf("HELLO_SCHEDULE: %w", err)
		}
	}
	return &Module{log: log, cadence: v, quotes: Quotes, pick: rand.IntN}, nil
}

func Factory() bot.Factory {
	return bot.Factory{
		Name:   Name,
		Params: params(),
		New: func(d bot.Deps) (bot.Module, error) {
			var cfg Config
			if err := config.ParseEnv(&cfg); err != nil {
				return nil, err
			}
			return New(cfg, d.Log)
		},
	}
}

func params() []bot.Param {
	return []bot.Param{{Name: "HELLO_SCHEDULE", Description: "Cron or duration between quotes, weekly by default"}}
}

func (m *Module) Name() string                { return Name }
func (m *Module) Params() []bot.Param         { return params() }
func (m *Module) Variations() []bot.Variation { return []bot.Variation{m.cadence} }

func (m *Module) Run(context.Context, int) []string {
	if !m.primed {
		m.primed = true
		return nil
	}
	if len(m.quotes) == 0 {
		return nil
	}
	q := m.quotes[m.pick(len(m.quotes))]
	return []string{q.String()}
}
