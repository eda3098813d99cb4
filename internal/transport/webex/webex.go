package webex

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"richard/internal/bot"
	"richard/internal/config"
	logx "richard/pkg/logx"
)

const Name = "webex"

// CheckEvery is how often the API is re-checked.
const CheckEvery = 24 * time.Hour

type Config struct {
	Token  string `env:"WEBEX_TOKEN,notEmpty"`
	RoomID string `env:"WEBEX_ROOM_ID,notEmpty"`
	APIURL string `env:"WEBEX_API_URL"`
	// RatePerSec throttles outbound posts; 0 disables throttling.
	RatePerSec float64 `env:"WEBEX_RATE_PER_SEC" envDefault:"5"`
}

// Module sends, reads and answers messages in one Webex room.
type Module struct {
	bot.Base
	log     logx.Logger
	client  *Client
	limiter *rate.Limiter
	failed  atomic.Uint64
}

func New(cfg Config, deps bot.Deps) *Module {
	lim := rate.NewLimiter(rate.Inf, 0)
	if cfg.RatePerSec > 0 {
		lim = rate.NewLimiter(rate.Limit(cfg.RatePerSec), max(1, int(cfg.RatePerSec)))
	}
	return &Module{
		log:     deps.Log,
		client:  NewClient(deps.HTTP, cfg.APIURL, cfg.Token, cfg.RoomID),
		limiter: lim,
	}
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
			return New(cfg, d), nil
		},
	}
}

func params() []bot.Param {
	return []bot.Param{
		{Name: "WEBEX_TOKEN", Description: "Webex bot token", Mandatory: true},
		{Name: "WEBEX_ROOM_ID", Description: "Webex room id where to talk", Mandatory: true},
		{Name: "WEBEX_API_URL", Description: "Webex API root, " + DefaultAPIURL + " by default"},
		{Name: "WEBEX_RATE_PER_SEC", Description: "maximum messages posted per second"},
	}
}

func (m *Module) Name() string                { return Name }
func (m *Module) Params() []bot.Param         { return params() }
func (m *Module) Variations() []bot.Variation { return []bot.Variation{bot.Every("check", CheckEvery)} }

func (m *Module) Capabilities() bot.Capabilities {
	return bot.Capabilities{SendMessage: true, ReadMessage: true, RespMessage: true}
}

func (m *Module) OnRegistry(ctx context.Context, _ []bot.Entry) { m.check(ctx) }

func (m *Module) Run(ctx context.Context, _ int) []string {
	m.check(ctx)
	return nil
}

func (m *Module) check(ctx context.Context) {
	if err := m.client.Check(ctx); err != nil {
		m.log.Warn("checking Webex API: KO", logx.Err(err))
		return
	}
	m.log.Info("checking Webex API: OK")
}

func (m *Module) SendMessages(ctx context.Context, messages []string) {
	for _, msg := range messages {
		if err := m.Announce(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return
			}
			m.failed.Add(1)
			m.log.Error("cannot send message", logx.Err(err), logx.Uint64("failed_total", m.failed.Load()))
		}
	}
}

// Announce posts markdown to the room. It is safe to call outside the module handle.
func (m *Module) Announce(ctx context.Context, text string) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return err
	}
	return m.client.Say(ctx, text)
}

func (m *Module) ReadMessages(ctx context.Context) []bot.MessageCtx {
	msgs, err := m.client.Unread(ctx)
	if err != nil {
		if ctx.Err() == nil {
			m.log.Warn("cannot read messages", logx.Err(err))
		}
		return nil
	}
	out := make([]bot.MessageCtx, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, bot.MessageCtx{Text: msg.Text, ID: msg.ID})
	}
	return out
}

func (m *Module) Respond(ctx context.Context, parent bot.MessageCtx, message string) {
	if err := m.limiter.Wait(ctx); err != nil {
		return
	}
	if err := m.client.Respond(ctx, parent.ID, message); err != nil {
		m.log.Error("cannot respond", logx.String("parent", parent.ID), logx.Err(err))
	}
}
