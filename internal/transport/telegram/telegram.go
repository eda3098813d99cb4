// Package telegram is the Telegram chat transport. A long poller buffers text
// messages from the configured chat until the router reads them.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"richard/internal/bot"
	"richard/internal/config"
	"richard/internal/httpx"
	"richard/internal/runtime/supervisor"
	logx "richard/pkg/logx"
)

const Name = "telegram"

// bufferSize bounds messages waiting for the router; newer ones are dropped when full.
const bufferSize = 256

var ErrBadCorrelation = errors.New("bad telegram message id")

type Config struct {
	Token    string `env:"TELEGRAM_TOKEN,notEmpty"`
	ChatID   int64  `env:"TELEGRAM_CHAT_ID,notEmpty"`
	ThreadID int    `env:"TELEGRAM_THREAD_ID"`
	// APIURL overrides https://api.telegram.org.
	APIURL      string        `env:"TELEGRAM_API_URL"`
	PollTimeout time.Duration `env:"TELEGRAM_POLL_TIMEOUT" envDefault:"10s"`
	RatePerSec  float64       `env:"TELEGRAM_RATE_PER_SEC" envDefault:"1"`

	// Offline skips getMe and the poller.
	Offline bool
}

type Module struct {
	bot.Base
	cfg     Config
	log     logx.Logger
	tb      *tele.Bot
	limiter *rate.Limiter
	inbox   chan bot.MessageCtx
	dropped atomic.Uint64
	menu    atomic.Pointer[menu]
	sup     *supervisor.Supervisor
}

func New(cfg Config, deps bot.Deps) (*Module, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 10 * time.Second
	}
	var hc *http.Client
	if deps.HTTP != nil {
		// getUpdates blocks for PollTimeout before answering
		hc = httpx.WithTimeout(deps.HTTP, cfg.PollTimeout+10*time.Second)
	}
	tb, err := tele.NewBot(tele.Settings{
		URL:     cfg.APIURL,
		Token:   cfg.Token,
		Poller:  &tele.LongPoller{Timeout: cfg.PollTimeout},
		Client:  hc,
		Offline: cfg.Offline,
		OnError: func(err error, _ tele.Context) { deps.Log.Warn("telegram handler error", logx.Err(err)) },
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	lim := rate.NewLimiter(rate.Inf, 0)
	if cfg.RatePerSec > 0 {
		lim = rate.NewLimiter(rate.Limit(cfg.RatePerSec), max(1, int(cfg.RatePerSec)))
	}
	m := &Module{cfg: cfg, log: deps.Log, tb: tb, limiter: lim, inbox: make(chan bot.MessageCtx, bufferSize)}
	m.menu.Store(&menu{})
	tb.Handle(tele.OnText, func(c tele.Context) error {
		m.receive(c.Message())
		return nil
	})
	return m, nil
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
			return New(cfg, d)
		},
	}
}

func params() []bot.Param {
	return []bot.Param{
		{Name: "TELEGRAM_TOKEN", Description: "Telegram bot token", Mandatory: true},
		{Name: "TELEGRAM_CHAT_ID", Description: "chat where the bot talks and listens", Mandatory: true},
		{Name: "TELEGRAM_THREAD_ID", Description: "forum topic inside the chat"},
		{Name: "TELEGRAM_API_URL", Description: "Bot API root, https://api.telegram.org by default"},
		{Name: "TELEGRAM_POLL_TIMEOUT", Description: "long poll timeout"},
		{Name: "TELEGRAM_RATE_PER_SEC", Description: "maximum messages sent per second"},
	}
}

func (m *Module) Name() string        { return Name }
func (m *Module) Params() []bot.Param { return params() }

func (m *Module) Capabilities() bot.Capabilities {
	return bot.Capabilities{SendMessage: true, ReadMessage: true, RespMessage: true}
}

// OnRegistry publishes the command menu and starts polling for the lifetime of ctx.
func (m *Module) OnRegistry(ctx context.Context, all []bot.Entry) {
	mn := buildMenu(all)
	m.menu.Store(&mn)
	if err := m.setCommands(mn); err != nil {
		m.log.Warn("cannot update menu commands", logx.Err(err))
	}
	if m.cfg.Offline || m.sup != nil {
		return
	}
	m.sup = supervisor.New(context.WithoutCancel(ctx),
		supervisor.WithLogger(m.log.With(logx.String("comp", "telegram.poller"))),
		supervisor.WithCancelOnError(false),
	)
	go func() {
		<-ctx.Done()
		m.sup.Cancel()
		m.tb.Stop()
	}()
	m.sup.GoRestart("telebot.poll", func(context.Context) error {
		m.log.Info("polling started")
		m.tb.Start()
		m.log.Info("polling stopped")
		return nil
	},
		supervisor.WithRestartBackoff(500*time.Millisecond, 10*time.Second),
		supervisor.WithStopOnCleanExit(false),
	)
	m.sup.Go0("updates.drop_report", m.reportDrops)
}

func (m *Module) setCommands(mn menu) error {
	if len(mn) == 0 {
		return nil
	}
	cmds := make([]tele.Command, 0, len(mn))
	for _, n := range mn.names() {
		cmds = append(cmds, tele.Command{Text: n, Description: mn[n]})
	}
	if err := m.tb.SetCommands(cmds); err != nil {
		return err
	}
	m.log.Info("menu commands updated", logx.Int("count", len(cmds)))
	return nil
}

func (m *Module) reportDrops(ctx context.Context) {
	t := time.NewTicker(5 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := m.dropped.Swap(0); n > 0 {
				m.log.Warn("incoming messages dropped (buffer full)", logx.Uint64("count", n), logx.Int("cap", cap(m.inbox)))
			}
		}
	}
}

// receive runs on the poller goroutine.
func (m *Module) receive(msg *tele.Message) {
	if msg == nil || msg.Chat == nil || msg.Chat.ID != m.cfg.ChatID {
		return
	}
	if m.cfg.ThreadID != 0 && msg.ThreadID != m.cfg.ThreadID {
		return
	}
	mc := bot.MessageCtx{Text: m.menu.Load().rewrite(msg.Text), ID: correlation(msg.Chat.ID, msg.ID, msg.ThreadID)}
	select {
	case m.inbox <- mc:
	default:
		m.dropped.Add(1)
	}
}

func (m *Module) ReadMessages(context.Context) []bot.MessageCtx {
	var out []bot.MessageCtx
	for {
		select {
		case mc := <-m.inbox:
			out = append(out, mc)
		default:
			return out
		}
	}
}

func (m *Module) SendMessages(ctx context.Context, messages []string) {
	for _, msg := range messages {
		if err := m.Announce(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return
			}
			m.log.Error("cannot send message", logx.Err(err))
		}
	}
}

// Announce posts text to the configured chat. It is safe to call outside the module handle.
func (m *Module) Announce(ctx context.Context, text string) error {
	return m.send(ctx, m.cfg.ChatID, m.cfg.ThreadID, 0, text)
}

func (m *Module) Respond(ctx context.Context, parent bot.MessageCtx, message string) {
	chat, msgID, thread, err := parseCorrelation(parent.ID)
	if err != nil {
		m.log.Error("cannot respond", logx.Err(err))
		return
	}
	if err := m.send(ctx, chat, thread, msgID, message); err != nil && ctx.Err() == nil {
		m.log.Error("cannot respond", logx.String("parent", parent.ID), logx.Err(err))
	}
}

// send posts text in chunks. Markdown is tried first and plain text is used when
// Telegram rejects the markup.
func (m *Module) send(ctx context.Context, chat int64, thread, replyTo int, text string) error {
	to := &tele.Chat{ID: chat}
	for i, chunk := range splitText(text, textLimit) {
		if err := m.limiter.Wait(ctx); err != nil {
			return err
		}
		opts := &tele.SendOptions{ThreadID: thread, ParseMode: tele.ModeMarkdown, DisableWebPagePreview: true}
		if i == 0 && replyTo != 0 {
			opts.ReplyTo = &tele.Message{ID: replyTo, Chat: to}
		}
		if _, err := m.tb.Send(to, chunk, opts); err != nil {
			opts.ParseMode = tele.ModeDefault
			if _, err2 := m.tb.Send(to, chunk, opts); err2 != nil {
				return errors.Join(err, err2)
			}
		}
	}
	return nil
}

func correlation(chat int64, msgID, thread int) string {
	id := strconv.FormatInt(chat, 10) + ":" + strconv.Itoa(msgID)
	if thread != 0 {
		id += ":" + strconv.Itoa(thread)
	}
	return id
}

func parseCorrelation(id string) (chat int64, msgID, thread int, err error) {
	parts := strings.Split(id, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, 0, 0, fmt.Errorf("%w: %q", ErrBadCorrelation, id)
	}
	if chat, err = strconv.ParseInt(parts[0], 10, 64); err != nil {
		return 0, 0, 0, fmt.Errorf("%w: %q", ErrBadCorrelation, id)
	}
	if msgID, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, 0, fmt.Errorf("%w: %q", ErrBadCorrelation, id)
	}
	if len(parts) == 3 {
		if thread, err = strconv.Atoi(parts[2]); err != nil {
			return 0, 0, 0, fmt.Errorf("%w: %q", ErrBadCorrelation, id)
		}
	}
	return chat, msgID, thread, nil
}
