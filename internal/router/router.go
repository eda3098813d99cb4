// Package router dispatches chat messages to trigger-capable modules and sends
// their replies back to the chat module the message came from.
package router

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"richard/internal/bot"
	logx "richard/pkg/logx"
)

// Name is the router's module name; it never routes to itself.
const Name = "triggers"

// DefaultEvery is how often chat modules are polled.
const DefaultEvery = 10 * time.Second

// Apology replaces the replies of a module that failed while handling a message.
const Apology = "Sorry, I can't respond to that right now."

// Dispatch tiers.
const (
	TierCatchAll = "catch_all"
	TierMatched  = "matched"
	TierFallback = "fallback"
)

// Invoker calls one target module for a message.
type Invoker func(ctx context.Context, target bot.Entry, tier, text string) ([]string, error)

// Middleware wraps an Invoker.
type Middleware func(next Invoker) Invoker

// Chain applies m so that m[0] is outermost.
func Chain(h Invoker, m ...Middleware) Invoker {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

type Options struct {
	Log      logx.Logger
	Observer bot.Observer
	// Every overrides DefaultEvery.
	Every time.Duration
	// Poll, when it carries a schedule or cooldown, replaces Every.
	Poll bot.Variation
	// Timeout bounds a single target invocation. Zero means no limit.
	Timeout time.Duration
}

// Router is itself a module with a single polling variation.
type Router struct {
	bot.Base

	log    logx.Logger
	obs    bot.Observer
	poll   bot.Variation
	tracer trace.Tracer
	invoke Invoker

	targets []bot.Entry
	chats   []bot.Entry
}

func New(opts Options) *Router {
	if opts.Observer == nil {
		opts.Observer = bot.NopObserver{}
	}
	if opts.Every <= 0 {
		opts.Every = DefaultEvery
	}
	poll := opts.Poll
	if poll.Schedule == nil && poll.Every <= 0 {
		poll = bot.Every("poll", opts.Every)
	}
	poll.Name = "poll"
	r := &Router{
		log:    opts.Log,
		obs:    opts.Observer,
		poll:   poll,
		tracer: otel.Tracer("richard/internal/router"),
	}
	r.invoke = Chain(callTrigger, r.withObserver, withTimeout(opts.Timeout))
	return r
}

func (r *Router) Name() string { return Name }

func (r *Router) Variations() []bot.Variation {
	return []bot.Variation{r.poll}
}

// OnRegistry splits the peers into dispatch targets and chat modules.
func (r *Router) OnRegistry(_ context.Context, all []bot.Entry) {
	r.targets, r.chats = nil, nil
	for _, e := range all {
		if e.Name == Name {
			continue
		}
		if e.Capabilities.Routable() {
			r.targets = append(r.targets, e)
		}
		if e.Capabilities.Chat() {
			r.chats = append(r.chats, e)
		}
	}
	r.log.Info("router ready", logx.Int("targets", len(r.targets)), logx.Int("chats", len(r.chats)))
}

// Targets returns the names of modules messages may be dispatched to.
func (r *Router) Targets() []string {
	out := make([]string, 0, len(r.targets))
	for _, e := range r.targets {
		out = append(out, e.Name)
	}
	return out
}

func (r *Router) Run(ctx context.Context, _ int) []string {
	for _, chat := range r.chats {
		if ctx.Err() != nil {
			return nil
		}
		r.pollChat(ctx, chat)
	}
	return nil
}

func (r *Router) pollChat(ctx context.Context, chat bot.Entry) {
	if !chat.Capabilities.ReadMessage {
		return
	}
	var msgs []bot.MessageCtx
	err := chat.Handle.Do(ctx, func(m bot.Module) {
		if rd, ok := m.(bot.Reader); ok {
			msgs = rd.ReadMessages(ctx)
		}
	})
	if err != nil {
		r.logFailure(chat.Name, "reading messages failed", err)
		return
	}
	for _, msg := range msgs {
		replies := r.Dispatch(ctx, msg)
		if len(replies) == 0 {
			continue
		}
		r.reply(ctx, chat, msg, replies)
	}
}

// Dispatch runs every module the message activates and returns their replies
// in evaluation order. The caller must not hold any target's handle.
func (r *Router) Dispatch(ctx context.Context, msg bot.MessageCtx) []string {
	id := uuid.NewString()
	dlog := r.log.With(logx.String("dispatch_id", id))
	ctx, span := r.tracer.Start(ctx, "trigger.dispatch", trace.WithAttributes(attribute.String("dispatch_id", id)))
	defer span.End()

	dlog.Debug("message received", logx.String("text", msg.Text))

	var replies []string
	matched := false
	for _, t := range r.targets {
		if t.Capabilities.CatchAll {
			replies = append(replies, r.call(ctx, dlog, t, TierCatchAll, msg.Text)...)
		}
		if trig, ok := t.Capabilities.Match(msg.Text); ok {
			dlog.Debug("module triggered", logx.String("module", t.Name), logx.String("trigger", trig))
			matched = true
			replies = append(replies, r.call(ctx, dlog, t, TierMatched, msg.Text)...)
		}
	}
	if !matched {
		for _, t := range r.targets {
			if t.Capabilities.CatchNonTriggered {
				replies = append(replies, r.call(ctx, dlog, t, TierFallback, msg.Text)...)
			}
		}
	}
	span.SetAttributes(attribute.Bool("matched", matched), attribute.Int("replies", len(replies)))
	return replies
}

func (r *Router) reply(ctx context.Context, chat bot.Entry, parent bot.MessageCtx, replies []string) {
	if !chat.Capabilities.RespMessage {
		r.log.Warn("chat module cannot reply", logx.String("module", chat.Name), logx.Int("dropped", len(replies)))
		return
	}
	err := chat.Handle.Do(ctx, func(m bot.Module) {
		rs, ok := m.(bot.Responder)
		if !ok {
			return
		}
		for _, text := range replies {
			rs.Respond(ctx, parent, text)
		}
	})
	if err != nil {
		r.logFailure(chat.Name, "sending replies failed", err)
	}
}

func (r *Router) logFailure(module, msg string, err error) {
	var pe *bot.PanicError
	if errors.As(err, &pe) {
		r.log.Error(msg, logx.String("module", module), logx.Any("panic", pe.Value), logx.Stack(pe.Stack))
		return
	}
	r.log.Warn(msg, logx.String("module", module), logx.Err(err))
}

// call invokes one target. A failure becomes a single apology reply unless
// the router is shutting down.
func (r *Router) call(ctx context.Context, log logx.Logger, target bot.Entry, tier, text string) []string {
	out, err := r.invoke(ctx, target, tier, text)
	if err == nil {
		return out
	}
	if ctx.Err() != nil {
		return nil
	}
	fields := []logx.Field{logx.String("module", target.Name), logx.String("tier", tier)}
	var pe *bot.PanicError
	if errors.As(err, &pe) {
		fields = append(fields, logx.Any("panic", pe.Value), logx.Stack(pe.Stack))
	} else {
		fields = append(fields, logx.Err(err))
	}
	log.Error("trigger failed", fields...)
	return []string{Apology}
}

func callTrigger(ctx context.Context, target bot.Entry, _ string, text string) ([]string, error) {
	var out []string
	err := target.Handle.Do(ctx, func(m bot.Module) { out = m.Trigger(ctx, text) })
	return out, err
}

func (r *Router) withObserver(next Invoker) Invoker {
	return func(ctx context.Context, target bot.Entry, tier, text string) ([]string, error) {
		r.obs.TriggerDispatched(target.Name, tier)
		return next(ctx, target, tier, text)
	}
}

func withTimeout(d time.Duration) Middleware {
	return func(next Invoker) Invoker {
		return func(ctx context.Context, target bot.Entry, tier, text string) ([]string, error) {
			if d <= 0 {
				return next(ctx, target, tier, text)
			}
			cctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(cctx, target, tier, text)
		}
	}
}
