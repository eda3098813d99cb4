package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"richard/internal/runtime/supervisor"
	logx "richard/pkg/logx"
)

// DefaultMailboxSize is the capacity of the broadcast mailbox.
const DefaultMailboxSize = 100

// Observer receives scheduler events. Implementations must be safe for concurrent use.
type Observer interface {
	VariationRan(module, variation string, took time.Duration)
	VariationPanicked(module string)
	MailboxDepth(n int)
	BatchBroadcast(size int)
	WorkersActive(n int)
	TriggerDispatched(module, tier string)
	TargetState(module, target string, alive bool, rate float64, rateValid bool)
}

// NopObserver discards every event.
type NopObserver struct{}

func (NopObserver) VariationRan(string, string, time.Duration)      {}
func (NopObserver) VariationPanicked(string)                        {}
func (NopObserver) MailboxDepth(int)                                {}
func (NopObserver) BatchBroadcast(int)                              {}
func (NopObserver) WorkersActive(int)                               {}
func (NopObserver) TriggerDispatched(string, string)                {}
func (NopObserver) TargetState(string, string, bool, float64, bool) {}

type Options struct {
	MailboxSize int
	Log         logx.Logger
	Observer    Observer
	// StopTimeout bounds how long Run waits for workers after ctx is canceled.
	StopTimeout time.Duration
}

// Bot runs every module variation on its own worker and fans their output out
// to the SendMessage modules.
type Bot struct {
	reg      *Registry
	log      logx.Logger
	obs      Observer
	tracer   trace.Tracer
	mailbox  chan []string
	stopWait time.Duration
	started  chan struct{}
}

func New(reg *Registry, opts Options) *Bot {
	if opts.MailboxSize <= 0 {
		opts.MailboxSize = DefaultMailboxSize
	}
	if opts.Observer == nil {
		opts.Observer = NopObserver{}
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = 5 * time.Second
	}
	return &Bot{
		reg:      reg,
		log:      opts.Log,
		obs:      opts.Observer,
		tracer:   otel.Tracer("richard/internal/bot"),
		mailbox:  make(chan []string, opts.MailboxSize),
		stopWait: opts.StopTimeout,
		started:  make(chan struct{}),
	}
}

// Started is closed once every worker has been launched.
func (b *Bot) Started() <-chan struct{} { return b.started }

// Run starts the workers and blocks until ctx is canceled (returns nil) or
// every worker has terminated (returns ErrWorkersCollapsed).
func (b *Bot) Run(ctx context.Context) error {
	entries := b.reg.Snapshot()
	if len(entries) == 0 {
		return ErrNoModules
	}

	for _, e := range entries {
		err := e.Handle.Do(ctx, func(m Module) { m.OnRegistry(ctx, entries) })
		if err != nil {
			b.logPanic(e.Name, "registry hook failed", err)
		}
	}

	// Variation workers and the broadcaster are supervised apart so that the
	// broadcaster alone does not keep a collapsed bot alive.
	workers := supervisor.New(ctx,
		supervisor.WithLogger(b.log),
		supervisor.WithPanicHook(func(name string, _ any) {
			module, _, _ := strings.Cut(name, "/")
			b.obs.VariationPanicked(module)
		}),
	)
	fanout := supervisor.New(workers.Context(), supervisor.WithLogger(b.log))
	release := workers.Hold()

	var senders []Entry
	n := 0
	for _, e := range entries {
		if e.Capabilities.SendMessage {
			senders = append(senders, e)
		}
		for i, v := range e.Variations {
			e, i, v := e, i, v
			workers.Go0(fmt.Sprintf("%s/%s", e.Name, v), func(ctx context.Context) {
				defer func() { b.obs.WorkersActive(int(workers.Counters().Active) - 1) }()
				b.work(ctx, e, i, v)
			})
			n++
		}
	}
	fanout.Go0("broadcast", func(ctx context.Context) { b.broadcast(ctx, senders) })

	b.log.Info("bot started", logx.Int("modules", len(entries)), logx.Int("workers", n), logx.Int("senders", len(senders)))
	b.obs.WorkersActive(n)
	release()
	close(b.started)

	stop := func() {
		workers.Cancel()
		wctx, cancel := context.WithTimeout(context.Background(), b.stopWait)
		defer cancel()
		if err := workers.Wait(wctx); errors.Is(err, context.DeadlineExceeded) {
			b.log.Warn("workers did not stop in time", logx.Duration("timeout", b.stopWait))
		}
		_ = fanout.Wait(wctx)
	}

	select {
	case <-ctx.Done():
		stop()
		b.log.Info("bot stopped")
		return nil
	case <-workers.Idle():
		stop()
		if ctx.Err() != nil {
			return nil
		}
		b.log.Error("every worker terminated")
		return ErrWorkersCollapsed
	}
}

func (b *Bot) work(ctx context.Context, e Entry, idx int, v Variation) {
	vlog := b.log.With(logx.String("module", e.Name), logx.String("variation", v.String()))
	for {
		var out []string
		start := time.Now()
		sctx, span := b.tracer.Start(ctx, "variation.run", trace.WithAttributes(
			attribute.String("module", e.Name),
			attribute.String("variation", v.String()),
		))
		err := e.Handle.Do(sctx, func(m Module) { out = m.Run(sctx, idx) })
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		if err != nil {
			var pe *PanicError
			if errors.As(err, &pe) {
				vlog.Error("variation panicked, worker stops", logx.Any("panic", pe.Value), logx.Stack(pe.Stack))
				b.obs.VariationPanicked(e.Name)
			}
			return
		}
		b.obs.VariationRan(e.Name, v.String(), time.Since(start))

		if len(out) > 0 {
			select {
			case b.mailbox <- out:
				b.obs.MailboxDepth(len(b.mailbox))
			case <-ctx.Done():
				return
			}
		}

		wait := v.Wait(time.Now())
		if wait < 0 {
			wait = 0
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func (b *Bot) broadcast(ctx context.Context, senders []Entry) {
	for {
		var batch []string
		select {
		case <-ctx.Done():
			return
		case batch = <-b.mailbox:
		}
		b.obs.MailboxDepth(len(b.mailbox))
		b.obs.BatchBroadcast(len(batch))
		for _, s := range senders {
			err := s.Handle.Do(ctx, func(m Module) {
				if snd, ok := m.(Sender); ok {
					snd.SendMessages(ctx, batch)
				}
			})
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				b.logPanic(s.Name, "sender failed", err)
			}
		}
	}
}

func (b *Bot) logPanic(module, msg string, err error) {
	var pe *PanicError
	if errors.As(err, &pe) {
		b.log.Error(msg, logx.String("module", module), logx.Any("panic", pe.Value), logx.Stack(pe.Stack))
		b.obs.VariationPanicked(module)
		return
	}
	b.log.Warn(msg, logx.String("module", module), logx.Err(err))
}
