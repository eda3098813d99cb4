package bot

import (
	"context"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Module is an independently schedulable unit of work.
//
// A module's methods are only ever called while its Handle is held, so an
// implementation may mutate its own state without further locking.
// Failures inside a module are logged by the module and never returned.
type Module interface {
	Name() string
	Params() []Param
	Capabilities() Capabilities
	// Variations is queried once at registration; one worker runs per entry.
	Variations() []Variation
	// OnRegistry is called once, before any variation runs, with every registered module.
	OnRegistry(ctx context.Context, all []Entry)
	// Run executes one variation and returns messages to broadcast (nil for none).
	Run(ctx context.Context, variation int) []string
	// Trigger reacts to a routed chat message and returns replies (nil for none).
	Trigger(ctx context.Context, text string) []string
}

// Sender is implemented by modules with the SendMessage capability.
type Sender interface {
	SendMessages(ctx context.Context, messages []string)
}

// Reader is implemented by modules with the ReadMessage capability.
// An empty result is normal; a failed fetch is reported as empty.
type Reader interface {
	ReadMessages(ctx context.Context) []MessageCtx
}

// Responder is implemented by modules with the RespMessage capability.
type Responder interface {
	Respond(ctx context.Context, parent MessageCtx, message string)
}

// MessageCtx is an incoming chat message. ID is owned by the transport and
// only round-tripped back to it.
type MessageCtx struct {
	Text string
	ID   string
}

// Param is a configuration key a module reads from the environment.
type Param struct {
	Name        string
	Description string
	Mandatory   bool
}

// Capabilities declare how a module takes part in dispatch. They are fixed after construction.
type Capabilities struct {
	Triggers          []string
	CatchAll          bool
	CatchNonTriggered bool
	SendMessage       bool
	ReadMessage       bool
	RespMessage       bool
}

// Routable reports whether the router should consider the module for incoming messages.
func (c Capabilities) Routable() bool {
	return len(c.Triggers) > 0 || c.CatchAll || c.CatchNonTriggered
}

// Chat reports whether the module is a chat transport (source or reply sink).
func (c Capabilities) Chat() bool {
	return c.ReadMessage || c.RespMessage
}

// Match returns the first declared trigger contained in text.
// Matching is plain, case-sensitive substring containment.
func (c Capabilities) Match(text string) (string, bool) {
	for _, t := range c.Triggers {
		if t != "" && strings.Contains(text, t) {
			return t, true
		}
	}
	return "", false
}

// Variation is one independently cadenced job of a module.
type Variation struct {
	Name string
	// Every is the cooldown slept after each run.
	Every time.Duration
	// Schedule, when set, replaces Every: the worker sleeps until the next activation.
	Schedule cron.Schedule
}

// Every builds a fixed-cooldown variation.
func Every(name string, d time.Duration) Variation {
	return Variation{Name: name, Every: d}
}

// Wait returns how long to sleep after a run finishing at now.
func (v Variation) Wait(now time.Time) time.Duration {
	if v.Schedule != nil {
		return v.Schedule.Next(now).Sub(now)
	}
	return v.Every
}

func (v Variation) String() string {
	if v.Name != "" {
		return v.Name
	}
	return v.Every.String()
}

// Base provides no-op defaults; embed it and override what the module needs.
type Base struct{}

func (Base) Params() []Param                          { return nil }
func (Base) Capabilities() Capabilities               { return Capabilities{} }
func (Base) Variations() []Variation                  { return nil }
func (Base) OnRegistry(context.Context, []Entry)      {}
func (Base) Run(context.Context, int) []string        { return nil }
func (Base) Trigger(context.Context, string) []string { return nil }
