package ping

import (
	"context"

	"richard/internal/bot"
)

const Name = "ping"

type Module struct {
	bot.Base
}

func New() *Module { return &Module{} }

func Factory() bot.Factory {
	return bot.Factory{Name: Name, New: func(bot.Deps) (bot.Module, error) { return New(), nil }}
}

func (m *Module) Name() string { return Name }

func (m *Module) Capabilities() bot.Capabilities {
	return bot.Capabilities{Triggers: []string{"/ping"}}
}

func (m *Module) Trigger(context.Context, string) []string { return []string{"pong"} }
