package help

import (
	"context"
	"sort"
	"strings"

	"richard/internal/bot"
)

const Name = "help"

// Module lists every trigger declared by the registered modules.
type Module struct {
	bot.Base
	commands []string
}

func New() *Module { return &Module{} }

func Factory() bot.Factory {
	return bot.Factory{Name: Name, New: func(bot.Deps) (bot.Module, error) { return New(), nil }}
}

func (m *Module) Name() string { return Name }

func (m *Module) Capabilities() bot.Capabilities {
	return bot.Capabilities{Triggers: []string{"/help"}}
}

func (m *Module) OnRegistry(_ context.Context, all []bot.Entry) {
	seen := map[string]struct{}{}
	for _, e := range all {
		for _, t := range e.Capabilities.Triggers {
			seen[t] = struct{}{}
		}
	}
	m.commands = m.commands[:0]
	for t := range seen {
		m.commands = append(m.commands, t)
	}
	sort.Strings(m.commands)
}

func (m *Module) Trigger(context.Context, string) []string {
	var b strings.Builder
	b.WriteString("Available commands are:\n")
	for _, c := range m.commands {
		b.WriteString("- ")
		b.WriteString(c)
		b.WriteString("\n")
	}
	return []string{b.String()}
}
