package telegram

import (
	"sort"
	"strings"
	"unicode"

	"richard/internal/bot"
)

// maxMenuCommands is Telegram's limit for setMyCommands.
const maxMenuCommands = 100

// commandName converts a trigger into a Telegram-safe command name.
// Telegram command names are restricted to [a-z0-9_]{1,32}.
func commandName(trigger string) string {
	s := strings.TrimSpace(strings.ToLower(trigger))
	var b strings.Builder
	b.Grow(len(s))
	lastUnderscore := false
	for _, r := range s {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastUnderscore = false
		case r == '_' || r == '-' || r == '/' || unicode.IsSpace(r):
			if b.Len() > 0 && !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return ""
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "cmd_" + out
	}
	if len(out) > 32 {
		out = strings.TrimRight(out[:32], "_")
	}
	return out
}

// menu maps Telegram command names to the triggers they stand for.
type menu map[string]string

// buildMenu collects every peer trigger that starts with a slash.
func buildMenu(all []bot.Entry) menu {
	m := menu{}
	for _, e := range all {
		for _, t := range e.Capabilities.Triggers {
			if !strings.HasPrefix(t, "/") {
				continue
			}
			if name := commandName(t); name != "" {
				if _, dup := m[name]; !dup {
					m[name] = t
				}
			}
			if len(m) >= maxMenuCommands {
				return m
			}
		}
	}
	return m
}

func (m menu) names() []string {
	out := make([]string, 0, len(m))
	for n := range m {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// rewrite turns "/oapi_versions@richard_bot args" back into "/oapi-versions args".
func (m menu) rewrite(text string) string {
	if !strings.HasPrefix(text, "/") {
		return text
	}
	head, rest, _ := strings.Cut(text, " ")
	cmd, _, _ := strings.Cut(head[1:], "@")
	trigger, ok := m[cmd]
	if !ok {
		return text
	}
	if rest == "" {
		return trigger
	}
	return trigger + " " + rest
}
