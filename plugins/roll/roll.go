package roll

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"richard/internal/bot"
	logx "richard/pkg/logx"
)

const Name = "roll"

const (
	maxDice  = 1000
	maxFaces = 1000
)

// Usage is replied when the request cannot be parsed.
const Usage = "roll <dices> : roll one or more dices where '<dice>' is formated like 1d20."

var errSyntax = errors.New("invalid dice")

// Module rolls dice on "/roll 2d6 1d20".
type Module struct {
	bot.Base
	log logx.Logger
	// intn returns a value in [0,n).
	intn func(n int) int
}

func New(log logx.Logger) *Module {
	return &Module{log: log, intn: rand.IntN}
}

func Factory() bot.Factory {
	return bot.Factory{Name: Name, New: func(d bot.Deps) (bot.Module, error) { return New(d.Log), nil }}
}

func (m *Module) Name() string { return Name }

func (m *Module) Capabilities() bot.Capabilities {
	return bot.Capabilities{Triggers: []string{"/roll"}}
}

func (m *Module) Trigger(_ context.Context, text string) []string {
	out, err := m.roll(text)
	if err != nil {
		m.log.Debug("cannot roll", logx.String("text", text), logx.Err(err))
		return []string{Usage}
	}
	return []string{out}
}

func (m *Module) roll(text string) (string, error) {
	_, after, ok := strings.Cut(text, "/roll")
	if !ok {
		return "", errSyntax
	}
	specs := strings.Fields(after)
	if len(specs) == 0 {
		return "", errSyntax
	}
	lines := make([]string, 0, len(specs))
	for _, s := range specs {
		count, faces, err := parseDice(s)
		if err != nil {
			return "", err
		}
		lines = append(lines, m.throw(count, faces))
	}
	return strings.Join(lines, "\n"), nil
}

func parseDice(s string) (count, faces int, err error) {
	cs, fs, ok := strings.Cut(s, "d")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", errSyntax, s)
	}
	count, err = strconv.Atoi(cs)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", errSyntax, s)
	}
	faces, err = strconv.Atoi(fs)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", errSyntax, s)
	}
	if count < 1 || count > maxDice || faces < 1 || faces > maxFaces {
		return 0, 0, fmt.Errorf("%w: %q out of range", errSyntax, s)
	}
	return count, faces, nil
}

// throw formats "roll 2d6: (3+4) = 7"; single dice and huge rolls show the total only.
func (m *Module) throw(count, faces int) string {
	detail := count > 1 && count < 100
	var b strings.Builder
	fmt.Fprintf(&b, "roll %dd%d: ", count, faces)
	if detail {
		b.WriteByte('(')
	}
	total := 0
	for i := 0; i < count; i++ {
		r := m.intn(faces) + 1
		total += r
		if detail {
			if i > 0 {
				b.WriteByte('+')
			}
			b.WriteString(strconv.Itoa(r))
		}
	}
	if detail {
		b.WriteString(") = ")
	}
	b.WriteString(strconv.Itoa(total))
	return b.String()
}
