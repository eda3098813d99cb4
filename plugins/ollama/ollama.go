package ollama

import (
	"context"
	"net/http"
	"strings"
	"time"

	"richard/internal/bot"
	"richard/internal/config"
	"richard/internal/httpx"
	"richard/internal/router"
	logx "richard/pkg/logx"
)

const Name = "ollama"

// Timeout bounds one generation; local models can be slow.
const Timeout = 600 * time.Second

type Config struct {
	Model string `env:"OLLAMA_MODEL_NAME,notEmpty"`
	URL   string `env:"OLLAMA_URL,notEmpty"`
}

type generateRequest struct {
	Prompt  string `json:"prompt"`
	Model   string `json:"model"`
	Stream  bool   `json:"stream"`
	Context []int  `json:"context"`
}

type generateResponse struct {
	Response string `json:"response"`
	Context  []int  `json:"context,omitempty"`
}

// Module answers every message no other module claimed, keeping the
// conversation context between calls.
type Module struct {
	bot.Base
	cfg     Config
	log     logx.Logger
	http    *http.Client
	context []int
}

func New(cfg Config, client *http.Client, log logx.Logger) *Module {
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	return &Module{cfg: cfg, log: log, http: httpx.WithTimeout(client, Timeout), context: []int{}}
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
			return New(cfg, d.HTTP, d.Log), nil
		},
	}
}

func params() []bot.Param {
	return []bot.Param{
		{Name: "OLLAMA_MODEL_NAME", Description: "Ollama model name to use", Mandatory: true},
		{Name: "OLLAMA_URL", Description: "ollama URL to query", Mandatory: true},
	}
}

func (m *Module) Name() string        { return Name }
func (m *Module) Params() []bot.Param { return params() }

func (m *Module) Capabilities() bot.Capabilities {
	return bot.Capabilities{CatchNonTriggered: true}
}

func (m *Module) Trigger(ctx context.Context, text string) []string {
	var resp generateResponse
	req := generateRequest{Prompt: text, Model: m.cfg.Model, Context: m.context}
	if err := httpx.DoJSON(ctx, m.http, http.MethodPost, m.cfg.URL+"/api/generate", nil, req, &resp); err != nil {
		m.log.Error("ollama query failed", logx.Err(err))
		return []string{router.Apology}
	}
	if resp.Context != nil {
		m.context = resp.Context
	}
	m.log.Debug("ollama answered", logx.Int("context_len", len(m.context)))
	return []string{resp.Response}
}
