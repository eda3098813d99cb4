package app

import (
	"strings"

	"richard/internal/bot"
	"richard/internal/router"
	"richard/internal/transport/telegram"
	"richard/internal/transport/webex"
	"richard/plugins/apiversions"
	"richard/plugins/downdetectors"
	"richard/plugins/endpoints"
	"richard/plugins/feeds"
	"richard/plugins/github"
	"richard/plugins/hello"
	"richard/plugins/help"
	"richard/plugins/ollama"
	"richard/plugins/ping"
	"richard/plugins/roll"
	"richard/plugins/webpages"
)

// Catalog lists every module richard knows, in registration order.
// Modules are registered, and their registry hooks run, in this order.
func Catalog() []bot.Factory {
	return []bot.Factory{
		webex.Factory(),
		ping.Factory(),
		help.Factory(),
		downdetectors.Factory(),
		github.OrgsFactory(),
		github.ReposFactory(),
		routerFactory(),
		hello.Factory(),
		ollama.Factory(),
		feeds.Factory(),
		roll.Factory(),
		webpages.Factory(),
		apiversions.Factory(),
		telegram.Factory(),
		endpoints.Factory(),
	}
}

func routerFactory() bot.Factory {
	return bot.Factory{
		Name: router.Name,
		New: func(d bot.Deps) (bot.Module, error) {
			opts := router.Options{Log: d.Log, Observer: d.Observer}
			if raw := strings.TrimSpace(d.Config.Scheduler.RouterEvery); raw != "" {
				poll, err := bot.ParseCadence("poll", raw)
				if err != nil {
					return nil, err
				}
				opts.Poll = poll
			}
			return router.New(opts), nil
		},
	}
}
