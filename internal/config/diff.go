package config

import (
	"strings"

	logx "richard/pkg/logx"
)

// SummarizeConfigChange returns the changed sections plus safe log fields.
// Only the logging section is applied live; the others need a restart.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	attrs := make([]logx.Field, 0, 12)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.chat_enabled", newCfg.Logging.Chat.Enabled),
		)
	}
	if oldCfg.Metrics != newCfg.Metrics {
		changed = append(changed, "metrics")
		attrs = append(attrs,
			logx.Bool("metrics.enabled", newCfg.Metrics.Enabled),
			logx.String("metrics.addr", strings.TrimSpace(newCfg.Metrics.Addr)),
		)
	}
	if oldCfg.Telemetry != newCfg.Telemetry {
		changed = append(changed, "telemetry")
		attrs = append(attrs, logx.Bool("telemetry.enabled", newCfg.Telemetry.Enabled))
	}
	if oldCfg.HTTP != newCfg.HTTP {
		changed = append(changed, "http")
		attrs = append(attrs, logx.String("http.timeout", newCfg.HTTP.Timeout))
	}
	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.Int("scheduler.mailbox_size", newCfg.Scheduler.MailboxSize),
			logx.String("scheduler.router_every", newCfg.Scheduler.RouterEvery),
		)
	}
	return changed, attrs
}

// RestartRequired reports whether any changed section cannot be applied live.
func RestartRequired(sections []string) bool {
	for _, s := range sections {
		if s != "logging" {
			return true
		}
	}
	return false
}
