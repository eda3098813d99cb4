package bot

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"richard/internal/config"
	logx "richard/pkg/logx"
)

// Deps are the shared collaborators handed to module constructors.
type Deps struct {
	Log      logx.Logger
	HTTP     *http.Client
	Observer Observer
	// Config is the process configuration; never nil once Register has run.
	Config *config.Config
}

// Factory builds one kind of module. Params is listed here too so the
// configuration doc can describe modules that are not enabled.
type Factory struct {
	Name   string
	Params []Param
	New    func(deps Deps) (Module, error)
}

// EnableKey is the environment flag that turns module name on.
func EnableKey(name string) string {
	return "BOT_MODULE_" + strings.ToUpper(name) + "_ENABLED"
}

// CheckParams returns ErrMissingParam for the first mandatory param that is unset or empty.
func CheckParams(params []Param) error {
	for _, p := range params {
		if !p.Mandatory {
			continue
		}
		if strings.TrimSpace(os.Getenv(p.Name)) == "" {
			return fmt.Errorf("%w: %s", ErrMissingParam, p.Name)
		}
	}
	return nil
}

// Register builds a registry from factories.
//
// A disabled module is skipped. A module whose mandatory configuration is missing or
// whose constructor fails is logged and skipped; the rest of the bot still starts.
func Register(factories []Factory, deps Deps) *Registry {
	log := deps.Log
	if deps.Observer == nil {
		deps.Observer = NopObserver{}
	}
	if deps.Config == nil {
		deps.Config = config.Default()
	}
	if deps.HTTP == nil {
		deps.HTTP = http.DefaultClient
	}
	reg := NewRegistry()
	for _, f := range factories {
		mlog := log.With(logx.String("module", f.Name))
		if !config.Enabled(EnableKey(f.Name)) {
			mlog.Info("module is not enabled")
			continue
		}
		if err := CheckParams(f.Params); err != nil {
			mlog.Error("cannot init module", logx.Err(err))
			continue
		}
		d := deps
		d.Log = mlog
		m, err := f.New(d)
		if err != nil {
			mlog.Error("cannot init module", logx.Err(err))
			continue
		}
		if _, err := reg.Add(m); err != nil {
			if errors.Is(err, ErrDuplicateModule) {
				mlog.Warn("module skipped", logx.Err(err))
				continue
			}
			mlog.Error("cannot register module", logx.Err(err))
			continue
		}
		mlog.Info("module is enabled", logx.Int("variations", len(m.Variations())))
	}
	return reg
}
