package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/openfroyo/typist/pkg/config"
	"github.com/openfroyo/typist/pkg/stores"
	"github.com/openfroyo/typist/pkg/telemetry"
)

// environment is what every command needs: the application config, the
// telemetry stack and a script parser.
type environment struct {
	cfg    *config.AppConfig
	tel    *telemetry.Telemetry
	parser *config.ScriptParser
	logger zerolog.Logger

	store *stores.SQLiteStore
	stop  []func()
}

// newEnvironment loads the application config and starts telemetry. tune
// may adjust the telemetry config before it is applied.
func newEnvironment(ctx context.Context, tune func(*telemetry.Config)) (*environment, context.Context, error) {
	cfg := config.DefaultAppConfig()
	if configPath != "" {
		var err error
		if cfg, err = config.LoadAppConfig(configPath); err != nil {
			return nil, ctx, err
		}
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	tcfg := telemetry.FromAppConfig(cfg, appVersion)
	if tune != nil {
		tune(tcfg)
	}
	tel, err := telemetry.NewTelemetry(tcfg)
	if err != nil {
		return nil, ctx, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logger := tel.Logger.Zerolog()
	env := &environment{
		cfg:    cfg,
		tel:    tel,
		parser: config.NewScriptParser(logger),
		logger: logger,
	}
	return env, tel.WithContext(ctx), nil
}

// openStore opens the history database at path, or the configured one when
// path is empty, and records every run event into it. It returns nil when
// no database is configured.
func (e *environment) openStore(ctx context.Context, path string) (*stores.SQLiteStore, error) {
	if path == "" {
		path = e.cfg.Store.Path
	}
	if path == "" {
		return nil, nil
	}

	store, err := stores.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}
	e.store = store

	recorder := stores.NewRecorder(store, e.logger)
	e.stop = append(e.stop, recorder.Attach(e.tel.Events))
	e.logger.Debug().Str("path", path).Msg("Recording run history")
	return store, nil
}

// Close drains telemetry, then closes the store it writes to.
func (e *environment) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := e.tel.Shutdown(ctx); err != nil {
		e.logger.Warn().Err(err).Msg("Telemetry shutdown incomplete")
	}
	for _, stop := range e.stop {
		stop()
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			e.logger.Warn().Err(err).Msg("Failed to close history store")
		}
	}
}

// loadScript parses path and fills unset props from the configured defaults.
func (e *environment) loadScript(ctx context.Context, path string) (*config.Script, error) {
	script, err := e.parser.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	e.cfg.ApplyDefaults(script)
	if script.Name == "" {
		script.Name = scriptName(path)
	}
	return script, nil
}
