package app

import (
	"fmt"
	"log/slog"

	"github.com/stelliform/plughost/internal/config"
	"github.com/stelliform/plughost/internal/host/inproc"
)

// InstallConfiguredModules installs every module listed in the
// configuration into the runtime and starts the ones marked autoStart.
//
// For each module in the config:
// - Installs it from its configured location
// - Starts it when autoStart is set
// - Fails fast on the first module that cannot be installed or started
func InstallConfiguredModules(cfg *config.Config, runtime *inproc.Runtime) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if runtime == nil {
		return fmt.Errorf("host runtime is required")
	}

	slog.Info("Installing configured modules")

	for _, mod := range cfg.Modules {
		installed, err := runtime.Install(inproc.ModuleSpec{
			Name:     mod.Name,
			Version:  mod.Version,
			Location: mod.Location,
		})
		if err != nil {
			return fmt.Errorf("failed to install module '%s': %w", mod.Name, err)
		}

		if mod.AutoStart {
			if err := installed.Start(); err != nil {
				return fmt.Errorf("failed to start module '%s': %w", mod.Name, err)
			}
		}

		slog.Info("Installed module",
			"module", mod.Name,
			"module_id", installed.ID(),
			"auto_start", mod.AutoStart,
		)
	}

	if len(cfg.Modules) == 0 {
		slog.Info("No modules found in config")
	}

	return nil
}
