package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dshills/framehook/internal/config"
	"github.com/dshills/framehook/internal/logging"
	"github.com/dshills/framehook/internal/scripting"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath   string
	extensionDir string
	packages     []string
	searchPath   []string
	reloadPolicy string
	logLevel     string
	objfiles     []string
	params       []string
}

// session is the runtime built for one command invocation.
type session struct {
	flags   globalFlags
	cfg     *config.Config
	logger  zerolog.Logger
	runtime *scripting.Runtime
}

// newRootCmd builds the command tree and the session its commands share.
// Run it with execute so the session is closed on every path.
func newRootCmd() (*cobra.Command, *session) {
	s := &session{}

	cmd := &cobra.Command{
		Use:   "framehook",
		Short: "framehook - extension dispatch for a debugger core",
		Long: `framehook loads Lua extensions that register frame unwinders, commands,
convenience functions and pretty-printers, and dispatches to them.

Extensions live under an extension root in package directories
(function, command, printer, unwinder). Each file is an independent
unit: one that fails to load is reported and skipped.

Configuration Priority:
  1. Command-line flags (highest)
  2. FRAMEHOOK_* environment variables
  3. Config file (--config, .toml or .yaml)`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return s.open(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return s.close()
		},
	}

	f := cmd.PersistentFlags()
	f.StringVarP(&s.flags.configPath, "config", "c", "", "Path to configuration file")
	f.StringVarP(&s.flags.extensionDir, "extension-dir", "d", "", "Extension root directory")
	f.StringSliceVar(&s.flags.packages, "packages", nil, "Packages to auto-load, in order")
	f.StringSliceVar(&s.flags.searchPath, "search-path", nil, "Extra require directories")
	f.StringVar(&s.flags.reloadPolicy, "reload-policy", "", "Reload policy (teardown, accumulate)")
	f.StringVar(&s.flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	f.StringArrayVar(&s.flags.objfiles, "objfile", nil, "ELF image to load as PATH[@BASE]")
	f.StringArrayVar(&s.flags.params, "param", nil, "Initial parameter as NAME=VALUE")

	cmd.AddCommand(
		newLoadCmd(s),
		newUnwindCmd(s),
		newUnwindersCmd(s),
		newShowCmd(s),
		newSetCmd(s),
		newInvokeCmd(s),
		newExecCmd(s),
		newPrintCmd(s),
		newWatchCmd(s),
		newVersionCmd(),
	)
	return cmd, s
}

// execute runs cmd and closes the session afterwards. Cobra skips the
// post-run hooks when open or a command fails.
func execute(cmd *cobra.Command, s *session) error {
	err := cmd.Execute()
	return errors.Join(err, s.close())
}

// open resolves configuration and builds the runtime.
func (s *session) open(cmd *cobra.Command) error {
	cfg, err := config.Load(s.flags.configPath)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return err
	}
	if err := s.applyFlags(cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.cfg = cfg

	s.logger = logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
		Output: cmd.ErrOrStderr(),
	})

	s.runtime = scripting.New(scripting.Options{
		ExtensionDir: cfg.Extensions.Dir,
		Packages:     cfg.Extensions.Packages,
		SearchPath:   cfg.Extensions.SearchPath,
		ReloadPolicy: cfg.Policy(),
		Debounce:     cfg.Extensions.Debounce.Std(),
		Stdout:       cmd.OutOrStdout(),
		Stderr:       cmd.ErrOrStderr(),
		Logger:       s.logger,
	})

	for _, o := range cfg.Objfiles {
		if _, err := s.runtime.AddObjfile(o.Path, o.Base); err != nil {
			return err
		}
	}
	return s.runtime.SetParameters(cfg.Parameters)
}

func (s *session) close() error {
	if s.runtime == nil {
		return nil
	}
	err := s.runtime.Close()
	s.runtime = nil
	return err
}

// applyFlags overrides cfg with the flags that were given.
func (s *session) applyFlags(cfg *config.Config) error {
	fl := s.flags
	if fl.extensionDir != "" {
		cfg.Extensions.Dir = fl.extensionDir
	}
	if fl.packages != nil {
		cfg.Extensions.Packages = fl.packages
	}
	if fl.searchPath != nil {
		cfg.Extensions.SearchPath = append(cfg.Extensions.SearchPath, fl.searchPath...)
	}
	if fl.reloadPolicy != "" {
		cfg.Extensions.ReloadPolicy = fl.reloadPolicy
	}
	if fl.logLevel != "" {
		cfg.Log.Level = fl.logLevel
	}
	for _, arg := range fl.objfiles {
		o, err := parseObjfile(arg)
		if err != nil {
			return err
		}
		cfg.Objfiles = append(cfg.Objfiles, o)
	}
	for _, p := range fl.params {
		name, value, ok := strings.Cut(p, "=")
		if !ok {
			return fmt.Errorf("--param %q: want NAME=VALUE", p)
		}
		if cfg.Parameters == nil {
			cfg.Parameters = map[string]any{}
		}
		cfg.Parameters[strings.TrimSpace(name)] = value
	}
	return nil
}

// parseObjfile parses PATH[@BASE].
func parseObjfile(arg string) (config.Objfile, error) {
	path, baseText, hasBase := strings.Cut(arg, "@")
	o := config.Objfile{Path: path}
	if !hasBase {
		return o, nil
	}
	base, err := strconv.ParseUint(baseText, 0, 64)
	if err != nil {
		return o, fmt.Errorf("--objfile %q: invalid base: %w", arg, err)
	}
	o.Base = base
	return o, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("framehook %s\n", version)
			cmd.Printf("Commit: %s\n", commit)
			cmd.Printf("Built: %s\n", date)
		},
	}
}
