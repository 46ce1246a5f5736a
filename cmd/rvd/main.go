package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/aliasrobotics/RVD-sub000/internal/config"
	"github.com/aliasrobotics/RVD-sub000/internal/storage"
)

// Version information - set via ldflags during build
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// skipConfig marks commands that run without loading the configuration
const skipConfig = "skip-config"

var (
	v       = viper.New()
	cfgFile string
	cfg     *config.Config
)

// flagKeys maps command flags onto configuration keys
var flagKeys = map[string]string{
	"backend":       config.KeyBackend,
	"owner":         config.KeyOwner,
	"repo":          config.KeyRepo,
	"base-url":      config.KeyBaseURL,
	"db-path":       config.KeyDBPath,
	"out":           config.KeyOutDir,
	"recall-weight": config.KeyRecallWeight,
}

var rootCmd = &cobra.Command{
	Use:           "rvd",
	Short:         "Robot Vulnerability Database tools",
	SilenceUsage:  true,
	SilenceErrors: true,
	Long: `Curate the Robot Vulnerability Database.

Flaws are YAML documents stored in the body of tracker issues. rvd lists,
validates, edits, imports, deduplicates, reports and exports them, against
the GitHub tracker or a local SQLite mirror created by 'rvd init'.

Configuration is read from .rvd.yaml (current directory or $HOME), .env and
environment variables prefixed with RVD_ (the tracker token also from
GITHUB_TOKEN).`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := cmd.Flags().GetString("log-level")
		if err != nil {
			return err
		}
		switch level {
		case "debug":
			initLogger(slog.LevelDebug)
		case "warn":
			initLogger(slog.LevelWarn)
		case "error":
			initLogger(slog.LevelError)
		default:
			initLogger(slog.LevelInfo)
		}

		if cmd.Annotations[skipConfig] != "" {
			return nil
		}
		return initializeConfig(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "Set the log level. Options: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default .rvd.yaml in the current directory or $HOME)")
	rootCmd.PersistentFlags().String("backend", "", "Document store: github or sqlite (default github)")
	rootCmd.PersistentFlags().String("owner", "", "Tracker repository owner (default aliasrobotics)")
	rootCmd.PersistentFlags().String("repo", "", "Tracker repository name (default RVD)")
	rootCmd.PersistentFlags().String("base-url", "", "GitHub Enterprise API URL")
	rootCmd.PersistentFlags().String("db-path", "", "Local mirror database (default .rvd/*.db)")

	rootCmd.AddCommand(&cobra.Command{
		Use:         "version",
		Short:       "Show version information",
		Annotations: map[string]string{skipConfig: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("rvd\n")
			fmt.Printf("Version:    %s\n", version)
			fmt.Printf("Commit:     %s\n", commit)
			fmt.Printf("Built:      %s\n", date)
		},
	})
}

// initLogger installs a tint handler on stderr as the default logger
func initLogger(level slog.Leveler) {
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
			AddSource:  level == slog.LevelDebug,
		}),
	))
}

func initializeConfig(cmd *cobra.Command) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	}
	bindFlags(cmd)

	loaded, err := config.Load(v)
	if err != nil {
		return err
	}
	cfg = loaded
	slog.Debug("configuration loaded", "config", cfg.String(), "file", v.ConfigFileUsed())
	return nil
}

// bindFlags binds every flag that has a configuration key to viper, so
// that a flag set on the command line wins over file and environment
func bindFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return
		}
		if err := v.BindPFlag(key, f); err != nil {
			slog.Error("could not bind flag to viper", "flag", f.Name, "err", err)
		}
	})
}

// cleanups run in reverse order when the command ends, on every exit path
var cleanups []func()

// osExit is replaced in tests
var osExit = os.Exit

func onExit(f func()) {
	cleanups = append(cleanups, f)
}

func runCleanups() {
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
	cleanups = nil
}

// exit runs the cleanups, then terminates the process
func exit(code int) {
	runCleanups()
	osExit(code)
}

// openStore opens the configured document store or exits. The store is
// closed when the command ends.
func openStore(ctx context.Context) storage.Store {
	store, err := storage.NewStorage(ctx, cfg.StorageConfig())
	if err != nil {
		fatalf("failed to open %s store: %v", cfg.Tracker.Backend, err)
	}
	onExit(func() { _ = store.Close() })
	return store
}

// acquireLock takes the project lock in the current directory or exits.
// The lock is released when the command ends.
func acquireLock(holder string) {
	cwd, err := os.Getwd()
	if err != nil {
		fatalf("failed to get current directory: %v", err)
	}
	lockPath, err := storage.AcquireExclusiveLock(cwd, holder, version)
	if err != nil {
		fatalf("%v", err)
	}
	onExit(func() {
		if err := storage.ReleaseExclusiveLock(lockPath); err != nil {
			slog.Warn("could not release lock", "err", err)
		}
	})
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", color.New(color.FgRed).Sprint("Error:"), fmt.Sprintf(format, args...))
	exit(1)
}

func main() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exit(1)
	}
	exit(0)
}
