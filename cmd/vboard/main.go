package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/buckleypaul/vboard/internal/config"
	"github.com/buckleypaul/vboard/internal/store"
)

var (
	projectDir string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "vboard",
	Short: "Compile Arduino sketches and run them on virtual boards",
	Long: `vboard compiles sketches into host executables and runs them on a
virtual board described by a YAML file. Pins, UART channels, SD cards and
frame buffers of the board are reachable from the terminal.
`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&projectDir, "project", "C", "", "project directory holding .vboard/ (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")
}

// env is what every subcommand needs: settings, a logger and the history
// store of the project.
type env struct {
	root  string
	cfg   config.Config
	log   zerolog.Logger
	store *store.Store
}

func loadEnv() (*env, error) {
	root := projectDir
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		root = cwd
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	log, err := cfg.Logger()
	if err != nil {
		return nil, err
	}
	return &env{
		root:  root,
		cfg:   cfg,
		log:   log,
		store: store.New(filepath.Join(root, ".vboard"), cfg.HistoryLimit),
	}, nil
}

// logToFile redirects the logger into the logs directory so it does not
// draw over the console UI.
func (e *env) logToFile() (func(), error) {
	dir, err := e.store.LogsDir()
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(dir, "vboard.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	e.log = e.log.Output(f)
	return func() { f.Close() }, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
