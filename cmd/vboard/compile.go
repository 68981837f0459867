package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/buckleypaul/vboard"
	"github.com/buckleypaul/vboard/internal/store"
)

var (
	compileFQBN         string
	compileSketchConfig string
)

var compileCmd = &cobra.Command{
	Use:   "compile <sketch>",
	Short: "Compile a sketch into a host executable",
	Long: `Compile builds a .ino sketch, or a sketch directory, against the
resource directory and streams the build log to stdout.
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		sc, err := sketchConfig(compileSketchConfig, compileFQBN)
		if err != nil {
			return err
		}
		sk, _, err := compileSketch(ctx, e, args[0], sc, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "compiled %s -> %s\n", sk.Source(), sk.Artifact())
		return nil
	},
}

func init() {
	compileCmd.Flags().StringVar(&compileFQBN, "fqbn", "", "fully qualified board name, e.g. arduino:avr:uno")
	compileCmd.Flags().StringVar(&compileSketchConfig, "sketch-config", "", "YAML file with libraries, defines and plugins")
	rootCmd.AddCommand(compileCmd)
}

// sketchConfig loads the optional descriptor and applies the --fqbn
// override.
func sketchConfig(path, fqbn string) (vboard.SketchConfig, error) {
	var sc vboard.SketchConfig
	if path != "" {
		var err error
		if sc, err = vboard.LoadSketchConfig(path); err != nil {
			return sc, err
		}
	}
	if fqbn != "" {
		sc.FQBN = fqbn
	}
	if sc.FQBN == "" {
		return sc, errors.New("no FQBN given; pass --fqbn or set fqbn in the sketch config")
	}
	return sc, nil
}

// compileSketch runs the toolchain on its own goroutine while the build
// log is drained into out, then records the outcome. It also returns the
// whole build log.
func compileSketch(ctx context.Context, e *env, path string, sc vboard.SketchConfig, out io.Writer) (*vboard.Sketch, string, error) {
	sk, err := vboard.NewSketch(path, sc)
	if err != nil {
		return nil, "", err
	}
	log := e.log.With().Str("sketch", sk.ID().String()).Logger()

	tc, buildLog, err := vboard.NewToolchain(e.cfg.ResourceDir,
		vboard.WithLogger(log),
		vboard.WithCMake(e.cfg.CMake),
		vboard.WithToolPath(e.cfg.ToolPath...),
	)
	if err != nil {
		return nil, "", errors.Wrap(err, "toolchain")
	}

	start := time.Now()
	errc := make(chan error, 1)
	go func() { errc <- tc.Compile(sk) }()

	if err := buildLog.Drain(ctx, out, e.cfg.Poll()); err != nil {
		log.Warn().Err(err).Msg("stopped streaming build log; waiting for compile")
	}
	compileErr := <-errc
	captured := buildLog.Bytes()

	record := store.CompileRecord{
		SketchID:  sk.ID().String(),
		Source:    sk.Source(),
		FQBN:      sc.FQBN,
		Timestamp: start,
		Success:   compileErr == nil,
		Duration:  time.Since(start).Round(time.Millisecond).String(),
		Artifact:  sk.Artifact(),
	}
	if compileErr != nil {
		record.Error = compileErr.Error()
	}
	if logFile, err := e.store.SaveLog("build", start, captured); err == nil {
		record.LogFile = logFile
	} else {
		log.Warn().Err(err).Msg("could not save build log")
	}
	if err := e.store.AddCompile(record); err != nil {
		log.Warn().Err(err).Msg("could not record compile")
	}

	if compileErr != nil {
		return nil, string(captured), errors.Wrap(compileErr, "compile")
	}
	log.Info().Str("artifact", sk.Artifact()).Dur("duration", time.Since(start)).Msg("sketch compiled")
	return sk, string(captured), nil
}
