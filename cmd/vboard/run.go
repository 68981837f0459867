package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/buckleypaul/vboard"
	"github.com/buckleypaul/vboard/internal/app"
	"github.com/buckleypaul/vboard/internal/pages"
	"github.com/buckleypaul/vboard/internal/serial"
	"github.com/buckleypaul/vboard/internal/store"
)

var (
	runBoard        string
	runFQBN         string
	runSketchConfig string
	runTUI          bool
	runBridge       string
	runBaud         int
	runUart         int
)

var runCmd = &cobra.Command{
	Use:   "run <sketch>",
	Short: "Compile a sketch and run it on a virtual board",
	Long: `Run compiles the sketch, boots it on the board described by --board
and streams UART 0 to stdout and the firmware's own output to stderr until
the firmware exits or Ctrl-C is pressed. With --tui the board is driven from
an interactive console instead. With --bridge one UART is connected to a
host serial port.
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		if runTUI {
			closeLog, err := e.logToFile()
			if err != nil {
				return err
			}
			defer closeLog()
		}

		bc, err := vboard.LoadBoardConfig(runBoard)
		if err != nil {
			return err
		}
		sc, err := sketchConfig(runSketchConfig, runFQBN)
		if err != nil {
			return err
		}
		sk, buildLog, err := compileSketch(ctx, e, args[0], sc, cmd.OutOrStdout())
		if err != nil {
			return err
		}

		r := &run{env: e, boardPath: runBoard, sketch: sk, bridged: -1}
		return r.start(ctx, bc, buildLog, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	runCmd.Flags().StringVar(&runBoard, "board", "", "board descriptor YAML file")
	runCmd.Flags().StringVar(&runFQBN, "fqbn", "", "fully qualified board name, e.g. arduino:avr:uno")
	runCmd.Flags().StringVar(&runSketchConfig, "sketch-config", "", "YAML file with libraries, defines and plugins")
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "drive the board from the interactive console")
	runCmd.Flags().StringVar(&runBridge, "bridge", "", "host serial port to connect to a board UART")
	runCmd.Flags().IntVar(&runBaud, "baud", 0, "baud rate of the bridged host port (default from config)")
	runCmd.Flags().IntVar(&runUart, "uart", 0, "index of the UART to bridge")
	runCmd.MarkFlagRequired("board")
	rootCmd.AddCommand(runCmd)
}

type run struct {
	env       *env
	boardPath string
	sketch    *vboard.Sketch
	handle    *vboard.BoardHandle
	bridged   int
	runtime   bytes.Buffer
}

func (r *run) start(ctx context.Context, bc vboard.BoardConfig, buildLog string, stdout, stderr io.Writer) error {
	log := r.env.log.With().Str("sketch", r.sketch.ID().String()).Str("board", r.boardPath).Logger()
	board := vboard.NewBoard(vboard.WithLogger(log), vboard.WithWorkDir(r.env.root))
	handle, err := board.Start(bc, r.sketch)
	if err != nil {
		return err
	}
	r.handle = handle
	started := time.Now()

	bridgeDone := make(chan error, 1)
	bridgeCtx, stopBridge := context.WithCancel(ctx)
	defer stopBridge()
	if runBridge != "" {
		if err := r.bridge(bridgeCtx, bridgeDone); err != nil {
			handle.Stop()
			return err
		}
	} else {
		close(bridgeDone)
	}

	var code int
	var exited bool
	if runTUI {
		code, exited, err = r.console(ctx, buildLog)
	} else {
		code, exited, err = r.stream(ctx, stdout, stderr)
	}

	stopBridge()
	if berr, ok := <-bridgeDone; ok && berr != nil {
		log.Warn().Err(berr).Msg("bridge stopped")
	}
	handle.Stop()

	record := store.RunRecord{
		SketchID:   r.sketch.ID().String(),
		Board:      r.boardPath,
		Timestamp:  started,
		Duration:   time.Since(started).Round(time.Millisecond).String(),
		ExitCode:   code,
		Terminated: !exited,
		Bridge:     runBridge,
	}
	if logFile, serr := r.env.store.SaveLog("run", started, r.runtime.Bytes()); serr == nil {
		record.LogFile = logFile
	}
	if aerr := r.env.store.AddRun(record); aerr != nil {
		log.Warn().Err(aerr).Msg("could not record run")
	}

	if err != nil {
		return err
	}
	if exited && code != 0 {
		return &vboard.ExitError{Code: code}
	}
	return nil
}

func (r *run) bridge(ctx context.Context, done chan<- error) error {
	uart := r.handle.View().Uart(runUart)
	if uart == nil {
		return errors.Errorf("board has no UART %d to bridge", runUart)
	}
	baud := runBaud
	if baud == 0 {
		baud = r.env.cfg.SerialBaudRate
	}
	port, err := serial.Open(runBridge, baud)
	if err != nil {
		return err
	}
	r.bridged = runUart
	b := serial.NewBridge(uart, port,
		serial.WithInterval(r.env.cfg.Poll()),
		serial.WithLogger(r.env.log.With().Str("port", runBridge).Int("uart", runUart).Logger()),
	)
	r.env.log.Info().Str("port", runBridge).Int("baud", baud).Int("uart", runUart).Msg("bridging uart")
	go func() {
		err := b.Run(ctx)
		toBoard, fromBoard := b.Stats()
		r.env.log.Info().Str("port", runBridge).Int64("to_board", toBoard).Int64("from_board", fromBoard).Msg("bridge closed")
		done <- err
		close(done)
	}()
	return nil
}

// stream copies UART 0 to stdout and the runtime log to stderr until the
// firmware exits or ctx is cancelled.
func (r *run) stream(ctx context.Context, stdout, stderr io.Writer) (int, bool, error) {
	var uart *vboard.UartChannel
	if r.bridged != 0 {
		uart = r.handle.View().Uart(0)
	}
	runtime := r.handle.Log()
	logOut := io.MultiWriter(stderr, &r.runtime)
	buf := make([]byte, 1024)

	drain := func() error {
		for uart != nil {
			n, err := uart.Read(buf)
			if err != nil {
				return err
			}
			if n == 0 {
				break
			}
			stdout.Write(buf[:n])
		}
		for {
			n, err := runtime.Read(buf)
			if n > 0 {
				logOut.Write(buf[:n])
			}
			if err != nil || n == 0 {
				return nil
			}
		}
	}

	ticker := time.NewTicker(r.env.cfg.Poll())
	defer ticker.Stop()
	for {
		if err := drain(); err != nil {
			return 0, false, err
		}
		var exit *vboard.ExitError
		if err := r.handle.Tick(); errors.As(err, &exit) {
			drain()
			return exit.Code, true, nil
		} else if err != nil {
			return 0, false, err
		}
		select {
		case <-ctx.Done():
			return 0, false, nil
		case <-ticker.C:
		}
	}
}

// console runs the interactive UI until the user quits.
func (r *run) console(ctx context.Context, buildLog string) (int, bool, error) {
	view := r.handle.View()
	var uarts []pages.Uart
	for _, u := range pages.UartsOf(view) {
		if u.Index() != r.bridged {
			uarts = append(uarts, u)
		}
	}
	pins, frames := pages.DevicesOf(view)
	runtime := pages.NewLogPage("Runtime", r.handle.Log(), true)

	pageMap := map[app.PageID]app.Page{
		app.ConsolePage:    pages.NewConsolePage(uarts),
		app.DevicesPage:    pages.NewDevicesPage(pins, frames),
		app.RuntimeLogPage: runtime,
		app.BuildLogPage:   pages.NewLogPage("Build", strings.NewReader(buildLog), false),
		app.HistoryPage:    pages.NewHistoryPage(r.env.store),
	}
	model := app.New(pageMap, r.handle, r.sketch.Source(), r.env.cfg.Poll())

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	final, err := p.Run()
	r.runtime.WriteString(runtime.Content())
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return 0, false, errors.Wrap(err, "console")
	}
	m, ok := final.(app.Model)
	if !ok {
		return 0, false, nil
	}
	code, exited := m.ExitCode()
	return code, exited, nil
}
