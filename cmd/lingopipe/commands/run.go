package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/lingopipe/lingopipe/pkg/audio/pcm"
	"github.com/lingopipe/lingopipe/pkg/audio/portaudio"
	"github.com/lingopipe/lingopipe/pkg/cli"
	"github.com/lingopipe/lingopipe/pkg/metrics"
	"github.com/lingopipe/lingopipe/pkg/playback"
	"github.com/lingopipe/lingopipe/pkg/session"
	"github.com/lingopipe/lingopipe/pkg/translate"
)

const captureWindow = 20 * time.Millisecond

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a live interpreter session",
	Long: `Start a live interpreter session.

Captures audio from the default microphone, streams it to the translation
endpoint, and plays the synthesized translation through the default
speakers. Both transcripts are shown live; completed turns accumulate in
the history panel.

Keys:
  space       start / stop the session
  q, Ctrl+C   quit

Examples:
  lingopipe run
  lingopipe -c work run --source zh-CN --target en-US --voice mei
  lingopipe run --metrics-addr :9090`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cliCtx, err := getContext()
		if err != nil {
			return err
		}

		if v, _ := cmd.Flags().GetString("source"); v != "" {
			cliCtx.SourceLanguage = v
		}
		if v, _ := cmd.Flags().GetString("target"); v != "" {
			cliCtx.TargetLanguage = v
		}
		if v, _ := cmd.Flags().GetString("voice"); v != "" {
			cliCtx.Voice = v
		}

		if cliCtx.SourceLanguage == "" || cliCtx.TargetLanguage == "" {
			return fmt.Errorf("source and target languages are required (--source/--target or context defaults)")
		}

		printVerbose("Using context: %s", cliCtx.Name)
		return runSession(cliCtx)
	},
}

func runSession(cliCtx *cli.Context) error {
	captureRate := cliCtx.CaptureSampleRate
	if captureRate == 0 {
		captureRate = 16000
	}
	playbackRate := cliCtx.PlaybackSampleRate
	if playbackRate == 0 {
		playbackRate = 24000
	}

	captureFormat, ok := pcm.FormatForRate(captureRate)
	if !ok {
		return fmt.Errorf("unsupported capture sample rate: %d", captureRate)
	}
	// The speaker resamples when the synthesized rate has no native format.
	speakerFormat, ok := pcm.FormatForRate(playbackRate)
	if !ok {
		speakerFormat = pcm.L16Mono48K
	}

	logWriter := cli.NewLogWriter(100)
	logger, closeLog, err := buildLogger(logWriter)
	if err != nil {
		return err
	}
	defer closeLog()

	var m *metrics.Metrics
	if metricsAddr != "" {
		m = metrics.New()
		go serveMetrics(logger)
	}

	var clientOpts []translate.Option
	if cliCtx.Endpoint != "" {
		clientOpts = append(clientOpts, translate.WithWSURL(cliCtx.Endpoint))
	}
	client := translate.NewClient(cliCtx.APIKey, clientOpts...)

	sessionConfig := &translate.SessionConfig{
		SourceLanguage:     cliCtx.SourceLanguage,
		TargetLanguage:     cliCtx.TargetLanguage,
		Voice:              cliCtx.Voice,
		CaptureSampleRate:  captureRate,
		PlaybackSampleRate: playbackRate,
	}

	ctrl := session.NewController(session.Config{
		Open: func(ctx context.Context) (session.RemoteSession, error) {
			return client.OpenSession(ctx, sessionConfig)
		},
		AcquireCapture: func() (session.CaptureDevice, error) {
			return portaudio.OpenMicrophone(captureFormat, captureWindow)
		},
		AcquireOutput: func() (playback.OutputContext, error) {
			return portaudio.OpenSpeaker(speakerFormat, captureWindow)
		},
		PlaybackRate: playbackRate,
		Logger:       logger,
		Metrics:      m,
	})
	defer portaudio.Terminate()
	defer ctrl.Stop()

	title := fmt.Sprintf("LINGOPIPE // %s -> %s", cliCtx.SourceLanguage, cliCtx.TargetLanguage)
	model := newRunModel(ctrl, logWriter, title)

	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

// buildLogger routes structured logs into the TUI log panel and, optionally,
// a file. Logs never go to stdout while the TUI owns the terminal.
func buildLogger(logWriter *cli.LogWriter) (*slog.Logger, func(), error) {
	var w io.Writer = logWriter
	closeLog := func() {}

	path := logFile
	if path == "" {
		if paths, err := cli.NewPaths(); err == nil && paths.EnsureLogDir() == nil {
			path = paths.LogPath("lingopipe.log")
		}
	}
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w = io.MultiWriter(logWriter, f)
		closeLog = func() { f.Close() }
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), closeLog, nil
}

func serveMetrics(logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("serving metrics", "addr", metricsAddr)
	if err := http.ListenAndServe(metricsAddr, mux); err != nil {
		logger.Error("metrics server failed", "error", err)
	}
}

func init() {
	runCmd.Flags().String("source", "", "Source language (overrides context)")
	runCmd.Flags().String("target", "", "Target language (overrides context)")
	runCmd.Flags().String("voice", "", "Synthesized voice (overrides context)")
}
