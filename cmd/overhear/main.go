// Command overhear runs a live transcription session fed from raw PCM16
// files, standing in for the mic and system capture devices.
//
// Usage:
//
//	overhear -mic mic.pcm -system system.pcm -lang en
//
// Frames are paced at real time. Transcripts and analysis results print to
// stdout as they arrive; press Ctrl-C to end the session early.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/overhear-ai/overhear/pkg/config"
	"github.com/overhear-ai/overhear/pkg/core/live"
	"github.com/overhear-ai/overhear/pkg/store/postgres"
)

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	var (
		micPath    = flag.String("mic", "", "raw PCM16 file for the mic channel")
		systemPath = flag.String("system", "", "raw PCM16 file for the system channel")
		lang       = flag.String("lang", "en", "transcription language (empty for auto-detect)")
		frameMS    = flag.Int("frame-ms", 20, "audio frame duration in ms")
	)
	flag.Parse()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))

	opts := []live.ManagerOption{live.WithLogger(logger)}
	if cfg.PostgresDSN != "" {
		store, err := postgres.Open(context.Background(), cfg.PostgresDSN)
		if err != nil {
			logger.Error("store unavailable", "err", err)
			return 1
		}
		defer store.Close()
		opts = append(opts, live.WithStore(store))
	}

	manager := live.NewManager(cfg.Session, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := manager.InitializeSession(ctx, *lang); err != nil {
		logger.Error("session init failed", "err", err)
		return 1
	}

	go printEvents(manager.Events())

	frameBytes := cfg.Session.SampleRate * 2 * *frameMS / 1000
	done := make(chan struct{})
	go func() {
		defer close(done)
		feedAudio(ctx, manager, *micPath, *systemPath, frameBytes, time.Duration(*frameMS)*time.Millisecond, logger)
	}()

	select {
	case <-ctx.Done():
	case <-done:
		// Give trailing recognition events a moment to arrive.
		time.Sleep(3 * time.Second)
	}

	if err := manager.CloseSession(); err != nil {
		logger.Error("session close failed", "err", err)
		return 1
	}

	for _, turn := range manager.ConversationHistory() {
		fmt.Printf("%s  %-4s  %s\n", turn.Timestamp.Format("15:04:05"), turn.Speaker, turn.Text)
	}
	return 0
}

// feedAudio paces both files at real time, one frame per tick per channel.
func feedAudio(ctx context.Context, manager *live.Manager, micPath, systemPath string, frameBytes int, frameDur time.Duration, logger *slog.Logger) {
	mic := readFile(micPath, logger)
	system := readFile(systemPath, logger)
	if mic == nil && system == nil {
		logger.Warn("no audio inputs; session idles until interrupted")
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(frameDur)
	defer ticker.Stop()

	var off int
	for len(mic) > off || len(system) > off {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if frame := sliceFrame(system, off, frameBytes); frame != nil {
			if err := manager.SendSystemAudio(frame); err != nil {
				logger.Warn("system frame dropped", "err", err)
			}
		}
		if frame := sliceFrame(mic, off, frameBytes); frame != nil {
			if err := manager.SendMicAudio(frame, "audio/pcm"); err != nil {
				logger.Warn("mic frame dropped", "err", err)
			}
		}
		off += frameBytes
	}
}

func printEvents(events <-chan live.Event) {
	for ev := range events {
		switch e := ev.(type) {
		case *live.StatusEvent:
			fmt.Printf("[status] %s\n", e.Status)
		case *live.TranscriptEvent:
			marker := "~"
			if e.IsFinal {
				marker = "✓"
			}
			fmt.Printf("[%s %s] %s\n", e.Speaker, marker, e.Text)
		case *live.AnalysisEvent:
			fmt.Printf("[analysis] %s\n", e.Result.Topic.Header)
			for _, b := range e.Result.Summary {
				fmt.Printf("  - %s\n", b)
			}
		}
	}
}

func readFile(path string, logger *slog.Logger) []byte {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("read audio file", "path", path, "err", err)
		return nil
	}
	return data
}

func sliceFrame(data []byte, off, n int) []byte {
	if off >= len(data) {
		return nil
	}
	end := off + n
	if end > len(data) {
		end = len(data)
	}
	return data[off:end]
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
