package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/Sahadipankar/PresenSense/internal/agent"
	"github.com/Sahadipankar/PresenSense/internal/config"
	"github.com/Sahadipankar/PresenSense/internal/observability"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	if cfg.Agent.CameraURL == "" {
		slog.Error("agent camera_url not configured")
		os.Exit(1)
	}

	slog.Info("starting PresenSense camera agent",
		"mode", cfg.Agent.Mode,
		"camera", cfg.Agent.CameraURL,
		"api", cfg.Agent.APIURL,
		"fps", cfg.Agent.FPS,
	)

	client := agent.NewClient(cfg.Agent.APIURL, cfg.Server.APIKey)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		slog.Info("shutting down camera agent...")
		cancel()
	}()

	var callback agent.FrameCallback

	switch cfg.Agent.Mode {
	case "verify":
		callback = func(frame []byte) error {
			result, err := client.VerifyFrame(ctx, frame)
			if err != nil {
				return err
			}
			if result.UserID != nil && result.Created {
				slog.Info("attendance recorded", "user", result.Name, "score", result.Score)
			}
			return nil
		}

	case "monitor":
		userID, err := uuid.Parse(cfg.Agent.UserID)
		if err != nil {
			slog.Error("agent user_id required for monitor mode", "error", err)
			os.Exit(1)
		}

		sess, err := client.StartSession(ctx, userID)
		if err != nil {
			slog.Error("start monitoring session", "error", err)
			os.Exit(1)
		}
		slog.Info("monitoring session open", "session_id", sess.ID, "resumed", sess.Resumed)

		defer func() {
			// Close the session with a fresh context; ctx is already
			// cancelled during shutdown.
			endCtx, endCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer endCancel()
			if err := client.EndSession(endCtx, sess.ID); err != nil {
				slog.Error("end monitoring session", "error", err)
			} else {
				slog.Info("monitoring session closed", "session_id", sess.ID)
			}
		}()

		callback = func(frame []byte) error {
			result, err := client.RecordFrame(ctx, sess.ID, frame)
			if err != nil {
				return err
			}
			if result != nil {
				slog.Debug("frame analyzed",
					"emotion", result.DominantEmotion,
					"looking", result.IsLookingAtCamera,
				)
			}
			return nil
		}

	default:
		slog.Error("unknown agent mode", "mode", cfg.Agent.Mode)
		os.Exit(1)
	}

	capture := &agent.Capture{}
	if err := capture.Start(ctx, cfg.Agent.CameraURL, cfg.Agent.FPS, cfg.Agent.FrameWidth, callback); err != nil {
		if ctx.Err() == nil {
			slog.Error("frame capture failed", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("camera agent stopped")
}
