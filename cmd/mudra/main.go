package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/display"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/lgr"
	"github.com/ayusman/mudra/internal/publish"
	"github.com/ayusman/mudra/internal/recorder"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/tray"
)

const usage = `Mudra - Hand Gesture Recognition

Usage:
  mudra run [-tray] [-static dir]   recognize gestures and serve the API
  mudra record [-gesture label]     write tracked joints to a training file

Settings are read from .env and MUDRA_* environment variables.
`

func main() {
	cmd := "run"
	args := os.Args[1:]
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "run":
		err = runCmd(args)
	case "record":
		err = recordCmd(args)
	case "help":
		fmt.Print(usage)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		lgr.Logger.Error("mudra failed", slog.String("command", cmd), slog.Any("error", err))
		os.Exit(1)
	}
}

// setup loads the configuration, starts logging and opens the store.
// Persisted settings override the environment.
func setup() (*config.Config, *store.Store, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	logCloser := lgr.Init(cfg.Log)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath()), 0755); err != nil {
		logCloser.Close()
		return nil, nil, nil, fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.New(cfg.DBPath())
	if err != nil {
		logCloser.Close()
		return nil, nil, nil, err
	}

	overrides, err := st.Settings().All()
	if err != nil {
		lgr.Logger.Warn("failed to read stored settings", slog.Any("error", err))
	} else if err := cfg.ApplyOverrides(overrides); err != nil {
		st.Close()
		logCloser.Close()
		return nil, nil, nil, fmt.Errorf("stored settings: %w", err)
	}

	cleanup := func() {
		st.Close()
		logCloser.Close()
	}
	return cfg, st, cleanup, nil
}

func runCmd(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	useTray := fs.Bool("tray", false, "show a system tray menu")
	staticDir := fs.String("static", "", "directory of web UI files (default: search web, ../web, ~/.mudra/web)")
	fs.Parse(args)

	cfg, st, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	displays := display.Multi{display.NewConsole(nil)}
	var t *tray.Tray
	if *useTray {
		t = tray.New()
		displays = append(displays, gesture.Display(t))
	}

	a, err := app.New(app.Options{Config: cfg, Store: st, Display: displays})
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.MQTTBroker != "" {
		pub, err := publish.New(publish.Config{
			Broker:   cfg.MQTTBroker,
			Topic:    cfg.MQTTTopic,
			ClientID: cfg.MQTTClientID,
		})
		if err != nil {
			return err
		}
		if err := pub.Connect(); err != nil {
			lgr.Logger.Warn("mqtt unavailable, events will not be published", slog.String("broker", cfg.MQTTBroker), slog.Any("error", err))
		} else {
			pub.Attach(a.Bus())
		}
		defer pub.Close()
	}

	webDir := *staticDir
	if webDir == "" {
		webDir = findWebDir(cfg.DataDir)
	}
	if webDir != "" {
		lgr.Logger.Info("serving static files", slog.String("dir", webDir))
	}

	srvConfig := server.Config{
		StaticDir:  webDir,
		Store:      st,
		Controller: a,
		Events:     a.Bus(),
		Gestures:   a.Gestures(),
	}
	if cfg.RenderJoints {
		srvConfig.Joints = a
	}
	srv := server.New(srvConfig)

	var wg sync.WaitGroup
	errc := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := srv.Serve(ctx, cfg.Addr); err != nil {
			errc <- fmt.Errorf("http server: %w", err)
			stop()
		}
	}()
	go func() {
		defer wg.Done()
		if err := a.Run(ctx); err != nil {
			errc <- err
		}
		// A finished replay leaves the API up until interrupted.
	}()

	if t != nil {
		t.SetEnabled(a.Enabled())
		t.Attach(a.Bus())
		t.OnToggle(a.SetEnabled)
		t.OnSettings(func() {
			lgr.Logger.Info("settings are served by the web UI", slog.String("addr", cfg.Addr))
		})
		t.OnQuit(stop)
		go func() {
			<-ctx.Done()
			t.Quit()
		}()
		t.Run()
		stop()
	}

	wg.Wait()
	close(errc)

	var errs []error
	for err := range errc {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func recordCmd(args []string) error {
	cfg, st, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	fs := flag.NewFlagSet("record", flag.ExitOnError)
	label := fs.String("gesture", cfg.RecordGesture, "gesture label for the output file")
	dir := fs.String("dir", cfg.RecordDir, "output directory")
	fps := fs.Int("fps", cfg.RecordFPS, "lines per second; 0 writes every tick")
	fs.Parse(args)

	src, closer, err := app.OpenSource(cfg)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	labelFPS := *fps
	if labelFPS <= 0 {
		labelFPS = cfg.TickFPS
	}
	session, err := recorder.Open(recorder.Config{
		Dir:      *dir,
		Hand:     cfg.Hand,
		Gesture:  *label,
		FPS:      labelFPS,
		Throttle: *fps > 0,
	}, src, st.Recordings())
	if err != nil {
		return err
	}
	defer session.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lgr.Logger.Info("recording, press Ctrl+C to stop", slog.String("path", session.Path()))
	return app.Loop(ctx, cfg.TickFPS, func(elapsed time.Duration) error {
		if err := app.Latch(src); err != nil {
			return err
		}
		return session.ProcessTick(elapsed)
	})
}

// findWebDir returns the first web UI directory found in web, ../web or
// <dataDir>/web, or "" when there is none.
func findWebDir(dataDir string) string {
	for _, p := range []string{"web", filepath.Join("..", "web"), filepath.Join(dataDir, "web")} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
