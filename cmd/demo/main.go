package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"pbr-engine/core"
	"pbr-engine/internal/config"
	"pbr-engine/internal/logger"
	"pbr-engine/internal/opengl"
)

type options struct {
	configPath       string
	skybox           string
	model            string
	lights           int
	seed             uint64
	logLevel         string
	validateClusters bool
}

func main() {
	var opts options
	root := &cobra.Command{
		Use:   "demo",
		Short: "Clustered deferred PBR renderer demo",
		Long: "Renders a test scene of spheres and a ground plane lit by many clustered point\n" +
			"lights, a shadowed sun and optional image-based lighting.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}
	f := root.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "TOML config file, watched for changes")
	f.StringVar(&opts.skybox, "skybox", "", "equirectangular HDR environment map")
	f.StringVar(&opts.model, "model", "", "glTF, GLB or OBJ model placed at the origin")
	f.IntVar(&opts.lights, "lights", 64, "number of unshadowed point lights")
	f.Uint64Var(&opts.seed, "seed", 1, "light placement seed")
	f.StringVar(&opts.logLevel, "log-level", "info", "debug, info, warn or error")
	f.BoolVar(&opts.validateClusters, "validate-clusters", false, "compare GPU light bins with the CPU binner every 120 frames")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("log level %q: %w", s, err)
	}
	return lvl, nil
}

func run(opts options) error {
	lvl, err := parseLevel(opts.logLevel)
	if err != nil {
		return err
	}
	logger.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
	log := logger.Logger()

	cfg := config.Default()
	if opts.configPath != "" {
		if cfg, err = config.Load(opts.configPath); err != nil {
			return err
		}
	}

	windowConfig := core.DefaultWindowConfig()
	windowConfig.Width = cfg.Width
	windowConfig.Height = cfg.Height
	window, err := core.NewWindow(windowConfig)
	if err != nil {
		return err
	}
	defer window.Destroy()

	// The framebuffer can differ from the requested size on HiDPI displays.
	cfg.Width, cfg.Height = window.Width, window.Height

	r, err := opengl.NewRenderer(cfg)
	if err != nil {
		return err
	}
	defer r.Destroy()

	sc, err := buildScene(r, opts)
	if err != nil {
		return err
	}
	r.SetPbrSkyBox(opts.skybox)
	if err := r.PrepareRender(); err != nil {
		log.Warn("environment unavailable, continuing without IBL", "err", err)
	}

	var reloads <-chan config.Config
	if opts.configPath != "" {
		w, err := config.Watch(opts.configPath)
		if err != nil {
			log.Warn("config watch disabled", "path", opts.configPath, "err", err)
		} else {
			defer w.Close()
			reloads = w.Configs
		}
	}

	cam := newOrbitControl(float32(cfg.Width)/float32(cfg.Height), cfg.ZNear, cfg.ZFar)
	keys := newToggles()
	hud := newHUD(window.Title)
	last := core.Time()

	for !window.ShouldClose() {
		now := core.Time()
		dt := float32(now - last)
		last = now

		window.PollEvents()
		if window.IsKeyPressed(core.KeyEscape) {
			window.SetShouldClose()
		}

		select {
		case next := <-reloads:
			applyConfig(r, next)
		default:
		}

		if window.Resized() && window.Width > 0 && window.Height > 0 {
			if err := r.Resize(window.Width, window.Height); err != nil {
				log.Warn("resize failed", "err", err)
			}
			cam.Camera.UpdateAspectRatio(window.Width, window.Height)
		}

		if rt := r.Config().Runtime(); keys.Update(window, &rt) {
			r.SetOptions(rt)
		}
		cam.Update(window, dt)
		sc.Update(r, dt)

		view, proj := cam.Camera.ViewMatrix(), cam.Camera.ProjectionMatrix()
		r.SetCameraTrans(view, proj, cam.Camera.Position)
		r.DoRender()

		stats := r.Stats()
		if opts.validateClusters && stats.Frame%120 == 1 {
			bad, err := r.ValidateClusters()
			switch {
			case err != nil:
				log.Warn("cluster validation failed", "err", err)
			case bad > 0:
				log.Warn("cluster mismatch", "frame", stats.Frame, "cells", bad)
			default:
				log.Debug("clusters match", "frame", stats.Frame)
			}
		}
		if title, ok := hud.Tick(now, stats, r.Config().Runtime()); ok {
			window.SetTitle(title)
		}

		window.SwapBuffers()
	}

	log.Info("exiting", "frames", r.Stats().Frame)
	return nil
}

// applyConfig applies a reloaded file. Runtime knobs are set in place;
// anything else rebuilds the passes at the current window size.
func applyConfig(r *opengl.Renderer, next config.Config) {
	log := logger.Logger()
	cur := r.Config()
	next.Width, next.Height = cur.Width, cur.Height
	if next.WithRuntime(cur.Runtime()) == cur {
		r.SetOptions(next.Runtime())
		log.Info("config applied", "runtime", next.Runtime())
		return
	}
	if err := r.Reload(next); err != nil {
		log.Warn("config reload failed", "err", err)
		return
	}
	log.Info("config reloaded")
}
