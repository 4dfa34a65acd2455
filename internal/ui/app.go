package ui

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gotk3/gotk3/glib"
	"github.com/gotk3/gotk3/gtk"

	"github.com/chess10kp/lswitch/internal/apps"
	"github.com/chess10kp/lswitch/internal/config"
	"github.com/chess10kp/lswitch/internal/ipc"
	"github.com/chess10kp/lswitch/internal/platform"
	"github.com/chess10kp/lswitch/internal/sway"
	"github.com/chess10kp/lswitch/internal/switcher"
)

// App owns the GTK main loop and everything running on it.
type App struct {
	config  *config.Config
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
	sigChan chan os.Signal

	backend  *sway.Backend
	switcher *switcher.Switcher
	overlay  *Overlay
	ipc      *ipc.Server
}

func NewApp(cfg *config.Config) *App {
	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		config:  cfg,
		ctx:     ctx,
		cancel:  cancel,
		sigChan: make(chan os.Signal, 1),
	}
}

// Run blocks in the GTK main loop until Quit.
func (a *App) Run() error {
	// prgname becomes the overlay's app_id under sway
	glib.SetPrgname(a.config.AppID)
	gtk.Init(nil)

	if err := a.initialize(); err != nil {
		return err
	}
	a.running = true

	signal.Notify(a.sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-a.sigChan
		log.Printf("[UI] Received signal: %v", sig)
		glib.IdleAdd(func() bool {
			a.Quit()
			return false
		})
	}()

	log.Println("[UI] lswitch running")
	gtk.Main()
	return nil
}

func (a *App) initialize() error {
	start := time.Now()
	SetupStyles(a.config.Styling)
	if a.config.Styling.CustomCSS != "" {
		LoadCustomCSS(a.config.Styling.CustomCSS)
	}

	a.backend = sway.New(
		sway.WithMsgCommand(a.config.Sway.MsgCommand),
		sway.WithGrim(a.config.Preview.CaptureCommand),
	)

	var capturer platform.Capturer
	if a.config.Preview.Enabled {
		capturer = a.backend
	}

	sw, err := switcher.New(switcher.Options{
		Windows:          a.backend,
		Capturer:         capturer,
		Apps:             apps.NewLoader(a.config),
		Dispatcher:       MainLoop{},
		Threshold:        &a.config.Search.Threshold,
		MaxResults:       a.config.Search.MaxResults,
		ScoreCacheSize:   a.config.Search.ScoreMemoSize,
		Parallelism:      a.config.Switcher.Parallelism,
		PreviewWorkers:   a.config.Preview.Workers,
		PreviewCacheSize: a.config.Preview.CacheSize,
		CaptureTimeout:   time.Duration(a.config.Preview.CaptureTimeout) * time.Millisecond,
	})
	if err != nil {
		return fmt.Errorf("failed to create switcher: %w", err)
	}
	a.switcher = sw

	icons, err := NewIconCache(a.config.Apps.IconCacheSize)
	if err != nil {
		log.Printf("[UI] Icons disabled: %v", err)
		icons = nil
	}

	overlay, err := NewOverlay(a.ctx, a.config, sw, icons)
	if err != nil {
		sw.Close()
		return fmt.Errorf("failed to create overlay: %w", err)
	}
	a.overlay = overlay

	sw.Start(a.ctx)

	server := ipc.NewServer(a.config.Switcher.SocketPath, MainLoop{}, a.handleCommand)
	if err := server.Start(); err != nil {
		log.Printf("[UI] Failed to start IPC server: %v", err)
	} else {
		a.ipc = server
	}

	log.Printf("[UI] Initialization complete in %v", time.Since(start))
	return nil
}

func (a *App) handleCommand(cmd ipc.Command) {
	switch cmd {
	case ipc.CommandShow:
		a.overlay.Show()
	case ipc.CommandHide:
		a.overlay.Hide()
	case ipc.CommandToggle:
		a.overlay.Toggle()
	case ipc.CommandRefresh:
		a.switcher.Refresh(a.ctx)
	case ipc.CommandFullRefresh:
		a.switcher.FullRefresh(a.ctx)
	}
}

// Quit tears everything down and leaves the main loop.
func (a *App) Quit() {
	if !a.running {
		return
	}
	a.running = false

	log.Println("[UI] Shutting down...")
	a.cancel()

	if a.ipc != nil {
		if err := a.ipc.Stop(); err != nil {
			log.Printf("[UI] Error stopping IPC server: %v", err)
		}
	}
	if a.switcher != nil {
		a.switcher.Close()
	}
	if a.backend != nil {
		a.backend.Close()
	}
	if a.overlay != nil {
		a.overlay.Destroy()
	}

	gtk.MainQuit()
}
