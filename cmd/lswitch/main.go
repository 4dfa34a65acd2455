package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/chess10kp/lswitch/internal/apps"
	"github.com/chess10kp/lswitch/internal/config"
	"github.com/chess10kp/lswitch/internal/dispatch"
	"github.com/chess10kp/lswitch/internal/item"
	"github.com/chess10kp/lswitch/internal/search"
	"github.com/chess10kp/lswitch/internal/sway"
	"github.com/chess10kp/lswitch/internal/switcher"
	"github.com/chess10kp/lswitch/internal/ui"
)

const pidFile = "/tmp/lswitch.pid"

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:   "lswitch",
		Usage:  "Window and application switcher for sway",
		Writer: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the TOML config file",
				Value:   config.DefaultPath,
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Append logs to this file instead of stderr",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Start the switcher overlay and its control socket",
				Action: runCommand,
			},
			{
				Name:   "list",
				Usage:  "Print the open windows in discovery order",
				Action: listCommand,
			},
			{
				Name:      "search",
				Usage:     "Print the ranked results for a query",
				ArgsUsage: "<query>",
				Action:    searchCommand,
			},
			{
				Name:   "validate-config",
				Usage:  "Check the config file and exit",
				Action: validateCommand,
			},
		},
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadAndValidateConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	if path := c.String("log-file"); path != "" {
		cfg.Switcher.LogFile = path
	}
	return cfg, nil
}

func setupLogging(path string) (io.Closer, error) {
	if path == "" {
		return nil, nil
	}
	logFile, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	log.SetOutput(logFile)
	return logFile, nil
}

// quietLogging keeps one-shot commands from mixing logs into their output.
func quietLogging(path string) (func(), error) {
	prev := log.Writer()
	closer, err := setupLogging(path)
	if err != nil {
		return nil, err
	}
	if closer == nil {
		log.SetOutput(io.Discard)
	}
	return func() {
		log.SetOutput(prev)
		if closer != nil {
			closer.Close()
		}
	}, nil
}

// ensureSingleInstance replaces a previously started switcher.
func ensureSingleInstance() error {
	if data, err := os.ReadFile(pidFile); err == nil {
		if pid, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil && pid != os.Getpid() {
			if process, err := os.FindProcess(pid); err == nil {
				if err := process.Signal(syscall.Signal(0)); err == nil {
					log.Printf("Stopping previous instance %d", pid)
					_ = process.Signal(syscall.SIGTERM)
				}
			}
		}
	}
	return os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0644)
}

func runCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	closer, err := setupLogging(cfg.Switcher.LogFile)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	if err := ensureSingleInstance(); err != nil {
		return fmt.Errorf("failed to ensure single instance: %w", err)
	}
	defer os.Remove(pidFile)

	return ui.NewApp(cfg).Run()
}

// headless builds a switcher without an overlay. Its dispatcher is never
// drained, so it reflects one snapshot of the desktop.
func headless(ctx context.Context, cfg *config.Config, withApps bool) (*switcher.Switcher, func(), error) {
	backend := sway.New(sway.WithMsgCommand(cfg.Sway.MsgCommand))

	opts := switcher.Options{
		Windows:        backend,
		Dispatcher:     &dispatch.Queue{},
		Threshold:      &cfg.Search.Threshold,
		MaxResults:     cfg.Search.MaxResults,
		ScoreCacheSize: cfg.Search.ScoreMemoSize,
		Parallelism:    cfg.Switcher.Parallelism,
	}
	if withApps {
		opts.Apps = apps.NewLoader(cfg)
	}

	sw, err := switcher.New(opts)
	if err != nil {
		return nil, nil, err
	}
	sw.Start(ctx)
	return sw, func() {
		sw.Close()
		backend.Close()
	}, nil
}

func listCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	restore, err := quietLogging(cfg.Switcher.LogFile)
	if err != nil {
		return err
	}
	defer restore()

	ctx, cancel := context.WithTimeout(c.Context, 10*time.Second)
	defer cancel()

	sw, closeFn, err := headless(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer closeFn()

	printWindows(c.App.Writer, sw.Windows())
	return nil
}

func searchCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("search needs a query")
	}
	query := strings.Join(c.Args().Slice(), " ")

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	restore, err := quietLogging(cfg.Switcher.LogFile)
	if err != nil {
		return err
	}
	defer restore()

	ctx, cancel := context.WithTimeout(c.Context, 10*time.Second)
	defer cancel()

	sw, closeFn, err := headless(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer closeFn()

	sw.SetQuery(query)
	printResults(c.App.Writer, sw.CurrentResults())
	return nil
}

func validateCommand(c *cli.Context) error {
	path := c.String("config")
	fmt.Fprintf(c.App.Writer, "Validating config: %s\n", path)

	if err := config.ValidateConfig(path); err != nil {
		return err
	}

	fmt.Fprintln(c.App.Writer, "Config is valid")
	return nil
}

func printWindows(w io.Writer, windows []*item.Window) {
	for _, win := range windows {
		fmt.Fprintf(w, "%s\t%d\t%s\n", win.ID, win.PID, win.Label())
	}
}

func printResults(w io.Writer, results []search.Result) {
	for _, r := range results {
		fmt.Fprintf(w, "%d\t%s\n", r.Score, r.Item.Label())
	}
}
