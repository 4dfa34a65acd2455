// Package sway implements the window system and capture backends on top of
// sway IPC, falling back to swaymsg when the socket client is unavailable.
package sway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/joshuarubin/go-sway"
	"golang.org/x/sync/singleflight"
	"golang.org/x/sys/unix"

	"github.com/chess10kp/lswitch/internal/platform"
)

const defaultMsgCommand = "swaymsg"

// Backend talks to the running compositor. It is safe for concurrent use.
type Backend struct {
	msgCommand string
	grim       string
	selfPID    int

	mu     sync.Mutex
	client sway.Client

	events *eventStream
	trees  singleflight.Group

	// fetchTree is replaced in tests.
	fetchTree func(ctx context.Context) (Node, error)
	// runCommand is replaced in tests.
	runCommand func(ctx context.Context, cmd string) error
}

// Option configures a Backend.
type Option func(*Backend)

// WithMsgCommand sets the swaymsg-compatible binary used when the IPC client
// is unavailable.
func WithMsgCommand(cmd string) Option {
	return func(b *Backend) {
		if cmd != "" {
			b.msgCommand = cmd
		}
	}
}

// WithGrim sets the screenshot binary used for previews.
func WithGrim(path string) Option {
	return func(b *Backend) {
		if path != "" {
			b.grim = path
		}
	}
}

func New(opts ...Option) *Backend {
	b := &Backend{
		msgCommand: detectMsgCommand(),
		grim:       "grim",
		selfPID:    os.Getpid(),
	}
	b.fetchTree = b.getTree
	b.runCommand = b.run
	b.events = newEventStream(b.subscribeSway, b.probeSway, processAlive)
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func detectMsgCommand() string {
	for _, cmd := range []string{"swaymsg", "scrollmsg"} {
		if _, err := exec.LookPath(cmd); err == nil {
			return cmd
		}
	}
	return defaultMsgCommand
}

func (b *Backend) swayClient(ctx context.Context) (sway.Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client != nil {
		return b.client, nil
	}
	client, err := sway.New(ctx)
	if err != nil {
		return nil, err
	}
	b.client = client
	return client, nil
}

func (b *Backend) dropClient() {
	b.mu.Lock()
	b.client = nil
	b.mu.Unlock()
}

// getTree reads the layout tree over IPC, or through the msg command if the
// socket is unavailable.
func (b *Backend) getTree(ctx context.Context) (Node, error) {
	client, err := b.swayClient(ctx)
	if err == nil {
		tree, err := client.GetTree(ctx)
		if err == nil {
			return decodeNode(tree)
		}
		log.Printf("[SWAY] get_tree over IPC failed, falling back to %s: %v", b.msgCommand, err)
		b.dropClient()
	}

	cmd := exec.CommandContext(ctx, b.msgCommand, "-t", "get_tree")
	cmd.Env = cleanEnv()
	output, err := cmd.Output()
	if err != nil {
		return Node{}, fmt.Errorf("%s -t get_tree: %w", b.msgCommand, err)
	}
	return parseTree(output)
}

func (b *Backend) run(ctx context.Context, command string) error {
	client, err := b.swayClient(ctx)
	if err == nil {
		replies, err := client.RunCommand(ctx, command)
		if err == nil {
			for _, r := range replies {
				if !r.Success {
					return fmt.Errorf("sway rejected %q: %s", command, r.Error)
				}
			}
			return nil
		}
		log.Printf("[SWAY] command over IPC failed, falling back to %s: %v", b.msgCommand, err)
		b.dropClient()
	}

	cmd := exec.CommandContext(ctx, b.msgCommand, command)
	cmd.Env = cleanEnv()
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s %q: %w: %s", b.msgCommand, command, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// cleanEnv drops LD_PRELOAD so preloaded GTK shims do not leak into helpers.
func cleanEnv() []string {
	env := os.Environ()
	for i, e := range env {
		if strings.HasPrefix(e, "LD_PRELOAD=") {
			return append(env[:i:i], env[i+1:]...)
		}
	}
	return env
}

// windows lists every client window. Concurrent callers share one tree read.
func (b *Backend) windows(ctx context.Context) ([]WindowInfo, error) {
	v, err, _ := b.trees.Do("tree", func() (any, error) {
		root, err := b.fetchTree(ctx)
		if err != nil {
			return nil, err
		}
		return extractWindows(root, ""), nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]WindowInfo), nil
}

// Processes lists processes owning at least one client window, excluding the
// switcher itself.
func (b *Backend) Processes(ctx context.Context) ([]platform.Process, error) {
	windows, err := b.windows(ctx)
	if err != nil {
		return nil, err
	}
	return processesOf(windows, b.selfPID), nil
}

func (b *Backend) Windows(ctx context.Context, proc platform.Process) ([]platform.WindowRef, error) {
	windows, err := b.windows(ctx)
	if err != nil {
		return nil, err
	}

	var refs []platform.WindowRef
	for _, w := range windows {
		if w.PID == proc.PID {
			refs = append(refs, platform.WindowRef{Handle: platform.Handle(w.ConID), Title: w.Title})
		}
	}
	return refs, nil
}

func (b *Backend) Title(ctx context.Context, h platform.Handle) (string, error) {
	windows, err := b.windows(ctx)
	if err != nil {
		return "", err
	}
	for _, w := range windows {
		if platform.Handle(w.ConID) == h {
			return w.Title, nil
		}
	}
	return "", platform.ErrWindowGone
}

func (b *Backend) Process(ctx context.Context, pid int) (platform.Process, error) {
	procs, err := b.Processes(ctx)
	if err != nil {
		return platform.Process{}, err
	}
	for _, p := range procs {
		if p.PID == pid {
			return p, nil
		}
	}
	return platform.Process{}, platform.ErrProcessGone
}

// Raise focuses the container, switching workspace and output as needed.
func (b *Backend) Raise(ctx context.Context, h platform.Handle) error {
	return b.runCommand(ctx, fmt.Sprintf("[con_id=%d] focus", h))
}

// Activate clears pending urgency on every window of proc. Sway has no
// application-level activation; focusing a container already brings its
// workspace forward.
func (b *Backend) Activate(ctx context.Context, proc platform.Process) error {
	return b.runCommand(ctx, fmt.Sprintf("[pid=%d] urgent disable", proc.PID))
}

// Subscribe delivers window events of proc to fn. All subscriptions share one
// IPC event stream.
func (b *Backend) Subscribe(ctx context.Context, proc platform.Process, fn func(platform.Event)) (platform.Subscription, error) {
	return b.events.add(ctx, proc.PID, fn)
}

// Close stops the shared event stream.
func (b *Backend) Close() {
	b.events.stop()
}

// processAlive reports whether pid still exists.
func processAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
