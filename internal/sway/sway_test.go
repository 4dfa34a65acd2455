package sway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chess10kp/lswitch/internal/platform"
)

const treeJSON = `{
  "id": 1, "type": "root", "name": "root",
  "nodes": [{
    "id": 2, "type": "output", "name": "eDP-1",
    "nodes": [{
      "id": 3, "type": "workspace", "name": "1",
      "nodes": [
        {"id": 10, "type": "con", "name": "GitHub", "pid": 100, "app_id": "firefox",
         "visible": true, "rect": {"x": 0, "y": 0, "width": 960, "height": 1080}, "nodes": []},
        {"id": 11, "type": "con", "name": "split", "nodes": [
          {"id": 12, "type": "con", "name": "Inbox", "pid": 200, "app_id": null,
           "window_properties": {"class": "Thunderbird", "instance": "Mail"},
           "visible": true, "rect": {"x": 960, "y": 0, "width": 960, "height": 540}, "nodes": []},
          {"id": 13, "type": "con", "name": "switcher", "pid": 999, "app_id": "lswitch",
           "visible": true, "rect": {"x": 960, "y": 540, "width": 960, "height": 540}, "nodes": []}
        ]}
      ],
      "floating_nodes": [
        {"id": 14, "type": "floating_con", "name": "Docs", "pid": 100, "app_id": "firefox",
         "visible": false, "rect": {"x": 100, "y": 100, "width": 800, "height": 600}, "nodes": []}
      ]
    }]
  }]
}`

func testBackend(t *testing.T) (*Backend, *[]string) {
	t.Helper()
	root, err := parseTree([]byte(treeJSON))
	require.NoError(t, err)

	var mu sync.Mutex
	var commands []string
	b := New()
	b.selfPID = 999
	b.fetchTree = func(context.Context) (Node, error) { return root, nil }
	b.runCommand = func(_ context.Context, cmd string) error {
		mu.Lock()
		defer mu.Unlock()
		commands = append(commands, cmd)
		return nil
	}
	return b, &commands
}

func TestExtractWindowsInLayoutOrder(t *testing.T) {
	root, err := parseTree([]byte(treeJSON))
	require.NoError(t, err)

	windows := extractWindows(root, "")

	require.Len(t, windows, 4)
	assert.Equal(t, "firefox: GitHub", windows[0].Label())
	assert.Equal(t, "Thunderbird: Inbox", windows[1].Label())
	assert.Equal(t, "1", windows[1].Workspace)
	assert.Equal(t, int64(14), windows[3].ConID)
	assert.False(t, windows[3].Visible)
}

func TestProcessesExcludeSelf(t *testing.T) {
	b, _ := testBackend(t)

	procs, err := b.Processes(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []platform.Process{{PID: 100, Name: "firefox"}, {PID: 200, Name: "Thunderbird"}}, procs)
}

func TestWindowsAndTitle(t *testing.T) {
	b, _ := testBackend(t)
	ctx := context.Background()

	refs, err := b.Windows(ctx, platform.Process{PID: 100})
	require.NoError(t, err)
	assert.Equal(t, []platform.WindowRef{{Handle: 10, Title: "GitHub"}, {Handle: 14, Title: "Docs"}}, refs)

	title, err := b.Title(ctx, 12)
	require.NoError(t, err)
	assert.Equal(t, "Inbox", title)

	_, err = b.Title(ctx, 77)
	assert.ErrorIs(t, err, platform.ErrWindowGone)

	_, err = b.Process(ctx, 4242)
	assert.ErrorIs(t, err, platform.ErrProcessGone)
}

func TestTreeErrorsPropagate(t *testing.T) {
	b, _ := testBackend(t)
	boom := errors.New("no sway socket")
	b.fetchTree = func(context.Context) (Node, error) { return Node{}, boom }

	_, err := b.Processes(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestFocusCommands(t *testing.T) {
	b, commands := testBackend(t)
	ctx := context.Background()

	require.NoError(t, b.Raise(ctx, 12))
	require.NoError(t, b.Activate(ctx, platform.Process{PID: 200}))

	assert.Equal(t, []string{"[con_id=12] focus", "[pid=200] urgent disable"}, *commands)
}

func TestCapturableWindowsAreVisibleOnly(t *testing.T) {
	b, _ := testBackend(t)

	targets, err := b.CapturableWindows(context.Background())

	require.NoError(t, err)
	var labels []string
	for _, tg := range targets {
		labels = append(labels, tg.Label)
	}
	assert.Equal(t, []string{"firefox: GitHub", "Thunderbird: Inbox", "lswitch: switcher"}, labels)
	assert.Equal(t, Rect{X: 960, Y: 0, Width: 960, Height: 540}, targets[1].Source)
	assert.Equal(t, "960,0 960x540", targets[1].Source.(Rect).Geometry())
}

func TestCaptureRejectsForeignSource(t *testing.T) {
	b, _ := testBackend(t)

	_, err := b.CaptureFrame(context.Background(), "not a rect")
	assert.Error(t, err)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, platform.EventTitleChanged, kindOf("title"))
	assert.Equal(t, platform.EventCreated, kindOf("new"))
	assert.Equal(t, platform.EventDestroyed, kindOf("close"))
	assert.Equal(t, platform.EventUnknown, kindOf("focus"))
}

type streamFixture struct {
	stream    *eventStream
	connects  int
	connected chan deliverFunc
	dead      map[int]bool
	mu        sync.Mutex
}

func newStreamFixture() *streamFixture {
	f := &streamFixture{connected: make(chan deliverFunc, 4), dead: make(map[int]bool)}
	f.stream = newEventStream(
		func(ctx context.Context, deliver deliverFunc) error {
			f.mu.Lock()
			f.connects++
			f.mu.Unlock()
			f.connected <- deliver
			<-ctx.Done()
			return ctx.Err()
		},
		func(context.Context) error { return nil },
		func(pid int) bool {
			f.mu.Lock()
			defer f.mu.Unlock()
			return !f.dead[pid]
		},
	)
	return f
}

func TestEventStreamRoutesByPID(t *testing.T) {
	f := newStreamFixture()
	var mu sync.Mutex
	var got []platform.Event
	record := func(ev platform.Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ev)
	}

	sub, err := f.stream.add(context.Background(), 100, record)
	require.NoError(t, err)
	defer sub.Close()

	deliver := <-f.connected
	deliver(100, 10, "title")
	deliver(200, 12, "title")
	deliver(100, 10, "focus")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []platform.Event{{PID: 100, Handle: 10, Kind: platform.EventTitleChanged}}, got)
}

func TestCloseOfLastWindowReportsExit(t *testing.T) {
	f := newStreamFixture()
	var got []platform.Event
	sub, err := f.stream.add(context.Background(), 100, func(ev platform.Event) { got = append(got, ev) })
	require.NoError(t, err)
	defer sub.Close()
	deliver := <-f.connected

	deliver(100, 10, "close")
	f.mu.Lock()
	f.dead[100] = true
	f.mu.Unlock()
	deliver(100, 14, "close")

	assert.Equal(t, []platform.Event{
		{PID: 100, Handle: 10, Kind: platform.EventDestroyed},
		{PID: 100, Handle: 14, Kind: platform.EventDestroyed},
		{PID: 100, Kind: platform.EventProcessExited},
	}, got)
}

func TestStreamSharedAndStoppedWithLastSubscriber(t *testing.T) {
	f := newStreamFixture()
	ctx := context.Background()

	a, err := f.stream.add(ctx, 100, func(platform.Event) {})
	require.NoError(t, err)
	b, err := f.stream.add(ctx, 200, func(platform.Event) {})
	require.NoError(t, err)
	<-f.connected

	running := func() bool {
		f.stream.mu.Lock()
		defer f.stream.mu.Unlock()
		return f.stream.running
	}

	require.NoError(t, a.Close())
	assert.True(t, running())
	require.NoError(t, b.Close())
	assert.False(t, running())

	c, err := f.stream.add(ctx, 300, func(platform.Event) {})
	require.NoError(t, err)
	defer c.Close()
	select {
	case <-f.connected:
	case <-time.After(time.Second):
		t.Fatal("stream did not restart")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, 2, f.connects)
}

func TestSubscribeFailsWithoutCompositor(t *testing.T) {
	boom := errors.New("SWAYSOCK not set")
	stream := newEventStream(
		func(ctx context.Context, _ deliverFunc) error { <-ctx.Done(); return nil },
		func(context.Context) error { return boom },
		func(int) bool { return true },
	)

	_, err := stream.add(context.Background(), 100, func(platform.Event) {})
	assert.ErrorIs(t, err, boom)
}
