package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chess10kp/lswitch/internal/dispatch"
	"github.com/chess10kp/lswitch/internal/item"
	"github.com/chess10kp/lswitch/internal/platform"
	"github.com/chess10kp/lswitch/internal/platform/platformtest"
)

func newFixture(t *testing.T) (*platformtest.Fake, *dispatch.Queue, *Registry) {
	t.Helper()
	fake := platformtest.New()
	fake.AddProcess(100, "Safari")
	fake.AddWindow(100, 1, "GitHub")
	fake.AddWindow(100, 2, "")
	fake.AddProcess(200, "Mail")
	fake.AddWindow(200, 3, "Inbox")

	q := &dispatch.Queue{}
	r := New(fake, q)
	r.Initialize(context.Background())
	return fake, q, r
}

func labels(r *Registry) []string {
	var out []string
	for _, w := range r.Items() {
		out = append(out, w.Label())
	}
	return out
}

func TestInitializeListsTitledWindowsInProcessOrder(t *testing.T) {
	fake, _, r := newFixture(t)

	assert.Equal(t, []string{"Safari: GitHub", "Mail: Inbox"}, labels(r))
	assert.Equal(t, 1, fake.OpenSubscriptions(100))
	assert.Equal(t, 1, fake.OpenSubscriptions(200))
}

func TestEnumerationFailureSkipsOnlyThatProcess(t *testing.T) {
	fake := platformtest.New()
	fake.AddProcess(100, "Safari")
	fake.AddWindow(100, 1, "GitHub")
	fake.AddProcess(200, "Mail")
	fake.AddWindow(200, 3, "Inbox")
	fake.EnumErr[100] = errors.New("permission denied")

	r := New(fake, &dispatch.Queue{})
	r.Initialize(context.Background())

	assert.Equal(t, []string{"Mail: Inbox"}, labels(r))
	assert.Zero(t, fake.OpenSubscriptions(100))
}

func TestSubscriptionFailureExcludesUnobservableWindows(t *testing.T) {
	fake := platformtest.New()
	fake.AddProcess(100, "Safari")
	fake.AddWindow(100, 1, "GitHub")
	fake.AddProcess(200, "Mail")
	fake.AddWindow(200, 3, "Inbox")
	fake.SubErr[200] = errors.New("observer refused")

	r := New(fake, &dispatch.Queue{})
	r.Initialize(context.Background())
	assert.Equal(t, []string{"Safari: GitHub"}, labels(r))

	delete(fake.SubErr, 200)
	r.FullRefresh(context.Background())
	assert.Equal(t, []string{"Safari: GitHub", "Mail: Inbox"}, labels(r))
}

func TestTitleChangeKeepsIdentity(t *testing.T) {
	fake, q, r := newFixture(t)
	before := r.Items()[0].ID

	fake.SetTitle(1, "Pull requests")
	fake.Emit(platform.Event{PID: 100, Handle: 1, Kind: platform.EventTitleChanged})
	assert.Equal(t, []string{"Safari: GitHub", "Mail: Inbox"}, labels(r), "events apply only on the owner")

	q.Drain()
	assert.Equal(t, []string{"Safari: Pull requests", "Mail: Inbox"}, labels(r))
	assert.Equal(t, before, r.Items()[0].ID)
}

func TestTitleChangeForVanishedWindowRemovesIt(t *testing.T) {
	fake, q, r := newFixture(t)

	fake.RemoveWindow(1)
	fake.Emit(platform.Event{PID: 100, Handle: 1, Kind: platform.EventTitleChanged})
	q.Drain()

	assert.Equal(t, []string{"Mail: Inbox"}, labels(r))
}

func TestCreatedIsIdempotent(t *testing.T) {
	fake, q, r := newFixture(t)

	fake.AddWindow(200, 4, "Drafts")
	ev := platform.Event{PID: 200, Handle: 4, Kind: platform.EventCreated}
	fake.Emit(ev)
	fake.Emit(ev)
	q.Drain()

	assert.Equal(t, []string{"Safari: GitHub", "Mail: Inbox", "Mail: Drafts"}, labels(r))
}

func TestCreatedWithoutTitleIsIgnored(t *testing.T) {
	fake, q, r := newFixture(t)

	fake.Emit(platform.Event{PID: 200, Handle: 99, Kind: platform.EventCreated})
	q.Drain()

	assert.Len(t, r.Items(), 2)
}

func TestTitleForUntitledWindowAddsIt(t *testing.T) {
	fake, q, r := newFixture(t)

	// Window 2 was created without a title and only named later.
	fake.SetTitle(2, "Downloads")
	fake.Emit(platform.Event{PID: 100, Handle: 2, Kind: platform.EventTitleChanged})
	q.Drain()

	assert.Equal(t, []string{"Safari: GitHub", "Mail: Inbox", "Safari: Downloads"}, labels(r))
}

func TestTitleChangeForUntrackedProcessIsIgnored(t *testing.T) {
	_, _, r := newFixture(t)

	r.HandleNotification(context.Background(), 999, 42, platform.EventTitleChanged)

	assert.Len(t, r.Items(), 2)
}

func TestDestroyedRemovesWindow(t *testing.T) {
	fake, q, r := newFixture(t)

	fake.RemoveWindow(1)
	fake.Emit(platform.Event{PID: 100, Handle: 1, Kind: platform.EventDestroyed})
	q.Drain()

	assert.Equal(t, []string{"Mail: Inbox"}, labels(r))
}

func TestUnknownNotificationIsNoop(t *testing.T) {
	_, _, r := newFixture(t)
	changes := 0
	r.OnChange(func() { changes++ })

	r.HandleNotification(context.Background(), 100, 1, platform.EventUnknown)

	assert.Len(t, r.Items(), 2)
	assert.Zero(t, changes)
}

func TestProcessExitPurgesWindowsAndSubscription(t *testing.T) {
	fake, q, r := newFixture(t)

	fake.RemoveProcess(100)
	fake.Emit(platform.Event{PID: 100, Kind: platform.EventProcessExited})
	q.Drain()

	assert.Equal(t, []string{"Mail: Inbox"}, labels(r))
	assert.Zero(t, fake.OpenSubscriptions(100))
}

func TestRefreshKeepsIdentityAndReplacesSubscriptions(t *testing.T) {
	fake, _, r := newFixture(t)
	before := r.Items()[0].ID

	fake.SetTitle(1, "Issues")
	r.Refresh(context.Background())

	require.Equal(t, []string{"Safari: Issues", "Mail: Inbox"}, labels(r))
	assert.Equal(t, before, r.Items()[0].ID)
	assert.Equal(t, 1, fake.OpenSubscriptions(100))
	assert.Equal(t, 1, fake.OpenSubscriptions(200))
}

func TestRefreshIgnoresNewProcesses(t *testing.T) {
	fake, _, r := newFixture(t)

	fake.AddProcess(300, "Terminal")
	fake.AddWindow(300, 5, "zsh")
	r.Refresh(context.Background())
	assert.Len(t, r.Items(), 2)

	r.FullRefresh(context.Background())
	assert.Equal(t, []string{"Safari: GitHub", "Mail: Inbox", "Terminal: zsh"}, labels(r))
}

func TestEventsFromRetiredGenerationAreDropped(t *testing.T) {
	fake, q, r := newFixture(t)

	// Queued against the first generation, delivered after a refresh.
	fake.Emit(platform.Event{PID: 100, Handle: 1, Kind: platform.EventDestroyed})
	r.Refresh(context.Background())
	q.Drain()

	assert.Equal(t, []string{"Safari: GitHub", "Mail: Inbox"}, labels(r))
}

func TestOnChangeFiresForEveryMutation(t *testing.T) {
	fake, q, r := newFixture(t)
	changes := 0
	r.OnChange(func() { changes++ })

	fake.SetTitle(3, "Archive")
	fake.Emit(platform.Event{PID: 200, Handle: 3, Kind: platform.EventTitleChanged})
	q.Drain()
	r.Refresh(context.Background())

	assert.Equal(t, 2, changes)
}

func TestFocusRaisesThenActivates(t *testing.T) {
	fake, _, r := newFixture(t)
	w := r.Items()[1]

	require.NoError(t, r.Focus(context.Background(), w))

	assert.Equal(t, []platform.Handle{3}, fake.Raised())
	assert.Eventually(t, func() bool {
		return len(fake.Activated()) == 1 && fake.Activated()[0] == 200
	}, time.Second, 5*time.Millisecond)
}

func TestFocusActivatesEvenWhenRaiseFails(t *testing.T) {
	fake, _, r := newFixture(t)
	fake.RaiseErr = errors.New("not raisable")

	err := r.Focus(context.Background(), r.Items()[0])

	var fe *platform.FocusError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, platform.Handle(1), fe.Handle)
	assert.Eventually(t, func() bool { return len(fake.Activated()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestFocusWithMissingOwnerDoesNotActivate(t *testing.T) {
	fake, _, r := newFixture(t)
	w := r.Items()[0]
	fake.RemoveProcess(100)

	err := r.Focus(context.Background(), w)

	require.ErrorIs(t, err, platform.ErrProcessGone)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, fake.Activated())
}

func TestCloseReleasesSubscriptions(t *testing.T) {
	fake, _, r := newFixture(t)

	r.Close()

	assert.Empty(t, r.Items())
	assert.Zero(t, fake.OpenSubscriptions(100))
	assert.Zero(t, fake.OpenSubscriptions(200))
}

func TestIdentityDerivesFromHandle(t *testing.T) {
	_, _, r := newFixture(t)
	assert.Equal(t, item.IdentityOf(1), r.Items()[0].ID)
}
