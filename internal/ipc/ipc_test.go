package ipc

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chess10kp/lswitch/internal/dispatch"
)

func socketPath(t *testing.T) string {
	t.Helper()
	// Unix socket paths are length-limited; keep them short.
	dir, err := os.MkdirTemp("", "lsw")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "s")
}

func TestParseCommand(t *testing.T) {
	for _, c := range Commands() {
		got, err := ParseCommand(string(c) + "\n")
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}

	_, err := ParseCommand("launcher")
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestServerRunsCommandsOnOwner(t *testing.T) {
	path := socketPath(t)
	var q dispatch.Queue
	var got []Command
	srv := NewServer(path, &q, func(c Command) { got = append(got, c) })
	require.NoError(t, srv.Start())
	defer srv.Stop()

	require.NoError(t, Send(path, CommandToggle))
	require.NoError(t, Send(path, CommandFullRefresh))

	assert.Empty(t, got, "handler must wait for the owner")
	q.Drain()
	assert.Equal(t, []Command{CommandToggle, CommandFullRefresh}, got)
}

func TestServerRejectsUnknownCommands(t *testing.T) {
	path := socketPath(t)
	var q dispatch.Queue
	srv := NewServer(path, &q, func(Command) {})
	require.NoError(t, srv.Start())
	defer srv.Stop()

	err := Send(path, Command("reboot"))

	assert.ErrorContains(t, err, "unknown command")
	assert.Equal(t, 0, q.Len())
}

func TestStartReplacesStaleSocket(t *testing.T) {
	path := socketPath(t)
	require.NoError(t, os.WriteFile(path, nil, 0600))

	srv := NewServer(path, &dispatch.Queue{}, func(Command) {})
	require.NoError(t, srv.Start())
	assert.Error(t, srv.Start())

	require.NoError(t, srv.Stop())
	assert.NoFileExists(t, path)
	assert.NoError(t, srv.Stop())
}

func TestSendWithoutServer(t *testing.T) {
	err := Send(socketPath(t), CommandShow)
	assert.Error(t, err)

	var opErr *net.OpError
	assert.ErrorAs(t, err, &opErr)
}
