package runtime

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStartReportsSuccessfulExit(t *testing.T) {
	f := NewFake(t.TempDir(), testLogger())

	h, err := f.Start("hello1", "fake", "true")
	require.NoError(t, err)

	select {
	case exit := <-f.Exits():
		require.Equal(t, h, exit.Handle)
		require.Equal(t, ExitSucceeded, exit.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for exit notification")
	}
}

func TestStartReportsFailedExit(t *testing.T) {
	f := NewFake(t.TempDir(), testLogger())

	h, err := f.Start("will-fail", "fake", "exit 1")
	require.NoError(t, err)

	select {
	case exit := <-f.Exits():
		require.Equal(t, h, exit.Handle)
		require.Equal(t, ExitFailed, exit.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for exit notification")
	}
}

func TestStopTerminatesLongRunningInstance(t *testing.T) {
	f := NewFake(t.TempDir(), testLogger())

	h, err := f.Start("sleeper", "fake", "sleep 60")
	require.NoError(t, err)

	err = f.Stop(h, DeletionPolicy{GracePeriod: 200 * time.Millisecond})
	require.NoError(t, err)

	select {
	case exit := <-f.Exits():
		require.Equal(t, h, exit.Handle)
		require.Equal(t, ExitSignaled, exit.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for exit notification after stop")
	}
}

func TestStopOnUnknownHandleIsIdempotent(t *testing.T) {
	f := NewFake(t.TempDir(), testLogger())
	require.NoError(t, f.Stop(Handle("ghost"), DeletionPolicy{}))
}
