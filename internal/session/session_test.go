package session

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFreshSession(t *testing.T) {
	server := newFileServer(t, testPayload(2048), true)
	dir := filepath.Join(t.TempDir(), "nested", "downloads")

	s, err := New(context.Background(), server.URL+"/file.bin", dir, Options{})
	require.NoError(t, err)
	assert.DirExists(t, dir)
	assert.Equal(t, "file.bin", s.NameOnDisk())
	assert.Equal(t, uint64(2048), s.Descriptor.ContentLength)
	assert.True(t, s.Descriptor.RangeSupport)
	assert.Zero(t, s.BytesWritten())
	assert.False(t, s.Running())
	assert.False(t, s.Complete())
	assert.NotEmpty(t, s.ID)
}

func TestNewResolvesCollisions(t *testing.T) {
	server := newFileServer(t, testPayload(10), true)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "file.bin"), []byte("old"))

	s, err := New(context.Background(), server.URL+"/file.bin", dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, "file_1.bin", s.NameOnDisk())
}

func TestNewResolutionError(t *testing.T) {
	dir := t.TempDir()
	_, err := New(context.Background(), "ftp://example.com/file.bin", dir, Options{})
	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, "ftp://example.com/file.bin", resErr.Link)
}

func TestNewDirectoryError(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	writeFile(t, blocker, []byte("x"))

	_, err := New(context.Background(), "http://example.com/file.bin", filepath.Join(blocker, "sub"), Options{})
	var transferErr *TransferError
	require.ErrorAs(t, err, &transferErr)
	assert.Equal(t, "mkdir", transferErr.Op)
}

func TestToggleRunningTwiceIsNoop(t *testing.T) {
	server := newFileServer(t, testPayload(10), true)
	s, err := New(context.Background(), server.URL+"/f", t.TempDir(), Options{})
	require.NoError(t, err)

	before := s.Running()
	s.ToggleRunning()
	s.ToggleRunning()
	assert.Equal(t, before, s.Running())
}

func TestRunFreshDownload(t *testing.T) {
	data := testPayload(100_000)
	server := newFileServer(t, data, true)
	dir := t.TempDir()

	s, err := New(context.Background(), server.URL+"/big.bin", dir, Options{})
	require.NoError(t, err)
	s.ToggleRunning()
	require.NoError(t, s.Run(context.Background()))

	assert.True(t, s.Complete())
	assert.Equal(t, uint64(len(data)), s.BytesWritten())
	assert.Equal(t, data, readFile(t, s.Path()))

	rec, err := ReadRecord(s.RecordPath())
	require.NoError(t, err)
	assert.Equal(t, Record{
		Link:          server.URL + "/big.bin",
		NameOnDisk:    "big.bin",
		URLName:       "big.bin",
		ContentLength: uint64(len(data)),
		RangeSupport:  true,
	}, rec)

	_, ranges := server.requests()
	assert.Equal(t, []string{"bytes=0-100000"}, ranges)
}

func TestRunResumesWithRange(t *testing.T) {
	data := testPayload(2048)
	server := newFileServer(t, data, true)
	dir := t.TempDir()
	seedRecord(t, dir, Record{
		Link:          server.URL + "/sample2.txt",
		NameOnDisk:    "sample2.txt",
		URLName:       "sample2.txt",
		ContentLength: 2048,
		RangeSupport:  true,
	}, data[:1001])

	recovered, err := ReconstructAll(dir, Options{})
	require.NoError(t, err)
	require.Len(t, recovered.Sessions, 1)
	s := recovered.Sessions[0]
	assert.Equal(t, uint64(1001), s.BytesWritten())

	s.ToggleRunning()
	require.NoError(t, s.Run(context.Background()))

	_, ranges := server.requests()
	assert.Equal(t, []string{"bytes=1001-2048"}, ranges)
	assert.Equal(t, uint64(2048), s.BytesWritten())
	assert.True(t, s.Complete())
	assert.Equal(t, data, readFile(t, s.Path()))
}

func TestRunKeepsFirstRecordAcrossRuns(t *testing.T) {
	data := testPayload(4096)
	server := newFileServer(t, data, true)
	dir := t.TempDir()

	s, err := New(context.Background(), server.URL+"/blob.bin", dir, Options{})
	require.NoError(t, err)
	s.ToggleRunning()

	server.abortNextAfter(1500)
	err = s.Run(context.Background())
	require.Error(t, err)
	assert.False(t, s.Complete())
	require.FileExists(t, s.RecordPath())
	snapshot := readFile(t, s.RecordPath())
	written := s.BytesWritten()
	assert.LessOrEqual(t, written, uint64(1500))

	require.NoError(t, s.Run(context.Background()))
	assert.True(t, s.Complete())
	assert.Equal(t, data, readFile(t, s.Path()))
	assert.Equal(t, snapshot, readFile(t, s.RecordPath()))

	_, ranges := server.requests()
	require.Len(t, ranges, 2)
	assert.Equal(t, "bytes="+strconv.FormatUint(written, 10)+"-4096", ranges[1])
}

func TestRunShortTransfer(t *testing.T) {
	data := testPayload(2048)
	server := newFileServer(t, data, false)
	dir := t.TempDir()

	s, err := New(context.Background(), server.URL+"/short.bin", dir, Options{})
	require.NoError(t, err)
	// the server now delivers less than it announced
	server.setData(data[:1000])
	s.ToggleRunning()

	err = s.Run(context.Background())
	require.ErrorIs(t, err, ErrShortTransfer)
	var transferErr *TransferError
	require.ErrorAs(t, err, &transferErr)
	assert.Equal(t, "verify", transferErr.Op)
	assert.False(t, s.Complete())
	assert.Equal(t, uint64(1000), s.BytesWritten())
}

func TestRunOverflow(t *testing.T) {
	server := newFileServer(t, testPayload(100), false)
	dir := t.TempDir()

	s, err := New(context.Background(), server.URL+"/grow.bin", dir, Options{})
	require.NoError(t, err)
	server.setData(testPayload(300))
	s.ToggleRunning()

	err = s.Run(context.Background())
	assert.ErrorIs(t, err, ErrOverflow)
	assert.Equal(t, uint64(100), s.BytesWritten())
	assert.Equal(t, testPayload(100), readFile(t, s.Path()))
	assert.False(t, s.Complete())
}

func TestRunOverflowKeepsBytesUpToLimit(t *testing.T) {
	data := testPayload(2048)
	server := newFileServer(t, data, true)
	dir := t.TempDir()

	s, err := New(context.Background(), server.URL+"/grow.bin", dir, Options{})
	require.NoError(t, err)
	s.ToggleRunning()

	server.abortNextAfter(1000)
	require.Error(t, s.Run(context.Background()))
	written := s.BytesWritten()
	require.Less(t, written, uint64(2048))

	// the inclusive range end now exists remotely, so one byte too many arrives
	server.setData(testPayload(4096))
	err = s.Run(context.Background())
	require.ErrorIs(t, err, ErrOverflow)
	assert.Equal(t, uint64(2048), s.BytesWritten())
	assert.False(t, s.Complete())
	assert.Equal(t, data, readFile(t, s.Path()))

	require.NoError(t, s.Run(context.Background()))
	assert.True(t, s.Complete())
	gets, ranges := server.requests()
	assert.Equal(t, 2, gets)
	assert.Equal(t, "bytes="+strconv.FormatUint(written, 10)+"-2048", ranges[1])
}

func TestRunRejectsForeignRecord(t *testing.T) {
	server := newFileServer(t, testPayload(512), true)
	dir := t.TempDir()

	s, err := New(context.Background(), server.URL+"/a.bin", dir, Options{})
	require.NoError(t, err)
	// another session claimed the name between New and Run
	seedRecord(t, dir, Record{
		Link:          "http://other.example/a.bin",
		NameOnDisk:    s.NameOnDisk(),
		URLName:       "a.bin",
		ContentLength: 5000,
		RangeSupport:  true,
	}, nil)
	s.ToggleRunning()

	err = s.Run(context.Background())
	require.ErrorIs(t, err, ErrRecordClash)
	var transferErr *TransferError
	require.ErrorAs(t, err, &transferErr)
	assert.Equal(t, "metadata", transferErr.Op)
	assert.NoFileExists(t, s.Path())
	assert.Zero(t, s.BytesWritten())
}

func TestRunRangeIgnored(t *testing.T) {
	data := testPayload(2048)
	server := newFileServer(t, data, false)
	dir := t.TempDir()
	seedRecord(t, dir, Record{
		Link:          server.URL + "/x.bin",
		NameOnDisk:    "x.bin",
		URLName:       "x.bin",
		ContentLength: 2048,
		RangeSupport:  true,
	}, data[:500])

	recovered, err := ReconstructAll(dir, Options{})
	require.NoError(t, err)
	s := recovered.Sessions[0]
	s.ToggleRunning()

	err = s.Run(context.Background())
	assert.ErrorIs(t, err, ErrRangeIgnored)
	assert.Equal(t, data[:500], readFile(t, filepath.Join(dir, "x.bin")))
	assert.Equal(t, uint64(500), s.BytesWritten())
}

func TestRunRequestFailure(t *testing.T) {
	server := newFileServer(t, testPayload(10), true)
	dir := t.TempDir()
	s, err := New(context.Background(), server.URL+"/gone.bin", dir, Options{})
	require.NoError(t, err)
	server.Close()
	s.ToggleRunning()

	err = s.Run(context.Background())
	var transferErr *TransferError
	require.ErrorAs(t, err, &transferErr)
	assert.Equal(t, "request", transferErr.Op)
	assert.NoFileExists(t, s.RecordPath())
}

func TestRunWaitsWhilePaused(t *testing.T) {
	data := testPayload(64 * 1024)
	server := newFileServer(t, data, true)
	s, err := New(context.Background(), server.URL+"/paused.bin", t.TempDir(), Options{})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- s.Run(context.Background())
	}()

	assert.Never(t, func() bool { return s.BytesWritten() > 0 }, 200*time.Millisecond, 20*time.Millisecond)
	assert.False(t, s.Complete())

	s.ToggleRunning()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("transfer did not resume after toggle")
	}
	assert.True(t, s.Complete())
	assert.Equal(t, data, readFile(t, s.Path()))
}

func TestRunPausedCancel(t *testing.T) {
	server := newFileServer(t, testPayload(1024), true)
	s, err := New(context.Background(), server.URL+"/c.bin", t.TempDir(), Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
		var transferErr *TransferError
		assert.ErrorAs(t, err, &transferErr)
	case <-time.After(5 * time.Second):
		t.Fatal("cancel did not stop the paused transfer")
	}
	assert.False(t, s.Complete())
}

func TestRunBusy(t *testing.T) {
	server := newFileServer(t, testPayload(1024), true)
	s, err := New(context.Background(), server.URL+"/busy.bin", t.TempDir(), Options{})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- s.Run(context.Background())
	}()
	require.Eventually(t, func() bool { return s.active.Load() }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, s.Run(context.Background()), ErrBusy)

	s.ToggleRunning()
	require.NoError(t, <-done)
	assert.True(t, s.Complete())
}

func TestRunCompleteSkipsTransfer(t *testing.T) {
	server := newFileServer(t, testPayload(512), true)
	s, err := New(context.Background(), server.URL+"/done.bin", t.TempDir(), Options{})
	require.NoError(t, err)
	s.ToggleRunning()
	require.NoError(t, s.Run(context.Background()))
	require.NoError(t, s.Run(context.Background()))

	gets, _ := server.requests()
	assert.Equal(t, 1, gets)
}

func TestRunNonRangeRestartsUnderNewName(t *testing.T) {
	data := testPayload(4096)
	server := newFileServer(t, data, false)
	dir := t.TempDir()
	var logs bytes.Buffer
	saved := log.Logger
	log.Logger = zerolog.New(&logs)
	t.Cleanup(func() { log.Logger = saved })

	s, err := New(context.Background(), server.URL+"/plain.bin", dir, Options{})
	require.NoError(t, err)
	s.ToggleRunning()

	server.abortNextAfter(1000)
	require.Error(t, s.Run(context.Background()))
	require.FileExists(t, filepath.Join(dir, "plain.bin.metadl"))

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, "plain_1.bin", s.NameOnDisk())
	assert.True(t, s.Complete())
	assert.Equal(t, data, readFile(t, s.Path()))
	assert.FileExists(t, filepath.Join(dir, "plain_1.bin.metadl"))
	assert.NoFileExists(t, filepath.Join(dir, "plain.bin.metadl"))

	_, ranges := server.requests()
	assert.Equal(t, []string{"", ""}, ranges)

	// the old partial stays on disk untracked, and the log names it
	assert.FileExists(t, filepath.Join(dir, "plain.bin"))
	assert.Contains(t, logs.String(), filepath.Join(dir, "plain.bin"))
	assert.Contains(t, logs.String(), "untracked partial file")
}
