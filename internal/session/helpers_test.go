package session

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testPayload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

// fileServer serves one payload and remembers what GET requests asked for.
type fileServer struct {
	*httptest.Server
	data      []byte
	rangeable bool

	mu     sync.Mutex
	ranges []string
	gets   int
	// abortAfter, when > 0, makes the next GET drop the connection after
	// that many bytes
	abortAfter int
}

func newFileServer(t *testing.T, data []byte, rangeable bool) *fileServer {
	t.Helper()
	fs := &fileServer{data: data, rangeable: rangeable}
	fs.Server = httptest.NewServer(http.HandlerFunc(fs.handle))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fileServer) handle(w http.ResponseWriter, r *http.Request) {
	abortAfter := 0
	fs.mu.Lock()
	data := fs.data
	if r.Method == http.MethodGet {
		fs.gets++
		fs.ranges = append(fs.ranges, r.Header.Get("Range"))
		abortAfter = fs.abortAfter
		fs.abortAfter = 0
	}
	fs.mu.Unlock()

	if abortAfter > 0 {
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Write(data[:abortAfter])
		w.(http.Flusher).Flush()
		panic(http.ErrAbortHandler)
	}
	if fs.rangeable {
		http.ServeContent(w, r, "", time.Time{}, bytes.NewReader(data))
		return
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if r.Method == http.MethodGet {
		w.Write(data)
	}
}

func (fs *fileServer) setData(data []byte) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.data = data
}

func (fs *fileServer) requests() (int, []string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.gets, append([]string(nil), fs.ranges...)
}

func (fs *fileServer) abortNextAfter(n int) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.abortAfter = n
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func seedRecord(t *testing.T, dir string, rec Record, partial []byte) {
	t.Helper()
	created, err := WriteRecord(dir, rec)
	require.NoError(t, err)
	require.True(t, created)
	if partial != nil {
		writeFile(t, filepath.Join(dir, rec.NameOnDisk), partial)
	}
}
