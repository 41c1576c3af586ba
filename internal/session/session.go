// Package session implements a single-stream resumable download: the session
// state, its pause gate, the range-aware transfer, the write-once metadata
// record and the reconstruction of sessions from a directory after restart.
package session

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tanq16/resumedl/internal/remote"
	"github.com/tanq16/resumedl/internal/utils"
)

type Options struct {
	HTTP      utils.HTTPClientConfig
	S3Profile string
	// Client and Resolver default to an HTTP client built from HTTP and a
	// scheme mux over it.
	Client   utils.HTTPDoer
	Resolver remote.Resolver
}

func (o Options) withDefaults() Options {
	if o.Client == nil {
		o.Client = utils.NewHTTPClient(o.HTTP)
	}
	if o.Resolver == nil {
		o.Resolver = remote.NewMux(o.Client, o.S3Profile)
	}
	return o
}

// Session is one file's download. BytesWritten, Running and Complete are
// independent atomics and may be polled from any goroutine.
type Session struct {
	ID         string
	Descriptor remote.Descriptor
	Directory  string

	mu   sync.Mutex
	name string
	// record of an earlier name this session replaced; removed once the
	// session writes its own record
	supersedes string

	written  atomic.Uint64
	complete atomic.Bool
	active   atomic.Bool
	gate     *gate

	client   utils.HTTPDoer
	resolver remote.Resolver
	log      zerolog.Logger
}

// New resolves link and prepares a fresh, paused session targeting a
// collision-free name inside dir.
func New(ctx context.Context, link, dir string, opts Options) (*Session, error) {
	opts = opts.withDefaults()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &TransferError{Op: "mkdir", Path: dir, Err: err}
	}
	desc, err := opts.Resolver.Resolve(ctx, link)
	if err != nil {
		return nil, &ResolutionError{Link: link, Err: err}
	}
	name, err := utils.ResolveName(desc.Filename, dir)
	if err != nil {
		return nil, &TransferError{Op: "name", Path: dir, Err: err}
	}
	s := newSession(desc, name, dir, opts)
	s.log.Debug().Str("op", "session/new").Msgf("Created session for %s as %s (%d bytes, range=%t)", link, name, desc.ContentLength, desc.RangeSupport)
	return s, nil
}

func newSession(desc remote.Descriptor, name, dir string, opts Options) *Session {
	id := uuid.NewString()
	return &Session{
		ID:         id,
		Descriptor: desc,
		Directory:  dir,
		name:       name,
		gate:       newGate(),
		client:     opts.Client,
		resolver:   opts.Resolver,
		log:        log.With().Str("session", id[:8]).Logger(),
	}
}

// ToggleRunning negates the running flag. Two toggles in a row cancel out;
// check Running first for a deterministic start or pause.
func (s *Session) ToggleRunning() {
	running := s.gate.toggle()
	s.log.Debug().Str("op", "session/toggle").Msgf("Running set to %t", running)
}

func (s *Session) Running() bool {
	return s.gate.running.Load()
}

func (s *Session) BytesWritten() uint64 {
	return s.written.Load()
}

func (s *Session) Complete() bool {
	return s.complete.Load()
}

func (s *Session) NameOnDisk() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

func (s *Session) Path() string {
	return filepath.Join(s.Directory, s.NameOnDisk())
}

func (s *Session) RecordPath() string {
	return RecordPath(s.Directory, s.NameOnDisk())
}

func (s *Session) record() Record {
	return Record{
		Link:          s.Descriptor.Link,
		NameOnDisk:    s.NameOnDisk(),
		URLName:       s.Descriptor.Filename,
		ContentLength: s.Descriptor.ContentLength,
		RangeSupport:  s.Descriptor.RangeSupport,
	}
}
