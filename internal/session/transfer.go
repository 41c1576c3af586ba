package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"strings"

	"github.com/tanq16/resumedl/internal/utils"
)

// Run streams the remote resource into the session file, appending from
// BytesWritten when the server supports ranges. It parks between chunks
// while the session is paused. Any error leaves the file and record on disk
// as of the last successful write, ready for a later Run.
func (s *Session) Run(ctx context.Context) error {
	if !s.active.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer s.active.Store(false)

	if s.complete.Load() {
		s.log.Debug().Str("op", "session/run").Msgf("%s already complete, nothing to transfer", s.NameOnDisk())
		return nil
	}
	if written := s.written.Load(); written > 0 && written == s.Descriptor.ContentLength {
		// an earlier run stored every byte but failed before verifying
		return s.finish()
	}

	if !s.Descriptor.RangeSupport && s.written.Load() > 0 {
		if err := s.restartFresh(); err != nil {
			return err
		}
	}

	resp, err := s.request(ctx)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := s.persistRecord(); err != nil {
		return err
	}

	path := s.Path()
	// append only; truncating would destroy resumed progress
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return &TransferError{Op: "open", Path: path, Err: err}
	}
	defer file.Close()

	buffer := make([]byte, utils.DefaultBufferSize)
	for {
		n, readErr := resp.Body.Read(buffer)
		if n == 0 && readErr == io.EOF {
			break
		}
		if err := s.gate.wait(ctx); err != nil {
			return &TransferError{Op: "pause", Path: path, Err: err}
		}
		if n > 0 {
			if err := s.append(file, buffer[:n]); err != nil {
				return err
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			return &TransferError{Op: "read", Path: s.Descriptor.Link, Err: readErr}
		}
	}
	return s.finish()
}

func (s *Session) request(ctx context.Context) (*http.Response, error) {
	endpoint, err := s.resolver.Endpoint(ctx, s.Descriptor)
	if err != nil {
		return nil, &TransferError{Op: "request", Path: s.Descriptor.Link, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &TransferError{Op: "request", Path: s.Descriptor.Link, Err: err}
	}
	offset := s.written.Load()
	if s.Descriptor.RangeSupport && s.Descriptor.ContentLength > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, s.Descriptor.ContentLength))
		if offset > 0 {
			s.log.Info().Str("op", "session/run").Msgf("Resuming %s from offset %d", s.NameOnDisk(), offset)
		}
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &TransferError{Op: "request", Path: s.Descriptor.Link, Err: err}
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, &TransferError{Op: "status", Path: s.Descriptor.Link, Err: fmt.Errorf("unexpected status code: %d", resp.StatusCode)}
	}
	if offset > 0 && resp.StatusCode != http.StatusPartialContent {
		resp.Body.Close()
		return nil, &TransferError{Op: "status", Path: s.Descriptor.Link, Err: fmt.Errorf("%w (status %d)", ErrRangeIgnored, resp.StatusCode)}
	}
	return resp, nil
}

func (s *Session) persistRecord() error {
	created, err := WriteRecord(s.Directory, s.record())
	if err != nil {
		return &TransferError{Op: "metadata", Path: s.RecordPath(), Err: err}
	}
	if !created {
		return s.checkRecord()
	}
	s.log.Debug().Str("op", "session/run").Msgf("Wrote metadata record %s", s.RecordPath())
	s.mu.Lock()
	stale := s.supersedes
	s.supersedes = ""
	s.mu.Unlock()
	if stale != "" {
		if err := os.Remove(stale); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn().Str("op", "session/run").Err(err).Msgf("Could not remove superseded record %s", stale)
		}
		partial := strings.TrimSuffix(stale, utils.MetadataSuffix)
		s.log.Warn().Str("op", "session/run").Str("partial", partial).Msgf("Left untracked partial file %s; delete it by hand", partial)
	}
	return nil
}

// checkRecord makes sure an existing record describes this session's
// download before any byte is appended under its name.
func (s *Session) checkRecord() error {
	path := s.RecordPath()
	existing, err := ReadRecord(path)
	if err != nil {
		return &TransferError{Op: "metadata", Path: path, Err: err}
	}
	if existing.Link != s.Descriptor.Link || existing.ContentLength != s.Descriptor.ContentLength {
		return &TransferError{
			Op:   "metadata",
			Path: path,
			Err:  fmt.Errorf("%w: recorded %s (%d bytes)", ErrRecordClash, existing.Link, existing.ContentLength),
		}
	}
	return nil
}

func (s *Session) append(file *os.File, chunk []byte) error {
	room := s.Descriptor.ContentLength - s.written.Load()
	overflow := uint64(len(chunk)) > room
	if overflow {
		chunk = chunk[:room]
	}
	if len(chunk) > 0 {
		if _, err := file.Write(chunk); err != nil {
			return &TransferError{Op: "write", Path: file.Name(), Err: err}
		}
		s.written.Add(uint64(len(chunk)))
	}
	if overflow {
		return &TransferError{Op: "write", Path: file.Name(), Err: ErrOverflow}
	}
	return nil
}

func (s *Session) finish() error {
	written := s.written.Load()
	if written != s.Descriptor.ContentLength {
		return &TransferError{
			Op:   "verify",
			Path: s.Path(),
			Err:  fmt.Errorf("%w: %d of %d bytes", ErrShortTransfer, written, s.Descriptor.ContentLength),
		}
	}
	s.complete.Store(true)
	s.log.Info().Str("op", "session/run").Msgf("Download complete for %s", s.Path())
	return nil
}

// restartFresh moves a non-resumable session onto a new name, since a plain
// GET cannot skip the bytes already on disk.
func (s *Session) restartFresh() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, err := utils.ResolveName(s.name, s.Directory)
	if err != nil {
		return &TransferError{Op: "name", Path: s.Directory, Err: err}
	}
	s.log.Warn().Str("op", "session/run").Msgf("Server does not support ranges, restarting %s as %s", s.name, name)
	s.supersedes = RecordPath(s.Directory, s.name)
	s.name = name
	s.written.Store(0)
	return nil
}
