package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"
	"github.com/tanq16/resumedl/internal/utils"
)

// Recovered is the outcome of scanning a directory: every session that could
// be rebuilt plus one failure per record that could not.
type Recovered struct {
	Sessions []*Session
	Failures []*PersistenceError
}

// Err folds the per-record failures into a single error, or nil.
func (r *Recovered) Err() error {
	var result *multierror.Error
	for _, failure := range r.Failures {
		result = multierror.Append(result, failure)
	}
	return result.ErrorOrNil()
}

// ReconstructAll rebuilds a paused session for every metadata record in dir.
// Progress comes from the real file size, never from the record. A bad
// record is reported in Failures and does not stop the others; only an
// unreadable directory fails the whole call.
func ReconstructAll(dir string, opts Options) (*Recovered, error) {
	opts = opts.withDefaults()
	records, err := listRecords(dir)
	if err != nil {
		return nil, &PersistenceError{Record: dir, Err: err}
	}
	recovered := &Recovered{}
	for _, path := range records {
		s, err := reconstruct(dir, path, opts)
		if err != nil {
			log.Warn().Str("op", "session/store").Err(err).Msgf("Skipping metadata record %s", path)
			recovered.Failures = append(recovered.Failures, &PersistenceError{Record: path, Err: err})
			continue
		}
		recovered.Sessions = append(recovered.Sessions, s)
	}
	log.Debug().Str("op", "session/store").Msgf("Reconstructed %d sessions from %s (%d failures)", len(recovered.Sessions), dir, len(recovered.Failures))
	return recovered, nil
}

func listRecords(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var records []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), utils.MetadataSuffix) {
			continue
		}
		records = append(records, filepath.Join(dir, entry.Name()))
	}
	return records, nil
}

func reconstruct(dir, path string, opts Options) (*Session, error) {
	rec, err := ReadRecord(path)
	if err != nil {
		return nil, err
	}
	size, err := utils.FileSize(filepath.Join(dir, rec.NameOnDisk))
	if err != nil {
		return nil, err
	}
	if size > rec.ContentLength {
		return nil, fmt.Errorf("%s is %d bytes, more than the recorded content length %d", rec.NameOnDisk, size, rec.ContentLength)
	}

	desc := rec.Descriptor()
	name := rec.NameOnDisk
	written := size
	complete := size == desc.ContentLength
	supersedes := ""
	if !desc.RangeSupport && !complete && size > 0 {
		// a plain GET restarts from zero and must not append to the stale partial file
		name, err = utils.ResolveName(rec.NameOnDisk, dir)
		if err != nil {
			return nil, err
		}
		written = 0
		if name != rec.NameOnDisk {
			supersedes = path
		}
	}

	s := newSession(desc, name, dir, opts)
	s.supersedes = supersedes
	s.written.Store(written)
	s.complete.Store(complete)
	return s, nil
}
