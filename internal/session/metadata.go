package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tanq16/resumedl/internal/remote"
	"github.com/tanq16/resumedl/internal/utils"
)

// Record is the write-once snapshot of what a session asked for. It never
// carries progress; progress is always the size of the file on disk.
type Record struct {
	Link          string `json:"link"`
	NameOnDisk    string `json:"name_on_disk"`
	URLName       string `json:"url_name"`
	ContentLength uint64 `json:"content_length"`
	RangeSupport  bool   `json:"range_support"`
}

func (r Record) Descriptor() remote.Descriptor {
	return remote.Descriptor{
		Link:          r.Link,
		Filename:      r.URLName,
		ContentLength: r.ContentLength,
		RangeSupport:  r.RangeSupport,
	}
}

func RecordPath(dir, nameOnDisk string) string {
	return filepath.Join(dir, nameOnDisk+utils.MetadataSuffix)
}

// WriteRecord persists rec next to its file unless a record already exists.
// It reports whether this call created the record.
func WriteRecord(dir string, rec Record) (bool, error) {
	path := RecordPath(dir, rec.NameOnDisk)
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	data, err := json.Marshal(rec)
	if err == nil {
		_, err = file.Write(data)
	}
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		// a half-written record would win every later write
		os.Remove(path)
		return false, err
	}
	return true, nil
}

func ReadRecord(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("error parsing record: %w", err)
	}
	if rec.Link == "" {
		return Record{}, errors.New("record has no link")
	}
	if rec.NameOnDisk == "" || rec.NameOnDisk == ".." || filepath.Base(rec.NameOnDisk) != rec.NameOnDisk {
		return Record{}, fmt.Errorf("record has invalid name_on_disk %q", rec.NameOnDisk)
	}
	return rec, nil
}
