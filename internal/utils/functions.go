package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

func GetRandomUserAgent() string {
	return userAgents[time.Now().UnixNano()%int64(len(userAgents))]
}

// ResolveName returns a name that is free inside dir, starting from desired
// and probing stem_1.ext, stem_2.ext and so on. A name is taken when either
// the file or its metadata record exists.
func ResolveName(desired, dir string) (string, error) {
	taken, err := nameTaken(dir, desired)
	if err != nil {
		return "", err
	}
	if !taken {
		return desired, nil
	}
	stem, ext := splitName(desired)
	for index := 1; ; index++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, index, ext)
		taken, err := nameTaken(dir, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
}

func nameTaken(dir, name string) (bool, error) {
	exists, err := pathExists(filepath.Join(dir, name))
	if err != nil || exists {
		return exists, err
	}
	return pathExists(filepath.Join(dir, name+MetadataSuffix))
}

func splitName(name string) (string, string) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if stem == "" {
		// dotfile like ".bashrc"
		return name, ""
	}
	return stem, ext
}

func pathExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// FileSize reports the size of path, or 0 when it does not exist.
func FileSize(path string) (uint64, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory", path)
	}
	return uint64(info.Size()), nil
}

func ParseHeaderArgs(headers []string) map[string]string {
	result := make(map[string]string)
	for _, header := range headers {
		parts := strings.SplitN(header, ":", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			result[key] = value
		}
	}
	return result
}
