package fsutil

import (
	"errors"
	"io/fs"
	"os"

	"sizefit-service/pkg/logger"
)

// RemoveIfExists deletes path, treating an already missing file as success.
func RemoveIfExists(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// RemoveQuietly deletes every path and logs failures other than "not found".
func RemoveQuietly(paths ...string) {
	for _, p := range paths {
		if err := RemoveIfExists(p); err != nil {
			logger.Warnf("failed to remove file path=%s error=%s", p, err.Error())
		}
	}
}
