//go:build windows

package fsutil

import (
	"os"

	"github.com/hpungsan/trail/internal/errors"
)

// OpenNoFollow opens path for writing. Windows has no O_NOFOLLOW; callers
// reject symlinks with Lstat before getting here.
func OpenNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(path, flag, perm)
}

// OpenNoFollowRead opens path for reading. A missing file is FILE_NOT_FOUND.
func OpenNoFollowRead(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFound(path)
		}
		return nil, err
	}
	return f, nil
}
