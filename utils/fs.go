package utils

import (
	"os"

	"golang.org/x/xerrors"

	"github.com/spf13/afero"
)

var ErrDirNotEmpty = xerrors.New("directory is not empty")

type Fs struct {
	AppFs afero.Fs
}

func NewFs(appFs afero.Fs) Fs {
	return Fs{AppFs: appFs}
}

// PrepareDir creates dir, an existing directory is accepted only when it is empty.
func (fs Fs) PrepareDir(dir string) error {
	info, err := fs.AppFs.Stat(dir)
	switch {
	case os.IsNotExist(err):
		if err = fs.AppFs.MkdirAll(dir, 0755); err != nil {
			return xerrors.Errorf("unable to create %s: %w", dir, err)
		}
		return nil
	case err != nil:
		return xerrors.Errorf("unable to stat %s: %w", dir, err)
	case !info.IsDir():
		return xerrors.Errorf("%s is not a directory", dir)
	}

	empty, err := afero.IsEmpty(fs.AppFs, dir)
	if err != nil {
		return xerrors.Errorf("unable to read %s: %w", dir, err)
	}
	if !empty {
		return xerrors.Errorf("%s: %w", dir, ErrDirNotEmpty)
	}
	return nil
}
