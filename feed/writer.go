package feed

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"github.com/ulikunitz/xz"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/nvd-release-builder/nvd"
)

const (
	ArchiveExt = ".json.xz"
	MetaExt    = ".meta"

	DefaultPreset = 9
)

var (
	ErrOutputExists  = xerrors.New("output already exists")
	ErrInvalidPreset = xerrors.New("invalid xz preset")
)

// dictionary sizes of the xz presets 0-9
var presetDictCaps = [...]int{
	256 << 10,
	1 << 20,
	2 << 20,
	4 << 20,
	4 << 20,
	8 << 20,
	8 << 20,
	16 << 20,
	32 << 20,
	64 << 20,
}

// CheckPreset returns ErrInvalidPreset unless preset is within 0-9.
func CheckPreset(preset int) error {
	if preset < 0 || preset >= len(presetDictCaps) {
		return xerrors.Errorf("%d: %w", preset, ErrInvalidPreset)
	}
	return nil
}

type options struct {
	appFs  afero.Fs
	preset int
}

type option func(*options)

func WithFs(appFs afero.Fs) option {
	return func(opts *options) { opts.appFs = appFs }
}

// WithPreset sets the xz compression preset, 0 (fast) to 9 (best).
func WithPreset(preset int) option {
	return func(opts *options) { opts.preset = preset }
}

// Writer writes feed archives and their metadata into a directory.
// Outputs are never overwritten.
type Writer struct {
	dir string
	*options
}

func NewWriter(dir string, opts ...option) Writer {
	o := &options{
		appFs:  afero.NewOsFs(),
		preset: DefaultPreset,
	}
	for _, opt := range opts {
		opt(o)
	}
	return Writer{
		dir:     dir,
		options: o,
	}
}

// Paths returns the archive and metadata paths of the feed name.
func (w Writer) Paths(name Name) (string, string) {
	base := filepath.Join(w.dir, fileName(name))
	return base + ArchiveExt, base + MetaExt
}

// Write writes CVE-<name>.json.xz and CVE-<name>.meta and returns the metadata.
// ErrOutputExists is returned if either file is already present.
func (w Writer) Write(f Feed) (Metadata, error) {
	if err := CheckPreset(w.preset); err != nil {
		return Metadata{}, err
	}

	archivePath, metaPath := w.Paths(f.Name)
	for _, path := range []string{archivePath, metaPath} {
		exists, err := afero.Exists(w.appFs, path)
		if err != nil {
			return Metadata{}, xerrors.Errorf("unable to stat %s: %w", path, err)
		} else if exists {
			return Metadata{}, xerrors.Errorf("%s: %w", path, ErrOutputExists)
		}
	}

	data, err := f.Canonical()
	if err != nil {
		return Metadata{}, xerrors.Errorf("unable to serialize feed: %w", err)
	}

	if err = w.writeArchive(archivePath, data); err != nil {
		return Metadata{}, xerrors.Errorf("unable to write %s: %w", archivePath, err)
	}

	info, err := w.appFs.Stat(archivePath)
	if err != nil {
		return Metadata{}, xerrors.Errorf("unable to stat %s: %w", archivePath, err)
	}

	digest := sha256.Sum256(data)
	meta := Metadata{
		LastModified: lastModified(f.Records),
		Size:         int64(len(data)),
		XZSize:       info.Size(),
		SHA256:       hex.EncodeToString(digest[:]),
	}

	if err = w.writeMetadata(metaPath, meta); err != nil {
		// the archive is only kept together with its metadata
		_ = w.appFs.Remove(archivePath)
		return Metadata{}, err
	}
	return meta, nil
}

func (w Writer) writeMetadata(path string, meta Metadata) error {
	f, err := create(w.appFs, path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err = meta.Write(f); err != nil {
		_ = f.Close()
		_ = w.appFs.Remove(path)
		return xerrors.Errorf("unable to write %s: %w", path, err)
	}
	if err = f.Close(); err != nil {
		_ = w.appFs.Remove(path)
		return xerrors.Errorf("unable to close %s: %w", path, err)
	}
	return nil
}

func (w Writer) writeArchive(path string, data []byte) (err error) {
	f, err := create(w.appFs, path)
	if err != nil {
		return err
	}
	defer func() {
		// don't leave a truncated archive behind
		if err != nil {
			_ = f.Close()
			_ = w.appFs.Remove(path)
		}
	}()

	cfg := xz.WriterConfig{
		DictCap:  presetDictCaps[w.preset],
		CheckSum: xz.CRC64,
	}
	xw, err := cfg.NewWriter(f)
	if err != nil {
		return xerrors.Errorf("unable to create xz writer: %w", err)
	}
	if _, err = xw.Write(data); err != nil {
		return xerrors.Errorf("unable to compress: %w", err)
	}
	if err = xw.Close(); err != nil {
		return xerrors.Errorf("unable to finish xz stream: %w", err)
	}
	if err = f.Close(); err != nil {
		return xerrors.Errorf("unable to close: %w", err)
	}
	return nil
}

func create(appFs afero.Fs, path string) (afero.File, error) {
	f, err := appFs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if xerrors.Is(err, os.ErrExist) {
		return nil, xerrors.Errorf("%s: %w", path, ErrOutputExists)
	} else if err != nil {
		return nil, xerrors.Errorf("unable to create %s: %w", path, err)
	}
	return f, nil
}

// lastModified returns the latest modification of the records, the zero
// time (0001-01-01T00:00:00) if there are none.
func lastModified(records []nvd.Record) time.Time {
	var latest time.Time
	for _, r := range records {
		if r.LastModified.After(latest) {
			latest = r.LastModified
		}
	}
	return latest
}
