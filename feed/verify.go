package feed

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/tidwall/gjson"
	"github.com/ulikunitz/xz"
	"golang.org/x/xerrors"
)

var ErrChecksumMismatch = xerrors.New("checksum mismatch")

// Verify checks the archive of the feed name against its metadata file.
func (w Writer) Verify(name Name) (Metadata, error) {
	archivePath, metaPath := w.Paths(name)

	mf, err := w.appFs.Open(metaPath)
	if err != nil {
		return Metadata{}, xerrors.Errorf("unable to open %s: %w", metaPath, err)
	}
	defer mf.Close()

	meta, err := ReadMetadata(mf)
	if err != nil {
		return Metadata{}, xerrors.Errorf("unable to read %s: %w", metaPath, err)
	}

	data, xzSize, err := w.readArchive(archivePath)
	if err != nil {
		return Metadata{}, xerrors.Errorf("unable to read %s: %w", archivePath, err)
	}

	digest := sha256.Sum256(data)
	switch {
	case xzSize != meta.XZSize:
		return Metadata{}, xerrors.Errorf("%s: xzSize %d, got %d: %w", archivePath, meta.XZSize, xzSize, ErrChecksumMismatch)
	case int64(len(data)) != meta.Size:
		return Metadata{}, xerrors.Errorf("%s: size %d, got %d: %w", archivePath, meta.Size, len(data), ErrChecksumMismatch)
	case hex.EncodeToString(digest[:]) != meta.SHA256:
		return Metadata{}, xerrors.Errorf("%s: sha256 %s, got %x: %w", archivePath, meta.SHA256, digest, ErrChecksumMismatch)
	}

	count, items := gjson.GetBytes(data, "cve_count"), gjson.GetBytes(data, "cve_items.#")
	if !count.Exists() || count.Int() != items.Int() {
		return Metadata{}, xerrors.Errorf("%s: cve_count %s, %d items: %w", archivePath, count.Raw, items.Int(), ErrChecksumMismatch)
	}
	return meta, nil
}

func (w Writer) readArchive(path string) ([]byte, int64, error) {
	f, err := w.appFs.Open(path)
	if err != nil {
		return nil, 0, xerrors.Errorf("unable to open: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, 0, xerrors.Errorf("unable to stat: %w", err)
	}

	r, err := xz.NewReader(f)
	if err != nil {
		return nil, 0, xerrors.Errorf("unable to create xz reader: %w", err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, xerrors.Errorf("unable to decompress: %w", err)
	}
	return data, info.Size(), nil
}

// ListFeeds returns the names of the feeds with a metadata file in the writer's directory.
func (w Writer) ListFeeds() ([]Name, error) {
	matches, err := afero.Glob(w.appFs, filepath.Join(w.dir, "CVE-*"+MetaExt))
	if err != nil {
		return nil, xerrors.Errorf("glob error: %w", err)
	}

	var names []Name
	for _, m := range matches {
		s := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), "CVE-"), MetaExt)
		name, err := ParseName(s)
		if err != nil {
			return nil, xerrors.Errorf("unexpected metadata file %s: %w", m, err)
		}
		names = append(names, name)
	}
	return names, nil
}
