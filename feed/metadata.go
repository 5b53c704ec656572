package feed

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/xerrors"

	"github.com/aquasecurity/nvd-release-builder/nvd"
)

const (
	keyLastModified = "lastModifiedDate"
	keySize         = "size"
	keyXZSize       = "xzSize"
	keySHA256       = "sha256"
)

var metadataKeys = []string{keyLastModified, keySize, keyXZSize, keySHA256}

// Metadata describes a written feed archive, it is stored next to it as CVE-<name>.meta.
type Metadata struct {
	LastModified time.Time
	Size         int64 // of the uncompressed JSON
	XZSize       int64
	SHA256       string // of the uncompressed JSON
}

func (m Metadata) Write(w io.Writer) error {
	lastModified, err := nvd.FormatTime(m.LastModified)
	if err != nil {
		return xerrors.Errorf("invalid last modified date: %w", err)
	}

	_, err = fmt.Fprintf(w, "%s:%s\n%s:%d\n%s:%d\n%s:%s\n",
		keyLastModified, lastModified,
		keySize, m.Size,
		keyXZSize, m.XZSize,
		keySHA256, m.SHA256,
	)
	return err
}

// ReadMetadata parses a metadata file written by Metadata.Write.
func ReadMetadata(r io.Reader) (Metadata, error) {
	var (
		m    Metadata
		line int
		err  error
	)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line >= len(metadataKeys) {
			return Metadata{}, xerrors.Errorf("unexpected line %d: %q", line+1, scanner.Text())
		}
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok || key != metadataKeys[line] {
			return Metadata{}, xerrors.Errorf("line %d: expected %s, got %q", line+1, metadataKeys[line], scanner.Text())
		}

		switch key {
		case keyLastModified:
			m.LastModified, err = nvd.ParseTime(value)
		case keySize:
			m.Size, err = strconv.ParseInt(value, 10, 64)
		case keyXZSize:
			m.XZSize, err = strconv.ParseInt(value, 10, 64)
		case keySHA256:
			m.SHA256 = value
		}
		if err != nil {
			return Metadata{}, xerrors.Errorf("invalid %s: %w", key, err)
		}
		line++
	}
	if err = scanner.Err(); err != nil {
		return Metadata{}, xerrors.Errorf("scan error: %w", err)
	}
	if line != len(metadataKeys) {
		return Metadata{}, xerrors.Errorf("%s is missing", metadataKeys[line])
	}
	return m, nil
}
