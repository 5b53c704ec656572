package database

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/nvd-release-builder/nvd"
)

var (
	yearDirPattern  = regexp.MustCompile(`^CVE-[0-9]{4}$`)
	recordFileRegex = regexp.MustCompile(`^CVE-[0-9]{4}-[0-9]{4,}\.json$`)
)

// DirLoader reads a checkout of the nvd-json-data-feeds repository:
//
//	CVE-2019/
//	  CVE-2019-00xx/
//	    CVE-2019-0001.json
//
// Entries that don't follow this layout are skipped.
type DirLoader struct {
	appFs afero.Fs
	root  string
}

func NewDirLoader(appFs afero.Fs, root string) DirLoader {
	return DirLoader{
		appFs: appFs,
		root:  root,
	}
}

func (l DirLoader) Load() (map[string]nvd.Record, error) {
	yearDirs, err := afero.ReadDir(l.appFs, l.root)
	if err != nil {
		return nil, xerrors.Errorf("unable to read %s: %w", l.root, err)
	}

	records := map[string]nvd.Record{}
	for _, yearDir := range yearDirs {
		if !yearDir.IsDir() || !yearDirPattern.MatchString(yearDir.Name()) {
			continue
		}
		if err = l.loadYear(filepath.Join(l.root, yearDir.Name()), records); err != nil {
			return nil, xerrors.Errorf("unable to load %s: %w", yearDir.Name(), err)
		}
	}
	log.Printf("Loaded %d records from %s", len(records), l.root)

	return records, nil
}

func (l DirLoader) loadYear(yearDir string, records map[string]nvd.Record) error {
	bucketPattern := regexp.MustCompile(fmt.Sprintf(`^%s-[0-9]+xx$`, regexp.QuoteMeta(filepath.Base(yearDir))))

	buckets, err := afero.ReadDir(l.appFs, yearDir)
	if err != nil {
		return xerrors.Errorf("unable to read %s: %w", yearDir, err)
	}
	for _, bucket := range buckets {
		if !bucket.IsDir() || !bucketPattern.MatchString(bucket.Name()) {
			continue
		}

		bucketDir := filepath.Join(yearDir, bucket.Name())
		files, err := afero.ReadDir(l.appFs, bucketDir)
		if err != nil {
			return xerrors.Errorf("unable to read %s: %w", bucketDir, err)
		}
		for _, file := range files {
			if !file.Mode().IsRegular() || !recordFileRegex.MatchString(file.Name()) {
				continue
			}

			path := filepath.Join(bucketDir, file.Name())
			r, err := l.loadFile(path)
			if err != nil {
				return err
			}
			if _, ok := records[r.ID]; ok {
				return xerrors.Errorf("%s (%s): %w", r.ID, path, ErrDuplicateRecord)
			}
			records[r.ID] = r
		}
	}
	return nil
}

// LoadRecord reads a single record by its CVE-ID without walking the tree.
func (l DirLoader) LoadRecord(id string) (nvd.Record, error) {
	if !nvd.ValidID(id) {
		return nvd.Record{}, xerrors.Errorf("%q: %w", id, nvd.ErrInvalidID)
	}

	path := filepath.Join(l.root, RecordPath(id))
	r, err := l.loadFile(path)
	if xerrors.Is(err, os.ErrNotExist) {
		return nvd.Record{}, xerrors.Errorf("%s: %w", id, ErrRecordNotFound)
	} else if err != nil {
		return nvd.Record{}, err
	}
	return r, nil
}

// RecordPath returns the path of the record file relative to the repository root,
// e.g. CVE-2019/CVE-2019-100xx/CVE-2019-10001.json. id must be valid.
func RecordPath(id string) string {
	s := strings.Split(id, "-")
	year, number := s[1], s[2]
	return filepath.Join(
		"CVE-"+year,
		fmt.Sprintf("CVE-%s-%sxx", year, number[:len(number)-2]),
		id+".json",
	)
}

func (l DirLoader) loadFile(path string) (nvd.Record, error) {
	b, err := afero.ReadFile(l.appFs, path)
	if err != nil {
		return nvd.Record{}, xerrors.Errorf("unable to read %s: %w", path, err)
	}

	var r nvd.Record
	if err = json.Unmarshal(b, &r); err != nil {
		return nvd.Record{}, &MalformedRecordError{Path: path, Err: err}
	}
	return r, nil
}
