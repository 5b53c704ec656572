package git

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/xerrors"

	"github.com/aquasecurity/nvd-release-builder/utils"
)

const (
	tagPrefix     = "refs/tags/v"
	tagTimeLayout = "2006.01.02-150405"
)

var (
	ErrRepositoryNotFound = xerrors.New("repository not found")
	ErrTagNotFound        = xerrors.New("tag not found")
)

// Dataset is a bare clone of the record repository and the directory its tags are checked out to.
type Dataset struct {
	GitDir      string
	CheckoutDir string
}

func NewDataset(cacheDir string) Dataset {
	return Dataset{
		GitDir:      filepath.Join(cacheDir, "nvd-json-data-feeds.git"),
		CheckoutDir: filepath.Join(cacheDir, "nvd-json-data-feeds"),
	}
}

func (d Dataset) Exists() (bool, error) {
	return utils.Exists(d.GitDir)
}

// CloneBare clones url into GitDir.
func (d Dataset) CloneBare(url string) error {
	if err := os.MkdirAll(filepath.Dir(d.GitDir), 0700); err != nil {
		return xerrors.Errorf("unable to create a cache directory: %w", err)
	}
	log.Printf("git clone --bare %s", url)
	if _, err := utils.Exec("git", []string{"clone", "--bare", url, d.GitDir}); err != nil {
		return xerrors.Errorf("failed to clone: %w", err)
	}
	return nil
}

// Fetch fetches the latest commits and tags from origin.
func (d Dataset) Fetch() error {
	if err := d.ensure(); err != nil {
		return err
	}
	log.Println("git fetch")
	fetchCmd := []string{
		"fetch",
		"--tags",
		"--force",
		"origin",
	}
	if _, err := utils.Exec("git", append(d.gitArgs(), fetchCmd...)); err != nil {
		return xerrors.Errorf("error in git fetch: %w", err)
	}
	return nil
}

// Checkout force-checks out the first tag created on date into CheckoutDir.
func (d Dataset) Checkout(date time.Time) error {
	if err := d.ensure(); err != nil {
		return err
	}

	tags, err := d.tags()
	if err != nil {
		return err
	}

	year, month, day := date.Date()
	var tag string
	for _, name := range tags {
		ts, err := parseTagTime(name)
		if err != nil {
			log.Printf("Skip tag %s: %s", name, err)
			continue
		}
		if y, m, dd := ts.Date(); y == year && m == month && dd == day {
			tag = name
			break
		}
	}
	if tag == "" {
		return xerrors.Errorf("no tag for %s, did you fetch the latest tags?: %w", date.Format(time.DateOnly), ErrTagNotFound)
	}

	if err = os.MkdirAll(d.CheckoutDir, 0700); err != nil {
		return xerrors.Errorf("unable to create a checkout directory: %w", err)
	}
	log.Printf("git checkout %s", tag)
	checkoutCmd := []string{
		"--work-tree",
		d.CheckoutDir,
		"checkout",
		"--force",
		tag,
	}
	if _, err = utils.Exec("git", append(d.gitArgs(), checkoutCmd...)); err != nil {
		return xerrors.Errorf("error in git checkout: %w", err)
	}
	return nil
}

// CheckoutTimestamp returns the timestamp of the tag HEAD points at.
func (d Dataset) CheckoutTimestamp() (time.Time, error) {
	if err := d.ensure(); err != nil {
		return time.Time{}, err
	}

	refCmd := []string{
		"for-each-ref",
		"--points-at=HEAD",
		"--format=%(refname)",
		"refs/tags",
	}
	output, err := utils.Exec("git", append(d.gitArgs(), refCmd...))
	if err != nil {
		return time.Time{}, xerrors.Errorf("error in git for-each-ref: %w", err)
	}
	for _, name := range splitLines(output) {
		if ts, err := parseTagTime(name); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, xerrors.Errorf("HEAD of %s has no associated tag: %w", d.GitDir, ErrTagNotFound)
}

func (d Dataset) tags() ([]string, error) {
	refCmd := []string{
		"for-each-ref",
		"--format=%(refname)",
		"refs/tags",
	}
	output, err := utils.Exec("git", append(d.gitArgs(), refCmd...))
	if err != nil {
		return nil, xerrors.Errorf("error in git for-each-ref: %w", err)
	}
	return splitLines(output), nil
}

func (d Dataset) ensure() error {
	exists, err := d.Exists()
	if err != nil {
		return xerrors.Errorf("unable to stat %s: %w", d.GitDir, err)
	}
	if !exists {
		return xerrors.Errorf("%s, run 'git clone --bare <url> %s': %w", d.GitDir, d.GitDir, ErrRepositoryNotFound)
	}
	return nil
}

func (d Dataset) gitArgs() []string {
	return []string{
		"--git-dir",
		d.GitDir,
	}
}

// parseTagTime extracts the UTC timestamp of a release tag such as refs/tags/v2024.01.10-120000.
func parseTagTime(name string) (time.Time, error) {
	s, ok := strings.CutPrefix(name, tagPrefix)
	if !ok || len(s) < len(tagTimeLayout) {
		return time.Time{}, xerrors.Errorf("unexpected tag name: %s", name)
	}
	t, err := time.Parse(tagTimeLayout, s[:len(tagTimeLayout)])
	if err != nil {
		return time.Time{}, xerrors.Errorf("unable to parse %s: %w", name, err)
	}
	return t, nil
}

func splitLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
