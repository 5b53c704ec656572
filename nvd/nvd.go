package nvd

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"golang.org/x/xerrors"
)

const (
	// TimeFormat is the layout of the timezone-naive record dates, e.g. 2024-01-05T10:15:09.123
	TimeFormat = "2006-01-02T15:04:05.000"

	idKey           = "id"
	publishedKey    = "published"
	lastModifiedKey = "lastModified"
)

var (
	ErrInvalidID      = xerrors.New("invalid CVE-ID")
	ErrTimezoneOffset = xerrors.New("unexpected UTC offset")

	idPattern = regexp.MustCompile(`^CVE-[0-9]{4}-[0-9]{4,}$`)

	naiveLayouts = []string{
		"2006-01-02T15:04:05", // also matches fractional seconds
		"2006-01-02T15:04",
		"2006-01-02",
	}
)

// Record is a single CVE item of the NVD JSON data feeds.
// Only the identifier and the two dates are interpreted, the rest of the
// document is kept as it was read.
type Record struct {
	ID           string
	Published    time.Time
	LastModified time.Time

	raw []byte
}

// ValidID reports whether id looks like CVE-YYYY-NNNN.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// Year returns the year embedded in the identifier. It may differ from the
// year the CVE was published in.
// cf. https://cve.mitre.org/cve/identifiers/syntaxchange.html
func (r Record) Year() (int, error) {
	return YearFromID(r.ID)
}

func YearFromID(id string) (int, error) {
	s := strings.Split(id, "-")
	if len(s) != 3 {
		return 0, xerrors.Errorf("%q: %w", id, ErrInvalidID)
	}
	year, err := strconv.Atoi(s[1])
	if err != nil {
		return 0, xerrors.Errorf("%q: %w", id, ErrInvalidID)
	}
	return year, nil
}

func (r *Record) UnmarshalJSON(b []byte) error {
	// the payload is written back verbatim, replacement characters would alter it
	if !utf8.Valid(b) {
		return xerrors.New("invalid UTF-8")
	}
	if !gjson.ValidBytes(b) {
		return xerrors.New("invalid JSON")
	}
	if !gjson.ParseBytes(b).IsObject() {
		return xerrors.New("record must be a JSON object")
	}

	fields := gjson.GetManyBytes(b, idKey, publishedKey, lastModifiedKey)
	id := fields[0]
	if id.Type != gjson.String || !ValidID(id.Str) {
		return xerrors.Errorf("%s: %w", id.Raw, ErrInvalidID)
	}

	published, err := parseField(fields[1], publishedKey)
	if err != nil {
		return xerrors.Errorf("%s: %w", id.Str, err)
	}
	lastModified, err := parseField(fields[2], lastModifiedKey)
	if err != nil {
		return xerrors.Errorf("%s: %w", id.Str, err)
	}

	*r = Record{
		ID:           id.Str,
		Published:    published,
		LastModified: lastModified,
		raw:          bytes.Clone(b),
	}
	return nil
}

// MarshalJSON returns the original document with published and lastModified
// rendered in TimeFormat.
func (r Record) MarshalJSON() ([]byte, error) {
	var err error
	b := bytes.Clone(r.raw)
	if b == nil {
		if b, err = sjson.SetBytes([]byte(`{}`), idKey, r.ID); err != nil {
			return nil, xerrors.Errorf("unable to set %s: %w", idKey, err)
		}
	}

	published, err := FormatTime(r.Published)
	if err != nil {
		return nil, xerrors.Errorf("%s %s: %w", r.ID, publishedKey, err)
	}
	lastModified, err := FormatTime(r.LastModified)
	if err != nil {
		return nil, xerrors.Errorf("%s %s: %w", r.ID, lastModifiedKey, err)
	}

	if b, err = sjson.SetBytes(b, publishedKey, published); err != nil {
		return nil, xerrors.Errorf("unable to set %s: %w", publishedKey, err)
	}
	if b, err = sjson.SetBytes(b, lastModifiedKey, lastModified); err != nil {
		return nil, xerrors.Errorf("unable to set %s: %w", lastModifiedKey, err)
	}
	return b, nil
}

func parseField(res gjson.Result, key string) (time.Time, error) {
	if res.Type != gjson.String {
		return time.Time{}, xerrors.Errorf("%s is missing or not a string", key)
	}
	t, err := ParseTime(res.Str)
	if err != nil {
		return time.Time{}, xerrors.Errorf("invalid %s: %w", key, err)
	}
	return t, nil
}

// ParseTime parses a timezone-naive NVD timestamp as UTC.
// Timestamps with a UTC offset are rejected.
func ParseTime(s string) (time.Time, error) {
	if _, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return time.Time{}, xerrors.Errorf("%s: %w", s, ErrTimezoneOffset)
	}
	for _, layout := range naiveLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, xerrors.Errorf("unable to parse %q", s)
}

// FormatTime renders t with millisecond precision and without offset.
// Only UTC times are accepted since the rendering drops the zone.
func FormatTime(t time.Time) (string, error) {
	if t.Location() != time.UTC {
		return "", xerrors.Errorf("%s: %w", t, ErrTimezoneOffset)
	}
	return t.Format(TimeFormat), nil
}
