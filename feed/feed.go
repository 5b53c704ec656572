package feed

import (
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/aquasecurity/nvd-release-builder/database"
	"github.com/aquasecurity/nvd-release-builder/nvd"
)

// RecentWindow is how far back the recent and modified feeds reach.
// It overlaps the weekly release cadence by a day.
const RecentWindow = 8 * 24 * time.Hour

// Feed is a named subset of a database.
type Feed struct {
	Name      Name
	Timestamp time.Time
	Records   []nvd.Record
}

// FileName returns the base name shared by the archive and the metadata, e.g. CVE-2019.
func (f Feed) FileName() string {
	return fileName(f.Name)
}

func fileName(name Name) string {
	return fmt.Sprintf("CVE-%s", name)
}

// Select returns the records of db matching the rule of name, evaluated
// against the database timestamp. The order of the records is unspecified.
func Select(db *database.Database, name Name) Feed {
	return Feed{
		Name:      name,
		Timestamp: db.Timestamp(),
		Records: lo.Filter(db.Records(), func(r nvd.Record, _ int) bool {
			return Match(name, r, db.Timestamp())
		}),
	}
}

// Match reports whether r belongs to the feed name at the given timestamp.
func Match(name Name, r nvd.Record, timestamp time.Time) bool {
	oldest := timestamp.Add(-RecentWindow)
	switch name.Kind {
	case KindAll:
		return true
	case KindRecent:
		return r.Published.After(oldest)
	case KindModified:
		return r.LastModified.After(oldest)
	default:
		// Note that the published year doesn't have to equal the year in the identifier.
		// https://cve.mitre.org/cve/identifiers/syntaxchange.html
		year, err := r.Year()
		return err == nil && year == name.Year
	}
}
