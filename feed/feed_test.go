package feed

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"

	"github.com/aquasecurity/nvd-release-builder/database"
	"github.com/aquasecurity/nvd-release-builder/nvd"
)

var now = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func testDatabase() *database.Database {
	records := []nvd.Record{
		// identifier year differs from the publication year
		{ID: "CVE-2019-0001", Published: date(2024, 1, 5), LastModified: date(2024, 1, 5)},
		{ID: "CVE-2019-10001", Published: date(2019, 3, 24), LastModified: date(2019, 3, 25)},
		{ID: "CVE-2018-0001", Published: date(2018, 1, 1), LastModified: date(2024, 1, 9)},
		{ID: "CVE-2020-0001", Published: date(2020, 1, 8), LastModified: date(2020, 1, 14)},
		// exactly at the boundary
		{ID: "CVE-2024-0001", Published: now.Add(-RecentWindow), LastModified: now.Add(-RecentWindow)},
		{ID: "CVE-2024-0002", Published: now.Add(-RecentWindow + time.Millisecond), LastModified: date(2024, 1, 1)},
		{ID: "CVE-2024-0003", Published: date(2024, 1, 1), LastModified: date(2024, 1, 1)},
		{ID: "CVE-2024-0004", Published: now, LastModified: now.Add(time.Hour)},
	}
	return database.New(lo.SliceToMap(records, func(r nvd.Record) (string, nvd.Record) {
		return r.ID, r
	}), now)
}

func ids(f Feed) []string {
	return lo.Map(f.Records, func(r nvd.Record, _ int) string { return r.ID })
}

func TestSelect(t *testing.T) {
	db := testDatabase()

	tests := []struct {
		name Name
		want []string
	}{
		{
			name: YearName(2019),
			want: []string{"CVE-2019-0001", "CVE-2019-10001"},
		},
		{
			name: YearName(2018),
			want: []string{"CVE-2018-0001"},
		},
		{
			name: YearName(2020),
			want: []string{"CVE-2020-0001"},
		},
		{
			name: YearName(2021),
			want: []string{},
		},
		{
			name: All,
			want: db.IDs(),
		},
		{
			name: Recent,
			want: []string{"CVE-2019-0001", "CVE-2024-0002", "CVE-2024-0004"},
		},
		{
			name: Modified,
			want: []string{"CVE-2019-0001", "CVE-2018-0001", "CVE-2024-0004"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name.String(), func(t *testing.T) {
			got := Select(db, tt.name)
			assert.Equal(t, tt.name, got.Name)
			assert.Equal(t, now, got.Timestamp)
			assert.ElementsMatch(t, tt.want, ids(got))

			// every selected record matches, every other record doesn't
			selected := lo.SliceToMap(got.Records, func(r nvd.Record) (string, bool) { return r.ID, true })
			for _, r := range db.Records() {
				assert.Equal(t, selected[r.ID], Match(tt.name, r, db.Timestamp()), r.ID)
			}
		})
	}
}

func TestMatch_Recent(t *testing.T) {
	tests := []struct {
		name      string
		published time.Time
		want      bool
	}{
		{name: "five days ago", published: date(2024, 1, 5), want: true},
		{name: "nine days ago", published: date(2024, 1, 1), want: false},
		{name: "exactly eight days ago", published: date(2024, 1, 2), want: false},
		{name: "just after the boundary", published: date(2024, 1, 2).Add(time.Second), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := nvd.Record{ID: "CVE-2024-0001", Published: tt.published}
			assert.Equal(t, tt.want, Match(Recent, r, now))

			r = nvd.Record{ID: "CVE-2024-0001", LastModified: tt.published}
			assert.Equal(t, tt.want, Match(Modified, r, now))
		})
	}
}
