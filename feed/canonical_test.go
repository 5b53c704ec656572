package feed

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquasecurity/nvd-release-builder/nvd"
)

func decodeRecord(t *testing.T, s string) nvd.Record {
	t.Helper()
	var r nvd.Record
	require.NoError(t, json.Unmarshal([]byte(s), &r))
	return r
}

const wantCanonical = `{
  "timestamp": "2024-01-10T00:00:00.000000+00:00",
  "cve_count": 2,
  "feed_name": "CVE-2019",
  "source": "fkie-cad/nvd-json-data-feeds",
  "cve_items": [
    {
      "id": "CVE-2019-0001",
      "published": "2019-01-15T21:29:00.467",
      "lastModified": "2020-09-29T17:15:12.087",
      "descriptions": [
        {
          "lang": "en",
          "value": "caf\u00e9 <b> \"x\""
        }
      ],
      "metrics": {},
      "score": 6.8
    },
    {
      "id": "CVE-2019-0002",
      "published": "2019-01-15T21:29:00.000",
      "lastModified": "2019-10-09T23:38:34.817",
      "references": []
    }
  ]
}`

func TestFeed_Canonical(t *testing.T) {
	r1 := decodeRecord(t, `{"id":"CVE-2019-0001","published":"2019-01-15T21:29:00.467","lastModified":"2020-09-29T17:15:12.087","descriptions":[{"lang":"en","value":"café <b> \"x\""}],"metrics":{},"score":6.8}`)
	r2 := decodeRecord(t, `{"id":"CVE-2019-0002","published":"2019-01-15T21:29:00","lastModified":"2019-10-09T23:38:34.817","references":[]}`)

	tests := []struct {
		name    string
		records []nvd.Record
	}{
		{
			name:    "sorted input",
			records: []nvd.Record{r1, r2},
		},
		{
			name:    "reversed input",
			records: []nvd.Record{r2, r1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Feed{
				Name:      YearName(2019),
				Timestamp: now,
				Records:   tt.records,
			}
			got, err := f.Canonical()
			require.NoError(t, err)
			assert.Equal(t, wantCanonical, string(got))

			// the feed itself is left untouched
			assert.Equal(t, tt.records[0].ID, f.Records[0].ID)
		})
	}
}

func TestFeed_Canonical_Deterministic(t *testing.T) {
	db := testDatabase()
	f := Select(db, All)

	first, err := f.Canonical()
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		// map iteration order differs between selections
		got, err := Select(db, All).Canonical()
		require.NoError(t, err)
		assert.True(t, bytes.Equal(first, got))
	}
}

func TestFeed_Canonical_Empty(t *testing.T) {
	f := Feed{Name: Recent, Timestamp: now}
	got, err := f.Canonical()
	require.NoError(t, err)

	want := `{
  "timestamp": "2024-01-10T00:00:00.000000+00:00",
  "cve_count": 0,
  "feed_name": "CVE-recent",
  "source": "fkie-cad/nvd-json-data-feeds",
  "cve_items": []
}`
	assert.Equal(t, want, string(got))
}

func TestWriteString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "ascii", in: "Junos OS /usr/bin", want: `"Junos OS /usr/bin"`},
		{name: "escapes", in: "a\"b\\c\nd\re\tf\bg\fh", want: `"a\"b\\c\nd\re\tf\bg\fh"`},
		{name: "control characters", in: "\x00\x01\x1f", want: `"\u0000\u0001\u001f"`},
		{name: "delete", in: "\x7f", want: `"\u007f"`},
		{name: "latin", in: "Ünïcödé", want: `"\u00dcn\u00efc\u00f6d\u00e9"`},
		{name: "line separator", in: "\u2028", want: `"\u2028"`},
		{name: "astral plane", in: "\U0001F600", want: `"\ud83d\ude00"`},
		{name: "html", in: "<script>&</script>", want: `"<script>&</script>"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			writeString(&buf, tt.in)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestReindent(t *testing.T) {
	got, err := reindent([]byte(`{"a":[1,2.50,1e3,true,false,null],"b":{"c":{}},"d":[[]]}`))
	require.NoError(t, err)

	want := `{
  "a": [
    1,
    2.50,
    1e3,
    true,
    false,
    null
  ],
  "b": {
    "c": {}
  },
  "d": [
    []
  ]
}`
	assert.Equal(t, want, string(got))

	_, err = reindent([]byte(`{} {}`))
	assert.Error(t, err)
}
