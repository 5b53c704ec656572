package feed

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadata_Write(t *testing.T) {
	m := Metadata{
		LastModified: time.Date(2024, 1, 9, 23, 15, 1, 123456789, time.UTC),
		Size:         1234,
		XZSize:       56,
		SHA256:       "a3f1",
	}
	var buf bytes.Buffer
	require.NoError(t, m.Write(&buf))
	assert.Equal(t, "lastModifiedDate:2024-01-09T23:15:01.123\nsize:1234\nxzSize:56\nsha256:a3f1\n", buf.String())

	m.LastModified = m.LastModified.In(time.FixedZone("CET", 3600))
	assert.Error(t, m.Write(&bytes.Buffer{}))
}

func TestReadMetadata(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Metadata
		wantErr string
	}{
		{
			name: "happy path",
			in:   "lastModifiedDate:2024-01-09T23:15:01.123\nsize:1234\nxzSize:56\nsha256:a3f1\n",
			want: Metadata{
				LastModified: time.Date(2024, 1, 9, 23, 15, 1, 123000000, time.UTC),
				Size:         1234,
				XZSize:       56,
				SHA256:       "a3f1",
			},
		},
		{
			name: "no trailing newline",
			in:   "lastModifiedDate:0001-01-01T00:00:00.000\nsize:2\nxzSize:60\nsha256:ff",
			want: Metadata{Size: 2, XZSize: 60, SHA256: "ff"},
		},
		{
			name:    "wrong order",
			in:      "size:1234\nlastModifiedDate:2024-01-09T23:15:01.123\nxzSize:56\nsha256:a3f1\n",
			wantErr: "line 1: expected lastModifiedDate",
		},
		{
			name:    "missing line",
			in:      "lastModifiedDate:2024-01-09T23:15:01.123\nsize:1234\nxzSize:56\n",
			wantErr: "sha256 is missing",
		},
		{
			name:    "extra line",
			in:      "lastModifiedDate:2024-01-09T23:15:01.123\nsize:1234\nxzSize:56\nsha256:a3f1\nfoo:bar\n",
			wantErr: "unexpected line 5",
		},
		{
			name:    "invalid size",
			in:      "lastModifiedDate:2024-01-09T23:15:01.123\nsize:12k\nxzSize:56\nsha256:a3f1\n",
			wantErr: "invalid size",
		},
		{
			name:    "invalid date",
			in:      "lastModifiedDate:yesterday\nsize:1234\nxzSize:56\nsha256:a3f1\n",
			wantErr: "invalid lastModifiedDate",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadMetadata(strings.NewReader(tt.in))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
