package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf16"

	"golang.org/x/exp/slices"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/nvd-release-builder/nvd"
)

const (
	// Source is the attribution written into every feed.
	Source = "fkie-cad/nvd-json-data-feeds"

	// timestampFormat is used for the feed timestamp only. The record dates are
	// timezone-naive and rendered with nvd.TimeFormat instead.
	timestampFormat = "2006-01-02T15:04:05.000000+00:00"

	indent = "  "
)

type payload struct {
	Timestamp string       `json:"timestamp"`
	CVECount  int          `json:"cve_count"`
	FeedName  string       `json:"feed_name"`
	Source    string       `json:"source"`
	CVEItems  []nvd.Record `json:"cve_items"`
}

// Canonical renders the feed deterministically: the records are sorted by
// CVE-ID and the output is indented by two spaces with every non-ASCII
// character escaped, the same bytes for the same set of records.
func (f Feed) Canonical() ([]byte, error) {
	records := make([]nvd.Record, len(f.Records))
	copy(records, f.Records)
	slices.SortFunc(records, func(a, b nvd.Record) int {
		return strings.Compare(a.ID, b.ID)
	})

	b, err := json.Marshal(payload{
		Timestamp: f.Timestamp.UTC().Format(timestampFormat),
		CVECount:  len(records),
		FeedName:  f.FileName(),
		Source:    Source,
		CVEItems:  records,
	})
	if err != nil {
		return nil, xerrors.Errorf("failed to marshal %s: %w", f.FileName(), err)
	}

	out, err := reindent(b)
	if err != nil {
		return nil, xerrors.Errorf("failed to indent %s: %w", f.FileName(), err)
	}
	return out, nil
}

// reindent re-encodes a JSON document token by token. Object keys keep their
// order and numbers keep their literal form.
func reindent(b []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var buf bytes.Buffer
	if err := writeValue(&buf, dec, 0); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err == nil {
		return nil, xerrors.New("trailing data after JSON value")
	}
	return buf.Bytes(), nil
}

func writeValue(buf *bytes.Buffer, dec *json.Decoder, depth int) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}

	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			return writeContainer(buf, dec, depth, '{', '}', true)
		case '[':
			return writeContainer(buf, dec, depth, '[', ']', false)
		default:
			return xerrors.Errorf("unexpected delimiter %q", v)
		}
	case string:
		writeString(buf, v)
	case json.Number:
		buf.WriteString(v.String())
	case bool:
		fmt.Fprintf(buf, "%t", v)
	case nil:
		buf.WriteString("null")
	default:
		return xerrors.Errorf("unexpected token %v", tok)
	}
	return nil
}

func writeContainer(buf *bytes.Buffer, dec *json.Decoder, depth int, start, end byte, object bool) error {
	buf.WriteByte(start)
	if !dec.More() {
		// consume the closing delimiter; empty containers stay on one line
		if _, err := dec.Token(); err != nil {
			return err
		}
		buf.WriteByte(end)
		return nil
	}

	for i := 0; dec.More(); i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		newline(buf, depth+1)

		if object {
			tok, err := dec.Token()
			if err != nil {
				return err
			}
			key, ok := tok.(string)
			if !ok {
				return xerrors.Errorf("unexpected object key %v", tok)
			}
			writeString(buf, key)
			buf.WriteString(": ")
		}
		if err := writeValue(buf, dec, depth+1); err != nil {
			return err
		}
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	newline(buf, depth)
	buf.WriteByte(end)
	return nil
}

func newline(buf *bytes.Buffer, depth int) {
	buf.WriteByte('\n')
	for i := 0; i < depth; i++ {
		buf.WriteString(indent)
	}
}

// writeString quotes s using only printable ASCII.
func writeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch {
		case r == '"':
			buf.WriteString(`\"`)
		case r == '\\':
			buf.WriteString(`\\`)
		case r == '\n':
			buf.WriteString(`\n`)
		case r == '\r':
			buf.WriteString(`\r`)
		case r == '\t':
			buf.WriteString(`\t`)
		case r == '\b':
			buf.WriteString(`\b`)
		case r == '\f':
			buf.WriteString(`\f`)
		case r >= 0x20 && r < 0x7f:
			buf.WriteRune(r)
		case r > 0xffff:
			r1, r2 := utf16.EncodeRune(r)
			fmt.Fprintf(buf, `\u%04x\u%04x`, r1, r2)
		default:
			fmt.Fprintf(buf, `\u%04x`, r)
		}
	}
	buf.WriteByte('"')
}
