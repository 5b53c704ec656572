package feed

import (
	"regexp"
	"strconv"
	"time"

	"golang.org/x/xerrors"
)

// Kind is the selection rule of a feed.
type Kind int

const (
	KindYear Kind = iota
	KindAll
	KindRecent
	KindModified
)

// FirstYear is the oldest year feed.
const FirstYear = 1999

var (
	ErrInvalidFeedName = xerrors.New("invalid feed name")

	yearPattern = regexp.MustCompile(`^[0-9]{4,}$`)
)

// Name identifies a feed: a year, "all", "recent" or "modified".
type Name struct {
	Kind Kind
	Year int // only set for KindYear
}

func YearName(year int) Name {
	return Name{Kind: KindYear, Year: year}
}

var (
	All      = Name{Kind: KindAll}
	Recent   = Name{Kind: KindRecent}
	Modified = Name{Kind: KindModified}
)

func ParseName(s string) (Name, error) {
	switch s {
	case "all":
		return All, nil
	case "recent":
		return Recent, nil
	case "modified":
		return Modified, nil
	}

	if !yearPattern.MatchString(s) {
		return Name{}, xerrors.Errorf("%q is neither a year nor one of all, recent or modified: %w", s, ErrInvalidFeedName)
	}
	year, err := strconv.Atoi(s)
	if err != nil {
		return Name{}, xerrors.Errorf("%q: %w", s, ErrInvalidFeedName)
	}
	if year < FirstYear {
		return Name{}, xerrors.Errorf("%d is before %d: %w", year, FirstYear, ErrInvalidFeedName)
	}
	return YearName(year), nil
}

func (n Name) String() string {
	switch n.Kind {
	case KindAll:
		return "all"
	case KindRecent:
		return "recent"
	case KindModified:
		return "modified"
	default:
		return strconv.Itoa(n.Year)
	}
}

// DefaultNames returns every feed of a release at timestamp: one per year
// since 1999, then all, recent and modified.
func DefaultNames(timestamp time.Time) []Name {
	var names []Name
	for year := FirstYear; year <= timestamp.Year(); year++ {
		names = append(names, YearName(year))
	}
	return append(names, All, Recent, Modified)
}
