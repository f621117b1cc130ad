package episode

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidRange is wrapped by every parse failure
var ErrInvalidRange = errors.New("invalid episode range")

// Range is an inclusive span of episode sort numbers
type Range struct {
	From, To int
}

// Set is a selection of episode sort numbers kept as spans, so a wide
// range costs no more than a narrow one. A nil or empty Set selects every
// episode.
type Set []Range

// ParseRanges parses "1-3,4,8" into its spans. Blank input yields an
// empty Set.
func ParseRanges(s string) (Set, error) {
	set := Set{}
	s = strings.TrimSpace(s)
	if s == "" {
		return set, nil
	}

	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		lo, hi, isRange := strings.Cut(item, "-")
		if !isRange {
			n, err := parseNumber(item)
			if err != nil {
				return nil, err
			}
			set = append(set, Range{From: n, To: n})
			continue
		}

		start, err := parseNumber(lo)
		if err != nil {
			return nil, err
		}
		end, err := parseNumber(hi)
		if err != nil {
			return nil, err
		}
		if end < start {
			return nil, fmt.Errorf("%w: %q runs backwards", ErrInvalidRange, item)
		}
		set = append(set, Range{From: start, To: end})
	}
	return set, nil
}

func parseNumber(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q is not an episode number", ErrInvalidRange, s)
	}
	return n, nil
}

// Contains reports whether n is selected
func (s Set) Contains(n int) bool {
	if len(s) == 0 {
		return true
	}
	for _, r := range s {
		if n >= r.From && n <= r.To {
			return true
		}
	}
	return false
}
