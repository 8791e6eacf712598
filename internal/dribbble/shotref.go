package dribbble

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// ErrBadShotReference is returned for references without a /shots/<digits> segment.
var ErrBadShotReference = errors.New("bad_url")

var shotPathPattern = regexp.MustCompile(`/shots/([0-9]+)`)

// ParseShotReference extracts the numeric shot id from a reference of the form
// `.../shots/<one-or-more-digits>[anything]`, e.g. https://dribbble.com/shots/123-Landing.
func ParseShotReference(ref string) (int64, error) {
	match := shotPathPattern.FindStringSubmatch(ref)
	if match == nil {
		return 0, fmt.Errorf("%w: %q has no /shots/<id> segment", ErrBadShotReference, ref)
	}
	id, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: %q has an invalid shot id", ErrBadShotReference, ref)
	}
	return id, nil
}
