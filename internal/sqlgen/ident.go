package sqlgen

import (
	"fmt"
	"regexp"

	"github.com/seqpart/partkeeper/internal/partition"
)

var validIdentifier = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// CheckIdentifier rejects any name that is not safe to interpolate into SQL
// between backticks. Everything emitted by this package passes through here.
func CheckIdentifier(name string) error {
	if !validIdentifier.MatchString(name) {
		return fmt.Errorf("%w: %q", partition.ErrInvalidIdentifier, name)
	}
	return nil
}
