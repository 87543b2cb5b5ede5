package inventory

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// naturalKeyWidth is the zero padded width of the numeric suffix. Suffixes
// with more significant digits than this keep the name verbatim.
const naturalKeyWidth = 10

var prefixNumber = regexp.MustCompile(`^(\D*)(\d+)$`)

// NaturalKey returns a key that orders "item2" before "item10". Only names
// made of a non-digit prefix followed by one trailing digit run get a padded
// key; every other name is its own key.
func NaturalKey(name string) string {
	m := prefixNumber.FindStringSubmatch(name)
	if m == nil {
		return name
	}

	digits := strings.TrimLeft(m[2], "0")
	if len(digits) > naturalKeyWidth {
		return name
	}
	n, err := strconv.ParseUint("0"+digits, 10, 64)
	if err != nil {
		return name
	}
	return fmt.Sprintf("%s%0*d", m[1], naturalKeyWidth, n)
}
