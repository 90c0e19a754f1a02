package enums

import (
	"fmt"
	"slices"
)

// parse returns the member of set spelled value. kind names the enum in the
// error, e.g. "order status".
func parse[T ~string](value string, set []T, kind string) (T, error) {
	if i := slices.Index(set, T(value)); i >= 0 {
		return set[i], nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, value)
}
