package relationship

import "errors"

var errInvalidInclude = errors.New("invalid_include")

// ErrInvalidInclude is returned (wrapped) when an include path exceeds the
// max depth or names an unknown relationship.
var ErrInvalidInclude = errInvalidInclude

// ErrConflict signals a linkage write violating a uniqueness or one-sided
// cardinality constraint (§7 "conflict").
var ErrConflict = errors.New("conflict")
