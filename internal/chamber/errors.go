package chamber

import "errors"

// ErrInvalidConfig indicates grid dimensions or field parameters that cannot
// produce a valid tiling.
var ErrInvalidConfig = errors.New("chamber: invalid configuration")
