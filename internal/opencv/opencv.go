// Package opencv provides a capture source and a display window backed by
// OpenCV through gocv. Build with -tags opencv; without it every
// constructor fails with ErrUnavailable.
package opencv

import "errors"

// ErrUnavailable is returned when the binary was built without -tags opencv
var ErrUnavailable = errors.New("opencv support not compiled in (build with -tags opencv)")
