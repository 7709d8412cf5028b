package transfers

import "errors"

var (
	ErrProbeRejected = errors.New("probe rejected")
	ErrReaderClosed  = errors.New("reader closed")
)
