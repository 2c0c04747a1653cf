package exception

import "errors"

// Transport errors
var (
	ErrEmptyPathUDS    = errors.New("uds: empty path")
	ErrNilClientUDS    = errors.New("uds: nil client")
	ErrConnectionClose = errors.New("transport: connection closed")
	ErrFrameTooLarge   = errors.New("transport: frame exceeds limit")
	ErrFrameChecksum   = errors.New("transport: frame checksum mismatch")
	ErrFrameMagic      = errors.New("transport: invalid frame magic")
	ErrFrameVersion    = errors.New("transport: unsupported frame version")
)
