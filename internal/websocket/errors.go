package websocket

import "errors"

var (
	ErrConnClosed   = errors.New("connection is closed")
	ErrWriteTimeout = errors.New("write timed out")
)
