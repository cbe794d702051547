package transport

import "errors"

var (
	ErrConnectionIDTaken = errors.New("connection id already assigned")
	ErrAlreadyAssigned   = errors.New("connection already assigned")
	ErrNotConnected      = errors.New("not connected")
	ErrClientClosed      = errors.New("client closed")
	ErrServerClosed      = errors.New("server closed")
	ErrReconnectDenied   = errors.New("reconnect not allowed by policy")
)
