package domain

import "errors"

var (
	ErrMalformedMessage = errors.New("malformed message")
	ErrUnknownApp       = errors.New("unknown app")
	ErrEngineStopped    = errors.New("engine stopped")
	ErrCommandTimeout   = errors.New("command timed out")
)
