package domain

import "errors"

var (
	ErrConnClosed    = errors.New("connection closed")
	ErrPeerNotFound  = errors.New("peer not found")
	ErrMissingPeerID = errors.New("peerId is required")
	ErrMissingTo     = errors.New("missing to field")
)
