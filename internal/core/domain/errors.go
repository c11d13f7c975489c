package domain

import "errors"

var (
	ErrInvalidCode   = errors.New("malformed room code")
	ErrRoomNotFound  = errors.New("room not found")
	ErrRoomExists    = errors.New("room already exists")
	ErrRoomFull      = errors.New("room is full")
	ErrSeatConflict  = errors.New("seat held by another peer")
	ErrTimeout       = errors.New("signaling request timed out")
	ErrTransportLost = errors.New("signaling transport lost")
	ErrDisconnected  = errors.New("disconnected after exhausting reconnect attempts")
)
