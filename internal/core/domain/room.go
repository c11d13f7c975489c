package domain

import (
	"sort"
	"time"
)

type RoomCode string
type Seat int
type Token string

const (
	// BroadcastSeat is the reserved origin for system messages.
	BroadcastSeat Seat = 0
	HostSeat      Seat = 1
	MaxSeats           = 4
)

// Room is the signaling-side record of a live session. Seat 1 is always
// the host and exists for as long as the room exists.
type Room struct {
	Code       RoomCode        `json:"code"`
	HostToken  Token           `json:"host_token"`
	SeatTokens map[Seat]Token  `json:"seat_tokens"`
	CreatedAt  time.Time       `json:"created_at"`
}

func NewRoom(code RoomCode, hostToken Token) *Room {
	return &Room{
		Code:       code,
		HostToken:  hostToken,
		SeatTokens: map[Seat]Token{HostSeat: hostToken},
		CreatedAt:  time.Now(),
	}
}

// Seats returns the occupied seat numbers in ascending order.
func (r *Room) Seats() []Seat {
	seats := make([]Seat, 0, len(r.SeatTokens))
	for seat := range r.SeatTokens {
		seats = append(seats, seat)
	}
	sort.Slice(seats, func(i, j int) bool { return seats[i] < seats[j] })
	return seats
}

func (r *Room) HasSeat(seat Seat) bool {
	_, ok := r.SeatTokens[seat]
	return ok
}

// LowestFreeSeat scans guest seats 2..4 in ascending order.
func (r *Room) LowestFreeSeat() (Seat, bool) {
	for seat := Seat(2); seat <= MaxSeats; seat++ {
		if !r.HasSeat(seat) {
			return seat, true
		}
	}
	return 0, false
}

func (r *Room) Full() bool {
	_, free := r.LowestFreeSeat()
	return !free
}

// CreateResult is returned to the host after a successful room creation.
type CreateResult struct {
	Code      RoomCode `json:"room_code"`
	HostToken Token    `json:"peer_token"`
	Seat      Seat     `json:"seat"`
}

// JoinResult is returned to a guest after a successful join.
type JoinResult struct {
	PeerToken Token    `json:"peer_token"`
	Seat      Seat     `json:"seat"`
	Seats     []Seat   `json:"seats"`
}
