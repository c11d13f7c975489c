package domain

import "encoding/json"

type MessageType string

const (
	MessageOffer        MessageType = "offer"
	MessageAnswer       MessageType = "answer"
	MessageICECandidate MessageType = "ice-candidate"
	MessagePlayerJoined MessageType = "player-joined"
	MessagePlayerLeft   MessageType = "player-left"
	MessageRoomClosed   MessageType = "room-closed"
	MessageGameEvent    MessageType = "game-event"
)

// SignalMessage is the envelope relayed through a seat mailbox while no
// direct channel exists. FromSeat 0 marks a system-originated broadcast.
type SignalMessage struct {
	Type     MessageType     `json:"type"`
	FromSeat Seat            `json:"from_seat"`
	ToSeat   Seat            `json:"to_seat"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

type OfferPayload struct {
	SDP string `json:"sdp"`
}

type AnswerPayload struct {
	SDP string `json:"sdp"`
}

type ICECandidatePayload struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdp_mid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdp_mline_index,omitempty"`
}

type SeatPayload struct {
	Seat Seat `json:"seat"`
}

type GameEventPayload struct {
	Seat   Seat   `json:"seat"`
	Button int    `json:"button"`
	Action string `json:"action"` // "down" or "up"
}

// NewSignalMessage marshals payload into the envelope. A nil payload
// yields an envelope with no payload field.
func NewSignalMessage(t MessageType, from, to Seat, payload interface{}) (SignalMessage, error) {
	msg := SignalMessage{Type: t, FromSeat: from, ToSeat: to}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return SignalMessage{}, err
		}
		msg.Payload = raw
	}
	return msg, nil
}
