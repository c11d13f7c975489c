package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"playmesh/internal/core/domain"
	"playmesh/internal/core/ports"
	"playmesh/pkg/roomcode"
)

// generated-code collision retries before giving up
const maxCodeAttempts = 5

type roomService struct {
	rooms     ports.RoomRepository
	mailboxes ports.MailboxRepository
	logger    *zap.SugaredLogger
}

func NewRoomService(rooms ports.RoomRepository, mailboxes ports.MailboxRepository, logger *zap.SugaredLogger) ports.RoomService {
	return &roomService{
		rooms:     rooms,
		mailboxes: mailboxes,
		logger:    logger,
	}
}

func (s *roomService) CreateRoom(ctx context.Context, code domain.RoomCode) (*domain.CreateResult, error) {
	hostToken := roomcode.NewToken()

	if code != "" {
		if !roomcode.Valid(code) {
			return nil, domain.ErrInvalidCode
		}
		room := domain.NewRoom(code, hostToken)
		if err := s.rooms.Create(ctx, room); err != nil {
			return nil, err
		}
		s.logger.Infow("room created", "room_code", code)
		return &domain.CreateResult{Code: code, HostToken: hostToken, Seat: domain.HostSeat}, nil
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		generated := roomcode.New()
		room := domain.NewRoom(generated, hostToken)
		err := s.rooms.Create(ctx, room)
		if errors.Is(err, domain.ErrRoomExists) {
			continue
		}
		if err != nil {
			return nil, err
		}
		s.logger.Infow("room created", "room_code", generated)
		return &domain.CreateResult{Code: generated, HostToken: hostToken, Seat: domain.HostSeat}, nil
	}

	return nil, domain.ErrRoomExists
}

func (s *roomService) JoinRoom(ctx context.Context, code domain.RoomCode) (*domain.JoinResult, error) {
	room, err := s.rooms.Get(ctx, code)
	if err != nil {
		return nil, err
	}

	seat, free := room.LowestFreeSeat()
	if !free {
		return nil, domain.ErrRoomFull
	}

	token := roomcode.NewToken()
	room.SeatTokens[seat] = token
	if err := s.rooms.Update(ctx, room); err != nil {
		return nil, err
	}

	// The host learns about the join on its next poll/delivery.
	joined, err := domain.NewSignalMessage(domain.MessagePlayerJoined, seat, domain.HostSeat, domain.SeatPayload{Seat: seat})
	if err == nil {
		if err := s.mailboxes.Append(ctx, code, domain.HostSeat, joined); err != nil {
			s.logger.Warnw("failed to notify host of join", "room_code", code, "seat", seat, "error", err)
		}
	}

	s.logger.Infow("peer joined room", "room_code", code, "seat", seat)
	return &domain.JoinResult{PeerToken: token, Seat: seat, Seats: room.Seats()}, nil
}

func (s *roomService) LeaveRoom(ctx context.Context, code domain.RoomCode, seat domain.Seat) error {
	room, err := s.rooms.Get(ctx, code)
	if errors.Is(err, domain.ErrRoomNotFound) {
		// The caller may be cleaning up after a race; not an error.
		return nil
	}
	if err != nil {
		return err
	}

	if seat == domain.HostSeat {
		return s.closeRoom(ctx, room)
	}

	if !room.HasSeat(seat) {
		return nil
	}

	delete(room.SeatTokens, seat)
	if err := s.rooms.Update(ctx, room); err != nil && !errors.Is(err, domain.ErrRoomNotFound) {
		return err
	}

	left, err := domain.NewSignalMessage(domain.MessagePlayerLeft, seat, domain.HostSeat, domain.SeatPayload{Seat: seat})
	if err == nil {
		if err := s.mailboxes.Append(ctx, code, domain.HostSeat, left); err != nil {
			s.logger.Warnw("failed to notify host of leave", "room_code", code, "seat", seat, "error", err)
		}
	}

	if err := s.mailboxes.Purge(ctx, code, seat); err != nil {
		s.logger.Warnw("failed to purge mailbox", "room_code", code, "seat", seat, "error", err)
	}

	s.logger.Infow("peer left room", "room_code", code, "seat", seat)
	return nil
}

// closeRoom deletes the record and tells every guest the session is over.
func (s *roomService) closeRoom(ctx context.Context, room *domain.Room) error {
	for _, seat := range room.Seats() {
		if seat == domain.HostSeat {
			continue
		}
		closed, err := domain.NewSignalMessage(domain.MessageRoomClosed, domain.BroadcastSeat, seat, nil)
		if err != nil {
			continue
		}
		if err := s.mailboxes.Append(ctx, room.Code, seat, closed); err != nil {
			s.logger.Warnw("failed to notify guest of close", "room_code", room.Code, "seat", seat, "error", err)
		}
	}

	if err := s.mailboxes.Purge(ctx, room.Code, domain.HostSeat); err != nil {
		s.logger.Warnw("failed to purge host mailbox", "room_code", room.Code, "error", err)
	}

	if err := s.rooms.Delete(ctx, room.Code); err != nil {
		return err
	}

	s.logger.Infow("room closed", "room_code", room.Code)
	return nil
}

func (s *roomService) RejoinRoom(ctx context.Context, code domain.RoomCode, seat domain.Seat, token domain.Token) error {
	room, err := s.rooms.Get(ctx, code)
	if err != nil {
		return err
	}

	held, ok := room.SeatTokens[seat]
	if !ok {
		return domain.ErrRoomNotFound
	}
	if held != token {
		return domain.ErrSeatConflict
	}

	if err := s.rooms.Touch(ctx, code); err != nil && !errors.Is(err, domain.ErrRoomNotFound) {
		return err
	}

	s.logger.Infow("peer rejoined room", "room_code", code, "seat", seat)
	return nil
}

func (s *roomService) Relay(ctx context.Context, code domain.RoomCode, msg domain.SignalMessage) error {
	return s.mailboxes.Append(ctx, code, msg.ToSeat, msg)
}

func (s *roomService) Poll(ctx context.Context, code domain.RoomCode, seat domain.Seat) ([]domain.SignalMessage, error) {
	messages, err := s.mailboxes.Drain(ctx, code, seat)
	if err != nil {
		return nil, err
	}

	// Polling counts as room activity.
	if err := s.rooms.Touch(ctx, code); err != nil && !errors.Is(err, domain.ErrRoomNotFound) {
		s.logger.Debugw("failed to refresh room TTL on poll", "room_code", code, "error", err)
	}

	return messages, nil
}
