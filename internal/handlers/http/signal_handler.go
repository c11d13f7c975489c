package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"playmesh/internal/core/domain"
	"playmesh/internal/core/ports"
	"playmesh/internal/infrastructure/monitoring"
)

// SignalHandler exposes the polling signaling surface. Relay and leave
// always accept; only create/join/rejoin surface user-visible failures.
type SignalHandler struct {
	roomService ports.RoomService
	collector   *monitoring.PrometheusCollector
}

func NewSignalHandler(roomService ports.RoomService, collector *monitoring.PrometheusCollector) *SignalHandler {
	return &SignalHandler{
		roomService: roomService,
		collector:   collector,
	}
}

func (h *SignalHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.POST("/rooms", h.CreateRoom)
		api.POST("/rooms/:code/join", h.JoinRoom)
		api.POST("/rooms/:code/rejoin", h.RejoinRoom)
		api.POST("/rooms/:code/relay", h.Relay)
		api.GET("/rooms/:code/poll", h.Poll)
		api.POST("/rooms/:code/leave", h.Leave)
	}
}

func (h *SignalHandler) CreateRoom(c *gin.Context) {
	var req struct {
		RoomCode string `json:"room_code"`
	}
	// The body is optional; an empty request means "generate a code".
	if c.Request.ContentLength > 0 {
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	result, err := h.roomService.CreateRoom(c.Request.Context(), domain.RoomCode(req.RoomCode))
	if err != nil {
		h.writeError(c, err)
		return
	}

	if h.collector != nil {
		h.collector.RoomOpened()
	}
	c.JSON(http.StatusCreated, result)
}

func (h *SignalHandler) JoinRoom(c *gin.Context) {
	code := domain.RoomCode(c.Param("code"))

	result, err := h.roomService.JoinRoom(c.Request.Context(), code)
	if err != nil {
		h.writeError(c, err)
		return
	}

	if h.collector != nil {
		h.collector.PeerJoined()
	}
	c.JSON(http.StatusOK, result)
}

func (h *SignalHandler) RejoinRoom(c *gin.Context) {
	code := domain.RoomCode(c.Param("code"))

	var req struct {
		Seat      int    `json:"seat" binding:"required,min=1,max=4"`
		PeerToken string `json:"peer_token" binding:"required"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.roomService.RejoinRoom(c.Request.Context(), code, domain.Seat(req.Seat), domain.Token(req.PeerToken))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"accepted": true})
}

func (h *SignalHandler) Relay(c *gin.Context) {
	code := domain.RoomCode(c.Param("code"))

	var msg domain.SignalMessage
	if err := c.BindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Relay is best-effort and never surfaces backpressure to the sender.
	start := time.Now()
	if err := h.roomService.Relay(c.Request.Context(), code, msg); err != nil {
		h.writeError(c, err)
		return
	}

	if h.collector != nil {
		h.collector.MessageRelayed(string(msg.Type))
		h.collector.ObserveRelayLatency(time.Since(start))
	}
	c.JSON(http.StatusOK, gin.H{"accepted": true})
}

func (h *SignalHandler) Poll(c *gin.Context) {
	code := domain.RoomCode(c.Param("code"))

	seat, err := strconv.Atoi(c.Query("seat"))
	if err != nil || seat < 1 || seat > domain.MaxSeats {
		c.JSON(http.StatusBadRequest, gin.H{"error": "seat must be an integer between 1 and 4"})
		return
	}

	messages, err := h.roomService.Poll(c.Request.Context(), code, domain.Seat(seat))
	if err != nil {
		h.writeError(c, err)
		return
	}

	if messages == nil {
		messages = []domain.SignalMessage{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (h *SignalHandler) Leave(c *gin.Context) {
	code := domain.RoomCode(c.Param("code"))

	var req struct {
		Seat int `json:"seat" binding:"required,min=1,max=4"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.roomService.LeaveRoom(c.Request.Context(), code, domain.Seat(req.Seat)); err != nil {
		h.writeError(c, err)
		return
	}

	if h.collector != nil {
		// A departing host takes the whole room with it.
		if domain.Seat(req.Seat) == domain.HostSeat {
			h.collector.RoomClosed()
		} else {
			h.collector.PeerLeft()
		}
	}
	c.JSON(http.StatusOK, gin.H{"accepted": true})
}

func (h *SignalHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidCode):
		c.JSON(http.StatusBadRequest, gin.H{"error": "InvalidCode"})
	case errors.Is(err, domain.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "RoomNotFound"})
	case errors.Is(err, domain.ErrRoomExists):
		c.JSON(http.StatusConflict, gin.H{"error": "RoomExists"})
	case errors.Is(err, domain.ErrRoomFull):
		c.JSON(http.StatusConflict, gin.H{"error": "RoomFull"})
	case errors.Is(err, domain.ErrSeatConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "SeatConflict"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
