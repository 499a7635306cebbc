package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harun/wapair/internal/observability"
	"github.com/harun/wapair/internal/tracing"
	"github.com/harun/wapair/pkg/lifecycle"
	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// handleConnect starts (or resumes) a session for the posted number.
func (s *Server) handleConnect(c echo.Context) error {
	req, err := bindConnect(c)
	if err != nil {
		observability.RecordConnectRequest("invalid")
		s.logger.Debug().Err(err).Msg("Rejected connect request")
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: MsgMissingNumber})
	}

	ctx := c.Request().Context()

	var result lifecycle.Result
	if req.Session != "" {
		result, err = s.sessions.Resume(ctx, req.Session, req.Number)
	} else {
		result, err = s.sessions.Start(ctx, req.Number)
	}

	if result.SessionID != "" {
		c.Response().Header().Set(SessionIDHeader, result.SessionID)
	}

	if err != nil {
		observability.RecordConnectRequest("error")
		logger := tracing.LoggerFromContext(tracing.WithSessionID(ctx, result.SessionID), s.logger)
		logger.Error().
			Err(err).
			Msg("Failed to connect bot")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: MsgConnectFailed})
	}

	if result.PairingCode != "" {
		observability.RecordConnectRequest("pairing")
		return c.JSON(http.StatusOK, PairingResponse{PairingCode: result.PairingCode})
	}

	observability.RecordConnectRequest("accepted")
	return c.JSON(http.StatusOK, MessageResponse{Message: MsgConnecting})
}

func bindConnect(c echo.Context) (ConnectRequest, error) {
	var req ConnectRequest
	if err := c.Bind(&req); err != nil {
		return req, &ValidationError{Field: "body", Message: err.Error()}
	}
	req.Number = strings.TrimSpace(req.Number)
	req.Session = strings.TrimSpace(req.Session)

	if req.Number == "" {
		return req, &ValidationError{Field: "number", Message: "required"}
	}
	return req, nil
}

func (s *Server) handleListSessions(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"sessions": s.sessions.List(),
	})
}

func (s *Server) handleGetSession(c echo.Context) error {
	info, ok := s.sessions.Get(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "session not found"})
	}
	return c.JSON(http.StatusOK, info)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"uptime":      time.Since(s.startTime).Seconds(),
		"sessions":    s.sessions.Count(),
		"subscribers": s.hub.Count(),
		"timestamp":   time.Now().UnixMilli(),
	})
}

// handleEvents upgrades to a websocket streaming session.state events.
// Inbound frames are read and discarded until the client goes away.
func (s *Server) handleEvents(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to upgrade connection")
		return nil
	}

	clientID, err := gonanoid.New()
	if err != nil {
		_ = conn.Close()
		return nil
	}

	client := newEventClient(clientID, conn, c.RealIP())
	s.hub.add(client)

	s.logger.Info().
		Str("clientId", clientID).
		Str("ip", client.IPAddress).
		Msg("Event subscriber connected")

	defer func() {
		s.hub.remove(clientID)
		_ = conn.Close()
		s.logger.Info().Str("clientId", clientID).Msg("Event subscriber disconnected")
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug().Err(err).Str("clientId", clientID).Msg("Event subscriber read failed")
			}
			return nil
		}
	}
}
