package server

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// handleWebSocket evaluates each text message on the connection as an
// evaluateRequest and replies with a Response carrying the request's ID.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer func() { _ = conn.Close() }()
	conn.SetReadLimit(maxBody)

	session := uuid.New().String()
	logger := s.logger.With().Str("session", session).Logger()
	logger.Debug().Str("remote", r.RemoteAddr).Msg("websocket connection established")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug().Err(err).Msg("websocket read error")
			}
			return
		}

		var req evaluateRequest
		if err := json.Unmarshal(data, &req); err != nil {
			logger.Warn().Err(err).Msg("invalid message")
			if err := conn.WriteJSON(wsError{Error: "invalid message: " + err.Error()}); err != nil {
				return
			}
			continue
		}
		if req.ID == "" {
			req.ID = uuid.New().String()
		}

		res := s.evaluate(r.Context(), req.Expression)
		reply := wsReply{ID: req.ID, Response: NewResponse(req.Expression, res)}
		if err := conn.WriteJSON(reply); err != nil {
			logger.Debug().Err(err).Msg("websocket write error")
			return
		}
	}
}

type wsReply struct {
	ID string `json:"id"`
	Response
}

type wsError struct {
	Error string `json:"error"`
}
