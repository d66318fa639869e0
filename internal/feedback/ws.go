package feedback

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024 * 16,
	WriteBufferSize: 1024 * 64,
	CheckOrigin: func(r *http.Request) bool {
		return true // the gate only listens on a local address
	},
}

// WebSocket message types.
const (
	wsMsgBatch    = "batch"
	wsMsgDecision = "decision"
	wsMsgAck      = "ack"
	wsMsgError    = "error"
)

// wsMessage is the envelope for WebSocket messages in both directions.
type wsMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type wsError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// handleWebSocket pushes the batch on connect, then accepts decision messages.
// Rejected decisions are answered with an error and the socket stays open.
func (s *Session) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade", "error", err)
		return
	}
	defer conn.Close()

	if !s.track(conn) {
		s.send(conn, wsMsgError, wsError{Code: http.StatusConflict, Message: ErrClosed.Error()})
		return
	}
	defer s.untrack(conn)

	s.send(conn, wsMsgBatch, s.batch)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read", "error", err)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.send(conn, wsMsgError, wsError{Code: http.StatusBadRequest, Message: "invalid message format"})
			continue
		}

		switch msg.Type {
		case wsMsgDecision:
			var sub Submission
			if err := json.Unmarshal(msg.Data, &sub); err != nil {
				s.send(conn, wsMsgError, wsError{Code: http.StatusBadRequest, Message: "invalid decision data"})
				continue
			}
			if _, err := s.Submit(sub); err != nil {
				s.send(conn, wsMsgError, wsError{Code: submitStatus(err), Message: err.Error()})
				continue
			}
			s.send(conn, wsMsgAck, map[string]string{"status": "accepted"})
		default:
			s.send(conn, wsMsgError, wsError{Code: http.StatusBadRequest, Message: "unknown message type: " + msg.Type})
		}
	}
}

func (s *Session) send(conn *websocket.Conn, msgType string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		s.logger.Warn("ws marshal", "error", err)
		return
	}
	if err := conn.WriteJSON(wsMessage{Type: msgType, Data: raw}); err != nil {
		s.logger.Warn("ws write", "error", err)
	}
}
