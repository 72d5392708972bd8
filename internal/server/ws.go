package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	wsWriteWait  = 10 * time.Second
	wsMaxMessage = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsInbound is a client frame. Frames without a type are chat messages.
type wsInbound struct {
	Type           string       `json:"type"`
	Message        string       `json:"message"`
	ConversationID string       `json:"conversation_id"`
	Context        *chatContext `json:"context"`
}

type wsFrame struct {
	Type              string `json:"type"`
	Message           string `json:"message,omitempty"`
	MessageID         string `json:"message_id,omitempty"`
	Status            string `json:"status,omitempty"`
	UserID            string `json:"user_id,omitempty"`
	ConversationID    string `json:"conversation_id,omitempty"`
	ConversationSaved *bool  `json:"conversation_saved,omitempty"`
	Intent            string `json:"intent,omitempty"`
	Connections       int64  `json:"connected_users,omitempty"`
	Timestamp         string `json:"timestamp"`
}

// handleWebSocket serves one chat connection. The connection remembers its
// conversation, so clients only send conversation_id to switch to another.
func (s *Server) handleWebSocket(c echo.Context) error {
	userID := c.Param("user_id")
	if !s.opts.Authorizer.IsAllowed(userID) {
		return c.JSON(http.StatusForbidden, errorResponse{Error: "forbidden"})
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("[server] websocket upgrade for %s: %v", userID, err)
		return nil
	}
	defer conn.Close()
	conn.SetReadLimit(wsMaxMessage)

	s.wsConns.Add(1)
	defer s.wsConns.Add(-1)
	log.Printf("[server] websocket connected: %s", userID)

	sess := &wsSession{server: s, conn: conn, userID: userID}
	if err := sess.send(wsFrame{Type: "connection_established", UserID: userID}); err != nil {
		return nil
	}
	sess.serve(c)
	log.Printf("[server] websocket closed: %s", userID)
	return nil
}

// wsSession is the per-connection state. Only its own goroutine touches it.
type wsSession struct {
	server         *Server
	conn           *websocket.Conn
	userID         string
	conversationID string
}

func (ws *wsSession) serve(c echo.Context) {
	ctx := c.Request().Context()
	for {
		_, data, err := ws.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[server] websocket read for %s: %v", ws.userID, err)
			}
			return
		}

		var in wsInbound
		if err := json.Unmarshal(data, &in); err != nil {
			if ws.send(wsFrame{Type: "error", Message: "invalid message format"}) != nil {
				return
			}
			continue
		}

		var sendErr error
		switch in.Type {
		case "ping":
			sendErr = ws.send(wsFrame{Type: "pong"})
		case "status_request":
			sendErr = ws.send(wsFrame{Type: "status_response", UserID: ws.userID, Connections: ws.server.wsConns.Load()})
		case "", "message":
			sendErr = ws.chat(ctx, in)
		default:
			sendErr = ws.send(wsFrame{Type: "error", Message: "unknown message type: " + in.Type})
		}
		if sendErr != nil {
			return
		}
	}
}

func (ws *wsSession) chat(ctx context.Context, in wsInbound) error {
	if strings.TrimSpace(in.Message) == "" {
		return ws.send(wsFrame{Type: "error", Message: validationMessage})
	}
	if in.ConversationID != "" {
		ws.conversationID = in.ConversationID
	}

	if err := ws.send(wsFrame{Type: "ack", MessageID: uuid.NewString()}); err != nil {
		return err
	}
	if err := ws.send(wsFrame{Type: "typing", Status: "start"}); err != nil {
		return err
	}

	req := chatRequest{
		UserID:         ws.userID,
		Message:        in.Message,
		ConversationID: ws.conversationID,
		Context:        in.Context,
	}.toCompanion()
	resp, err := ws.server.opts.Companion.Handle(ctx, req)

	if err := ws.send(wsFrame{Type: "typing", Status: "stop"}); err != nil {
		return err
	}
	if err != nil {
		return ws.send(wsFrame{Type: "error", Message: validationMessage})
	}

	if resp.ConversationID != "" {
		ws.conversationID = resp.ConversationID
	}
	saved := resp.Saved
	return ws.send(wsFrame{
		Type:              "message",
		Message:           resp.Reply,
		ConversationID:    resp.ConversationID,
		ConversationSaved: &saved,
		Intent:            string(resp.Intent),
	})
}

func (ws *wsSession) send(f wsFrame) error {
	f.Timestamp = time.Now().UTC().Format(time.RFC3339)
	if err := ws.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return ws.conn.WriteJSON(f)
}
