package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"questline.gg/internal/protocol"
	"questline.gg/internal/track"
)

type Config struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	SessionQueue int
}

type Server struct {
	tracker *track.Tracker
	cfg     Config
	log     *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(t *track.Tracker, cfg Config, logger *log.Logger) *Server {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 60 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.SessionQueue <= 0 {
		cfg.SessionQueue = 64
	}
	return &Server{
		tracker: t,
		cfg:     cfg,
		log:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sessionID, out := s.handshake(conn)
		if sessionID == "" {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine: drains the tracker's pushes for this session.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop: every frame is handed to the tracker; the tracker's
		// goroutine is what serializes per-player mutation.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			s.tracker.Inbox() <- track.Envelope{SessionID: sessionID, Raw: msg}
		}

		// Cleanup; the tracker flushes the store on leave.
		s.tracker.Leave() <- sessionID
	}
}

func (s *Server) handshake(conn *websocket.Conn) (sessionID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		s.refuseHandshake(conn, protocol.ErrProtoVersion, "unsupported protocol version")
		return "", nil
	}
	playerID := strings.TrimSpace(hello.PlayerID)
	if playerID == "" {
		s.refuseHandshake(conn, protocol.ErrProtoBadRequest, "missing player_id")
		return "", nil
	}

	out = make(chan []byte, s.cfg.SessionQueue)
	resp := make(chan track.JoinResponse, 1)
	s.tracker.Join() <- track.JoinRequest{
		PlayerID:   playerID,
		PlayerName: hello.PlayerName,
		Out:        out,
		Resp:       resp,
	}
	jr := <-resp

	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if err := conn.WriteJSON(jr.Welcome); err != nil {
		s.tracker.Leave() <- jr.SessionID
		return "", nil
	}
	return jr.SessionID, out
}

func (s *Server) refuseHandshake(conn *websocket.Conn, code, msg string) {
	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	_ = conn.WriteJSON(protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          protocol.TypeHello,
		Accepted:        false,
		Code:            code,
		Message:         msg,
	})
}
