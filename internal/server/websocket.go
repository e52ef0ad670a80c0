package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"

	"github.com/michaelbrown/decipher/internal/trace"
)

func (s *Server) upgrader() *websocket.Upgrader {
	allowed := s.cfg.Server.AllowedOrigins
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
		},
	}
}

// wsIncoming is a message from the client.
type wsIncoming struct {
	Type string `json:"type"`
	runRequest
}

// wsOutgoing is a message to the client.
type wsOutgoing struct {
	Type    string       `json:"type"`
	Content string       `json:"content,omitempty"`
	Step    *trace.Step  `json:"step,omitempty"`
	Trace   *trace.Trace `json:"trace,omitempty"`
	State   string       `json:"state,omitempty"`
}

// handleVisualizeStream runs programs sent over a WebSocket and streams
// each step as the worker reports it, then the final trace. Closing the
// socket cancels the run in flight.
func (s *Server) handleVisualizeStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	incoming := make(chan wsIncoming)
	go func() {
		defer close(incoming)
		defer cancel()
		for {
			var msg wsIncoming
			if err := conn.ReadJSON(&msg); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Printf("websocket read error: %v", err)
				}
				return
			}
			select {
			case incoming <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	for msg := range incoming {
		if msg.Type != "run" || msg.Code == "" {
			wsWriteJSON(conn, wsOutgoing{Type: "error", Content: "invalid message"})
			continue
		}
		s.streamRun(ctx, conn, msg.runRequest)
	}
}

func (s *Server) streamRun(ctx context.Context, conn *websocket.Conn, req runRequest) {
	res, _, err := s.execute(ctx, req, func(st trace.Step) {
		wsWriteJSON(conn, wsOutgoing{Type: "step", Step: &st})
	})
	if err != nil {
		if errors.Is(err, ErrBusy) {
			wsWriteJSON(conn, wsOutgoing{Type: "error", Content: "server busy, try again"})
		} else {
			wsWriteJSON(conn, wsOutgoing{Type: "error", Content: err.Error()})
		}
		return
	}
	if ctx.Err() != nil {
		return
	}
	wsWriteJSON(conn, wsOutgoing{Type: "done", Trace: res.Trace, State: res.State.String()})
}

func wsWriteJSON(conn *websocket.Conn, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("websocket marshal error: %v", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("websocket write error: %v", err)
	}
}
