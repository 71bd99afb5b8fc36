package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/siteagent/siteagent/internal/orchestrator"
)

// socketEvent is the outbound envelope of the streaming channel.
type socketEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type commandExecutePayload struct {
	OrganizationLLMID string `json:"organizationLlmId"`
	Command           string `json:"command"`
	SessionID         string `json:"sessionId"`
}

var errInvalidSocketMessage = errors.New(
	"invalid message. Expected { type: 'command_execute', payload: { organizationLlmId, command } }")

func parseSocketMessage(data []byte) (*commandExecutePayload, error) {
	var msg struct {
		Type    string                 `json:"type"`
		Payload *commandExecutePayload `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, errInvalidSocketMessage
	}
	if msg.Type != "command_execute" || msg.Payload == nil ||
		msg.Payload.OrganizationLLMID == "" || msg.Payload.Command == "" {
		return nil, errInvalidSocketMessage
	}
	return msg.Payload, nil
}

// handleWS runs the streaming command channel. Messages on one
// connection are handled strictly in order; the previous-response
// handle lives on the connection so consecutive commands continue one
// conversation.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	var previousResponseID string

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		s.handleSocketMessage(ctx, conn, data, &previousResponseID)
	}
}

func (s *Server) handleSocketMessage(ctx context.Context, conn *websocket.Conn, data []byte, previousResponseID *string) {
	msg, err := parseSocketMessage(data)
	if err != nil {
		s.sendEvent(ctx, conn, "command_error", map[string]any{"message": err.Error()})
		return
	}

	previous := *previousResponseID
	if previous == "" && msg.SessionID != "" && s.continuity != nil {
		resumed, err := s.continuity.Get(ctx, msg.SessionID)
		if err != nil {
			log.Printf("ws: continuity lookup for session %q: %v", msg.SessionID, err)
		} else {
			previous = resumed
		}
	}

	run, err := s.resolveCommandRun(ctx, msg.OrganizationLLMID)
	if err != nil {
		s.sendEvent(ctx, conn, "command_error", map[string]any{"message": err.Error()})
		return
	}

	// A live session lets the model react to tool failures instead of
	// dying on them.
	run.loop.ContinueOnToolError = true
	run.loop.OnRound = func(ev orchestrator.RoundEvent) {
		outputs := make([]any, len(ev.Calls))
		for i, call := range ev.Calls {
			outputs[i] = call.Result
		}
		s.sendEvent(ctx, conn, "command_iteration", map[string]any{"output": outputs})
	}

	result, err := run.loop.Execute(ctx, msg.Command, previous)
	if err != nil {
		s.sendEvent(ctx, conn, "command_error", map[string]any{"message": err.Error()})
		return
	}

	*previousResponseID = result.FinalResponse.ID
	if msg.SessionID != "" && s.continuity != nil {
		if err := s.continuity.Put(ctx, msg.SessionID, result.FinalResponse.ID); err != nil {
			log.Printf("ws: continuity save for session %q: %v", msg.SessionID, err)
		}
	}

	s.sendEvent(ctx, conn, "command_final", map[string]any{"output": finalOutput(result)})
}

// finalOutput is what command_final carries: the final response's text
// when it has any, otherwise its raw output items.
func finalOutput(result *orchestrator.Result) any {
	if text := result.FinalResponse.Text(); strings.TrimSpace(text) != "" {
		return text
	}
	return result.FinalResponse.Output
}

func (s *Server) sendEvent(ctx context.Context, conn *websocket.Conn, eventType string, payload any) {
	if err := wsjson.Write(ctx, conn, socketEvent{Type: eventType, Payload: payload}); err != nil {
		log.Printf("ws: send %s: %v", eventType, err)
	}
}
