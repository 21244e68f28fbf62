package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Tyrowin/chatline/internal/session"
	"github.com/go-playground/validator/v10"
)

var errInvalidFrame = errors.New("invalid frame")

var validate = validator.New()

// inboundFrame is the envelope every client frame uses.
type inboundFrame struct {
	Type    string          `json:"type" validate:"required"`
	Payload json.RawMessage `json:"payload"`
}

type identityPayload struct {
	ID     string `json:"id" validate:"required,max=128"`
	Name   string `json:"name" validate:"required,max=64"`
	Avatar string `json:"avatar" validate:"max=32"`
	Role   string `json:"role" validate:"max=32"`
}

type joinPayload struct {
	Identity identityPayload `json:"identity"`
	Room     string          `json:"room" validate:"max=64"`
}

type sendPayload struct {
	Body    string `json:"body" validate:"required,max=4000"`
	Channel string `json:"channel" validate:"max=64"`
	Kind    string `json:"kind" validate:"omitempty,oneof=text emergency"`
}

type typingPayload struct {
	Target string `json:"target" validate:"max=128"`
}

type callPayload struct {
	Target string `json:"target" validate:"required,max=128"`
}

// decodeCommand turns one raw frame from conn into an engine command.
func decodeCommand(conn session.ConnID, raw []byte) (session.Command, error) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidFrame, err)
	}
	if err := validate.Struct(frame); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidFrame, err)
	}

	switch frame.Type {
	case "join":
		var p joinPayload
		if err := decodePayload(frame.Payload, &p); err != nil {
			return nil, err
		}
		return session.Join{
			Conn: conn,
			Identity: session.Identity{
				ID:     session.IdentityID(p.Identity.ID),
				Name:   p.Identity.Name,
				Avatar: p.Identity.Avatar,
				Role:   p.Identity.Role,
			},
			Room: p.Room,
		}, nil
	case "leave":
		return session.Leave{Conn: conn}, nil
	case "send_message":
		var p sendPayload
		if err := decodePayload(frame.Payload, &p); err != nil {
			return nil, err
		}
		return session.SendMessage{
			Conn:    conn,
			Body:    p.Body,
			Channel: p.Channel,
			Kind:    session.MessageKind(p.Kind),
		}, nil
	case "typing_start":
		var p typingPayload
		if err := decodePayload(frame.Payload, &p); err != nil {
			return nil, err
		}
		return session.StartTyping{Conn: conn, Target: session.IdentityID(p.Target)}, nil
	case "typing_stop":
		return session.StopTyping{Conn: conn}, nil
	case "call_initiate":
		var p callPayload
		if err := decodePayload(frame.Payload, &p); err != nil {
			return nil, err
		}
		return session.InitiateCall{Conn: conn, Target: session.IdentityID(p.Target)}, nil
	case "call_accept":
		return session.AcceptCall{Conn: conn}, nil
	case "call_reject":
		return session.RejectCall{Conn: conn}, nil
	case "call_hangup":
		return session.HangUpCall{Conn: conn}, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", errInvalidFrame, frame.Type)
	}
}

func decodePayload(raw json.RawMessage, dst any) error {
	if len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		if err := json.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("%w: %v", errInvalidFrame, err)
		}
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", errInvalidFrame, err)
	}
	return nil
}

func frameFailure(err error) session.Failure {
	code := "invalid_frame"
	if errors.Is(err, errRateLimited) {
		code = "rate_limited"
	}
	return session.Failure{Code: code, Reason: err.Error()}
}
