package message

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/G-Node/wdat2-sub001/errors"
	"github.com/G-Node/wdat2-sub001/model"
)

// Action selects what the dispatcher does with a request.
type Action string

// Supported actions. Anything else is answered with a log reply.
const (
	ActionGet      Action = "get"
	ActionGetByURL Action = "get_by_url"
	ActionSet      Action = "set"
	ActionDelete   Action = "del"
	ActionSetACL   Action = "set_acl"
	ActionGetData  Action = "get_data"
	ActionUsers    Action = "users"
	ActionLog      Action = "log"
)

// EventDebug is the reserved event for log replies. Replies on it are logged
// and never published.
const EventDebug = "debug"

// Request travels from the DataAPI to the dispatcher.
//
// Param holds the action's argument as JSON: specifiers for get, a URL list
// for get_by_url, an object for set, a URL for del, nothing for users. Info
// is opaque caller data returned verbatim in the reply.
type Request struct {
	ID      string          `json:"id"`
	Event   string          `json:"event"`
	Action  Action          `json:"action"`
	Param   json.RawMessage `json:"param,omitempty"`
	Depth   int             `json:"depth,omitempty"`
	Info    json.RawMessage `json:"info,omitempty"`
	ReplyTo string          `json:"reply_to,omitempty"`
}

// NewRequest builds a request with a fresh correlation id. param and info
// are encoded to JSON; a nil info is left out.
func NewRequest(event string, action Action, param, info any) (Request, error) {
	req := Request{
		ID:     uuid.New().String(),
		Event:  event,
		Action: action,
	}

	if param != nil {
		b, err := json.Marshal(param)
		if err != nil {
			return Request{}, errors.WrapInvalid(err, "message", "NewRequest", "encode param")
		}
		req.Param = b
	}

	if info != nil {
		b, err := json.Marshal(info)
		if err != nil {
			return Request{}, errors.WrapInvalid(err, "message", "NewRequest", "encode info")
		}
		req.Info = b
	}

	return req, nil
}

// DecodeParam unmarshals the request parameter into v.
func (r Request) DecodeParam(v any) error {
	if len(r.Param) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidData, "message", "DecodeParam", "read empty param")
	}
	if err := json.Unmarshal(r.Param, v); err != nil {
		return errors.WrapInvalid(err, "message", "DecodeParam", "decode param")
	}
	return nil
}

// Reply travels from the dispatcher back to the DataAPI, which publishes it
// under Event.
type Reply struct {
	ID        string                  `json:"id"`
	Event     string                  `json:"event"`
	Action    Action                  `json:"action"`
	Info      json.RawMessage         `json:"info,omitempty"`
	Primary   []model.Object          `json:"primary"`
	Secondary map[string]model.Object `json:"secondary"`
	Error     bool                    `json:"error"`
	Message   string                  `json:"message,omitempty"`
	Data      json.RawMessage         `json:"data,omitempty"`
}

// ReplyTo starts a reply that carries req's correlation id, event, action
// and info.
func ReplyTo(req Request) Reply {
	return Reply{
		ID:        req.ID,
		Event:     req.Event,
		Action:    req.Action,
		Info:      req.Info,
		Primary:   []model.Object{},
		Secondary: map[string]model.Object{},
	}
}

// Fail marks the reply as failed with message.
func (r Reply) Fail(message string) Reply {
	r.Error = true
	r.Message = message
	r.Primary = []model.Object{}
	r.Secondary = map[string]model.Object{}
	return r
}

// HasError reports whether the reply carries an error.
func (r Reply) HasError() bool {
	return r.Error
}

// ErrorMessage returns the error message of a failed reply.
func (r Reply) ErrorMessage() string {
	return r.Message
}

// DecodeInfo unmarshals the caller data into v.
func (r Reply) DecodeInfo(v any) error {
	if len(r.Info) == 0 {
		return nil
	}
	return json.Unmarshal(r.Info, v)
}
