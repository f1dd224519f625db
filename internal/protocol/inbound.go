package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrMalformed    = errors.New("malformed message")
	ErrUnknownEvent = errors.New("unknown event")
	ErrMissingField = errors.New("missing required field")
)

const (
	EventJoin           = "join"
	EventLockTyping     = "lockTyping"
	EventCodeChange     = "codeChange"
	EventLeaveRoom      = "leaveRoom"
	EventTyping         = "typing"
	EventLanguageChange = "languageChange"
	EventCompileCode    = "compileCode"
	EventChatMessage    = "chatMessage"
	EventClearChat      = "clearChat"
)

// Inbound is an event sent by a client.
type Inbound interface {
	Event() string
	isInbound()
}

type Join struct {
	RoomID   string `json:"roomId" validate:"required"`
	UserName string `json:"userName" validate:"required"`
}

// LockTyping asks for (IsLocked true) or gives up (false) the typing lock.
// IsLocked is a pointer so that an absent field can be told apart from false.
type LockTyping struct {
	IsLocked *bool `json:"isLocked" validate:"required"`
}

type CodeChange struct {
	Code string `json:"code"`
}

type LeaveRoom struct{}

type Typing struct{}

type LanguageChange struct {
	Language string `json:"language" validate:"required"`
}

type CompileCode struct {
	Language  string `json:"language" validate:"required"`
	Version   string `json:"version" validate:"required"`
	UserInput string `json:"userInput"`
}

// ChatMessage addresses a room by id and does not need a joined session.
type ChatMessage struct {
	RoomID   string `json:"roomId" validate:"required"`
	Message  string `json:"message" validate:"required"`
	UserName string `json:"userName" validate:"required"`
}

type ClearChat struct {
	RoomID string `json:"roomId" validate:"required"`
}

func (Join) Event() string           { return EventJoin }
func (LockTyping) Event() string     { return EventLockTyping }
func (CodeChange) Event() string     { return EventCodeChange }
func (LeaveRoom) Event() string      { return EventLeaveRoom }
func (Typing) Event() string         { return EventTyping }
func (LanguageChange) Event() string { return EventLanguageChange }
func (CompileCode) Event() string    { return EventCompileCode }
func (ChatMessage) Event() string    { return EventChatMessage }
func (ClearChat) Event() string      { return EventClearChat }

func (Join) isInbound()           {}
func (LockTyping) isInbound()     {}
func (CodeChange) isInbound()     {}
func (LeaveRoom) isInbound()      {}
func (Typing) isInbound()         {}
func (LanguageChange) isInbound() {}
func (CompileCode) isInbound()    {}
func (ChatMessage) isInbound()    {}
func (ClearChat) isInbound()      {}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

var decoders = map[string]func(json.RawMessage) (Inbound, error){
	EventJoin:           decodeAs[Join],
	EventLockTyping:     decodeAs[LockTyping],
	EventCodeChange:     decodeAs[CodeChange],
	EventLeaveRoom:      decodeAs[LeaveRoom],
	EventTyping:         decodeAs[Typing],
	EventLanguageChange: decodeAs[LanguageChange],
	EventCompileCode:    decodeAs[CompileCode],
	EventChatMessage:    decodeAs[ChatMessage],
	EventClearChat:      decodeAs[ClearChat],
}

// Decode parses one frame. It does not check mandatory fields; see Validate.
func Decode(frame []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	decode, ok := decoders[env.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Type)
	}

	ev, err := decode(env.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Type, err)
	}
	return ev, nil
}

func decodeAs[T Inbound](raw json.RawMessage) (Inbound, error) {
	var v T
	if len(raw) == 0 || string(raw) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their wire names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the mandatory fields of ev.
func Validate(ev Inbound) error {
	err := validate.Struct(ev)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return fmt.Errorf("%w: %s: %s", ErrMissingField, ev.Event(), strings.Join(fields, ", "))
}
