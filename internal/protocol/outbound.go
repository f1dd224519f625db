package protocol

import (
	"encoding/json"

	"github.com/DoyleJ11/codeshare-backend/internal/executor"
)

// Outbound is an event sent to clients.
type Outbound interface {
	Event() string
	isOutbound()
}

// Severity tags a toast for display only.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

type Error struct {
	Message string `json:"message"`
}

// InitState is sent only to a session that just joined.
type InitState struct {
	Code     string   `json:"code"`
	Users    []string `json:"users"`
	LockedBy *string  `json:"lockedBy"`
	Output   string   `json:"output"`
}

// UserJoined carries the member list after any join or leave.
type UserJoined struct {
	Users []string `json:"users"`
}

type Toast struct {
	Type    Severity `json:"type"`
	Message string   `json:"message"`
}

type TypingLocked struct {
	User     *string `json:"user"`
	IsLocked bool    `json:"isLocked"`
}

type CodeUpdate struct {
	Code string `json:"code"`
}

type UserTyping struct {
	UserName string `json:"userName"`
}

type LanguageUpdate struct {
	Language string `json:"language"`
}

type CodeResponse struct {
	Result executor.Result `json:"result"`
}

type CodeError struct {
	Message string `json:"message"`
}

type ChatBroadcast struct {
	UserName string `json:"userName"`
	Message  string `json:"message"`
	Time     string `json:"time"`
}

type ChatCleared struct{}

func (Error) Event() string          { return "error" }
func (InitState) Event() string      { return "initState" }
func (UserJoined) Event() string     { return "userJoined" }
func (Toast) Event() string          { return "toastMessage" }
func (TypingLocked) Event() string   { return "typingLocked" }
func (CodeUpdate) Event() string     { return "codeUpdate" }
func (UserTyping) Event() string     { return "userTyping" }
func (LanguageUpdate) Event() string { return "languageUpdate" }
func (CodeResponse) Event() string   { return "codeResponse" }
func (CodeError) Event() string      { return "codeError" }
func (ChatBroadcast) Event() string  { return EventChatMessage }
func (ChatCleared) Event() string    { return EventClearChat }

func (Error) isOutbound()          {}
func (InitState) isOutbound()      {}
func (UserJoined) isOutbound()     {}
func (Toast) isOutbound()          {}
func (TypingLocked) isOutbound()   {}
func (CodeUpdate) isOutbound()     {}
func (UserTyping) isOutbound()     {}
func (LanguageUpdate) isOutbound() {}
func (CodeResponse) isOutbound()   {}
func (CodeError) isOutbound()      {}
func (ChatBroadcast) isOutbound()  {}
func (ChatCleared) isOutbound()    {}

func Success(msg string) Toast { return Toast{Type: SeveritySuccess, Message: msg} }
func Info(msg string) Toast    { return Toast{Type: SeverityInfo, Message: msg} }
func Warning(msg string) Toast { return Toast{Type: SeverityWarning, Message: msg} }
func Failure(msg string) Toast { return Toast{Type: SeverityError, Message: msg} }

// Unlocked is the typingLocked event for a free lock.
func Unlocked() TypingLocked { return TypingLocked{} }

// LockedBy is the typingLocked event for a lock held by user.
func LockedBy(user string) TypingLocked {
	return TypingLocked{User: &user, IsLocked: true}
}

// Encode wraps ev in its envelope.
func Encode(ev Outbound) ([]byte, error) {
	return json.Marshal(struct {
		Type string   `json:"type"`
		Data Outbound `json:"data"`
	}{Type: ev.Event(), Data: ev})
}
