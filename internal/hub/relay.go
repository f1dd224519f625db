package hub

import (
	"context"

	"go.uber.org/zap"

	"github.com/DoyleJ11/codeshare-backend/internal/executor"
	"github.com/DoyleJ11/codeshare-backend/internal/protocol"
)

const (
	msgCompiled      = "Code compiled successfully!"
	msgCompileFailed = "Compilation failed!"
)

// compile sends the room's current document to the executor off the event
// loop. The result comes back as an executionDone message.
func (h *Hub) compile(s *Session, e protocol.CompileCode) {
	r, ok := h.requireRoom(s)
	if !ok {
		return
	}

	req := executor.Request{
		Language: e.Language,
		Version:  e.Version,
		Code:     r.Document,
		Stdin:    e.UserInput,
	}
	h.log.Info("compile requested",
		zap.String("room", r.ID),
		zap.String("user", s.user),
		zap.String("language", e.Language),
		zap.String("version", e.Version),
	)

	// Once issued, the call runs to completion even if the hub stops.
	ctx := context.WithoutCancel(h.ctx)
	go func() {
		result, err := h.exec.Execute(ctx, req)
		h.enqueue(executionDone{room: r, result: result, err: err})
	}()
}

func (h *Hub) finishExecution(msg executionDone) {
	r := msg.room
	if !h.rooms.Current(r) {
		h.log.Debug("execution finished for a closed room", zap.String("room", r.ID))
		return
	}

	if msg.err != nil {
		h.log.Warn("execution failed", zap.String("room", r.ID), zap.Error(msg.err))
		h.toRoom(r.ID, protocol.CodeError{Message: executor.Message(msg.err)})
		h.toRoom(r.ID, protocol.Failure(msgCompileFailed))
		return
	}

	r.Output = msg.result.Run.Output
	h.toRoom(r.ID, protocol.CodeResponse{Result: msg.result})
	h.toRoom(r.ID, protocol.Success(msgCompiled))
}
