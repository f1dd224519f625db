package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/codeshare-backend/internal/hub"
	"github.com/DoyleJ11/codeshare-backend/internal/store"
)

// PlanReader looks up a user's plan. store.PlanStore implements it.
type PlanReader interface {
	PlanFor(ctx context.Context, userID string) (store.UserPlan, error)
}

func jsonResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

func GenerateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 6)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

// CreateRoom hands out a room id nobody is using. The room itself is only
// created by the first join.
func CreateRoom(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for attempt := 0; attempt < 8; attempt++ {
			code, err := GenerateCode()
			if err != nil {
				errorResponse(w, http.StatusInternalServerError, "failed to generate code")
				return
			}

			reply := make(chan *hub.RoomView, 1)
			if !h.Send(r.Context(), hub.GetRoom{RoomID: code, Reply: reply}) {
				errorResponse(w, http.StatusServiceUnavailable, "coordinator unavailable")
				return
			}
			view, ok := await(r.Context(), h.Done(), reply)
			if !ok {
				errorResponse(w, http.StatusServiceUnavailable, "coordinator unavailable")
				return
			}
			if view == nil {
				jsonResponse(w, http.StatusCreated, map[string]string{"roomId": code})
				return
			}
			log.Debug("room code collision, regenerating", zap.String("room", code))
		}
		errorResponse(w, http.StatusServiceUnavailable, "no free room code")
	}
}

func Stats(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reply := make(chan hub.Stats, 1)
		if !h.Send(r.Context(), hub.GetStats{Reply: reply}) {
			errorResponse(w, http.StatusServiceUnavailable, "coordinator unavailable")
			return
		}
		stats, ok := await(r.Context(), h.Done(), reply)
		if !ok {
			errorResponse(w, http.StatusServiceUnavailable, "coordinator unavailable")
			return
		}
		jsonResponse(w, http.StatusOK, stats)
	}
}

func UserPlan(plans PlanReader, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if plans == nil {
			errorResponse(w, http.StatusServiceUnavailable, "plan store not configured")
			return
		}

		userID := chi.URLParam(r, "userID")
		plan, err := plans.PlanFor(r.Context(), userID)
		switch {
		case errors.Is(err, store.ErrPlanNotFound):
			errorResponse(w, http.StatusNotFound, "user not found")
		case err != nil:
			log.Error("plan lookup failed", zap.String("user_id", userID), zap.Error(err))
			errorResponse(w, http.StatusInternalServerError, "failed to load plan")
		default:
			jsonResponse(w, http.StatusOK, plan)
		}
	}
}

func Root(now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]string{
			"message":   "Server is running successfully!",
			"status":    "online",
			"timestamp": now().UTC().Format(time.RFC3339),
		})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// await waits for the hub's reply. done is the hub's Done channel: a request
// that slipped into the inbox as the hub stopped will never be answered.
func await[T any](ctx context.Context, done <-chan struct{}, reply <-chan T) (T, bool) {
	var zero T
	select {
	case v := <-reply:
		return v, true
	case <-ctx.Done():
		return zero, false
	case <-done:
		select {
		case v := <-reply:
			return v, true
		default:
			return zero, false
		}
	}
}
