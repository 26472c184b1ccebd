package api

import (
	"github.com/SherClockHolmes/webpush-go"

	"clinic-session-backend/internal/notify"
	"clinic-session-backend/internal/session"
	"clinic-session-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store    store.Store
	sessions *session.Manager
	hub      *notify.Hub
	webpush  *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, sessions *session.Manager, hub *notify.Hub, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:    s,
		sessions: sessions,
		hub:      hub,
		webpush:  webpushOptions,
	}
}
