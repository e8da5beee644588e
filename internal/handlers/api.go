package handlers

import (
	"context"

	"realtime-backend/internal/realtime"
	"realtime-backend/internal/services"

	"github.com/rs/zerolog"
)

// API serves the request/response surface. Successful mutations are followed
// by a broadcast to the affected users.
type API struct {
	chats  *services.ChatService
	conns  *services.ConnectionService
	router *realtime.Router
	checks []check
	log    zerolog.Logger
}

type check struct {
	name string
	fn   func(context.Context) error
}

func NewAPI(chats *services.ChatService, conns *services.ConnectionService, router *realtime.Router, log zerolog.Logger) *API {
	return &API{
		chats:  chats,
		conns:  conns,
		router: router,
		log:    log.With().Str("component", "api").Logger(),
	}
}

// WithCheck adds a dependency probe reported by /health. A failing probe turns
// the response into 503.
func (a *API) WithCheck(name string, fn func(context.Context) error) *API {
	a.checks = append(a.checks, check{name: name, fn: fn})
	return a
}
