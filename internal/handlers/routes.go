package handlers

import (
	"context"

	"realtime-backend/internal/realtime"
	"realtime-backend/internal/services"

	"github.com/gofiber/fiber/v2"
)

// Register mounts the REST and websocket routes on app.
func Register(ctx context.Context, app *fiber.App, api *API, sessions *SessionHandler, verifier services.IdentityVerifier) {
	app.Get("/health", api.Health)

	protected := app.Group("/api", AuthMiddleware(verifier))

	chats := protected.Group("/chats")
	chats.Post("/message", api.SendMessage)
	chats.Get("/", api.ListChats)
	chats.Post("/with/:user_id", api.ChatWith)
	chats.Delete("/messages/:message_id", api.DeleteMessage)
	chats.Get("/:id", api.GetChat)
	chats.Get("/:id/messages", api.ListMessages)
	chats.Post("/:id/mark-as-read", api.MarkRead)
	chats.Delete("/:id", api.DeleteChat)

	conns := protected.Group("/connections")
	conns.Post("/send", api.SendConnectionRequest)
	conns.Get("/accepted", api.ListAccepted)
	conns.Get("/pending/incoming", api.ListPendingIncoming)
	conns.Get("/pending/outgoing", api.ListPendingOutgoing)
	conns.Get("/status/:user_id", api.ConnectionStatus)
	conns.Get("/:user_id/mutual", api.MutualConnections)
	conns.Post("/:id/accept", api.AcceptConnection)
	conns.Post("/:id/reject", api.RejectConnection)
	conns.Delete("/:id", api.DeleteConnection)

	protected.Get("/online", api.Online)

	ws := app.Group("/ws", WSUpgradeMiddleware)
	upgrade := sessions.WebSocketHandler(ctx)
	ws.Get("/messages/:conversation_id", ChannelMiddleware(realtime.KindMessages), upgrade)
	ws.Get("/connections", ChannelMiddleware(realtime.KindConnections), upgrade)
	ws.Get("/notifications", ChannelMiddleware(realtime.KindNotifications), upgrade)
	ws.Get("/feed", ChannelMiddleware(realtime.KindFeed), upgrade)
	ws.Get("/online", ChannelMiddleware(realtime.KindOnline), upgrade)
}
