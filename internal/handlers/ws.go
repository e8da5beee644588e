package handlers

import (
	"context"
	"strings"

	"realtime-backend/internal/apperr"
	"realtime-backend/internal/realtime"
	"realtime-backend/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const (
	localUserID     = "user_id"
	localChannel    = "channel"
	localCredential = "credential"
)

// WebSocketHandler upgrades the request and hands the connection to the
// session handler. ctx is the server's lifetime; cancelling it ends every session.
func (h *SessionHandler) WebSocketHandler(ctx context.Context) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		ch, ok := c.Locals(localChannel).(realtime.Channel)
		if !ok {
			_ = c.Close()
			return
		}
		credential, _ := c.Locals(localCredential).(string)
		h.Serve(ctx, c, ch, credential)
	})
}

// WSUpgradeMiddleware upgrades the connection to WebSocket
func WSUpgradeMiddleware(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// ChannelMiddleware resolves the channel and the credential before the upgrade.
// Verification happens after the upgrade so a bad credential gets a close code.
func ChannelMiddleware(kind realtime.ChannelKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ch := realtime.Channel{Kind: kind}
		if kind == realtime.KindMessages {
			id, err := c.ParamsInt("conversation_id")
			if err != nil || id <= 0 {
				return badRequest(c, "invalid conversation id")
			}
			ch = realtime.Messages(id)
		}
		c.Locals(localChannel, ch)
		c.Locals(localCredential, credentialFrom(c))
		return c.Next()
	}
}

// AuthMiddleware verifies the bearer token of a REST request.
func AuthMiddleware(verifier services.IdentityVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := credentialFrom(c)
		if token == "" {
			return writeError(c, apperr.Unauthorized("missing token"))
		}
		userID, err := verifier.Verify(c.UserContext(), token)
		if err != nil {
			return writeError(c, err)
		}
		c.Locals(localUserID, userID)
		return c.Next()
	}
}

// credentialFrom reads the token from the `token` or `access_token` query
// parameter, or from an Authorization: Bearer header.
func credentialFrom(c *fiber.Ctx) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	if token := c.Query("access_token"); token != "" {
		return token
	}
	authHeader := c.Get("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return authHeader[7:]
	}
	return ""
}

func currentUser(c *fiber.Ctx) int {
	id, _ := c.Locals(localUserID).(int)
	return id
}
