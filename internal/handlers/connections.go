package handlers

import (
	"context"
	"time"

	"realtime-backend/internal/models"
	"realtime-backend/internal/realtime"

	"github.com/gofiber/fiber/v2"
)

func (a *API) SendConnectionRequest(c *fiber.Ctx) error {
	var req models.ConnectionCreate
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if req.ReceiverID == 0 {
		return badRequest(c, "receiverId required")
	}

	ctx := c.UserContext()
	created, err := a.conns.SendRequest(ctx, currentUser(c), req.ReceiverID)
	if err != nil {
		return writeError(c, err)
	}
	a.router.ToUser(realtime.Connections, created.ReceiverID, models.ConnectionEvent{
		Type:      models.EventConnectionRequest,
		RequestID: created.ID,
		UserID:    created.SenderID,
		FullName:  a.conns.DisplayName(ctx, created.SenderID),
		Status:    created.Status,
		Timestamp: models.Timestamp(created.CreatedAt),
	})
	return c.Status(fiber.StatusCreated).JSON(a.conns.Describe(ctx, *created)[0])
}

func (a *API) AcceptConnection(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return badRequest(c, "invalid request id")
	}
	ctx := c.UserContext()
	req, err := a.conns.AcceptRequest(ctx, id, currentUser(c))
	if err != nil {
		return writeError(c, err)
	}
	at := time.Now().UTC()
	if req.AcceptedAt != nil {
		at = *req.AcceptedAt
	}
	a.notifyBoth(ctx, models.EventConnectionAccepted, req, at)
	return c.JSON(a.conns.Describe(ctx, *req)[0])
}

// RejectConnection declines or cancels a pending request.
func (a *API) RejectConnection(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return badRequest(c, "invalid request id")
	}
	ctx := c.UserContext()
	req, err := a.conns.RejectRequest(ctx, id, currentUser(c))
	if err != nil {
		return writeError(c, err)
	}
	a.notifyBoth(ctx, models.EventConnectionRejected, req, time.Now().UTC())
	return c.JSON(a.conns.Describe(ctx, *req)[0])
}

func (a *API) DeleteConnection(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return badRequest(c, "invalid request id")
	}
	ctx := c.UserContext()
	req, err := a.conns.DeleteRequest(ctx, id, currentUser(c))
	if err != nil {
		return writeError(c, err)
	}
	a.notifyBoth(ctx, models.EventConnectionRemoved, req, time.Now().UTC())
	return c.SendStatus(fiber.StatusNoContent)
}

func (a *API) ListAccepted(c *fiber.Ctx) error {
	ctx := c.UserContext()
	list, err := a.conns.ListAccepted(ctx, currentUser(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(a.conns.Describe(ctx, list...))
}

func (a *API) ListPendingIncoming(c *fiber.Ctx) error {
	ctx := c.UserContext()
	list, err := a.conns.ListPendingIncoming(ctx, currentUser(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(a.conns.Describe(ctx, list...))
}

func (a *API) ListPendingOutgoing(c *fiber.Ctx) error {
	ctx := c.UserContext()
	list, err := a.conns.ListPendingOutgoing(ctx, currentUser(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(a.conns.Describe(ctx, list...))
}

func (a *API) MutualConnections(c *fiber.Ctx) error {
	other, err := c.ParamsInt("user_id")
	if err != nil || other <= 0 {
		return badRequest(c, "invalid user id")
	}
	ctx := c.UserContext()
	list, err := a.conns.MutualConnections(ctx, currentUser(c), other)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(a.conns.Describe(ctx, list...))
}

func (a *API) ConnectionStatus(c *fiber.Ctx) error {
	other, err := c.ParamsInt("user_id")
	if err != nil || other <= 0 {
		return badRequest(c, "invalid user id")
	}
	ok, err := a.conns.AreConnected(c.UserContext(), currentUser(c), other)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"userId": other, "connected": ok})
}

// notifyBoth tells each side of req about the change, naming the other side.
func (a *API) notifyBoth(ctx context.Context, eventType string, req *models.ConnectionRequest, at time.Time) {
	for _, uid := range []int{req.SenderID, req.ReceiverID} {
		peer := req.Peer(uid)
		a.router.ToUser(realtime.Connections, uid, models.ConnectionEvent{
			Type:      eventType,
			RequestID: req.ID,
			UserID:    peer,
			FullName:  a.conns.DisplayName(ctx, peer),
			Status:    req.Status,
			Timestamp: models.Timestamp(at),
		})
	}
}
