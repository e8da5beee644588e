package handlers

import (
	"realtime-backend/internal/models"
	"realtime-backend/internal/realtime"

	"github.com/gofiber/fiber/v2"
)

// SendMessage sends to a user, creating the conversation on first contact.
func (a *API) SendMessage(c *fiber.Ctx) error {
	var req models.SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	if req.ReceiverID == 0 {
		return badRequest(c, "receiverId required")
	}

	msg, conv, err := a.chats.SendDirectMessage(c.UserContext(), currentUser(c), req.ReceiverID, req.Content, req.Attachment)
	if err != nil {
		return writeError(c, err)
	}
	a.router.ToUsers(realtime.Messages(conv.ID), []int{conv.User1ID, conv.User2ID}, models.NewMessageEventFrom(msg))
	return c.Status(fiber.StatusCreated).JSON(msg)
}

func (a *API) ListChats(c *fiber.Ctx) error {
	list, err := a.chats.ListConversations(c.UserContext(), currentUser(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(list)
}

func (a *API) GetChat(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return badRequest(c, "invalid chat id")
	}
	detail, err := a.chats.GetConversationDetail(c.UserContext(), id, currentUser(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(detail)
}

func (a *API) ListMessages(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return badRequest(c, "invalid chat id")
	}
	msgs, err := a.chats.ListMessages(c.UserContext(), id, currentUser(c), c.QueryInt("limit", 0), c.QueryInt("before", 0))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(msgs)
}

func (a *API) ChatWith(c *fiber.Ctx) error {
	other, err := c.ParamsInt("user_id")
	if err != nil || other <= 0 {
		return badRequest(c, "invalid user id")
	}
	conv, err := a.chats.GetOrCreateConversation(c.UserContext(), currentUser(c), other)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(conv)
}

func (a *API) MarkRead(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return badRequest(c, "invalid chat id")
	}
	n, err := a.chats.MarkRead(c.UserContext(), id, currentUser(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"updated": n})
}

func (a *API) DeleteMessage(c *fiber.Ctx) error {
	id, err := c.ParamsInt("message_id")
	if err != nil || id <= 0 {
		return badRequest(c, "invalid message id")
	}
	if err := a.chats.DeleteMessage(c.UserContext(), id, currentUser(c)); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (a *API) DeleteChat(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return badRequest(c, "invalid chat id")
	}
	if err := a.chats.DeleteConversation(c.UserContext(), id, currentUser(c)); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
