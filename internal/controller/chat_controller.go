package controller

import (
	"advising-chat/internal/dto"
	"advising-chat/internal/pkg/serverutils"
	"advising-chat/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	GetSession(ctx *fiber.Ctx) error
	EndSession(ctx *fiber.Ctx) error
	SendQuery(ctx *fiber.Ctx) error
	SetScheduleMode(ctx *fiber.Ctx) error
	StartNewChat(ctx *fiber.Ctx) error
	SwitchConversation(ctx *fiber.Ctx) error
	DeleteConversation(ctx *fiber.Ctx) error
	ClearCache(ctx *fiber.Ctx) error
}

type chatController struct {
	service service.IConversationService
	auth    fiber.Handler
}

func NewChatController(service service.IConversationService, auth fiber.Handler) IChatController {
	return &chatController{service: service, auth: auth}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Use(c.auth)
	h.Get("/session", c.GetSession)
	h.Delete("/session", c.EndSession)
	h.Post("/messages", c.SendQuery)
	h.Put("/schedule-mode", c.SetScheduleMode)
	h.Post("/conversations", c.StartNewChat)
	h.Put("/conversations/:id/active", c.SwitchConversation)
	h.Delete("/conversations/:id", c.DeleteConversation)
	h.Delete("/cache", c.ClearCache)
}

func (c *chatController) GetSession(ctx *fiber.Ctx) error {
	res, err := c.service.GetSession(ctx.UserContext(), callerFrom(ctx))
	if err != nil {
		return toAppError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get session", res))
}

func (c *chatController) EndSession(ctx *fiber.Ctx) error {
	if err := c.service.EndSession(ctx.UserContext(), callerFrom(ctx)); err != nil {
		return toAppError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Session ended", nil))
}

func (c *chatController) SendQuery(ctx *fiber.Ctx) error {
	var req dto.SendQueryRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.SendQuery(ctx.UserContext(), callerFrom(ctx), &req)
	if err != nil {
		return toAppError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success send query", res))
}

func (c *chatController) SetScheduleMode(ctx *fiber.Ctx) error {
	var req dto.ScheduleModeRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.SetScheduleMode(ctx.UserContext(), callerFrom(ctx), &req)
	if err != nil {
		return toAppError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success update schedule mode", res))
}

func (c *chatController) StartNewChat(ctx *fiber.Ctx) error {
	res, err := c.service.StartNewChat(ctx.UserContext(), callerFrom(ctx))
	if err != nil {
		return toAppError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success start new chat", res))
}

func (c *chatController) SwitchConversation(ctx *fiber.Ctx) error {
	res, err := c.service.SwitchConversation(ctx.UserContext(), callerFrom(ctx), ctx.Params("id"))
	if err != nil {
		return toAppError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success switch conversation", res))
}

func (c *chatController) DeleteConversation(ctx *fiber.Ctx) error {
	res, err := c.service.DeleteConversation(ctx.UserContext(), callerFrom(ctx), ctx.Params("id"))
	if err != nil {
		return toAppError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success delete conversation", res))
}

func (c *chatController) ClearCache(ctx *fiber.Ctx) error {
	res, err := c.service.ClearCache(ctx.UserContext(), callerFrom(ctx))
	if err != nil {
		return toAppError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success clear cache", res))
}
