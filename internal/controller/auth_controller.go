package controller

import (
	"advising-chat/internal/pkg/serverutils"
	"advising-chat/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IAuthController interface {
	RegisterRoutes(r fiber.Router)
	Register(ctx *fiber.Ctx) error
}

type authController struct {
	service service.IUserService
	auth    fiber.Handler
}

func NewAuthController(service service.IUserService, auth fiber.Handler) IAuthController {
	return &authController{service: service, auth: auth}
}

func (c *authController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/auth/v1")
	h.Post("/register", c.auth, c.Register)
}

// Register creates the backend user record for an account the identity provider just signed up.
func (c *authController) Register(ctx *fiber.Ctx) error {
	res, err := c.service.Register(ctx.UserContext(), callerFrom(ctx))
	if err != nil {
		return toAppError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("User registered successfully", res))
}
