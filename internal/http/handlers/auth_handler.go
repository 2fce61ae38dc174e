package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/keystone-market/backend/internal/auth"
	"github.com/keystone-market/backend/internal/config"
	"github.com/keystone-market/backend/internal/http/dto"
	"github.com/keystone-market/backend/internal/rbac"
	"go.uber.org/zap"
)

// AuthHandler issues service tokens. Real identity lives in the identity
// service upstream; this endpoint mirrors its token shape so the core can run
// standalone in dev and tests.
type AuthHandler struct {
	cfg *config.Config
	log *zap.Logger
}

func NewAuthHandler(cfg *config.Config, log *zap.Logger) *AuthHandler {
	return &AuthHandler{cfg: cfg, log: log}
}

func (h *AuthHandler) IssueToken(c *fiber.Ctx) error {
	var req dto.IssueTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid user_id"})
	}
	switch req.Role {
	case rbac.RoleBuyer, rbac.RoleSeller, rbac.RoleAdmin:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid role"})
	}

	token, err := auth.GenerateJWT(h.cfg.JWTSecret, userID, req.Role, h.cfg.JWTExpiration)
	if err != nil {
		h.log.Error("token generation failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.TokenResponse{Token: token})
}
