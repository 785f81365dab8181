package service

import (
	"context"

	"advising-chat/internal/dto"
	"advising-chat/internal/identity"
	"advising-chat/internal/pkg/logger"
)

// UserRegistrar creates the user record on the CRUD backend.
type UserRegistrar interface {
	CreateUser(ctx context.Context, who identity.Principal) error
}

type IUserService interface {
	Register(ctx context.Context, caller Caller) (*dto.RegisterResponse, error)
}

type userService struct {
	remote UserRegistrar
	logger logger.ILogger
}

func NewUserService(remote UserRegistrar, logger logger.ILogger) IUserService {
	return &userService{remote: remote, logger: logger}
}

// Register is called once after sign-up with the new account's ID token.
func (s *userService) Register(ctx context.Context, caller Caller) (*dto.RegisterResponse, error) {
	who := identity.Static{ID: caller.UserId, Token: caller.Token}
	if err := s.remote.CreateUser(ctx, who); err != nil {
		s.logger.Error("UserService", "Failed to create user", map[string]interface{}{
			"user_id": caller.UserId,
			"error":   err.Error(),
		})
		return nil, err
	}
	s.logger.Info("UserService", "User created", map[string]interface{}{"user_id": caller.UserId})
	return &dto.RegisterResponse{UserId: caller.UserId}, nil
}
