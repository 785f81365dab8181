package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"advising-chat/internal/constant"
	"advising-chat/internal/identity"
	"advising-chat/internal/pkg/logger"
	"advising-chat/internal/remote"
	"advising-chat/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserMessage(t *testing.T) {
	failedView := session.View{
		ChatError: constant.StatusChatFailed,
		Error:     constant.StatusHistoryFailed + ": boom",
	}

	tests := []struct {
		name string
		err  error
		view session.View
		chat bool
		want string
	}{
		{"busy wins over recorded status", session.ErrBusy, failedView, true, session.ErrBusy.Error()},
		{"identity change", fmt.Errorf("send query: %w", session.ErrIdentityChanged), failedView, true, "send query: " + session.ErrIdentityChanged.Error()},
		{"chat failure uses chat status", fmt.Errorf("send query: %w", remote.ErrMalformedResponse), failedView, true, constant.StatusChatFailed},
		{"other failure uses error status", fmt.Errorf("switch conversation: %w", remote.ErrMalformedResponse), failedView, false, failedView.Error},
		{"nothing recorded", errors.New("boom"), session.View{}, false, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, userMessage(tt.err, tt.view, tt.chat))
		})
	}
}

func TestOperationErrorUnwraps(t *testing.T) {
	err := error(&OperationError{Err: fmt.Errorf("send query: %w", remote.ErrRateLimited), Message: constant.StatusDailyLimit})

	assert.ErrorIs(t, err, remote.ErrRateLimited)
	assert.Equal(t, "send query: "+remote.ErrRateLimited.Error(), err.Error())
}

type fakeRegistrar struct {
	who identity.Principal
	err error
}

func (f *fakeRegistrar) CreateUser(ctx context.Context, who identity.Principal) error {
	f.who = who
	return f.err
}

func TestUserService_Register(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		registrar := &fakeRegistrar{}
		svc := NewUserService(registrar, logger.NewNopLogger())

		res, err := svc.Register(context.Background(), Caller{UserId: "student-1", Token: "tok"})
		require.NoError(t, err)
		assert.Equal(t, "student-1", res.UserId)

		require.NotNil(t, registrar.who)
		assert.Equal(t, "student-1", registrar.who.Identity())
		token, err := registrar.who.Credential(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tok", token)
	})

	t.Run("remote failure", func(t *testing.T) {
		registrar := &fakeRegistrar{err: remote.ErrRemoteUnavailable}
		svc := NewUserService(registrar, logger.NewNopLogger())

		res, err := svc.Register(context.Background(), Caller{UserId: "student-1", Token: "tok"})
		assert.Nil(t, res)
		assert.ErrorIs(t, err, remote.ErrRemoteUnavailable)
	})
}
