package user

import (
	"context"

	"github.com/trezcool/classroom/core"
)

type serviceMock struct {
	*service
}

// NewServiceMock returns a Service sending the password reset email synchronously.
func NewServiceMock(repo Repository, mailSvc core.EmailService, conf *core.Config) Service {
	return &serviceMock{service: newService(repo, mailSvc, conf)}
}

func (svc *serviceMock) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.Active() {
		return ErrNotFound
	}
	msg, err := svc.passwordResetMessage(usr)
	if err != nil {
		return err
	}
	// run synchronously
	svc.mailSvc.SendMessages(msg)
	return nil
}

// MakeResetToken exposes the token generator of a mock Service to tests.
func MakeResetToken(svc Service, usr User) (string, error) {
	if mock, ok := svc.(*serviceMock); ok {
		return mock.tokenGen.MakeToken(usr)
	}
	return "", ErrNotFound
}
