package service

import (
	"context"
	"log/slog"

	"github.com/civicwatch/reportline/internal/login/domain"
)

// LogMailer writes codes to the service log instead of delivering them.
// Development use only; a real deployment wires an email provider here.
type LogMailer struct {
	Logger *slog.Logger
}

func (m *LogMailer) SendOTP(_ context.Context, email, code string, purpose domain.OTPPurpose) error {
	m.Logger.Info("one-time code issued",
		"email", email,
		"code", code,
		"purpose", purpose,
	)
	return nil
}
