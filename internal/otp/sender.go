package otp

import "log/slog"

// CodeSender delivers a reset code to the account owner.
type CodeSender interface {
	SendResetCode(email, code string) error
}

// LogSender writes the code to the application log instead of delivering it.
// Stand-in for a mail provider in development deployments.
type LogSender struct{}

func (LogSender) SendResetCode(email, code string) error {
	slog.Info("password reset code issued", "email", MaskEmail(email), "code", code)
	return nil
}
