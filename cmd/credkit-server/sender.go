package main

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/credkit"
	"github.com/hashicorp/go-hclog"
)

var errNoTransport = errors.New("no reset code transport configured")

// newResetSender picks the development log sender only when devLogCodes is
// set. Otherwise reset codes are dropped and never reach the log.
func newResetSender(devLogCodes bool, logger hclog.Logger) credkit.ResetCodeSender {
	if devLogCodes {
		logger.Warn("DEV_LOG_RESET_CODES is set, reset codes will be written to the log")
		return &logSender{logger: logger}
	}
	logger.Warn("no reset code transport configured, forgot-password codes will not be delivered")
	return discardSender{}
}

// logSender stands in for a mail transport and writes reset codes to the
// log. It is meant for local development only.
type logSender struct {
	logger hclog.Logger
}

func (s *logSender) SendResetCode(ctx context.Context, email, code string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.Info("reset code issued", "email", email, "code", code, "expires_in", ttl.String())
	return nil
}

// discardSender fails every delivery without recording the code. The engine
// counts and logs the failure; the client response is unchanged.
type discardSender struct{}

func (discardSender) SendResetCode(context.Context, string, string, time.Duration) error {
	return errNoTransport
}
