package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"salestrack/backend/internal/domain"
)

// RequestPasswordReset issues a single-use token for the account behind email
// and mails a reset link. Unknown addresses yield store.ErrNotFound.
func (s *Service) RequestPasswordReset(ctx context.Context, req domain.ForgotPasswordRequest) error {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return invalidf("email is required")
	}
	seller, err := s.repo.GetSellerByEmail(ctx, email)
	if err != nil {
		return err
	}

	token := uuid.NewString()
	if err := s.resetTokens.Put(ctx, token, seller.ID, s.opts.ResetTokenTTL); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	link := s.opts.FrontendBaseURL + "/reset?token=" + token
	if err := s.mailer.SendPasswordReset(ctx, seller.Email, seller.Name, link, s.opts.ResetTokenTTL); err != nil {
		return err
	}
	s.logAudit(ctx, domain.Actor{SellerID: seller.ID, Role: seller.Role}, "password_reset_request", "seller", seller.ID, "")
	return nil
}

// ResetPassword redeems a reset token and sets a new password.
func (s *Service) ResetPassword(ctx context.Context, req domain.ResetPasswordRequest) error {
	token := strings.TrimSpace(req.Token)
	if token == "" {
		return invalidf("token is required")
	}
	if len(req.NewPassword) < minPasswordLength {
		return invalidf("password must be at least %d characters", minPasswordLength)
	}

	sellerID, ok, err := s.resetTokens.Take(ctx, token)
	if err != nil {
		return fmt.Errorf("load reset token: %w", err)
	}
	if !ok {
		return invalidf("token is invalid or expired")
	}

	hash, err := HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateSellerPassword(ctx, sellerID, hash); err != nil {
		return err
	}
	s.logger.Info("password reset", zap.Int64("seller_id", sellerID))
	s.logAudit(ctx, domain.Actor{SellerID: sellerID}, "password_reset", "seller", sellerID, "")
	return nil
}
