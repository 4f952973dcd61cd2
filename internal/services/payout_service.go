package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kejaview/backend/internal/apperr"
	"github.com/kejaview/backend/internal/models"
	"github.com/kejaview/backend/internal/repositories"
)

var msisdnPattern = regexp.MustCompile(`^254[17]\d{8}$`)

// PayoutService manages agents' payout numbers and earnings history. Earnings
// accrue regardless of account state; the B2C transfer just waits for a
// verified number.
type PayoutService struct {
	payoutRepo  *repositories.PayoutRepo
	earningRepo *repositories.EarningRepo
	auditRepo   *repositories.AuditRepo
	notifier    *NotifierClient
	log         *zap.Logger
}

func NewPayoutService(
	payoutRepo *repositories.PayoutRepo,
	earningRepo *repositories.EarningRepo,
	auditRepo *repositories.AuditRepo,
	notifier *NotifierClient,
	log *zap.Logger,
) *PayoutService {
	return &PayoutService{
		payoutRepo:  payoutRepo,
		earningRepo: earningRepo,
		auditRepo:   auditRepo,
		notifier:    notifier,
		log:         log,
	}
}

// SetAccount registers or replaces the agent's payout number. A new number
// starts unverified.
func (s *PayoutService) SetAccount(ctx context.Context, agentID uuid.UUID, msisdn string) (*models.PayoutAccount, error) {
	if !msisdnPattern.MatchString(msisdn) {
		return nil, apperr.New(apperr.KindValidation, "invalid M-Pesa number %q, expected 2547XXXXXXXX or 2541XXXXXXXX", msisdn)
	}
	account := &models.PayoutAccount{AgentID: agentID, MSISDN: msisdn}
	if err := s.payoutRepo.Upsert(ctx, account); err != nil {
		return nil, apperr.Infra(err)
	}
	_ = s.auditRepo.Log(ctx, &agentID, models.ActorUser, "payout_account_set", "payout_account", &account.ID, nil)

	if account.Status == models.PayoutStatusPending {
		code, err := verificationCode()
		if err != nil {
			return nil, apperr.Infra(err)
		}
		if err := s.payoutRepo.SetVerificationCode(ctx, agentID, code); err != nil {
			return nil, apperr.Infra(err)
		}
		// The code rides the notification channel to the registered number, so
		// confirming it proves the agent controls that line.
		s.notifier.Notify(ctx, agentID, "payout_verification_code", map[string]any{
			"msisdn": msisdn,
			"code":   code,
		})
	}
	return account, nil
}

func verificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// Confirm verifies the account with the code delivered to the payout number.
func (s *PayoutService) Confirm(ctx context.Context, agentID uuid.UUID, code string) error {
	if code == "" {
		return apperr.New(apperr.KindValidation, "verification code is required")
	}
	ok, err := s.payoutRepo.VerifyWithCode(ctx, agentID, code)
	if err != nil {
		return apperr.Infra(err)
	}
	if !ok {
		return apperr.New(apperr.KindConflict, "code does not match or account is not pending")
	}
	_ = s.auditRepo.Log(ctx, &agentID, models.ActorUser, "payout_account_verified", "payout_account", nil,
		map[string]any{"method": "code"})
	return nil
}

// Verify marks the agent's number verified. Admin override for accounts whose
// code delivery failed.
func (s *PayoutService) Verify(ctx context.Context, agentID, adminID uuid.UUID) error {
	ok, err := s.payoutRepo.MarkVerified(ctx, agentID)
	if err != nil {
		return apperr.Infra(err)
	}
	if !ok {
		return apperr.ErrInvalidTransition
	}
	_ = s.auditRepo.Log(ctx, &adminID, models.ActorAdmin, "payout_account_verified", "payout_account", nil,
		map[string]any{"agent_id": agentID.String()})
	return nil
}

func (s *PayoutService) Account(ctx context.Context, agentID uuid.UUID) (*models.PayoutAccount, error) {
	account, err := s.payoutRepo.GetByAgent(ctx, agentID)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	return account, nil
}

// EarningsSummary is an agent's earning history with the running total.
type EarningsSummary struct {
	TotalNetKES int64                 `json:"total_net_kes"`
	Earnings    []models.AgentEarning `json:"earnings"`
}

func (s *PayoutService) Earnings(ctx context.Context, agentID uuid.UUID, limit, offset int) (*EarningsSummary, error) {
	earnings, err := s.earningRepo.ListByAgent(ctx, agentID, limit, offset)
	if err != nil {
		return nil, apperr.Infra(err)
	}
	total, err := s.earningRepo.TotalNetByAgent(ctx, agentID)
	if err != nil {
		return nil, apperr.Infra(err)
	}
	return &EarningsSummary{TotalNetKES: total, Earnings: earnings}, nil
}
