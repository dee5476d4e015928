package payments

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/pkg/errors"

	"tutormarket/internal/lifecycle"
	"tutormarket/internal/metrics"
	"tutormarket/models"
)

// ErrNotConfigured - платёжный шлюз не настроен.
var ErrNotConfigured = errors.New("payments are not configured")

// MinorUnits переводит десятичную сумму ("USD$10.005") в центы с банковским округлением.
func MinorUnits(amount string) (int64, error) {
	m, err := models.RoundMoney(amount)
	if err != nil {
		return 0, errors.Wrap(lifecycle.ErrValidation, err.Error())
	}
	if m <= 0 {
		return 0, errors.Wrap(lifecycle.ErrValidation, "amount must be positive")
	}
	return m.Cents(), nil
}

// Store - хранилище пользователей, проектов и платежей.
type Store interface {
	GetUser(ctx context.Context, id int) (*models.User, error)
	GetProject(ctx context.Context, id int) (*models.Project, error)
	CreateTransaction(ctx context.Context, t *models.Transaction) error
	GetTransaction(ctx context.Context, id int) (*models.Transaction, error)
}

// TutorResolver определяет текущего репетитора проекта.
type TutorResolver interface {
	CurrentTutor(ctx context.Context, p *models.Project) (int, bool, error)
}

// Fees - комиссия платформы: процент от суммы, но не меньше минимума.
type Fees struct {
	Percent float64
	Min     int64
}

// PlatformFee считает комиссию платформы и не даёт ей превысить сумму.
func (f Fees) PlatformFee(amount int64) int64 {
	fee := int64(math.Round(float64(amount) * f.Percent / 100))
	if fee < f.Min {
		fee = f.Min
	}
	if fee > amount {
		fee = amount
	}
	return fee
}

type Service struct {
	store    Store
	tutors   TutorResolver
	gateway  Gateway
	currency string
	fees     Fees
	metrics  *metrics.Metrics
}

// NewService создаёт сервис платежей. gateway может быть nil, тогда Pay
// возвращает ErrNotConfigured.
func NewService(store Store, tutors TutorResolver, gateway Gateway, currency string, fees Fees, m *metrics.Metrics) *Service {
	return &Service{store: store, tutors: tutors, gateway: gateway, currency: currency, fees: fees, metrics: m}
}

// Pay списывает оплату студента в пользу текущего репетитора проекта.
func (s *Service) Pay(ctx context.Context, payer *models.User, project *models.Project, amount, token string) (*models.Transaction, error) {
	if s.gateway == nil {
		return nil, ErrNotConfigured
	}
	if payer.ID != project.StudentID {
		return nil, errors.Wrap(lifecycle.ErrInvalidState, "you cannot add a payment for this project")
	}
	cents, err := MinorUnits(amount)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, errors.Wrap(lifecycle.ErrValidation, "payment token is required")
	}

	tutorID, ok, err := s.tutors.CurrentTutor(ctx, project)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrapf(lifecycle.ErrInvalidState, "project %d has no awarded tutor", project.ID)
	}
	payee, err := s.store.GetUser(ctx, tutorID)
	if err != nil {
		return nil, err
	}
	if payee.PayoutAccount == "" {
		return nil, errors.Wrapf(lifecycle.ErrInvalidState, "tutor %d has not connected a payout account", payee.ID)
	}

	description := fmt.Sprintf("Payment from %s to %s for project: %s", payer.FullName(), payee.FullName(), project.Title)
	charge, err := s.gateway.Charge(ctx, ChargeRequest{
		Amount:         cents,
		Currency:       s.currency,
		Token:          token,
		Description:    description,
		Destination:    payee.PayoutAccount,
		ApplicationFee: s.fees.PlatformFee(cents),
	})
	if err != nil {
		s.metrics.Payment("failed")
		if errors.Is(err, ErrCardDeclined) {
			return nil, errors.Wrap(lifecycle.ErrValidation, err.Error())
		}
		return nil, errors.Wrap(err, "charge")
	}

	t := &models.Transaction{
		ProjectID:   project.ID,
		ChargeID:    charge.ID,
		Description: description,
		Currency:    charge.Currency,
		TotalAmount: models.Money(charge.Amount),
		GatewayFee:  models.Money(charge.GatewayFee),
		PlatformFee: models.Money(charge.PlatformFee),
	}
	if err := s.store.CreateTransaction(ctx, t); err != nil {
		// Деньги уже списаны: запись нужно восстановить вручную по charge id.
		s.metrics.Payment("unrecorded")
		slog.Error("charge succeeded but transaction was not recorded",
			"charge_id", charge.ID, "project_id", project.ID, "amount", charge.Amount, "error", err)
		return nil, errors.Wrapf(err, "record charge %s", charge.ID)
	}

	s.metrics.Payment("charged")
	slog.Info("payment recorded", "transaction_id", t.ID, "charge_id", t.ChargeID, "project_id", project.ID)
	return t, nil
}

// Get возвращает платёж студенту проекта или его текущему репетитору.
func (s *Service) Get(ctx context.Context, viewer *models.User, id int) (*models.Transaction, error) {
	t, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	project, err := s.store.GetProject(ctx, t.ProjectID)
	if err != nil {
		return nil, err
	}
	if viewer.ID == project.StudentID {
		return t, nil
	}
	tutorID, ok, err := s.tutors.CurrentTutor(ctx, project)
	if err != nil {
		return nil, err
	}
	if !ok || tutorID != viewer.ID {
		return nil, errors.Wrap(lifecycle.ErrInvalidState, "you cannot view this transaction")
	}
	return t, nil
}
