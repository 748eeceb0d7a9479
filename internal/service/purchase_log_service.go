package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/purchase-notifier/internal/domain"
	"github.com/kursadbilgin/purchase-notifier/internal/mailer"
	"github.com/kursadbilgin/purchase-notifier/internal/observability"
	"github.com/kursadbilgin/purchase-notifier/internal/registration"
	"github.com/kursadbilgin/purchase-notifier/internal/repository"
	"go.uber.org/zap"
)

// RegistrationTemplateKey names the confirmation email template.
const RegistrationTemplateKey = "disc_registration"

// Registrar performs a single partner registration attempt.
type Registrar interface {
	Register(ctx context.Context, cfg registration.Config, req registration.Request) registration.Result
}

// RegistrationConfigSource resolves the partner endpoint configuration at call time.
type RegistrationConfigSource interface {
	DiscConfig(ctx context.Context) (registration.Config, error)
}

type PurchaseLogService struct {
	logs      repository.PurchaseLogRepository
	templates repository.EmailTemplateRepository
	registrar Registrar
	config    RegistrationConfigSource
	sender    mailer.Sender
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time
	newID     func() string
}

func NewPurchaseLogService(
	logs repository.PurchaseLogRepository,
	templates repository.EmailTemplateRepository,
	registrar Registrar,
	config RegistrationConfigSource,
	sender mailer.Sender,
	logger *zap.Logger,
) (*PurchaseLogService, error) {
	if logs == nil {
		return nil, fmt.Errorf("purchase log repository is required")
	}
	if templates == nil {
		return nil, fmt.Errorf("email template repository is required")
	}
	if registrar == nil {
		return nil, fmt.Errorf("registrar is required")
	}
	if config == nil {
		return nil, fmt.Errorf("registration config source is required")
	}
	if sender == nil {
		return nil, fmt.Errorf("mail sender is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PurchaseLogService{
		logs:      logs,
		templates: templates,
		registrar: registrar,
		config:    config,
		sender:    sender,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}, nil
}

func (s *PurchaseLogService) SetMetrics(metrics *observability.Metrics) {
	s.metrics = metrics
}

// CreateLog fills defaults, validates and persists a new purchase log.
func (s *PurchaseLogService) CreateLog(ctx context.Context, log *domain.PurchaseLog) (*domain.PurchaseLog, error) {
	if log == nil {
		return nil, fmt.Errorf("%w: purchase log is required", domain.ErrValidation)
	}

	now := s.now().UTC()
	if strings.TrimSpace(log.ID) == "" {
		log.ID = s.newID()
	}
	if log.PurchaseDate.IsZero() {
		log.PurchaseDate = now
	}
	if log.PaymentStatus == "" {
		log.PaymentStatus = domain.PaymentStatusPending
	}
	if log.RegistrationStatus == "" {
		log.RegistrationStatus = domain.RegistrationStatusNotSent
	}
	log.CreatedAt = now
	log.UpdatedAt = now

	if err := log.Validate(); err != nil {
		return nil, err
	}

	if err := s.logs.Create(ctx, log); err != nil {
		return nil, err
	}

	observability.WithContextLogger(s.logger, ctx).Info("purchase log created",
		zap.String("purchaseLogId", log.ID),
		zap.String("reference", log.Reference),
	)
	return log, nil
}

func (s *PurchaseLogService) Get(ctx context.Context, id string) (*domain.PurchaseLog, error) {
	return s.logs.GetByID(ctx, id)
}

func (s *PurchaseLogService) List(ctx context.Context, params repository.ListParams) ([]domain.PurchaseLog, int64, error) {
	return s.logs.List(ctx, params)
}

// SendToExternal makes one registration attempt for the log and records the
// outcome. The error return is reserved for storage failures.
func (s *PurchaseLogService) SendToExternal(ctx context.Context, logID string) (bool, error) {
	log, err := s.logs.GetByID(ctx, logID)
	if err != nil {
		return false, err
	}

	cfg, err := s.config.DiscConfig(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to resolve registration config: %w", err)
	}

	start := s.now()
	result := s.registrar.Register(ctx, cfg, registration.NewRequest(log))
	s.metrics.ObserveRegistrationDuration(s.now().Sub(start))

	if err := s.logs.UpdateRegistration(ctx, log.ID, result.Outcome()); err != nil {
		return false, fmt.Errorf("failed to record registration outcome: %w", err)
	}
	s.metrics.IncRegistration(result.Status.String(), registration.KindOf(result.Err).String())

	logger := observability.WithContextLogger(s.logger, ctx).With(
		zap.String("purchaseLogId", log.ID),
		zap.String("reference", log.Reference),
	)
	if !result.Success {
		logger.Warn("registration failed",
			zap.String("kind", registration.KindOf(result.Err).String()),
			zap.Int("status", result.StatusCode),
			zap.Error(result.Err),
		)
		return false, nil
	}

	logger.Info("registration recorded", zap.String("externalUserId", result.ExternalUserID))
	return true, nil
}

// SendNotificationEmail renders the confirmation template for the log and
// delivers it synchronously. A missing template is logged and skipped.
func (s *PurchaseLogService) SendNotificationEmail(ctx context.Context, logID string) error {
	log, err := s.logs.GetByID(ctx, logID)
	if err != nil {
		return err
	}

	logger := observability.WithContextLogger(s.logger, ctx).With(
		zap.String("purchaseLogId", log.ID),
		zap.String("reference", log.Reference),
	)

	tpl, err := s.templates.GetByKey(ctx, RegistrationTemplateKey)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Warn("email template not found, notification email skipped",
			zap.String("template", RegistrationTemplateKey),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load email template: %w", err)
	}

	if strings.TrimSpace(log.CustomerEmail) == "" {
		s.metrics.IncNotificationEmail("failed")
		return fmt.Errorf("%w: purchase log has no customer email", domain.ErrValidation)
	}

	msg, err := mailer.Render(tpl, log.CustomerEmail, newEmailData(log))
	if err != nil {
		s.metrics.IncNotificationEmail("failed")
		return fmt.Errorf("failed to render notification email: %w", err)
	}

	if err := s.sender.Send(ctx, msg); err != nil {
		s.metrics.IncNotificationEmail("failed")
		return fmt.Errorf("failed to send notification email: %w", err)
	}

	if err := s.logs.MarkEmailSent(ctx, log.ID, s.now().UTC()); err != nil {
		return fmt.Errorf("failed to mark notification email as sent: %w", err)
	}
	s.metrics.IncNotificationEmail("sent")

	logger.Info("notification email sent", zap.String("to", log.CustomerEmail))
	return nil
}

// emailData is the value exposed to email templates.
type emailData struct {
	Reference      string
	CustomerName   string
	CustomerEmail  string
	CustomerPhone  string
	AssessmentName string
	ExternalUserID string
	PurchaseDate   time.Time
	AmountTotal    float64
	Currency       string
}

func newEmailData(log *domain.PurchaseLog) emailData {
	data := emailData{
		Reference:      log.Reference,
		CustomerName:   log.CustomerName,
		CustomerEmail:  log.CustomerEmail,
		CustomerPhone:  log.CustomerPhone,
		AssessmentName: log.AssessmentName,
		PurchaseDate:   log.PurchaseDate,
		AmountTotal:    log.AmountTotal,
		Currency:       log.Currency,
	}
	if log.ExternalUserID != nil {
		data.ExternalUserID = *log.ExternalUserID
	}
	return data
}
