package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"salestrack/backend/internal/cache"
	"salestrack/backend/internal/commission"
	"salestrack/backend/internal/domain"
	"salestrack/backend/internal/notify"
	"salestrack/backend/internal/stats"
	"salestrack/backend/internal/store"
)

var ErrForbidden = errors.New("forbidden")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	HouseStoreName  string
	ResetTokenTTL   time.Duration
	FrontendBaseURL string
}

type Service struct {
	repo        store.Repository
	resolver    *commission.Resolver
	aggregator  *stats.Aggregator
	resetTokens cache.ResetTokens
	mailer      notify.Mailer
	logger      *zap.Logger
	opts        Options
	now         func() time.Time
}

func New(repo store.Repository, resetTokens cache.ResetTokens, mailer notify.Mailer, logger *zap.Logger, opts Options) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if resetTokens == nil {
		resetTokens = cache.NewMemoryResetTokens(opts.ResetTokenTTL)
	}
	if mailer == nil {
		mailer = notify.NewLogMailer(logger)
	}
	if opts.HouseStoreName == "" {
		opts.HouseStoreName = "AJ8"
	}
	if opts.ResetTokenTTL <= 0 {
		opts.ResetTokenTTL = time.Hour
	}
	opts.FrontendBaseURL = strings.TrimRight(opts.FrontendBaseURL, "/")

	return &Service{
		repo:        repo,
		resolver:    commission.NewResolver(repo),
		aggregator:  stats.NewAggregator(repo),
		resetTokens: resetTokens,
		mailer:      mailer,
		logger:      logger,
		opts:        opts,
		now:         time.Now,
	}
}

// WithClock swaps the time source. Used by tests that pin the summary window.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	s.aggregator.WithClock(now)
	return s
}

// Summary returns the dashboard aggregates visible to actor.
func (s *Service) Summary(ctx context.Context, actor domain.Actor, filters domain.SummaryFilters) (domain.Summary, error) {
	return s.aggregator.Summarize(ctx, actor, filters)
}

func (s *Service) ListAuditLogs(ctx context.Context, actor domain.Actor, date string, limit int) ([]domain.AuditLog, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	day := s.now().UTC()
	if strings.TrimSpace(date) != "" {
		parsed, err := time.Parse(time.DateOnly, strings.TrimSpace(date))
		if err != nil {
			return nil, invalidf("date must be YYYY-MM-DD")
		}
		day = parsed
	}
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return s.repo.ListAuditLogs(ctx, from, from.AddDate(0, 0, 1), limit)
}

func (s *Service) logAudit(ctx context.Context, actor domain.Actor, action string, entityType string, entityID int64, detail string) {
	entry := domain.AuditLog{
		ActorID:    actor.SellerID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: entityType,
		EntityID:   strconv.FormatInt(entityID, 10),
		Detail:     detail,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("audit log write failed", zap.String("action", action), zap.Error(err))
	}
}

func requireAdmin(actor domain.Actor) error {
	if !actor.IsAdmin() {
		return fmt.Errorf("%w: admin role required", ErrForbidden)
	}
	return nil
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", store.ErrInvalidInput, fmt.Sprintf(format, args...))
}

// maxMoney is the first amount a NUMERIC(14,2) column cannot hold.
var maxMoney = decimal.New(1, 12)

// checkMoney accepts only finite amounts below maxMoney with at most two
// decimal places, so every backend stores exactly what was validated.
func checkMoney(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return invalidf("%s must be a number", field)
	}
	d := decimal.NewFromFloat(v)
	if d.Abs().GreaterThanOrEqual(maxMoney) {
		return invalidf("%s must be below %s", field, maxMoney.String())
	}
	if !d.Equal(d.Round(2)) {
		return invalidf("%s must not have more than two decimal places", field)
	}
	return nil
}

func isValidStatus(status string) bool {
	switch status {
	case domain.SaleStatusSubmitted, domain.SaleStatusAccepted, domain.SaleStatusRejected:
		return true
	}
	return false
}

func parseOptionalDate(field string, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, invalidf("%s must be YYYY-MM-DD", field)
	}
	return &parsed, nil
}
