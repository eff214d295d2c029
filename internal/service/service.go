package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"sync/atomic"
	"time"

	"flowershop/backend/internal/cache"
	"flowershop/backend/internal/domain"
	"flowershop/backend/internal/store"
)

var ErrUnauthenticated = errors.New("authenticated user required")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	// Location defines the calendar days used by reports. Defaults to UTC.
	Location *time.Location
	// MaxAttempts bounds how often a sale unit of work is tried when the
	// store reports a concurrent-update conflict.
	MaxAttempts     int
	TopFlowersLimit int
	ReportCacheTTL  time.Duration
	Now             func() time.Time
}

type Service struct {
	repo            store.Repository
	reports         cache.ReportCache
	loc             *time.Location
	maxAttempts     int
	topFlowersLimit int
	reportCacheTTL  time.Duration
	now             func() time.Time

	// reportGeneration counts invalidations made by this process.
	reportGeneration atomic.Uint64
}

func New(repo store.Repository, reports cache.ReportCache, opts Options) *Service {
	if reports == nil {
		reports = cache.NoopReportCache{}
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 3
	}
	if opts.TopFlowersLimit < 1 {
		opts.TopFlowersLimit = 5
	}
	if opts.ReportCacheTTL <= 0 {
		opts.ReportCacheTTL = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		repo:            repo,
		reports:         reports,
		loc:             opts.Location,
		maxAttempts:     opts.MaxAttempts,
		topFlowersLimit: opts.TopFlowersLimit,
		reportCacheTTL:  opts.ReportCacheTTL,
		now:             opts.Now,
	}
}

// Today is the current calendar day in the reporting location. Reports take
// their anchor date as a parameter; callers that want "today" ask for it here.
func (s *Service) Today() time.Time {
	return startOfDay(s.now(), s.loc)
}

func (s *Service) Location() *time.Location {
	return s.loc
}

// withRetry re-runs fn while it fails with store.ErrConflict, up to the
// configured number of attempts.
func (s *Service) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = fn()
		if !errors.Is(err, store.ErrConflict) {
			return err
		}
		log.Printf("[service] WARN: %s conflict on attempt %d/%d: %v", op, attempt, s.maxAttempts, err)
		if attempt == s.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 15 * time.Millisecond):
		}
	}
	return err
}

func (s *Service) invalidateReports(ctx context.Context) {
	s.reportGeneration.Add(1)
	if err := s.reports.Invalidate(ctx); err != nil {
		log.Printf("[report-cache] WARN: invalidate failed: %v", err)
	}
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", store.ErrInvalidInput, fmt.Sprintf(format, args...))
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
