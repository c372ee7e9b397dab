// Package reports stores waste reports and forwards their lifecycle events
// to the award engine.
package reports

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/greencredits/greencredits/internal/app/rewards"
	"github.com/greencredits/greencredits/internal/domain"
	"github.com/greencredits/greencredits/internal/logger"
)

// Awarder receives report lifecycle events. *rewards.Engine implements it.
type Awarder interface {
	OnReportSubmitted(ctx context.Context, r domain.Report) (rewards.SubmissionResult, error)
	OnStatusTransition(ctx context.Context, r domain.Report, from, to domain.ReportStatus) (rewards.AwardResult, error)
}

// SubmitInput is what a citizen sends with a new report.
type SubmitInput struct {
	Description string
	Address     string
	Lat         *float64
	Lng         *float64
	PhotoURL    string
}

// Stats counts reports per status for the admin dashboard.
type Stats struct {
	Total    int                         `json:"total"`
	ByStatus map[domain.ReportStatus]int `json:"byStatus"`
}

// Service is the report workflow.
type Service struct {
	store   domain.ReportStore
	awarder Awarder
	now     func() time.Time
	log     *zap.Logger
}

// NewService creates a report service. A nil clock means time.Now.
func NewService(store domain.ReportStore, awarder Awarder, now func() time.Time, log *zap.Logger) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:   store,
		awarder: awarder,
		now:     now,
		log:     logger.OrDefault(log).Named("reports"),
	}
}

// Submit stores a Pending report for user and pays the submission awards.
// A report needs at least a photo or a description.
func (s *Service) Submit(ctx context.Context, user domain.User, in SubmitInput) (domain.Report, rewards.SubmissionResult, error) {
	in.Description = strings.TrimSpace(in.Description)
	in.Address = strings.TrimSpace(in.Address)
	if in.Description == "" && in.PhotoURL == "" {
		return domain.Report{}, rewards.SubmissionResult{}, fmt.Errorf("%w: photo or description required", domain.ErrMissingFields)
	}
	// Half a coordinate pair is no location.
	if in.Lat == nil || in.Lng == nil {
		in.Lat, in.Lng = nil, nil
	}

	now := s.now()
	report, err := s.store.CreateReport(ctx, domain.Report{
		UserID:        user.ID,
		ReporterName:  user.Name,
		ReporterEmail: user.Email,
		Description:   in.Description,
		Address:       in.Address,
		Lat:           in.Lat,
		Lng:           in.Lng,
		PhotoURL:      in.PhotoURL,
		Status:        domain.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return domain.Report{}, rewards.SubmissionResult{}, fmt.Errorf("store report: %w", err)
	}

	result, err := s.awarder.OnReportSubmitted(ctx, report)
	if err != nil {
		return report, result, fmt.Errorf("award report %d: %w", report.ID, err)
	}
	s.log.Info("report submitted",
		zap.Int64("report_id", report.ID),
		zap.String("user_id", user.ID),
		zap.Bool("gps", report.HasGPS()),
		zap.Bool("photo", report.HasPhoto()),
	)
	return report, result, nil
}

// UpdateStatus moves a report to status and pays any transition award.
// disposal is only kept when status is Disposed.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status domain.ReportStatus, disposal domain.DisposalMethod) (domain.Report, rewards.AwardResult, error) {
	if !status.Valid() {
		return domain.Report{}, rewards.AwardResult{}, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status)
	}
	if disposal != "" && !disposal.Valid() {
		return domain.Report{}, rewards.AwardResult{}, fmt.Errorf("%w: %q", domain.ErrInvalidDisposalMethod, disposal)
	}

	report, err := s.store.GetReport(ctx, id)
	if err != nil {
		return domain.Report{}, rewards.AwardResult{}, err
	}

	from := report.Status
	report.Status = status
	if status == domain.StatusDisposed {
		report.DisposalMethod = disposal
	} else {
		report.DisposalMethod = ""
	}
	report.UpdatedAt = s.now()
	if err := s.store.UpdateReport(ctx, report); err != nil {
		return domain.Report{}, rewards.AwardResult{}, fmt.Errorf("update report %d: %w", id, err)
	}

	if from == status {
		return report, rewards.AwardResult{NewBadges: []domain.Badge{}}, nil
	}
	result, err := s.awarder.OnStatusTransition(ctx, report, from, status)
	if err != nil {
		return report, result, fmt.Errorf("award transition: %w", err)
	}
	s.log.Info("report status changed",
		zap.Int64("report_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(status)),
		zap.String("disposal", string(report.DisposalMethod)),
	)
	return report, result, nil
}

// Get returns one report.
func (s *Service) Get(ctx context.Context, id int64) (domain.Report, error) {
	return s.store.GetReport(ctx, id)
}

// ListByUser returns a user's reports newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]domain.Report, error) {
	return s.store.ListReportsByUser(ctx, userID)
}

// ListAll returns every report newest first.
func (s *Service) ListAll(ctx context.Context) ([]domain.Report, error) {
	return s.store.ListReports(ctx)
}

// Stats counts reports per status. Every status appears, zero or not.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	all, err := s.store.ListReports(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Summarize(all), nil
}

// Summarize counts a report list per status.
func Summarize(all []domain.Report) Stats {
	st := Stats{Total: len(all), ByStatus: make(map[domain.ReportStatus]int, len(domain.ReportStatuses))}
	for _, status := range domain.ReportStatuses {
		st.ByStatus[status] = 0
	}
	for _, r := range all {
		st.ByStatus[r.Status]++
	}
	return st
}
