package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tatamihq/academy-api/internal/models"
	appErrors "github.com/tatamihq/academy-api/pkg/errors"
	"github.com/tatamihq/academy-api/pkg/export"
)

type exportAttendanceSource interface {
	ClassReport(ctx context.Context, classID string, date time.Time) ([]models.ClassReportRow, error)
}

type exportSeriesSource interface {
	FindByID(ctx context.Context, id string) (*models.RecurringSeries, error)
}

// ExportService renders attendance reports as CSV or PDF downloads.
type ExportService struct {
	attendance exportAttendanceSource
	series     exportSeriesSource
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
	logger     *zap.Logger
}

// NewExportService constructs the export service.
func NewExportService(attendance exportAttendanceSource, series exportSeriesSource, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		attendance: attendance,
		series:     series,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		logger:     logger,
	}
}

// ClassReportCSV renders the class/date report as CSV bytes.
func (s *ExportService) ClassReportCSV(ctx context.Context, classID string, date time.Time) ([]byte, string, error) {
	dataset, name, err := s.buildDataset(ctx, classID, date)
	if err != nil {
		return nil, "", err
	}
	payload, err := s.csv.Render(dataset)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	return payload, fmt.Sprintf("%s.csv", name), nil
}

// ClassReportPDF renders the class/date report as PDF bytes.
func (s *ExportService) ClassReportPDF(ctx context.Context, classID string, date time.Time) ([]byte, string, error) {
	dataset, name, err := s.buildDataset(ctx, classID, date)
	if err != nil {
		return nil, "", err
	}
	title := fmt.Sprintf("Attendance %s", date.Format("2006-01-02"))
	payload, err := s.pdf.Render(dataset, title)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
	}
	return payload, fmt.Sprintf("%s.pdf", name), nil
}

func (s *ExportService) buildDataset(ctx context.Context, classID string, date time.Time) (export.Dataset, string, error) {
	class, err := s.series.FindByID(ctx, classID)
	if err != nil {
		return export.Dataset{}, "", appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}
	rows, err := s.attendance.ClassReport(ctx, classID, date)
	if err != nil {
		return export.Dataset{}, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build class report")
	}

	dataset := export.Dataset{Headers: []string{"Member", "Status", "Reason"}}
	for _, row := range rows {
		reason := ""
		if row.Reason != nil {
			reason = *row.Reason
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Member": row.MemberName,
			"Status": string(row.Status),
			"Reason": reason,
		})
	}

	name := fmt.Sprintf("attendance_%s_%s", class.Name, date.Format("2006-01-02"))
	return dataset, name, nil
}
