package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Emino08/school-results-api/internal/models"
	appErrors "github.com/Emino08/school-results-api/pkg/errors"
	"github.com/Emino08/school-results-api/pkg/export"
	"github.com/Emino08/school-results-api/pkg/storage"
)

type exportSummaryReader interface {
	FindByStudentExam(ctx context.Context, examID, studentID string) (*models.ResultSummary, error)
	ListByClass(ctx context.Context, examID, classID string) ([]models.ResultSummary, error)
}

type exportResultReader interface {
	List(ctx context.Context, filter models.ResultFilter) ([]models.ExamResult, error)
}

type exportStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type exportGradeResolver interface {
	Resolve(ctx context.Context, score float64, schoolID string, yearID *string) (models.ResolvedGrade, error)
}

// ExportFile is a rendered artifact with its signed download token.
type ExportFile struct {
	ExportID  string    `json:"export_id"`
	Filename  string    `json:"filename"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExportService renders class result sheets (CSV) and per-student result
// slips (PDF), stores them, and hands out signed download tokens.
type ExportService struct {
	summaries  exportSummaryReader
	results    exportResultReader
	students   exportStudentReader
	grades     exportGradeResolver
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
	store      *storage.LocalStorage
	signer     *storage.SignedURLSigner
	schoolName string
	logger     *zap.Logger
}

// NewExportService constructs ExportService.
func NewExportService(summaries exportSummaryReader, results exportResultReader, students exportStudentReader, grades exportGradeResolver, store *storage.LocalStorage, signer *storage.SignedURLSigner, schoolName string, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		summaries:  summaries,
		results:    results,
		students:   students,
		grades:     grades,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		store:      store,
		signer:     signer,
		schoolName: schoolName,
		logger:     logger,
	}
}

// Sheet formats a class sheet can be rendered in.
const (
	SheetFormatCSV = "csv"
	SheetFormatPDF = "pdf"
)

// ClassSheet renders a class standings sheet ordered by position, as CSV by
// default or as a printable PDF when requested.
func (s *ExportService) ClassSheet(ctx context.Context, examID, classID, format string) (*ExportFile, error) {
	if format == "" {
		format = SheetFormatCSV
	}
	if format != SheetFormatCSV && format != SheetFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	summaries, err := s.summaries.ListByClass(ctx, examID, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class summaries")
	}
	if len(summaries) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no summaries for this class and exam")
	}

	sheet := export.Sheet{
		Headers: []string{"Position", "Student ID", "Average", "Total Obtained", "Total Possible", "Percentage", "Subjects", "Grade", "Remarks"},
	}
	for _, summary := range summaries {
		sheet.Rows = append(sheet.Rows, []string{
			positionString(summary.ClassPosition),
			summary.StudentID,
			formatScore(summary.AverageScore),
			formatScore(summary.TotalMarksObtained),
			formatScore(summary.TotalPossibleMarks),
			formatScore(summary.Percentage),
			strconv.Itoa(summary.SubjectCount),
			summary.Grade,
			summary.Remarks,
		})
	}

	var data []byte
	if format == SheetFormatPDF {
		title := fmt.Sprintf("%s Class %s Results", s.schoolName, classID)
		data, err = s.pdf.RenderSheet(sheet, title)
	} else {
		data, err = s.csv.Render(sheet)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render class sheet")
	}
	filename := fmt.Sprintf("class-sheet-%s-%s.%s", classID, examID, format)
	return s.save(filename, data)
}

// StudentSlip renders a one-page PDF result slip for a student.
func (s *ExportService) StudentSlip(ctx context.Context, examID, studentID string) (*ExportFile, error) {
	summary, err := s.summaries.FindByStudentExam(ctx, examID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "summary not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load summary")
	}
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	results, err := s.results.List(ctx, models.ResultFilter{
		ExamID:    examID,
		StudentID: studentID,
		Status:    models.ApprovalApproved,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject results")
	}

	slip := export.Slip{
		SchoolName:    s.schoolName,
		ExamName:      examID,
		StudentName:   student.FullName,
		ClassName:     summary.ClassID,
		AverageScore:  formatScore(summary.AverageScore),
		Percentage:    formatScore(summary.Percentage) + "%",
		Grade:         summary.Grade,
		ClassPosition: positionString(summary.ClassPosition),
		Remarks:       summary.Remarks,
	}
	for _, result := range results {
		grade, err := s.grades.Resolve(ctx, result.AverageScore, summary.SchoolID, summary.AcademicYearID)
		if err != nil {
			return nil, err
		}
		slip.Lines = append(slip.Lines, export.SlipLine{
			Subject:   result.SubjectID,
			TestScore: formatScore(result.TestScore),
			ExamScore: formatScore(result.ExamScore),
			Total:     formatScore(result.TotalScore),
			Average:   formatScore(result.AverageScore),
			Grade:     grade.Label,
			Position:  positionString(result.SubjectPosition),
		})
	}

	data, err := s.pdf.RenderSlip(slip)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render result slip")
	}
	filename := fmt.Sprintf("result-slip-%s-%s.pdf", studentID, examID)
	return s.save(filename, data)
}

// SweepExpired prunes rendered artifacts older than the retention TTL. It is
// called from a background ticker; failures are logged and the next sweep
// tries again.
func (s *ExportService) SweepExpired(ttl time.Duration) {
	removed, err := s.store.CleanupOlderThan(ttl)
	if err != nil {
		s.logger.Error("export retention sweep failed", zap.Error(err))
		return
	}
	if removed > 0 {
		s.logger.Info("pruned expired exports", zap.Int("removed", removed))
	}
}

// Open validates a signed token and opens the underlying file for streaming.
func (s *ExportService) Open(token string) (*os.File, string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired download token")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export no longer available")
	}
	return file, relPath, nil
}

func (s *ExportService) save(filename string, data []byte) (*ExportFile, error) {
	relPath, err := s.store.Save(filename, data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}
	exportID := uuid.NewString()
	token, expiresAt, err := s.signer.Generate(exportID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export url")
	}
	s.logger.Info("export rendered",
		zap.String("export_id", exportID),
		zap.String("filename", filename))
	return &ExportFile{
		ExportID:  exportID,
		Filename:  filename,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func positionString(p *int) string {
	if p == nil {
		return "-"
	}
	return strconv.Itoa(*p)
}
