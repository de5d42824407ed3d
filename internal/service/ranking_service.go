package service

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/Emino08/school-results-api/internal/models"
	appErrors "github.com/Emino08/school-results-api/pkg/errors"
)

type rankingResultReader interface {
	List(ctx context.Context, filter models.ResultFilter) ([]models.ExamResult, error)
	DistinctApprovedClasses(ctx context.Context, examID string) ([]string, error)
}

type subjectRankingRepo interface {
	ReplaceForScope(ctx context.Context, examID, subjectID, classID string, rankings []models.SubjectRanking) error
	ListByScope(ctx context.Context, examID, subjectID, classID string) ([]models.SubjectRanking, error)
}

type standingsWriter interface {
	ApplyStandings(ctx context.Context, schoolID, examID, classID string, standings []models.ClassStanding) error
}

// RankAllReport summarises a batch fan-out over an exam's classes.
type RankAllReport struct {
	ClassesFound  int      `json:"classes_found"`
	ClassesRanked int      `json:"classes_ranked"`
	FailedClasses []string `json:"failed_classes,omitempty"`
}

// RankingService computes subject and class positions from approved results.
// Every recompute is a wholesale replacement of its scope, never an
// incremental patch, so re-running after late approvals is always safe.
type RankingService struct {
	results         rankingResultReader
	subjectRankings subjectRankingRepo
	summaries       standingsWriter
	metrics         *MetricsService
	logger          *zap.Logger
}

// NewRankingService constructs RankingService.
func NewRankingService(results rankingResultReader, subjectRankings subjectRankingRepo, summaries standingsWriter, metrics *MetricsService, logger *zap.Logger) *RankingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RankingService{
		results:         results,
		subjectRankings: subjectRankings,
		summaries:       summaries,
		metrics:         metrics,
		logger:          logger,
	}
}

// RankSubject recomputes the intra-subject ordering for one
// (exam, subject, class) and mirrors positions onto the result rows. Equal
// averages share a position; the next distinct average takes position equal
// to the count of strictly better entries plus one.
func (s *RankingService) RankSubject(ctx context.Context, examID, subjectID, classID string) (int, error) {
	approved, err := s.results.List(ctx, models.ResultFilter{
		ExamID: examID, SubjectID: subjectID, ClassID: classID, Status: models.ApprovalApproved,
	})
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approved results")
	}

	// Student ID breaks ordering ties deterministically; it never affects
	// the assigned position.
	sort.Slice(approved, func(i, j int) bool {
		if approved[i].AverageScore != approved[j].AverageScore {
			return approved[i].AverageScore > approved[j].AverageScore
		}
		return approved[i].StudentID < approved[j].StudentID
	})

	rankings := make([]models.SubjectRanking, len(approved))
	total := len(approved)
	for i, result := range approved {
		position := i + 1
		if i > 0 && result.AverageScore == approved[i-1].AverageScore {
			position = rankings[i-1].Position
		}
		rankings[i] = models.SubjectRanking{
			SchoolID:      result.SchoolID,
			ExamID:        examID,
			SubjectID:     subjectID,
			ClassID:       classID,
			StudentID:     result.StudentID,
			Score:         result.AverageScore,
			Position:      position,
			TotalStudents: total,
		}
	}

	if err := s.subjectRankings.ReplaceForScope(ctx, examID, subjectID, classID, rankings); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace subject rankings")
	}
	s.metrics.IncRankingRecompute("subject")
	s.logger.Info("subject ranking recomputed",
		zap.String("exam_id", examID), zap.String("subject_id", subjectID),
		zap.String("class_id", classID), zap.Int("students", total))
	return total, nil
}

// RankClass recomputes the cross-subject class standing for one (exam, class)
// and writes positions onto the result summaries.
func (s *RankingService) RankClass(ctx context.Context, examID, classID string) (int, error) {
	approved, err := s.results.List(ctx, models.ResultFilter{
		ExamID: examID, ClassID: classID, Status: models.ApprovalApproved,
	})
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approved results")
	}
	if len(approved) == 0 {
		return 0, nil
	}

	schoolID := approved[0].SchoolID
	byStudent := make(map[string][]models.ExamResult)
	for _, result := range approved {
		byStudent[result.StudentID] = append(byStudent[result.StudentID], result)
	}

	standings := make([]models.ClassStanding, 0, len(byStudent))
	for studentID, results := range byStudent {
		var sumAverages, totalObtained float64
		for _, result := range results {
			sumAverages += result.AverageScore
			totalObtained += result.TotalScore
		}
		standings = append(standings, models.ClassStanding{
			StudentID:      studentID,
			OverallAverage: sumAverages / float64(len(results)),
			TotalObtained:  totalObtained,
			SubjectCount:   len(results),
		})
	}

	// Only the overall average decides the position. Total obtained and
	// student ID order the listing within a tie but never split it.
	sort.Slice(standings, func(i, j int) bool {
		if standings[i].OverallAverage != standings[j].OverallAverage {
			return standings[i].OverallAverage > standings[j].OverallAverage
		}
		if standings[i].TotalObtained != standings[j].TotalObtained {
			return standings[i].TotalObtained > standings[j].TotalObtained
		}
		return standings[i].StudentID < standings[j].StudentID
	})

	total := len(standings)
	for i := range standings {
		standings[i].TotalStudents = total
		standings[i].Position = i + 1
		if i > 0 && standings[i].OverallAverage == standings[i-1].OverallAverage {
			standings[i].Position = standings[i-1].Position
		}
	}

	if err := s.summaries.ApplyStandings(ctx, schoolID, examID, classID, standings); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply class standings")
	}
	s.metrics.IncRankingRecompute("class")
	s.logger.Info("class ranking recomputed",
		zap.String("exam_id", examID), zap.String("class_id", classID), zap.Int("students", total))
	return total, nil
}

// RankAllClasses discovers every class with approved results for the exam and
// ranks each. Classes are independent; one failure is reported but does not
// abort the rest.
func (s *RankingService) RankAllClasses(ctx context.Context, examID string) (*RankAllReport, error) {
	classes, err := s.results.DistinctApprovedClasses(ctx, examID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to discover classes")
	}
	report := &RankAllReport{ClassesFound: len(classes)}
	for _, classID := range classes {
		if _, err := s.RankClass(ctx, examID, classID); err != nil {
			s.logger.Error("class ranking failed",
				zap.String("exam_id", examID), zap.String("class_id", classID), zap.Error(err))
			report.FailedClasses = append(report.FailedClasses, classID)
			continue
		}
		report.ClassesRanked++
	}
	return report, nil
}

// SubjectRankingList returns the stored ranking for a scope ordered by
// position.
func (s *RankingService) SubjectRankingList(ctx context.Context, examID, subjectID, classID string) ([]models.SubjectRanking, error) {
	rankings, err := s.subjectRankings.ListByScope(ctx, examID, subjectID, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subject rankings")
	}
	return rankings, nil
}
