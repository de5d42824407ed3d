package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Emino08/school-results-api/internal/models"
)

type mockRankingResults struct {
	results    []models.ExamResult
	classes    []string
	failClass  string
	listCalls  int
}

func (m *mockRankingResults) List(ctx context.Context, filter models.ResultFilter) ([]models.ExamResult, error) {
	m.listCalls++
	if m.failClass != "" && filter.ClassID == m.failClass {
		return nil, fmt.Errorf("storage down")
	}
	var out []models.ExamResult
	for _, r := range m.results {
		if filter.ExamID != "" && r.ExamID != filter.ExamID {
			continue
		}
		if filter.SubjectID != "" && r.SubjectID != filter.SubjectID {
			continue
		}
		if filter.ClassID != "" && r.ClassID != filter.ClassID {
			continue
		}
		if filter.Status != "" && r.ApprovalStatus != filter.Status {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *mockRankingResults) DistinctApprovedClasses(ctx context.Context, examID string) ([]string, error) {
	return m.classes, nil
}

type mockSubjectRankings struct {
	stored       []models.SubjectRanking
	replaceCalls int
}

func (m *mockSubjectRankings) ReplaceForScope(ctx context.Context, examID, subjectID, classID string, rankings []models.SubjectRanking) error {
	m.replaceCalls++
	m.stored = rankings
	return nil
}

func (m *mockSubjectRankings) ListByScope(ctx context.Context, examID, subjectID, classID string) ([]models.SubjectRanking, error) {
	return m.stored, nil
}

type mockStandingsWriter struct {
	stored []models.ClassStanding
	calls  int
}

func (m *mockStandingsWriter) ApplyStandings(ctx context.Context, schoolID, examID, classID string, standings []models.ClassStanding) error {
	m.calls++
	m.stored = standings
	return nil
}

func approvedResult(studentID, subjectID, classID string, average float64) models.ExamResult {
	return models.ExamResult{
		SchoolID:       "school",
		ExamID:         "exam",
		StudentID:      studentID,
		SubjectID:      subjectID,
		ClassID:        classID,
		TestScore:      average,
		ExamScore:      average,
		TotalScore:     average * 2,
		AverageScore:   average,
		ApprovalStatus: models.ApprovalApproved,
	}
}

func TestRankSubjectCompetitionPositions(t *testing.T) {
	results := &mockRankingResults{results: []models.ExamResult{
		approvedResult("stu-d", "math", "c1", 70),
		approvedResult("stu-a", "math", "c1", 90),
		approvedResult("stu-b", "math", "c1", 85),
		approvedResult("stu-c", "math", "c1", 85),
	}}
	rankings := &mockSubjectRankings{}
	svc := NewRankingService(results, rankings, &mockStandingsWriter{}, nil, zap.NewNop())

	ranked, err := svc.RankSubject(context.Background(), "exam", "math", "c1")
	require.NoError(t, err)
	assert.Equal(t, 4, ranked)
	require.Len(t, rankings.stored, 4)

	// Equal averages share a position; the next distinct average takes the
	// count of strictly better entries plus one.
	assert.Equal(t, "stu-a", rankings.stored[0].StudentID)
	assert.Equal(t, 1, rankings.stored[0].Position)
	assert.Equal(t, 2, rankings.stored[1].Position)
	assert.Equal(t, 2, rankings.stored[2].Position)
	assert.Equal(t, "stu-d", rankings.stored[3].StudentID)
	assert.Equal(t, 4, rankings.stored[3].Position)
	for _, r := range rankings.stored {
		assert.Equal(t, 4, r.TotalStudents)
	}
}

func TestRankSubjectIdempotent(t *testing.T) {
	results := &mockRankingResults{results: []models.ExamResult{
		approvedResult("stu-a", "math", "c1", 90),
		approvedResult("stu-b", "math", "c1", 80),
	}}
	rankings := &mockSubjectRankings{}
	svc := NewRankingService(results, rankings, &mockStandingsWriter{}, nil, zap.NewNop())

	_, err := svc.RankSubject(context.Background(), "exam", "math", "c1")
	require.NoError(t, err)
	first := append([]models.SubjectRanking(nil), rankings.stored...)

	_, err = svc.RankSubject(context.Background(), "exam", "math", "c1")
	require.NoError(t, err)

	assert.Equal(t, 2, rankings.replaceCalls)
	assert.Equal(t, first, rankings.stored)
}

func TestRankClassTieSharesPosition(t *testing.T) {
	results := &mockRankingResults{results: []models.ExamResult{
		approvedResult("stu-a", "math", "c1", 90),
		approvedResult("stu-a", "bio", "c1", 80),
		approvedResult("stu-b", "math", "c1", 85),
		approvedResult("stu-b", "bio", "c1", 85),
		approvedResult("stu-c", "math", "c1", 60),
		approvedResult("stu-c", "bio", "c1", 70),
	}}
	standings := &mockStandingsWriter{}
	svc := NewRankingService(results, &mockSubjectRankings{}, standings, nil, zap.NewNop())

	ranked, err := svc.RankClass(context.Background(), "exam", "c1")
	require.NoError(t, err)
	assert.Equal(t, 3, ranked)
	require.Len(t, standings.stored, 3)

	// Both stu-a and stu-b average 85 overall and obtained the same total
	// marks, so they share position 1 and stu-c takes 3.
	assert.Equal(t, 1, standings.stored[0].Position)
	assert.Equal(t, 1, standings.stored[1].Position)
	assert.Equal(t, "stu-c", standings.stored[2].StudentID)
	assert.Equal(t, 3, standings.stored[2].Position)
}

func TestRankClassTotalObtainedOrdersButNeverSplitsTies(t *testing.T) {
	// stu-a and stu-b both average 85 overall, but stu-b sat two subjects
	// and obtained twice the marks.
	results := &mockRankingResults{results: []models.ExamResult{
		approvedResult("stu-a", "math", "c1", 85),
		approvedResult("stu-b", "math", "c1", 85),
		approvedResult("stu-b", "bio", "c1", 85),
		approvedResult("stu-c", "math", "c1", 70),
	}}
	standings := &mockStandingsWriter{}
	svc := NewRankingService(results, &mockSubjectRankings{}, standings, nil, zap.NewNop())

	ranked, err := svc.RankClass(context.Background(), "exam", "c1")
	require.NoError(t, err)
	assert.Equal(t, 3, ranked)
	require.Len(t, standings.stored, 3)

	// The higher total lists first within the tie, yet both hold position 1
	// and the next distinct average still takes position 3.
	assert.Equal(t, "stu-b", standings.stored[0].StudentID)
	assert.Equal(t, 1, standings.stored[0].Position)
	assert.Equal(t, "stu-a", standings.stored[1].StudentID)
	assert.Equal(t, 1, standings.stored[1].Position)
	assert.Equal(t, "stu-c", standings.stored[2].StudentID)
	assert.Equal(t, 3, standings.stored[2].Position)
}

func TestRankClassEmptyScope(t *testing.T) {
	standings := &mockStandingsWriter{}
	svc := NewRankingService(&mockRankingResults{}, &mockSubjectRankings{}, standings, nil, zap.NewNop())

	ranked, err := svc.RankClass(context.Background(), "exam", "c1")
	require.NoError(t, err)
	assert.Zero(t, ranked)
	assert.Zero(t, standings.calls)
}

func TestRankAllClassesContinuesOnFailure(t *testing.T) {
	results := &mockRankingResults{
		results: []models.ExamResult{
			approvedResult("stu-a", "math", "c1", 90),
			approvedResult("stu-b", "math", "c3", 70),
		},
		classes:   []string{"c1", "c2", "c3"},
		failClass: "c2",
	}
	svc := NewRankingService(results, &mockSubjectRankings{}, &mockStandingsWriter{}, nil, zap.NewNop())

	report, err := svc.RankAllClasses(context.Background(), "exam")
	require.NoError(t, err)
	assert.Equal(t, 3, report.ClassesFound)
	assert.Equal(t, 2, report.ClassesRanked)
	assert.Equal(t, []string{"c2"}, report.FailedClasses)
}
