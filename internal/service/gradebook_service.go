package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/noah-isme/mathla-api/internal/dto"
	"github.com/noah-isme/mathla-api/internal/models"
	"github.com/noah-isme/mathla-api/internal/observability"
	"github.com/noah-isme/mathla-api/internal/repository"
)

// GradebookStatusNotStarted and GradebookStatusMissing describe roster entries
// that have no submission yet.
const (
	GradebookStatusNotStarted = "NOT_STARTED"
	GradebookStatusMissing    = "MISSING"
)

// GradebookCache stores rendered gradebooks in redis. A nil client disables it.
type GradebookCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewGradebookCache builds the cache wrapper.
func NewGradebookCache(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *GradebookCache {
	return &GradebookCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "gradebook_cache").Logger(),
	}
}

func gradebookCacheKey(studentID uint) string {
	return fmt.Sprintf("gradebook:student:%d", studentID)
}

// Get returns a cached gradebook and whether it was found.
func (c *GradebookCache) Get(ctx context.Context, studentID uint) (dto.GradebookResponse, bool) {
	if c == nil || c.client == nil {
		return dto.GradebookResponse{}, false
	}

	cached, err := c.client.Get(ctx, gradebookCacheKey(studentID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Msg("failed to read gradebook cache")
		}
		observability.GradebookCacheLookups().WithLabelValues("miss").Inc()
		return dto.GradebookResponse{}, false
	}

	var response dto.GradebookResponse
	if err := json.Unmarshal([]byte(cached), &response); err != nil {
		c.logger.Warn().Err(err).Msg("discarding malformed gradebook cache entry")
		observability.GradebookCacheLookups().WithLabelValues("miss").Inc()
		return dto.GradebookResponse{}, false
	}

	observability.GradebookCacheLookups().WithLabelValues("hit").Inc()
	return response, true
}

// Set stores the gradebook for the configured TTL.
func (c *GradebookCache) Set(ctx context.Context, studentID uint, response dto.GradebookResponse) {
	if c == nil || c.client == nil {
		return
	}

	payload, err := json.Marshal(response)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, gradebookCacheKey(studentID), payload, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("failed to store gradebook cache")
	}
}

// Invalidate drops cached gradebooks for the given students.
func (c *GradebookCache) Invalidate(ctx context.Context, studentIDs ...uint) {
	if c == nil || c.client == nil || len(studentIDs) == 0 {
		return
	}

	keys := make([]string, 0, len(studentIDs))
	for _, id := range studentIDs {
		keys = append(keys, gradebookCacheKey(id))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("failed to invalidate gradebook cache")
	}
}

// DueTransitionMaterializer applies pending deadline transitions to a set of submissions.
type DueTransitionMaterializer interface {
	MaterializeDueTransitions(ctx context.Context, caller Caller, submissions []models.Submission) (int, error)
}

// GradebookService renders a student's assignments alongside their latest submissions.
type GradebookService interface {
	GetGradebook(ctx context.Context, caller Caller, studentID uint) (dto.GradebookResponse, error)
}

type gradebookService struct {
	users        repository.UserRepository
	roster       repository.RosterRepository
	submissions  repository.SubmissionRepository
	materializer DueTransitionMaterializer
	cache        *GradebookCache
	logger       zerolog.Logger
	now          func() time.Time
}

// NewGradebookService builds the gradebook aggregator.
func NewGradebookService(users repository.UserRepository, roster repository.RosterRepository, submissions repository.SubmissionRepository, materializer DueTransitionMaterializer, cache *GradebookCache, logger zerolog.Logger) GradebookService {
	return &gradebookService{
		users:        users,
		roster:       roster,
		submissions:  submissions,
		materializer: materializer,
		cache:        cache,
		logger:       logger.With().Str("component", "gradebook_service").Logger(),
		now:          time.Now,
	}
}

func (s *gradebookService) GetGradebook(ctx context.Context, caller Caller, studentID uint) (dto.GradebookResponse, error) {
	if caller.IsStudent() && caller.UserID != studentID {
		return dto.GradebookResponse{}, ErrNotOwner.WithMessage("students can only view their own gradebook")
	}

	student, err := s.users.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.GradebookResponse{}, ErrStudentNotFound
		}
		return dto.GradebookResponse{}, err
	}

	filter := repository.SubmissionFilter{StudentID: &studentID}
	submissions, err := s.submissions.List(ctx, filter)
	if err != nil {
		return dto.GradebookResponse{}, err
	}

	changed, err := s.materializer.MaterializeDueTransitions(ctx, caller, submissions)
	if err != nil {
		return dto.GradebookResponse{}, err
	}

	if changed == 0 {
		if cached, ok := s.cache.Get(ctx, studentID); ok {
			cached.CacheHit = true
			s.logger.Debug().Uint("student_id", studentID).Msg("gradebook cache hit")
			return cached, nil
		}
	} else {
		submissions, err = s.submissions.List(ctx, filter)
		if err != nil {
			return dto.GradebookResponse{}, err
		}
	}

	links, err := s.roster.ListByStudent(ctx, studentID)
	if err != nil {
		return dto.GradebookResponse{}, err
	}

	response := s.buildResponse(student, links, submissions)
	s.cache.Set(ctx, studentID, response)

	return response, nil
}

func (s *gradebookService) buildResponse(student models.User, links []models.AssignmentStudent, submissions []models.Submission) dto.GradebookResponse {
	now := s.now()

	// submissions arrive newest first, so the first row per assignment is the latest.
	latest := map[uint]models.Submission{}
	for _, submission := range submissions {
		if _, exists := latest[submission.AssignmentID]; !exists {
			latest[submission.AssignmentID] = submission
		}
	}

	summary := dto.GradebookSummary{Assigned: len(links)}
	entries := make([]dto.GradebookEntry, 0, len(links))
	scoreTotal := decimal.Zero
	scored := 0

	for _, link := range links {
		effective := link.DueAt
		if effective == nil {
			effective = link.Assignment.DueAt
		}
		pastDue := isPast(now, effective)

		entry := dto.GradebookEntry{
			AssignmentID:   link.AssignmentID,
			Title:          link.Assignment.Title,
			DueAt:          dto.FormatInstant(link.Assignment.DueAt),
			StudentDueAt:   dto.FormatInstant(link.DueAt),
			EffectiveDueAt: dto.FormatInstant(effective),
		}

		submission, found := latest[link.AssignmentID]
		if !found {
			entry.Status = GradebookStatusNotStarted
			if pastDue {
				entry.Status = GradebookStatusMissing
				entry.Overdue = true
				summary.Missing++
			}
			entries = append(entries, entry)
			continue
		}

		id := submission.ID
		entry.SubmissionID = &id
		entry.Status = string(submission.Status)
		entry.Score = dto.FormatScore(submission)
		entry.ReviewNote = submission.ReviewNote
		entry.Overdue = pastDue && submission.IsDraft()

		switch submission.Status {
		case models.SubmissionStatusDraft:
			summary.Drafts++
		case models.SubmissionStatusSubmitted:
			summary.Submitted++
		case models.SubmissionStatusGraded:
			summary.Graded++
			if submission.Score.Valid {
				scoreTotal = scoreTotal.Add(submission.Score.Decimal)
				scored++
			}
		}

		entries = append(entries, entry)
	}

	if scored > 0 {
		average := scoreTotal.Div(decimal.NewFromInt(int64(scored))).StringFixed(models.ScoreScale)
		summary.AverageScore = &average
	}

	return dto.GradebookResponse{
		StudentID:   student.ID,
		StudentName: student.DisplayName(),
		Summary:     summary,
		Entries:     entries,
		GeneratedAt: now.UTC(),
	}
}
