package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
	"live-quiz-service/internal/domain"
)

const uniqueViolation = "23505"

type participantRow struct {
	bun.BaseModel `bun:"table:participants,alias:p"`

	ID               uuid.UUID             `bun:"id,pk,type:uuid"`
	DisplayName      string                `bun:"display_name,notnull"`
	ContactHandle    string                `bun:"contact_handle,notnull"`
	Phone            string                `bun:"phone,notnull"`
	Score            int                   `bun:"score,notnull"`
	TotalTimeSeconds float64               `bun:"total_time_seconds,notnull"`
	Completed        bool                  `bun:"completed,notnull"`
	Answers          []domain.AnswerRecord `bun:"answers,type:jsonb,notnull"`
	RegisteredAt     time.Time             `bun:"registered_at,notnull"`
	CompletedAt      *time.Time            `bun:"completed_at"`
}

func (r participantRow) toDomain() domain.Participant {
	answers := r.Answers
	if answers == nil {
		answers = []domain.AnswerRecord{}
	}
	return domain.Participant{
		ID:               r.ID.String(),
		DisplayName:      r.DisplayName,
		ContactHandle:    r.ContactHandle,
		Phone:            r.Phone,
		Score:            r.Score,
		TotalTimeSeconds: r.TotalTimeSeconds,
		Completed:        r.Completed,
		Answers:          answers,
		RegisteredAt:     r.RegisteredAt,
		CompletedAt:      r.CompletedAt,
	}
}

// ParticipantStore persists participants in Postgres. Uniqueness is the contact_handle unique index;
// write-once completion is a conditional UPDATE guarded by completed = FALSE.
type ParticipantStore struct {
	db *bun.DB
}

func NewParticipantStore(db *bun.DB) *ParticipantStore {
	return &ParticipantStore{db: db}
}

func (s *ParticipantStore) Create(ctx context.Context, p domain.Participant) (domain.Participant, error) {
	row := &participantRow{
		ID:            uuid.New(),
		DisplayName:   p.DisplayName,
		ContactHandle: p.ContactHandle,
		Phone:         p.Phone,
		Answers:       []domain.AnswerRecord{},
		RegisteredAt:  p.RegisteredAt,
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.Participant{}, domain.ErrDuplicateParticipant
		}
		return domain.Participant{}, domain.StorageFailure("insert participant", err)
	}
	return row.toDomain(), nil
}

func (s *ParticipantStore) Get(ctx context.Context, id string) (domain.Participant, error) {
	pid, err := uuid.Parse(id)
	if err != nil {
		return domain.Participant{}, domain.ErrInvalidParticipantID
	}
	row := new(participantRow)
	if err := s.db.NewSelect().Model(row).Where("id = ?", pid).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Participant{}, domain.ErrParticipantNotFound
		}
		return domain.Participant{}, domain.StorageFailure("select participant", err)
	}
	return row.toDomain(), nil
}

func (s *ParticipantStore) Complete(ctx context.Context, id string, c domain.Completion, at time.Time) (domain.Participant, error) {
	pid, err := uuid.Parse(id)
	if err != nil {
		return domain.Participant{}, domain.ErrInvalidParticipantID
	}
	answers, err := json.Marshal(c.Answers)
	if err != nil {
		return domain.Participant{}, domain.Invalid("answers: %v", err)
	}

	row := new(participantRow)
	err = s.db.NewUpdate().
		Model(row).
		Set("score = ?", c.Score).
		Set("total_time_seconds = ?", c.TotalTimeSeconds).
		Set("answers = ?::jsonb", string(answers)).
		Set("completed = TRUE").
		Set("completed_at = ?", at).
		Where("id = ?", pid).
		Where("completed = FALSE").
		Returning("*").
		Scan(ctx)
	if err == nil {
		return row.toDomain(), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Participant{}, domain.StorageFailure("complete participant", err)
	}

	// Nothing updated: either unknown or already completed.
	existing, err := s.Get(ctx, id)
	if err != nil {
		return domain.Participant{}, err
	}
	return existing, domain.ErrAlreadyCompleted
}

func (s *ParticipantStore) List(ctx context.Context) ([]domain.Participant, error) {
	var rows []participantRow
	if err := s.db.NewSelect().Model(&rows).Order("registered_at ASC", "id ASC").Scan(ctx); err != nil {
		return nil, domain.StorageFailure("list participants", err)
	}
	out := make([]domain.Participant, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == uniqueViolation
}
