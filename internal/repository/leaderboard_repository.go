package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/stemsi/exam-engine/internal/model"
)

// LeaderboardRepository handles leaderboard data access.
type LeaderboardRepository struct {
	db DBTX
}

// NewLeaderboardRepository creates a new LeaderboardRepository.
func NewLeaderboardRepository(db DBTX) *LeaderboardRepository {
	return &LeaderboardRepository{db: db}
}

// Upsert keeps the higher score atomically: the conflict update only fires
// when the stored score is strictly lower.
func (r *LeaderboardRepository) Upsert(ctx context.Context, e *model.LeaderboardEntry) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO leaderboard_entries (exam_id, user_id, attempt_id, score, rank, percentile,
		                                  accuracy, time_spent_seconds, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (exam_id, user_id) DO UPDATE
		 SET attempt_id         = EXCLUDED.attempt_id,
		     score              = EXCLUDED.score,
		     rank               = EXCLUDED.rank,
		     percentile         = EXCLUDED.percentile,
		     accuracy           = EXCLUDED.accuracy,
		     time_spent_seconds = EXCLUDED.time_spent_seconds,
		     updated_at         = EXCLUDED.updated_at
		 WHERE leaderboard_entries.score < EXCLUDED.score`,
		e.ExamID, e.UserID, e.AttemptID, e.Score, e.Rank, e.Percentile,
		e.Accuracy, e.TimeSpentSeconds, e.UpdatedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Top returns the best entries of an exam with their current display rank.
func (r *LeaderboardRepository) Top(ctx context.Context, examID uuid.UUID, limit int) ([]model.LeaderboardEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT exam_id, user_id, attempt_id, score::float8,
		        ROW_NUMBER() OVER (ORDER BY score DESC, time_spent_seconds ASC, updated_at ASC)::int,
		        percentile::float8, accuracy::float8, time_spent_seconds, updated_at
		 FROM leaderboard_entries
		 WHERE exam_id = $1
		 ORDER BY score DESC, time_spent_seconds ASC, updated_at ASC
		 LIMIT $2`, examID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.LeaderboardEntry
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(&e.ExamID, &e.UserID, &e.AttemptID, &e.Score, &e.Rank,
			&e.Percentile, &e.Accuracy, &e.TimeSpentSeconds, &e.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Get returns one user's entry with its current display rank.
func (r *LeaderboardRepository) Get(ctx context.Context, examID, userID uuid.UUID) (*model.LeaderboardEntry, error) {
	e := &model.LeaderboardEntry{}
	err := r.db.QueryRow(ctx,
		`SELECT l.exam_id, l.user_id, l.attempt_id, l.score::float8,
		        (SELECT COUNT(*) + 1 FROM leaderboard_entries o
		         WHERE o.exam_id = l.exam_id
		           AND (o.score > l.score
		                OR (o.score = l.score AND o.time_spent_seconds < l.time_spent_seconds)
		                OR (o.score = l.score AND o.time_spent_seconds = l.time_spent_seconds
		                    AND o.updated_at < l.updated_at)))::int,
		        l.percentile::float8, l.accuracy::float8, l.time_spent_seconds, l.updated_at
		 FROM leaderboard_entries l
		 WHERE l.exam_id = $1 AND l.user_id = $2`, examID, userID,
	).Scan(&e.ExamID, &e.UserID, &e.AttemptID, &e.Score, &e.Rank,
		&e.Percentile, &e.Accuracy, &e.TimeSpentSeconds, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}
