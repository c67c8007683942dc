package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exam-engine/internal/config"
	"github.com/stemsi/exam-engine/internal/model"
)

// PaperReader is the read-only boundary to question papers and the catalog.
type PaperReader interface {
	Items(ctx context.Context, paperID uuid.UUID) ([]model.PaperItem, error)
	CatalogQuestions(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.CatalogQuestion, error)
}

// PaperRepository reads papers and catalog questions from PostgreSQL.
type PaperRepository struct {
	db DBTX
}

// NewPaperRepository creates a new PaperRepository.
func NewPaperRepository(db DBTX) *PaperRepository {
	return &PaperRepository{db: db}
}

// Items returns a paper's items ordered by position.
func (r *PaperRepository) Items(ctx context.Context, paperID uuid.UUID) ([]model.PaperItem, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, paper_id, position, marks::float8, time_limit_seconds, is_custom, question_id, custom_payload
		 FROM paper_items
		 WHERE paper_id = $1
		 ORDER BY position`, paperID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.PaperItem
	for rows.Next() {
		var it model.PaperItem
		var payload []byte
		if err := rows.Scan(&it.ID, &it.PaperID, &it.Position, &it.Marks, &it.TimeLimitSeconds,
			&it.IsCustom, &it.QuestionID, &payload); err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			var cq model.CustomQuestion
			if err := json.Unmarshal(payload, &cq); err != nil {
				return nil, fmt.Errorf("decode custom payload of item %s: %w", it.ID, err)
			}
			it.Custom = &cq
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// CatalogQuestions loads the requested catalog questions keyed by id.
func (r *PaperRepository) CatalogQuestions(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.CatalogQuestion, error) {
	out := make(map[uuid.UUID]*model.CatalogQuestion, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, question_text, option_a, option_b, option_c, option_d, correct_answer, has_image, image_url
		 FROM catalog_questions
		 WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		q := &model.CatalogQuestion{}
		if err := rows.Scan(&q.ID, &q.Text, &q.Options.A, &q.Options.B, &q.Options.C, &q.Options.D,
			&q.CorrectAnswer, &q.HasImage, &q.ImageURL); err != nil {
			return nil, err
		}
		out[q.ID] = q
	}
	return out, rows.Err()
}

// CachedPaperRepository serves papers from Redis, loading misses from the
// underlying reader. Papers are immutable once an exam is live, so entries
// simply expire after ttl.
type CachedPaperRepository struct {
	next PaperReader
	rdb  *redis.Client
	ttl  time.Duration
	log  zerolog.Logger
}

// NewCachedPaperRepository wraps next with a Redis cache.
func NewCachedPaperRepository(next PaperReader, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *CachedPaperRepository {
	return &CachedPaperRepository{
		next: next,
		rdb:  rdb,
		ttl:  ttl,
		log:  log.With().Str("component", "paper_cache").Logger(),
	}
}

// Items returns the paper's items, from cache when present.
func (r *CachedPaperRepository) Items(ctx context.Context, paperID uuid.UUID) ([]model.PaperItem, error) {
	key := config.CacheKey.PaperItemsKey(paperID.String())

	data, err := r.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var items []model.PaperItem
		if err := json.Unmarshal(data, &items); err == nil {
			return items, nil
		}
		r.log.Warn().Str("paper_id", paperID.String()).Msg("Corrupt cached paper, reloading")
	} else if !errors.Is(err, redis.Nil) {
		r.log.Warn().Err(err).Msg("Redis get failed, falling back to database")
	}

	items, err := r.next.Items(ctx, paperID)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(items); err == nil {
		if err := r.rdb.Set(ctx, key, payload, r.ttl).Err(); err != nil {
			r.log.Warn().Err(err).Msg("Failed to cache paper items")
		}
	}
	return items, nil
}

// CatalogQuestions fetches cached questions in one MGET and loads the
// misses from the underlying reader, writing them back through a pipeline.
func (r *CachedPaperRepository) CatalogQuestions(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.CatalogQuestion, error) {
	out := make(map[uuid.UUID]*model.CatalogQuestion, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = config.CacheKey.CatalogQuestionKey(id.String())
	}

	var missing []uuid.UUID
	vals, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		r.log.Warn().Err(err).Msg("Redis mget failed, falling back to database")
		missing = ids
	} else {
		for i, v := range vals {
			s, ok := v.(string)
			if !ok {
				missing = append(missing, ids[i])
				continue
			}
			q := &model.CatalogQuestion{}
			if err := json.Unmarshal([]byte(s), q); err != nil {
				missing = append(missing, ids[i])
				continue
			}
			out[ids[i]] = q
		}
	}

	if len(missing) == 0 {
		return out, nil
	}

	loaded, err := r.next.CatalogQuestions(ctx, missing)
	if err != nil {
		return nil, err
	}

	pipe := r.rdb.Pipeline()
	for id, q := range loaded {
		out[id] = q
		if payload, err := json.Marshal(q); err == nil {
			pipe.Set(ctx, config.CacheKey.CatalogQuestionKey(id.String()), payload, r.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		r.log.Warn().Err(err).Msg("Failed to cache catalog questions")
	}

	r.log.Debug().Int("hits", len(ids)-len(missing)).Int("loaded", len(loaded)).Msg("Catalog lookup")
	return out, nil
}

// Invalidate drops a paper's cached items.
func (r *CachedPaperRepository) Invalidate(ctx context.Context, paperID uuid.UUID) error {
	return r.rdb.Del(ctx, config.CacheKey.PaperItemsKey(paperID.String())).Err()
}
