package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/geometria-labs/geometria-api/internal/models"
	"github.com/geometria-labs/geometria-api/internal/repository"
)

// ContentService serves the read-only worksheet catalog with a Redis read cache.
type ContentService interface {
	GetWorksheet(ctx context.Context, id uint) (models.Worksheet, error)
	GetWorksheetByType(ctx context.Context, geometryType string) (models.Worksheet, error)
}

type contentService struct {
	worksheets repository.WorksheetRepository
	cache      *redis.Client
	cacheTTL   time.Duration
	logger     zerolog.Logger
}

// NewContentService builds the cached catalog reader. A nil cache client
// disables caching.
func NewContentService(worksheetRepo repository.WorksheetRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) ContentService {
	return &contentService{
		worksheets: worksheetRepo,
		cache:      cache,
		cacheTTL:   ttl,
		logger:     logger.With().Str("component", "content_service").Logger(),
	}
}

func (s *contentService) GetWorksheet(ctx context.Context, id uint) (models.Worksheet, error) {
	key := fmt.Sprintf("worksheet:id:%d", id)
	return s.cached(ctx, key, func() (models.Worksheet, error) {
		return s.worksheets.GetByID(ctx, id)
	})
}

func (s *contentService) GetWorksheetByType(ctx context.Context, geometryType string) (models.Worksheet, error) {
	key := "worksheet:type:" + geometryType
	return s.cached(ctx, key, func() (models.Worksheet, error) {
		return s.worksheets.GetByType(ctx, geometryType)
	})
}

func (s *contentService) cached(ctx context.Context, key string, load func() (models.Worksheet, error)) (models.Worksheet, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key).Result(); err == nil {
			var worksheet models.Worksheet
			if unmarshalErr := json.Unmarshal([]byte(raw), &worksheet); unmarshalErr == nil {
				s.logger.Debug().Str("key", key).Msg("worksheet cache hit")
				return worksheet, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("failed to read worksheet cache")
		}
	}

	worksheet, err := load()
	if err != nil {
		return models.Worksheet{}, err
	}

	if s.cache != nil {
		if payload, err := json.Marshal(worksheet); err == nil {
			if err := s.cache.Set(ctx, key, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Str("key", key).Msg("failed to store worksheet cache")
			}
		}
	}

	return worksheet, nil
}
