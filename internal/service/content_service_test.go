package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/geometria-labs/geometria-api/internal/models"
)

type countingWorksheetRepo struct {
	worksheets map[uint]models.Worksheet
	loads      int
}

func (s *countingWorksheetRepo) GetByID(_ context.Context, id uint) (models.Worksheet, error) {
	s.loads++
	worksheet, ok := s.worksheets[id]
	if !ok {
		return models.Worksheet{}, gorm.ErrRecordNotFound
	}
	return worksheet, nil
}

func (s *countingWorksheetRepo) GetByType(_ context.Context, geometryType string) (models.Worksheet, error) {
	s.loads++
	for _, worksheet := range s.worksheets {
		if worksheet.GeometryType == geometryType {
			return worksheet, nil
		}
	}
	return models.Worksheet{}, gorm.ErrRecordNotFound
}

func (s *countingWorksheetRepo) Create(_ context.Context, worksheet *models.Worksheet) error {
	s.worksheets[worksheet.ID] = *worksheet
	return nil
}

func testCatalogRepo() *countingWorksheetRepo {
	return &countingWorksheetRepo{worksheets: map[uint]models.Worksheet{
		1: {ID: 1, Title: "Exploring Cylinder Volume", GeometryType: models.GeometryCylinder, StageCount: models.DefaultStageCount},
	}}
}

func TestGetWorksheetCachesAfterFirstLoad(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	repo := testCatalogRepo()

	svc := NewContentService(repo, client, time.Minute, zerolog.Nop())

	first, err := svc.GetWorksheet(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 1, repo.loads)

	second, err := svc.GetWorksheet(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 1, repo.loads)
	require.Equal(t, first, second)

	require.True(t, server.Exists("worksheet:id:1"))
}

func TestGetWorksheetByTypeUsesSeparateKey(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	repo := testCatalogRepo()

	svc := NewContentService(repo, client, time.Minute, zerolog.Nop())

	_, err := svc.GetWorksheetByType(context.Background(), models.GeometryCylinder)
	require.NoError(t, err)
	require.True(t, server.Exists("worksheet:type:cylinder"))
}

func TestGetWorksheetExpiredCacheReloads(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	repo := testCatalogRepo()

	svc := NewContentService(repo, client, time.Minute, zerolog.Nop())

	_, err := svc.GetWorksheet(context.Background(), 1)
	require.NoError(t, err)

	server.FastForward(2 * time.Minute)

	_, err = svc.GetWorksheet(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 2, repo.loads)
}

func TestGetWorksheetWithoutCacheClient(t *testing.T) {
	repo := testCatalogRepo()
	svc := NewContentService(repo, nil, time.Minute, zerolog.Nop())

	_, err := svc.GetWorksheet(context.Background(), 1)
	require.NoError(t, err)
	_, err = svc.GetWorksheet(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 2, repo.loads)
}

func TestGetWorksheetUnknownID(t *testing.T) {
	svc := NewContentService(testCatalogRepo(), nil, time.Minute, zerolog.Nop())

	_, err := svc.GetWorksheet(context.Background(), 404)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
