package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/geometria-labs/geometria-api/internal/models"
	"github.com/geometria-labs/geometria-api/internal/repository"
)

// SeedService provisions the baseline content catalog: one guided worksheet per
// geometry solid and the default grading rubric. Seeding is idempotent.
type SeedService interface {
	Seed(ctx context.Context) error
}

type seedService struct {
	worksheets repository.WorksheetRepository
	rubrics    repository.RubricRepository
	logger     zerolog.Logger
}

// NewSeedService constructs a SeedService instance.
func NewSeedService(worksheetRepo repository.WorksheetRepository, rubricRepo repository.RubricRepository, logger zerolog.Logger) SeedService {
	return &seedService{
		worksheets: worksheetRepo,
		rubrics:    rubricRepo,
		logger:     logger.With().Str("component", "seed_service").Logger(),
	}
}

func (s *seedService) Seed(ctx context.Context) error {
	for _, worksheet := range catalogWorksheets() {
		if _, err := s.worksheets.GetByType(ctx, worksheet.GeometryType); err == nil {
			continue
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check worksheet catalog: %w", err)
		}

		if err := s.worksheets.Create(ctx, &worksheet); err != nil {
			return fmt.Errorf("failed to seed %s worksheet: %w", worksheet.GeometryType, err)
		}
		s.logger.Info().Str("geometry_type", worksheet.GeometryType).Msg("worksheet seeded")
	}

	if _, err := s.rubrics.GetByID(ctx, 1); err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check rubric catalog: %w", err)
		}

		rubric := models.Rubric{Name: "Geometry Essay Rubric"}
		rubric.SetCriteria(models.DefaultRubricCriteria())
		if err := s.rubrics.Create(ctx, &rubric); err != nil {
			return fmt.Errorf("failed to seed default rubric: %w", err)
		}
		s.logger.Info().Uint("rubric_id", rubric.ID).Msg("default rubric seeded")
	}

	return nil
}

func catalogWorksheets() []models.Worksheet {
	return []models.Worksheet{
		{
			Title:        "Exploring Cylinder Volume",
			GeometryType: models.GeometryCylinder,
			StageCount:   models.DefaultStageCount,
			Sections: []models.WorksheetSection{
				{Position: 0, Title: "What is a cylinder?", Type: models.SectionTypeIntro, InputKind: models.SectionInputNone, Content: "A cylinder has two parallel circular bases connected by a curved surface."},
				{Position: 1, Title: "Measure your cylinder", Type: models.SectionTypeActivity, InputKind: models.SectionInputData, Content: "Measure the radius and height of the cylinder model on your desk."},
				{Position: 2, Title: "Fill and count", Type: models.SectionTypeActivity, InputKind: models.SectionInputData, Content: "Fill the cylinder with unit cubes of water and record the volume."},
				{Position: 3, Title: "What did you notice?", Type: models.SectionTypeObservation, InputKind: models.SectionInputText, Content: "Describe how the measured volume relates to the base area."},
				{Position: 4, Title: "Derive the formula", Type: models.SectionTypeAnalysis, InputKind: models.SectionInputText, Content: "Express the volume in terms of radius and height."},
				{Position: 5, Title: "Wrap up", Type: models.SectionTypeConclusion, InputKind: models.SectionInputText, Content: "Summarize the cylinder volume formula in your own words."},
			},
		},
		{
			Title:        "Exploring Cone Volume",
			GeometryType: models.GeometryCone,
			StageCount:   models.DefaultStageCount,
			Sections: []models.WorksheetSection{
				{Position: 0, Title: "What is a cone?", Type: models.SectionTypeIntro, InputKind: models.SectionInputNone, Content: "A cone has one circular base and a single apex."},
				{Position: 1, Title: "Compare with a cylinder", Type: models.SectionTypeActivity, InputKind: models.SectionInputData, Content: "Use a cone and a cylinder with the same base and height."},
				{Position: 2, Title: "Pour and repeat", Type: models.SectionTypeActivity, InputKind: models.SectionInputData, Content: "Count how many cone volumes fill the cylinder."},
				{Position: 3, Title: "What did you notice?", Type: models.SectionTypeObservation, InputKind: models.SectionInputText, Content: "Describe the ratio between the cone and cylinder volumes."},
				{Position: 4, Title: "Derive the formula", Type: models.SectionTypeAnalysis, InputKind: models.SectionInputText, Content: "Express the cone volume using the cylinder formula."},
				{Position: 5, Title: "Wrap up", Type: models.SectionTypeConclusion, InputKind: models.SectionInputText, Content: "Summarize the cone volume formula in your own words."},
			},
		},
		{
			Title:        "Exploring Sphere Volume",
			GeometryType: models.GeometrySphere,
			StageCount:   models.DefaultStageCount,
			Sections: []models.WorksheetSection{
				{Position: 0, Title: "What is a sphere?", Type: models.SectionTypeIntro, InputKind: models.SectionInputNone, Content: "Every point on a sphere's surface is the same distance from its center."},
				{Position: 1, Title: "Compare with a cone", Type: models.SectionTypeActivity, InputKind: models.SectionInputData, Content: "Use a hemisphere and a cone with matching radius and height."},
				{Position: 2, Title: "Pour and measure", Type: models.SectionTypeActivity, InputKind: models.SectionInputData, Content: "Record how the hemisphere volume compares to the cone volume."},
				{Position: 3, Title: "What did you notice?", Type: models.SectionTypeObservation, InputKind: models.SectionInputText, Content: "Describe the relationship you measured."},
				{Position: 4, Title: "Derive the formula", Type: models.SectionTypeAnalysis, InputKind: models.SectionInputText, Content: "Express the sphere volume in terms of its radius."},
				{Position: 5, Title: "Wrap up", Type: models.SectionTypeConclusion, InputKind: models.SectionInputText, Content: "Summarize the sphere volume formula in your own words."},
			},
		},
	}
}
