package classifier

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/civicgrid/platform/internal/report/domain"
	"github.com/civicgrid/platform/internal/shared/config"
	"github.com/civicgrid/platform/internal/shared/metrics"
	"github.com/civicgrid/platform/internal/shared/types"
)

// Classification is what gets stamped onto a new report.
type Classification struct {
	Priority     domain.Priority
	Category     string
	DepartmentID *types.ID
}

// DefaultClassification is used whenever the classifier is disabled or
// unreachable.
func DefaultClassification() Classification {
	return Classification{
		Priority: domain.PriorityMedium,
		Category: domain.DefaultCategory,
	}
}

// Service classifies report text and resolves the predicted community
// to a department. All errors are absorbed into the default result.
type Service struct {
	client      *Client
	departments domain.DepartmentResolver
	scale       string
	enabled     bool
	logger      *zap.Logger
}

func NewService(cfg config.ClassifierConfig, departments domain.DepartmentResolver, logger *zap.Logger) *Service {
	return &Service{
		client:      NewClient(cfg),
		departments: departments,
		scale:       cfg.Scale,
		enabled:     cfg.Enabled,
		logger:      logger,
	}
}

// Classify prioritizes and categorizes the report text. It never
// returns an error: callers always get a usable classification.
func (s *Service) Classify(ctx context.Context, title, description string) Classification {
	if !s.enabled {
		return DefaultClassification()
	}

	start := time.Now()
	prediction, err := s.client.Prioritize(ctx, title+" "+description)
	if err != nil {
		metrics.RecordClassification("error", time.Since(start))
		s.logger.Warn("classifier unavailable, using defaults", zap.Error(err))
		return DefaultClassification()
	}
	metrics.RecordClassification("success", time.Since(start))

	result := Classification{
		Priority: domain.PriorityMedium,
		Category: domain.DefaultCategory,
	}

	// A missing or zero score keeps the Medium default.
	if score := prediction.PriorityScore; score != nil && *score != 0 {
		result.Priority = MapPriorityScore(*score, s.scale)
	}

	if prediction.CommunityName != "" {
		result.Category = prediction.CommunityName

		deptID, found, err := s.departments.ResolveName(ctx, prediction.CommunityName)
		if err != nil {
			s.logger.Warn("department resolution failed",
				zap.String("community", prediction.CommunityName),
				zap.Error(err))
		} else if found {
			result.DepartmentID = &deptID
		}
	}

	return result
}
