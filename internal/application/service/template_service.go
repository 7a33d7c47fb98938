package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/payhub/approval-engine/internal/application/port"
	"github.com/payhub/approval-engine/internal/domain/entity"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// TemplateService manages workflow templates and resolves the template a
// payment should be approved under.
type TemplateService interface {
	CreateTemplate(ctx context.Context, tpl *entity.WorkflowTemplate) (*entity.WorkflowTemplate, error)
	ListTemplates(ctx context.Context, includeInactive bool) ([]*entity.WorkflowTemplate, error)
	DeactivateTemplate(ctx context.Context, id int64) error

	// SelectTemplate returns the highest-priority active template matching
	// the given payment dimensions, ties broken by newest creation. Returns
	// ErrTemplateNotFound when nothing matches; the caller decides whether
	// that means "no approval required" or "block the payment".
	SelectTemplate(ctx context.Context, invoiceTypeID, contractorTypeID int64, projectID *int64) (*entity.WorkflowTemplate, error)
}

type templateServiceImpl struct {
	templateRepo port.TemplateRepository
	cache        *TemplateCache
	logger       Logger
}

// NewTemplateService creates a new TemplateService. The cache is owned by
// the caller so its lifetime and TTL are explicit.
func NewTemplateService(templateRepo port.TemplateRepository, cache *TemplateCache, logger Logger) TemplateService {
	return &templateServiceImpl{
		templateRepo: templateRepo,
		cache:        cache,
		logger:       logger,
	}
}

// CreateTemplate validates and persists a template with its ordered stages.
func (s *templateServiceImpl) CreateTemplate(ctx context.Context, tpl *entity.WorkflowTemplate) (*entity.WorkflowTemplate, error) {
	if err := validateTemplate(tpl); err != nil {
		return nil, err
	}

	if err := s.templateRepo.Create(ctx, tpl); err != nil {
		s.logger.Error("Failed to create template", "error", err, "name", tpl.Name)
		return nil, err
	}

	s.cache.Invalidate()
	s.logger.Info("Template created", "id", tpl.ID, "name", tpl.Name, "stages", len(tpl.Stages))
	return tpl, nil
}

// ListTemplates retrieves templates, optionally including disabled ones.
func (s *templateServiceImpl) ListTemplates(ctx context.Context, includeInactive bool) ([]*entity.WorkflowTemplate, error) {
	templates, err := s.templateRepo.List(ctx, includeInactive)
	if err != nil {
		s.logger.Error("Failed to list templates", "error", err)
		return nil, err
	}
	return templates, nil
}

// DeactivateTemplate soft-disables a template. Existing instances keep
// referencing it; only new template resolution stops considering it.
func (s *templateServiceImpl) DeactivateTemplate(ctx context.Context, id int64) error {
	existing, err := s.templateRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrTemplateNotFound
	}

	if err := s.templateRepo.SetActive(ctx, id, false); err != nil {
		// The template can vanish between the existence check and the update.
		if errors.Is(err, port.ErrNotFound) {
			return ErrTemplateNotFound
		}
		s.logger.Error("Failed to deactivate template", "error", err, "id", id)
		return err
	}

	s.cache.Invalidate()
	s.logger.Info("Template deactivated", "id", id)
	return nil
}

// SelectTemplate resolves the template for a payment's dimensions.
func (s *templateServiceImpl) SelectTemplate(ctx context.Context, invoiceTypeID, contractorTypeID int64, projectID *int64) (*entity.WorkflowTemplate, error) {
	templates, err := s.cache.Get(ctx, s.templateRepo.ListActive)
	if err != nil {
		s.logger.Error("Failed to load active templates", "error", err)
		return nil, err
	}

	var matches []*entity.WorkflowTemplate
	for _, tpl := range templates {
		if tpl.Matches(invoiceTypeID, contractorTypeID, projectID) {
			matches = append(matches, tpl)
		}
	}

	if len(matches) == 0 {
		return nil, ErrTemplateNotFound
	}

	// Highest priority wins; ties broken by most recent creation.
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Priority != matches[j].Priority {
			return matches[i].Priority > matches[j].Priority
		}
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})

	return matches[0], nil
}

// validateTemplate rejects malformed templates before touching storage.
func validateTemplate(tpl *entity.WorkflowTemplate) error {
	if tpl.Name == "" {
		return fmt.Errorf("%w: template name is required", ErrInvalidInput)
	}
	if len(tpl.Stages) == 0 {
		return fmt.Errorf("%w: template must define at least one stage", ErrInvalidInput)
	}

	seen := make(map[int]bool, len(tpl.Stages))
	for _, stage := range tpl.Stages {
		if stage.Name == "" {
			return fmt.Errorf("%w: stage name is required", ErrInvalidInput)
		}
		if stage.Position < 1 || stage.Position > len(tpl.Stages) {
			return fmt.Errorf("%w: stage position %d out of range", ErrInvalidInput, stage.Position)
		}
		if seen[stage.Position] {
			return fmt.Errorf("%w: duplicate stage position %d", ErrInvalidInput, stage.Position)
		}
		seen[stage.Position] = true
	}

	return nil
}
