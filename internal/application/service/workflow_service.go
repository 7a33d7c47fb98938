package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/payhub/approval-engine/internal/application/port"
	"github.com/payhub/approval-engine/internal/domain/entity"
	domainwf "github.com/payhub/approval-engine/internal/domain/workflow"
)

// MaxPageSize bounds listActionable result-set cost.
const (
	MaxPageSize     = 50
	DefaultPageSize = 20
)

// StartRequest starts an approval workflow for a payment. TemplateID may be
// nil, in which case the template is resolved from the payment's dimensions.
type StartRequest struct {
	PaymentID  int64
	TemplateID *int64
	UserID     string
}

// Pagination controls listActionable paging and ordering.
type Pagination struct {
	Page  int
	Limit int
	Sort  string // started_at_desc (default), started_at_asc, amount_desc, amount_asc
}

// ActionablePage is one page of instances actionable by a user.
type ActionablePage struct {
	Instances []*entity.WorkflowInstance `json:"instances"`
	Page      int                        `json:"page"`
	Limit     int                        `json:"limit"`
	Total     int                        `json:"total"`
}

// EnrichedProgressEntry is a progress entry with the deciding user resolved.
type EnrichedProgressEntry struct {
	entity.ProgressEntry
	UserName  string `json:"user_name"`
	UserEmail string `json:"user_email"`
}

// History is the full audit view of one instance.
type History struct {
	Instance *entity.WorkflowInstance `json:"instance"`
	Stages   []entity.StageDefinition `json:"stages"`
	Progress []*EnrichedProgressEntry `json:"progress"`
}

// WorkflowService is the approval workflow engine: it creates instances,
// advances them through stages on decisions, and answers visibility queries.
type WorkflowService interface {
	Start(ctx context.Context, req StartRequest) (*entity.WorkflowInstance, error)
	Decide(ctx context.Context, instanceID int64, userID, action, note string) (*entity.WorkflowInstance, *entity.Transition, error)
	Cancel(ctx context.Context, instanceID int64, userID, reason string) (*entity.WorkflowInstance, error)
	ListActionable(ctx context.Context, userID string, p Pagination) (*ActionablePage, error)
	GetHistory(ctx context.Context, instanceID int64) (*History, error)
}

type workflowServiceImpl struct {
	instanceRepo port.InstanceRepository
	templateRepo port.TemplateRepository
	paymentRepo  port.PaymentRepository
	userRepo     port.UserRepository
	templateSvc  TemplateService
	txManager    port.TransactionManager
	notifier     NotificationService
	logger       Logger
}

// WorkflowOption configures the workflow service.
type WorkflowOption func(*workflowServiceImpl)

// WithNotifier sets the notification fan-out invoked after a stage is
// entered. Notification failures never fail the transition.
func WithNotifier(n NotificationService) WorkflowOption {
	return func(s *workflowServiceImpl) {
		s.notifier = n
	}
}

// NewWorkflowService creates the workflow engine.
func NewWorkflowService(
	instanceRepo port.InstanceRepository,
	templateRepo port.TemplateRepository,
	paymentRepo port.PaymentRepository,
	userRepo port.UserRepository,
	templateSvc TemplateService,
	txManager port.TransactionManager,
	logger Logger,
	opts ...WorkflowOption,
) WorkflowService {
	s := &workflowServiceImpl{
		instanceRepo: instanceRepo,
		templateRepo: templateRepo,
		paymentRepo:  paymentRepo,
		userRepo:     userRepo,
		templateSvc:  templateSvc,
		txManager:    txManager,
		logger:       logger,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start creates an in_progress instance at stage 1 for a payment.
func (s *workflowServiceImpl) Start(ctx context.Context, req StartRequest) (*entity.WorkflowInstance, error) {
	if req.PaymentID <= 0 {
		return nil, fmt.Errorf("%w: payment id is required", ErrInvalidInput)
	}
	if req.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	payment, err := s.paymentRepo.GetByID(ctx, req.PaymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}

	existing, err := s.instanceRepo.GetActiveByPaymentID(ctx, req.PaymentID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrPaymentHasActiveInstance
	}

	tpl, err := s.resolveTemplate(ctx, req, payment)
	if err != nil {
		return nil, err
	}
	if len(tpl.Stages) == 0 {
		return nil, ErrTemplateHasNoStages
	}

	first := tpl.StageAt(1)
	if first == nil {
		return nil, fmt.Errorf("template %d has no stage at position 1", tpl.ID)
	}

	now := time.Now()
	inst := &entity.WorkflowInstance{
		PublicID:             uuid.NewString(),
		PaymentID:            payment.ID,
		InvoiceID:            payment.InvoiceID,
		TemplateID:           tpl.ID,
		CurrentStageID:       &first.ID,
		CurrentStagePosition: first.Position,
		StagesTotal:          len(tpl.Stages),
		StagesCompleted:      0,
		Status:               entity.StatusInProgress,
		AmountCents:          payment.AmountCents,
		StartedAt:            now,
		StartedBy:            req.UserID,
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.instanceRepo.Create(txCtx, inst); err != nil {
			return fmt.Errorf("create instance: %w", err)
		}
		if err := s.paymentRepo.UpdateStatus(txCtx, payment.ID, entity.PaymentAwaitingApproval, entity.StatusInProgress, nil); err != nil {
			return fmt.Errorf("update payment status: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to start workflow", "error", err, "payment_id", req.PaymentID)
		return nil, err
	}

	s.logger.Info("Workflow started",
		"instance_id", inst.ID,
		"payment_id", payment.ID,
		"template_id", tpl.ID,
		"stages_total", inst.StagesTotal,
	)

	s.notifyStage(ctx, inst, first)
	return inst, nil
}

// Decide records an approve or reject decision on the instance's current
// stage. The read-authorize-append-write sequence runs in one transaction and
// the instance update is guarded against racing decisions.
func (s *workflowServiceImpl) Decide(ctx context.Context, instanceID int64, userID, action, note string) (*entity.WorkflowInstance, *entity.Transition, error) {
	if action != entity.ActionApprove && action != entity.ActionReject {
		return nil, nil, fmt.Errorf("%w: action must be approve or reject", ErrInvalidInput)
	}
	if userID == "" {
		return nil, nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if action == entity.ActionReject && note == "" {
		return nil, nil, fmt.Errorf("%w: rejection reason is required", ErrInvalidInput)
	}

	var (
		transition entity.Transition
		nextStage  *entity.StageDefinition
	)

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		inst, err := s.instanceRepo.GetByID(txCtx, instanceID)
		if err != nil {
			return err
		}
		if inst == nil {
			return ErrInstanceNotFound
		}
		if !inst.IsActive() || inst.CurrentStageID == nil {
			return ErrInstanceNotActive
		}

		tpl, err := s.templateRepo.GetByID(txCtx, inst.TemplateID)
		if err != nil {
			return err
		}
		if tpl == nil {
			return fmt.Errorf("template %d referenced by instance %d is missing", inst.TemplateID, inst.ID)
		}

		stage := tpl.StageByID(*inst.CurrentStageID)
		if stage == nil {
			return fmt.Errorf("stage %d referenced by instance %d is missing", *inst.CurrentStageID, inst.ID)
		}

		user, err := s.userRepo.GetByID(txCtx, userID)
		if err != nil {
			return err
		}

		// Deciding uses the same predicate as listing: a user who cannot see
		// an instance cannot act on it either, project scoping included.
		payment, err := s.paymentRepo.GetByID(txCtx, inst.PaymentID)
		if err != nil {
			return err
		}
		cand := &port.ActionableCandidate{Instance: inst, Stage: stage}
		if payment != nil {
			cand.ProjectID = payment.ProjectID
		}
		if user == nil || !isActionable(user, cand) {
			return ErrNotAuthorized
		}

		lastStage := stage.Position == inst.StagesTotal
		machine := domainwf.BuildApprovalStateMachine(domainwf.State(inst.Status))
		if err := machine.Fire(txCtx, decisionTrigger(action, lastStage)); err != nil {
			return ErrInstanceNotActive
		}

		now := time.Now()
		if err := s.instanceRepo.AppendProgress(txCtx, &entity.ProgressEntry{
			InstanceID: inst.ID,
			StageID:    stage.ID,
			StageName:  stage.Name,
			UserID:     userID,
			Action:     action,
			Note:       note,
			CreatedAt:  now,
		}); err != nil {
			return fmt.Errorf("append progress: %w", err)
		}

		transition = entity.Transition{
			FromStageID:   inst.CurrentStageID,
			FromStageName: stage.Name,
			FromStatus:    entity.StatusInProgress,
		}

		switch {
		case action == entity.ActionReject:
			ok, err := s.instanceRepo.Complete(txCtx, inst.ID, stage.Position, entity.StatusRejected, inst.StagesCompleted, userID, now)
			if err != nil {
				return err
			}
			if !ok {
				return ErrInstanceNotActive
			}
			if err := s.paymentRepo.UpdateStatus(txCtx, inst.PaymentID, entity.PaymentRejected, entity.StatusRejected, nil); err != nil {
				return fmt.Errorf("update payment status: %w", err)
			}
			transition.ToStatus = entity.StatusRejected
			transition.Completed = true

		case lastStage:
			ok, err := s.instanceRepo.Complete(txCtx, inst.ID, stage.Position, entity.StatusApproved, inst.StagesCompleted+1, userID, now)
			if err != nil {
				return err
			}
			if !ok {
				return ErrInstanceNotActive
			}
			if err := s.paymentRepo.UpdateStatus(txCtx, inst.PaymentID, entity.PaymentApproved, entity.StatusApproved, &now); err != nil {
				return fmt.Errorf("update payment status: %w", err)
			}
			transition.ToStatus = entity.StatusApproved
			transition.Completed = true

		default:
			next := tpl.StageAt(stage.Position + 1)
			if next == nil {
				return fmt.Errorf("template %d has no stage at position %d", tpl.ID, stage.Position+1)
			}
			ok, err := s.instanceRepo.AdvanceStage(txCtx, inst.ID, stage.Position, next.ID, next.Position)
			if err != nil {
				return err
			}
			if !ok {
				return ErrInstanceNotActive
			}
			transition.ToStageID = &next.ID
			transition.ToStageName = next.Name
			transition.ToStatus = entity.StatusInProgress
			nextStage = next
		}

		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	inst, err := s.instanceRepo.GetByID(ctx, instanceID)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("Decision recorded",
		"instance_id", instanceID,
		"user_id", userID,
		"action", action,
		"to_status", transition.ToStatus,
	)

	if nextStage != nil {
		s.notifyStage(ctx, inst, nextStage)
	}

	return inst, &transition, nil
}

// Cancel terminates an in_progress instance, recording the reason.
func (s *workflowServiceImpl) Cancel(ctx context.Context, instanceID int64, userID, reason string) (*entity.WorkflowInstance, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if reason == "" {
		return nil, fmt.Errorf("%w: cancellation reason is required", ErrInvalidInput)
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		inst, err := s.instanceRepo.GetByID(txCtx, instanceID)
		if err != nil {
			return err
		}
		if inst == nil {
			return ErrInstanceNotFound
		}
		if !inst.IsActive() || inst.CurrentStageID == nil {
			return ErrInstanceNotActive
		}

		machine := domainwf.BuildApprovalStateMachine(domainwf.State(inst.Status))
		if err := machine.Fire(txCtx, domainwf.TriggerCancel); err != nil {
			return ErrInstanceNotActive
		}

		tpl, err := s.templateRepo.GetByID(txCtx, inst.TemplateID)
		if err != nil {
			return err
		}
		stageName := ""
		if tpl != nil {
			if stage := tpl.StageByID(*inst.CurrentStageID); stage != nil {
				stageName = stage.Name
			}
		}

		now := time.Now()
		if err := s.instanceRepo.AppendProgress(txCtx, &entity.ProgressEntry{
			InstanceID: inst.ID,
			StageID:    *inst.CurrentStageID,
			StageName:  stageName,
			UserID:     userID,
			Action:     entity.ActionCancel,
			Note:       reason,
			CreatedAt:  now,
		}); err != nil {
			return fmt.Errorf("append progress: %w", err)
		}

		ok, err := s.instanceRepo.Complete(txCtx, inst.ID, inst.CurrentStagePosition, entity.StatusCancelled, inst.StagesCompleted, userID, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInstanceNotActive
		}

		if err := s.paymentRepo.UpdateStatus(txCtx, inst.PaymentID, entity.PaymentCancelled, entity.StatusCancelled, nil); err != nil {
			return fmt.Errorf("update payment status: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Workflow cancelled", "instance_id", instanceID, "user_id", userID)
	return s.instanceRepo.GetByID(ctx, instanceID)
}

// ListActionable returns the page of in_progress instances the user may act
// on, applying the stage-assignment and project-scope predicate.
func (s *workflowServiceImpl) ListActionable(ctx context.Context, userID string, p Pagination) (*ActionablePage, error) {
	p = normalizePagination(p)

	page := &ActionablePage{
		Instances: []*entity.WorkflowInstance{},
		Page:      p.Page,
		Limit:     p.Limit,
	}

	if userID == "" {
		return page, nil
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return page, nil
	}

	candidates, err := s.instanceRepo.ListInProgress(ctx)
	if err != nil {
		s.logger.Error("Failed to list in-progress instances", "error", err)
		return nil, err
	}

	var matched []*entity.WorkflowInstance
	for _, cand := range candidates {
		if isActionable(user, cand) {
			matched = append(matched, cand.Instance)
		}
	}

	sortInstances(matched, p.Sort)

	page.Total = len(matched)
	start := (p.Page - 1) * p.Limit
	if start < len(matched) {
		end := start + p.Limit
		if end > len(matched) {
			end = len(matched)
		}
		page.Instances = matched[start:end]
	}

	return page, nil
}

// GetHistory returns the instance, its template's stages, and the progress
// log enriched with each deciding user's name and email. User resolution is
// one batch lookup over the distinct ids in the log.
func (s *workflowServiceImpl) GetHistory(ctx context.Context, instanceID int64) (*History, error) {
	inst, err := s.instanceRepo.GetByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, ErrInstanceNotFound
	}

	tpl, err := s.templateRepo.GetByID(ctx, inst.TemplateID)
	if err != nil {
		return nil, err
	}

	entries, err := s.instanceRepo.ListProgress(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	distinct := make(map[string]bool)
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if !distinct[e.UserID] {
			distinct[e.UserID] = true
			ids = append(ids, e.UserID)
		}
	}

	users := map[string]*entity.User{}
	if len(ids) > 0 {
		users, err = s.userRepo.BatchGet(ctx, ids)
		if err != nil {
			return nil, err
		}
	}

	history := &History{
		Instance: inst,
		Progress: make([]*EnrichedProgressEntry, 0, len(entries)),
	}
	if tpl != nil {
		history.Stages = tpl.Stages
	}

	for _, e := range entries {
		enriched := &EnrichedProgressEntry{ProgressEntry: *e}
		if u, ok := users[e.UserID]; ok {
			enriched.UserName = u.DisplayName
			enriched.UserEmail = u.Email
		}
		history.Progress = append(history.Progress, enriched)
	}

	return history, nil
}

// resolveTemplate loads the explicit template or resolves one from the
// payment's matching dimensions.
func (s *workflowServiceImpl) resolveTemplate(ctx context.Context, req StartRequest, payment *entity.Payment) (*entity.WorkflowTemplate, error) {
	if req.TemplateID != nil {
		tpl, err := s.templateRepo.GetByID(ctx, *req.TemplateID)
		if err != nil {
			return nil, err
		}
		if tpl == nil {
			return nil, ErrTemplateNotFound
		}
		return tpl, nil
	}
	return s.templateSvc.SelectTemplate(ctx, payment.InvoiceTypeID, payment.ContractorTypeID, payment.ProjectID)
}

// notifyStage fans out assignee notifications; failures are logged only.
func (s *workflowServiceImpl) notifyStage(ctx context.Context, inst *entity.WorkflowInstance, stage *entity.StageDefinition) {
	if s.notifier == nil || inst == nil || stage == nil {
		return
	}
	if err := s.notifier.NotifyStageEntered(ctx, inst, stage); err != nil {
		s.logger.Error("Failed to notify stage assignees",
			"error", err,
			"instance_id", inst.ID,
			"stage_id", stage.ID,
		)
	}
}

func decisionTrigger(action string, lastStage bool) domainwf.Trigger {
	if action == entity.ActionReject {
		return domainwf.TriggerReject
	}
	if lastStage {
		return domainwf.TriggerApprove
	}
	return domainwf.TriggerAdvance
}

func normalizePagination(p Pagination) Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	return p
}

func sortInstances(instances []*entity.WorkflowInstance, order string) {
	switch order {
	case "started_at_asc":
		sort.SliceStable(instances, func(i, j int) bool {
			return instances[i].StartedAt.Before(instances[j].StartedAt)
		})
	case "amount_asc":
		sort.SliceStable(instances, func(i, j int) bool {
			return instances[i].AmountCents < instances[j].AmountCents
		})
	case "amount_desc":
		sort.SliceStable(instances, func(i, j int) bool {
			return instances[i].AmountCents > instances[j].AmountCents
		})
	default: // started_at_desc
		sort.SliceStable(instances, func(i, j int) bool {
			return instances[i].StartedAt.After(instances[j].StartedAt)
		})
	}
}
