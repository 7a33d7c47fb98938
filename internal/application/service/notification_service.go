package service

import (
	"context"
	"fmt"

	"github.com/payhub/approval-engine/internal/application/port"
	"github.com/payhub/approval-engine/internal/domain/entity"
)

// NotificationService alerts stage assignees that an instance is waiting on
// them. It is best-effort: the workflow engine never fails a transition
// because a message could not be delivered.
type NotificationService interface {
	NotifyStageEntered(ctx context.Context, inst *entity.WorkflowInstance, stage *entity.StageDefinition) error
}

type notificationServiceImpl struct {
	userRepo port.UserRepository
	sender   port.MessageSender
	logger   Logger
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(userRepo port.UserRepository, sender port.MessageSender, logger Logger) NotificationService {
	return &notificationServiceImpl{
		userRepo: userRepo,
		sender:   sender,
		logger:   logger,
	}
}

// NotifyStageEntered messages every assigned user of the stage that has a
// messaging id on file. Delivery failures are collected, logged per user and
// reported as one error; partial delivery is acceptable.
func (s *notificationServiceImpl) NotifyStageEntered(ctx context.Context, inst *entity.WorkflowInstance, stage *entity.StageDefinition) error {
	if len(stage.AssignedUserIDs) == 0 {
		return nil
	}

	users, err := s.userRepo.BatchGet(ctx, stage.AssignedUserIDs)
	if err != nil {
		return fmt.Errorf("resolve stage assignees: %w", err)
	}

	content := fmt.Sprintf(
		"Payment approval pending: stage %q (step %d of %d) for payment %d, amount %.2f. Instance %s.",
		stage.Name,
		stage.Position,
		inst.StagesTotal,
		inst.PaymentID,
		float64(inst.AmountCents)/100,
		inst.PublicID,
	)

	var failed int
	for _, userID := range stage.AssignedUserIDs {
		user, ok := users[userID]
		if !ok || user.LarkOpenID == "" {
			continue
		}
		if err := s.sender.SendMessage(ctx, user.LarkOpenID, content); err != nil {
			failed++
			s.logger.Error("Failed to notify assignee",
				"error", err,
				"instance_id", inst.ID,
				"user_id", userID,
			)
		}
	}

	if failed > 0 {
		return fmt.Errorf("failed to notify %d of %d assignees", failed, len(stage.AssignedUserIDs))
	}

	s.logger.Info("Stage assignees notified",
		"instance_id", inst.ID,
		"stage_id", stage.ID,
		"assignees", len(stage.AssignedUserIDs),
	)
	return nil
}
