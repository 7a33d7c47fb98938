package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/payhub/approval-engine/internal/domain/entity"
)

type mockSender struct {
	sent    []string // open ids
	failFor map[string]bool
}

func (m *mockSender) SendMessage(ctx context.Context, openID, content string) error {
	if m.failFor[openID] {
		return errors.New("delivery failed")
	}
	m.sent = append(m.sent, openID)
	return nil
}

func notifyFixture() (*entity.WorkflowInstance, *entity.StageDefinition) {
	stageID := int64(11)
	inst := &entity.WorkflowInstance{
		ID:             1,
		PublicID:       "pub-1",
		PaymentID:      100,
		CurrentStageID: &stageID,
		StagesTotal:    3,
		Status:         entity.StatusInProgress,
		AmountCents:    50000,
	}
	stage := &entity.StageDefinition{
		ID:              stageID,
		Position:        1,
		Name:            "Finance",
		AssignedUserIDs: []string{"u-1", "u-2", "u-3"},
	}
	return inst, stage
}

func TestNotifyStageEntered(t *testing.T) {
	users := newMockUserRepo(
		&entity.User{ID: "u-1", LarkOpenID: "ou-1"},
		&entity.User{ID: "u-2", LarkOpenID: "ou-2"},
		&entity.User{ID: "u-3"}, // no messaging id on file
	)
	sender := &mockSender{}
	svc := NewNotificationService(users, sender, noopLogger{})

	inst, stage := notifyFixture()
	if err := svc.NotifyStageEntered(context.Background(), inst, stage); err != nil {
		t.Fatalf("NotifyStageEntered() error = %v", err)
	}

	if len(sender.sent) != 2 {
		t.Errorf("messages sent = %d, want 2", len(sender.sent))
	}
}

func TestNotifyStageEntered_PartialFailure(t *testing.T) {
	users := newMockUserRepo(
		&entity.User{ID: "u-1", LarkOpenID: "ou-1"},
		&entity.User{ID: "u-2", LarkOpenID: "ou-2"},
	)
	sender := &mockSender{failFor: map[string]bool{"ou-1": true}}
	svc := NewNotificationService(users, sender, noopLogger{})

	inst, stage := notifyFixture()
	stage.AssignedUserIDs = []string{"u-1", "u-2"}

	err := svc.NotifyStageEntered(context.Background(), inst, stage)
	if err == nil {
		t.Fatal("expected aggregate error for failed delivery")
	}
	if !strings.Contains(err.Error(), "1 of 2") {
		t.Errorf("error = %v, want failure count", err)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "ou-2" {
		t.Errorf("sent = %v, want delivery to ou-2 despite ou-1 failing", sender.sent)
	}
}

func TestNotifyStageEntered_NoAssignees(t *testing.T) {
	sender := &mockSender{}
	svc := NewNotificationService(newMockUserRepo(), sender, noopLogger{})

	inst, stage := notifyFixture()
	stage.AssignedUserIDs = nil

	if err := svc.NotifyStageEntered(context.Background(), inst, stage); err != nil {
		t.Fatalf("NotifyStageEntered() error = %v", err)
	}
	if len(sender.sent) != 0 {
		t.Errorf("messages sent = %d, want 0", len(sender.sent))
	}
}
