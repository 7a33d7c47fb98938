package service

import (
	"context"
	"sort"
	"time"

	"github.com/payhub/approval-engine/internal/application/port"
	"github.com/payhub/approval-engine/internal/domain/entity"
)

// In-memory fakes mirroring the repository contracts, including the guarded
// update semantics of the instance repository.

type noopLogger struct{}

func (noopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (noopLogger) Error(msg string, keysAndValues ...interface{}) {}

type mockTxManager struct{}

func (mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockInstanceRepo struct {
	instances  map[int64]*entity.WorkflowInstance
	progress   map[int64][]*entity.ProgressEntry
	nextID     int64
	candidates []*port.ActionableCandidate

	advanceFunc  func(ctx context.Context, id int64, fromPosition int, toStageID int64, toPosition int) (bool, error)
	completeFunc func(ctx context.Context, id int64, fromPosition int, status string, stagesCompleted int, completedBy string, completedAt time.Time) (bool, error)
}

func newMockInstanceRepo() *mockInstanceRepo {
	return &mockInstanceRepo{
		instances: make(map[int64]*entity.WorkflowInstance),
		progress:  make(map[int64][]*entity.ProgressEntry),
	}
}

func (m *mockInstanceRepo) Create(ctx context.Context, inst *entity.WorkflowInstance) error {
	m.nextID++
	inst.ID = m.nextID
	m.instances[inst.ID] = inst
	return nil
}

func (m *mockInstanceRepo) GetByID(ctx context.Context, id int64) (*entity.WorkflowInstance, error) {
	inst, ok := m.instances[id]
	if !ok {
		return nil, nil
	}
	copied := *inst
	return &copied, nil
}

func (m *mockInstanceRepo) GetActiveByPaymentID(ctx context.Context, paymentID int64) (*entity.WorkflowInstance, error) {
	for _, inst := range m.instances {
		if inst.PaymentID == paymentID && inst.Status == entity.StatusInProgress {
			copied := *inst
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockInstanceRepo) AdvanceStage(ctx context.Context, id int64, fromPosition int, toStageID int64, toPosition int) (bool, error) {
	if m.advanceFunc != nil {
		return m.advanceFunc(ctx, id, fromPosition, toStageID, toPosition)
	}
	inst, ok := m.instances[id]
	if !ok || inst.Status != entity.StatusInProgress || inst.CurrentStagePosition != fromPosition {
		return false, nil
	}
	inst.CurrentStageID = &toStageID
	inst.CurrentStagePosition = toPosition
	inst.StagesCompleted++
	return true, nil
}

func (m *mockInstanceRepo) Complete(ctx context.Context, id int64, fromPosition int, status string, stagesCompleted int, completedBy string, completedAt time.Time) (bool, error) {
	if m.completeFunc != nil {
		return m.completeFunc(ctx, id, fromPosition, status, stagesCompleted, completedBy, completedAt)
	}
	inst, ok := m.instances[id]
	if !ok || inst.Status != entity.StatusInProgress || inst.CurrentStagePosition != fromPosition {
		return false, nil
	}
	inst.Status = status
	inst.StagesCompleted = stagesCompleted
	inst.CurrentStageID = nil
	inst.CompletedAt = &completedAt
	inst.CompletedBy = &completedBy
	return true, nil
}

func (m *mockInstanceRepo) ListInProgress(ctx context.Context) ([]*port.ActionableCandidate, error) {
	if m.candidates != nil {
		return m.candidates, nil
	}
	return nil, nil
}

func (m *mockInstanceRepo) AppendProgress(ctx context.Context, entry *entity.ProgressEntry) error {
	entry.ID = int64(len(m.progress[entry.InstanceID]) + 1)
	m.progress[entry.InstanceID] = append(m.progress[entry.InstanceID], entry)
	return nil
}

func (m *mockInstanceRepo) ListProgress(ctx context.Context, instanceID int64) ([]*entity.ProgressEntry, error) {
	return m.progress[instanceID], nil
}

type mockTemplateRepo struct {
	templates       map[int64]*entity.WorkflowTemplate
	nextID          int64
	listActiveCalls int

	setActiveFunc func(ctx context.Context, id int64, active bool) error
}

func newMockTemplateRepo() *mockTemplateRepo {
	return &mockTemplateRepo{templates: make(map[int64]*entity.WorkflowTemplate)}
}

func (m *mockTemplateRepo) add(tpl *entity.WorkflowTemplate) *entity.WorkflowTemplate {
	if tpl.ID == 0 {
		m.nextID++
		tpl.ID = m.nextID
	} else if tpl.ID > m.nextID {
		m.nextID = tpl.ID
	}
	m.templates[tpl.ID] = tpl
	return tpl
}

func (m *mockTemplateRepo) Create(ctx context.Context, tpl *entity.WorkflowTemplate) error {
	m.add(tpl)
	return nil
}

func (m *mockTemplateRepo) GetByID(ctx context.Context, id int64) (*entity.WorkflowTemplate, error) {
	tpl, ok := m.templates[id]
	if !ok {
		return nil, nil
	}
	return tpl, nil
}

func (m *mockTemplateRepo) ListActive(ctx context.Context) ([]*entity.WorkflowTemplate, error) {
	m.listActiveCalls++
	return m.list(true), nil
}

func (m *mockTemplateRepo) List(ctx context.Context, includeInactive bool) ([]*entity.WorkflowTemplate, error) {
	return m.list(!includeInactive), nil
}

func (m *mockTemplateRepo) list(activeOnly bool) []*entity.WorkflowTemplate {
	var out []*entity.WorkflowTemplate
	for _, tpl := range m.templates {
		if activeOnly && !tpl.IsActive {
			continue
		}
		out = append(out, tpl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *mockTemplateRepo) SetActive(ctx context.Context, id int64, active bool) error {
	if m.setActiveFunc != nil {
		return m.setActiveFunc(ctx, id, active)
	}
	if tpl, ok := m.templates[id]; ok {
		tpl.IsActive = active
	}
	return nil
}

type mockPaymentRepo struct {
	payments map[int64]*entity.Payment
	getErr   error
}

func newMockPaymentRepo() *mockPaymentRepo {
	return &mockPaymentRepo{payments: make(map[int64]*entity.Payment)}
}

func (m *mockPaymentRepo) GetByID(ctx context.Context, id int64) (*entity.Payment, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	p, ok := m.payments[id]
	if !ok {
		return nil, nil
	}
	return p, nil
}

func (m *mockPaymentRepo) UpdateStatus(ctx context.Context, id int64, status, workflowStatus string, approvedAt *time.Time) error {
	p, ok := m.payments[id]
	if !ok {
		return nil
	}
	p.Status = status
	p.WorkflowStatus = workflowStatus
	if approvedAt != nil {
		p.ApprovedAt = approvedAt
	}
	return nil
}

type mockUserRepo struct {
	users map[string]*entity.User
}

func newMockUserRepo(users ...*entity.User) *mockUserRepo {
	m := &mockUserRepo{users: make(map[string]*entity.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return u, nil
}

func (m *mockUserRepo) BatchGet(ctx context.Context, ids []string) (map[string]*entity.User, error) {
	out := make(map[string]*entity.User)
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}
