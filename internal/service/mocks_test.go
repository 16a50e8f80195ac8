package service

import (
	"context"
	"sync"

	"procure/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// mockTxManager serializes transactions with a mutex, mirroring the row-lock
// behavior the real manager gets from the database.
type mockTxManager struct {
	mu sync.Mutex
}

func (m *mockTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx)
}

// fakeStore is an in-memory request table. Repositories built on it return
// deep copies so concurrent readers never observe partial writes.
type fakeStore struct {
	mu       sync.Mutex
	requests map[uuid.UUID]*model.PurchaseRequest
}

func newFakeStore() *fakeStore {
	return &fakeStore{requests: make(map[uuid.UUID]*model.PurchaseRequest)}
}

func clone(pr *model.PurchaseRequest) *model.PurchaseRequest {
	out := *pr
	out.Approvals = append([]model.Approval(nil), pr.Approvals...)
	return &out
}

func (st *fakeStore) get(id uuid.UUID) (*model.PurchaseRequest, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	pr, ok := st.requests[id]
	if !ok {
		return nil, false
	}
	return clone(pr), true
}

func (st *fakeStore) put(pr *model.PurchaseRequest) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.requests[pr.ID] = clone(pr)
}

type fakeRequestRepo struct {
	store *fakeStore
}

func (r *fakeRequestRepo) Create(ctx context.Context, pr *model.PurchaseRequest) error {
	if pr.ID == uuid.Nil {
		pr.ID = uuid.New()
	}
	if pr.Status == "" {
		pr.Status = model.StatusPending
	}
	r.store.put(pr)
	return nil
}

func (r *fakeRequestRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.PurchaseRequest, error) {
	pr, ok := r.store.get(id)
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return pr, nil
}

func (r *fakeRequestRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.PurchaseRequest, error) {
	return r.FindByID(ctx, id)
}

func (r *fakeRequestRepo) Update(ctx context.Context, pr *model.PurchaseRequest) error {
	r.store.put(pr)
	return nil
}

func (r *fakeRequestRepo) UpdateDocuments(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	pr, ok := r.store.get(id)
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for key, value := range fields {
		switch key {
		case "proforma_path":
			pr.ProformaPath = value.(string)
		case "proforma_metadata":
			pr.ProformaMetadata = value.(model.JSONMap)
		case "purchase_order_path":
			pr.PurchaseOrderPath = value.(string)
		case "po_metadata":
			pr.POMetadata = value.(model.JSONMap)
		case "receipt_path":
			pr.ReceiptPath = value.(string)
		case "receipt_validation":
			pr.ReceiptValidation = value.(model.JSONMap)
		}
	}
	r.store.put(pr)
	return nil
}

func (r *fakeRequestRepo) ListByCreator(ctx context.Context, creatorID uuid.UUID, status string, page, limit int) ([]model.PurchaseRequest, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []model.PurchaseRequest
	for _, pr := range r.store.requests {
		if pr.CreatedByID == creatorID && (status == "" || pr.Status == status) {
			out = append(out, *clone(pr))
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeRequestRepo) ListByStatus(ctx context.Context, status string, page, limit int) ([]model.PurchaseRequest, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []model.PurchaseRequest
	for _, pr := range r.store.requests {
		if status == "" || pr.Status == status {
			out = append(out, *clone(pr))
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeRequestRepo) ListPendingForLevel(ctx context.Context, level, page, limit int) ([]model.PurchaseRequest, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []model.PurchaseRequest
	for _, pr := range r.store.requests {
		if pr.Status != model.StatusPending {
			continue
		}
		slot := pr.ApprovalAt(level)
		if slot == nil || slot.Status != model.StatusPending {
			continue
		}
		if level == model.LevelFinal {
			first := pr.ApprovalAt(model.LevelFirst)
			if first == nil || first.Status != model.StatusApproved {
				continue
			}
		}
		out = append(out, *clone(pr))
	}
	return out, int64(len(out)), nil
}

type fakeApprovalRepo struct {
	store *fakeStore
}

func (r *fakeApprovalRepo) CreateAll(ctx context.Context, approvals []model.Approval) error {
	if len(approvals) == 0 {
		return nil
	}
	pr, ok := r.store.get(approvals[0].PurchaseRequestID)
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for i := range approvals {
		if approvals[i].ID == uuid.Nil {
			approvals[i].ID = uuid.New()
		}
	}
	pr.Approvals = append(pr.Approvals, approvals...)
	r.store.put(pr)
	return nil
}

func (r *fakeApprovalRepo) FindForUpdate(ctx context.Context, requestID uuid.UUID, level int) (*model.Approval, error) {
	pr, ok := r.store.get(requestID)
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	record := pr.ApprovalAt(level)
	if record == nil {
		return nil, gorm.ErrRecordNotFound
	}
	out := *record
	return &out, nil
}

func (r *fakeApprovalRepo) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]model.Approval, error) {
	pr, ok := r.store.get(requestID)
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return pr.Approvals, nil
}

func (r *fakeApprovalRepo) Update(ctx context.Context, approval *model.Approval) error {
	pr, ok := r.store.get(approval.PurchaseRequestID)
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for i := range pr.Approvals {
		if pr.Approvals[i].Level == approval.Level {
			pr.Approvals[i] = *approval
		}
	}
	r.store.put(pr)
	return nil
}

type mockAuditRepo struct {
	mu      sync.Mutex
	LogFn   func(ctx context.Context, entry *model.AuditLog) error
	entries []model.AuditLog
}

func (r *mockAuditRepo) Log(ctx context.Context, entry *model.AuditLog) error {
	if r.LogFn != nil {
		return r.LogFn(ctx, entry)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *mockAuditRepo) List(ctx context.Context, action string, page, limit int) ([]model.AuditLog, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.AuditLog
	for _, e := range r.entries {
		if action == "" || e.Action == action {
			out = append(out, e)
		}
	}
	return out, int64(len(out)), nil
}

func (r *mockAuditRepo) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

// mockCollaborator stands in for the document service. Behaviors are
// overridable per test through the func fields.
type mockCollaborator struct {
	mu          sync.Mutex
	poGenerated int

	ExtractFn  func(ctx context.Context, relPath string) (model.JSONMap, error)
	GenerateFn func(ctx context.Context, pr *model.PurchaseRequest) (string, model.JSONMap, error)
	ValidateFn func(ctx context.Context, pr *model.PurchaseRequest, receiptRelPath string) (model.JSONMap, error)
}

func (m *mockCollaborator) ExtractProformaData(ctx context.Context, relPath string) (model.JSONMap, error) {
	if m.ExtractFn != nil {
		return m.ExtractFn(ctx, relPath)
	}
	return model.JSONMap{"vendor_name": "Acme Corp"}, nil
}

func (m *mockCollaborator) GeneratePurchaseOrder(ctx context.Context, pr *model.PurchaseRequest) (string, model.JSONMap, error) {
	m.mu.Lock()
	m.poGenerated++
	m.mu.Unlock()
	if m.GenerateFn != nil {
		return m.GenerateFn(ctx, pr)
	}
	return "purchase_orders/PO-TEST.xlsx", model.JSONMap{"po_number": "PO-TEST"}, nil
}

func (m *mockCollaborator) ValidateReceipt(ctx context.Context, pr *model.PurchaseRequest, receiptRelPath string) (model.JSONMap, error) {
	if m.ValidateFn != nil {
		return m.ValidateFn(ctx, pr, receiptRelPath)
	}
	return model.JSONMap{"matches": true}, nil
}

func (m *mockCollaborator) poCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.poGenerated
}

type mockFileStorage struct {
	mu      sync.Mutex
	SaveFn  func(category, filename string, content []byte) (string, error)
	removed []string
}

func (m *mockFileStorage) Save(category, filename string, content []byte) (string, error) {
	if m.SaveFn != nil {
		return m.SaveFn(category, filename, content)
	}
	return category + "/" + filename, nil
}

func (m *mockFileStorage) Read(relPath string) ([]byte, error) {
	return []byte("content"), nil
}

func (m *mockFileStorage) Remove(relPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, relPath)
	return nil
}

func (m *mockFileStorage) AbsPath(relPath string) (string, error) {
	return "/tmp/" + relPath, nil
}

type mockPublisher struct {
	mu     sync.Mutex
	events []string
}

func (m *mockPublisher) PublishEvent(event string, payload interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func (m *mockPublisher) published() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.events...)
}
