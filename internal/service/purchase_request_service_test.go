package service

import (
	"context"
	"testing"

	"procure/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type requestFixture struct {
	*approvalFixture
	reqSvc PurchaseRequestService
}

func newRequestFixture() *requestFixture {
	base := newApprovalFixture()
	reqSvc := NewPurchaseRequestService(
		&mockTxManager{},
		&fakeRequestRepo{store: base.store},
		base.audits,
		base.docs,
		base.files,
		base.events,
		zap.NewNop(),
	)
	return &requestFixture{approvalFixture: base, reqSvc: reqSvc}
}

func (f *requestFixture) approveFully(t *testing.T, id uuid.UUID) *model.PurchaseRequest {
	t.Helper()
	_, err := f.svc.Approve(context.Background(), id.String(), approverL1(), "")
	require.NoError(t, err)
	pr, err := f.svc.Approve(context.Background(), id.String(), approverL2(), "")
	require.NoError(t, err)
	return pr
}

func TestGetVisibility(t *testing.T) {
	f := newRequestFixture()
	owner := staffUser()
	pr := f.createRequest(t, owner)

	t.Run("owner sees own request", func(t *testing.T) {
		got, err := f.reqSvc.Get(context.Background(), pr.ID.String(), owner)
		require.NoError(t, err)
		assert.Equal(t, pr.ID, got.ID)
	})

	t.Run("other staff cannot see it", func(t *testing.T) {
		_, err := f.reqSvc.Get(context.Background(), pr.ID.String(), staffUser())
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("approvers and finance see everything", func(t *testing.T) {
		for _, viewer := range []*model.User{
			approverL1(),
			approverL2(),
			{ID: uuid.New(), Role: model.RoleFinance},
		} {
			_, err := f.reqSvc.Get(context.Background(), pr.ID.String(), viewer)
			assert.NoError(t, err)
		}
	})

	t.Run("unknown request", func(t *testing.T) {
		_, err := f.reqSvc.Get(context.Background(), uuid.NewString(), owner)
		assert.ErrorIs(t, err, ErrRequestNotFound)
	})
}

func TestListVisibility(t *testing.T) {
	f := newRequestFixture()
	alice, bob := staffUser(), staffUser()
	f.createRequest(t, alice)
	f.createRequest(t, alice)
	f.createRequest(t, bob)

	own, total, err := f.reqSvc.List(context.Background(), alice, RequestFilter{Page: 1, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	for _, pr := range own {
		assert.Equal(t, alice.ID, pr.CreatedByID)
	}

	all, total, err := f.reqSvc.List(context.Background(), approverL1(), RequestFilter{Page: 1, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, all, 3)
}

func TestUpdateRequest(t *testing.T) {
	f := newRequestFixture()
	owner := staffUser()
	pr := f.createRequest(t, owner)

	t.Run("owner edits while untouched", func(t *testing.T) {
		title := "Revised title"
		amount := decimal.NewFromInt(999)
		got, err := f.reqSvc.Update(context.Background(), pr.ID.String(), UpdateRequestDTO{
			Title:  &title,
			Amount: &amount,
		}, owner)
		require.NoError(t, err)
		assert.Equal(t, "Revised title", got.Title)
		assert.True(t, got.Amount.Equal(amount))
		assert.Contains(t, f.audits.actions(), model.ActionUpdateRequest)
	})

	t.Run("non-owner cannot edit", func(t *testing.T) {
		title := "Hijacked"
		_, err := f.reqSvc.Update(context.Background(), pr.ID.String(), UpdateRequestDTO{Title: &title}, staffUser())
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("invalid amount", func(t *testing.T) {
		amount := decimal.NewFromInt(-1)
		_, err := f.reqSvc.Update(context.Background(), pr.ID.String(), UpdateRequestDTO{Amount: &amount}, owner)
		assert.ErrorIs(t, err, ErrValidationFailed)
	})

	t.Run("replacing the proforma resets metadata", func(t *testing.T) {
		got, err := f.reqSvc.Update(context.Background(), pr.ID.String(), UpdateRequestDTO{
			ProformaFilename: "new-proforma.pdf",
			ProformaContent:  []byte("%PDF-1.4"),
		}, owner)
		require.NoError(t, err)
		assert.Equal(t, "proformas/new-proforma.pdf", got.ProformaPath)
		assert.Equal(t, "Acme Corp", got.ProformaMetadata["vendor_name"])
	})

	t.Run("locked after an approval", func(t *testing.T) {
		_, err := f.svc.Approve(context.Background(), pr.ID.String(), approverL1(), "")
		require.NoError(t, err)

		title := "Too late"
		_, err = f.reqSvc.Update(context.Background(), pr.ID.String(), UpdateRequestDTO{Title: &title}, owner)
		assert.ErrorIs(t, err, ErrNotEditable)
	})
}

func TestSubmitReceipt(t *testing.T) {
	f := newRequestFixture()
	owner := staffUser()

	t.Run("rejected before approval", func(t *testing.T) {
		pr := f.createRequest(t, owner)
		_, err := f.reqSvc.SubmitReceipt(context.Background(), pr.ID.String(), "receipt.pdf", []byte("%PDF-1.4"), owner)
		assert.ErrorIs(t, err, ErrReceiptNotAllowed)
	})

	t.Run("accepted after full approval", func(t *testing.T) {
		pr := f.createRequest(t, owner)
		f.approveFully(t, pr.ID)

		got, err := f.reqSvc.SubmitReceipt(context.Background(), pr.ID.String(), "receipt.pdf", []byte("%PDF-1.4"), owner)
		require.NoError(t, err)
		assert.Equal(t, "receipts/receipt.pdf", got.ReceiptPath)
		assert.Equal(t, true, got.ReceiptValidation["matches"])
		assert.Contains(t, f.audits.actions(), model.ActionSubmitReceipt)
		assert.Contains(t, f.audits.actions(), model.ActionValidateReceipt)
	})

	t.Run("second receipt is rejected", func(t *testing.T) {
		pr := f.createRequest(t, owner)
		f.approveFully(t, pr.ID)

		_, err := f.reqSvc.SubmitReceipt(context.Background(), pr.ID.String(), "receipt.pdf", []byte("%PDF-1.4"), owner)
		require.NoError(t, err)
		_, err = f.reqSvc.SubmitReceipt(context.Background(), pr.ID.String(), "receipt2.pdf", []byte("%PDF-1.4"), owner)
		assert.ErrorIs(t, err, ErrReceiptNotAllowed)
	})

	t.Run("only the owner may submit", func(t *testing.T) {
		pr := f.createRequest(t, owner)
		f.approveFully(t, pr.ID)

		_, err := f.reqSvc.SubmitReceipt(context.Background(), pr.ID.String(), "receipt.pdf", []byte("%PDF-1.4"), staffUser())
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("degraded validation still records the receipt", func(t *testing.T) {
		pr := f.createRequest(t, owner)
		f.approveFully(t, pr.ID)
		f.docs.ValidateFn = func(ctx context.Context, pr *model.PurchaseRequest, receiptRelPath string) (model.JSONMap, error) {
			return nil, assert.AnError
		}
		defer func() { f.docs.ValidateFn = nil }()

		got, err := f.reqSvc.SubmitReceipt(context.Background(), pr.ID.String(), "receipt.pdf", []byte("%PDF-1.4"), owner)
		require.NoError(t, err)
		assert.Equal(t, "receipts/receipt.pdf", got.ReceiptPath)
		assert.NotEmpty(t, got.ReceiptValidation["error"])
	})
}

func TestDocumentDownload(t *testing.T) {
	f := newRequestFixture()
	owner := staffUser()
	pr, err := f.svc.CreateRequest(context.Background(), CreateRequestDTO{
		Title:            "With proforma",
		Amount:           decimal.NewFromInt(500),
		ProformaFilename: "proforma.pdf",
		ProformaContent:  []byte("%PDF-1.4"),
	}, owner)
	require.NoError(t, err)

	path, content, err := f.reqSvc.Document(context.Background(), pr.ID.String(), "proforma", owner)
	require.NoError(t, err)
	assert.Equal(t, "proformas/proforma.pdf", path)
	assert.NotEmpty(t, content)

	_, _, err = f.reqSvc.Document(context.Background(), pr.ID.String(), "receipt", owner)
	assert.ErrorIs(t, err, ErrRequestNotFound)

	_, _, err = f.reqSvc.Document(context.Background(), pr.ID.String(), "invoice", owner)
	assert.ErrorIs(t, err, ErrValidationFailed)

	_, _, err = f.reqSvc.Document(context.Background(), pr.ID.String(), "proforma", staffUser())
	assert.ErrorIs(t, err, ErrForbidden)
}
