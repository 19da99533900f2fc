package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evrental/internal/db"
	apperrors "evrental/internal/errors"
)

type mockPaymentStore struct {
	records map[int64]*db.PaymentRecord
	nextID  int64

	statusUpdates int
}

func newMockPaymentStore() *mockPaymentStore {
	return &mockPaymentStore{records: make(map[int64]*db.PaymentRecord), nextID: 100}
}

func (m *mockPaymentStore) Insert(_ context.Context, _ *sql.Tx, p *db.PaymentRecord) error {
	m.nextID++
	p.ID = m.nextID
	m.records[p.ID] = p
	return nil
}

func (m *mockPaymentStore) GetByID(_ context.Context, id int64) (*db.PaymentRecord, error) {
	rec, ok := m.records[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return rec, nil
}

func (m *mockPaymentStore) GetDeposit(_ context.Context, rentalID int) (*db.PaymentRecord, error) {
	for _, rec := range m.records {
		if rec.RentalID == rentalID && rec.Type == db.PaymentDeposit {
			return rec, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockPaymentStore) GetRefund(_ context.Context, rentalID int) (*db.PaymentRecord, error) {
	for _, rec := range m.records {
		if rec.RentalID == rentalID && rec.Type == db.PaymentRefund {
			return rec, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockPaymentStore) GetByProviderRefForUpdate(_ context.Context, _ *sql.Tx, ref string, types []string) (*db.PaymentRecord, error) {
	for _, rec := range m.records {
		if rec.ProviderRef != ref {
			continue
		}
		for _, tp := range types {
			if rec.Type == tp {
				return rec, nil
			}
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockPaymentStore) UpdateStatus(_ context.Context, _ *sql.Tx, id int64, status string) error {
	m.records[id].Status = status
	m.statusUpdates++
	return nil
}

func (m *mockPaymentStore) ListByRental(_ context.Context, rentalID int) ([]db.PaymentRecord, error) {
	var out []db.PaymentRecord
	for _, rec := range m.records {
		if rec.RentalID == rentalID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

type mockProvider struct {
	paid      map[string]bool
	refunds   []string
	sessionBy map[string]string

	checkoutErr error
	paidChecks  int
}

func (m *mockProvider) CreateCheckoutSession(_ int64, _, _, _ string) (string, string, error) {
	if m.checkoutErr != nil {
		return "", "", m.checkoutErr
	}
	return "https://checkout.test/cs_test_1", "cs_test_1", nil
}

func (m *mockProvider) RefundBySession(sessionID string) (string, error) {
	m.refunds = append(m.refunds, sessionID)
	return "re_test_1", nil
}

func (m *mockProvider) SessionPaid(sessionID string) (bool, error) {
	m.paidChecks++
	return m.paid[sessionID], nil
}

func (m *mockProvider) SessionIDByPaymentIntent(paymentIntentID string) (string, error) {
	sessionID, ok := m.sessionBy[paymentIntentID]
	if !ok {
		return "", apperrors.ErrNotFound
	}
	return sessionID, nil
}

func testRental() *db.Rental {
	return &db.Rental{ID: 42, Code: "AB12CD34", RenterEmail: "linh@example.com", Deposit: 500000}
}

func TestRequestDeposit(t *testing.T) {
	store := newMockPaymentStore()
	svc := NewPaymentService(newFakeDB(t), store, &mockProvider{}, "")

	rec, err := svc.RequestDeposit(context.Background(), nil, testRental())
	require.NoError(t, err)

	assert.Equal(t, db.PaymentDeposit, rec.Type)
	assert.Equal(t, db.PaymentPending, rec.Status)
	assert.Equal(t, int64(500000), rec.Amount)
	assert.Equal(t, "cs_test_1", rec.ProviderRef)
	assert.Equal(t, "https://checkout.test/cs_test_1", rec.PaymentURL)
}

func TestRequestDepositProviderDown(t *testing.T) {
	store := newMockPaymentStore()
	provider := &mockProvider{checkoutErr: assert.AnError}
	svc := NewPaymentService(newFakeDB(t), store, provider, "")

	_, err := svc.RequestDeposit(context.Background(), nil, testRental())
	assert.ErrorIs(t, err, assert.AnError)
	assert.Empty(t, store.records)
}

func TestRequestRefundKeepsDepositRef(t *testing.T) {
	store := newMockPaymentStore()
	provider := &mockProvider{}
	svc := NewPaymentService(newFakeDB(t), store, provider, "")

	deposit := &db.PaymentRecord{ID: 101, RentalID: 42, Amount: 500000, Type: db.PaymentDeposit, Status: db.PaymentCompleted, ProviderRef: "cs_test_1"}
	rec, err := svc.RequestRefund(context.Background(), nil, testRental(), deposit)
	require.NoError(t, err)

	assert.Equal(t, db.PaymentRefund, rec.Type)
	assert.Equal(t, db.PaymentPending, rec.Status)
	assert.Equal(t, "cs_test_1", rec.ProviderRef)
	assert.Equal(t, []string{"cs_test_1"}, provider.refunds)
}

func TestResolveCheckout(t *testing.T) {
	store := newMockPaymentStore()
	svc := NewPaymentService(newFakeDB(t), store, &mockProvider{}, "")

	pending, err := svc.RequestDeposit(context.Background(), nil, testRental())
	require.NoError(t, err)

	rec, err := svc.ResolveCheckout(context.Background(), "cs_test_1", db.PaymentCompleted)
	require.NoError(t, err)
	assert.Equal(t, pending.ID, rec.ID)
	assert.Equal(t, db.PaymentCompleted, rec.Status)
	assert.Equal(t, 1, store.statusUpdates)
}

func TestResolveCheckoutIdempotent(t *testing.T) {
	store := newMockPaymentStore()
	svc := NewPaymentService(newFakeDB(t), store, &mockProvider{}, "")

	_, err := svc.RequestDeposit(context.Background(), nil, testRental())
	require.NoError(t, err)

	_, err = svc.ResolveCheckout(context.Background(), "cs_test_1", db.PaymentCompleted)
	require.NoError(t, err)

	// Duplicate delivery, this time reporting failure. The settled record
	// must keep its status.
	rec, err := svc.ResolveCheckout(context.Background(), "cs_test_1", db.PaymentFailed)
	require.NoError(t, err)
	assert.Equal(t, db.PaymentCompleted, rec.Status)
	assert.Equal(t, 1, store.statusUpdates)
}

func TestResolveCheckoutUnknownSession(t *testing.T) {
	svc := NewPaymentService(newFakeDB(t), newMockPaymentStore(), &mockProvider{}, "")

	_, err := svc.ResolveCheckout(context.Background(), "cs_unknown", db.PaymentCompleted)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestResolveRefundByPaymentIntent(t *testing.T) {
	store := newMockPaymentStore()
	provider := &mockProvider{sessionBy: map[string]string{"pi_test_1": "cs_test_1"}}
	svc := NewPaymentService(newFakeDB(t), store, provider, "")

	refund := &db.PaymentRecord{RentalID: 42, Amount: 500000, Type: db.PaymentRefund, Status: db.PaymentPending, ProviderRef: "cs_test_1"}
	require.NoError(t, store.Insert(context.Background(), nil, refund))

	rec, err := svc.ResolveRefundByPaymentIntent(context.Background(), "pi_test_1")
	require.NoError(t, err)
	assert.Equal(t, db.PaymentCompleted, rec.Status)
}

func TestVerifyPaidSession(t *testing.T) {
	store := newMockPaymentStore()
	provider := &mockProvider{paid: map[string]bool{"cs_test_1": true}}
	svc := NewPaymentService(newFakeDB(t), store, provider, "")

	pending, err := svc.RequestDeposit(context.Background(), nil, testRental())
	require.NoError(t, err)

	rec, changed, err := svc.Verify(context.Background(), pending.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, db.PaymentCompleted, rec.Status)
}

func TestVerifyUnpaidSession(t *testing.T) {
	store := newMockPaymentStore()
	provider := &mockProvider{}
	svc := NewPaymentService(newFakeDB(t), store, provider, "")

	pending, err := svc.RequestDeposit(context.Background(), nil, testRental())
	require.NoError(t, err)

	rec, changed, err := svc.Verify(context.Background(), pending.ID)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, db.PaymentPending, rec.Status)
}

func TestVerifySettledRecordSkipsProvider(t *testing.T) {
	store := newMockPaymentStore()
	provider := &mockProvider{}
	svc := NewPaymentService(newFakeDB(t), store, provider, "")

	settled := &db.PaymentRecord{RentalID: 42, Type: db.PaymentDeposit, Status: db.PaymentCompleted, ProviderRef: "cs_test_1"}
	require.NoError(t, store.Insert(context.Background(), nil, settled))

	_, changed, err := svc.Verify(context.Background(), settled.ID)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Zero(t, provider.paidChecks)
}

func TestVerifySkipsRefundRecords(t *testing.T) {
	store := newMockPaymentStore()
	provider := &mockProvider{paid: map[string]bool{"cs_test_1": true}}
	svc := NewPaymentService(newFakeDB(t), store, provider, "")

	refund := &db.PaymentRecord{RentalID: 42, Type: db.PaymentRefund, Status: db.PaymentPending, ProviderRef: "cs_test_1"}
	require.NoError(t, store.Insert(context.Background(), nil, refund))

	_, changed, err := svc.Verify(context.Background(), refund.ID)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Zero(t, provider.paidChecks)
}
