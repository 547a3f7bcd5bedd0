package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mstgnz/idpay/infra/config"
	"github.com/mstgnz/idpay/provider"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "data", "idpay.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func createTestProfile(t *testing.T, store *Store) *provider.PaymentProfile {
	t.Helper()

	profile := &provider.PaymentProfile{
		ProviderID: "idpay",
		Title:      "IDPay",
		Options:    map[string]string{"idpay_api_key": "key", "idpay_sandbox": "1"},
		Active:     true,
	}
	require.NoError(t, store.SaveProfile(context.Background(), profile))
	return profile
}

func createTestPurchase(t *testing.T, store *Store, profileID int64) *provider.PurchaseRequest {
	t.Helper()

	request := &provider.PurchaseRequest{
		UserID:       7,
		ProfileID:    profileID,
		Purchasable:  "user_upgrade",
		Title:        "Gold membership",
		CostAmount:   10000,
		CostCurrency: "IRR",
		ReturnURL:    "https://forum.example/return",
		CancelURL:    "https://forum.example/cancel",
	}
	require.NoError(t, store.CreatePurchaseRequest(context.Background(), request))
	return request
}

func TestNewSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "idpay.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, DriverSQLite, store.Driver())
	assert.NoError(t, store.Ping(context.Background()))

	_, err = os.Stat(dbPath)
	assert.NoError(t, err)
}

func TestNewSQLiteStore_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "idpay.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	profile := createTestProfile(t, store)
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.GetProfile(context.Background(), profile.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "IDPay", loaded.Title)
}

func TestOpen(t *testing.T) {
	store, err := Open(&config.AppConfig{
		DBDriver:   DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "idpay.db"),
	})
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, DriverSQLite, store.Driver())

	_, err = Open(&config.AppConfig{DBDriver: "mysql"})
	assert.Error(t, err)
}

func TestStore_Rebind(t *testing.T) {
	query := "SELECT * FROM t WHERE a = ? AND b IN (?, ?)"

	sqlite := &Store{driver: DriverSQLite}
	assert.Equal(t, query, sqlite.rebind(query))

	postgres := &Store{driver: DriverPostgres}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b IN ($2, $3)", postgres.rebind(query))
}

func TestStore_RetryOperation(t *testing.T) {
	store := &Store{}

	t.Run("busy_then_success", func(t *testing.T) {
		calls := 0
		err := store.retryOperation(func() error {
			calls++
			if calls < 3 {
				return errors.New("database is locked")
			}
			return nil
		}, 3)
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("busy_exhausted", func(t *testing.T) {
		calls := 0
		err := store.retryOperation(func() error {
			calls++
			return errors.New("SQLITE_BUSY")
		}, 2)
		assert.Error(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("other_error_not_retried", func(t *testing.T) {
		calls := 0
		err := store.retryOperation(func() error {
			calls++
			return errors.New("constraint failed")
		}, 3)
		assert.EqualError(t, err, "constraint failed")
		assert.Equal(t, 1, calls)
	})
}

func TestStore_Profiles(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	profile := createTestProfile(t, store)
	assert.NotZero(t, profile.ID)

	loaded, err := store.GetProfile(ctx, profile.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "idpay", loaded.ProviderID)
	assert.Equal(t, "key", loaded.Options["idpay_api_key"])
	assert.True(t, loaded.Active)

	profile.Title = "IDPay sandbox"
	profile.Active = false
	require.NoError(t, store.SaveProfile(ctx, profile))

	loaded, err = store.GetProfile(ctx, profile.ID)
	require.NoError(t, err)
	assert.Equal(t, "IDPay sandbox", loaded.Title)
	assert.False(t, loaded.Active)

	missing, err := store.GetProfile(ctx, 9999)
	assert.NoError(t, err)
	assert.Nil(t, missing)

	err = store.SaveProfile(ctx, &provider.PaymentProfile{ID: 9999, ProviderID: "idpay", Title: "x"})
	assert.ErrorIs(t, err, provider.ErrProfileNotFound)

	createTestProfile(t, store)
	profiles, err := store.ListProfiles(ctx)
	require.NoError(t, err)
	assert.Len(t, profiles, 2)
}

func TestStore_PurchaseRequests(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	profile := createTestProfile(t, store)
	request := createTestPurchase(t, store, profile.ID)

	assert.NotZero(t, request.ID)
	assert.NotEmpty(t, request.RequestKey)

	found, err := store.FindPurchaseRequest(ctx, request.RequestKey)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, request.ID, found.ID)
	assert.Equal(t, 10000.0, found.CostAmount)
	assert.Equal(t, "IRR", found.CostCurrency)
	assert.Equal(t, profile.ID, found.ProfileID)
	assert.False(t, found.Fulfilled)

	missing, err := store.FindPurchaseRequest(ctx, "unknown")
	assert.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, store.MarkFulfilled(ctx, request.ID))
	found, err = store.FindPurchaseRequest(ctx, request.RequestKey)
	require.NoError(t, err)
	assert.True(t, found.Fulfilled)

	assert.ErrorIs(t, store.MarkFulfilled(ctx, 9999), ErrPurchaseRequestNotFound)
}

func TestStore_PaymentLogs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	profile := createTestProfile(t, store)
	request := createTestPurchase(t, store, profile.ID)

	entries := []provider.PaymentLog{
		{ProviderID: "idpay", TransactionID: "gw-1", GatewayID: "gw-1", RequestKey: request.RequestKey, LogType: provider.LogError, LogMessage: "Invalid cost amount"},
		{ProviderID: "idpay", TransactionID: "track-1", GatewayID: "gw-2", RequestKey: request.RequestKey, LogType: provider.LogPayment, LogMessage: "Payment received, purchase completed.", LogDetails: map[string]string{"id": "gw-2"}},
	}
	for i := range entries {
		require.NoError(t, store.InsertPaymentLog(ctx, &entries[i]))
		assert.NotZero(t, entries[i].ID)
	}

	tests := []struct {
		name          string
		transactionID string
		types         []provider.LogType
		want          int
	}{
		{"any_type_by_transaction", "gw-1", nil, 1},
		{"completed_types_only", "gw-1", []provider.LogType{provider.LogPayment, provider.LogCancel}, 0},
		{"by_original_gateway_id", "gw-2", []provider.LogType{provider.LogPayment, provider.LogCancel}, 1},
		{"by_settlement_reference", "track-1", nil, 1},
		{"unknown", "gw-9", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count, err := store.CountLogsByTransactionID(ctx, tt.transactionID, tt.types...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, count)
		})
	}

	logs, err := store.ListPaymentLogs(ctx, request.RequestKey, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, provider.LogPayment, logs[0].LogType)
	assert.Equal(t, "gw-2", logs[0].LogDetails["id"])
}

func TestFinalizer_CompleteTransaction(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	finalizer := NewFinalizer(store)

	profile := createTestProfile(t, store)

	tests := []struct {
		name          string
		result        provider.PaymentResult
		wantType      provider.LogType
		wantMessage   string
		wantFulfilled bool
	}{
		{"received", provider.PaymentReceived, provider.LogPayment, msgPaymentReceived, true},
		{"reinstated", provider.PaymentReinstated, provider.LogPayment, msgPaymentReinstated, true},
		{"reversed", provider.PaymentReversed, provider.LogCancel, msgPaymentReversed, false},
		{"none", provider.PaymentNone, provider.LogInfo, msgNoAction, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := createTestPurchase(t, store, profile.ID)
			state := &provider.CallbackState{PurchaseRequest: request, PaymentResult: tt.result}

			require.NoError(t, finalizer.CompleteTransaction(ctx, state))
			assert.Equal(t, tt.wantType, state.LogType)
			assert.Equal(t, tt.wantMessage, state.LogMessage)

			found, err := store.FindPurchaseRequest(ctx, request.RequestKey)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFulfilled, found.Fulfilled)
		})
	}

	t.Run("without_purchase_request", func(t *testing.T) {
		err := finalizer.CompleteTransaction(ctx, &provider.CallbackState{PaymentResult: provider.PaymentReceived})
		assert.Error(t, err)
	})
}
