package wallet

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	walletmodel "github.com/astrovoice/kundli/backend/internal/model/wallet"
	"github.com/astrovoice/kundli/backend/internal/service/billing"
	walletservice "github.com/astrovoice/kundli/backend/internal/service/wallet"
)

const signupBalance = 500

func setupRouter() (*chi.Mux, *billing.Registry) {
	store := walletservice.NewMemoryStore(signupBalance)
	registry := billing.NewRegistry()
	handler := New(store, registry)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, registry
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestGetWalletCreatesWithSignupBalance(t *testing.T) {
	r, _ := setupRouter()

	resp := doJSON(t, r, http.MethodGet, "/wallet/user-1", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var wlt walletmodel.Wallet
	if err := json.Unmarshal(resp.Body.Bytes(), &wlt); err != nil {
		t.Fatalf("decoding wallet: %v", err)
	}
	if wlt.Balance != signupBalance {
		t.Fatalf("expected signup balance %d, got %v", signupBalance, wlt.Balance)
	}
}

func TestRechargeUpdatesBalanceAndLedger(t *testing.T) {
	r, _ := setupRouter()

	resp := doJSON(t, r, http.MethodPost, "/wallet/user-1/recharge", map[string]float64{"amount": 100})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var wlt walletmodel.Wallet
	if err := json.Unmarshal(resp.Body.Bytes(), &wlt); err != nil {
		t.Fatalf("decoding wallet: %v", err)
	}
	if wlt.Balance != signupBalance+100 {
		t.Fatalf("expected balance %d, got %v", signupBalance+100, wlt.Balance)
	}

	txResp := doJSON(t, r, http.MethodGet, "/wallet/user-1/transactions", nil)
	if txResp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", txResp.Code)
	}
	var txns []walletmodel.Transaction
	if err := json.Unmarshal(txResp.Body.Bytes(), &txns); err != nil {
		t.Fatalf("decoding ledger: %v", err)
	}
	if len(txns) != 1 || txns[0].Kind != walletmodel.KindRecharge || txns[0].Amount != 100 {
		t.Fatalf("unexpected ledger: %+v", txns)
	}
}

func TestRechargeRejectsNonPositiveAmount(t *testing.T) {
	r, _ := setupRouter()

	resp := doJSON(t, r, http.MethodPost, "/wallet/user-1/recharge", map[string]float64{"amount": 0})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestRechargeResumesPausedLiveSession(t *testing.T) {
	r, registry := setupRouter()

	// A meter that ran dry mid-session: one tick over the boundary pauses it.
	meter := billing.NewMeter(30, 48, 60, billing.Hooks{})
	registry.Register("session-1", "user-1", meter)
	for i := 0; i < 60; i++ {
		meter.Tick()
	}
	if snap := meter.Snapshot(); !snap.Paused {
		t.Fatalf("meter should be paused, got %+v", snap)
	}

	resp := doJSON(t, r, http.MethodPost, "/wallet/user-1/recharge", map[string]float64{"amount": 200})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	snap := meter.Snapshot()
	if snap.Paused {
		t.Fatal("recharge should unpause the live meter")
	}
	if snap.Balance != 200 {
		t.Fatalf("expected meter balance 200, got %v", snap.Balance)
	}
}
