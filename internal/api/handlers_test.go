package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"snappy-license-server/config"
	"snappy-license-server/internal/auth"
	"snappy-license-server/internal/database"
	"snappy-license-server/internal/events"
	"snappy-license-server/internal/license"
)

// memStore is an in-memory license.Store for handler tests.
type memStore struct {
	licenses map[string]*database.License
	nextID   int
}

var errUnique = errors.New("duplicate key value violates unique constraint")

func newMemStore() *memStore {
	return &memStore{licenses: make(map[string]*database.License)}
}

func (m *memStore) CreateLicenseWithLog(_ context.Context, l *database.License, p *database.PaymentLog) error {
	for _, e := range m.licenses {
		if e.PaymentReference == l.PaymentReference {
			return errUnique
		}
	}
	m.nextID++
	l.ID = fmt.Sprintf("lic-%d", m.nextID)
	l.CreatedAt = time.Now()
	cp := *l
	m.licenses[l.ID] = &cp
	return nil
}

func (m *memStore) GetLicenseByID(_ context.Context, id string) (*database.License, error) {
	if l, ok := m.licenses[id]; ok {
		cp := *l
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) GetLicenseByPaymentReference(_ context.Context, ref string) (*database.License, error) {
	for _, l := range m.licenses {
		if l.PaymentReference == ref {
			cp := *l
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetAdminLicense(_ context.Context, id string) (*database.AdminLicense, error) {
	l, ok := m.licenses[id]
	if !ok {
		return nil, nil
	}
	return &database.AdminLicense{License: *l, OwnerName: "Test User", OwnerEmail: "user@example.com"}, nil
}

func (m *memStore) ListLicensesByUser(_ context.Context, userID string) ([]database.License, error) {
	var out []database.License
	for _, l := range m.licenses {
		if l.UserID == userID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (m *memStore) ListPendingLicenses(ctx context.Context) ([]database.AdminLicense, error) {
	var out []database.AdminLicense
	for id, l := range m.licenses {
		if l.Status == database.StatusPendingVerification && !l.AdminVerified {
			al, _ := m.GetAdminLicense(ctx, id)
			out = append(out, *al)
		}
	}
	return out, nil
}

func (m *memStore) ListAllLicenses(ctx context.Context) ([]database.AdminLicense, error) {
	var out []database.AdminLicense
	for id := range m.licenses {
		al, _ := m.GetAdminLicense(ctx, id)
		out = append(out, *al)
	}
	return out, nil
}

func (m *memStore) MarkLicenseVerified(_ context.Context, id, notes string, activatedAt, expiresAt time.Time) (bool, error) {
	l, ok := m.licenses[id]
	if !ok || l.AdminVerified || l.Status != database.StatusPendingVerification {
		return false, nil
	}
	l.AdminVerified = true
	l.ActivatedAt = &activatedAt
	l.ExpiresAt = &expiresAt
	l.AdminNotes = notes
	return true, nil
}

func (m *memStore) MarkLicenseActivated(_ context.Context, id string) (bool, error) {
	l, ok := m.licenses[id]
	if !ok || !l.AdminVerified || l.EmailSent || l.Status != database.StatusPendingVerification {
		return false, nil
	}
	l.Status = database.StatusActive
	l.EmailSent = true
	return true, nil
}

func (m *memStore) MarkLicenseRejected(_ context.Context, id, reason string) (bool, error) {
	l, ok := m.licenses[id]
	if !ok || l.Status == database.StatusActive || l.Status == database.StatusRejected {
		return false, nil
	}
	l.Status = database.StatusRejected
	l.AdminNotes = reason
	return true, nil
}

func (m *memStore) DeleteLicense(_ context.Context, id string) (bool, error) {
	if _, ok := m.licenses[id]; !ok {
		return false, nil
	}
	delete(m.licenses, id)
	return true, nil
}

func (m *memStore) SetPaymentLogVerified(_ context.Context, _ string) error  { return nil }
func (m *memStore) SetPaymentLogStatus(_ context.Context, _, _ string) error { return nil }
func (m *memStore) IsUniqueViolation(err error) bool                         { return errors.Is(err, errUnique) }

type noopMailer struct{ sent int }

func (n *noopMailer) SendLicenseEmail(_ context.Context, _, _, _, _ string, _ time.Time) error {
	n.sent++
	return nil
}

type serverFixture struct {
	server     *Server
	store      *memStore
	mailer     *noopMailer
	jwtManager *auth.JWTManager
}

func newTestServer(t *testing.T) *serverFixture {
	t.Helper()

	store := newMemStore()
	mailer := &noopMailer{}
	bus := events.NewEventBus()
	logger := zerolog.Nop()

	svc := license.NewService(store, mailer, bus, license.DefaultPricing, logger)
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)

	server := NewServer(
		ServerConfig{Port: 0, Host: "127.0.0.1", AllowedOrigins: "*", ProductionMode: true},
		nil, // repo unused on the routes under test
		svc,
		auth.NewService(nil, jwtManager, auth.NewPasswordManager(4, 8), nil, bus, logger),
		jwtManager,
		bus,
		nil,
		nil,
		config.PaymentConfig{UPIID: "snappy@upi", PayeeName: "SnappyTools"},
		license.DefaultPricing,
		logger,
	)

	return &serverFixture{server: server, store: store, mailer: mailer, jwtManager: jwtManager}
}

func (f *serverFixture) token(t *testing.T, userID string, isAdmin bool) string {
	t.Helper()
	token, err := f.jwtManager.GenerateAccessToken(auth.UserClaims{
		UserID:  userID,
		Email:   userID + "@example.com",
		IsAdmin: isAdmin,
	})
	if err != nil {
		t.Fatalf("failed to mint token: %v", err)
	}
	return token
}

func (f *serverFixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.server.router.ServeHTTP(w, req)
	return w
}

func TestSubmitPaymentRequiresAuth(t *testing.T) {
	f := newTestServer(t)

	w := f.do(t, http.MethodPost, "/api/payment/submit", "", `{"plan":"pro","payment_reference":"TXN1"}`)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestSubmitPaymentCreatesMaskedLicense(t *testing.T) {
	f := newTestServer(t)
	token := f.token(t, "user-1", false)

	w := f.do(t, http.MethodPost, "/api/payment/submit", token, `{"plan":"pro","payment_reference":"TXN123"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body: %s", w.Code, w.Body.String())
	}

	var resp struct {
		License license.UserLicenseView `json:"license"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.License.LicenseKey != license.MaskedKey {
		t.Errorf("response leaked key %q before verification", resp.License.LicenseKey)
	}
	if resp.License.Status != "pending_verification" {
		t.Errorf("status = %q, want pending_verification", resp.License.Status)
	}

	// Duplicate reference conflicts.
	w = f.do(t, http.MethodPost, "/api/payment/submit", token, `{"plan":"starter","payment_reference":"TXN123"}`)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", w.Code)
	}
}

func TestSubmitPaymentValidation(t *testing.T) {
	f := newTestServer(t)
	token := f.token(t, "user-1", false)

	w := f.do(t, http.MethodPost, "/api/payment/submit", token, `{"plan":"platinum","payment_reference":"TXN9"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid plan status = %d, want 400", w.Code)
	}

	w = f.do(t, http.MethodPost, "/api/payment/submit", token, `{"plan":"pro"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing reference status = %d, want 400", w.Code)
	}
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	f := newTestServer(t)
	userToken := f.token(t, "user-1", false)

	w := f.do(t, http.MethodGet, "/admin/licenses", userToken, "")
	if w.Code != http.StatusForbidden {
		t.Errorf("non-admin status = %d, want 403", w.Code)
	}

	w = f.do(t, http.MethodGet, "/admin/licenses", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", w.Code)
	}
}

func TestVerifyAndSendActivationFlow(t *testing.T) {
	f := newTestServer(t)
	userToken := f.token(t, "user-1", false)
	adminToken := f.token(t, "admin-1", true)

	w := f.do(t, http.MethodPost, "/api/payment/submit", userToken, `{"plan":"pro","payment_reference":"TXN123"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("submit status = %d", w.Code)
	}
	var created struct {
		License license.UserLicenseView `json:"license"`
	}
	json.Unmarshal(w.Body.Bytes(), &created)
	id := created.License.ID

	// Send-activation before verify conflicts.
	w = f.do(t, http.MethodPost, "/admin/licenses/"+id+"/send-activation", adminToken, "")
	if w.Code != http.StatusConflict {
		t.Errorf("premature send status = %d, want 409", w.Code)
	}
	if f.mailer.sent != 0 {
		t.Fatal("email sent before verification")
	}

	w = f.do(t, http.MethodPost, "/admin/licenses/"+id+"/verify", adminToken, `{"notes":"UTR ok"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("verify status = %d; body: %s", w.Code, w.Body.String())
	}

	// Second verify conflicts.
	w = f.do(t, http.MethodPost, "/admin/licenses/"+id+"/verify", adminToken, "")
	if w.Code != http.StatusConflict {
		t.Errorf("repeat verify status = %d, want 409", w.Code)
	}

	w = f.do(t, http.MethodPost, "/admin/licenses/"+id+"/send-activation", adminToken, "")
	if w.Code != http.StatusOK {
		t.Fatalf("send-activation status = %d; body: %s", w.Code, w.Body.String())
	}
	if f.mailer.sent != 1 {
		t.Errorf("mailer sent %d emails, want 1", f.mailer.sent)
	}

	// Repeat send conflicts and does not resend.
	w = f.do(t, http.MethodPost, "/admin/licenses/"+id+"/send-activation", adminToken, "")
	if w.Code != http.StatusConflict {
		t.Errorf("repeat send status = %d, want 409", w.Code)
	}
	if f.mailer.sent != 1 {
		t.Errorf("mailer sent %d emails after repeat, want 1", f.mailer.sent)
	}

	// Owner now sees the real key.
	w = f.do(t, http.MethodGet, "/api/licenses", userToken, "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var list struct {
		Licenses []license.UserLicenseView `json:"licenses"`
	}
	json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.Licenses) != 1 {
		t.Fatalf("got %d licenses, want 1", len(list.Licenses))
	}
	if !license.ValidKeyFormat(list.Licenses[0].LicenseKey) {
		t.Errorf("active license key %q not disclosed", list.Licenses[0].LicenseKey)
	}
	if !list.Licenses[0].IsActive {
		t.Error("active license reported inactive")
	}
}

func TestRejectAndDeleteFlow(t *testing.T) {
	f := newTestServer(t)
	userToken := f.token(t, "user-1", false)
	adminToken := f.token(t, "admin-1", true)

	w := f.do(t, http.MethodPost, "/api/payment/submit", userToken, `{"plan":"starter","payment_reference":"TXN5"}`)
	var created struct {
		License license.UserLicenseView `json:"license"`
	}
	json.Unmarshal(w.Body.Bytes(), &created)
	id := created.License.ID

	w = f.do(t, http.MethodPost, "/admin/licenses/"+id+"/reject", adminToken, `{"reason":"no payment found"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("reject status = %d", w.Code)
	}

	// Verify after reject conflicts.
	w = f.do(t, http.MethodPost, "/admin/licenses/"+id+"/verify", adminToken, "")
	if w.Code != http.StatusConflict {
		t.Errorf("verify rejected status = %d, want 409", w.Code)
	}

	w = f.do(t, http.MethodDelete, "/admin/licenses/"+id, adminToken, "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}

	w = f.do(t, http.MethodDelete, "/admin/licenses/"+id, adminToken, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("repeat delete status = %d, want 404", w.Code)
	}
}

func TestPublicEndpoints(t *testing.T) {
	f := newTestServer(t)

	w := f.do(t, http.MethodGet, "/api/plans", "", "")
	if w.Code != http.StatusOK {
		t.Errorf("plans status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "enterprise") {
		t.Error("plans response missing enterprise plan")
	}

	w = f.do(t, http.MethodGet, "/api/payment/upi-details", "", "")
	if w.Code != http.StatusOK {
		t.Errorf("upi-details status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "snappy@upi") {
		t.Error("upi-details response missing UPI ID")
	}

	w = f.do(t, http.MethodGet, "/api/payment/upi-details/pro", "", "")
	if w.Code != http.StatusOK {
		t.Errorf("upi-details/pro status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "149900") {
		t.Error("upi-details/pro response missing server-side amount")
	}

	w = f.do(t, http.MethodGet, "/api/payment/upi-details/platinum", "", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("upi-details unknown plan status = %d, want 400", w.Code)
	}
}

func TestGetMyLicenseScopedToOwner(t *testing.T) {
	f := newTestServer(t)
	ownerToken := f.token(t, "user-1", false)
	otherToken := f.token(t, "user-2", false)

	w := f.do(t, http.MethodPost, "/api/payment/submit", ownerToken, `{"plan":"pro","payment_reference":"TXN77"}`)
	var created struct {
		License license.UserLicenseView `json:"license"`
	}
	json.Unmarshal(w.Body.Bytes(), &created)
	id := created.License.ID

	w = f.do(t, http.MethodGet, "/api/licenses/"+id, ownerToken, "")
	if w.Code != http.StatusOK {
		t.Fatalf("owner fetch status = %d", w.Code)
	}

	// Another user's fetch reads as not found, never as forbidden.
	w = f.do(t, http.MethodGet, "/api/licenses/"+id, otherToken, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("cross-user fetch status = %d, want 404", w.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !rl.Allow("/api/test") {
			t.Fatalf("request %d unexpectedly limited", i+1)
		}
	}
	if rl.Allow("/api/test") {
		t.Error("fourth request should be limited")
	}
	// Other endpoints are unaffected.
	if !rl.Allow("/api/other") {
		t.Error("unrelated endpoint was limited")
	}
}
