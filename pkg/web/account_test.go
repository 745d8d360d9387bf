package web_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-wayfinder/internal/log"
	"github.com/teslashibe/go-wayfinder/pkg/backend"
	"github.com/teslashibe/go-wayfinder/pkg/store"
	"github.com/teslashibe/go-wayfinder/pkg/web"
)

func TestAuth_LoginLogout(t *testing.T) {
	f := newFixture(t)
	f.account.token = ""

	code, body := f.do(t, http.MethodGet, "/api/auth", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["authenticated"])
	assert.Equal(t, true, body["reachable"])

	code, _ = f.do(t, http.MethodPost, "/api/auth/login/password", `{"email":"jo@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = f.do(t, http.MethodPost, "/api/auth/login/password",
		`{"email":"jo@example.com","password":"hunter22"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["authenticated"])

	code, body = f.do(t, http.MethodPost, "/api/auth/logout", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["authenticated"])
}

func TestAuth_OTPFlow(t *testing.T) {
	f := newFixture(t)
	f.account.token = ""

	code, body := f.do(t, http.MethodPost, "/api/auth/register",
		`{"email":"jo@example.com","password":"hunter22"}`)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, true, body["otp_sent"])

	code, _ = f.do(t, http.MethodPost, "/api/auth/login/start", `{"email":"jo@example.com"}`)
	require.Equal(t, http.StatusOK, code)

	code, body = f.do(t, http.MethodPost, "/api/auth/login/verify",
		`{"email":"jo@example.com","otp":"123456"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["authenticated"])

	assert.Equal(t, []string{"register", "login/start", "login/verify"}, f.account.calls)
}

func TestAuth_SessionManagement(t *testing.T) {
	f := newFixture(t)

	code, _ := f.do(t, http.MethodPost, "/api/auth/change-password",
		`{"currentPassword":"hunter22","newPassword":"hunter22"}`)
	assert.Equal(t, http.StatusBadRequest, code, "new password must differ")

	code, _ = f.do(t, http.MethodPost, "/api/auth/change-password",
		`{"currentPassword":"hunter22","newPassword":"hunter23"}`)
	assert.Equal(t, http.StatusNoContent, code)

	code, body := f.do(t, http.MethodPost, "/api/auth/totp/setup", `{"email":"jo@example.com"}`)
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, body["qr_data_url"])

	code, _ = f.do(t, http.MethodPost, "/api/auth/totp/verify", `{"email":"jo@example.com","token":"12ab56"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = f.do(t, http.MethodPost, "/api/auth/totp/verify", `{"email":"jo@example.com","token":"123456"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["verified"])

	code, body = f.do(t, http.MethodPost, "/api/auth/logout-all", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["authenticated"])

	code, _ = f.do(t, http.MethodPost, "/api/auth/totp/setup", `{"email":"jo@example.com"}`)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestAuth_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"bad credentials", &backend.APIError{StatusCode: 400, Message: "invalid credentials"}, http.StatusUnprocessableEntity},
		{"refused", fmt.Errorf("%w: locked", backend.ErrRejected), http.StatusUnprocessableEntity},
		{"unauthorized", &backend.APIError{StatusCode: 401}, http.StatusUnauthorized},
		{"upstream down", &backend.APIError{StatusCode: 503}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.account.err = tt.err
			code, body := f.do(t, http.MethodPost, "/api/auth/login/password",
				`{"email":"jo@example.com","password":"hunter22"}`)
			assert.Equal(t, tt.code, code)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestAccountRoutes_Unconfigured(t *testing.T) {
	f := &fixture{server: web.New(web.Deps{
		Prefs: store.NewPrefs(store.NewMemory(), log.Discard()),
	}, web.WithLogger(log.Discard()))}

	for _, path := range []string{"/api/auth/login/password", "/api/contacts/sync", "/api/sos"} {
		code, body := f.do(t, http.MethodPost, path, `{"email":"jo@example.com","password":"hunter22"}`)
		assert.Equal(t, http.StatusServiceUnavailable, code, path)
		assert.Contains(t, body["error"], "account", path)
	}
	code, _ := f.do(t, http.MethodGet, "/api/profile", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	code, body := f.do(t, http.MethodPut, "/api/contacts", `{"contacts":[{"name":"Ann"}]}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["uploaded"])
}

func TestLogin_SeedsMyInfo(t *testing.T) {
	f := newFixture(t)
	f.account.token = ""
	f.account.profile = backend.Profile{FirstName: "Jo", LastName: "Doe", Phone: "+254700000000"}

	code, _ := f.do(t, http.MethodPost, "/api/auth/login/password",
		`{"email":"jo@example.com","password":"hunter22"}`)
	require.Equal(t, http.StatusOK, code)

	code, body := f.do(t, http.MethodGet, "/api/myinfo", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Jo Doe", body["fullName"])
	assert.Equal(t, "+254700000000", body["phone"])
}

func TestProfile(t *testing.T) {
	f := newFixture(t)
	f.account.profile = backend.Profile{FirstName: "Jo", Email: "jo@example.com"}

	code, body := f.do(t, http.MethodGet, "/api/profile", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Jo", body["firstName"])

	code, _ = f.do(t, http.MethodPut, "/api/myinfo", `{"fullName":"Old Name","phone":"+1"}`)
	require.Equal(t, http.StatusOK, code)

	code, body = f.do(t, http.MethodPut, "/api/profile", `{"firstName":"Ann","lastName":"Lee"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Ann", body["firstName"])
	assert.Equal(t, "Ann", f.account.profile.FirstName)

	info, err := f.prefs.MyInfo(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "Ann Lee", info.FullName)
	assert.Equal(t, "+1", info.Phone, "empty patch field keeps the local value")
}

func TestContacts_SyncAndUpload(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodPost, "/api/contacts/sync", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["synced"])

	code, body = f.do(t, http.MethodPut, "/api/contacts", `{"contacts":[{"name":"Ann","phone":"+1"}]}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["uploaded"])
	require.Len(t, f.account.uploaded, 1)
	assert.Equal(t, "Ann", f.account.uploaded[0][0].Name)

	f.account.contacts = []store.Contact{{Name: "Ben", Phone: "+2"}, {Name: "Cy", Email: "cy@example.com"}}
	code, body = f.do(t, http.MethodPost, "/api/contacts/sync", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["synced"])

	local, err := f.prefs.Contacts(t.Context())
	require.NoError(t, err)
	require.Len(t, local, 2)
	assert.Equal(t, "Ben", local[0].Name)

	f.account.token = ""
	code, body = f.do(t, http.MethodPut, "/api/contacts", `{"contacts":[{"name":"Dee"}]}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["uploaded"])
	assert.Len(t, f.account.uploaded, 1)
}

func TestBiometric(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodGet, "/api/biometric", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["enabled"])

	code, body = f.do(t, http.MethodPost, "/api/biometric", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["enabled"])

	code, body = f.do(t, http.MethodGet, "/api/biometric", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["enabled"])
}

// accountAPI serves the account endpoints the real backend client calls.
type accountAPI struct {
	mu   sync.Mutex
	sent []backend.SOS
}

func (a *accountAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login/password", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"access": "abc"})
	})
	mux.HandleFunc("GET /profile", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer abc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"profile": map[string]string{"firstName": "Jo", "lastName": "Doe"},
		})
	})
	mux.HandleFunc("POST /sos/contacts", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	})
	mux.HandleFunc("POST /sos/send", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer abc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var s backend.SOS
		if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
			t.Errorf("decode sos: %v", err)
		}
		a.mu.Lock()
		a.sent = append(a.sent, s)
		a.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	})
	return mux
}

func TestLoginThenSOS(t *testing.T) {
	api := &accountAPI{}
	ts := httptest.NewServer(api.handler(t))
	defer ts.Close()

	logger := log.Discard()
	prefs := store.NewPrefs(store.NewMemory(), logger)
	client := backend.New(ts.URL, prefs, backend.WithLogger(logger))
	f := &fixture{server: web.New(web.Deps{
		Prefs:   prefs,
		Account: client,
	}, web.WithLogger(logger)), prefs: prefs}

	code, _ := f.do(t, http.MethodPut, "/api/contacts", `{"contacts":[{"name":"Ann","phone":"+254711111111"}]}`)
	require.Equal(t, http.StatusOK, code)

	code, _ = f.do(t, http.MethodPost, "/api/sos", "")
	require.Equal(t, http.StatusUnauthorized, code, "no token before sign-in")

	code, body := f.do(t, http.MethodPost, "/api/auth/login/password",
		`{"email":"jo@example.com","password":"hunter22"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["authenticated"])

	tok, err := prefs.Token(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	code, body = f.do(t, http.MethodPost, "/api/sos", "")
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, true, body["sent"])

	api.mu.Lock()
	defer api.mu.Unlock()
	require.Len(t, api.sent, 1)
	assert.Equal(t, "Jo Doe", api.sent[0].FullName)
	assert.Equal(t, []string{"+254711111111"}, api.sent[0].Phones)
}
