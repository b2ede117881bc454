package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiseto/order-intake/internal/domain/catalog"
	"github.com/kiseto/order-intake/internal/domain/order"
	"github.com/kiseto/order-intake/internal/session"
	"github.com/kiseto/order-intake/internal/zipcloud"
)

type mockOrderRepo struct {
	mu     sync.Mutex
	nextID int64
	byKey  map[string]int64
	stored []*order.Record
	err    error
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{byKey: make(map[string]int64)}
}

func (m *mockOrderRepo) Insert(_ context.Context, rec *order.Record) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	if id, ok := m.byKey[rec.IdempotencyKey]; ok {
		return id, nil
	}
	m.nextID++
	m.byKey[rec.IdempotencyKey] = m.nextID
	m.stored = append(m.stored, rec)
	return m.nextID, nil
}

func (m *mockOrderRepo) ListSince(_ context.Context, _ time.Time) ([]order.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]order.Record, len(m.stored))
	for i, rec := range m.stored {
		out[i] = *rec
	}
	return out, nil
}

type mockResolver struct {
	result *zipcloud.Result
	err    error
}

func (m *mockResolver) Resolve(_ context.Context, code string) (*zipcloud.Result, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &zipcloud.Result{PostalCode: code, Found: false}, nil
}

type env struct {
	t        *testing.T
	srv      *httptest.Server
	client   *http.Client
	repo     *mockOrderRepo
	resolver *mockResolver
}

func newEnv(t *testing.T) *env {
	t.Helper()

	repo := newMockOrderRepo()
	resolver := &mockResolver{}
	mgr := session.NewManager(catalog.Default(), session.Credentials{
		UserID:   "tencho",
		Password: "himitsu",
	}, time.Hour)

	h := New(Config{}, mgr, catalog.Default(), resolver, repo)
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &env{
		t:        t,
		srv:      srv,
		client:   &http.Client{Jar: jar},
		repo:     repo,
		resolver: resolver,
	}
}

func (e *env) post(path string, body any) *http.Response {
	e.t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(e.t, err)
	resp, err := e.client.Post(e.srv.URL+path, "application/json", bytes.NewReader(buf))
	require.NoError(e.t, err)
	return resp
}

func (e *env) get(path string) *http.Response {
	e.t.Helper()
	resp, err := e.client.Get(e.srv.URL + path)
	require.NoError(e.t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (e *env) login() {
	e.t.Helper()
	resp := e.post("/api/login", loginRequest{UserID: "tencho", Password: "himitsu"})
	require.Equal(e.t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()
}

func validForm() session.InputForm {
	return session.InputForm{
		Name:       "山田太郎",
		PostalCode: "600-8001",
		Address:    "京都府京都市下京区",
		Phone:      "075-000-0000",
		Email:      "taro@example.com",
		Items: map[string]session.ItemForm{
			"shirt": {Quantity: 1, Size: "M"},
			"pants": {},
			"socks": {},
		},
	}
}

func (e *env) confirmed() {
	e.t.Helper()
	e.login()
	resp := e.post("/api/order", validForm())
	require.Equal(e.t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestLogin_Success(t *testing.T) {
	e := newEnv(t)

	resp := e.post("/api/login", loginRequest{UserID: "tencho", Password: "himitsu"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	state := decodeBody[stateResponse](t, resp)
	assert.Equal(t, session.PhaseInput, state.Phase)
	require.NotNil(t, state.Form)
	assert.Contains(t, state.Form.Items, "shirt")
}

func TestLogin_BadCredentials(t *testing.T) {
	e := newEnv(t)

	resp := e.post("/api/login", loginRequest{UserID: "tencho", Password: "wrong"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	body := decodeBody[errorResponse](t, resp)
	assert.Equal(t, http.StatusUnauthorized, body.Code)
}

func TestLogin_SetsSessionCookie(t *testing.T) {
	e := newEnv(t)

	resp := e.post("/api/login", loginRequest{UserID: "tencho", Password: "himitsu"})
	_ = resp.Body.Close()

	var found bool
	for _, c := range resp.Cookies() {
		if c.Name == SessionCookie {
			found = true
			assert.True(t, c.HttpOnly)
		}
	}
	assert.True(t, found, "login must establish a session cookie")
}

func TestLogout_DropsSession(t *testing.T) {
	e := newEnv(t)
	e.login()

	resp := e.post("/api/logout", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	_ = resp.Body.Close()

	// The old session is gone; a submit now has no session to act on.
	submit := e.post("/api/order", validForm())
	defer submit.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, submit.StatusCode)
}

func TestCatalog(t *testing.T) {
	e := newEnv(t)

	resp := e.get("/api/catalog")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[catalogResponse](t, resp)
	require.Len(t, body.Products, 3)
	assert.Equal(t, 10, body.MaxQuantity)
	assert.Equal(t, "shirt", body.Products[0].Key)
	assert.Equal(t, "simple", body.Products[0].Kind)
	assert.Equal(t, []string{"S", "M", "L", "XL"}, body.Products[0].Sizes)
	assert.Equal(t, "trousers", body.Products[1].Kind)
	assert.Equal(t, 61, body.Products[1].WaistOptions[0])
	assert.Equal(t, "socks", body.Products[2].Key)
	assert.Empty(t, body.Products[2].Sizes)
}

func TestSessionState_StartsInLogin(t *testing.T) {
	e := newEnv(t)

	resp := e.get("/api/session")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	state := decodeBody[stateResponse](t, resp)
	assert.Equal(t, session.PhaseLogin, state.Phase)
	assert.Nil(t, state.Form)
}

func TestSubmit_WithoutSession(t *testing.T) {
	e := newEnv(t)

	resp := e.post("/api/order", validForm())
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSubmit_WrongPhase(t *testing.T) {
	e := newEnv(t)

	// Establish a session but skip login.
	_ = e.get("/api/session").Body.Close()

	resp := e.post("/api/order", validForm())
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	body := decodeBody[errorResponse](t, resp)
	assert.Equal(t, session.PhaseLogin, body.Phase)
}

func TestSubmit_Success(t *testing.T) {
	e := newEnv(t)
	e.login()

	resp := e.post("/api/order", validForm())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	state := decodeBody[stateResponse](t, resp)
	assert.Equal(t, session.PhaseConfirm, state.Phase)
	require.NotNil(t, state.Confirmation)
	assert.Equal(t, "山田太郎", state.Confirmation.Name)
	assert.Equal(t, "6008001", state.Confirmation.PostalCode)
	require.Len(t, state.Confirmation.Lines, 1)
	assert.Equal(t, "shirt", state.Confirmation.Lines[0].Key)
	assert.Equal(t, "2000", state.Confirmation.Total.String())
}

func TestSubmit_ValidationFailures(t *testing.T) {
	e := newEnv(t)
	e.login()

	form := validForm()
	form.Name = ""
	form.PostalCode = "123"
	form.Items["shirt"] = session.ItemForm{}

	resp := e.post("/api/order", form)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	body := decodeBody[errorResponse](t, resp)
	codes := make([]order.FailureCode, len(body.Failures))
	for i, f := range body.Failures {
		codes[i] = f.Code
	}
	assert.Contains(t, codes, order.RequiredFieldMissing)
	assert.Contains(t, codes, order.InvalidPostalCode)
	assert.Contains(t, codes, order.EmptyOrder)

	// Session stays in input with the rejected edits kept.
	state := decodeBody[stateResponse](t, e.get("/api/session"))
	assert.Equal(t, session.PhaseInput, state.Phase)
	require.NotNil(t, state.Form)
	assert.Equal(t, "123", state.Form.PostalCode)
}

func TestSubmit_QuantityOutOfRange(t *testing.T) {
	e := newEnv(t)
	e.login()

	form := validForm()
	form.Items["shirt"] = session.ItemForm{Quantity: 11, Size: "M"}

	resp := e.post("/api/order", form)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestSubmit_UnknownProduct(t *testing.T) {
	e := newEnv(t)
	e.login()

	form := validForm()
	form.Items["hat"] = session.ItemForm{Quantity: 1}

	resp := e.post("/api/order", form)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEdit_RestoresForm(t *testing.T) {
	e := newEnv(t)
	e.confirmed()

	resp := e.post("/api/order/edit", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	state := decodeBody[stateResponse](t, resp)
	assert.Equal(t, session.PhaseInput, state.Phase)
	require.NotNil(t, state.Form)
	assert.Equal(t, "山田太郎", state.Form.Name)
	assert.Equal(t, "6008001", state.Form.PostalCode)
	assert.Equal(t, 1, state.Form.Items["shirt"].Quantity)
	assert.Equal(t, "M", state.Form.Items["shirt"].Size)
}

func TestCommit_Success(t *testing.T) {
	e := newEnv(t)
	e.confirmed()

	resp := e.post("/api/order/commit", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[commitResponse](t, resp)
	assert.Equal(t, session.PhaseComplete, body.Phase)
	assert.Equal(t, int64(1), body.OrderID)

	require.Len(t, e.repo.stored, 1)
	assert.Equal(t, "山田太郎", e.repo.stored[0].Name)
}

func TestCommit_StoreFailure(t *testing.T) {
	e := newEnv(t)
	e.confirmed()
	e.repo.err = errors.New("connection reset")

	resp := e.post("/api/order/commit", nil)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)

	body := decodeBody[errorResponse](t, resp)
	assert.Equal(t, session.PhaseConfirm, body.Phase)

	// Retry succeeds once the store recovers.
	e.repo.err = nil
	retry := e.post("/api/order/commit", nil)
	require.Equal(t, http.StatusOK, retry.StatusCode)
	_ = retry.Body.Close()
}

func TestCommit_WrongPhase(t *testing.T) {
	e := newEnv(t)
	e.login()

	resp := e.post("/api/order/commit", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestNewOrder_ResetsForm(t *testing.T) {
	e := newEnv(t)
	e.confirmed()
	_ = e.post("/api/order/commit", nil).Body.Close()

	resp := e.post("/api/order/new", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	state := decodeBody[stateResponse](t, resp)
	assert.Equal(t, session.PhaseInput, state.Phase)
	require.NotNil(t, state.Form)
	assert.Empty(t, state.Form.Name)
	assert.Zero(t, state.Form.Items["shirt"].Quantity)
}

func TestLookup_Found(t *testing.T) {
	e := newEnv(t)
	e.login()
	e.resolver.result = &zipcloud.Result{
		PostalCode: "6008001",
		Address:    "京都府京都市下京区",
		Found:      true,
	}

	resp := e.post("/api/address/lookup", lookupRequest{PostalCode: "600-8001"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[lookupResponse](t, resp)
	assert.True(t, body.Found)
	assert.Equal(t, "6008001", body.PostalCode)
	assert.Equal(t, "京都府京都市下京区", body.Address)

	// The form is pre-filled for the input phase.
	state := decodeBody[stateResponse](t, e.get("/api/session"))
	require.NotNil(t, state.Form)
	assert.Equal(t, "6008001", state.Form.PostalCode)
	assert.Equal(t, "京都府京都市下京区", state.Form.Address)
}

func TestLookup_NotFound(t *testing.T) {
	e := newEnv(t)
	e.login()

	resp := e.post("/api/address/lookup", lookupRequest{PostalCode: "0000000"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[lookupResponse](t, resp)
	assert.False(t, body.Found)
	assert.Empty(t, body.Address)
}

func TestLookup_MalformedCode(t *testing.T) {
	e := newEnv(t)
	e.login()

	resp := e.post("/api/address/lookup", lookupRequest{PostalCode: "123"})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	body := decodeBody[errorResponse](t, resp)
	require.Len(t, body.Failures, 1)
	assert.Equal(t, order.InvalidPostalCode, body.Failures[0].Code)
}

func TestLookup_ResolverDown(t *testing.T) {
	e := newEnv(t)
	e.login()
	e.resolver.err = errors.New("dial timeout")

	resp := e.post("/api/address/lookup", lookupRequest{PostalCode: "6008001"})
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestLookup_WrongPhase(t *testing.T) {
	e := newEnv(t)
	e.confirmed()

	resp := e.post("/api/address/lookup", lookupRequest{PostalCode: "6008001"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestFullCycle(t *testing.T) {
	e := newEnv(t)
	e.login()

	// First order.
	_ = e.post("/api/order", validForm()).Body.Close()
	first := decodeBody[commitResponse](t, e.post("/api/order/commit", nil))
	assert.Equal(t, int64(1), first.OrderID)

	// Second order gets a fresh receipt identifier.
	_ = e.post("/api/order/new", nil).Body.Close()
	form := validForm()
	form.Items["socks"] = session.ItemForm{Quantity: 2, Size: "25cm"}
	_ = e.post("/api/order", form).Body.Close()
	second := decodeBody[commitResponse](t, e.post("/api/order/commit", nil))
	assert.Equal(t, int64(2), second.OrderID)

	require.Len(t, e.repo.stored, 2)
	assert.NotEqual(t, e.repo.stored[0].IdempotencyKey, e.repo.stored[1].IdempotencyKey)
}
