package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/formgate/formgate-api/api/handlers"
	"github.com/formgate/formgate-api/mailer"
	"github.com/formgate/formgate-api/verification"
)

// fakeSender records sends and fails the addresses listed in failFor.
type fakeSender struct {
	mu      sync.Mutex
	sent    []mailer.Message
	failFor map[string]bool
}

func (f *fakeSender) Send(_ context.Context, msg mailer.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[msg.ToEmail] {
		return fmt.Errorf("delivery refused for %s", msg.ToEmail)
	}
	f.sent = append(f.sent, msg)
	return nil
}

// testClock is a hand-cranked wall clock shared with the store under test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newVerificationHandler(clock *testClock) (handlers.Verification, *verification.MemoryStore) {
	store := verification.NewMemoryStore(
		verification.WithClock(clock.Now),
		verification.WithCodeGenerator(func() string { return "123456" }),
	)
	return handlers.Verification{Store: store, Sender: &fakeSender{}}, store
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest("POST", path, bytes.NewReader(b))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestVerification_RequestCodeHandlerIssuesCode(t *testing.T) {
	clock := newTestClock()
	v, _ := newVerificationHandler(clock)

	rr := postJSON(t, v.RequestCodeHandler, "/api/v1/verify/request-code", map[string]string{"email": "  A@X.com "})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"issued": true}`, rr.Body.String())
}

func TestVerification_RequestCodeHandlerRateLimited(t *testing.T) {
	clock := newTestClock()
	v, _ := newVerificationHandler(clock)

	rr := postJSON(t, v.RequestCodeHandler, "/api/v1/verify/request-code", map[string]string{"email": "a@x.com"})
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = postJSON(t, v.RequestCodeHandler, "/api/v1/verify/request-code", map[string]string{"email": "a@x.com"})
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	var resp struct {
		RetryAfterSeconds int `json:"retryAfterSeconds"`
	}
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 60, resp.RetryAfterSeconds)

	// ten seconds later the remaining wait has shrunk accordingly
	clock.Advance(10 * time.Second)
	rr = postJSON(t, v.RequestCodeHandler, "/api/v1/verify/request-code", map[string]string{"email": "a@x.com"})
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 50, resp.RetryAfterSeconds)
}

func TestVerification_RequestCodeHandlerMissingEmail(t *testing.T) {
	clock := newTestClock()
	v, _ := newVerificationHandler(clock)

	rr := postJSON(t, v.RequestCodeHandler, "/api/v1/verify/request-code", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestVerification_ConfirmCodeHandlerNotFound(t *testing.T) {
	clock := newTestClock()
	v, _ := newVerificationHandler(clock)

	rr := postJSON(t, v.ConfirmCodeHandler, "/api/v1/verify/confirm-code",
		map[string]string{"email": "nobody@x.com", "code": "123456"})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"reason": "NotFound"}`, rr.Body.String())
}

func TestVerification_ConfirmCodeHandlerMismatchThenSuccess(t *testing.T) {
	clock := newTestClock()
	v, _ := newVerificationHandler(clock)

	postJSON(t, v.RequestCodeHandler, "/api/v1/verify/request-code", map[string]string{"email": "a@x.com"})

	rr := postJSON(t, v.ConfirmCodeHandler, "/api/v1/verify/confirm-code",
		map[string]string{"email": "a@x.com", "code": "000000"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"reason": "Mismatch"}`, rr.Body.String())

	// a wrong guess does not invalidate the outstanding code
	rr = postJSON(t, v.ConfirmCodeHandler, "/api/v1/verify/confirm-code",
		map[string]string{"email": "a@x.com", "code": "123456"})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"verified": true}`, rr.Body.String())
}

func TestVerification_ConfirmCodeHandlerExpired(t *testing.T) {
	clock := newTestClock()
	v, _ := newVerificationHandler(clock)

	postJSON(t, v.RequestCodeHandler, "/api/v1/verify/request-code", map[string]string{"email": "a@x.com"})
	clock.Advance(11 * time.Minute)

	rr := postJSON(t, v.ConfirmCodeHandler, "/api/v1/verify/confirm-code",
		map[string]string{"email": "a@x.com", "code": "123456"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"reason": "Expired"}`, rr.Body.String())
}

func TestVerification_StatusHandlerLifecycle(t *testing.T) {
	clock := newTestClock()
	v, _ := newVerificationHandler(clock)

	rr := postJSON(t, v.StatusHandler, "/api/v1/verify/status", map[string]string{"email": "a@x.com"})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"verified": false}`, rr.Body.String())

	postJSON(t, v.RequestCodeHandler, "/api/v1/verify/request-code", map[string]string{"email": "a@x.com"})
	postJSON(t, v.ConfirmCodeHandler, "/api/v1/verify/confirm-code",
		map[string]string{"email": "a@x.com", "code": "123456"})

	rr = postJSON(t, v.StatusHandler, "/api/v1/verify/status", map[string]string{"email": "a@x.com"})
	assert.JSONEq(t, `{"verified": true}`, rr.Body.String())

	// verified state lapses after its 30 minute window
	clock.Advance(31 * time.Minute)
	rr = postJSON(t, v.StatusHandler, "/api/v1/verify/status", map[string]string{"email": "a@x.com"})
	assert.JSONEq(t, `{"verified": false}`, rr.Body.String())
}
