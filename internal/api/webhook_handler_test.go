package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Lumenline/optimizer-dashboard/internal/runs"
	"github.com/Lumenline/optimizer-dashboard/internal/store"
	"github.com/Lumenline/optimizer-dashboard/pkg/model"
)

type memStore struct {
	runs map[string]model.OptimizationRun
	docs map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{
		runs: make(map[string]model.OptimizationRun),
		docs: make(map[string][]byte),
	}
}

func (m *memStore) UpsertRun(_ context.Context, run model.OptimizationRun) error {
	m.runs[run.ID] = run
	return nil
}

func (m *memStore) GetRun(_ context.Context, runID string) (*model.OptimizationRun, error) {
	if run, ok := m.runs[runID]; ok {
		return &run, nil
	}
	return nil, nil
}

func (m *memStore) ListRuns(_ context.Context, _ store.RunFilter) ([]model.OptimizationRun, error) {
	out := make([]model.OptimizationRun, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, r)
	}
	return out, nil
}

func (m *memStore) StaleRunIDs(_ context.Context, _ time.Duration) ([]string, error) {
	return nil, nil
}

func (m *memStore) SetJSON(_ context.Context, key string, value any, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.docs[key] = data
	return nil
}

func (m *memStore) GetJSON(_ context.Context, key string, dest any) error {
	data, ok := m.docs[key]
	if !ok {
		return errors.New("cache miss")
	}
	return json.Unmarshal(data, dest)
}

func (m *memStore) HealthCheck(_ context.Context) error { return nil }
func (m *memStore) Close() error                        { return nil }

func newWebhookApp(t *testing.T, secret string) (*fiber.App, *memStore) {
	t.Helper()
	st := newMemStore()
	svc := runs.NewService(zap.NewNop(), st, nil, nil, nil)
	wh := NewWebhookHandler(zap.NewNop(), svc, secret, "")

	app := fiber.New()
	app.Post("/webhooks/optimizer/results", wh.HandleResultPosting)
	return app, st
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestWebhook_ValidSignature(t *testing.T) {
	app, st := newWebhookApp(t, "topsecret")
	body := []byte(`{"run_id":"run-1","project_id":"acme-warehouse","status":"succeeded","savings_usd":"42.10"}`)

	req := httptest.NewRequest("POST", "/webhooks/optimizer/results", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Optimizer-Signature", sign("topsecret", body))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	stored := st.runs["run-1"]
	assert.Equal(t, model.RunStatusSucceeded, stored.Status)
	assert.Equal(t, "acme-warehouse", stored.ProjectID)
}

func TestWebhook_InvalidSignature(t *testing.T) {
	app, st := newWebhookApp(t, "topsecret")
	body := []byte(`{"run_id":"run-1","status":"succeeded"}`)

	req := httptest.NewRequest("POST", "/webhooks/optimizer/results", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Optimizer-Signature", sign("wrong-secret", body))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, st.runs)
}

func TestWebhook_MissingSignature(t *testing.T) {
	app, _ := newWebhookApp(t, "topsecret")
	body := []byte(`{"run_id":"run-1","status":"succeeded"}`)

	req := httptest.NewRequest("POST", "/webhooks/optimizer/results", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestWebhook_NoSecretSkipsValidation(t *testing.T) {
	app, st := newWebhookApp(t, "")
	body := []byte(`{"run_id":"run-1","status":"running"}`)

	req := httptest.NewRequest("POST", "/webhooks/optimizer/results", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, model.RunStatusRunning, st.runs["run-1"].Status)
}

func TestWebhook_InvalidPayload(t *testing.T) {
	app, _ := newWebhookApp(t, "")

	req := httptest.NewRequest("POST", "/webhooks/optimizer/results",
		bytes.NewReader([]byte(`{"status":"succeeded"}`)))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestValidateWebhookSignature(t *testing.T) {
	body := []byte(`{"run_id":"r"}`)

	assert.True(t, validateWebhookSignature("s", sign("s", body), body))
	// Prefix is optional and case-insensitive.
	raw := sign("s", body)[len("sha256="):]
	assert.True(t, validateWebhookSignature("s", raw, body))
	assert.True(t, validateWebhookSignature("s", "SHA256="+raw, body))

	assert.False(t, validateWebhookSignature("s", "sha256=zz", body))
	assert.False(t, validateWebhookSignature("other", sign("s", body), body))
}
