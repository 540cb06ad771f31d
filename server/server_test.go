package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/juliusm254/llm.c/gpt2"
)

func newTestServer(t *testing.T) (*Server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := gpt2.Config{MaxSeqLen: 8, VocabSize: 12, NumLayers: 1, NumHeads: 2, Channels: 4}
	model, err := gpt2.NewModel(cfg, 0)
	require.NoError(t, err)
	for i := range model.ParamsMemory {
		model.ParamsMemory[i] = float32((i%7)-3) * 0.1
	}

	var mu sync.Mutex
	s := New(model, &mu, uuid.New())

	engine := gin.New()
	s.RegisterRoutes(engine)
	return s, engine
}

func TestHandleHealthzReportsOK(t *testing.T) {
	_, engine := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
}

func TestHandleStatusReflectsReportedStep(t *testing.T) {
	s, engine := newTestServer(t)
	s.ReportStep(7, 1.25)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.EqualValues(t, 7, body["step"])
	require.InDelta(t, 1.25, body["mean_loss"], 1e-6)
}

func TestHandleSampleReturnsRequestedTokenCount(t *testing.T) {
	_, engine := newTestServer(t)

	payload := `{"prompt_tokens":[1,2,3],"max_new_tokens":4,"rng_seed":42}`
	req := httptest.NewRequest(http.MethodPost, "/sample", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body sampleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Tokens, 3+4)
}

func TestHandleSampleRejectsMissingFields(t *testing.T) {
	_, engine := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/sample", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
