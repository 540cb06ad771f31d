// Package server exposes a small Gin HTTP surface for observing and
// sampling from a running training process: liveness, current step
// status, and on-demand token sampling.
package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/juliusm254/llm.c/gpt2"
	"github.com/juliusm254/llm.c/rng"
	"github.com/juliusm254/llm.c/sampler"
)

// Server owns the shared model and the run's status, guarded by one
// mutex so an in-flight /sample request never overlaps a training step's
// forward/backward/update.
//
// Model is "ML math + parameters." Server is "request handling and
// status bookkeeping." The training loop and the HTTP handlers both hold
// mu while they touch the model.
type Server struct {
	mu      *sync.Mutex
	model   *gpt2.Model
	runID   uuid.UUID
	started time.Time

	step     int
	meanLoss float32
}

// New wraps model with a status server. mu is the lock the training loop
// also takes around each forward/backward/update call; passing it in
// lets the server serialize with that loop instead of introducing a
// second, independent lock.
func New(model *gpt2.Model, mu *sync.Mutex, runID uuid.UUID) *Server {
	return &Server{
		model:   model,
		mu:      mu,
		runID:   runID,
		started: time.Now(),
	}
}

// ReportStep records the most recently completed training step, for
// /status to report. Call it under the same mu the server was built
// with.
func (s *Server) ReportStep(step int, meanLoss float32) {
	s.step = step
	s.meanLoss = meanLoss
}

// RegisterRoutes attaches the three endpoints to engine.
func (s *Server) RegisterRoutes(engine *gin.Engine) {
	engine.GET("/healthz", s.handleHealthz)
	engine.GET("/status", s.handleStatus)
	engine.POST("/sample", s.handleSample)
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"run_id": s.runID.String(),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	s.mu.Lock()
	step, meanLoss := s.step, s.meanLoss
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"run_id":       s.runID.String(),
		"step":         step,
		"mean_loss":    meanLoss,
		"elapsed_secs": time.Since(s.started).Seconds(),
	})
}

type sampleRequest struct {
	PromptTokens []int32 `json:"prompt_tokens" binding:"required"`
	MaxNewTokens int     `json:"max_new_tokens" binding:"required"`
	RNGSeed      uint64  `json:"rng_seed"`
}

type sampleResponse struct {
	Tokens []int32 `json:"tokens"`
}

func (s *Server) handleSample(c *gin.Context) {
	var req sampleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r := rng.New(req.RNGSeed)
	tokens, err := sampler.GenerateGreedyCDF(s.model, req.PromptTokens, req.MaxNewTokens, r)
	if err != nil {
		log.Error().Err(err).Str("run_id", s.runID.String()).Msg("sample request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sampleResponse{Tokens: tokens})
}
