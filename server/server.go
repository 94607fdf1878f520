package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/promptsmith/promptsmith/config"
	"github.com/promptsmith/promptsmith/evaluator"
	"github.com/promptsmith/promptsmith/generator"
	"github.com/promptsmith/promptsmith/llm"
	"github.com/promptsmith/promptsmith/optimizer"
	"github.com/promptsmith/promptsmith/storage"
	"github.com/promptsmith/promptsmith/utils"
)

// Server hosts the HTTP API.
type Server struct {
	cfg     *config.Config
	logger  utils.Logger
	gateway llm.Generator
	driver  *optimizer.Driver
	gen     *generator.Generator
	scalar  *evaluator.Scalar
	panel   *evaluator.Panel
	store   *storage.MemStore
	srv     *http.Server
}

// New assembles the server and its routes.
func New(cfg *config.Config, logger utils.Logger, gateway llm.Generator, driver *optimizer.Driver, store *storage.MemStore) *Server {
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		gateway: gateway,
		driver:  driver,
		gen:     generator.New(gateway, logger),
		scalar:  evaluator.NewScalar(gateway, logger),
		panel:   evaluator.NewPanel(gateway, logger),
		store:   store,
	}
	s.srv = &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      withRequestID(withLogging(logger, s.routes())),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 15 * time.Minute,
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /optimize", s.handleOptimize)
	mux.HandleFunc("GET /optimizer/schema", s.handleOptimizerSchema)

	mux.HandleFunc("GET /debug", s.handleDebug)
	mux.HandleFunc("POST /test-ai-connection", s.handleTestConnection)
	mux.HandleFunc("POST /generate-ai-response", s.handleGenerateResponse)
	mux.HandleFunc("POST /generate-variations", s.handleGenerateVariations)
	mux.HandleFunc("POST /generate-test-cases", s.handleGenerateTestCases)
	mux.HandleFunc("POST /evaluate-response", s.handleEvaluateResponse)
	mux.HandleFunc("POST /evaluate-with-agents", s.handleEvaluateWithAgents)

	mux.HandleFunc("GET /meta-prompts", s.handleListMetaPrompts)
	mux.HandleFunc("POST /meta-prompts", s.handleCreateMetaPrompt)
	mux.HandleFunc("GET /meta-prompts/{id}", s.handleGetMetaPrompt)
	mux.HandleFunc("PUT /meta-prompts/{id}", s.handleUpdateMetaPrompt)
	mux.HandleFunc("DELETE /meta-prompts/{id}", s.handleDeleteMetaPrompt)
	mux.HandleFunc("GET /meta-prompts/{id}/variations", s.handleListVariations)
	mux.HandleFunc("POST /meta-prompts/{id}/variations", s.handleCreateVariation)
	mux.HandleFunc("GET /meta-prompts/{id}/test-cases", s.handleListTestCases)
	mux.HandleFunc("POST /meta-prompts/{id}/test-cases", s.handleCreateTestCase)
	mux.HandleFunc("GET /meta-prompts/{id}/leaderboard", s.handleLeaderboard)

	mux.HandleFunc("GET /variations/{id}", s.handleGetVariation)
	mux.HandleFunc("PATCH /variations/{id}", s.handleUpdateVariation)
	mux.HandleFunc("DELETE /variations/{id}", s.handleDeleteVariation)
	mux.HandleFunc("GET /variations/{id}/results", s.handleListResults)
	mux.HandleFunc("GET /test-cases/{id}", s.handleGetTestCase)
	mux.HandleFunc("PATCH /test-cases/{id}", s.handleUpdateTestCase)
	mux.HandleFunc("DELETE /test-cases/{id}", s.handleDeleteTestCase)

	mux.HandleFunc("GET /criteria", s.handleListCriteria)
	mux.HandleFunc("POST /criteria", s.handleCreateCriterion)
	mux.HandleFunc("GET /criteria/{id}", s.handleGetCriterion)
	mux.HandleFunc("PATCH /criteria/{id}", s.handleUpdateCriterion)
	mux.HandleFunc("DELETE /criteria/{id}", s.handleDeleteCriterion)

	return mux
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDebug(w http.ResponseWriter, _ *http.Request) {
	providers := make([]string, 0, len(s.cfg.APIKeys))
	for name := range s.cfg.APIKeys {
		providers = append(providers, name)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"provider":             s.cfg.Provider,
		"model":                s.cfg.Model,
		"configured_providers": providers,
		"meta_prompts":         len(s.store.ListMetaPrompts()),
		"criteria":             len(s.store.ListCriteria()),
	})
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req optimizer.Request
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	s.applyGenerationDefaults(&req.Generation)

	report, err := s.driver.Optimize(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleOptimizerSchema(w http.ResponseWriter, _ *http.Request) {
	reflector := jsonschema.Reflector{DoNotReference: true}
	writeJSON(w, http.StatusOK, reflector.Reflect(&optimizer.Request{}))
}

type generateRequest struct {
	Prompt       string                  `json:"prompt"`
	SystemPrompt string                  `json:"system_prompt"`
	Generation   config.GenerationConfig `json:"generation"`
}

func (s *Server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	s.applyGenerationDefaults(&req.Generation)
	req.Generation.MaxTokens = 10

	_, err := s.gateway.Generate(r.Context(), "Reply with the single word: ok", req.Generation, "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "connection test failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"connected": true,
		"provider":  req.Generation.Provider,
		"model":     req.Generation.Model,
	})
}

func (s *Server) handleGenerateResponse(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	s.applyGenerationDefaults(&req.Generation)

	response, err := s.gateway.Generate(r.Context(), req.Prompt, req.Generation, req.SystemPrompt)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": response})
}

type evaluateRequest struct {
	SystemPrompt         string                  `json:"system_prompt"`
	UserInput            string                  `json:"user_input"`
	Response             string                  `json:"response"`
	Criterion            string                  `json:"criterion"`
	CriterionDescription string                  `json:"criterion_description"`
	Generation           config.GenerationConfig `json:"generation"`
}

func (s *Server) handleEvaluateResponse(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Response == "" {
		writeError(w, http.StatusBadRequest, "response is required")
		return
	}
	if req.Criterion == "" {
		req.Criterion = optimizer.DefaultCriterion
	}
	s.applyGenerationDefaults(&req.Generation)

	score, err := s.scalar.ScoreResponse(r.Context(), req.UserInput, req.Response, req.Criterion, req.Generation)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"score": score, "criterion": req.Criterion})
}

func (s *Server) handleEvaluateWithAgents(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Response == "" {
		writeError(w, http.StatusBadRequest, "response is required")
		return
	}
	if req.Criterion == "" {
		req.Criterion = optimizer.DefaultCriterion
	}
	s.applyGenerationDefaults(&req.Generation)

	criterion := storage.Criterion{Name: req.Criterion, Description: req.CriterionDescription}
	if criterion.Description == "" {
		criterion.Description = criterion.Name
	}

	verdict := s.panel.Evaluate(r.Context(), req.SystemPrompt, req.UserInput, req.Response, criterion, req.Generation)
	writeJSON(w, http.StatusOK, verdict)
}

type metaPromptRequest struct {
	BasePrompt   string `json:"base_prompt"`
	SystemPrompt string `json:"system_prompt"`
}

func (s *Server) handleListMetaPrompts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.ListMetaPrompts())
}

// handleCreateMetaPrompt persists a meta prompt. When no system prompt is
// supplied, one is generated from the base prompt first.
func (s *Server) handleCreateMetaPrompt(w http.ResponseWriter, r *http.Request) {
	var req metaPromptRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.BasePrompt == "" {
		writeError(w, http.StatusBadRequest, "base_prompt is required")
		return
	}
	if req.SystemPrompt == "" {
		gen := s.cfg.Generation()
		systemPrompt, err := s.gen.ExpandToSystemPrompt(r.Context(), req.BasePrompt, gen)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		req.SystemPrompt = systemPrompt
	}
	writeJSON(w, http.StatusCreated, s.store.CreateMetaPrompt(req.BasePrompt, req.SystemPrompt))
}

type generateBatchRequest struct {
	MetaPromptID int                     `json:"meta_prompt_id"`
	SystemPrompt string                  `json:"system_prompt"`
	Count        int                     `json:"count"`
	Generation   config.GenerationConfig `json:"generation"`
}

// resolveSystemPrompt returns the request's system prompt, loading it from
// the referenced meta prompt when only an id is given.
func (s *Server) resolveSystemPrompt(w http.ResponseWriter, req *generateBatchRequest) bool {
	if req.SystemPrompt != "" {
		return true
	}
	if req.MetaPromptID == 0 {
		writeError(w, http.StatusBadRequest, "system_prompt or meta_prompt_id is required")
		return false
	}
	mp, err := s.store.GetMetaPrompt(req.MetaPromptID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return false
	}
	req.SystemPrompt = mp.SystemPrompt
	return true
}

func (s *Server) handleGenerateVariations(w http.ResponseWriter, r *http.Request) {
	var req generateBatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !s.resolveSystemPrompt(w, &req) {
		return
	}
	s.applyGenerationDefaults(&req.Generation)

	variations, err := s.gen.GenerateVariations(r.Context(), req.SystemPrompt, req.Count, req.Generation)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if req.MetaPromptID != 0 {
		for _, v := range variations {
			s.store.CreateVariation(req.MetaPromptID, v)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"variations": variations})
}

func (s *Server) handleGenerateTestCases(w http.ResponseWriter, r *http.Request) {
	var req generateBatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !s.resolveSystemPrompt(w, &req) {
		return
	}
	s.applyGenerationDefaults(&req.Generation)

	testCases, err := s.gen.GenerateTestCases(r.Context(), req.SystemPrompt, req.Count, req.Generation)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if req.MetaPromptID != 0 {
		for _, tc := range testCases {
			s.store.CreateTestCase(req.MetaPromptID, tc)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"test_cases": testCases})
}

func (s *Server) handleGetMetaPrompt(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	mp, err := s.store.GetMetaPrompt(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, mp)
}

func (s *Server) handleUpdateMetaPrompt(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req metaPromptRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	mp, err := s.store.UpdateMetaPrompt(id, req.BasePrompt, req.SystemPrompt)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, mp)
}

func (s *Server) handleDeleteMetaPrompt(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteMetaPrompt(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListVariations(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if _, err := s.store.GetMetaPrompt(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.store.ListVariations(id))
}

func (s *Server) handleCreateVariation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if _, err := s.store.GetMetaPrompt(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	writeJSON(w, http.StatusCreated, s.store.CreateVariation(id, req.Content))
}

func (s *Server) handleGetVariation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	v, err := s.store.GetVariation(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleUpdateVariation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	v, err := s.store.UpdateVariation(id, req.Content)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleDeleteVariation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteVariation(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if _, err := s.store.GetVariation(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.store.ListResults(id))
}

func (s *Server) handleListTestCases(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if _, err := s.store.GetMetaPrompt(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.store.ListTestCases(id))
}

func (s *Server) handleCreateTestCase(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if _, err := s.store.GetMetaPrompt(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	var req struct {
		Input string `json:"input"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Input == "" {
		writeError(w, http.StatusBadRequest, "input is required")
		return
	}
	writeJSON(w, http.StatusCreated, s.store.CreateTestCase(id, req.Input))
}

func (s *Server) handleGetTestCase(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	tc, err := s.store.GetTestCase(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tc)
}

func (s *Server) handleUpdateTestCase(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Input string `json:"input"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Input == "" {
		writeError(w, http.StatusBadRequest, "input is required")
		return
	}
	tc, err := s.store.UpdateTestCase(id, req.Input)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tc)
}

func (s *Server) handleDeleteTestCase(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteTestCase(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if _, err := s.store.GetMetaPrompt(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.store.Leaderboard(id))
}

func (s *Server) handleListCriteria(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.ListCriteria())
}

func (s *Server) handleCreateCriterion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	writeJSON(w, http.StatusCreated, s.store.CreateCriterion(req.Name, req.Description))
}

func (s *Server) handleGetCriterion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := s.store.GetCriterion(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleUpdateCriterion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	c, err := s.store.UpdateCriterion(id, req.Name, req.Description)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteCriterion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteCriterion(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// applyGenerationDefaults fills unset generation fields from the service
// configuration.
func (s *Server) applyGenerationDefaults(gen *config.GenerationConfig) {
	defaults := s.cfg.Generation()
	if gen.Provider == "" {
		gen.Provider = defaults.Provider
	}
	if gen.Model == "" {
		gen.Model = defaults.Model
	}
	if gen.Temperature == 0 {
		gen.Temperature = defaults.Temperature
	}
	if gen.MaxTokens == 0 {
		gen.MaxTokens = defaults.MaxTokens
	}
	if gen.TopP == 0 {
		gen.TopP = defaults.TopP
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id: "+r.PathValue("id"))
		return 0, false
	}
	return id, true
}
