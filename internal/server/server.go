package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lyricgen/internal/catalog"
	"lyricgen/internal/config"
	"lyricgen/internal/drafts"
	"lyricgen/internal/generator"
	"lyricgen/internal/lyrics"
	"lyricgen/internal/metrics"
	"lyricgen/internal/models"
	"lyricgen/internal/prompt"
	"lyricgen/internal/provider"
	"lyricgen/internal/session"
	"lyricgen/internal/translator"
)

const (
	maxBodyBytes        = 1 << 20 // 1 MiB
	shutdownGracePeriod = 10 * time.Second
	readTimeout         = 30 * time.Second
	idleTimeout         = 120 * time.Second
	// Generation may take the full upstream timeout plus retries.
	writeTimeout = 5 * time.Minute
)

// LyricGenerator produces normalized lyrics.
type LyricGenerator interface {
	Generate(ctx context.Context, req models.GenerationRequest) (generator.Result, error)
}

// ModelFetcher lists a provider's models and checks its connection.
type ModelFetcher interface {
	Fetch(ctx context.Context, p models.Provider) ([]models.Model, error)
	Test(ctx context.Context, p models.Provider) catalog.ConnectionReport
}

// Deps are the components served over HTTP.
type Deps struct {
	Registry  *provider.Registry
	Catalog   ModelFetcher
	Generator LyricGenerator
	Drafts    *drafts.Library
	Session   *session.Store
	Prompts   generator.PromptSource
	Logger    *slog.Logger
}

type Server struct {
	cfg     config.Config
	deps    Deps
	logger  *slog.Logger
	app     *echo.Echo
	address string
}

// New constructs an HTTP server wired with routing and middleware.
func New(cfg config.Config, deps Deps) (*Server, error) {
	switch {
	case deps.Registry == nil:
		return nil, errors.New("registry must not be nil")
	case deps.Catalog == nil:
		return nil, errors.New("catalog must not be nil")
	case deps.Generator == nil:
		return nil, errors.New("generator must not be nil")
	case deps.Drafts == nil:
		return nil, errors.New("drafts must not be nil")
	case deps.Session == nil:
		return nil, errors.New("session must not be nil")
	case deps.Prompts == nil:
		return nil, errors.New("prompts must not be nil")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = jsonErrorHandler

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency:   true,
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"request_id", v.RequestID,
				"latency_ms", v.Latency.Milliseconds(),
				"error", v.Error,
			)
			return nil
		},
	}))
	e.Use(requestMetrics)
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'; form-action 'none'",
	}))

	srv := &Server{
		cfg:     cfg,
		deps:    deps,
		logger:  logger,
		app:     e,
		address: fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
	}

	srv.registerRoutes()

	return srv, nil
}

// Handler exposes the routed echo instance.
func (s *Server) Handler() http.Handler {
	return s.app
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	printStartupBanner(s.cfg.Server.Host, s.cfg.Server.Port)
	s.logger.Info("starting server", "addr", s.address)

	httpServer := &http.Server{
		Addr:         s.address,
		Handler:      s.app,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.app.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := s.app.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) registerRoutes() {
	s.app.GET("/health", s.handleHealth)
	s.app.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.app.Group("/api")
	api.GET("/system-prompt", s.handleSystemPrompt)
	api.GET("/personas", s.handlePersonas)

	api.GET("/providers", s.handleListProviders)
	api.POST("/providers", s.handleAddProvider)
	api.DELETE("/providers/:name", s.handleRemoveProvider)
	api.GET("/providers/:name/models", s.handleListModels)
	api.POST("/providers/:name/test", s.handleTestProvider)

	api.POST("/generate", s.handleGenerate)
	api.POST("/analyze", s.handleAnalyze)

	api.GET("/drafts", s.handleListDrafts)
	api.POST("/drafts", s.handleAddDraft)
	api.DELETE("/drafts/:id", s.handleRemoveDraft)

	api.GET("/session/last-used", s.handleGetLastUsed)
	api.PUT("/session/last-used", s.handlePutLastUsed)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSystemPrompt(c echo.Context) error {
	text, err := s.deps.Prompts.Load()
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, translator.PromptResponse{Prompt: text})
}

func (s *Server) handlePersonas(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"personas": prompt.Personas(),
		"moods":    prompt.Moods,
	})
}

func (s *Server) handleListProviders(c echo.Context) error {
	return c.JSON(http.StatusOK, translator.FromProviders(s.deps.Registry.List()))
}

func (s *Server) handleAddProvider(c echo.Context) error {
	var req translator.ProviderRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}

	added, err := s.deps.Registry.Add(c.Request().Context(), req.Provider)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, translator.FromProviders([]models.Provider{added})[0])
}

func (s *Server) handleRemoveProvider(c echo.Context) error {
	name, err := pathParam(c, "name")
	if err != nil {
		return err
	}
	list := s.deps.Registry.Remove(c.Request().Context(), name)
	return c.JSON(http.StatusOK, translator.FromProviders(list))
}

func (s *Server) handleListModels(c echo.Context) error {
	name, err := pathParam(c, "name")
	if err != nil {
		return err
	}

	p, err := s.deps.Registry.Lookup(name)
	if err != nil {
		return toHTTPError(err)
	}
	list, err := s.deps.Catalog.Fetch(c.Request().Context(), p)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, translator.FromModels(p.Name, list))
}

func (s *Server) handleTestProvider(c echo.Context) error {
	name, err := pathParam(c, "name")
	if err != nil {
		return err
	}

	p, err := s.deps.Registry.Lookup(name)
	if err != nil {
		return toHTTPError(err)
	}
	report := s.deps.Catalog.Test(c.Request().Context(), p)
	return c.JSON(http.StatusOK, translator.FromConnectionReport(report))
}

func (s *Server) handleGenerate(c echo.Context) error {
	var req translator.GenerateRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	res, err := s.deps.Generator.Generate(ctx, req.ToDomain())
	if err != nil {
		return toHTTPError(err)
	}

	var saved *models.Draft
	if req.SaveDraft {
		d, err := s.deps.Drafts.Add(ctx, drafts.Input{
			Title:   req.DraftTitle,
			Content: res.Lyrics,
			Folder:  req.DraftFolder,
		})
		if err != nil {
			return toHTTPError(err)
		}
		saved = &d
	}

	return c.JSON(http.StatusOK, translator.FromResult(res, saved))
}

func (s *Server) handleAnalyze(c echo.Context) error {
	var req translator.AnalyzeRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Text) == "" {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "text must be provided",
			Type:    "invalid_request_error",
		}
	}

	text := req.Text
	if req.Normalize {
		text = lyrics.CleanupFormat(text)
	}
	return c.JSON(http.StatusOK, translator.AnalyzeResponse{Text: text, Analysis: lyrics.Analyze(text)})
}

func (s *Server) handleListDrafts(c echo.Context) error {
	return c.JSON(http.StatusOK, translator.DraftsResponse{
		Drafts:  s.deps.Drafts.List(),
		Folders: s.deps.Drafts.Folders(),
	})
}

func (s *Server) handleAddDraft(c echo.Context) error {
	var req translator.DraftRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}

	d, err := s.deps.Drafts.Add(c.Request().Context(), req.ToInput())
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (s *Server) handleRemoveDraft(c echo.Context) error {
	id, err := pathParam(c, "id")
	if err != nil {
		return err
	}
	list := s.deps.Drafts.Remove(c.Request().Context(), id)
	return c.JSON(http.StatusOK, translator.DraftsResponse{
		Drafts:  list,
		Folders: s.deps.Drafts.Folders(),
	})
}

func (s *Server) handleGetLastUsed(c echo.Context) error {
	last, ok, err := s.deps.Session.Load(c.Request().Context())
	if err != nil {
		return toHTTPError(err)
	}
	if !ok {
		return requestError{
			Status:  http.StatusNotFound,
			Message: "no provider has been selected yet",
			Type:    "not_found",
		}
	}
	return c.JSON(http.StatusOK, last)
}

func (s *Server) handlePutLastUsed(c echo.Context) error {
	var req translator.LastUsedRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}

	if _, err := s.deps.Registry.Lookup(req.Provider); err != nil {
		return toHTTPError(err)
	}
	if err := s.deps.Session.Save(c.Request().Context(), req.LastUsed); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, req.LastUsed)
}

func pathParam(c echo.Context, name string) (string, error) {
	value, err := url.PathUnescape(c.Param(name))
	if err != nil || strings.TrimSpace(value) == "" {
		return "", requestError{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("invalid %s path parameter", name),
			Type:    "invalid_request_error",
		}
	}
	return value, nil
}

func requestMetrics(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)

		status := c.Response().Status
		if err != nil {
			var reqErr requestError
			var he *echo.HTTPError
			switch {
			case errors.As(err, &reqErr):
				status = reqErr.Status
			case errors.As(err, &he):
				status = he.Code
			default:
				status = http.StatusInternalServerError
			}
		}

		path := c.Path()
		if path == "" {
			path = "unmatched"
		}
		metrics.RequestsTotal.WithLabelValues(c.Request().Method, path, strconv.Itoa(status)).Inc()
		return err
	}
}

func decodeRequestBody[T any](c echo.Context, target *T) error {
	req := c.Request()
	defer req.Body.Close()

	req.Body = http.MaxBytesReader(c.Response(), req.Body, maxBodyBytes)

	decoder := json.NewDecoder(req.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return requestError{
				Status:  http.StatusBadRequest,
				Message: "request body is required",
				Type:    "invalid_request_error",
			}
		}
		return requestError{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("invalid JSON payload: %v", err),
			Type:    "invalid_request_error",
		}
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "request body must contain a single JSON object",
			Type:    "invalid_request_error",
		}
	}
	return nil
}

type requestError struct {
	Status  int
	Message string
	Type    string
}

func (e requestError) Error() string {
	return e.Message
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func writeError(c echo.Context, status int, message, errType string) error {
	var payload errorBody
	payload.Error.Message = message
	payload.Error.Type = errType
	return c.JSON(status, payload)
}

func jsonErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var reqErr requestError
	if errors.As(err, &reqErr) {
		_ = writeError(c, reqErr.Status, reqErr.Message, reqErr.Type)
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		_ = writeError(c, he.Code, fmt.Sprint(he.Message), "invalid_request_error")
		return
	}

	_ = writeError(c, http.StatusInternalServerError, "internal server error", "server_error")
}

// toHTTPError maps the error taxonomy onto HTTP statuses.
func toHTTPError(err error) error {
	var reqErr requestError
	if errors.As(err, &reqErr) {
		return reqErr
	}

	message := err.Error()
	var apiErr *provider.APIError
	if errors.As(err, &apiErr) {
		message = apiErr.Message
	}
	errType := provider.ErrorType(err)

	switch {
	case errors.Is(err, provider.ErrBadRequest) && apiErr == nil:
		return requestError{Status: http.StatusBadRequest, Message: message, Type: "invalid_request_error"}
	case errors.Is(err, drafts.ErrEmptyDraft):
		return requestError{Status: http.StatusBadRequest, Message: message, Type: "invalid_request_error"}
	case errors.Is(err, provider.ErrDuplicateProviderName):
		return requestError{Status: http.StatusConflict, Message: message, Type: errType}
	case errors.Is(err, provider.ErrMissingCredential), errors.Is(err, provider.ErrAuthFailed):
		return requestError{Status: http.StatusUnauthorized, Message: message, Type: errType}
	case errors.Is(err, provider.ErrUnknownProvider):
		return requestError{Status: http.StatusNotFound, Message: message, Type: errType}
	case errors.Is(err, catalog.ErrNoModelsEndpoint):
		return requestError{Status: http.StatusNotFound, Message: message, Type: "no_models_endpoint"}
	case errors.Is(err, provider.ErrRateLimited):
		return requestError{Status: http.StatusTooManyRequests, Message: message, Type: errType}
	case errors.Is(err, generator.ErrCompletionTooShort):
		return requestError{Status: http.StatusBadGateway, Message: message, Type: "completion_too_short"}
	case errors.Is(err, context.DeadlineExceeded):
		return requestError{Status: http.StatusGatewayTimeout, Message: "upstream provider timed out", Type: "timeout"}
	case errType != "internal":
		return requestError{Status: http.StatusBadGateway, Message: message, Type: errType}
	}

	return requestError{
		Status:  http.StatusInternalServerError,
		Message: "internal server error",
		Type:    "server_error",
	}
}

func printStartupBanner(host string, port int) {
	if host == "" {
		host = "127.0.0.1"
	}
	fmt.Println()
	fmt.Println("lyricgen ready")
	fmt.Printf("Listening on http://%s:%d\n", host, port)
	fmt.Println("Endpoints:")
	fmt.Println("  GET    /health")
	fmt.Println("  GET    /metrics")
	fmt.Println("  GET    /api/system-prompt")
	fmt.Println("  GET    /api/personas")
	fmt.Println("  GET    /api/providers")
	fmt.Println("  POST   /api/providers")
	fmt.Println("  DELETE /api/providers/:name")
	fmt.Println("  GET    /api/providers/:name/models")
	fmt.Println("  POST   /api/generate")
	fmt.Println("  POST   /api/analyze")
	fmt.Println("  GET    /api/drafts")
	fmt.Println("  POST   /api/drafts")
	fmt.Println("  DELETE /api/drafts/:id")
	fmt.Println("  GET    /api/session/last-used")
	fmt.Println("  PUT    /api/session/last-used")
	fmt.Printf("Example:\n  curl http://%s:%d/api/generate -H 'Content-Type: application/json' -d '{\"provider\":\"OpenAI\",\"model\":\"gpt-4o\",\"theme\":\"city lights\",\"mood\":\"Reflective\"}'\n\n", host, port)
}
