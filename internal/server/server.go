package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"colonies/internal/domain"
	"colonies/internal/engine"
	"colonies/internal/view"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
	Logger   *logrus.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_your_turn"`
	Message string         `json:"message" example:"it is not your turn"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the game API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cfg.Auth.Logger == nil {
		cfg.Auth.Logger = logger
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(logger))
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Colonies API", "1.0.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	h := handlers{engine: cfg.Engine, log: logger}
	registerDocs(router, basePath)
	registerHealth(group)
	registerMe(group, h)
	registerGames(group, h)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func requestLogger(logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"duration":   time.Since(start).String(),
				"request_id": middleware.GetReqID(r.Context()),
			}).Debug("request")
		})
	}
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

var errorTable = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrMalformedAction, http.StatusBadRequest, "malformed_action"},
	{domain.ErrStaleTurnNumber, http.StatusBadRequest, "stale_turn_number"},
	{domain.ErrNotYourTurn, http.StatusBadRequest, "not_your_turn"},
	{domain.ErrCardNotInHand, http.StatusBadRequest, "card_not_in_hand"},
	{domain.ErrIllegalPlayDestination, http.StatusBadRequest, "illegal_play_destination"},
	{domain.ErrIllegalDrawTarget, http.StatusBadRequest, "illegal_draw_target"},
	{domain.ErrOpponentIdentical, http.StatusBadRequest, "opponent_identical"},
	{domain.ErrInvalidChat, http.StatusBadRequest, "invalid_chat"},
	{domain.ErrGameNotFound, http.StatusNotFound, "game_not_found"},
	{domain.ErrAccountNotFound, http.StatusNotFound, "account_not_found"},
	{domain.ErrUnverifiedAccount, http.StatusConflict, "unverified_account"},
	{domain.ErrGameAlreadyCompleted, http.StatusConflict, "game_already_completed"},
	{domain.ErrConcurrentModification, http.StatusConflict, "concurrent_modification"},
}

type handlers struct {
	engine engine.Engine
	log    *logrus.Logger
}

// handleError maps rule failures to their status. Anything else is reported
// as a bare internal error and logged.
func (h handlers) handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	for _, entry := range errorTable {
		if errors.Is(err, entry.err) {
			var details map[string]any
			if domain.Retryable(err) {
				details = map[string]any{"retryable": true}
			}
			return newAPIError(entry.status, entry.code, err.Error(), details)
		}
	}
	h.log.WithError(err).Error("request failed")
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", nil)
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var (
		once sync.Once
		doc  []byte
	)
	r.Get(path.Join(basePath, "openapi.json"), func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			doc, _ = json.Marshal(oas)
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(doc)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	security := []map[string][]string{{"bearerAuth": {}}}
	oas.Security = security
	healthPath := path.Join("/", basePath, "health")
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{item.Get, item.Put, item.Post, item.Delete, item.Patch} {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <title>Colonies API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => SwaggerUIBundle({ url: '%s', dom_id: '#swagger-ui' });
    </script>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerMe(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current player",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body WhoAmIResponse `json:"body"`
	}, error) {
		principal, ok := principalFromContext(ctx)
		if !ok || principal.PlayerID == "" {
			return nil, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		}
		resp := WhoAmIResponse{PlayerID: principal.PlayerID, Source: principal.Source}
		if h.engine.Accounts != nil {
			if acct, err := h.engine.Accounts.AccountByUUID(ctx, principal.PlayerID); err == nil {
				resp.Account = &acct
			}
		}
		return &struct {
			Body WhoAmIResponse `json:"body"`
		}{Body: resp}, nil
	})
}

type gameRef struct {
	Ref string `path:"ref" doc:"Game id or sealed key"`
}

type gameResponse struct {
	Body view.PlayerView `json:"body"`
}

func registerGames(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-game",
		Method:        http.MethodPost,
		Path:          "/games",
		Summary:       "Invite an opponent to a new game",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body CreateGameRequest `json:"body"`
	}) (*gameResponse, error) {
		player, authErr := playerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		v, err := h.engine.CreateGame(ctx, engine.CreateGameOptions{
			Creator:     player,
			Opponent:    input.Body.Opponent,
			LiveScoring: input.Body.LiveScoring,
		})
		if err != nil {
			return nil, h.handleError(err)
		}
		return &gameResponse{Body: v}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-games",
		Method:      http.MethodGet,
		Path:        "/games",
		Summary:     "List the caller's games",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body GameListResponse `json:"body"`
	}, error) {
		player, authErr := playerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := h.engine.ListGames(ctx, player)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &struct {
			Body GameListResponse `json:"body"`
		}{Body: GameListResponse{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-game",
		Method:      http.MethodGet,
		Path:        "/games/{ref}",
		Summary:     "Get the caller's view of a game",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *gameRef) (*gameResponse, error) {
		player, authErr := playerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		v, err := h.engine.GetGame(ctx, player, input.Ref)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &gameResponse{Body: v}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "submit-turn",
		Method:      http.MethodPost,
		Path:        "/games/{ref}/turns",
		Summary:     "Play or discard a card, then draw",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Ref  string `path:"ref" doc:"Game id or sealed key"`
		Body TurnRequest `json:"body"`
	}) (*struct {
		Body engine.TurnResult `json:"body"`
	}, error) {
		player, authErr := playerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := h.engine.SubmitTurn(ctx, engine.TurnOptions{
			Player: player,
			Game:   input.Ref,
			Turn:   input.Body.Turn,
			Action: input.Body.Action,
		})
		if err != nil {
			return nil, h.handleError(err)
		}
		return &struct {
			Body engine.TurnResult `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "post-chat",
		Method:      http.MethodPost,
		Path:        "/games/{ref}/chats",
		Summary:     "Post a chat message to a game",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Ref  string `path:"ref" doc:"Game id or sealed key"`
		Body ChatRequest `json:"body"`
	}) (*gameResponse, error) {
		player, authErr := playerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		v, err := h.engine.PostChat(ctx, player, input.Ref, input.Body.Message)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &gameResponse{Body: v}, nil
	})
}
