package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"clubrun/internal/domain"
	"clubrun/internal/events"
	"clubrun/internal/payments"
	"clubrun/internal/repo"
	"clubrun/internal/verify"
)

// Config for the HTTP API handler.
type Config struct {
	DB       *sql.DB
	Repo     repo.Repo
	Verify   *verify.Service
	Payments *payments.Router
	Now      func() time.Time
	BasePath string
	Auth     AuthConfig
}

func (cfg Config) now() time.Time {
	if cfg.Now != nil {
		return cfg.Now()
	}
	return time.Now()
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"mission not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Club Run API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Repo))
	hcfg := huma.DefaultConfig("Club Run API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerMissions(group, cfg)
	registerRunners(group, cfg)
	registerVerification(group, cfg)
	registerPayments(group, cfg)
	registerEvents(group, cfg)
	registerAPIKeys(group, cfg)
	registerMe(group)
	registerDevAuth(group, cfg.Auth)
	registerOpenAPI(router, api, basePath)

	return router, nil
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

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	if errors.Is(err, repo.ErrTerminalStatus) {
		return newAPIError(http.StatusConflict, "terminal_status", err.Error(), nil)
	}
	if errors.Is(err, payments.ErrUnsupportedMethod) {
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") || strings.Contains(lowered, "required"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
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
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
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
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	open := map[string]bool{
		"/" + strings.TrimPrefix(path.Join(basePath, "health"), "/"):         true,
		"/" + strings.TrimPrefix(path.Join(basePath, "auth/dev/login"), "/"): true,
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if open[route] {
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
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Club Run API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
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

func registerMissions(api huma.API, cfg Config) {
	writer := events.Writer{DB: cfg.DB}

	huma.Register(api, huma.Operation{
		OperationID:   "create-mission",
		Method:        http.MethodPost,
		Path:          "/missions",
		Summary:       "Create mission",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateMissionRequest `json:"body"`
	}) (*struct {
		Body MissionResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.Title == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "title is required", nil)
		}
		if input.Body.Budget <= 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "budget must be positive", nil)
		}
		if !cfg.Payments.Supported(input.Body.PaymentMethod) {
			return nil, newAPIError(http.StatusBadRequest, "bad_request",
				fmt.Sprintf("unsupported payment method %q", input.Body.PaymentMethod), nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		curatorID := input.Body.CuratorID
		if curatorID == "" {
			curatorID = actorID
		}
		m := domain.Mission{
			ID:            uuid.New().String(),
			CuratorID:     curatorID,
			VenueID:       input.Body.VenueID,
			Title:         input.Body.Title,
			Budget:        input.Body.Budget,
			PaymentMethod: input.Body.PaymentMethod,
			Status:        domain.MissionPending,
		}
		if input.Body.ID != nil && *input.Body.ID != "" {
			m.ID = *input.Body.ID
		}
		if input.Body.Track != nil {
			if input.Body.Track.Title == "" {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "track.title is required", nil)
			}
			data, err := json.Marshal(map[string]any{"track": input.Body.Track})
			if err != nil {
				return nil, handleError(err)
			}
			m.RequirementsJSON = string(data)
		}
		now := cfg.now().UTC().Format(time.RFC3339)
		m.CreatedAt = now
		m.UpdatedAt = now
		if err := cfg.Repo.InsertMission(ctx, nil, m); err != nil {
			return nil, handleError(err)
		}
		err := writer.Append(ctx, nil, "mission.created", "mission", m.ID, actorID, events.EventPayload{
			"title":          m.Title,
			"budget":         m.Budget,
			"payment_method": m.PaymentMethod,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MissionResponse `json:"body"`
		}{Body: missionResponse(m)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-missions",
		Method:      http.MethodGet,
		Path:        "/missions",
		Summary:     "List missions",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" enum:",pending,in_progress,completed,failed"`
	}) (*struct {
		Body []MissionResponse `json:"body"`
	}, error) {
		items, err := cfg.Repo.ListMissions(ctx, input.Status)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []MissionResponse `json:"body"`
		}{Body: mapMissions(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-mission",
		Method:      http.MethodGet,
		Path:        "/missions/{id}",
		Summary:     "Get mission",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body MissionResponse `json:"body"`
	}, error) {
		m, err := cfg.Repo.GetMission(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MissionResponse `json:"body"`
		}{Body: missionResponse(m)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assign-runner",
		Method:      http.MethodPost,
		Path:        "/missions/{id}/runner",
		Summary:     "Assign a runner to a pending mission",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   string              `path:"id"`
		Body AssignRunnerRequest `json:"body"`
	}) (*struct {
		Body MissionResponse `json:"body"`
	}, error) {
		if input.Body.RunnerID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "runner_id is required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if _, err := cfg.Repo.GetRunner(ctx, input.Body.RunnerID); err != nil {
			return nil, handleError(fmt.Errorf("runner %s: %w", input.Body.RunnerID, err))
		}
		now := cfg.now().UTC().Format(time.RFC3339)
		if err := cfg.Repo.AssignRunner(ctx, input.ID, input.Body.RunnerID, now); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				// Either the mission does not exist or it already left pending.
				if m, gerr := cfg.Repo.GetMission(ctx, input.ID); gerr == nil {
					return nil, newAPIError(http.StatusConflict, "conflict",
						fmt.Sprintf("mission %s is %s, runner can only be assigned while pending", m.ID, m.Status), nil)
				}
			}
			return nil, handleError(err)
		}
		err := writer.Append(ctx, nil, "mission.assigned", "mission", input.ID, actorID, events.EventPayload{
			"runner_id": input.Body.RunnerID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		m, err := cfg.Repo.GetMission(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MissionResponse `json:"body"`
		}{Body: missionResponse(m)}, nil
	})
}

func registerRunners(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-runner",
		Method:        http.MethodPost,
		Path:          "/runners",
		Summary:       "Create runner",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateRunnerRequest `json:"body"`
	}) (*struct {
		Body RunnerResponse `json:"body"`
	}, error) {
		runner := domain.Runner{
			ID:          uuid.New().String(),
			DisplayName: input.Body.DisplayName,
			WalletAddr:  input.Body.WalletAddress,
			CreatedAt:   cfg.now().UTC().Format(time.RFC3339),
		}
		if input.Body.ID != nil && *input.Body.ID != "" {
			runner.ID = *input.Body.ID
		}
		if err := cfg.Repo.InsertRunner(ctx, runner); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RunnerResponse `json:"body"`
		}{Body: runnerResponse(runner, false)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-runner",
		Method:      http.MethodGet,
		Path:        "/runners/{id}",
		Summary:     "Get runner",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body RunnerResponse `json:"body"`
	}, error) {
		runner, err := cfg.Repo.GetRunner(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		linked := false
		if _, err := cfg.Repo.GetOracleCredentials(ctx, input.ID); err == nil {
			linked = true
		}
		return &struct {
			Body RunnerResponse `json:"body"`
		}{Body: runnerResponse(runner, linked)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "link-oracle-account",
		Method:      http.MethodPost,
		Path:        "/runners/{id}/oracle",
		Summary:     "Link a runner's play-history account",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body LinkOracleRequest `json:"body"`
	}) (*struct {
		Body RunnerResponse `json:"body"`
	}, error) {
		if input.Body.AccessToken == "" || input.Body.RefreshToken == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "access_token and refresh_token are required", nil)
		}
		if _, err := time.Parse(time.RFC3339, input.Body.ExpiresAt); err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "expires_at must be RFC3339", nil)
		}
		runner, err := cfg.Repo.GetRunner(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		creds := domain.OracleCredentials{
			RunnerID:     runner.ID,
			AccessToken:  input.Body.AccessToken,
			RefreshToken: input.Body.RefreshToken,
			ExpiresAt:    input.Body.ExpiresAt,
			UpdatedAt:    cfg.now().UTC().Format(time.RFC3339),
		}
		if err := cfg.Repo.UpsertOracleCredentials(ctx, creds); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RunnerResponse `json:"body"`
		}{Body: runnerResponse(runner, true)}, nil
	})
}

func registerVerification(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID:   "queue-verification",
		Method:        http.MethodPost,
		Path:          "/missions/{id}/verification",
		Summary:       "Queue mission verification",
		DefaultStatus: http.StatusAccepted,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string                    `path:"id"`
		Body VerificationWindowRequest `json:"body"`
	}) (*struct {
		Body domain.VerificationTask `json:"body"`
	}, error) {
		window, runnerID, err := verificationInput(ctx, cfg, input.ID, input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		task, err := cfg.Verify.QueueMissionForVerification(ctx, input.ID, runnerID, window)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.VerificationTask `json:"body"`
		}{Body: task}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "schedule-verification",
		Method:        http.MethodPost,
		Path:          "/missions/{id}/verification/schedule",
		Summary:       "Schedule verification at window end",
		DefaultStatus: http.StatusAccepted,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string                    `path:"id"`
		Body VerificationWindowRequest `json:"body"`
	}) (*struct {
		Body domain.ScheduledVerification `json:"body"`
	}, error) {
		_, runnerID, err := verificationInput(ctx, cfg, input.ID, input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		scheduled, err := cfg.Verify.ScheduleMissionVerification(ctx, input.ID, runnerID, input.Body.StartTime, input.Body.EndTime)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ScheduledVerification `json:"body"`
		}{Body: scheduled}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "verification-status",
		Method:      http.MethodGet,
		Path:        "/missions/{id}/verification",
		Summary:     "Verification status",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body verify.VerificationStatus `json:"body"`
	}, error) {
		status, err := cfg.Verify.GetVerificationStatus(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body verify.VerificationStatus `json:"body"`
		}{Body: status}, nil
	})
}

// verificationInput validates the window body and resolves the runner the
// verification runs for.
func verificationInput(ctx context.Context, cfg Config, missionID string, body VerificationWindowRequest) (domain.VerificationWindow, string, error) {
	if body.StartTime == "" || body.EndTime == "" {
		return domain.VerificationWindow{}, "", fmt.Errorf("start_time and end_time are required")
	}
	start, err := time.Parse(time.RFC3339, body.StartTime)
	if err != nil {
		return domain.VerificationWindow{}, "", fmt.Errorf("invalid start_time: %w", err)
	}
	end, err := time.Parse(time.RFC3339, body.EndTime)
	if err != nil {
		return domain.VerificationWindow{}, "", fmt.Errorf("invalid end_time: %w", err)
	}
	if !end.After(start) {
		return domain.VerificationWindow{}, "", fmt.Errorf("invalid window: end_time must be after start_time")
	}
	m, err := cfg.Repo.GetMission(ctx, missionID)
	if err != nil {
		return domain.VerificationWindow{}, "", err
	}
	if m.RunnerID == nil || *m.RunnerID == "" {
		return domain.VerificationWindow{}, "", fmt.Errorf("mission %s has no runner assigned", missionID)
	}
	window := domain.VerificationWindow{
		StartTime: start.UTC().Format(time.RFC3339),
		EndTime:   end.UTC().Format(time.RFC3339),
	}
	return window, *m.RunnerID, nil
}

func registerPayments(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID:   "process-payment",
		Method:        http.MethodPost,
		Path:          "/missions/{id}/payment",
		Summary:       "Dispatch the mission payout",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body PaymentResponse `json:"body"`
	}, error) {
		m, err := cfg.Repo.GetMission(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		recipient := ""
		if m.RunnerID != nil {
			recipient = *m.RunnerID
		}
		if recipient == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "mission has no runner to pay", nil)
		}
		result, err := cfg.Payments.ProcessPayment(ctx, m.PaymentMethod, m.Budget, recipient, m.ID, m.CuratorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PaymentResponse `json:"body"`
		}{Body: paymentResponse(result)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-payment",
		Method:      http.MethodPost,
		Path:        "/payments/{id}/complete",
		Summary:     "Mark a manual payment as settled",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string                 `path:"id"`
		Body CompletePaymentRequest `json:"body"`
	}) (*struct {
		Body domain.PaymentInstruction `json:"body"`
	}, error) {
		instruction, err := cfg.Payments.MarkCompleted(ctx, input.ID, input.Body.TransactionDetails)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.PaymentInstruction `json:"body"`
		}{Body: instruction}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-payment",
		Method:      http.MethodGet,
		Path:        "/payments/{id}",
		Summary:     "Get payment instruction",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.PaymentInstruction `json:"body"`
	}, error) {
		instruction, err := cfg.Repo.GetPaymentInstruction(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.PaymentInstruction `json:"body"`
		}{Body: instruction}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-payments",
		Method:      http.MethodGet,
		Path:        "/payments",
		Summary:     "List payment instructions",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		MissionID string `query:"mission_id"`
		Status    string `query:"status" enum:",pending,completed,expired"`
	}) (*struct {
		Body []domain.PaymentInstruction `json:"body"`
	}, error) {
		items, err := cfg.Repo.ListPaymentInstructions(ctx, input.MissionID, input.Status)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.PaymentInstruction{}
		}
		return &struct {
			Body []domain.PaymentInstruction `json:"body"`
		}{Body: items}, nil
	})
}

func registerEvents(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		EntityKind string `query:"entity_kind" enum:",mission,payment,runner,notification"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
	}) (*struct {
		Body []EventResponse `json:"body"`
	}, error) {
		limit := input.Limit
		if limit <= 0 || limit > 500 {
			limit = 50
		}
		items, err := cfg.Repo.ListEvents(ctx, limit, input.EntityKind, input.EntityID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []EventResponse `json:"body"`
		}{Body: mapEvents(items)}, nil
	})
}

func registerAPIKeys(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-api-key",
		Method:        http.MethodPost,
		Path:          "/apikeys",
		Summary:       "Create API key",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateAPIKeyRequest `json:"body"`
	}) (*struct {
		Body APIKeyResponse `json:"body"`
	}, error) {
		if input.Body.ActorID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		secret := uuid.New().String() + uuid.New().String()
		key := domain.APIKey{
			ID:        uuid.New().String(),
			ActorID:   input.Body.ActorID,
			Name:      input.Body.Name,
			KeyHash:   repo.HashAPIKey(secret),
			CreatedAt: cfg.now().UTC().Format(time.RFC3339),
		}
		if err := cfg.Repo.InsertAPIKey(ctx, nil, key); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body APIKeyResponse `json:"body"`
		}{Body: APIKeyResponse{
			ID:        key.ID,
			ActorID:   key.ActorID,
			Name:      key.Name,
			Key:       secret, // shown once
			CreatedAt: key.CreatedAt,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-api-keys",
		Method:      http.MethodGet,
		Path:        "/apikeys",
		Summary:     "List API keys",
	}, func(ctx context.Context, input *struct {
		ActorID string `query:"actor_id"`
	}) (*struct {
		Body []APIKeyResponse `json:"body"`
	}, error) {
		items, err := cfg.Repo.ListAPIKeys(ctx, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		out := []APIKeyResponse{}
		for _, k := range items {
			out = append(out, APIKeyResponse{
				ID:        k.ID,
				ActorID:   k.ActorID,
				Name:      k.Name,
				CreatedAt: k.CreatedAt,
			})
		}
		return &struct {
			Body []APIKeyResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-api-key",
		Method:      http.MethodDelete,
		Path:        "/apikeys/{id}",
		Summary:     "Delete API key",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := cfg.Repo.DeleteAPIKey(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerMe(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current principal",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body MeResponse `json:"body"`
	}, error) {
		principal, ok := principalFromContext(ctx)
		if !ok {
			return nil, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		}
		roles := principal.Roles
		if roles == nil {
			roles = []string{}
		}
		return &struct {
			Body MeResponse `json:"body"`
		}{Body: MeResponse{
			ActorID: principal.ActorID,
			Roles:   roles,
			Source:  principal.Source,
		}}, nil
	})
}

func registerDevAuth(api huma.API, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actor := strings.TrimSpace(input.Body.ActorID)
		if actor == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		token, err := signDevToken(authCfg.JWTSecret, actor, input.Body.Roles)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		authCfg.logger().Printf("dev token minted for %s", actor)
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token}}, nil
	})
}

func bodyBytes(ctx context.Context) []byte {
	if buf, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return buf
	}
	req, ok := ctx.Value(requestKey{}).(*http.Request)
	if !ok || req == nil {
		return nil
	}
	data, _ := io.ReadAll(req.Body)
	return data
}
