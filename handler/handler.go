package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"meeting-summarizer/internal/auth"
	"meeting-summarizer/internal/domain"
	"meeting-summarizer/internal/usecase"
)

const (
	correlationHeader = "X-Correlation-Id"
	summariesPath     = "/summaries"
	notifyPath        = "/notify"
	maxBodyBytes      = 1 << 20
)

// SummaryUseCase is the owner-scoped summary lifecycle.
type SummaryUseCase interface {
	Create(ctx context.Context, owner string, in usecase.CreateInput) (usecase.CreateOutput, error)
	List(ctx context.Context, owner string) ([]domain.Summary, error)
	Get(ctx context.Context, owner, id string) (domain.Summary, error)
	Update(ctx context.Context, owner string, in usecase.UpdateInput) (usecase.UpdateOutput, error)
	Delete(ctx context.Context, owner, id string) error
}

// NotifyUseCase mails summary text to one address.
type NotifyUseCase interface {
	Send(ctx context.Context, in usecase.NotifyInput) error
}

// Authenticator verifies a bearer token and returns the caller identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// Handler serves the summary API from API Gateway proxy events.
type Handler struct {
	summaries SummaryUseCase
	notify    NotifyUseCase
	auth      Authenticator
}

type createRequest struct {
	Transcript  string `json:"transcript"`
	Instruction string `json:"instruction"`
	Prompt      string `json:"prompt"`
}

// updateRequest accepts both {id, summary} and {summaryId, newSummary}.
type updateRequest struct {
	ID         string `json:"id"`
	Summary    string `json:"summary"`
	SummaryID  string `json:"summaryId"`
	NewSummary string `json:"newSummary"`
}

type deleteRequest struct {
	ID        string `json:"id"`
	SummaryID string `json:"summaryId"`
}

type notifyRequest struct {
	Email     string   `json:"email"`
	Summaries []string `json:"summaries"`
}

type summaryResponse struct {
	ID         string    `json:"id"`
	Transcript string    `json:"transcript,omitempty"`
	Summary    string    `json:"summary"`
	CreatedAt  time.Time `json:"createdAt"`
}

type mutationResponse struct {
	ID      string `json:"id"`
	Summary string `json:"summary"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// NewHandler returns an error if any dependency is nil.
func NewHandler(summaries SummaryUseCase, notify NotifyUseCase, authenticator Authenticator) (*Handler, error) {
	if summaries == nil {
		return nil, errors.New("handler: summary use case must not be nil")
	}
	if notify == nil {
		return nil, errors.New("handler: notify use case must not be nil")
	}
	if authenticator == nil {
		return nil, errors.New("handler: authenticator must not be nil")
	}
	return &Handler{summaries: summaries, notify: notify, auth: authenticator}, nil
}

// Handle routes an API Gateway proxy event. Failures are always rendered as
// HTTP responses; the returned error is reserved for the Lambda runtime and
// is always nil.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := correlationID(req.Headers)
	logger := slog.Default().With("correlation_id", corrID, "method", req.HTTPMethod, "path", req.Path)

	status, payload, err := h.route(ctx, req)
	if err != nil {
		status, payload = errorToResponse(err)
		logError(ctx, logger, status, err)
	}
	return jsonResponse(status, payload, corrID), nil
}

func (h *Handler) route(ctx context.Context, req events.APIGatewayProxyRequest) (int, any, error) {
	path := strings.TrimRight(req.Path, "/")
	method := strings.ToUpper(req.HTTPMethod)

	switch {
	case path == notifyPath:
		if method != http.MethodPost {
			return http.StatusMethodNotAllowed, errorResponse{Error: "METHOD_NOT_ALLOWED"}, nil
		}
		return h.sendNotification(ctx, req)

	case path == summariesPath:
		switch method {
		case http.MethodGet:
			return h.withIdentity(ctx, req, h.listSummaries)
		case http.MethodPost:
			return h.withIdentity(ctx, req, h.createSummary)
		case http.MethodPut:
			return h.withIdentity(ctx, req, h.updateSummary)
		case http.MethodDelete:
			return h.withIdentity(ctx, req, h.deleteSummary)
		}
		return http.StatusMethodNotAllowed, errorResponse{Error: "METHOD_NOT_ALLOWED"}, nil

	case strings.HasPrefix(path, summariesPath+"/"):
		if _, ok := pathID(req); !ok {
			break
		}
		switch method {
		case http.MethodGet:
			return h.withIdentity(ctx, req, h.getSummary)
		case http.MethodPut:
			return h.withIdentity(ctx, req, h.updateSummary)
		case http.MethodDelete:
			return h.withIdentity(ctx, req, h.deleteSummary)
		}
		return http.StatusMethodNotAllowed, errorResponse{Error: "METHOD_NOT_ALLOWED"}, nil
	}
	return http.StatusNotFound, errorResponse{Error: "ROUTE_NOT_FOUND"}, nil
}

type identifiedRoute func(ctx context.Context, owner string, req events.APIGatewayProxyRequest) (int, any, error)

// withIdentity resolves the caller before any use case runs. Identity comes
// from the API Gateway authorizer when present, else from a bearer token.
func (h *Handler) withIdentity(ctx context.Context, req events.APIGatewayProxyRequest, next identifiedRoute) (int, any, error) {
	owner, err := h.identify(ctx, req)
	if err != nil {
		return 0, nil, err
	}
	return next(ctx, owner, req)
}

func (h *Handler) identify(ctx context.Context, req events.APIGatewayProxyRequest) (string, error) {
	if id, ok := auth.IdentityFromAuthorizer(req.RequestContext.Authorizer); ok {
		return id, nil
	}
	token, ok := auth.BearerToken(headerValue(req.Headers, "Authorization"))
	if !ok {
		return "", &usecase.Error{Code: usecase.ErrorUnauthenticated, Reason: "missing_token"}
	}
	id, err := h.auth.Authenticate(ctx, token)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			return "", &usecase.Error{Code: usecase.ErrorUnauthenticated, Reason: "invalid_token", Err: err}
		}
		return "", &usecase.Error{Code: usecase.ErrorInternal, Reason: "auth_unavailable", Err: err}
	}
	return id, nil
}

func (h *Handler) createSummary(ctx context.Context, owner string, req events.APIGatewayProxyRequest) (int, any, error) {
	var body createRequest
	if err := decodeBody(req, &body); err != nil {
		return 0, nil, err
	}
	instruction := body.Instruction
	if strings.TrimSpace(instruction) == "" {
		instruction = body.Prompt
	}
	out, err := h.summaries.Create(ctx, owner, usecase.CreateInput{
		Transcript:  body.Transcript,
		Instruction: instruction,
	})
	if err != nil {
		return 0, nil, err
	}
	return http.StatusCreated, mutationResponse{ID: out.ID, Summary: out.SummaryText}, nil
}

func (h *Handler) listSummaries(ctx context.Context, owner string, _ events.APIGatewayProxyRequest) (int, any, error) {
	summaries, err := h.summaries.List(ctx, owner)
	if err != nil {
		return 0, nil, err
	}
	out := make([]summaryResponse, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, toSummaryResponse(s))
	}
	return http.StatusOK, out, nil
}

func (h *Handler) getSummary(ctx context.Context, owner string, req events.APIGatewayProxyRequest) (int, any, error) {
	id, _ := pathID(req)
	s, err := h.summaries.Get(ctx, owner, id)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, toSummaryResponse(s), nil
}

func (h *Handler) updateSummary(ctx context.Context, owner string, req events.APIGatewayProxyRequest) (int, any, error) {
	var body updateRequest
	if err := decodeBody(req, &body); err != nil {
		return 0, nil, err
	}
	id, ok := pathID(req)
	if !ok {
		id = firstNonBlank(body.ID, body.SummaryID)
	}
	out, err := h.summaries.Update(ctx, owner, usecase.UpdateInput{
		ID:   id,
		Text: firstNonBlank(body.Summary, body.NewSummary),
	})
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, mutationResponse{ID: out.ID, Summary: out.SummaryText}, nil
}

func (h *Handler) deleteSummary(ctx context.Context, owner string, req events.APIGatewayProxyRequest) (int, any, error) {
	id, ok := pathID(req)
	if !ok {
		var body deleteRequest
		if err := decodeBody(req, &body); err != nil {
			return 0, nil, err
		}
		id = firstNonBlank(body.ID, body.SummaryID)
	}
	if err := h.summaries.Delete(ctx, owner, id); err != nil {
		return 0, nil, err
	}
	return http.StatusOK, successResponse{Success: true}, nil
}

func (h *Handler) sendNotification(ctx context.Context, req events.APIGatewayProxyRequest) (int, any, error) {
	var body notifyRequest
	if err := decodeBody(req, &body); err != nil {
		return 0, nil, err
	}
	if err := h.notify.Send(ctx, usecase.NotifyInput{Address: body.Email, Bodies: body.Summaries}); err != nil {
		return 0, nil, err
	}
	return http.StatusOK, successResponse{Success: true}, nil
}

func toSummaryResponse(s domain.Summary) summaryResponse {
	return summaryResponse{
		ID:         s.ID,
		Transcript: s.Transcript,
		Summary:    s.SummaryText,
		CreatedAt:  s.CreatedAt,
	}
}

// pathID returns the {id} segment of /summaries/{id}.
func pathID(req events.APIGatewayProxyRequest) (string, bool) {
	if id := strings.TrimSpace(req.PathParameters["id"]); id != "" {
		return id, true
	}
	rest, ok := strings.CutPrefix(strings.TrimRight(req.Path, "/"), summariesPath+"/")
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}

// decodeBody unmarshals a JSON body into v. An empty body leaves v zeroed so
// the use case reports which field is missing. Unknown fields are ignored:
// ownership never comes from the body.
func decodeBody(req events.APIGatewayProxyRequest, v any) error {
	raw := req.Body
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return &usecase.Error{Code: usecase.ErrorValidation, Reason: "invalid_body", Err: err}
		}
		raw = string(decoded)
	}
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	if len(raw) > maxBodyBytes {
		return &usecase.Error{Code: usecase.ErrorValidation, Reason: "body_too_large"}
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return &usecase.Error{Code: usecase.ErrorValidation, Reason: "invalid_body", Err: err}
	}
	return nil
}

func errorToResponse(err error) (int, errorResponse) {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		return http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal)}
	}
	switch ucErr.Code {
	case usecase.ErrorUnauthenticated:
		return http.StatusUnauthorized, errorResponse{Error: string(ucErr.Code), Reason: ucErr.Reason}
	case usecase.ErrorValidation:
		return http.StatusBadRequest, errorResponse{Error: string(ucErr.Code), Reason: ucErr.Reason}
	case usecase.ErrorNotFoundOrForbidden:
		return http.StatusNotFound, errorResponse{Error: string(ucErr.Code), Reason: ucErr.Reason}
	case usecase.ErrorGeneration, usecase.ErrorDelivery:
		return http.StatusBadGateway, errorResponse{Error: string(ucErr.Code), Reason: ucErr.Reason}
	default:
		return http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal)}
	}
}

func logError(ctx context.Context, logger *slog.Logger, status int, err error) {
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, "request failed", "status", status, "err", err)
		return
	}
	logger.InfoContext(ctx, "request rejected", "status", status, "err", err)
}

func jsonResponse(status int, payload any, corrID string) events.APIGatewayProxyResponse {
	body, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(fmt.Sprintf(`{"error":%q}`, usecase.ErrorInternal))
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: corrID,
		},
		Body: string(body),
	}
}

func correlationID(headers map[string]string) string {
	if v := strings.TrimSpace(headerValue(headers, correlationHeader)); v != "" {
		return v
	}
	return uuid.NewString()
}

func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
