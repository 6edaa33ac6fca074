package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/davidbz/sidecar/internal/credstore"
	"github.com/davidbz/sidecar/internal/domain"
	"github.com/davidbz/sidecar/internal/fim"
	"github.com/davidbz/sidecar/internal/observability"
	"github.com/davidbz/sidecar/internal/provider/registry"
	"github.com/davidbz/sidecar/internal/routing"
	"github.com/davidbz/sidecar/internal/tokenizer"
)

// statusClientClosedRequest is reported when the caller went away mid-request.
const statusClientClosedRequest = 499

// AnswerBroker streams chat and raw-prompt answers.
type AnswerBroker interface {
	StreamAnswer(ctx context.Context, creds domain.ProviderCredentials, req domain.AnswerRequest, sink domain.Sink) (string, error)
	StreamAnswerWithFailover(ctx context.Context, failOver domain.FailOver, req domain.AnswerRequest, sink domain.Sink) (string, error)
}

// FIMBroker streams fill-in-the-middle completions.
type FIMBroker interface {
	Supports(model domain.ModelID) bool
	Stream(ctx context.Context, creds domain.ProviderCredentials, req fim.Request, sink domain.Sink) (string, error)
}

// TokenCounter counts prompt tokens.
type TokenCounter interface {
	Count(model domain.ModelID, input tokenizer.Input) (int, error)
	Budget(model domain.ModelID, promptTokens int) (int, bool, error)
	Family(model domain.ModelID) (string, bool)
}

// ModelCatalog lists which providers serve a model.
type ModelCatalog interface {
	ProvidersFor(ctx context.Context, model domain.ModelID) ([]registry.WireName, error)
}

// ProfileResolver turns a profile name, or a model when the name is empty,
// into credentials.
type ProfileResolver interface {
	Resolve(ctx context.Context, name string, model domain.ModelID) (string, domain.ProviderCredentials, error)
}

// Handler handles HTTP requests.
type Handler struct {
	answers      AnswerBroker
	fim          FIMBroker
	tokens       TokenCounter
	catalog      ModelCatalog
	answerModels *domain.AnswerModels
	profiles     ProfileResolver
}

// NewHandler creates a new HTTP handler (DI constructor).
func NewHandler(
	answers AnswerBroker,
	fimBroker FIMBroker,
	tokens TokenCounter,
	catalog ModelCatalog,
	answerModels *domain.AnswerModels,
	profiles ProfileResolver,
) *Handler {
	return &Handler{
		answers:      answers,
		fim:          fimBroker,
		tokens:       tokens,
		catalog:      catalog,
		answerModels: answerModels,
		profiles:     profiles,
	}
}

type answerRequest struct {
	Profile         string                          `json:"profile,omitempty"`
	FallbackProfile string                          `json:"fallback_profile,omitempty"`
	Retries         int                             `json:"retries,omitempty"`
	Stream          bool                            `json:"stream"`
	Chat            *domain.CompletionRequest       `json:"chat,omitempty"`
	Prompt          *domain.StringCompletionRequest `json:"prompt,omitempty"`
}

type fimRequest struct {
	fim.Request

	Profile string `json:"profile,omitempty"`
	Stream  bool   `json:"stream"`
}

type tokensRequest struct {
	Model    domain.ModelID   `json:"model"`
	Prompt   *string          `json:"prompt,omitempty"`
	Messages []domain.Message `json:"messages,omitempty"`
}

type tokensResponse struct {
	Model     domain.ModelID `json:"model"`
	Tokens    int            `json:"tokens"`
	Family    string         `json:"family"`
	Remaining *int           `json:"remaining,omitempty"`
	Fits      *bool          `json:"fits,omitempty"`
}

type modelResponse struct {
	Model       domain.ModelID      `json:"model"`
	Providers   []registry.WireName `json:"providers"`
	AnswerModel *domain.AnswerModel `json:"answer_model,omitempty"`
	FIM         bool                `json:"fim"`
	Tokenizer   string              `json:"tokenizer,omitempty"`
}

type completionResponse struct {
	Profile string `json:"profile"`
	Text    string `json:"text"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// HandleAnswer streams a chat or raw-prompt answer.
func (h *Handler) HandleAnswer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: invalid request body: %w", domain.ErrInvalidRequest, err))
		return
	}

	answer := domain.AnswerRequest{Chat: req.Chat, Prompt: req.Prompt}
	profile, creds, err := h.profiles.Resolve(ctx, req.Profile, answer.Model())
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	run := func(ctx context.Context, sink domain.Sink) (string, error) {
		return h.answers.StreamAnswer(ctx, creds, answer, sink)
	}

	if req.FallbackProfile != "" {
		_, fallback, fallbackErr := h.profiles.Resolve(ctx, req.FallbackProfile, answer.Model())
		if fallbackErr != nil {
			writeError(ctx, w, fallbackErr)
			return
		}
		retries := req.Retries
		if retries <= 0 {
			retries = 1
		}
		failOver := domain.FailOver{Primary: creds, Secondary: fallback, Retries: retries}
		run = func(ctx context.Context, sink domain.Sink) (string, error) {
			return h.answers.StreamAnswerWithFailover(ctx, failOver, answer, sink)
		}
	}

	observability.FromContext(ctx).Info("answer request received",
		observability.String("profile", profile),
		observability.String("model", string(answer.Model())),
		observability.Bool("stream", req.Stream))

	h.respond(ctx, w, profile, req.Stream, run)
}

// HandleFIM streams a fill-in-the-middle completion.
func (h *Handler) HandleFIM(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req fimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: invalid request body: %w", domain.ErrInvalidRequest, err))
		return
	}
	if !h.fim.Supports(req.Model) {
		writeError(ctx, w, fmt.Errorf("%w: %s", domain.ErrUnknownFimModel, req.Model))
		return
	}

	profile, creds, err := h.profiles.Resolve(ctx, req.Profile, req.Model)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	h.respond(ctx, w, profile, req.Stream, func(ctx context.Context, sink domain.Sink) (string, error) {
		return h.fim.Stream(ctx, creds, req.Request, sink)
	})
}

// HandleTokens counts the tokens of a prompt or message list.
func (h *Handler) HandleTokens(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req tokensRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: invalid request body: %w", domain.ErrInvalidRequest, err))
		return
	}

	var input tokenizer.Input
	switch {
	case (req.Prompt != nil) == (len(req.Messages) > 0):
		writeError(ctx, w, fmt.Errorf("%w: set exactly one of prompt or messages", domain.ErrInvalidRequest))
		return
	case req.Prompt != nil:
		input = tokenizer.Prompt(*req.Prompt)
	default:
		input = tokenizer.Messages(req.Messages)
	}

	count, err := h.tokens.Count(req.Model, input)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	resp := tokensResponse{Model: req.Model, Tokens: count}
	resp.Family, _ = h.tokens.Family(req.Model)
	if remaining, fits, budgetErr := h.tokens.Budget(req.Model, count); budgetErr == nil {
		resp.Remaining = &remaining
		resp.Fits = &fits
	}

	writeJSON(ctx, w, http.StatusOK, resp)
}

// HandleModel describes which providers serve a model and its token budgets.
func (h *Handler) HandleModel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	model := domain.ModelID(chi.URLParam(r, "model"))

	providers, err := h.catalog.ProvidersFor(ctx, model)
	if err != nil {
		writeError(ctx, w, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err))
		return
	}

	resp := modelResponse{Model: model, Providers: providers, FIM: h.fim.Supports(model)}
	if answerModel, ok := h.answerModels.Lookup(model); ok {
		resp.AnswerModel = &answerModel
	}
	resp.Tokenizer, _ = h.tokens.Family(model)

	writeJSON(ctx, w, http.StatusOK, resp)
}

// HandleHealth handles health check requests.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

type streamFunc func(ctx context.Context, sink domain.Sink) (string, error)

func (h *Handler) respond(ctx context.Context, w http.ResponseWriter, profile string, stream bool, run streamFunc) {
	if !stream {
		text, err := run(ctx, domain.DiscardSink)
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		writeJSON(ctx, w, http.StatusOK, completionResponse{Profile: profile, Text: text})
		return
	}

	h.handleStream(ctx, w, profile, run)
}

// handleStream runs the request on its own goroutine feeding a DeltaSink and
// relays every delta as an SSE event. Errors before the first delta are
// reported as plain JSON responses.
func (h *Handler) handleStream(ctx context.Context, w http.ResponseWriter, profile string, run streamFunc) {
	logger := observability.FromContext(ctx)

	flusher, ok := w.(http.Flusher)
	if !ok {
		logger.Error("streaming not supported")
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		text string
		err  error
	}

	sink := domain.NewDeltaSink()
	done := make(chan result, 1)
	go func() {
		text, err := run(ctx, sink)
		sink.Close()
		done <- result{text: text, err: err}
	}()

	started := false
	for {
		delta, ok := sink.Recv(ctx)
		if !ok {
			break
		}
		if !started {
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("Connection", "keep-alive")
			started = true
		}
		if err := writeEvent(w, "", delta); err != nil {
			logger.Debug("client went away mid-stream", observability.Error(err))
			sink.Drop()
			cancel()
			break
		}
		flusher.Flush()
	}

	res := <-done
	if !started {
		if res.err != nil {
			writeError(ctx, w, res.err)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
	}

	if res.err != nil {
		logger.Error("stream failed", observability.Error(res.err))
		_ = writeEvent(w, "error", errorResponse{Error: res.err.Error(), Kind: errorKind(res.err)})
		flusher.Flush()
		return
	}

	logger.Info("stream completed", observability.Int("length", len(res.text)))
	_ = writeEvent(w, "done", completionResponse{Profile: profile, Text: res.text})
	flusher.Flush()
}

func writeEvent(w http.ResponseWriter, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// Status already written; just log.
		observability.FromContext(ctx).Error("failed to encode response", observability.Error(err))
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		observability.FromContext(ctx).Error("request failed", observability.Error(err))
	} else {
		observability.FromContext(ctx).Info("request rejected", observability.Error(err))
	}
	writeJSON(ctx, w, status, errorResponse{Error: err.Error(), Kind: errorKind(err)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrWrongCredentialKind):
		return http.StatusBadRequest
	case errors.Is(err, credstore.ErrProfileNotFound), errors.Is(err, routing.ErrNoProfile):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnsupportedProvider), errors.Is(err, domain.ErrUnsupportedModel),
		errors.Is(err, domain.ErrUnknownFimModel), errors.Is(err, domain.ErrUnsupportedForMessages):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrCancelled), errors.Is(err, domain.ErrSinkClosed):
		return statusClientClosedRequest
	default:
		return http.StatusBadGateway
	}
}

func errorKind(err error) string {
	var perr *domain.ProviderError
	switch {
	case errors.As(err, &perr):
		return "provider_error"
	case errors.Is(err, domain.ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, credstore.ErrProfileNotFound), errors.Is(err, routing.ErrNoProfile):
		return "no_credentials"
	case errors.Is(err, domain.ErrUnsupportedProvider):
		return "unsupported_provider"
	case errors.Is(err, domain.ErrUnsupportedModel):
		return "unsupported_model"
	case errors.Is(err, domain.ErrWrongCredentialKind):
		return "wrong_credential_kind"
	case errors.Is(err, domain.ErrUnsupportedForMessages):
		return "unsupported_for_messages"
	case errors.Is(err, domain.ErrUnknownFimModel):
		return "unknown_fim_model"
	case errors.Is(err, domain.ErrCancelled):
		return "cancelled"
	case errors.Is(err, domain.ErrSinkClosed):
		return "sink_closed"
	case errors.Is(err, domain.ErrDecode):
		return "decode_error"
	case errors.Is(err, domain.ErrNetwork):
		return "network_error"
	default:
		return "internal"
	}
}
