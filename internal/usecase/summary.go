package usecase

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"meeting-summarizer/internal/domain"
	"meeting-summarizer/internal/guard"
	"meeting-summarizer/internal/integrations/openai"
)

const defaultMaxTranscript = 50000

// ParamGetter reads configuration values from the parameter store.
type ParamGetter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// LLMClient generates a completion for the given chat messages.
type LLMClient interface {
	Chat(ctx context.Context, model string, messages []domain.ChatMessage) (string, error)
}

// SummaryStore covers the unscoped store operations: inserting a new record
// and listing by owner. Both are keyed by the caller's own identity.
type SummaryStore interface {
	Insert(ctx context.Context, s domain.Summary) (domain.Summary, error)
	FindByOwner(ctx context.Context, ownerID string) ([]domain.Summary, error)
}

// OwnerScope performs point reads and mutations scoped by (id, owner).
type OwnerScope interface {
	Get(ctx context.Context, owner, id string) (domain.Summary, error)
	Update(ctx context.Context, owner, id string, m domain.SummaryMutation) (domain.Summary, error)
	Delete(ctx context.Context, owner, id string) error
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// SummaryService owns the summary lifecycle for an authenticated caller.
type SummaryService struct {
	params           ParamGetter
	llm              LLMClient
	store            SummaryStore
	scope            OwnerScope
	paramPrefix      string
	maxTranscriptLen int

	cacheMu     sync.RWMutex
	cacheLoaded bool
	openaiModel string
}

// CreateInput is the caller-supplied part of a new summary.
type CreateInput struct {
	Transcript  string
	Instruction string
}

type CreateOutput struct {
	ID          string
	SummaryText string
}

// UpdateInput replaces the summary text of record ID.
type UpdateInput struct {
	ID   string
	Text string
}

type UpdateOutput struct {
	ID          string
	SummaryText string
}

// NewSummaryService validates its dependencies. A non-positive
// maxTranscriptLen falls back to the default limit.
func NewSummaryService(p ParamGetter, llm LLMClient, store SummaryStore, scope OwnerScope, paramPrefix string, maxTranscriptLen int) (*SummaryService, error) {
	if p == nil {
		return nil, errors.New("usecase: param getter must not be nil")
	}
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if store == nil {
		return nil, errors.New("usecase: summary store must not be nil")
	}
	if scope == nil {
		return nil, errors.New("usecase: owner scope must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("usecase: parameter prefix must not be empty")
	}
	if maxTranscriptLen <= 0 {
		maxTranscriptLen = defaultMaxTranscript
	}
	return &SummaryService{
		params:           p,
		llm:              llm,
		store:            store,
		scope:            scope,
		paramPrefix:      paramPrefix,
		maxTranscriptLen: maxTranscriptLen,
	}, nil
}

// Create generates a summary for the transcript and persists it under owner.
// Nothing is written unless generation succeeds.
func (s *SummaryService) Create(ctx context.Context, owner string, in CreateInput) (CreateOutput, error) {
	owner, err := requireOwner(owner)
	if err != nil {
		return CreateOutput{}, err
	}
	transcript := strings.TrimSpace(in.Transcript)
	if transcript == "" {
		return CreateOutput{}, newError(ErrorValidation, "empty_transcript", nil)
	}
	if len(transcript) > s.maxTranscriptLen {
		return CreateOutput{}, newError(ErrorValidation, "transcript_too_long", nil)
	}
	if err := s.ensureConfig(ctx); err != nil {
		return CreateOutput{}, newError(ErrorInternal, "ssm_load_error", err)
	}

	raw, err := s.llm.Chat(ctx, s.openaiModel, buildSummaryMessages(transcript, in.Instruction))
	if err != nil {
		if errors.Is(err, openai.ErrAPIKeyUnavailable) {
			return CreateOutput{}, newError(ErrorInternal, "ssm_load_error", err)
		}
		if status, ok := upstreamStatusCode(err); ok && status == 429 {
			return CreateOutput{}, newError(ErrorGeneration, "generator_rate_limited", err)
		}
		return CreateOutput{}, newError(ErrorGeneration, "generator_error", err)
	}
	text := strings.TrimSpace(raw)
	if text == "" {
		return CreateOutput{}, newError(ErrorGeneration, "empty_generation", nil)
	}

	saved, err := s.store.Insert(ctx, domain.Summary{
		OwnerID:     owner,
		Transcript:  in.Transcript,
		SummaryText: text,
	})
	if err != nil {
		return CreateOutput{}, newError(ErrorInternal, "dynamodb_write_error", err)
	}
	return CreateOutput{ID: saved.ID, SummaryText: saved.SummaryText}, nil
}

// List returns every summary owned by owner, most recently touched first.
func (s *SummaryService) List(ctx context.Context, owner string) ([]domain.Summary, error) {
	owner, err := requireOwner(owner)
	if err != nil {
		return nil, err
	}
	summaries, err := s.store.FindByOwner(ctx, owner)
	if err != nil {
		return nil, newError(ErrorInternal, "dynamodb_list_error", err)
	}
	out := make([]domain.Summary, 0, len(summaries))
	for _, sum := range summaries {
		if sum.OwnerID == owner {
			out = append(out, sum)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.Summary) int {
		return cmp.Compare(b.CreatedAt.UnixNano(), a.CreatedAt.UnixNano())
	})
	return out, nil
}

func (s *SummaryService) Get(ctx context.Context, owner, id string) (domain.Summary, error) {
	owner, err := requireOwner(owner)
	if err != nil {
		return domain.Summary{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Summary{}, newError(ErrorValidation, "missing_id", nil)
	}
	sum, err := s.scope.Get(ctx, owner, id)
	if err != nil {
		return domain.Summary{}, classifyScopeError(err, "dynamodb_read_error")
	}
	return sum, nil
}

// Update replaces the summary text and re-stamps CreatedAt, which moves the
// record to the top of List.
func (s *SummaryService) Update(ctx context.Context, owner string, in UpdateInput) (UpdateOutput, error) {
	owner, err := requireOwner(owner)
	if err != nil {
		return UpdateOutput{}, err
	}
	id := strings.TrimSpace(in.ID)
	if id == "" {
		return UpdateOutput{}, newError(ErrorValidation, "missing_id", nil)
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return UpdateOutput{}, newError(ErrorValidation, "empty_summary", nil)
	}

	sum, err := s.scope.Update(ctx, owner, id, domain.SummaryMutation{
		SummaryText: text,
		CreatedAt:   now().UTC(),
	})
	if err != nil {
		return UpdateOutput{}, classifyScopeError(err, "dynamodb_update_error")
	}
	return UpdateOutput{ID: sum.ID, SummaryText: sum.SummaryText}, nil
}

func (s *SummaryService) Delete(ctx context.Context, owner, id string) error {
	owner, err := requireOwner(owner)
	if err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return newError(ErrorValidation, "missing_id", nil)
	}
	if err := s.scope.Delete(ctx, owner, id); err != nil {
		return classifyScopeError(err, "dynamodb_delete_error")
	}
	return nil
}

func (s *SummaryService) ensureConfig(ctx context.Context) error {
	s.cacheMu.RLock()
	if s.cacheLoaded {
		s.cacheMu.RUnlock()
		return nil
	}
	s.cacheMu.RUnlock()

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.cacheLoaded {
		return nil
	}

	model, err := s.params.GetParameter(ctx, s.paramPrefix+"/config/openai_model")
	if err != nil {
		return fmt.Errorf("usecase: load openai model: %w", err)
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return errors.New("usecase: openai model parameter is empty")
	}

	s.openaiModel = model
	s.cacheLoaded = true
	return nil
}

func requireOwner(owner string) (string, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return "", newError(ErrorUnauthenticated, "missing_identity", nil)
	}
	return owner, nil
}

func classifyScopeError(err error, internalReason string) error {
	if errors.Is(err, guard.ErrNotFoundOrForbidden) {
		return newError(ErrorNotFoundOrForbidden, "summary_not_found", nil)
	}
	return newError(ErrorInternal, internalReason, err)
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

var now = time.Now
