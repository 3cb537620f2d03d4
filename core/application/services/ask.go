package services

import (
	"context"
	"strings"

	"github.com/hyperterse/querygate/core/domain"
	"github.com/hyperterse/querygate/core/domain/interfaces"
	"github.com/hyperterse/querygate/core/infrastructure/logging"
	gwerrors "github.com/hyperterse/querygate/core/shared/errors"
)

// AskRequest is a natural-language question about one data source. Either
// DataSource names a catalog entry or Descriptor is given inline.
type AskRequest struct {
	Question   string                       `json:"question" validate:"required"`
	Schema     string                       `json:"schema,omitempty"`
	DataSource string                       `json:"data_source_name,omitempty"`
	Descriptor *domain.DataSourceDescriptor `json:"data_source,omitempty" validate:"-"`
}

// AskResult carries the generated query alongside its rows so callers can
// show what was run.
type AskResult struct {
	Query  string              `json:"query"`
	Result *domain.QueryResult `json:"result"`
}

// AskService translates a question into a query and executes it
type AskService struct {
	queries    *QueryService
	translator interfaces.TranslationPort
	log        logging.Logger
}

// NewAskService creates a new AskService
func NewAskService(queries *QueryService, translator interfaces.TranslationPort) *AskService {
	return &AskService{
		queries:    queries,
		translator: translator,
		log:        logging.New("services:ask"),
	}
}

// Ask translates req.Question for the target engine and runs the generated
// query. The gateway never sees the question, only the query.
func (s *AskService) Ask(ctx context.Context, req AskRequest) (*AskResult, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, gwerrors.New(gwerrors.KindInvalidInput, "", "question cannot be empty", nil)
	}
	if s.translator == nil {
		return nil, gwerrors.New(gwerrors.KindTranslationFailed, "", "no translator is configured", nil)
	}

	d, err := s.target(req)
	if err != nil {
		return nil, err
	}

	query, err := s.translator.Translate(ctx, req.Question, req.Schema, d.Engine)
	if err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindTranslationFailed, string(d.Engine), "failed to translate question", err)
	}
	if strings.TrimSpace(query) == "" {
		return nil, gwerrors.New(gwerrors.KindTranslationFailed, string(d.Engine), "translator returned an empty query", nil)
	}
	s.log.Debugf("Translated question for %s into: %s", d.Engine, query)

	result, err := s.queries.ExecuteDescriptor(ctx, d, query)
	if err != nil {
		return nil, err
	}
	return &AskResult{Query: query, Result: result}, nil
}

func (s *AskService) target(req AskRequest) (domain.DataSourceDescriptor, error) {
	switch {
	case req.Descriptor != nil:
		return *req.Descriptor, nil
	case req.DataSource != "":
		return s.queries.Lookup(req.DataSource)
	default:
		return domain.DataSourceDescriptor{}, gwerrors.New(gwerrors.KindInvalidInput, "", "a data source name or descriptor is required", nil)
	}
}
