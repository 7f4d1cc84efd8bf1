package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sourcechat/internal/grounding"
	"github.com/JakeFAU/sourcechat/internal/logging"
)

// ErrCompletion marks a failed model call.
var ErrCompletion = errors.New("completion failed")

// State is a stage of request handling.
type State int

const (
	Validating State = iota
	Aggregating
	Completing
	Responding
	Failed
)

func (s State) String() string {
	switch s {
	case Validating:
		return "validating"
	case Aggregating:
		return "aggregating"
	case Completing:
		return "completing"
	case Responding:
		return "responding"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Aggregator extracts every URL, returning results in input order.
type Aggregator interface {
	Aggregate(ctx context.Context, urls []string) []grounding.SourceResult
}

// Completer answers a question given a grounding context.
type Completer interface {
	Complete(ctx context.Context, question, groundingContext string) (string, error)
}

// Response is the success payload.
type Response struct {
	Success    bool                 `json:"success"`
	AIResponse string               `json:"aiResponse"`
	Citations  []grounding.Citation `json:"citations"`
}

// Service runs one request through every stage.
type Service struct {
	aggregator Aggregator
	completer  Completer
	logger     *zap.Logger
}

// NewService wires the collaborators.
func NewService(aggregator Aggregator, completer Completer, logger *zap.Logger) (*Service, error) {
	if aggregator == nil {
		return nil, errors.New("aggregator is required")
	}
	if completer == nil {
		return nil, errors.New("completer is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{aggregator: aggregator, completer: completer, logger: logger}, nil
}

// Answer validates req, extracts its sources, and asks the model. A
// *ValidationError means nothing was fetched. An error wrapping
// ErrCompletion means the sources were fetched but no answer was produced.
func (s *Service) Answer(ctx context.Context, req Request) (Response, error) {
	logger := logging.FromContext(ctx, s.logger)
	start := time.Now()
	state := Validating
	fail := func(err error) (Response, error) {
		logger.Info("chat request failed",
			zap.Stringer("stage", state),
			zap.Stringer("state", Failed),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return Response{}, err
	}

	if err := Validate(req); err != nil {
		return fail(err)
	}

	var results []grounding.SourceResult
	if len(req.URLs) > 0 {
		state = Aggregating
		results = s.aggregator.Aggregate(ctx, req.URLs)
	}

	state = Completing
	answer, err := s.completer.Complete(ctx, req.Question, grounding.RenderContext(results))
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrCompletion, err))
	}

	state = Responding
	logger.Info("chat request answered",
		zap.Stringer("state", state),
		zap.Int("sources", len(results)),
		zap.Duration("duration", time.Since(start)),
	)
	return Response{
		Success:    true,
		AIResponse: answer,
		Citations:  grounding.Citations(results),
	}, nil
}
