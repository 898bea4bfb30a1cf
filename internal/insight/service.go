package insight

import (
	"context"
	"fmt"
	"log"

	"github.com/mohammad-safakhou/aide/internal/store"
	"github.com/mohammad-safakhou/aide/provider"
)

// Service is the public entry point of the insight subsystem. It accepts a
// user-input turn, fans the pipeline out to a detached task and returns
// promptly; the only user-visible failure mode is the absence of an
// insight_user_data event.
type Service struct {
	store     store.DocStore
	extractor *Extractor
	processor *Processor
	notifier  *Notifier
	logger    *log.Logger
}

// NewService wires the full extraction pipeline.
func NewService(st store.DocStore, llm provider.Provider, pub Publisher, logger *log.Logger) *Service {
	extractor := NewExtractor(llm, logger)
	resolver := NewResolver(st, logger)
	processor := NewProcessor(st, resolver, logger)
	notifier := NewNotifier(pub, logger)
	return &Service{
		store:     st,
		extractor: extractor,
		processor: processor,
		notifier:  notifier,
		logger:    logger,
	}
}

// HandleUserInput schedules the extractor → processor → notifier pipeline
// for one conversation turn and returns immediately. Errors inside the
// pipeline are logged, never surfaced.
func (s *Service) HandleUserInput(uid string, conv Conversation) {
	Detach(s.logger, "insight", func(ctx context.Context) error {
		return s.runTurn(ctx, uid, conv)
	})
}

// runTurn is one full pipeline pass. Extraction failures drop the turn with
// no partial writes; later failures tolerate partial state because every
// turn re-reads from the store.
func (s *Service) runTurn(ctx context.Context, uid string, conv Conversation) error {
	doc, err := s.store.Find(ctx, uid, []string{"profile_data"})
	if err != nil {
		return fmt.Errorf("read profile: %w", err)
	}

	result, err := s.extractor.Extract(ctx, conv, asMap(doc["profile_data"]))
	if err != nil {
		return fmt.Errorf("extract turn for %s: %w", uid, err)
	}

	for _, m := range conv {
		if err := s.store.Push(ctx, uid, "messages", m); err != nil {
			s.logger.Printf("append message for %s: %v", uid, err)
		}
	}

	proj, err := s.processor.ProcessTurn(ctx, uid, result)
	if err != nil {
		return fmt.Errorf("process turn for %s: %w", uid, err)
	}

	if err := s.notifier.Notify(ctx, uid, proj); err != nil {
		return fmt.Errorf("notify %s: %w", uid, err)
	}
	return nil
}

// CurrentProjection returns the present insight state for uid, for read
// endpoints.
func (s *Service) CurrentProjection(ctx context.Context, uid string) (Projection, error) {
	return s.processor.projection(ctx, uid)
}
