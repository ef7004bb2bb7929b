// Package classify wraps the pluggable message annotator behind a timeout
// guard. Classification is enrichment only: any failure or timeout degrades
// to unannotated delivery and is never a delivery gate.
package classify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/OumaCavin/Jeseci-Smart-Learning-Platform-sub012/internal/domain"
	"github.com/OumaCavin/Jeseci-Smart-Learning-Platform-sub012/internal/metrics"
)

// Annotator is the external content-analysis service. Implementations may
// block; the hook bounds every invocation with a timeout.
type Annotator interface {
	Annotate(ctx context.Context, msg *domain.Message) (map[string]string, error)
}

// AnnotatorFunc adapts a function to the Annotator interface.
type AnnotatorFunc func(ctx context.Context, msg *domain.Message) (map[string]string, error)

func (f AnnotatorFunc) Annotate(ctx context.Context, msg *domain.Message) (map[string]string, error) {
	return f(ctx, msg)
}

// Hook invokes the annotator under a bounded timeout.
type Hook struct {
	annotator Annotator
	timeout   time.Duration
}

func NewHook(annotator Annotator, timeout time.Duration) *Hook {
	return &Hook{annotator: annotator, timeout: timeout}
}

// Classify returns the annotated message, or the original message untouched
// when the annotator fails, times out, or is absent.
func (h *Hook) Classify(ctx context.Context, msg *domain.Message) *domain.Message {
	if h == nil || h.annotator == nil {
		return msg
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	annotations, err := h.annotator.Annotate(ctx, msg)
	if err != nil {
		cause := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			cause = "timeout"
		}
		metrics.ClassifierFailures.WithLabelValues(cause).Inc()
		slog.Debug("Classifier failed, delivering unannotated",
			"message_id", msg.ID,
			"cause", cause,
			"error", err,
		)
		return msg
	}
	if len(annotations) == 0 {
		return msg
	}

	return msg.WithAnnotations(annotations)
}
