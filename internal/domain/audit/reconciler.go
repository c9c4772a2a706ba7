package audit

import (
	"context"
	"time"
)

// RunReconciler llama a Reconcile cada interval hasta que ctx se cancele.
func (t *Trail) RunReconciler(ctx context.Context, interval time.Duration, batch int) {
	if t.queue == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		res, err := t.Reconcile(ctx, batch)
		if err != nil {
			t.log.Error("audit reconcile failed", map[string]any{"error": err.Error()})
			continue
		}
		if res.Applied+res.Requeued+res.Dropped+res.Malformed > 0 {
			t.log.Info("audit reconcile", map[string]any{
				"applied":   res.Applied,
				"requeued":  res.Requeued,
				"dropped":   res.Dropped,
				"malformed": res.Malformed,
				"remaining": res.Remaining,
			})
		}
	}
}
