package notifications

import (
	"context"

	"github.com/Lodewijkheemskerk/BluePrint/internal/domain"
)

// Notifier defines the interface for setup alert delivery.
type Notifier interface {
	// NotifySetup announces a newly detected setup. Best effort.
	NotifySetup(ctx context.Context, setup *domain.Setup, strategy *domain.Strategy)
}
