package usecase

import (
	"context"

	"github.com/relaycrm/automation/domain"
)

// Publisher is the narrow bus surface usecases publish through.
type Publisher interface {
	Publish(ctx context.Context, eventType domain.EventType, input domain.EventInput) (*domain.Event, error)
}

// Subscriber registers callbacks for one organization's events, or for
// every organization when the scope is the bus's global scope. The
// returned function removes the subscription.
type Subscriber interface {
	Subscribe(organizationID string, callback func(*domain.Event)) func()
}

// JobScheduler is the narrow scheduling surface usecases enqueue through.
// Schedule reports whether the job was newly inserted; a duplicate id is
// not an error.
type JobScheduler interface {
	Schedule(ctx context.Context, job *domain.DelayedJob) (bool, error)
}
