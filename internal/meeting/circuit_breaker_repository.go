package meeting

import (
	"context"
	"fmt"

	"github.com/sony/gobreaker"

	"planguard/internal/config"
	"planguard/pkg/circuitbreaker"
)

// CircuitBreakerRepository shields callers from an unhealthy evidence
// store. Evidence lives on the case-management side of the schema, so its
// reads get the same protection a remote collaborator would.
type CircuitBreakerRepository struct {
	Repository
	cb *circuitbreaker.Wrapper
}

func NewCircuitBreakerRepository(repo Repository, cfg config.CircuitBreakerConfig) *CircuitBreakerRepository {
	if !cfg.Enabled {
		return &CircuitBreakerRepository{
			Repository: repo,
			cb:         nil,
		}
	}

	cbConfig := circuitbreaker.DefaultConfig("meeting-evidence")
	if cfg.MaxRequests > 0 {
		cbConfig.MaxRequests = cfg.MaxRequests
	}
	if cfg.Interval > 0 {
		cbConfig.Interval = cfg.Interval
	}
	if cfg.Timeout > 0 {
		cbConfig.Timeout = cfg.Timeout
	}
	if cfg.FailureRatio > 0 && cfg.MinRequests > 0 {
		cbConfig.ReadyToTrip = func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureRatio
		}
	}

	return &CircuitBreakerRepository{
		Repository: repo,
		cb:         circuitbreaker.NewWrapper(cbConfig),
	}
}

func (r *CircuitBreakerRepository) ListEvidence(ctx context.Context, meetingID string) ([]Evidence, error) {
	if r.cb == nil {
		return r.Repository.ListEvidence(ctx, meetingID)
	}

	result, err := r.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return r.Repository.ListEvidence(ctx, meetingID)
	})

	r.cb.RecordRequest(err == nil)

	if err != nil {
		if r.cb.IsOpen() {
			return nil, fmt.Errorf("circuit breaker is open for meeting-evidence: %w", err)
		}
		return nil, err
	}

	evidence, ok := result.([]Evidence)
	if !ok {
		return nil, fmt.Errorf("repository returned invalid result type")
	}

	return evidence, nil
}

func (r *CircuitBreakerRepository) GetMeeting(ctx context.Context, id string) (*Meeting, error) {
	if r.cb == nil {
		return r.Repository.GetMeeting(ctx, id)
	}

	result, err := r.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return r.Repository.GetMeeting(ctx, id)
	})

	r.cb.RecordRequest(err == nil)

	if err != nil {
		if r.cb.IsOpen() {
			return nil, fmt.Errorf("circuit breaker is open for meeting-evidence: %w", err)
		}
		return nil, err
	}

	m, ok := result.(*Meeting)
	if !ok {
		return nil, fmt.Errorf("repository returned invalid result type")
	}

	return m, nil
}

func (r *CircuitBreakerRepository) State() string {
	if r.cb == nil {
		return "disabled"
	}
	return r.cb.State().String()
}
