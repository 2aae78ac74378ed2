package weather

import (
	"context"
	"errors"
	"log"
	"time"
)

// ErrUnavailable is returned when no provider produced a reading in time.
var ErrUnavailable = errors.New("weather unavailable")

// Service fetches current conditions for the configured location from all
// providers and aggregates whatever succeeds.
type Service struct {
	providers []Provider
	location  Location
	timeout   time.Duration
}

// NewService creates a new Service. A non-positive timeout defaults to 5s.
func NewService(loc Location, providers []Provider, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Service{
		providers: providers,
		location:  loc,
		timeout:   timeout,
	}
}

// Location returns the location the service reports on.
func (s *Service) Location() Location {
	return s.location
}

// Current fetches from every provider concurrently and aggregates whatever
// arrived before the service timeout. Providers still running at the deadline
// are abandoned, not awaited.
func (s *Service) Current(ctx context.Context) (Conditions, error) {
	if len(s.providers) == 0 {
		return Conditions{}, ErrUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type result struct {
		index   int
		reading ProviderReading
		err     error
	}

	// Buffered so abandoned providers can still deliver and exit.
	results := make(chan result, len(s.providers))
	for i, p := range s.providers {
		go func() {
			r, err := p.Fetch(ctx, s.location)
			results <- result{index: i, reading: r, err: err}
		}()
	}

	readings := make([]*ProviderReading, len(s.providers))
	pending := len(s.providers)

collect:
	for pending > 0 {
		select {
		case res := <-results:
			pending--
			if res.err != nil {
				// Log and continue; we want partial success when possible.
				log.Printf("ERROR: provider %s fetch failed for %s: %v", s.providers[res.index].Name(), s.location.Key(), res.err)
				continue
			}
			readings[res.index] = &res.reading
		case <-ctx.Done():
			log.Printf("ERROR: weather lookup for %s timed out with %d provider(s) pending", s.location.Key(), pending)
			break collect
		}
	}

	// Keep provider order so aggregation ties resolve deterministically.
	ok := make([]ProviderReading, 0, len(readings))
	for _, r := range readings {
		if r != nil {
			ok = append(ok, *r)
		}
	}

	if len(ok) == 0 {
		if ctx.Err() != nil {
			return Conditions{}, errors.Join(ErrUnavailable, ctx.Err())
		}
		return Conditions{}, ErrUnavailable
	}

	return AggregateReadings(s.location, ok), nil
}
