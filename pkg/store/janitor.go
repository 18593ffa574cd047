package store

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Janitor runs the retention sweep on a cron schedule.
type Janitor struct {
	store *Store
	cron  *cron.Cron
}

// NewJanitor schedules Sweep on the given cron expression, for example
// "@every 1m".
func NewJanitor(s *Store, schedule string) (*Janitor, error) {
	c := cron.New()

	_, err := c.AddFunc(schedule, func() {
		evicted := s.Sweep(time.Now())
		if evicted > 0 {
			log.Info().Int("evicted", evicted).Msg("Retention sweep completed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	return &Janitor{store: s, cron: c}, nil
}

// Start begins running scheduled sweeps.
func (j *Janitor) Start() {
	j.cron.Start()
	log.Debug().Msg("Store janitor started")
}

// Stop halts scheduling and waits for an in-progress sweep to finish.
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
	log.Debug().Msg("Store janitor stopped")
}
