// Package janitor runs periodic maintenance: pruning expired
// continuity sessions and compacting the store.
package janitor

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Pruner drops expired entries and reports how many were removed.
type Pruner interface {
	Prune() int
}

// Vacuumer reclaims storage space.
type Vacuumer interface {
	Vacuum(ctx context.Context) error
}

type Janitor struct {
	cron *cron.Cron
}

func New() *Janitor {
	return &Janitor{cron: cron.New()}
}

// SchedulePrune prunes hourly.
func (j *Janitor) SchedulePrune(p Pruner) error {
	_, err := j.cron.AddFunc("@hourly", func() {
		if removed := p.Prune(); removed > 0 {
			log.Printf("janitor: pruned %d expired continuity sessions", removed)
		}
	})
	return err
}

// ScheduleVacuum compacts the store daily.
func (j *Janitor) ScheduleVacuum(v Vacuumer) error {
	_, err := j.cron.AddFunc("@daily", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := v.Vacuum(ctx); err != nil {
			log.Printf("janitor: vacuum: %v", err)
		}
	})
	return err
}

func (j *Janitor) Start() {
	j.cron.Start()
}

// Stop waits for any running job to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}
