// Package jobs defines the scheduled workflows: the morning ranking run and
// the weekend retraining run.
package jobs

import (
	"context"

	"github.com/tenchu0314/kabu-predictor/internal/pipeline"
)

// DailyRanking refreshes quotes and produces the day's ranking report before
// the market opens.
type DailyRanking struct {
	pipeline *pipeline.Pipeline
	schedule string
}

func NewDailyRanking(p *pipeline.Pipeline, schedule string) *DailyRanking {
	return &DailyRanking{pipeline: p, schedule: schedule}
}

func (j *DailyRanking) Name() string     { return "daily-ranking" }
func (j *DailyRanking) Schedule() string { return j.schedule }

func (j *DailyRanking) Run(ctx context.Context) error {
	return j.pipeline.RunDaily(ctx)
}

// WeeklyTraining retrains every horizon's model on fresh data over the
// weekend.
type WeeklyTraining struct {
	pipeline *pipeline.Pipeline
	schedule string
}

func NewWeeklyTraining(p *pipeline.Pipeline, schedule string) *WeeklyTraining {
	return &WeeklyTraining{pipeline: p, schedule: schedule}
}

func (j *WeeklyTraining) Name() string     { return "weekly-training" }
func (j *WeeklyTraining) Schedule() string { return j.schedule }

func (j *WeeklyTraining) Run(ctx context.Context) error {
	return j.pipeline.RunWeekly(ctx)
}
