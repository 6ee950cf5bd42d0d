package backtest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"apex/internal/analysis/indicator"
	"apex/internal/logger"
	"apex/internal/market"
)

const (
	JobStatusPending = "pending"
	JobStatusRunning = "running"
	JobStatusDone    = "done"
	JobStatusFailed  = "failed"
)

// Candidate is one engine configuration to evaluate in a sweep.
type Candidate struct {
	Name     string             `json:"name"`
	Settings indicator.Settings `json:"settings"`
}

// Ranked is a candidate with its evaluated outcome and objective value.
type Ranked struct {
	Candidate Candidate `json:"candidate"`
	Metrics   Metrics   `json:"metrics"`
	Objective float64   `json:"objective"`
}

// SweepJob tracks one sweep's progress in memory.
type SweepJob struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Symbol    string    `json:"symbol"`
	Interval  string    `json:"interval"`
	Total     int       `json:"total"`
	Completed int       `json:"completed"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Message   string    `json:"message"`
	Ranking   []Ranked  `json:"ranking,omitempty"`
}

func (j *SweepJob) copy() SweepJob {
	if j == nil {
		return SweepJob{}
	}
	out := *j
	out.Ranking = append([]Ranked{}, j.Ranking...)
	return out
}

// Sweeper evaluates candidate configurations against a bar history, one
// independent engine per candidate, and tracks jobs by id.
type Sweeper struct {
	workers int

	mu   sync.Mutex
	jobs map[string]*SweepJob
}

func NewSweeper(workers int) *Sweeper {
	if workers <= 0 {
		workers = 4
	}
	return &Sweeper{workers: workers, jobs: make(map[string]*SweepJob)}
}

// Start launches a sweep asynchronously and returns its job id.
func (s *Sweeper) Start(ctx context.Context, symbol, interval string, bars []market.Bar, sim SimConfig, candidates []Candidate) (string, error) {
	if len(candidates) == 0 {
		return "", fmt.Errorf("no candidates")
	}
	if err := market.ValidateSeries(bars); err != nil {
		return "", fmt.Errorf("sweep input: %w", err)
	}
	job := &SweepJob{
		ID:        uuid.NewString(),
		Status:    JobStatusPending,
		Symbol:    symbol,
		Interval:  interval,
		Total:     len(candidates),
		StartedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	go s.run(ctx, job.ID, bars, sim, candidates)
	return job.ID, nil
}

// Run evaluates candidates synchronously and returns the ranking, best
// first. Used by the CLI; Start wraps it for job-tracked HTTP consumers.
func (s *Sweeper) Run(ctx context.Context, bars []market.Bar, sim SimConfig, candidates []Candidate) ([]Ranked, error) {
	ranked := make([]Ranked, len(candidates))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, cand := range candidates {
		i, cand := i, cand
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			outcome, err := Simulate(cand.Settings, sim, bars)
			if err != nil {
				return fmt.Errorf("candidate %s: %w", cand.Name, err)
			}
			ranked[i] = Ranked{
				Candidate: cand,
				Metrics:   outcome.Metrics,
				Objective: Objective(outcome.Metrics),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.SliceStable(ranked, func(a, b int) bool { return ranked[a].Objective > ranked[b].Objective })
	return ranked, nil
}

func (s *Sweeper) run(ctx context.Context, jobID string, bars []market.Bar, sim SimConfig, candidates []Candidate) {
	s.update(jobID, func(j *SweepJob) { j.Status = JobStatusRunning })

	ranked := make([]Ranked, len(candidates))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, cand := range candidates {
		i, cand := i, cand
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			outcome, err := Simulate(cand.Settings, sim, bars)
			if err != nil {
				return fmt.Errorf("candidate %s: %w", cand.Name, err)
			}
			ranked[i] = Ranked{
				Candidate: cand,
				Metrics:   outcome.Metrics,
				Objective: Objective(outcome.Metrics),
			}
			s.update(jobID, func(j *SweepJob) { j.Completed++ })
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Errorf("sweep %s failed: %v", jobID, err)
		s.update(jobID, func(j *SweepJob) {
			j.Status = JobStatusFailed
			j.Message = err.Error()
		})
		return
	}
	sort.SliceStable(ranked, func(a, b int) bool { return ranked[a].Objective > ranked[b].Objective })
	s.update(jobID, func(j *SweepJob) {
		j.Status = JobStatusDone
		j.Ranking = ranked
	})
	logger.Infof("sweep %s done: %d candidates, best objective %.3f", jobID, len(ranked), ranked[0].Objective)
}

func (s *Sweeper) update(jobID string, fn func(*SweepJob)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[jobID]; ok {
		fn(j)
		j.UpdatedAt = time.Now()
	}
}

// Job returns a copy of the tracked job, false when unknown.
func (s *Sweeper) Job(id string) (SweepJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	return j.copy(), ok
}

// Jobs lists all tracked jobs, newest first.
func (s *Sweeper) Jobs() []SweepJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SweepJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.copy())
	}
	sort.Slice(out, func(a, b int) bool { return out[a].StartedAt.After(out[b].StartedAt) })
	return out
}

// Objective ranks a metrics set: profit factor plus a win-rate bonus, less a
// drawdown penalty scaled by total profit. Zero-trade outcomes rank last.
func Objective(m Metrics) float64 {
	if m.TotalTrades == 0 {
		return -1
	}
	obj := m.ProfitFactor + m.WinRate/100
	if m.TotalPnL > 0 && m.MaxDrawdown > 0 {
		obj -= m.MaxDrawdown / m.TotalPnL
	} else if m.TotalPnL <= 0 {
		obj -= 1
	}
	return obj
}
