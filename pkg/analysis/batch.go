package analysis

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Job is one unit of a batch.
type Job struct {
	Basename string
	Source   Source
}

// JobResult reports how one job ended.
type JobResult struct {
	Job      Job
	Result   *Result
	Err      error
	Duration time.Duration
}

// RunBatch analyses and saves every job with up to workers units in flight.
// A failing unit (missing input, processing error or panic) is logged and
// recorded in its JobResult; the other units still run. Results are returned
// in job order.
func (a *Analyzer) RunBatch(jobs []Job, workers int) []JobResult {
	if workers < 1 {
		workers = 1
	}
	log := a.logger()
	out := make([]JobResult, len(jobs))

	type task struct {
		idx int
		job Job
	}
	type completion struct {
		idx int
		res JobResult
	}
	tasks := make(chan task)
	done := make(chan completion)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				done <- completion{t.idx, a.runJob(t.job)}
			}
		}()
	}
	go func() {
		for i, j := range jobs {
			tasks <- task{i, j}
		}
		close(tasks)
		wg.Wait()
		close(done)
	}()

	completed := 0
	for d := range done {
		out[d.idx] = d.res
		completed++
		entry := log.WithFields(logrus.Fields{
			"unit":     d.res.Job.Basename,
			"current":  completed,
			"total":    len(jobs),
			"duration": d.res.Duration.Round(time.Millisecond),
		})
		if d.res.Err != nil {
			entry.WithError(d.res.Err).Error("Unit failed")
		} else {
			entry.Info("Unit done")
		}
	}
	return out
}

// runJob processes and saves one job, turning a panic into an error.
func (a *Analyzer) runJob(job Job) (res JobResult) {
	res.Job = job
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("panic while analysing %s: %v\n%s", job.Basename, r, debug.Stack())
		}
		res.Duration = time.Since(start)
	}()

	log := a.logger().WithField("unit", job.Basename)
	unitAnalyzer := *a
	unitAnalyzer.Log = log

	unit, err := SetSource(job.Source, a.Loader, log)
	if err != nil {
		res.Err = err
		return res
	}
	result, err := unitAnalyzer.Process(unit, a.Options.WallMargin, a.Options.PDMargin)
	if err != nil {
		res.Err = err
		return res
	}
	if err := unitAnalyzer.Save(result, a.Options.OutputDir, job.Basename, a.Options.LUT); err != nil {
		res.Err = err
		return res
	}
	res.Result = result
	return res
}
