package analysis

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rohankatakam/codelineage/internal/models"
)

// Failure records a repository that produced no result
type Failure struct {
	Repository string
	Err        error
}

// BatchResult holds per-repository outcomes in input order
type BatchResult struct {
	Results  []*Result
	Failures []Failure
	Duration time.Duration
}

// Batch analyzes repositories concurrently, at most concurrency at a time.
// Repositories share no state; a failing repository is reported and the
// rest continue. Results keep the order of repos.
func (a *Analyzer) Batch(ctx context.Context, repos []*models.Repository, concurrency int) *BatchResult {
	start := time.Now()
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]*Result, len(repos))
	errs := make([]error, len(repos))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, repo := range repos {
		i, repo := i, repo
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			res, err := a.Analyze(gctx, repo)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	out := &BatchResult{}
	for i, repo := range repos {
		if errs[i] != nil {
			a.logger.WithFields(logrus.Fields{
				"repo":  repo.Name,
				"error": errs[i].Error(),
			}).Warn("Repository analysis failed")
			out.Failures = append(out.Failures, Failure{Repository: repo.Name, Err: errs[i]})
			continue
		}
		out.Results = append(out.Results, results[i])
	}
	out.Duration = time.Since(start)

	a.logger.WithFields(logrus.Fields{
		"repositories": len(repos),
		"succeeded":    len(out.Results),
		"failed":       len(out.Failures),
		"duration":     out.Duration.String(),
	}).Info("Batch analysis completed")
	return out
}
