package matcher

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Outcome is the match result for the record at Index of a batch.
type Outcome struct {
	Index  int
	Record SourceRecord
	Result *MatchResult
	Err    error
}

// Accepted reports whether the record was matched.
func (o Outcome) Accepted() bool {
	return o.Err == nil && o.Result != nil
}

// MatchAll matches records on up to Options.Workers goroutines.
//
// Outcomes are returned in input order regardless of completion order. progress, when
// non-nil, is called after each record with the number completed so far and may be
// called from several goroutines at once. Records not started before ctx is cancelled
// carry ctx.Err().
func (m *Matcher) MatchAll(ctx context.Context, records []SourceRecord, progress func(done, total int)) []Outcome {
	outcomes := make([]Outcome, len(records))

	var g errgroup.Group
	g.SetLimit(m.workers)

	var done atomic.Int64
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			outcomes[i] = Outcome{Index: i, Record: rec, Err: err}
			continue
		}

		g.Go(func() error {
			res, err := m.Match(ctx, rec)
			outcomes[i] = Outcome{Index: i, Record: rec, Result: res, Err: err}
			if progress != nil {
				progress(int(done.Add(1)), len(records))
			}
			return nil
		})
	}

	_ = g.Wait()
	return outcomes
}
