package main

import (
	"sync"

	"github.com/desertthunder/tdx/internal/tasks"
	"github.com/schollz/progressbar/v3"
)

// startProgress returns a channel for engine progress updates and a stop function that
// waits until every update has been rendered.
//
// Terminals get a progress bar; other outputs get one log line per update.
func (r *Runner) startProgress(description string) (chan<- tasks.ProgressUpdate, func()) {
	updates := make(chan tasks.ProgressUpdate, 64)
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		if !r.interactive {
			for u := range updates {
				r.logger.Info(u.Message, "phase", u.Phase.String(), "step", u.Step, "total", u.Total)
			}
			return
		}

		bar := progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(r.output),
			progressbar.OptionSetDescription(description),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
		total := -1
		for u := range updates {
			if u.Total > 0 && u.Total != total {
				total = u.Total
				bar.ChangeMax(total)
			}
			bar.Describe(u.Message)
			if u.Total > 0 {
				_ = bar.Set(u.Step)
			}
		}
		_ = bar.Finish()
	}()

	var once sync.Once
	return updates, func() {
		once.Do(func() {
			close(updates)
			wg.Wait()
		})
	}
}
