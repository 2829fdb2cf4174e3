package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/tdx/internal/models"
	"golang.org/x/time/rate"
)

// Playlist fetch pool limits.
const (
	DefaultFetchWorkers = 4
	MaxFetchWorkers     = 10
	DefaultFetchRate    = 5.0
)

// PlaylistFetchResult holds the tracks of one playlist, or the error that prevented fetching them.
type PlaylistFetchResult struct {
	Playlist models.Playlist
	Tracks   []models.Track
	Err      error
}

type playlistFetchJob struct {
	index    int
	playlist models.Playlist
}

// fetchPlaylistTracks loads the tracks of every playlist on a bounded, rate limited worker pool.
//
// Results are returned in playlist order. Tracks are labeled with the playlist name and id.
func (e *Engine) fetchPlaylistTracks(ctx context.Context, prog chan<- ProgressUpdate, playlists []models.Playlist) []PlaylistFetchResult {
	workers := e.workers
	if workers <= 0 {
		workers = DefaultFetchWorkers
	}
	workers = min(workers, MaxFetchWorkers, max(len(playlists), 1))

	rps := e.rateLimit
	if rps <= 0 {
		rps = DefaultFetchRate
	}
	limiter := rate.NewLimiter(rate.Limit(rps), 1)

	results := make([]PlaylistFetchResult, len(playlists))
	for i, pl := range playlists {
		results[i] = PlaylistFetchResult{Playlist: pl}
	}

	jobs := make(chan playlistFetchJob)
	done := make(chan int, len(playlists))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go e.fetchWorker(ctx, &wg, limiter, jobs, results, done)
	}

	go func() {
		defer close(jobs)
		for i, pl := range playlists {
			select {
			case <-ctx.Done():
				for j := i; j < len(playlists); j++ {
					results[j].Err = ctx.Err()
				}
				return
			case jobs <- playlistFetchJob{index: i, playlist: pl}:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(done)
	}()

	completed := 0
	for i := range done {
		completed++
		res := results[i]
		if res.Err != nil {
			e.sendProgress(prog, playlistFailedUpdate(completed, len(playlists), res.Playlist, res.Err))
			continue
		}
		e.sendProgress(prog, playlistTracksUpdate(completed, len(playlists), res.Playlist, len(res.Tracks)))
	}

	return results
}

// fetchWorker exports playlists from the jobs channel. Each worker owns the result slots
// of the jobs it receives.
func (e *Engine) fetchWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	limiter *rate.Limiter,
	jobs <-chan playlistFetchJob,
	results []PlaylistFetchResult,
	done chan<- int,
) {
	defer wg.Done()

	for job := range jobs {
		res := &results[job.index]

		if err := limiter.Wait(ctx); err != nil {
			res.Err = err
			done <- job.index
			continue
		}

		tracks, err := e.source.PlaylistTracks(ctx, job.playlist.ID)
		if err != nil {
			res.Err = fmt.Errorf("failed to fetch playlist %q: %w", job.playlist.Name, err)
			e.logger.Warn("playlist fetch failed", "playlist", job.playlist.Name, "error", err)
			done <- job.index
			continue
		}

		for i := range tracks {
			tracks[i].Playlist = job.playlist.Name
			tracks[i].PlaylistID = job.playlist.ID
		}
		res.Tracks = tracks
		done <- job.index
	}
}
