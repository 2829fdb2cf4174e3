package formatter

import (
	"fmt"
	"strconv"
	"time"

	"github.com/desertthunder/tdx/internal/matcher"
	"github.com/desertthunder/tdx/internal/models"
	"github.com/desertthunder/tdx/internal/shared"
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Alignment of a table column.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignRight
)

// RenderTable draws a rounded table. Rows shorter than headers are padded.
func RenderTable(headers []string, rows [][]string, aligns []Alignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == AlignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// RenderKeyValues draws a two-column summary table.
func RenderKeyValues(pairs [][2]string) string {
	rows := make([][]string, 0, len(pairs))
	for _, p := range pairs {
		rows = append(rows, []string{p[0], p[1]})
	}
	return RenderTable([]string{"", "Value"}, rows, []Alignment{AlignLeft, AlignRight})
}

// RenderFiles lists export files with human-readable sizes and ages.
func RenderFiles(files []FileInfo, now time.Time) string {
	rows := make([][]string, 0, len(files))
	for i, f := range files {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			f.Name,
			f.Kind.String(),
			humanize.Bytes(uint64(max(f.Size, 0))),
			humanize.RelTime(f.Modified, now, "ago", "from now"),
		})
	}
	return RenderTable(
		[]string{"#", "File", "Kind", "Size", "Modified"},
		rows,
		[]Alignment{AlignRight, AlignLeft, AlignLeft, AlignRight, AlignLeft},
	)
}

// RenderPlaylists lists playlist metadata.
func RenderPlaylists(playlists []models.Playlist) string {
	rows := make([][]string, 0, len(playlists))
	for _, p := range playlists {
		rows = append(rows, []string{p.Name, p.Owner, humanize.Comma(int64(p.TrackCount)), shared.VisibilityString(p.Public), p.ID})
	}
	return RenderTable(
		[]string{"Name", "Owner", "Tracks", "Visibility", "ID"},
		rows,
		[]Alignment{AlignLeft, AlignLeft, AlignRight},
	)
}

// RenderTracks lists search results or export rows.
func RenderTracks(tracks []models.Track) string {
	rows := make([][]string, 0, len(tracks))
	for _, t := range tracks {
		rows = append(rows, []string{t.ID, t.Title, t.Artist, t.Album, shared.FormatDuration(t.DurationMS)})
	}
	return RenderTable(
		[]string{"ID", "Title", "Artist", "Album", "Length"},
		rows,
		[]Alignment{AlignLeft, AlignLeft, AlignLeft, AlignLeft, AlignRight},
	)
}

// RenderAttempts lists the queries issued for one record.
func RenderAttempts(attempts []matcher.Attempt) string {
	rows := make([][]string, 0, len(attempts))
	for i, a := range attempts {
		status := "ok"
		if a.Err != nil {
			status = a.Err.Error()
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			a.Query,
			strconv.Itoa(a.Candidates),
			fmt.Sprintf("%.2f", a.BestScore),
			status,
		})
	}
	return RenderTable(
		[]string{"#", "Query", "Candidates", "Best", "Status"},
		rows,
		[]Alignment{AlignRight, AlignLeft, AlignRight, AlignRight, AlignLeft},
	)
}

// RenderMatches lists cached matches.
func RenderMatches(matches []*models.Match, now time.Time) string {
	rows := make([][]string, 0, len(matches))
	for _, m := range matches {
		rows = append(rows, []string{
			m.SourceTitle(),
			m.SourceArtist(),
			m.DestID(),
			fmt.Sprintf("%.2f", m.Score()),
			humanize.RelTime(m.CreatedAt(), now, "ago", "from now"),
		})
	}
	return RenderTable(
		[]string{"Title", "Artist", "TIDAL ID", "Score", "Cached"},
		rows,
		[]Alignment{AlignLeft, AlignLeft, AlignLeft, AlignRight, AlignLeft},
	)
}

// RenderImportRuns lists import history.
func RenderImportRuns(runs []*models.ImportRun, now time.Time) string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		started := "-"
		if t := r.StartedAt(); t != nil {
			started = humanize.RelTime(*t, now, "ago", "from now")
		}
		rows = append(rows, []string{
			started,
			r.SourceFile(),
			r.Kind(),
			r.Status(),
			humanize.Comma(int64(r.Imported())),
			humanize.Comma(int64(r.Failed())),
			fmt.Sprintf("%.1f%%", r.SuccessRate()),
		})
	}
	return RenderTable(
		[]string{"Started", "File", "Kind", "Status", "Imported", "Failed", "Success"},
		rows,
		[]Alignment{AlignLeft, AlignLeft, AlignLeft, AlignLeft, AlignRight, AlignRight, AlignRight},
	)
}
