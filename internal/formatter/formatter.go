// package formatter renders weekly summaries into distributable
// artifacts: the HTML report email, plus CSV, Markdown, and plain-text
// exports for the CLI.
package formatter

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strconv"

	"github.com/desertthunder/rewind/internal/models"
)

//go:embed templates/weekly_report.html
var reportTemplate string

type reportData struct {
	DisplayName string
	Year        int
	Week        int
	WeekOf      string
	TopTracks   []models.TrackCount
	TopArtists  []models.ArtistCount
	AllTracks   []models.TrackCount
	AllArtists  []models.ArtistCount
	HasTracks   bool
	HasArtists  bool
}

// RenderHTML renders the weekly report email for a summary. topN bounds
// the highlighted leaderboards; the full ranked lists follow below.
func RenderHTML(summary *models.WeeklySummary, topN int) (string, error) {
	if topN <= 0 {
		topN = 5
	}

	tmpl, err := template.New("weekly_report").Funcs(template.FuncMap{
		"trackURL":  models.TrackURL,
		"artistURL": models.ArtistURL,
		"rank":      func(i int) int { return i + 1 },
	}).Parse(reportTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse report template: %w", err)
	}

	year, week := summary.WindowStart.ISOWeek()
	data := reportData{
		DisplayName: summary.DisplayName,
		Year:        year,
		Week:        week,
		WeekOf:      summary.WindowStart.Format("January 2, 2006"),
		TopTracks:   summary.TopTracks(topN),
		TopArtists:  summary.TopArtists(topN),
		AllTracks:   summary.Tracks,
		AllArtists:  summary.Artists,
		HasTracks:   summary.HasTracks(),
		HasArtists:  summary.HasArtists(),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}

	return buf.String(), nil
}

// WriteReportFile writes rendered HTML to outDir as
// weekly_report_{year}_w{week}.html and returns the path.
func WriteReportFile(html string, outDir string, year, week int) (string, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(outDir, fmt.Sprintf("weekly_report_%d_w%d.html", year, week))
	if err := os.WriteFile(path, []byte(html), 0644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}

	return path, nil
}

// ExportToCSV converts a summary's ranked track list to CSV with columns:
// Rank, Track, Artist, Plays
func ExportToCSV(summary *models.WeeklySummary) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Rank", "Track", "Artist", "Plays"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, tc := range summary.Tracks {
		record := []string{
			strconv.Itoa(i + 1),
			tc.Name,
			tc.ArtistName,
			strconv.Itoa(tc.Count),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a summary to a Markdown digest with top-N
// track and artist tables.
func ExportToMarkdown(summary *models.WeeklySummary, topN int) []byte {
	var buf bytes.Buffer

	year, week := summary.WindowStart.ISOWeek()
	fmt.Fprintf(&buf, "# Weekly Report: %s\n\n", summary.DisplayName)
	fmt.Fprintf(&buf, "Week %d of %d (week of %s)\n\n", week, year, summary.WindowStart.Format("2006-01-02"))

	if !summary.HasTracks() {
		buf.WriteString("No plays recorded this week.\n")
		return buf.Bytes()
	}

	buf.WriteString("## Top Tracks\n\n")
	buf.WriteString("| # | Track | Artist | Plays |\n")
	buf.WriteString("|---|-------|--------|-------|\n")
	for i, tc := range summary.TopTracks(topN) {
		fmt.Fprintf(&buf, "| %d | %s | %s | %d |\n", i+1, tc.Name, tc.ArtistName, tc.Count)
	}

	buf.WriteString("\n## Top Artists\n\n")
	buf.WriteString("| # | Artist | Plays |\n")
	buf.WriteString("|---|--------|-------|\n")
	for i, ac := range summary.TopArtists(topN) {
		fmt.Fprintf(&buf, "| %d | %s | %d |\n", i+1, ac.Name, ac.Count)
	}

	return buf.Bytes()
}

// ExportToText converts a summary to an aligned plain-text listing of
// every ranked track.
func ExportToText(summary *models.WeeklySummary) []byte {
	var buf bytes.Buffer

	year, week := summary.WindowStart.ISOWeek()
	fmt.Fprintf(&buf, "Weekly Report: %s (%d week %d)\n\n", summary.DisplayName, year, week)

	if !summary.HasTracks() {
		buf.WriteString("No plays recorded this week.\n")
		return buf.Bytes()
	}

	for i, tc := range summary.Tracks {
		fmt.Fprintf(&buf, "%3d. %s - %s (%d plays)\n", i+1, tc.Name, tc.ArtistName, tc.Count)
	}

	if summary.HasArtists() {
		buf.WriteString("\nArtists:\n")
		for i, ac := range summary.Artists {
			fmt.Fprintf(&buf, "%3d. %s (%d plays)\n", i+1, ac.Name, ac.Count)
		}
	}

	return buf.Bytes()
}
