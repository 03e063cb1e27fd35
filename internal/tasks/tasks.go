// package tasks implements the batch jobs of the pipeline: the recurring
// ingestion run over all enrolled users, the weekly aggregation, and the
// report delivery run.
//
// Both runs are single sequential passes over the user set, invoked
// externally (cron or CLI). Failures are scoped: a bad item never aborts
// its user, and a failed user never aborts the batch.
package tasks

import (
	"time"
)

// UserStatus is the terminal state of one user within an ingestion run.
type UserStatus string

const (
	// StatusOK means the user's window was fetched and upserts committed.
	StatusOK UserStatus = "ok"
	// StatusNoPlays means the fetch succeeded but the window was empty.
	StatusNoPlays UserStatus = "no_plays"
	// StatusCredentialExpired means the refresh token was rejected; the
	// user must re-run the authorization flow out-of-band. Never retried.
	StatusCredentialExpired UserStatus = "credential_expired"
	// StatusFetchFailed means a transient upstream failure exhausted the
	// retry budget; the next scheduled run will try again.
	StatusFetchFailed UserStatus = "fetch_failed"
	// StatusFailed means the user's transaction could not be committed.
	StatusFailed UserStatus = "failed"
)

// UserResult reports what happened to a single user during a run.
type UserResult struct {
	UserID        string     `json:"user_id"`
	SpotifyUserID string     `json:"spotify_user_id"`
	Status        UserStatus `json:"status"`
	Reason        string     `json:"reason,omitempty"`
	ItemsFetched  int        `json:"items_fetched"`
	ItemsUpserted int        `json:"items_upserted"`
	PlaysRecorded int        `json:"plays_recorded"`
	ItemsSkipped  int        `json:"items_skipped"`
}

// IngestionReport summarizes a full ingestion run.
type IngestionReport struct {
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Processed  int          `json:"processed"`
	Skipped    int          `json:"skipped"`
	Failed     int          `json:"failed"`
	Results    []UserResult `json:"results"`
}

// record folds one user result into the report tallies.
func (r *IngestionReport) record(result UserResult) {
	r.Results = append(r.Results, result)
	switch result.Status {
	case StatusOK, StatusNoPlays:
		r.Processed++
	case StatusCredentialExpired, StatusFetchFailed:
		r.Skipped++
	case StatusFailed:
		r.Failed++
	}
}

// WeekRange returns the half-open reporting window [Monday 00:00 UTC,
// next Monday 00:00 UTC) containing t. A play landing exactly on the end
// boundary belongs to the next window.
func WeekRange(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7 // Monday = 0
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -offset)
	return start, start.AddDate(0, 0, 7)
}

// ISOWeekStart returns the Monday starting the given ISO week.
func ISOWeekStart(year, week int) time.Time {
	// Jan 4 is always in ISO week 1.
	jan4 := time.Date(year, 1, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7
	week1 := jan4.AddDate(0, 0, -offset)
	return week1.AddDate(0, 0, (week-1)*7)
}
