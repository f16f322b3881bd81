package domain

import "time"

// Source identifies which upstream feed an alert record came from. The
// source determines both the parsing dialect and the display semantics:
// pager dispatches carry no warning level, RSS incidents do.
type Source string

const (
	SourcePager  Source = "pager"
	SourceVicRSS Source = "vic-rss"
	SourceNswRSS Source = "nsw-rss"
)

// WarningLevel is the severity classification attached to RSS-sourced
// incident records. Pager records always have WarningNone.
type WarningLevel string

const (
	WarningNone        WarningLevel = ""
	WarningAdvice      WarningLevel = "advice"
	WarningWatchAndAct WarningLevel = "watch-and-act"
	WarningEmergency   WarningLevel = "emergency"
)

// Geo is a WGS-84 longitude/latitude coordinate pair.
type Geo struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// AlertRecord is one emergency dispatch or incident after parsing.
//
// Geo is nil until enrichment resolves the location; once set it is never
// overwritten by a lower-confidence source. IncidentID, when present, is
// unique within a parse batch (duplicate dispatches to multiple units are
// dropped, first occurrence wins).
type AlertRecord struct {
	Message      string       `json:"message"`
	Timestamp    time.Time    `json:"timestamp"`
	Location     string       `json:"location,omitempty"`
	Geo          *Geo         `json:"geo,omitempty"`
	PlaceName    string       `json:"place_name,omitempty"`
	IncidentID   string       `json:"incident_id,omitempty"`
	Source       Source       `json:"source"`
	WarningLevel WarningLevel `json:"warning_level,omitempty"`
}

// FeedSnapshot is one feed's latest enriched record set as persisted in the
// store under the "latest" row of the feed's namespace.
type FeedSnapshot struct {
	FeedKey  string        `json:"feed_key"`
	Records  []AlertRecord `json:"records"`
	CachedAt time.Time     `json:"cached_at"`
}

// FetchTracker records when a feed was last fetched successfully. Stored
// separately from the snapshot so a stale-fallback serve never advances it.
type FetchTracker struct {
	FeedKey     string    `json:"feed_key"`
	LastFetchAt time.Time `json:"last_fetch_at"`
}
