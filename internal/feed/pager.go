package feed

import (
	"bytes"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jonboulle/clockwork"

	"github.com/emberwatch/alert-feed-service/internal/dispatch"
	"github.com/emberwatch/alert-feed-service/internal/domain"
	"github.com/emberwatch/alert-feed-service/internal/observability"
)

// Feed keys for the built-in upstream sources.
const (
	KeyPager = "cfa-pager"
	KeyVic   = "vic-incidents"
	KeyNsw   = "nsw-incidents"
)

// alertMarker is the literal that distinguishes dispatch alerts from admin
// traffic on the same capcodes.
const alertMarker = "@@ALERT"

// stopMarker appears in upstream operational notices asking aggregators to
// back off; such rows are never alerts.
const stopMarker = "STOP SCRAPING"

// incidentRe matches dispatch incident numbers: an F followed by nine
// digits. The F prefix is kept as part of the id.
var incidentRe = regexp.MustCompile(`F\d{9}`)

// pagerTimeLayout is the timestamp cell format, e.g. "14:30:00 2024-01-15".
const pagerTimeLayout = "15:04:05 2006-01-02"

// pagerZone is the fixed UTC+11 offset the upstream timestamps are quoted
// in. It is not DST-aware; winter timestamps drift an hour. Kept as-is for
// compatibility with the upstream convention.
var pagerZone = time.FixedZone("UTC+11", 11*60*60)

// PagerParser parses the pager-dispatch HTML table. Each table row holds a
// capcode cell, a timestamp cell, and a message cell in the dispatch
// grammar.
type PagerParser struct {
	clock   clockwork.Clock
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewPagerParser creates a pager parser. The clock supplies the fallback
// timestamp for rows whose timestamp cell doesn't parse.
func NewPagerParser(clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *PagerParser {
	return &PagerParser{clock: clock, metrics: metrics, logger: logger}
}

// Parse extracts alert records from a pager page. Rows sharing an incident
// number are collapsed to the first occurrence in payload order: several
// pager units get dispatched to one incident and each produces a row.
func (p *PagerParser) Parse(payload []byte) ([]domain.AlertRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("parse pager html: %w", err)
	}

	seen := make(map[string]bool)
	var records []domain.AlertRecord

	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}

		// The message cell is the last one and may contain nested markup;
		// take its inner HTML so the normalizer sees the raw fragment.
		rawMessage, htmlErr := cells.Last().Html()
		if htmlErr != nil {
			rawMessage = cells.Last().Text()
		}
		message := dispatch.StripMarkup(rawMessage)

		if !strings.Contains(message, alertMarker) {
			return
		}
		if strings.Contains(message, stopMarker) {
			return
		}

		incidentID := incidentRe.FindString(message)
		if incidentID != "" {
			if seen[incidentID] {
				return
			}
			seen[incidentID] = true
		}

		records = append(records, domain.AlertRecord{
			Message:    message,
			Timestamp:  p.parseTimestamp(row.Find("td.timestamp").Text()),
			Location:   dispatch.ExtractLocation(message),
			IncidentID: incidentID,
			Source:     domain.SourcePager,
		})
	})

	p.metrics.RecordsParsed.WithLabelValues(KeyPager).Add(float64(len(records)))
	return records, nil
}

// parseTimestamp reads the timestamp cell in the fixed UTC+11 convention,
// falling back to the current time when the cell is missing or garbled.
func (p *PagerParser) parseTimestamp(cell string) time.Time {
	cell = strings.TrimSpace(cell)
	ts, err := time.ParseInLocation(pagerTimeLayout, cell, pagerZone)
	if err != nil {
		p.metrics.ParseErrors.WithLabelValues(KeyPager).Inc()
		p.logger.Debug("unparseable pager timestamp", "cell", cell)
		return p.clock.Now()
	}
	return ts
}
