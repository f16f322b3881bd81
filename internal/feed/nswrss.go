package feed

import (
	"encoding/xml"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/emberwatch/alert-feed-service/internal/domain"
	"github.com/emberwatch/alert-feed-service/internal/observability"
)

// nswBreakRe splits description fields on the <br/> variants the feed
// emits: <br>, <br/>, <br />.
var nswBreakRe = regexp.MustCompile(`<br\s*/?>`)

type nswRSS struct {
	Channel struct {
		Items []nswItem `xml:"item"`
	} `xml:"channel"`
}

type nswItem struct {
	Title       string `xml:"title"`
	Category    string `xml:"category"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	GUID        string `xml:"guid"`
	Point       string `xml:"http://www.georss.org/georss point"`
}

// NswParser parses the NSW incidents RSS dialect: a georss point per item
// and "LABEL: value" description lines. Unlike the Victorian feed it states
// its own warning level in the category element.
type NswParser struct {
	clock   clockwork.Clock
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewNswParser creates a NSW RSS parser.
func NewNswParser(clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *NswParser {
	return &NswParser{clock: clock, metrics: metrics, logger: logger}
}

// Parse extracts alert records from the feed payload. Items whose georss
// point is absent or not two floats are dropped; everything else degrades
// field by field without aborting the batch.
func (p *NswParser) Parse(payload []byte) ([]domain.AlertRecord, error) {
	var rss nswRSS
	if err := xml.Unmarshal(payload, &rss); err != nil {
		return nil, fmt.Errorf("parse nsw rss: %w", err)
	}

	records := make([]domain.AlertRecord, 0, len(rss.Channel.Items))
	for _, item := range rss.Channel.Items {
		geo, ok := parseGeoRSSPoint(item.Point)
		if !ok {
			p.metrics.ParseErrors.WithLabelValues(KeyNsw).Inc()
			p.logger.Debug("nsw item without georss point dropped", "title", item.Title)
			continue
		}

		fields := parseNswFields(item.Description)

		records = append(records, domain.AlertRecord{
			Message:      nswMessage(item.Title, fields),
			Timestamp:    p.parseTimestamp(item.PubDate),
			Location:     fields["LOCATION"],
			Geo:          geo,
			IncidentID:   strings.TrimSpace(item.GUID),
			Source:       domain.SourceNswRSS,
			WarningLevel: nswWarningLevel(item.Category),
		})
	}

	p.metrics.RecordsParsed.WithLabelValues(KeyNsw).Add(float64(len(records)))
	return records, nil
}

// parseGeoRSSPoint reads a "lat lon" pair.
func parseGeoRSSPoint(point string) (*domain.Geo, bool) {
	parts := strings.Fields(point)
	if len(parts) != 2 {
		return nil, false
	}
	lat, latErr := strconv.ParseFloat(parts[0], 64)
	lon, lonErr := strconv.ParseFloat(parts[1], 64)
	if latErr != nil || lonErr != nil {
		return nil, false
	}
	return &domain.Geo{Lat: lat, Lon: lon}, true
}

// parseNswFields splits a description into its "LABEL: value" lines. Labels
// are uppercased keys like LOCATION or COUNCIL AREA.
func parseNswFields(description string) map[string]string {
	fields := make(map[string]string)
	for _, line := range nswBreakRe.Split(description, -1) {
		label, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		label = strings.ToUpper(strings.TrimSpace(label))
		if label == "" {
			continue
		}
		fields[label] = strings.TrimSpace(value)
	}
	return fields
}

func nswMessage(title string, fields map[string]string) string {
	var parts []string
	if title = strings.TrimSpace(title); title != "" {
		parts = append(parts, title)
	}
	for _, key := range []string{"TYPE", "LOCATION", "STATUS"} {
		if v := fields[key]; v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " - ")
}

func (p *NswParser) parseTimestamp(pubDate string) time.Time {
	pubDate = strings.TrimSpace(pubDate)
	for _, layout := range []string{time.RFC1123Z, time.RFC1123} {
		if ts, err := time.Parse(layout, pubDate); err == nil {
			return ts
		}
	}
	return p.clock.Now()
}

// nswWarningLevel maps the feed's own category text to a severity. No
// heuristic needed; this feed states its level.
func nswWarningLevel(category string) domain.WarningLevel {
	c := strings.ToLower(category)
	switch {
	case strings.Contains(c, "emergency"):
		return domain.WarningEmergency
	case strings.Contains(c, "watch") || strings.Contains(c, "act"):
		return domain.WarningWatchAndAct
	default:
		return domain.WarningAdvice
	}
}
