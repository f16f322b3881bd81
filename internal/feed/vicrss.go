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

// vicFieldRe captures one "<strong>Field:</strong> value" pair from an item
// description. The RSS layer entity-encodes the markup; the XML decoder
// hands it back as literal tags.
var vicFieldRe = regexp.MustCompile(`<strong>\s*([^<:]+?)\s*:?\s*</strong>\s*([^<]*)`)

// vicTimeLayouts are the Date/Time field formats seen in the wild.
var vicTimeLayouts = []string{
	"02/01/2006 15:04:05",
	"02/01/06 15:04:05",
	"02/01/2006 15:04",
}

type vicRSS struct {
	Channel struct {
		Items []vicItem `xml:"item"`
	} `xml:"channel"`
}

type vicItem struct {
	Title       string `xml:"title"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	GUID        string `xml:"guid"`
}

// VicParser parses the Victorian incidents RSS dialect: field/value pairs
// embedded in each item description, with the incident's own coordinates.
type VicParser struct {
	clock   clockwork.Clock
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewVicParser creates a Victorian RSS parser.
func NewVicParser(clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *VicParser {
	return &VicParser{clock: clock, metrics: metrics, logger: logger}
}

// Parse extracts alert records from the feed payload. Items without both
// Latitude and Longitude fields are dropped: this source is only useful
// when it supplies its own coordinates, and there is no geocoding fallback
// for it. A malformed item is skipped, never fatal.
func (p *VicParser) Parse(payload []byte) ([]domain.AlertRecord, error) {
	var rss vicRSS
	if err := xml.Unmarshal(payload, &rss); err != nil {
		return nil, fmt.Errorf("parse vic rss: %w", err)
	}

	records := make([]domain.AlertRecord, 0, len(rss.Channel.Items))
	for _, item := range rss.Channel.Items {
		rec, ok := p.parseItem(item)
		if !ok {
			continue
		}
		records = append(records, rec)
	}

	p.metrics.RecordsParsed.WithLabelValues(KeyVic).Add(float64(len(records)))
	return records, nil
}

func (p *VicParser) parseItem(item vicItem) (domain.AlertRecord, bool) {
	fields := parseVicFields(item.Description)

	lat, latErr := strconv.ParseFloat(fields["Latitude"], 64)
	lon, lonErr := strconv.ParseFloat(fields["Longitude"], 64)
	if latErr != nil || lonErr != nil {
		p.metrics.ParseErrors.WithLabelValues(KeyVic).Inc()
		p.logger.Debug("vic item without coordinates dropped", "title", item.Title)
		return domain.AlertRecord{}, false
	}

	vehicles := 0
	if n, err := strconv.Atoi(strings.TrimSpace(fields["Vehicles"])); err == nil {
		vehicles = n
	}

	incidentID := strings.TrimSpace(fields["Incident No"])
	if incidentID == "" {
		incidentID = strings.TrimSpace(item.GUID)
	}

	return domain.AlertRecord{
		Message:      vicMessage(item.Title, fields),
		Timestamp:    p.parseTimestamp(fields["Date/Time"], item.PubDate),
		Location:     strings.TrimSpace(fields["Location"]),
		Geo:          &domain.Geo{Lat: lat, Lon: lon},
		IncidentID:   incidentID,
		Source:       domain.SourceVicRSS,
		WarningLevel: vicWarningLevel(fields["Status"], fields["Type"], fields["Size"], vehicles),
	}, true
}

// parseVicFields pulls the "<strong>Field:</strong> value" pairs out of an
// item description.
func parseVicFields(description string) map[string]string {
	fields := make(map[string]string)
	for _, m := range vicFieldRe.FindAllStringSubmatch(description, -1) {
		fields[strings.TrimSpace(m[1])] = strings.TrimSpace(m[2])
	}
	return fields
}

// vicMessage assembles a display message from the item title and the most
// useful description fields.
func vicMessage(title string, fields map[string]string) string {
	var parts []string
	if title = strings.TrimSpace(title); title != "" {
		parts = append(parts, title)
	}
	for _, key := range []string{"Type", "Location", "Status"} {
		if v := strings.TrimSpace(fields[key]); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " - ")
}

func (p *VicParser) parseTimestamp(dateTime, pubDate string) time.Time {
	dateTime = strings.TrimSpace(dateTime)
	for _, layout := range vicTimeLayouts {
		if ts, err := time.ParseInLocation(layout, dateTime, pagerZone); err == nil {
			return ts
		}
	}
	if ts, err := time.Parse(time.RFC1123Z, strings.TrimSpace(pubDate)); err == nil {
		return ts
	}
	return p.clock.Now()
}

// vicWarningLevel derives a severity for a feed that has no explicit
// severity field. The clauses are evaluated in priority order; the vehicle
// and size thresholds are reproducible constants, not tuned values.
func vicWarningLevel(status, incidentType, size string, vehicles int) domain.WarningLevel {
	status = strings.ToUpper(status)
	incidentType = strings.ToUpper(strings.TrimSpace(incidentType))
	size = strings.ToUpper(strings.TrimSpace(size))

	switch {
	case strings.Contains(status, "EMERGENCY"):
		return domain.WarningEmergency
	case strings.Contains(status, "WATCH") || strings.Contains(status, "ACT"):
		return domain.WarningWatchAndAct
	case incidentType == "BUSHFIRE" && (size == "UNKNOWN" || vehicles > 10):
		return domain.WarningWatchAndAct
	case size == "LARGE" || vehicles > 20:
		return domain.WarningWatchAndAct
	default:
		return domain.WarningAdvice
	}
}
