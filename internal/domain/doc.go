// Package domain models Australian emergency-alert feed data.
//
// # Data sources
//
// Three upstream feeds are ingested, each with its own dialect:
//
// Pager dispatches: an HTML table of raw CFA pager traffic. Each row has a
// capcode cell, a timestamp cell, and a free-text message cell. Only rows
// carrying the "@@ALERT" marker are dispatch alerts; everything else is
// admin traffic. Rows containing "STOP SCRAPING" are upstream operational
// notices, not alerts.
//
// Victoria incident RSS: one <item> per incident, with a <description> of
// "<strong>Field:</strong> value<br>" pairs (Incident Name, Territory,
// Agency, Fire District, Incident No, Date/Time, Type, Location, Status,
// Size, Vehicles, Latitude, Longitude). Items without their own coordinates
// are useless to a map and are dropped.
//
// NSW incident RSS: one <item> per incident with a <georss:point> element
// ("lat lon", space separated) and a <description> using a different label
// set (ALERT LEVEL, LOCATION, COUNCIL AREA, STATUS, TYPE, FIRE, SIZE,
// RESPONSIBLE AGENCY, UPDATED). The <category> element states the warning
// level directly.
//
// # Pager dispatch conventions
//
// Timestamp format:
//
//	"HH:MM:SS YYYY-MM-DD", interpreted at a fixed UTC+11 offset. The
//	upstream scraper has always used the fixed offset with no DST
//	adjustment, so this is reproduced as-is for compatibility even though
//	it is wrong for part of the year. Unparseable timestamps fall back to
//	ingestion time.
//
// Incident numbers:
//
//	"F" followed by nine digits, e.g. "F160301122". Multiple pager units
//	dispatched to one incident produce duplicate rows with the same number;
//	the first row in table order wins.
//
// Location grammar:
//
//	Messages are upper-case and loosely structured. A street address looks
//	like "GRASS FIRE 230 CHURCHILL RD YARRAWONGA /...", a corner like
//	"CNR EXFORD RD/GREIGS RD WEIR VIEWS SVC 6243 E6", and most messages end
//	with a map-book reference ("SVC 6339 D1", "M 315 G7") or a slash-
//	separated dispatch tail. See the dispatch package for the ordered
//	extraction heuristics built on this grammar.
//
// # Warning levels
//
// NSW states its level in <category>; Victoria does not, so the level is
// derived from status, type, size, and vehicle count with fixed thresholds
// (see the feed package's Victorian parser). The thresholds are fixed
// constants, not tuned business logic.
package domain
