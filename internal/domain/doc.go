// Package domain implements the transformation and aggregation core of the
// weather pipeline: normalizing per-location raw payloads into canonical
// hourly records, merging archive and forecast sources into one deduplicated
// table, and rolling that table up into daily summaries.
//
// # Data Source
//
// Hourly observations come from the Open-Meteo archive and forecast APIs
// (https://open-meteo.com/). A payload carries one timestamp array plus one
// same-length array per metric; timestamps are expressed in the location's
// requested timezone, with the applied UTC offset declared in the payload.
//
// # Missing Values
//
// A metric with no reading for an hour arrives as JSON null and is carried
// through the core as an invalid [Value], never as zero. Aggregates skip
// missing values; an hour with no readings at all is dropped from the table.
//
// # Source Precedence
//
// When archive and forecast payloads overlap, the archive record wins:
// observed data is authoritative over predicted data. Between two payloads of
// the same source class, the most recently fetched wins. See [Merge].
//
// # Aggregation Policy
//
// Daily statistics are driven by an explicit per-metric [Policy] mapping each
// metric to its aggregate functions (temperature to min/max/mean,
// precipitation to sum, and so on). The policy is data, not code, so it can
// be inspected and tested apart from the aggregation loop. See
// [DefaultPolicy].
package domain
