// Package event provides the extracted event record and the rules that turn
// scraped fragments into one.
//
// Dates on the listing page carry no year and times are 12-hour strings, so
// Resolve combines the fragments with an explicit "now" and a fixed time zone.
// Each event is assigned a deterministic SHA1 fingerprint of its title and
// start instant; Dedup collapses repeated extractions of the same show and
// InWindow keeps only events worth syncing.
package event
