// Package cli implements the command-line interface for uct-events.
//
// The cli package provides the Cobra-based CLI: sync reconciles the venue's
// listing into the configured calendar, extract and export show or save what
// the scraper finds without touching the calendar, watch repeats sync on a
// cron schedule and status prints the last recorded run. It wires together
// the config, scraper, calendar, pipeline and storage packages.
package cli
