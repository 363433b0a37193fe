// Package scraper fetches the venue's events page and extracts shows from it.
//
// The page has no stable schema. Each show is located by a recurring anchor
// phrase (by default the "Doors:" label); the surrounding block is then
// searched for a title, a month/day date, a show or doors time and a ticket
// link, each through an ordered list of fallback strategies. Blocks missing
// a required field are discarded with a diagnostic instead of failing the run.
package scraper
