// Package storage persists run reports as JSON.
//
// Every run is written to runs/<run_id>.json inside the data directory and
// also replaces last_run.json, which the status command reads. The default
// location is ~/.local/share/uct-events/.
package storage
