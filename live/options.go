package live

import (
	"os"
	"strconv"
	"time"
)

// Options are the service-wide runtime knobs. Games may override the
// allocation numbers individually (models.Game.MinCleanPoints etc.).
type Options struct {
	// How often the location broadcast fires, and the window the
	// per-target sends are spread across.
	BroadcastInterval time.Duration
	// How often the point tick sweep fires.
	TickInterval time.Duration
	// Spread per-point ticks linearly across the window instead of
	// firing them all at once.
	SpreadTicks bool

	// Minimum number of clean points each user must have open.
	MinCleanPoints int
	// Cap on assignments attached to a single point per allocation.
	MaxAssignmentsPerPoint int

	// A location older than this no longer makes its user visible.
	LocationStaleAfter time.Duration
}

func DefaultOptions() Options {
	return Options{
		BroadcastInterval:      10 * time.Second,
		TickInterval:           30 * time.Second,
		SpreadTicks:            true,
		MinCleanPoints:         3,
		MaxAssignmentsPerPoint: 2,
		LocationStaleAfter:     5 * time.Minute,
	}
}

// OptionsFromEnv reads the recognized environment keys over the defaults.
func OptionsFromEnv() Options {
	opts := DefaultOptions()
	if ms := envInt("LOCATION_BROADCAST_MS", 0); ms > 0 {
		opts.BroadcastInterval = time.Duration(ms) * time.Millisecond
	}
	if ms := envInt("POINT_TICK_MS", 0); ms > 0 {
		opts.TickInterval = time.Duration(ms) * time.Millisecond
	}
	if v := os.Getenv("SPREAD_TICKS"); v != "" {
		opts.SpreadTicks = v == "1" || v == "true"
	}
	if n := envInt("MIN_CLEAN_POINTS", 0); n > 0 {
		opts.MinCleanPoints = n
	}
	if n := envInt("MAX_ASSIGNMENTS_PER_POINT", 0); n > 0 {
		opts.MaxAssignmentsPerPoint = n
	}
	return opts
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
