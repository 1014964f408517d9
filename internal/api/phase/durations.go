package phase

import "strings"

// cropDuration holds the typical growth period and harvest window for a crop.
type cropDuration struct {
	GrowthDays    int
	HarvestWindow int
}

// cropDurations maps crop types to their typical durations in days. Unknown
// crops fall back to the default entry.
var cropDurations = map[string]cropDuration{
	"rice":      {GrowthDays: 120, HarvestWindow: 7},
	"wheat":     {GrowthDays: 120, HarvestWindow: 7},
	"moong_dal": {GrowthDays: 60, HarvestWindow: 5},
	"cotton":    {GrowthDays: 150, HarvestWindow: 14},
	"tomato":    {GrowthDays: 75, HarvestWindow: 10},
	"cucumber":  {GrowthDays: 55, HarvestWindow: 7},
	"lettuce":   {GrowthDays: 45, HarvestWindow: 5},
	"default":   {GrowthDays: 90, HarvestWindow: 7},
}

// durationFor returns the duration entry for a crop type, case-insensitive.
func durationFor(cropType string) cropDuration {
	if d, ok := cropDurations[strings.ToLower(cropType)]; ok {
		return d
	}
	return cropDurations["default"]
}
