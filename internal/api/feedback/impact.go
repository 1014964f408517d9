package feedback

import "github.com/agrimind/farm-assist/internal/types"

type impactEstimate struct {
	YieldPercent int
	TimelineDays int
}

// impactTable holds rough yield and timeline estimates per deviation type and
// severity. Unknown combinations estimate zero impact.
var impactTable = map[types.DeviationType]map[types.DeviationSeverity]impactEstimate{
	types.DeviationFertilizerChange: {
		types.SeverityMinor:    {YieldPercent: -2, TimelineDays: 0},
		types.SeverityModerate: {YieldPercent: -10, TimelineDays: 3},
		types.SeverityMajor:    {YieldPercent: -20, TimelineDays: 7},
	},
	types.DeviationDelay: {
		types.SeverityMinor:    {YieldPercent: -1, TimelineDays: 1},
		types.SeverityModerate: {YieldPercent: -5, TimelineDays: 3},
		types.SeverityMajor:    {YieldPercent: -15, TimelineDays: 7},
	},
	types.DeviationMethodChange: {
		types.SeverityMinor:    {YieldPercent: -3, TimelineDays: 0},
		types.SeverityModerate: {YieldPercent: -8, TimelineDays: 2},
		types.SeverityMajor:    {YieldPercent: -12, TimelineDays: 5},
	},
	types.DeviationQuantityChange: {
		types.SeverityMinor:    {YieldPercent: -2, TimelineDays: 0},
		types.SeverityModerate: {YieldPercent: -7, TimelineDays: 1},
		types.SeverityMajor:    {YieldPercent: -15, TimelineDays: 3},
	},
}

// impactFor looks up the estimated impact of a deviation. Confidence is always
// "low": the table is heuristic, not agronomic modelling.
func impactFor(deviationType types.DeviationType, severity types.DeviationSeverity) types.ImpactMetrics {
	est := impactTable[deviationType][severity]
	return types.ImpactMetrics{
		EstimatedYieldChangePercent: est.YieldPercent,
		EstimatedTimelineChangeDays: est.TimelineDays,
		Confidence:                  "low",
	}
}
