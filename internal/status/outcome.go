package status

import (
	"strconv"
	"time"
)

// DescribeOutcome summarises a finished build in a short fact phrase:
// "took 3 minutes", "failed after 1 hour", "successful" or "failed".
// It returns "" when neither the result nor the duration is known.
func (b *Build) DescribeOutcome() string {
	if b == nil {
		return ""
	}
	if b.Duration != nil {
		if formatted := FormatDuration(*b.Duration); formatted != "" {
			if b.Result == ResultFailure {
				return "failed after " + formatted
			}
			return "took " + formatted
		}
	}
	switch b.Result {
	case ResultSuccess:
		return "successful"
	case ResultFailure:
		return "failed"
	default:
		return ""
	}
}

type durationUnit struct {
	size     time.Duration
	singular string
	plural   string
}

var durationUnits = []durationUnit{
	{size: time.Hour, singular: "hour", plural: "hours"},
	{size: time.Minute, singular: "minute", plural: "minutes"},
	{size: time.Second, singular: "second", plural: "seconds"},
}

// FormatDuration renders d using at most the two coarsest non-empty units,
// starting at the largest unit with a non-zero count. The second unit is
// dropped when its count is zero. Sub-second remainders are truncated and a
// duration shorter than one second renders as "".
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return ""
	}
	d = d.Truncate(time.Second)
	for idx, unit := range durationUnits {
		count := int64(d / unit.size)
		if count == 0 {
			continue
		}
		text := formatUnit(count, unit)
		if idx+1 < len(durationUnits) {
			next := durationUnits[idx+1]
			if rest := int64((d % unit.size) / next.size); rest > 0 {
				text += " " + formatUnit(rest, next)
			}
		}
		return text
	}
	return ""
}

func formatUnit(count int64, unit durationUnit) string {
	label := unit.plural
	if count == 1 {
		label = unit.singular
	}
	return strconv.FormatInt(count, 10) + " " + label
}
