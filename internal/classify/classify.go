// Package classify derives advocacy flags from merged tract metrics.
// Every classification is a pure function of the metric values so the
// same inputs always produce the same flags.
package classify

// DefaultDesertThreshold is the income-mobility percentile below which a
// tract counts as a mobility desert. Overridable via classify.desert_threshold.
const DefaultDesertThreshold = 40.0

// DefaultMobilityKey is the property carrying the income-mobility metric.
const DefaultMobilityKey = "mobility_pct"

// DesertKey is the property carrying the mobility-desert flag.
const DesertKey = "is_desert"

// Rules holds the classification parameters for one run.
type Rules struct {
	// DesertThreshold is the strict upper bound on the mobility metric.
	DesertThreshold float64
	// MobilityKey names the metric property the desert rule reads.
	MobilityKey string
}

// DefaultRules returns the standard classification parameters.
func DefaultRules() Rules {
	return Rules{
		DesertThreshold: DefaultDesertThreshold,
		MobilityKey:     DefaultMobilityKey,
	}
}

// IsMobilityDesert reports whether a tract is a mobility desert: the
// mobility metric is present and strictly below the threshold. A missing
// metric is never a desert; equality to the threshold is not a desert.
func IsMobilityDesert(mobility *float64, threshold float64) bool {
	return mobility != nil && *mobility < threshold
}

// Apply recomputes every derived flag on a property map in place. Metric
// properties are float64 or nil; the flags written are plain booleans.
func (r Rules) Apply(props map[string]any) {
	props[DesertKey] = IsMobilityDesert(metricValue(props, r.MobilityKey), r.DesertThreshold)
}

// metricValue reads a nullable numeric property. Anything that is not a
// float64 (nil, text, a bool flag) reads as missing.
func metricValue(props map[string]any, key string) *float64 {
	v, ok := props[key]
	if !ok {
		return nil
	}
	f, ok := v.(float64)
	if !ok {
		return nil
	}
	return &f
}
