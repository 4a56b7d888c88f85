package weather

const (
	// SnowProbabilityThreshold is the minimum probability of precipitation.
	SnowProbabilityThreshold = 0.5
	// SnowIntensityThreshold is the minimum intensity in mm/h.
	SnowIntensityThreshold = 0.2
	// SnowAccumulationThreshold is the minimum known accumulation in cm.
	SnowAccumulationThreshold = 0.15
)

// IsSnow reports whether the sample counts as snowing, now or imminently.
// The type must be snow and any one of probability, intensity or a known
// accumulation must reach its threshold.
func IsSnow(s PrecipitationSample) bool {
	if s.Type != PrecipSnow {
		return false
	}
	return s.Probability >= SnowProbabilityThreshold ||
		s.Intensity >= SnowIntensityThreshold ||
		(s.Accumulation != nil && *s.Accumulation >= SnowAccumulationThreshold)
}
