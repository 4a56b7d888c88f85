package weather

import "time"

// Scan returns the earliest sample in the forecast that classifies as snow.
// The current sample is stamped with now and hourly sample i with now+(i+1)h.
// The search stops at the first hit.
func Scan(f Forecast, now time.Time) (SnowEvent, bool) {
	if current := f.Currently.At(now); IsSnow(current) {
		return SnowEvent{current}, true
	}

	for i, point := range f.Hourly {
		sample := point.At(now.Add(time.Duration(i+1) * time.Hour))
		if IsSnow(sample) {
			return SnowEvent{sample}, true
		}
	}

	return SnowEvent{}, false
}
