package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/snow-patrol/internal/weather"
)

// OpenMeteoProvider implements the weather.Provider interface for Open-Meteo.
// Open-Meteo needs no API key.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	days    int
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenMeteoProvider(client *http.Client) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		name:    OpenMeteo,
		baseURL: "https://api.open-meteo.com/v1/forecast",
		days:    2,
		httpCfg: defaultHTTPConfig(client),
		circuit: newCircuitBreaker("openmeteo"),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

func (p *OpenMeteoProvider) Forecast(ctx context.Context, loc weather.Location) (weather.Forecast, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", fmt.Sprintf("%f", loc.Latitude))
		values.Set("longitude", fmt.Sprintf("%f", loc.Longitude))
		values.Set("current", "precipitation,snowfall,weather_code")
		values.Set("hourly", "precipitation_probability,precipitation,snowfall,weather_code")
		values.Set("forecast_days", fmt.Sprintf("%d", p.days))
		values.Set("timeformat", "unixtime")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.name, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.Forecast{}, err
	}
	defer resp.Body.Close()

	// snowfall is reported in cm, precipitation in mm.
	var payload struct {
		Current struct {
			Time          int64    `json:"time"`
			Precipitation float64  `json:"precipitation"`
			Snowfall      *float64 `json:"snowfall"`
			WeatherCode   int      `json:"weather_code"`
		} `json:"current"`
		Hourly struct {
			Time                     []int64    `json:"time"`
			PrecipitationProbability []*float64 `json:"precipitation_probability"`
			Precipitation            []float64  `json:"precipitation"`
			Snowfall                 []*float64 `json:"snowfall"`
			WeatherCode              []int      `json:"weather_code"`
		} `json:"hourly"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Forecast{}, fmt.Errorf("decode openmeteo response: %w", err)
	}

	cur := payload.Current
	current := weather.PrecipitationSample{
		Time:         time.Unix(cur.Time, 0).UTC(),
		Intensity:    cur.Precipitation,
		Type:         mapOpenMeteoPrecip(cur.WeatherCode),
		Accumulation: cur.Snowfall,
	}
	if current.Type != weather.PrecipNone {
		current.Probability = 1
	}

	forecast := weather.Forecast{Currently: current}

	h := payload.Hourly
	for i, ts := range h.Time {
		// Hourly data starts at midnight; keep the hours after the current reading.
		if ts <= cur.Time {
			continue
		}
		sample := weather.PrecipitationSample{
			Time:         time.Unix(ts, 0).UTC(),
			Intensity:    floatAt(h.Precipitation, i),
			Type:         mapOpenMeteoPrecip(intAt(h.WeatherCode, i)),
			Accumulation: ptrAt(h.Snowfall, i),
		}
		if pp := ptrAt(h.PrecipitationProbability, i); pp != nil {
			sample.Probability = *pp / 100
		}
		forecast.Hourly = append(forecast.Hourly, sample)
	}
	return forecast, nil
}

// mapOpenMeteoPrecip maps WMO weather codes to a precipitation type.
func mapOpenMeteoPrecip(code int) weather.PrecipType {
	switch {
	case code == 56 || code == 57 || code == 66 || code == 67:
		return weather.PrecipSleet
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return weather.PrecipSnow
	case (code >= 51 && code <= 65) || (code >= 80 && code <= 82) || code >= 95:
		return weather.PrecipRain
	default:
		return weather.PrecipNone
	}
}

func floatAt(values []float64, i int) float64 {
	if i < len(values) {
		return values[i]
	}
	return 0
}

func intAt(values []int, i int) int {
	if i < len(values) {
		return values[i]
	}
	return 0
}

func ptrAt(values []*float64, i int) *float64 {
	if i < len(values) {
		return values[i]
	}
	return nil
}
