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

// OpenWeatherProvider implements the weather.Provider interface for the
// OpenWeatherMap One Call API.
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenWeatherProvider(client *http.Client, apiKey string) *OpenWeatherProvider {
	return &OpenWeatherProvider{
		name:    OpenWeather,
		apiKey:  apiKey,
		baseURL: "https://api.openweathermap.org/data/3.0/onecall",
		httpCfg: defaultHTTPConfig(client),
		circuit: newCircuitBreaker("openweather"),
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

type openWeatherPrecip struct {
	OneH *float64 `json:"1h"`
}

type openWeatherPoint struct {
	Dt      int64              `json:"dt"`
	Pop     *float64           `json:"pop"`
	Rain    *openWeatherPrecip `json:"rain"`
	Snow    *openWeatherPrecip `json:"snow"`
	Weather []struct {
		ID   int    `json:"id"`
		Main string `json:"main"`
	} `json:"weather"`
}

func (p *OpenWeatherProvider) Forecast(ctx context.Context, loc weather.Location) (weather.Forecast, error) {
	if p.apiKey == "" {
		return weather.Forecast{}, fmt.Errorf("openweather api key is not configured")
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("appid", p.apiKey)
		values.Set("units", "metric")
		values.Set("exclude", "minutely,daily,alerts")
		values.Set("lat", fmt.Sprintf("%f", loc.Latitude))
		values.Set("lon", fmt.Sprintf("%f", loc.Longitude))

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.name, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.Forecast{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Current openWeatherPoint   `json:"current"`
		Hourly  []openWeatherPoint `json:"hourly"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Forecast{}, fmt.Errorf("decode openweather response: %w", err)
	}

	forecast := weather.Forecast{
		Currently: payload.Current.sample(),
		Hourly:    make([]weather.PrecipitationSample, 0, len(payload.Hourly)),
	}
	for _, h := range payload.Hourly {
		forecast.Hourly = append(forecast.Hourly, h.sample())
	}
	return forecast, nil
}

func (pt openWeatherPoint) sample() weather.PrecipitationSample {
	var rain, snow float64
	if pt.Rain != nil && pt.Rain.OneH != nil {
		rain = *pt.Rain.OneH
	}
	var accumulation *float64
	if pt.Snow != nil && pt.Snow.OneH != nil {
		snow = *pt.Snow.OneH
		accumulation = weather.Float(snowDepthCm(snow))
	}

	typ := mapOpenWeatherPrecip(pt.weatherID(), rain, snow)

	// Observations carry no probability; reported precipitation is certain.
	probability := 0.0
	switch {
	case pt.Pop != nil:
		probability = *pt.Pop
	case typ != weather.PrecipNone:
		probability = 1
	}

	return weather.PrecipitationSample{
		Time:         time.Unix(pt.Dt, 0).UTC(),
		Probability:  probability,
		Intensity:    rain + snow,
		Type:         typ,
		Accumulation: accumulation,
	}
}

func (pt openWeatherPoint) weatherID() int {
	if len(pt.Weather) == 0 {
		return 0
	}
	return pt.Weather[0].ID
}

// mapOpenWeatherPrecip maps OpenWeather condition ids, falling back to the
// reported volumes when the condition is not a precipitation group.
func mapOpenWeatherPrecip(id int, rainMm, snowMm float64) weather.PrecipType {
	switch {
	case id == 511 || (id >= 611 && id <= 616):
		return weather.PrecipSleet
	case id >= 600 && id < 700:
		return weather.PrecipSnow
	case id >= 200 && id < 600:
		return weather.PrecipRain
	case snowMm > 0:
		return weather.PrecipSnow
	case rainMm > 0:
		return weather.PrecipRain
	default:
		return weather.PrecipNone
	}
}
