package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/snow-patrol/internal/common"
	"github.com/i474232898/snow-patrol/internal/weather"
)

// WeatherAPIProvider implements the weather.Provider interface for WeatherAPI.com.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	baseURL string
	days    int
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewWeatherAPIProvider(client *http.Client, apiKey string) *WeatherAPIProvider {
	return &WeatherAPIProvider{
		name:    WeatherAPI,
		apiKey:  apiKey,
		baseURL: "https://api.weatherapi.com/v1/forecast.json",
		days:    2,
		httpCfg: defaultHTTPConfig(client),
		circuit: newCircuitBreaker("weatherapi"),
	}
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

type weatherAPICondition struct {
	Text string `json:"text"`
	Code int    `json:"code"`
}

type weatherAPIHour struct {
	TimeEpoch    int64               `json:"time_epoch"`
	PrecipMm     float64             `json:"precip_mm"`
	SnowCm       *float64            `json:"snow_cm"`
	WillItSnow   int                 `json:"will_it_snow"`
	ChanceOfSnow float64             `json:"chance_of_snow"`
	ChanceOfRain float64             `json:"chance_of_rain"`
	Condition    weatherAPICondition `json:"condition"`
}

func (p *WeatherAPIProvider) Forecast(ctx context.Context, loc weather.Location) (weather.Forecast, error) {
	if p.apiKey == "" {
		return weather.Forecast{}, fmt.Errorf("weatherapi api key is not configured")
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("key", p.apiKey)
		// WeatherAPI uses "q" for location; it accepts "city,country" or "lat,lon".
		values.Set("q", fmt.Sprintf("%f,%f", loc.Latitude, loc.Longitude))
		values.Set("days", fmt.Sprintf("%d", p.days))
		values.Set("aqi", "no")
		values.Set("alerts", "no")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.name, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.Forecast{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Location struct {
			LocaltimeEpoch int64 `json:"localtime_epoch"`
		} `json:"location"`
		Current struct {
			LastUpdatedEpoch int64               `json:"last_updated_epoch"`
			PrecipMm         float64             `json:"precip_mm"`
			Condition        weatherAPICondition `json:"condition"`
		} `json:"current"`
		Forecast struct {
			ForecastDay []struct {
				Hour []weatherAPIHour `json:"hour"`
			} `json:"forecastday"`
		} `json:"forecast"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Forecast{}, fmt.Errorf("decode weatherapi response: %w", err)
	}

	now := payload.Location.LocaltimeEpoch
	if now == 0 {
		now = time.Now().Unix()
	}

	currentType := mapWeatherAPIPrecip(payload.Current.Condition.Text, false)
	current := weather.PrecipitationSample{
		Time:      time.Unix(now, 0).UTC(),
		Intensity: payload.Current.PrecipMm,
		Type:      currentType,
	}
	if currentType != weather.PrecipNone {
		current.Probability = 1
	}

	forecast := weather.Forecast{Currently: current}

	// Forecast days start at local midnight; only hours after now are upcoming.
	for _, day := range payload.Forecast.ForecastDay {
		for _, h := range day.Hour {
			if h.TimeEpoch <= now {
				continue
			}
			forecast.Hourly = append(forecast.Hourly, h.sample())
		}
	}
	return forecast, nil
}

func (h weatherAPIHour) sample() weather.PrecipitationSample {
	typ := mapWeatherAPIPrecip(h.Condition.Text, h.WillItSnow == 1)

	chance := h.ChanceOfRain
	if typ == weather.PrecipSnow || typ == weather.PrecipSleet {
		chance = h.ChanceOfSnow
	}

	return weather.PrecipitationSample{
		Time:         time.Unix(h.TimeEpoch, 0).UTC(),
		Probability:  chance / 100,
		Intensity:    h.PrecipMm,
		Type:         typ,
		Accumulation: h.SnowCm,
	}
}

func mapWeatherAPIPrecip(text string, willSnow bool) weather.PrecipType {
	switch {
	case common.ContainsAnyFold(text, "sleet", "ice pellets", "freezing rain", "freezing drizzle"):
		return weather.PrecipSleet
	case common.ContainsAnyFold(text, "snow", "blizzard"):
		return weather.PrecipSnow
	case willSnow:
		return weather.PrecipSnow
	case common.ContainsAnyFold(text, "rain", "drizzle", "shower", "thunder"):
		return weather.PrecipRain
	default:
		return weather.PrecipNone
	}
}
