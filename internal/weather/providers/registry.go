package providers

import (
	"fmt"
	"net/http"

	"github.com/i474232898/snow-patrol/internal/weather"
)

// Provider names accepted by New.
const (
	OpenWeather = "openweather"
	WeatherAPI  = "weatherapi"
	OpenMeteo   = "openmeteo"
)

// New returns the named forecast provider. Open-Meteo ignores apiKey.
func New(name string, client *http.Client, apiKey string) (weather.Provider, error) {
	switch name {
	case OpenWeather:
		return NewOpenWeatherProvider(client, apiKey), nil
	case WeatherAPI:
		return NewWeatherAPIProvider(client, apiKey), nil
	case OpenMeteo:
		return NewOpenMeteoProvider(client), nil
	default:
		return nil, fmt.Errorf("unknown forecast provider %q", name)
	}
}
