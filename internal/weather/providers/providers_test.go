package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/i474232898/snow-patrol/internal/weather"
)

var testLocation = weather.Location{Name: "Vancouver", Latitude: 49.2827, Longitude: -123.1207}

func fastHTTPConfig(client *http.Client) HTTPClientConfig {
	return HTTPClientConfig{
		Client: client,
		Backoff: BackoffConfig{
			MaxRetries:      2,
			InitialInterval: time.Millisecond,
			MaxInterval:     2 * time.Millisecond,
		},
	}
}

func newServer(t *testing.T, status int, body string, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

const openWeatherBody = `{
  "current": {"dt": 1700000000, "snow": {"1h": 0.4}, "weather": [{"id": 600, "main": "Snow"}]},
  "hourly": [
    {"dt": 1700003600, "pop": 0.35, "weather": [{"id": 804, "main": "Clouds"}]},
    {"dt": 1700007200, "pop": 0.8, "rain": {"1h": 1.5}, "weather": [{"id": 500, "main": "Rain"}]},
    {"dt": 1700010800, "pop": 0.6, "snow": {"1h": 2.0}, "weather": [{"id": 601, "main": "Snow"}]},
    {"dt": 1700014400, "pop": 0.2, "weather": [{"id": 612, "main": "Snow"}]}
  ]
}`

func TestOpenWeatherProvider_Forecast(t *testing.T) {
	t.Parallel()

	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		_, _ = w.Write([]byte(openWeatherBody))
	}))
	defer srv.Close()

	p := NewOpenWeatherProvider(srv.Client(), "secret")
	p.baseURL = srv.URL
	p.httpCfg = fastHTTPConfig(srv.Client())

	f, err := p.Forecast(context.Background(), testLocation)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if query == "" {
		t.Fatal("expected query parameters")
	}

	cur := f.Currently
	if cur.Type != weather.PrecipSnow || cur.Probability != 1 || cur.Intensity != 0.4 {
		t.Errorf("unexpected current sample: %v", cur)
	}
	if cur.Accumulation == nil || *cur.Accumulation != 0.4 {
		t.Errorf("expected 0.4cm accumulation, got %v", cur.Accumulation)
	}

	if len(f.Hourly) != 4 {
		t.Fatalf("hourly samples = %d, want 4", len(f.Hourly))
	}
	if h := f.Hourly[0]; h.Type != weather.PrecipNone || h.Probability != 0.35 || h.Accumulation != nil {
		t.Errorf("unexpected dry hour: %v", h)
	}
	if h := f.Hourly[1]; h.Type != weather.PrecipRain || h.Intensity != 1.5 {
		t.Errorf("unexpected rain hour: %v", h)
	}
	if h := f.Hourly[2]; h.Type != weather.PrecipSnow || h.Accumulation == nil || *h.Accumulation != 2.0 {
		t.Errorf("unexpected snow hour: %v", h)
	}
	if h := f.Hourly[3]; h.Type != weather.PrecipSleet {
		t.Errorf("expected sleet, got %v", h)
	}
}

func TestOpenWeatherProvider_MissingKey(t *testing.T) {
	t.Parallel()

	p := NewOpenWeatherProvider(http.DefaultClient, "")
	_, err := p.Forecast(context.Background(), testLocation)
	if err == nil || errors.Is(err, weather.ErrConnection) {
		t.Fatalf("expected a configuration error, got %v", err)
	}
}

const weatherAPIBody = `{
  "location": {"localtime_epoch": 1700001000},
  "current": {"precip_mm": 0.0, "condition": {"text": "Partly cloudy", "code": 1003}},
  "forecast": {"forecastday": [{"hour": [
    {"time_epoch": 1699999200, "precip_mm": 3.0, "snow_cm": 4.0, "will_it_snow": 1, "chance_of_snow": 90, "condition": {"text": "Heavy snow"}},
    {"time_epoch": 1700002800, "precip_mm": 0.1, "chance_of_rain": 40, "condition": {"text": "Patchy rain possible"}},
    {"time_epoch": 1700006400, "precip_mm": 0.3, "snow_cm": 0.5, "will_it_snow": 1, "chance_of_snow": 70, "condition": {"text": "Light snow"}}
  ]}]}
}`

func TestWeatherAPIProvider_Forecast(t *testing.T) {
	t.Parallel()

	srv := newServer(t, http.StatusOK, weatherAPIBody, nil)
	p := NewWeatherAPIProvider(srv.Client(), "secret")
	p.baseURL = srv.URL
	p.httpCfg = fastHTTPConfig(srv.Client())

	f, err := p.Forecast(context.Background(), testLocation)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.Currently.Type != weather.PrecipNone || f.Currently.Probability != 0 {
		t.Errorf("unexpected current sample: %v", f.Currently)
	}
	// The first hour is before localtime and must be dropped.
	if len(f.Hourly) != 2 {
		t.Fatalf("hourly samples = %d, want 2", len(f.Hourly))
	}
	if h := f.Hourly[0]; h.Type != weather.PrecipRain || h.Probability != 0.4 {
		t.Errorf("unexpected rain hour: %v", h)
	}
	if h := f.Hourly[1]; h.Type != weather.PrecipSnow || h.Probability != 0.7 || h.Accumulation == nil || *h.Accumulation != 0.5 {
		t.Errorf("unexpected snow hour: %v", h)
	}
}

const openMeteoBody = `{
  "current": {"time": 1700000900, "precipitation": 0.6, "snowfall": 0.42, "weather_code": 73},
  "hourly": {
    "time": [1699999200, 1700002800, 1700006400],
    "precipitation_probability": [10, null, 55],
    "precipitation": [0.0, 0.0, 1.1],
    "snowfall": [0.0, 0.0, 0.77],
    "weather_code": [3, 2, 85]
  }
}`

func TestOpenMeteoProvider_Forecast(t *testing.T) {
	t.Parallel()

	srv := newServer(t, http.StatusOK, openMeteoBody, nil)
	p := NewOpenMeteoProvider(srv.Client())
	p.baseURL = srv.URL
	p.httpCfg = fastHTTPConfig(srv.Client())

	f, err := p.Forecast(context.Background(), testLocation)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cur := f.Currently
	if cur.Type != weather.PrecipSnow || cur.Probability != 1 || cur.Accumulation == nil || *cur.Accumulation != 0.42 {
		t.Errorf("unexpected current sample: %v", cur)
	}
	if len(f.Hourly) != 2 {
		t.Fatalf("hourly samples = %d, want 2", len(f.Hourly))
	}
	if h := f.Hourly[0]; h.Probability != 0 || h.Type != weather.PrecipNone {
		t.Errorf("null probability should read as zero: %v", h)
	}
	if h := f.Hourly[1]; h.Type != weather.PrecipSnow || h.Probability != 0.55 || h.Intensity != 1.1 {
		t.Errorf("unexpected snow hour: %v", h)
	}
}

func TestSnowDepthCm(t *testing.T) {
	t.Parallel()

	cases := map[float64]float64{0: 0, 1: 1, 2.5: 2.5, 12: 12}
	for liquid, want := range cases {
		if got := snowDepthCm(liquid); got != want {
			t.Errorf("snowDepthCm(%v) = %v, want %v", liquid, got, want)
		}
	}
}

func TestMapOpenMeteoPrecip(t *testing.T) {
	t.Parallel()

	cases := map[int]weather.PrecipType{
		0:  weather.PrecipNone,
		3:  weather.PrecipNone,
		45: weather.PrecipNone,
		51: weather.PrecipRain,
		57: weather.PrecipSleet,
		63: weather.PrecipRain,
		67: weather.PrecipSleet,
		71: weather.PrecipSnow,
		77: weather.PrecipSnow,
		81: weather.PrecipRain,
		86: weather.PrecipSnow,
		95: weather.PrecipRain,
	}
	for code, want := range cases {
		if got := mapOpenMeteoPrecip(code); got != want {
			t.Errorf("code %d: got %q, want %q", code, got, want)
		}
	}
}

func TestDoRequestWithResilience_ErrorClassification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		status     int
		connection bool
		wantHits   int32
	}{
		{name: "server error is retried then reported as connection error", status: http.StatusBadGateway, connection: true, wantHits: 3},
		{name: "rate limiting is a connection error", status: http.StatusTooManyRequests, connection: true, wantHits: 3},
		{name: "unauthorized is fatal and not retried", status: http.StatusUnauthorized, connection: false, wantHits: 1},
		{name: "not found is fatal and not retried", status: http.StatusNotFound, connection: false, wantHits: 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var hits int32
			srv := newServer(t, tc.status, `{}`, &hits)
			p := NewOpenMeteoProvider(srv.Client())
			p.baseURL = srv.URL
			p.httpCfg = fastHTTPConfig(srv.Client())

			_, err := p.Forecast(context.Background(), testLocation)
			if err == nil {
				t.Fatal("expected an error")
			}
			if got := errors.Is(err, weather.ErrConnection); got != tc.connection {
				t.Errorf("errors.Is(err, ErrConnection) = %v, want %v (err: %v)", got, tc.connection, err)
			}
			if got := atomic.LoadInt32(&hits); got != tc.wantHits {
				t.Errorf("hits = %d, want %d", got, tc.wantHits)
			}
		})
	}
}

func TestDoRequestWithResilience_TransportFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p := NewOpenMeteoProvider(&http.Client{Timeout: time.Second})
	p.baseURL = url
	p.httpCfg = fastHTTPConfig(&http.Client{Timeout: time.Second})

	_, err := p.Forecast(context.Background(), testLocation)
	if !errors.Is(err, weather.ErrConnection) {
		t.Fatalf("expected connection error, got %v", err)
	}
	var ce *weather.ConnectionError
	if !errors.As(err, &ce) || ce.Provider != "openmeteo" {
		t.Errorf("expected ConnectionError from openmeteo, got %#v", err)
	}
}

func TestDoRequestWithResilience_InvalidJSONIsFatal(t *testing.T) {
	t.Parallel()

	srv := newServer(t, http.StatusOK, `not json`, nil)
	p := NewOpenMeteoProvider(srv.Client())
	p.baseURL = srv.URL
	p.httpCfg = fastHTTPConfig(srv.Client())

	_, err := p.Forecast(context.Background(), testLocation)
	if err == nil || errors.Is(err, weather.ErrConnection) {
		t.Fatalf("expected a non-connection decode error, got %v", err)
	}
}

func TestDoRequestWithResilience_Config(t *testing.T) {
	t.Parallel()

	p := NewOpenMeteoProvider(nil)
	if _, err := p.Forecast(context.Background(), testLocation); !errors.Is(err, errNoHTTPClient) {
		t.Errorf("expected errNoHTTPClient, got %v", err)
	}

	p = NewOpenMeteoProvider(http.DefaultClient)
	p.httpCfg.Backoff.InitialInterval = 0
	if _, err := p.Forecast(context.Background(), testLocation); !errors.Is(err, errInvalidConfig) {
		t.Errorf("expected errInvalidConfig, got %v", err)
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	for _, name := range []string{OpenWeather, WeatherAPI, OpenMeteo} {
		p, err := New(name, http.DefaultClient, "key")
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if p.Name() != name {
			t.Errorf("Name() = %q, want %q", p.Name(), name)
		}
	}
	if _, err := New("darksky", http.DefaultClient, "key"); err == nil {
		t.Error("expected an error for an unknown provider")
	}
}

func TestUpstreamHealthy(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "success", err: nil, want: true},
		{name: "client error", err: &statusError{code: http.StatusUnauthorized}, want: true},
		{name: "cancelled", err: context.Canceled, want: true},
		{name: "server error", err: errServerError, want: false},
		{name: "rate limited", err: errRateLimited, want: false},
		{name: "transport", err: errors.New("connection refused"), want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := upstreamHealthy(tc.err); got != tc.want {
				t.Errorf("upstreamHealthy(%v) = %t, want %t", tc.err, got, tc.want)
			}
		})
	}
}

func TestCircuitOpensAfterRepeatedServerErrors(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := fastHTTPConfig(srv.Client())
	cfg.Backoff.MaxRetries = tripAfter + 2
	cb := newCircuitBreaker("test")

	_, err := doRequestWithResilience(context.Background(), "test", cfg, cb, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, srv.URL, nil)
	})
	if !errors.Is(err, weather.ErrConnection) || !errors.Is(err, errCircuitOpen) {
		t.Fatalf("expected an open circuit connection error, got %v", err)
	}
	if got := hits.Load(); got != tripAfter {
		t.Errorf("upstream hits = %d, want %d", got, tripAfter)
	}
}
