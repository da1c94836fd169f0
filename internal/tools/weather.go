package tools

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/firebase/genkit/go/ai"
)

const openMeteoBaseURL = "https://api.open-meteo.com/v1/forecast"

// maxWeatherBody caps the forecast response size.
const maxWeatherBody = 1 << 20

// weatherResponse mirrors the slice of the Open-Meteo payload we forward.
type weatherResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`
	Current   struct {
		Time          string  `json:"time"`
		Temperature2M float64 `json:"temperature_2m"`
	} `json:"current"`
	Hourly struct {
		Time          []string  `json:"time"`
		Temperature2M []float64 `json:"temperature_2m"`
	} `json:"hourly"`
	Daily struct {
		Sunrise []string `json:"sunrise"`
		Sunset  []string `json:"sunset"`
	} `json:"daily"`
}

// GetWeather fetches current conditions and an hourly forecast from the
// Open-Meteo API.
func (k *Kit) GetWeather(ctx *ai.ToolContext, input WeatherInput) (Result, error) {
	if input.Latitude < -90 || input.Latitude > 90 || input.Longitude < -180 || input.Longitude > 180 {
		return errorResult(ErrCodeInvalidInput,
			fmt.Sprintf("coordinates out of range: %f, %f", input.Latitude, input.Longitude)), nil
	}

	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%f", input.Latitude))
	q.Set("longitude", fmt.Sprintf("%f", input.Longitude))
	q.Set("current", "temperature_2m")
	q.Set("hourly", "temperature_2m")
	q.Set("daily", "sunrise,sunset")
	q.Set("timezone", "auto")

	req, err := http.NewRequestWithContext(ctx.Context, http.MethodGet, k.weatherBaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return errorResult(ErrCodeNetwork, fmt.Sprintf("building forecast request: %v", err)), nil
	}

	resp, err := k.httpClient.Do(req)
	if err != nil {
		k.logger.Error("weather fetch failed", "error", err)
		return errorResult(ErrCodeNetwork, fmt.Sprintf("fetching forecast: %v", err)), nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return errorResult(ErrCodeNetwork, fmt.Sprintf("forecast service returned status %d", resp.StatusCode)), nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxWeatherBody))
	if err != nil {
		return errorResult(ErrCodeNetwork, fmt.Sprintf("reading forecast response: %v", err)), nil
	}

	var weather weatherResponse
	if err := json.Unmarshal(body, &weather); err != nil {
		return errorResult(ErrCodeNetwork, fmt.Sprintf("decoding forecast response: %v", err)), nil
	}

	k.logger.Info("weather fetched",
		"latitude", input.Latitude, "longitude", input.Longitude,
		"temperature", weather.Current.Temperature2M)

	return Result{
		Status:  StatusSuccess,
		Message: fmt.Sprintf("Current temperature %.1f°C", weather.Current.Temperature2M),
		Data: map[string]any{
			"timezone":    weather.Timezone,
			"current":     weather.Current,
			"hourly":      weather.Hourly,
			"sunrise":     weather.Daily.Sunrise,
			"sunset":      weather.Daily.Sunset,
			"temperature": weather.Current.Temperature2M,
		},
	}, nil
}
