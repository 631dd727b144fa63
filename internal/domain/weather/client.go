package weather

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// Fetcher returns current conditions for a location.
type Fetcher interface {
	Current(ctx context.Context, loc Location) (*Conditions, error)
}

// Client reads current conditions from the OpenWeatherMap API. Failed
// calls are not retried.
type Client struct {
	http   *resty.Client
	apiKey string
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
		apiKey: apiKey,
	}
}

type owmResponse struct {
	Name    string `json:"name"`
	Weather []struct {
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Clouds struct {
		All int `json:"all"`
	} `json:"clouds"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

func (c *Client) Current(ctx context.Context, loc Location) (*Conditions, error) {
	var body owmResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"lat":   strconv.FormatFloat(loc.Lat, 'f', -1, 64),
			"lon":   strconv.FormatFloat(loc.Lon, 'f', -1, 64),
			"appid": c.apiKey,
			"units": "metric",
		}).
		SetResult(&body).
		Get("/data/2.5/weather")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode())
	}
	if len(body.Weather) == 0 {
		return nil, fmt.Errorf("%w: response has no conditions", ErrFetch)
	}
	w := body.Weather[0]
	return &Conditions{
		Location:     loc,
		Place:        body.Name,
		Description:  w.Description,
		Icon:         w.Icon,
		IconURL:      "https://openweathermap.org/img/wn/" + w.Icon + "@2x.png",
		TemperatureC: body.Main.Temp,
		Humidity:     body.Main.Humidity,
		Clouds:       body.Clouds.All,
		WindSpeed:    body.Wind.Speed,
	}, nil
}
