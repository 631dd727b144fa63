package weather

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrUnavailable means the provider answered with an error status.
	ErrUnavailable = errors.New("weather provider unavailable")
	// ErrFetch means the provider could not be reached or decoded.
	ErrFetch = errors.New("weather fetch failed")
)

// Inline messages shown in place of the weather card.
const (
	MsgUnavailable = "Unable to load weather data."
	MsgFetchError  = "Error fetching weather."
)

type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// key groups nearby requests onto one cached entry.
func (l Location) key() string {
	return fmt.Sprintf("%.2f,%.2f", math.Round(l.Lat*100)/100, math.Round(l.Lon*100)/100)
}

type Conditions struct {
	Location     Location  `json:"location"`
	Place        string    `json:"place,omitempty"`
	Description  string    `json:"description"`
	Icon         string    `json:"icon"`
	IconURL      string    `json:"iconUrl"`
	TemperatureC float64   `json:"temperatureC"`
	Humidity     int       `json:"humidity"`
	Clouds       int       `json:"clouds"`
	WindSpeed    float64   `json:"windSpeed"`
	FetchedAt    time.Time `json:"fetchedAt"`
}

type Query struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lon float64 `json:"lon" validate:"longitude"`
}
