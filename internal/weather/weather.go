// Пакет weather проксирует прогноз Open-Meteo и кеширует ответы в Redis
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Ошибки валидации координат, тексты отдаются клиенту с кодом 400
var (
	ErrMissingCoords  = errors.New("Missing latitude or longitude")
	ErrInvalidCoords  = errors.New("Invalid latitude or longitude")
	ErrCoordsOutRange = errors.New("Latitude or longitude out of range")
	// ErrUpstream прогноз получить не удалось
	ErrUpstream = errors.New("Failed to fetch weather data")
)

// Cache минимальный интерфейс Redis-кеша
type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// ParseCoords разбирает и проверяет параметры lat и lon
func ParseCoords(lat, lon string) (float64, float64, error) {
	lat, lon = strings.TrimSpace(lat), strings.TrimSpace(lon)
	if lat == "" || lon == "" {
		return 0, 0, ErrMissingCoords
	}
	latitude, err1 := strconv.ParseFloat(lat, 64)
	longitude, err2 := strconv.ParseFloat(lon, 64)
	if err1 != nil || err2 != nil || math.IsNaN(latitude) || math.IsNaN(longitude) {
		return 0, 0, ErrInvalidCoords
	}
	if latitude < -90 || latitude > 90 || longitude < -180 || longitude > 180 {
		return 0, 0, ErrCoordsOutRange
	}
	return latitude, longitude, nil
}

// CacheKey ключ кеша с координатами, округлёнными до двух знаков
func CacheKey(lat, lon float64) string {
	return fmt.Sprintf("weather:%.2f:%.2f", math.Round(lat*100)/100, math.Round(lon*100)/100)
}

type Service struct {
	http    *http.Client
	cache   Cache
	baseURL string
	ttl     time.Duration
	log     zerolog.Logger
}

// NewService создаёт сервис погоды; baseURL обычно https://api.open-meteo.com
func NewService(httpClient *http.Client, cache Cache, baseURL string, ttl time.Duration, log zerolog.Logger) *Service {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Service{http: httpClient, cache: cache, baseURL: strings.TrimRight(baseURL, "/"), ttl: ttl, log: log}
}

// Forecast возвращает JSON прогноза, сначала проверяя кеш
func (s *Service) Forecast(ctx context.Context, lat, lon float64) (json.RawMessage, error) {
	key := CacheKey(lat, lon)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key); err == nil {
			return data, nil
		}
	}

	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("current_weather", "true")
	q.Set("daily", "temperature_2m_max,temperature_2m_min")
	q.Set("timezone", "auto")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v1/forecast?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		s.log.Error().Err(err).Msg("weather upstream request failed")
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		s.log.Error().Int("status", resp.StatusCode).Msg("weather upstream returned error")
		return nil, fmt.Errorf("%w: %s", ErrUpstream, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil || !json.Valid(body) {
		return nil, fmt.Errorf("%w: invalid upstream body", ErrUpstream)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, body, s.ttl); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("failed to cache weather")
		}
	}
	return body, nil
}

// CacheControl значение заголовка Cache-Control для ответа погоды
func (s *Service) CacheControl() string {
	return fmt.Sprintf("public, s-maxage=%d, stale-while-revalidate", int(s.ttl.Seconds()))
}
