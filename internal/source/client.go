// Package source реализует клиент исторического API FIWARE STH-Comet
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"sensordash/internal/models"
)

// ErrorKind классифицирует ошибки получения данных
type ErrorKind string

const (
	// KindTransport сетевая ошибка или HTTP-статус не 2xx
	KindTransport ErrorKind = "transport"
	// KindSchema ответ не содержит ожидаемых ключей
	KindSchema ErrorKind = "schema"
)

var (
	// ErrUnknownSeries ряд не сопоставлен атрибуту сущности
	ErrUnknownSeries = errors.New("unknown series")
	// ErrInvalidWindow lastN должен быть положительным
	ErrInvalidWindow = errors.New("lastN must be positive")
)

// FetchError восстанавливаемая ошибка: вызывающий трактует ее как пустую выборку
type FetchError struct {
	Kind       ErrorKind
	Series     models.SeriesID
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s fetch %s: status %d: %v", e.Kind, e.Series, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s fetch %s: %v", e.Kind, e.Series, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Config содержит параметры подключения к STH
type Config struct {
	Scheme      string
	Host        string
	Port        int
	Service     string
	ServicePath string
	EntityType  string
	EntityID    string
	Timeout     time.Duration
	// Attributes сопоставляет ряд атрибуту; по умолчанию имя атрибута совпадает с рядом
	Attributes map[models.SeriesID]string
}

// Client выполняет запросы к STH
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient создает клиента. httpClient может быть nil.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if cfg.Scheme == "" {
		cfg.Scheme = "http"
	}
	if cfg.Attributes == nil {
		cfg.Attributes = make(map[models.SeriesID]string, len(models.AllSeries))
		for _, id := range models.AllSeries {
			cfg.Attributes[id] = string(id)
		}
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{cfg: cfg, httpClient: httpClient}
}

// URL строит адрес запроса для ряда
func (c *Client) URL(id models.SeriesID, lastN int) (string, error) {
	attr, ok := c.cfg.Attributes[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownSeries, id)
	}
	u := url.URL{
		Scheme: c.cfg.Scheme,
		Host:   fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port),
		Path: fmt.Sprintf("/STH/v1/contextEntities/type/%s/id/%s/attributes/%s",
			c.cfg.EntityType, c.cfg.EntityID, attr),
		RawQuery: url.Values{"lastN": []string{strconv.Itoa(lastN)}}.Encode(),
	}
	return u.String(), nil
}

// Fetch запрашивает lastN последних записей ряда.
// Ошибки транспорта и схемы возвращаются как *FetchError вместе с пустым срезом.
func (c *Client) Fetch(ctx context.Context, id models.SeriesID, lastN int) ([]models.RawRecord, error) {
	if lastN <= 0 {
		return nil, ErrInvalidWindow
	}
	endpoint, err := c.URL(id, lastN)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &FetchError{Kind: KindTransport, Series: id, Err: err}
	}
	req.Header.Set("fiware-service", c.cfg.Service)
	req.Header.Set("fiware-servicepath", c.cfg.ServicePath)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Kind: KindTransport, Series: id, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{
			Kind:       KindTransport,
			Series:     id,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("error accessing %s", endpoint),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Kind: KindTransport, Series: id, Err: err}
	}

	records, err := decodeValues(body)
	if err != nil {
		return nil, &FetchError{Kind: KindSchema, Series: id, Err: err}
	}
	return records, nil
}

// sthResponse конверт ответа STH
type sthResponse struct {
	ContextResponses []struct {
		ContextElement *struct {
			Attributes []struct {
				Values *[]sthValue `json:"values"`
			} `json:"attributes"`
		} `json:"contextElement"`
	} `json:"contextResponses"`
}

type sthValue struct {
	AttrValue attrValue `json:"attrValue"`
	RecvTime  string    `json:"recvTime"`
}

// attrValue принимает attrValue и строкой, и числом.
// Прочие токены сохраняются как есть, запись отбросит нормализация.
type attrValue string

func (v *attrValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = attrValue(s)
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		*v = attrValue(data)
		return nil
	}
	*v = attrValue(n.String())
	return nil
}

func decodeValues(body []byte) ([]models.RawRecord, error) {
	var env sthResponse
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(env.ContextResponses) == 0 {
		return nil, errors.New("missing key contextResponses")
	}
	elem := env.ContextResponses[0].ContextElement
	if elem == nil {
		return nil, errors.New("missing key contextElement")
	}
	if len(elem.Attributes) == 0 {
		return nil, errors.New("missing key attributes")
	}
	values := elem.Attributes[0].Values
	if values == nil {
		return nil, errors.New("missing key values")
	}

	records := make([]models.RawRecord, 0, len(*values))
	for _, v := range *values {
		records = append(records, models.RawRecord{
			AttrValue: string(v.AttrValue),
			RecvTime:  v.RecvTime,
		})
	}
	return records, nil
}
