// Package chainfeed implements the ChainProvider against the option
// market-data service: chain discovery over REST, quote pushes over
// WebSocket.
package chainfeed

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"GexFlow/internal/domain/models"
	drepo "GexFlow/internal/domain/repository"
	xhttp "GexFlow/pkg/http"
	applogger "GexFlow/pkg/logger"
)

type Client struct {
	baseURL        string
	wsURL          string
	apiKey         string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	rest           *xhttp.Client
	log            *applogger.Logger

	mu        sync.Mutex
	conn      wsConn
	connected bool
	closed    bool
	handlers  map[string]map[int]func() // symbol -> subscription id -> callback
	nextID    int

	// writeMu serializes every conn write: gorilla/websocket allows a
	// single concurrent writer, and pings can coincide with the subscribe
	// bursts a reload or reconnect produces.
	writeMu sync.Mutex
}

// New creates a chainfeed client. Call Connect before Subscribe.
func New(baseURL, wsURL, apiKey string, requestTimeout, reconnectDelay, pingInterval time.Duration, log *applogger.Logger) *Client {
	return &Client{
		baseURL:        baseURL,
		wsURL:          wsURL,
		apiKey:         apiKey,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		rest: xhttp.NewClient(
			xhttp.WithTimeout(requestTimeout),
			xhttp.WithBearerToken(apiKey),
		),
		log:      log,
		handlers: make(map[string]map[int]func()),
	}
}

type expirationsResp struct {
	Expirations []string `json:"expirations"`
}

// ListExpirationSeries returns the chain's expirations, nearest first.
func (c *Client) ListExpirationSeries(ctx context.Context, underlying string) ([]models.ExpirationSeries, error) {
	var er expirationsResp
	q := url.Values{"symbol": {underlying}}
	if err := c.rest.GetJSON(ctx, c.baseURL+"/v1/options/expirations", q, &er); err != nil {
		return nil, fmt.Errorf("chainfeed expirations: %w", err)
	}

	series := make([]models.ExpirationSeries, 0, len(er.Expirations))
	for _, e := range er.Expirations {
		exp, err := time.Parse("2006-01-02", e)
		if err != nil {
			c.log.Warn("skipping malformed expiration",
				applogger.String("expiration", e),
				applogger.Error(err))
			continue
		}
		series = append(series, models.ExpirationSeries{Underlying: underlying, Expiration: exp})
	}
	sort.Slice(series, func(i, j int) bool {
		return series[i].Expiration.Before(series[j].Expiration)
	})
	return series, nil
}

type chainContract struct {
	Symbol       string  `json:"symbol"`
	Strike       float64 `json:"strike"`
	Type         string  `json:"type"`
	Ask          float64 `json:"ask"`
	OpenInterest int64   `json:"open_interest"`
}

type chainResp struct {
	Contracts []chainContract `json:"contracts"`
}

// ListStrikes returns the live contract quotes of a series. Spot and pricing
// inputs are stamped by the caller.
func (c *Client) ListStrikes(ctx context.Context, series models.ExpirationSeries) ([]models.ContractQuote, error) {
	var cr chainResp
	q := url.Values{
		"symbol":     {series.Underlying},
		"expiration": {series.Expiration.Format("2006-01-02")},
	}
	if err := c.rest.GetJSON(ctx, c.baseURL+"/v1/options/chain", q, &cr); err != nil {
		return nil, fmt.Errorf("chainfeed chain: %w", err)
	}

	quotes := make([]models.ContractQuote, 0, len(cr.Contracts))
	for _, ct := range cr.Contracts {
		typ := models.Call
		if ct.Type == "put" {
			typ = models.Put
		}
		quotes = append(quotes, models.ContractQuote{
			Symbol:       ct.Symbol,
			Strike:       ct.Strike,
			Type:         typ,
			Ask:          ct.Ask,
			OpenInterest: ct.OpenInterest,
		})
	}
	return quotes, nil
}

type quoteResp struct {
	Symbol string  `json:"symbol"`
	Last   float64 `json:"last"`
}

// Spot returns the last traded price of the underlying.
func (c *Client) Spot(ctx context.Context, underlying string) (float64, error) {
	var qr quoteResp
	q := url.Values{"symbol": {underlying}}
	if err := c.rest.GetJSON(ctx, c.baseURL+"/v1/quotes/last", q, &qr); err != nil {
		return 0, fmt.Errorf("chainfeed spot: %w", err)
	}
	if qr.Last <= 0 {
		return 0, fmt.Errorf("chainfeed spot: non-positive last %v for %s", qr.Last, underlying)
	}
	return qr.Last, nil
}

var _ drepo.ChainProvider = (*Client)(nil)
