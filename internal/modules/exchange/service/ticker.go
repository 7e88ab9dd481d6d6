package service

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"signal_bot/internal/models"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// Ticker returns the last traded price for a symbol.
func (c *Client) Ticker(ctx context.Context, symbol string) (models.Quote, error) {
	path := "/api/v2/spot/market/tickers?symbol=" + url.QueryEscape(symbol)
	data, err := c.doWithRetry(ctx, "ticker", http.MethodGet, path, nil)
	if err != nil {
		return models.Quote{}, err
	}

	var r apiResponse[[]tickerData]
	if err := sonic.Unmarshal(data, &r); err != nil {
		return models.Quote{}, errors.Wrapf(err, "ticker decode: %s", string(data))
	}
	if r.Code != codeOK {
		return models.Quote{}, errors.Errorf("ticker error: code=%s msg=%s", r.Code, r.Msg)
	}
	if len(r.Data) == 0 {
		return models.Quote{}, errors.Errorf("ticker: no data for %s", symbol)
	}

	d := r.Data[0]
	price, err := strconv.ParseFloat(d.LastPr, 64)
	if err != nil || price <= 0 {
		return models.Quote{}, errors.Errorf("ticker: bad lastPr %q for %s", d.LastPr, symbol)
	}

	q := models.Quote{Symbol: symbol, Price: price, At: time.Now().UTC()}
	if ms, err := strconv.ParseInt(d.Ts, 10, 64); err == nil {
		q.At = time.UnixMilli(ms).UTC()
	}
	return q, nil
}
