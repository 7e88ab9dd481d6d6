package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"signal_bot/internal/models"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

const maxCandlesPerRequest = 200

func granularity(timeframe string) (string, error) {
	switch models.NormTF(timeframe) {
	case "15m":
		return "15min", nil
	case "1h":
		return "1h", nil
	case "4h":
		return "4h", nil
	case "1d":
		return "1day", nil
	}
	return "", fmt.Errorf("unsupported timeframe %q", timeframe)
}

// Candles fetches closed bars in [from, to]. Venue rows carry the bar-open
// timestamp; locally a candle is keyed by its close, so each row is shifted
// forward one bar. Bars whose close is still in the future are dropped.
func (c *Client) Candles(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]models.Candle, error) {
	gran, err := granularity(timeframe)
	if err != nil {
		return nil, err
	}
	d := models.TFDuration(timeframe)

	path := fmt.Sprintf("/api/v2/spot/market/candles?symbol=%s&granularity=%s&startTime=%d&endTime=%d&limit=%d",
		url.QueryEscape(symbol), gran, from.Add(-d).UnixMilli(), to.UnixMilli(), maxCandlesPerRequest)

	data, err := c.doWithRetry(ctx, "candles", http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var r apiResponse[[][]string]
	if err := sonic.Unmarshal(data, &r); err != nil {
		return nil, errors.Wrapf(err, "candles decode: %s", string(data))
	}
	if r.Code != codeOK {
		return nil, errors.Errorf("candles error: code=%s msg=%s", r.Code, r.Msg)
	}

	now := time.Now().UTC()
	out := make([]models.Candle, 0, len(r.Data))
	for _, row := range r.Data {
		if len(row) < 6 {
			continue
		}
		ms, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			continue
		}
		closeTime := time.UnixMilli(ms).UTC().Add(d)
		if closeTime.After(now) {
			// bar still forming
			continue
		}
		if closeTime.Before(from) || closeTime.After(to) {
			continue
		}

		open, _ := strconv.ParseFloat(row[1], 64)
		high, _ := strconv.ParseFloat(row[2], 64)
		low, _ := strconv.ParseFloat(row[3], 64)
		cl, _ := strconv.ParseFloat(row[4], 64)
		vol, _ := strconv.ParseFloat(row[5], 64)

		out = append(out, models.Candle{
			Timestamp: closeTime,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     cl,
			Volume:    vol,
			Symbol:    symbol,
			Timeframe: models.NormTF(timeframe),
		})
	}
	return out, nil
}
