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

// venue status spellings, mapped onto the local state machine
func mapStatus(s string) models.OrderStatus {
	switch s {
	case "live", "new", "init":
		return models.OrderSubmitted
	case "partially_filled":
		return models.OrderPartiallyFilled
	case "filled":
		return models.OrderFilled
	case "cancelled", "canceled":
		return models.OrderCanceled
	case "rejected":
		return models.OrderRejected
	}
	return models.OrderSubmitted
}

// OrderStatus fetches the current exchange-side state of one order.
func (c *Client) OrderStatus(ctx context.Context, orderID string) (models.OrderUpdate, error) {
	path := "/api/v2/spot/trade/orderInfo?orderId=" + url.QueryEscape(orderID)
	data, err := c.doWithRetry(ctx, "order status", http.MethodGet, path, nil)
	if err != nil {
		return models.OrderUpdate{}, err
	}

	var r apiResponse[[]orderInfoData]
	if err := sonic.Unmarshal(data, &r); err != nil {
		return models.OrderUpdate{}, errors.Wrapf(err, "order status decode: %s", string(data))
	}
	if r.Code != codeOK {
		return models.OrderUpdate{}, errors.Errorf("order status error: code=%s msg=%s", r.Code, r.Msg)
	}
	if len(r.Data) == 0 {
		return models.OrderUpdate{}, errors.Errorf("order %s not found", orderID)
	}

	d := r.Data[0]
	filled, _ := strconv.ParseFloat(d.BaseVolume, 64)
	avgPx, _ := strconv.ParseFloat(d.PriceAvg, 64)
	upd := models.OrderUpdate{
		OrderID:        d.OrderID,
		Status:         mapStatus(d.Status),
		FilledQuantity: filled,
		AvgFillPrice:   avgPx,
	}
	if ms, err := strconv.ParseInt(d.UTime, 10, 64); err == nil {
		upd.UpdatedAt = time.UnixMilli(ms).UTC()
	}
	return upd, nil
}
