package service

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"signal_bot/internal/apperrors"
	"signal_bot/internal/models"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// PlaceOrder submits the intent as a spot order with our clientID attached
// for reconciliation. The returned Order is in SUBMITTED state; the tracker
// owns it from there.
func (c *Client) PlaceOrder(ctx context.Context, intent *models.OrderIntent, clientID string) (*models.Order, error) {
	if intent.Quantity <= 0 {
		return nil, fmt.Errorf("place order: quantity <= 0")
	}

	body := map[string]string{
		"symbol":    intent.Symbol,
		"side":      sideParam(intent.Side),
		"orderType": string(intent.Type),
		"force":     "gtc",
		"size":      strconv.FormatFloat(intent.Quantity, 'f', -1, 64),
		"clientOid": clientID,
	}
	if intent.Type == models.OrderLimit {
		body["price"] = strconv.FormatFloat(intent.Price, 'f', -1, 64)
	}

	payload, err := sonic.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "place order marshal")
	}

	data, err := c.doWithRetry(ctx, "place order", http.MethodPost, "/api/v2/spot/trade/place-order", payload)
	if err != nil {
		return nil, err
	}

	var r apiResponse[placeOrderData]
	if err := sonic.Unmarshal(data, &r); err != nil {
		return nil, errors.Wrapf(err, "place order decode: %s", string(data))
	}
	if r.Code != codeOK {
		return nil, &apperrors.ExchangeRejectedError{
			Symbol: intent.Symbol,
			Reason: fmt.Sprintf("code=%s msg=%s", r.Code, r.Msg),
		}
	}
	if r.Data.OrderID == "" {
		return nil, errors.Errorf("place order: empty orderId in %s", string(data))
	}

	now := time.Now().UTC()
	return &models.Order{
		ID:                r.Data.OrderID,
		ClientID:          clientID,
		Symbol:            intent.Symbol,
		Side:              intent.Side,
		Type:              intent.Type,
		RequestedQuantity: intent.Quantity,
		RequestedPrice:    intent.Price,
		Status:            models.OrderSubmitted,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

func sideParam(s models.Side) string {
	if s == models.SideBuy {
		return "buy"
	}
	return "sell"
}
