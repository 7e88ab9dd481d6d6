package service

import (
	"context"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// CancelOrder asks the venue to cancel. The tracker picks up the resulting
// CANCELED state on its next poll; fills that landed before the cancel stay.
func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) error {
	payload, err := sonic.Marshal(map[string]string{
		"symbol":  symbol,
		"orderId": orderID,
	})
	if err != nil {
		return errors.Wrap(err, "cancel order marshal")
	}

	data, err := c.doWithRetry(ctx, "cancel order", http.MethodPost, "/api/v2/spot/trade/cancel-order", payload)
	if err != nil {
		return err
	}

	var r apiResponse[placeOrderData]
	if err := sonic.Unmarshal(data, &r); err != nil {
		return errors.Wrapf(err, "cancel order decode: %s", string(data))
	}
	if r.Code != codeOK {
		return errors.Errorf("cancel order error: code=%s msg=%s", r.Code, r.Msg)
	}
	return nil
}
