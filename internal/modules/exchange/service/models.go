package service

// apiResponse is the common Bitget v2 envelope.
type apiResponse[T any] struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data T      `json:"data"`
}

const codeOK = "00000"

type placeOrderData struct {
	OrderID   string `json:"orderId"`
	ClientOid string `json:"clientOid"`
}

type orderInfoData struct {
	OrderID    string `json:"orderId"`
	ClientOid  string `json:"clientOid"`
	Symbol     string `json:"symbol"`
	Status     string `json:"status"`
	BaseVolume string `json:"baseVolume"` // cumulative filled base quantity
	PriceAvg   string `json:"priceAvg"`
	UTime      string `json:"uTime"` // ms
}

type tickerData struct {
	Symbol string `json:"symbol"`
	LastPr string `json:"lastPr"`
	Ts     string `json:"ts"` // ms
}
