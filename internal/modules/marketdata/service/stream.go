package service

import (
	"context"
	"strconv"
	"time"

	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	"signal_bot/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

// Stream maintains one websocket per timeframe with the whole watchlist
// batched into a single subscription. Only closed bars come out: the venue
// pushes the forming bar on every trade, so a bar counts as closed the
// moment a row with a newer open timestamp arrives for the same symbol.
type Stream struct {
	wsURL    string
	wsDialer *websocket.Dialer
}

func NewStream(cfg *config.Config) *Stream {
	return &Stream{
		wsURL:    cfg.Exchange.WsURL,
		wsDialer: &websocket.Dialer{},
	}
}

func wsChannel(timeframe string) string {
	switch models.NormTF(timeframe) {
	case "15m":
		return "candle15m"
	case "1h":
		return "candle1H"
	case "4h":
		return "candle4H"
	case "1d":
		return "candle1D"
	}
	return ""
}

type wsFrame struct {
	Action string `json:"action"`
	Arg    struct {
		Channel string `json:"channel"`
		InstID  string `json:"instId"`
	} `json:"arg"`
	Data [][]string `json:"data"`
}

// StreamCandles streams closed bars for all symbols on one timeframe. The
// channel closes when ctx is done; every disconnect reconnects and
// resubscribes on its own.
func (s *Stream) StreamCandles(ctx context.Context, symbols []string, timeframe string) <-chan models.Candle {
	ch := make(chan models.Candle)

	go func() {
		defer close(ch)

		channel := wsChannel(timeframe)
		if channel == "" || len(symbols) == 0 {
			logger.Error("stream: nothing to subscribe (tf=%q, %d symbols)", timeframe, len(symbols))
			return
		}
		tfDur := models.TFDuration(timeframe)

		args := make([]map[string]string, 0, len(symbols))
		for _, sym := range symbols {
			args = append(args, map[string]string{
				"instType": "SPOT",
				"channel":  channel,
				"instId":   sym,
			})
		}

		// forming bar per symbol; flushed as closed on rollover
		forming := map[string]models.Candle{}

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			logger.Info("stream: connect %s, %d symbols", channel, len(symbols))
			conn, _, err := s.wsDialer.DialContext(ctx, s.wsURL, nil)
			if err != nil {
				logger.Error("stream: dial %s: %v", channel, err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
				continue
			}

			sub, _ := sonic.Marshal(map[string]any{"op": "subscribe", "args": args})
			if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
				logger.Error("stream: subscribe %s: %v", channel, err)
				_ = conn.Close()
				continue
			}

			stopPing := make(chan struct{})
			go func() {
				t := time.NewTicker(30 * time.Second)
				defer t.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-stopPing:
						return
					case <-t.C:
						// the venue drops quiet connections
						_ = conn.WriteMessage(websocket.TextMessage, []byte("ping"))
					}
				}
			}()

			s.readLoop(ctx, conn, channel, timeframe, tfDur, forming, ch)
			close(stopPing)
			_ = conn.Close()

			if ctx.Err() != nil {
				return
			}
		}
	}()

	return ch
}

func (s *Stream) readLoop(
	ctx context.Context,
	conn *websocket.Conn,
	channel, timeframe string,
	tfDur time.Duration,
	forming map[string]models.Candle,
	out chan<- models.Candle,
) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				logger.Error("stream: read %s: %v", channel, err)
			}
			return
		}
		if string(msg) == "pong" {
			continue
		}

		var frame wsFrame
		if err := sonic.Unmarshal(msg, &frame); err != nil {
			continue
		}
		if frame.Arg.Channel != channel || len(frame.Data) == 0 {
			continue
		}

		for _, row := range frame.Data {
			candle, ok := parseRow(frame.Arg.InstID, timeframe, tfDur, row)
			if !ok {
				continue
			}

			prev, have := forming[frame.Arg.InstID]
			if have && candle.Timestamp.After(prev.Timestamp) {
				// a newer bar opened: the cached one is final
				select {
				case out <- prev:
				case <-ctx.Done():
					return
				}
			}
			forming[frame.Arg.InstID] = candle
		}
	}
}

// parseRow maps a [ts,o,h,l,c,baseVol,...] row to a candle keyed by bar
// close.
func parseRow(symbol, timeframe string, tfDur time.Duration, row []string) (models.Candle, bool) {
	if len(row) < 6 {
		return models.Candle{}, false
	}
	ms, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return models.Candle{}, false
	}

	var vals [5]float64
	for i := 0; i < 5; i++ {
		v, err := strconv.ParseFloat(row[i+1], 64)
		if err != nil {
			return models.Candle{}, false
		}
		vals[i] = v
	}
	if vals[3] <= 0 {
		return models.Candle{}, false
	}

	return models.Candle{
		Timestamp: time.UnixMilli(ms).UTC().Add(tfDur),
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    vals[4],
		Symbol:    symbol,
		Timeframe: models.NormTF(timeframe),
	}, true
}
