package notify

import (
	"context"
	"fmt"
	"log"
	"strings"

	"signal_bot/internal/models"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Notifier interface {
	Send(msg string)
	Sendf(format string, args ...any)
}

// PortfolioView backs the /positions command.
type PortfolioView interface {
	Snapshot(ctx context.Context) (models.PortfolioSnapshot, error)
}

// Telegram is a passive notifier plus a /positions command. It never blocks
// the trading path: all sends are fire and forget.
type Telegram struct {
	bot       *tgbot.BotAPI
	chatID    int64
	portfolio PortfolioView
}

func NewTelegram(token string, chatID int64, portfolio PortfolioView) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: b, chatID: chatID, portfolio: portfolio}, nil
}

func (t *Telegram) Send(msg string) {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return
	}
	_, _ = t.bot.Send(tgbot.NewMessage(t.chatID, msg))
}

func (t *Telegram) Sendf(format string, args ...any) { t.Send(fmt.Sprintf(format, args...)) }

func (t *Telegram) handlePositions(ctx context.Context) {
	if t.portfolio == nil {
		t.Send("portfolio view not wired")
		return
	}
	snap, err := t.portfolio.Snapshot(ctx)
	if err != nil {
		t.Sendf("positions error: %v", err)
		return
	}
	if len(snap.OpenPositions) == 0 && len(snap.ClosedTrades) == 0 {
		t.Send("no positions, no closed trades")
		return
	}

	var b strings.Builder
	if len(snap.OpenPositions) > 0 {
		b.WriteString("Open positions:\n")
		for _, p := range snap.OpenPositions {
			fmt.Fprintf(&b, "- %s qty=%.8f avg=%.4f since %s",
				p.Symbol, p.Quantity, p.AverageEntryPrice,
				p.OpenedAt.Format("2006-01-02 15:04"))
			if p.CurrentPrice > 0 {
				fmt.Fprintf(&b, " now=%.4f upnl=%.4f", p.CurrentPrice, p.UnrealizedPnL)
			}
			b.WriteString("\n")
		}
	}
	if n := len(snap.ClosedTrades); n > 0 {
		fmt.Fprintf(&b, "Closed trades: %d, last:\n", n)
		last := snap.ClosedTrades[n-1]
		fmt.Fprintf(&b, "- %s sold=%.8f pnl=%.4f (%.2f%%)\n",
			last.Symbol, last.QuantitySold, last.RealizedPnL, last.PnLPercent)
	}
	t.Send(b.String())
}

// Start runs long polling for commands. Non-blocking.
func (t *Telegram) Start(ctx context.Context) error {
	if t == nil || t.bot == nil {
		return nil
	}

	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message"}

	updates := t.bot.GetUpdatesChan(u)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case upd := <-updates:
				if upd.Message == nil || upd.Message.Chat == nil ||
					upd.Message.Chat.ID != t.chatID || !upd.Message.IsCommand() {
					continue
				}
				switch upd.Message.Command() {
				case "positions":
					go t.handlePositions(ctx)
				}
			}
		}
	}()
	return nil
}

// Stdout is the fallback when no telegram token is configured.
type Stdout struct{}

func NewStdout() *Stdout                           { return &Stdout{} }
func (s *Stdout) Send(msg string)                  { log.Println(msg) }
func (s *Stdout) Sendf(format string, args ...any) { log.Printf(format, args...) }
