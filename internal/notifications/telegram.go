package notifications

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/Lodewijkheemskerk/BluePrint/internal/domain"
)

// TelegramNotifier pushes setup alerts to a Telegram chat. Delivery is best
// effort: failures are logged, never propagated.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    zerolog.Logger
}

// NewTelegramNotifier connects to the Telegram bot API.
func NewTelegramNotifier(token string, chatID int64, log zerolog.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	return &TelegramNotifier{
		bot:    bot,
		chatID: chatID,
		log:    log.With().Str("component", "notifications").Logger(),
	}, nil
}

// NotifySetup sends a formatted alert for a freshly detected setup.
func (t *TelegramNotifier) NotifySetup(ctx context.Context, setup *domain.Setup, strategy *domain.Strategy) {
	msg := tgbotapi.NewMessage(t.chatID, formatSetup(setup, strategy))
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := t.bot.Send(msg); err != nil {
		t.log.Warn().Err(err).Str("symbol", setup.Symbol).Msg("failed to send setup alert")
	}
}

func formatSetup(setup *domain.Setup, strategy *domain.Strategy) string {
	arrow := "📈"
	if setup.Direction == domain.Short {
		arrow = "📉"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s *New Setup: %s*\n\n", arrow, setup.Symbol)
	fmt.Fprintf(&b, "Strategy: %s\n", strategy.Name)
	fmt.Fprintf(&b, "Direction: %s\n", setup.Direction)
	fmt.Fprintf(&b, "Regime: %s\n\n", setup.MarketRegime)
	fmt.Fprintf(&b, "Entry: %.8g\n", setup.Entry)
	fmt.Fprintf(&b, "Stop: %.8g\n", setup.StopLoss)
	fmt.Fprintf(&b, "TP1: %.8g | TP2: %.8g | TP3: %.8g\n", setup.TakeProfit1, setup.TakeProfit2, setup.TakeProfit3)
	fmt.Fprintf(&b, "R:R %.2f\n\n", setup.RiskReward)
	fmt.Fprintf(&b, "Conditions: %d required met, %d bonus", setup.RequiredMet, setup.BonusMet)
	return b.String()
}
