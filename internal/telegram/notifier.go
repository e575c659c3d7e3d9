package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/camuig/coin-sim/internal/config"
	"github.com/camuig/coin-sim/internal/logger"
	"github.com/camuig/coin-sim/internal/market"
	"github.com/camuig/coin-sim/internal/trading"
	"github.com/camuig/coin-sim/internal/triggers"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Notifier struct {
	bot     sender
	chatID  int64
	enabled bool
	logger  *logger.Logger
}

func NewNotifier(cfg *config.Config, log *logger.Logger) *Notifier {
	if !cfg.Telegram.Enabled {
		return &Notifier{enabled: false, logger: log}
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		log.Error("failed to create telegram bot", "error", err)
		return &Notifier{enabled: false, logger: log}
	}

	log.Info("telegram bot connected", "username", bot.Self.UserName)

	return &Notifier{
		bot:     bot,
		chatID:  cfg.Telegram.ChatID,
		enabled: true,
		logger:  log,
	}
}

func (n *Notifier) NotifyTrade(tx trading.Transaction) {
	n.send(formatTrade(tx))
}

func (n *Notifier) NotifyTriggerFill(f triggers.Fill) {
	n.send(formatTriggerFill(f))
}

func (n *Notifier) NotifyEvent(e market.Event) {
	n.send(fmt.Sprintf("📣 *%s*\nImpact: %+.1f%% on %d coin(s)", escape(e.Message), e.Impact*100, len(e.Affected)))
}

func (n *Notifier) NotifyError(context string, err error) {
	n.send(fmt.Sprintf("⚠️ *Error* [%s]\n%s", escape(context), escape(err.Error())))
}

func (n *Notifier) NotifyStatus(message string) {
	n.send(message)
}

func formatTrade(tx trading.Transaction) string {
	emoji, verb := "🟢", "BUY"
	if tx.Action == trading.Sell {
		emoji, verb = "🔴", "SELL"
	}
	return fmt.Sprintf("%s *%s* %s %s\nUser: %s\nPrice: %s\nTotal: %s",
		emoji, verb, tx.Amount.StringFixed(3), tx.Ticker, escape(tx.UserID),
		tx.Price.StringFixed(4), tx.Total.StringFixed(2))
}

func formatTriggerFill(f triggers.Fill) string {
	return fmt.Sprintf("🎯 *Trigger fired* %s %s %s\nUser: %s\nTrigger: %s, executed at %s",
		f.Order.Direction, f.Trade.Amount.StringFixed(3), f.Order.Ticker, escape(f.Order.UserID),
		f.Order.TriggerPrice.StringFixed(4), f.Trade.Price.StringFixed(4))
}

func (n *Notifier) send(text string) {
	if !n.enabled {
		return
	}

	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Error("send telegram message", "error", err)
	}
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}
