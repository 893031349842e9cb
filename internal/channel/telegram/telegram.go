package telegram

import (
	"context"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/relayhub/relay-gateway/internal/channel"
)

// Adapter bridges Telegram chats into the gateway pipeline
type Adapter struct {
	bot      *tgbotapi.BotAPI
	token    string
	incoming chan *channel.Message
}

// New creates a Telegram adapter
func New(token string) *Adapter {
	return &Adapter{
		token:    token,
		incoming: make(chan *channel.Message, 100),
	}
}

func (t *Adapter) Name() string {
	return "telegram"
}

func (t *Adapter) IsEnabled() bool {
	return t.token != ""
}

func (t *Adapter) Start(ctx context.Context) error {
	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return err
	}
	t.bot = bot
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := t.bot.GetUpdatesChan(u)
	go func() {
		for update := range updates {
			if update.Message == nil {
				continue
			}
			msg := &channel.Message{
				ID:        strconv.Itoa(update.Message.MessageID),
				Channel:   "telegram",
				UserID:    strconv.FormatInt(update.Message.Chat.ID, 10),
				Content:   update.Message.Text,
				Timestamp: int64(update.Message.Date),
			}
			t.incoming <- msg
		}
	}()
	return nil
}

func (t *Adapter) Stop() error {
	if t.bot != nil {
		t.bot.StopReceivingUpdates()
	}
	close(t.incoming)
	return nil
}

func (t *Adapter) SendMessage(userID string, resp *channel.Response) error {
	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return err
	}
	reply := tgbotapi.NewMessage(chatID, resp.Content)
	if _, err := t.bot.Send(reply); err != nil {
		return err
	}
	if len(resp.Audio) > 0 {
		voice := tgbotapi.NewVoice(chatID, tgbotapi.FileBytes{Name: "reply.ogg", Bytes: resp.Audio})
		if _, err := t.bot.Send(voice); err != nil {
			return err
		}
	}
	return nil
}

func (t *Adapter) Incoming() <-chan *channel.Message {
	return t.incoming
}
