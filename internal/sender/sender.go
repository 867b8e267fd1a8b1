// Package sender delivers reminder messages to members.
package sender

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"github.com/lomoval/sked/internal/rabbit"
	log "github.com/sirupsen/logrus"
)

var ErrNoSinks = errors.New("no delivery sinks configured")

type Sink interface {
	Send(ctx context.Context, m rabbit.Message) error
}

// Sender fans a message out to every sink.
type Sender struct {
	sinks []Sink
}

func New(sinks ...Sink) (*Sender, error) {
	if len(sinks) == 0 {
		return nil, ErrNoSinks
	}
	return &Sender{sinks: sinks}, nil
}

// Process is a rabbit.MessageProcess. A failing sink does not stop the others.
func (s *Sender) Process(ctx context.Context, m rabbit.Message) error {
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Send(ctx, m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type LogSink struct{}

func (LogSink) Send(_ context.Context, m rabbit.Message) error {
	log.WithField("event", m.EventID).WithField("member", m.MemberID).Info(m.Text())
	return nil
}

type TelegramConfig struct {
	Token string
	// Chats maps member IDs to Telegram chat IDs.
	Chats map[string]string
}

type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TelegramSink struct {
	bot   botAPI
	chats map[string]int64
}

func NewTelegramSink(config TelegramConfig) (*TelegramSink, error) {
	chats, err := parseChats(config.Chats)
	if err != nil {
		return nil, err
	}
	bot, err := tgbotapi.NewBotAPI(config.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	log.Infof("authorized telegram bot %s", bot.Self.UserName)
	return &TelegramSink{bot: bot, chats: chats}, nil
}

func parseChats(chats map[string]string) (map[string]int64, error) {
	result := make(map[string]int64, len(chats))
	for member, chat := range chats {
		id, err := strconv.ParseInt(chat, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chat id %q for member %q: %w", chat, member, err)
		}
		result[member] = id
	}
	return result, nil
}

// Send skips members without a chat.
func (t *TelegramSink) Send(_ context.Context, m rabbit.Message) error {
	chat, ok := t.chats[m.MemberID]
	if !ok {
		log.Debugf("no telegram chat for member %s", m.MemberID)
		return nil
	}
	if _, err := t.bot.Send(tgbotapi.NewMessage(chat, m.Text())); err != nil {
		return fmt.Errorf("failed to send telegram message to member %s: %w", m.MemberID, err)
	}
	return nil
}
