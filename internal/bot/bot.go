// Package bot serves the obfuscation engine over a Telegram chat. Users send
// Python source as text or as a .py document, tune the session with commands
// and receive the obfuscated result inline or as a file.
package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cast"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/syncx"
	"github.com/zeromicro/go-zero/core/threading"

	"github.com/whit3rabbit/pymixer/internal/config"
	"github.com/whit3rabbit/pymixer/internal/obfuscator"
)

// API is the part of the Telegram client the bot uses. *tgbotapi.BotAPI
// satisfies it.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Bot answers chat updates. Each update is handled on its own goroutine
// with a fresh engine; updates of one chat run one at a time.
type Bot struct {
	api    API
	store  Store
	cfg    config.BotConfig
	octx   *obfuscator.ObfuscationContext
	admin  int64
	ids    *snowflake.Node
	client *http.Client
	chats  syncx.LockedCalls
}

// Option adjusts a Bot.
type Option func(*Bot)

// WithHTTPClient replaces the client used to download documents.
func WithHTTPClient(c *http.Client) Option { return func(b *Bot) { b.client = c } }

// WithNode replaces the request id generator.
func WithNode(n *snowflake.Node) Option { return func(b *Bot) { b.ids = n } }

// New creates a bot. admin is the Telegram id failures are reported to;
// empty disables the reports.
func New(api API, store Store, cfg *config.Config, admin string, opts ...Option) (*Bot, error) {
	if api == nil || store == nil {
		return nil, fmt.Errorf("%w: bot needs an API and a session store", obfuscator.ErrInvalidArgument)
	}
	octx, err := obfuscator.NewObfuscationContext(cfg)
	if err != nil {
		return nil, err
	}
	var adminID int64
	if admin != "" {
		if adminID, err = cast.ToInt64E(admin); err != nil {
			return nil, fmt.Errorf("%w: admin id %q: %v", obfuscator.ErrInvalidArgument, admin, err)
		}
	}
	b := &Bot{
		api:    api,
		store:  store,
		cfg:    cfg.Bot,
		octx:   octx,
		admin:  adminID,
		client: &http.Client{Timeout: 30 * time.Second},
		chats:  syncx.NewLockedCalls(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.ids == nil {
		if b.ids, err = snowflake.NewNode(1); err != nil {
			return nil, fmt.Errorf("failed to create id generator: %w", err)
		}
	}
	return b, nil
}

// Run handles updates until the channel closes or ctx is done, then waits
// for the handlers still running.
func (b *Bot) Run(ctx context.Context, updates <-chan tgbotapi.Update) error {
	group := threading.NewRoutineGroup()
	defer group.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			group.RunSafe(func() {
				b.HandleUpdate(ctx, update)
			})
		}
	}
}

// HandleUpdate answers a single update. Errors are reported to the chat and
// logged, never returned.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	req := b.ids.Generate()
	logx.Debugw("update received",
		logx.Field("request", req.String()),
		logx.Field("chat", msg.Chat.ID),
		logx.Field("command", msg.Command()))

	// Handlers read the session, change it and save it back.
	_, err := b.chats.Do(strconv.FormatInt(msg.Chat.ID, 10), func() (any, error) {
		return nil, b.dispatch(ctx, req, msg)
	})
	if err != nil {
		b.reportFailure(req, msg, err)
	}
}

func (b *Bot) dispatch(ctx context.Context, req snowflake.ID, msg *tgbotapi.Message) error {
	switch {
	case msg.IsCommand():
		return b.handleCommand(ctx, req, msg)
	case msg.Document != nil:
		return b.handleDocument(ctx, msg)
	case msg.Text != "":
		return b.setCode(ctx, msg, msg.Text)
	}
	return nil
}

// userError is a problem with the request itself, shown to the user as is.
type userError struct{ msg string }

func (e *userError) Error() string { return e.msg }

func userErrorf(format string, args ...interface{}) error {
	return &userError{msg: fmt.Sprintf(format, args...)}
}

func (b *Bot) reportFailure(req snowflake.ID, msg *tgbotapi.Message, err error) {
	var uerr *userError
	if errors.As(err, &uerr) {
		b.reply(msg, uerr.msg)
		return
	}

	logx.Errorw("request failed",
		logx.Field("request", req.String()),
		logx.Field("chat", msg.Chat.ID),
		logx.Field("error", err.Error()))
	b.reply(msg, fmt.Sprintf("Obfuscation failed: %v\nRequest id: %s", err, req))

	if b.admin != 0 && b.admin != msg.Chat.ID {
		from := "unknown"
		if msg.From != nil {
			from = fmt.Sprintf("%d (@%s)", msg.From.ID, msg.From.UserName)
		}
		notice := tgbotapi.NewMessage(b.admin, fmt.Sprintf("Request %s from %s failed: %v", req, from, err))
		if _, sendErr := b.api.Send(notice); sendErr != nil {
			logx.Errorf("failed to notify admin about request %s: %v", req, sendErr)
		}
	}
}

func (b *Bot) reply(msg *tgbotapi.Message, text string) {
	out := tgbotapi.NewMessage(msg.Chat.ID, text)
	out.ReplyToMessageID = msg.MessageID
	if _, err := b.api.Send(out); err != nil {
		logx.Errorf("failed to reply in chat %d: %v", msg.Chat.ID, err)
	}
}
