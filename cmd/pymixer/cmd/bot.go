package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/whit3rabbit/pymixer/internal/bot"
	"github.com/whit3rabbit/pymixer/internal/setup"
)

// botCmd represents the bot command
var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Runs the Telegram obfuscation bot",
	Long: `Starts a long-polling Telegram bot with the credentials saved by
"pymixer setup". Sessions are kept in memory, or in redis when
bot.redis_addr is configured. Stop it with Ctrl+C.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("configuration not loaded")
		}
		cmd.SilenceUsage = true

		creds, err := setup.Load(cfg.Bot.CredentialsFile)
		if err != nil {
			return fmt.Errorf("%w (run 'pymixer setup' first)", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, closeStore, err := newSessionStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		api, err := tgbotapi.NewBotAPI(creds.Token)
		if err != nil {
			return fmt.Errorf("failed to connect to Telegram: %w", err)
		}
		api.Debug = cfg.DebugMode

		b, err := bot.New(api, store, cfg, creds.Admin)
		if err != nil {
			return err
		}

		u := tgbotapi.NewUpdate(0)
		u.Timeout = cfg.Bot.PollTimeout
		updates := api.GetUpdatesChan(u)
		go func() {
			<-ctx.Done()
			api.StopReceivingUpdates()
		}()

		logx.Infof("bot @%s started, admin %s, token %s", api.Self.UserName, creds.Admin, setup.MaskToken(creds.Token))
		err = b.Run(ctx, updates)
		if errors.Is(err, context.Canceled) {
			logx.Info("bot stopped")
			return nil
		}
		return err
	},
}

// newSessionStore picks redis when an address is configured and memory
// otherwise. The returned func releases the store.
func newSessionStore(ctx context.Context) (bot.Store, func(), error) {
	bc := cfg.Bot
	if bc.RedisAddr == "" {
		store, err := bot.NewMemoryStore(bc.SessionTTL)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     bc.RedisAddr,
		Password: bc.RedisPassword,
		DB:       bc.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to reach redis at %s: %w", bc.RedisAddr, err)
	}
	logx.Infof("sessions stored in redis at %s", bc.RedisAddr)
	return bot.NewRedisStore(client, bc.SessionTTL), func() { client.Close() }, nil
}
