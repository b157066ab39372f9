package telegram

import (
	"ashare-backtest/config"
	"ashare-backtest/pkg/logger"
	"ashare-backtest/pkg/utils"
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/telebot.v3"
)

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// TelegramRateLimiter wraps the bot and keeps every outgoing call inside
// Telegram's global, per user and per chat quotas.
type TelegramRateLimiter struct {
	cfg          *config.TelegramConfig
	log          *logger.Logger
	globalLimit  *rate.Limiter
	userLimiters map[int64]*limiterEntry
	chatLimiters map[int64]*limiterEntry
	bot          *telebot.Bot
	mu           sync.Mutex
	editMu       sync.Mutex
	wg           sync.WaitGroup
}

func NewTelegramRateLimiter(cfg *config.TelegramConfig, log *logger.Logger, bot *telebot.Bot) *TelegramRateLimiter {
	return &TelegramRateLimiter{
		cfg:          cfg,
		log:          log,
		bot:          bot,
		globalLimit:  rate.NewLimiter(rate.Limit(cfg.MaxGlobalRequestPerSecond), max(cfg.MaxGlobalRequestPerSecond, 1)),
		userLimiters: make(map[int64]*limiterEntry),
		chatLimiters: make(map[int64]*limiterEntry),
	}
}

func (t *TelegramRateLimiter) Send(ctx context.Context, c telebot.Context, what interface{}, opts ...interface{}) (*telebot.Message, error) {
	if err := t.checkRateLimit(ctx, c.Sender().ID, c.Chat().ID); err != nil {
		return nil, err
	}
	return t.bot.Send(c.Chat(), what, opts...)
}

// SendMessageChat pushes a message to a chat outside of an update, e.g. a
// notification.
func (t *TelegramRateLimiter) SendMessageChat(ctx context.Context, chatID int64, message string, opts ...interface{}) error {
	if err := t.checkRateLimit(ctx, chatID, chatID); err != nil {
		return err
	}
	if _, err := t.bot.Send(&telebot.Chat{ID: chatID}, message, opts...); err != nil {
		return err
	}
	return nil
}

func (t *TelegramRateLimiter) Edit(ctx context.Context, c telebot.Context, msg *telebot.Message, what interface{}, opts ...interface{}) (*telebot.Message, error) {
	if err := t.checkRateLimit(ctx, c.Sender().ID, c.Chat().ID); err != nil {
		return nil, err
	}

	t.editMu.Lock()
	defer t.editMu.Unlock()
	return t.bot.Edit(msg, what, opts...)
}

func (t *TelegramRateLimiter) Delete(ctx context.Context, c telebot.Context, msg *telebot.Message) error {
	if err := t.checkRateLimit(ctx, c.Sender().ID, c.Chat().ID); err != nil {
		return err
	}
	return t.bot.Delete(msg)
}

func (t *TelegramRateLimiter) Respond(ctx context.Context, c telebot.Context, resp ...*telebot.CallbackResponse) error {
	if err := t.checkRateLimit(ctx, c.Sender().ID, c.Chat().ID); err != nil {
		return err
	}
	return c.Respond(resp...)
}

func (t *TelegramRateLimiter) entry(store map[int64]*limiterEntry, id int64, perSecond int) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, exists := store[id]; exists {
		e.lastAccess = time.Now()
		return e.limiter
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), max(perSecond, 1))
	store[id] = &limiterEntry{limiter: limiter, lastAccess: time.Now()}
	return limiter
}

func (t *TelegramRateLimiter) checkRateLimit(ctx context.Context, senderID int64, chatID int64) error {
	userLimiter := t.entry(t.userLimiters, senderID, t.cfg.MaxUserRequestPerSecond)
	chatLimiter := t.entry(t.chatLimiters, chatID, t.cfg.MaxEditMessagePerSecond)

	if err := chatLimiter.Wait(ctx); err != nil {
		t.log.ErrorContext(ctx, "Failed to wait for chat rate limit", logger.ErrorField(err))
		return err
	}
	if err := t.globalLimit.Wait(ctx); err != nil {
		t.log.ErrorContext(ctx, "Failed to wait for global rate limit", logger.ErrorField(err))
		return err
	}
	if err := userLimiter.Wait(ctx); err != nil {
		t.log.ErrorContext(ctx, "Failed to wait for user rate limit", logger.ErrorField(err))
		return err
	}
	return nil
}

// CleanupExpired drops limiters idle for longer than the configured expiry.
func (t *TelegramRateLimiter) CleanupExpired(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for _, store := range []map[int64]*limiterEntry{t.userLimiters, t.chatLimiters} {
		for id, e := range store {
			if now.Sub(e.lastAccess) > t.cfg.RatelimitExpireDuration {
				delete(store, id)
				removed++
			}
		}
	}
	return removed
}

func (t *TelegramRateLimiter) StartCleanupExpired(ctx context.Context) {
	t.wg.Add(1)
	utils.GoSafe(func() {
		defer t.wg.Done()
		ticker := time.NewTicker(t.cfg.RateLimitCleanupDuration)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				t.log.Info("Received signal to stop Telegram rate limiter cleanup expired")
				return
			case now := <-ticker.C:
				t.CleanupExpired(now)
			}
		}
	})
}

func (t *TelegramRateLimiter) StopCleanupExpired() {
	t.wg.Wait()
	t.log.Info("Telegram rate limiter stopped")
}
