package bots_monitor

// Outbound Telegram delivery. The rate limiter keeps the bot under Telegram's
// message budget, the circuit breaker stops hammering the API during outages,
// and transient failures (429/5xx) are retried with jittered backoff.

import (
	"context"
	"errors"
	"time"

	logging "demex-health-bot/internal/infra/log"
	"demex-health-bot/internal/infra/retry"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// messageSender is the part of *tgbotapi.BotAPI the sender needs.
type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Sender delivers messages to Telegram with client-side protection.
type Sender struct {
	api            messageSender
	rateLimiter    *rate.Limiter
	circuitBreaker *gobreaker.CircuitBreaker
	retryOpts      retry.Options
}

// NewSender wraps a bot API with a rate limiter, circuit breaker and retry.
func NewSender(api messageSender) *Sender {
	return &Sender{
		api: api,
		// Telegram allows ~30 messages/second bot-wide
		rateLimiter: rate.NewLimiter(rate.Limit(25), 5),
		circuitBreaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "TelegramAPI",
			MaxRequests: 3,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 5
			},
		}),
		retryOpts: retry.Options{
			MaxRetries: 2,
			BaseDelay:  500 * time.Millisecond,
			MaxDelay:   10 * time.Second,
		},
	}
}

// Send delivers one chattable (message, photo, ...) through the limiter,
// breaker and retry loop.
func (s *Sender) Send(ctx context.Context, c tgbotapi.Chattable) error {
	if s.rateLimiter != nil {
		if err := s.rateLimiter.Wait(ctx); err != nil {
			return err
		}
	}

	return retry.Do(ctx, s.retryOpts, func() error {
		_, err := s.circuitBreaker.Execute(func() (interface{}, error) {
			_, sendErr := s.api.Send(c)
			return nil, sendErr
		})
		if err != nil {
			return classifySendError(err)
		}
		return nil
	})
}

// SendText sends a plain text message to a chat.
func (s *Sender) SendText(ctx context.Context, chatID int64, text string) error {
	err := s.Send(ctx, tgbotapi.NewMessage(chatID, text))
	if err != nil {
		logging.LogError("Failed to send message",
			zap.Int64("chatID", chatID), zap.Error(err))
	}
	return err
}

// classifySendError maps Telegram API errors onto retry.TransportError so the
// retry loop can tell transient failures apart. Breaker-rejected calls are not
// retried.
func classifySendError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return err
	}
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) {
		te := &retry.TransportError{
			StatusCode: tgErr.Code,
			Message:    tgErr.Message,
		}
		if tgErr.ResponseParameters.RetryAfter > 0 {
			te.RetryAfter = time.Duration(tgErr.ResponseParameters.RetryAfter) * time.Second
		}
		return te
	}
	// Network-level failure: worth one more try
	return &retry.TransportError{StatusCode: 503, Message: err.Error()}
}
