package main

import (
	"context"
	"time"

	"farmlokal/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"
)

// TokenWarmer proactively keeps the shared upstream credential cached so
// request paths rarely pay the refresh round-trip. Every run checks for a
// cached entry and triggers the coordinated fetch when it is gone; the
// single-flight lock keeps concurrent instances from stampeding the provider.
type TokenWarmer struct {
	tokens *biz.TokenUsecase
	cron   *cron.Cron
	logger *log.Helper
}

// NewTokenWarmer creates the warmer. Start registers and starts the schedule.
func NewTokenWarmer(tokens *biz.TokenUsecase, logger log.Logger) *TokenWarmer {
	return &TokenWarmer{
		tokens: tokens,
		cron:   cron.New(),
		logger: log.NewHelper(logger),
	}
}

// Start begins the warm-up schedule.
func (w *TokenWarmer) Start(_ context.Context) error {
	_, err := w.cron.AddFunc("@every 1m", w.warm)
	if err != nil {
		return err
	}

	w.cron.Start()
	w.logger.Info("token warm-up job started, runs every minute")
	return nil
}

// Stop halts the schedule and waits for a running job to finish.
func (w *TokenWarmer) Stop(_ context.Context) error {
	<-w.cron.Stop().Done()
	return nil
}

func (w *TokenWarmer) warm() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if w.tokens.IsTokenValid(ctx) {
		return
	}

	w.logger.Info("cached token expired, warming up")
	if _, err := w.tokens.GetAccessToken(ctx); err != nil {
		w.logger.Errorw("token warm-up failed", "error", err)
	}
}
