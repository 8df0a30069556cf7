package bot

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/susu3304/warikan/internal/commands"
	"github.com/susu3304/warikan/internal/warikan"
)

const failureBackoff = 2 * time.Minute

// reminderWorker periodically posts unpaid settlement tasks to channels.
type reminderWorker struct {
	warikan  *warikan.Service
	session  reminderSession
	logger   *zap.Logger
	stopChan chan struct{}
	ticker   *time.Ticker
	interval time.Duration
	sleep    func(time.Duration)
}

// Minimal session interface for sending channel messages.
type reminderSession interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

func newReminderWorker(session reminderSession, svc *warikan.Service, interval time.Duration, logger *zap.Logger) *reminderWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &reminderWorker{
		warikan:  svc,
		session:  session,
		logger:   logger,
		stopChan: make(chan struct{}),
		interval: interval,
		sleep:    time.Sleep,
	}
}

func (w *reminderWorker) start() {
	if w == nil {
		return
	}
	w.ticker = time.NewTicker(w.interval)
	go w.loop()
}

func (w *reminderWorker) stop() {
	if w == nil {
		return
	}
	close(w.stopChan)
	if w.ticker != nil {
		w.ticker.Stop()
	}
}

func (w *reminderWorker) loop() {
	ctx := context.Background()
	for {
		select {
		case now := <-w.ticker.C:
			w.tick(ctx, now)
		case <-w.stopChan:
			return
		}
	}
}

func (w *reminderWorker) tick(ctx context.Context, now time.Time) {
	for _, t := range w.warikan.DueReminders(now) {
		tasks, err := w.warikan.PendingTasks(t.GroupID)
		if err != nil {
			w.logger.Warn("failed to load pending tasks", zap.String("group", t.GroupID), zap.Error(err))
			continue
		}
		msg := commands.RenderReminder(tasks)
		if msg == "" {
			continue
		}
		msg += "\n※このメッセージは自動投稿です"

		if err := w.sendWithRetry(ctx, t.ChannelID, msg); err != nil {
			w.logger.Error("failed to send reminder", zap.String("channel", t.ChannelID), zap.Error(err))
			// back off so a bad channel is not hammered every tick
			backoff := failureBackoff
			if t.Interval > 0 && t.Interval < backoff {
				backoff = t.Interval
			}
			w.warikan.MarkReminded(t.GroupID, now.Add(backoff))
			continue
		}
		w.warikan.MarkReminded(t.GroupID, now.Add(t.Interval))
		w.logger.Debug("reminder sent", zap.String("group", t.GroupID), zap.Int("tasks", len(tasks)))
	}
}

func (w *reminderWorker) sendWithRetry(ctx context.Context, channelID, content string) error {
	const attemptTimeout = 12 * time.Second
	const maxAttempts = 2

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		sendCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		_, err := w.session.ChannelMessageSend(channelID, content, discordgo.WithContext(sendCtx))
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isTemporaryOrTimeout(err) {
			return err
		}
		w.sleep(time.Duration(300+rand.Intn(500)) * time.Millisecond)
	}
	return lastErr
}

func isTemporaryOrTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}
