// Package main runs the inbox poller against a running API server.
// Lines read from stdin are sent to the selected conversation.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/socialhub/social-platform/internal/client"
	"github.com/socialhub/social-platform/internal/config"
	"github.com/socialhub/social-platform/internal/poller"
	"github.com/socialhub/social-platform/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	conversationID := flag.String("conversation", "", "conversation to open")
	watch := flag.String("watch", "", "comma-separated user ids whose presence to poll")
	flag.Parse()

	cfg := config.LoadPoller()
	if cfg.APIToken == "" {
		fmt.Fprintln(os.Stderr, "API_TOKEN is required")
		os.Exit(1)
	}

	log, err := logger.NewWithOptions(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	api := client.New(cfg.APIBaseURL, cfg.APIToken, cfg.RequestTimeout)
	inbox := poller.NewInbox(api, poller.Intervals{
		Conversations: cfg.ListInterval,
		Messages:      cfg.MessagesInterval,
		Presence:      cfg.PresenceInterval,
		Badges:        cfg.BadgeInterval,
		Heartbeat:     cfg.HeartbeatInterval,
	}, log.Named("inbox"))

	var (
		mu   sync.Mutex
		last poller.State
	)
	inbox.OnChange(func(s poller.State) {
		mu.Lock()
		defer mu.Unlock()
		if s.UnreadMessages != last.UnreadMessages || s.UnreadNotifications != last.UnreadNotifications {
			log.Info("badges",
				zap.Int64("unread_messages", s.UnreadMessages),
				zap.Int64("unread_notifications", s.UnreadNotifications),
			)
		}
		if len(s.Conversations) != len(last.Conversations) {
			log.Info("conversations", zap.Int("count", len(s.Conversations)))
		}
		for i := len(last.Messages); i < len(s.Messages); i++ {
			m := s.Messages[i]
			fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Local().Format("15:04:05"), sender(m.SenderID, s.CurrentUserID), m.Content)
		}
		for id, status := range s.Presence {
			if prev, ok := last.Presence[id]; !ok || prev.IsOnline != status.IsOnline {
				log.Info("presence", zap.String("user_id", id), zap.Bool("online", status.IsOnline))
			}
		}
		last = s
	})

	inbox.Mount()
	if *conversationID != "" {
		inbox.Select(*conversationID)
	}
	for _, id := range strings.Split(*watch, ",") {
		inbox.WatchPresence(strings.TrimSpace(id))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if _, err := inbox.Send(ctx, scanner.Text()); err != nil {
				log.Warn("send failed, draft kept", zap.Error(err))
			}
		}
	}()

	<-ctx.Done()
	log.Info("unmounting inbox")
	inbox.Unmount(context.Background())
}

func sender(senderID, currentUserID string) string {
	if senderID == currentUserID {
		return "me"
	}
	return senderID
}
