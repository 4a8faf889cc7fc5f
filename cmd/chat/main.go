// Chat is a terminal client for one conversation. It derives the conversation
// key from the two participant IDs, replays the backlog, then follows live
// messages while reading lines to send from stdin.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gookit/color"

	"campus-dm/client"
	"campus-dm/domain"
	"campus-dm/logs"
	"campus-dm/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "chat: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		serverURL = flag.String("server", "http://localhost:8080", "server base URL")
		wsURL     = flag.String("ws", "ws://localhost:8080/ws", "websocket URL")
		selfID    = flag.String("self", "", "your participant ID")
		peerID    = flag.String("peer", "", "peer participant ID")
		logLevel  = flag.String("log", "WARN", "log level")
	)
	flag.Parse()

	key, err := domain.ResolveKey(*selfID, *peerID)
	if err != nil {
		return fmt.Errorf("bad participants: %w", err)
	}

	logger := logs.GetLoggerFromString(*logLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := client.NewRESTClient(*serverURL)

	var sess *session.Session
	transport := client.NewWSTransport(logger, *wsURL, func() {
		sess.MarkDisconnected()
		color.Yellow.Println("* live channel lost, polling *")
	})
	sess = session.New(logger, store, transport, key, *selfID,
		2*time.Second, session.Backoff{Base: 200 * time.Millisecond, Max: 5 * time.Second, Attempts: 5})

	if err := sess.Open(ctx); err != nil {
		return err
	}
	defer func() {
		_ = sess.Close(context.Background())
		transport.Close()
	}()

	for _, msg := range sess.Messages() {
		printMessage(*selfID, msg)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-sess.Updates():
				printMessage(*selfID, msg)
			}
		}
	}()
	go reconnectLoop(ctx, sess)

	color.Gray.Printf("Conversation %s. Type a message, /quit to exit.\n", string(key))
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "/quit" {
			return nil
		}
		if _, err := sess.Send(ctx, line); err != nil {
			color.Red.Printf("send failed: %v\n", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
	return scanner.Err()
}

// reconnectLoop keeps trying to restore the live channel while the session is
// in its polling fallback.
func reconnectLoop(ctx context.Context, sess *session.Session) {
	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if sess.State() != session.StateDisconnected {
				continue
			}
			if err := sess.Reconnect(ctx); err == nil {
				color.Green.Println("* live channel restored *")
			}
		}
	}
}

func printMessage(selfID string, msg domain.Message) {
	stamp := msg.CreatedAt.Local().Format("15:04:05")
	if msg.SenderID == selfID {
		color.Cyan.Printf("[%s] you: %s\n", stamp, msg.Text)
		return
	}
	color.White.Printf("[%s] %s: %s\n", stamp, msg.SenderID, msg.Text)
}
