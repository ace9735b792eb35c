package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/annel0/tile-arena/internal/eventbus"
)

// event-cli подключается к NATS JetStream сервера арены и печатает
// события в консоль. Удобен для отладки боевой системы и мира:
//
//	event-cli -nats nats://localhost:4222 -types combat_hit
func main() {
	var (
		natsURL = flag.String("nats", "nats://localhost:4222", "адрес NATS")
		stream  = flag.String("stream", "ARENA", "имя JetStream-стрима")
		types   = flag.String("types", "", "фильтр типов событий (через запятую)")
		sources = flag.String("sources", "", "фильтр источников (через запятую)")
		limit   = flag.Int("limit", 0, "завершиться после N событий (0 — без лимита)")
	)
	flag.Parse()

	bus, err := eventbus.NewJetStreamBus(*natsURL, *stream, 24*time.Hour)
	if err != nil {
		log.Fatalf("Не удалось подключиться к NATS: %v", err)
	}
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	filter := eventbus.Filter{
		Types:   parseStringList(*types),
		Sources: parseStringList(*sources),
	}

	count := 0
	done := make(chan struct{})
	sub, err := bus.Subscribe(ctx, filter, func(ctx context.Context, ev *eventbus.Envelope) {
		printEvent(ev)
		count++
		if *limit > 0 && count >= *limit {
			select {
			case done <- struct{}{}:
			default:
			}
		}
	})
	if err != nil {
		log.Fatalf("Ошибка подписки: %v", err)
	}
	defer sub.Unsubscribe()

	fmt.Fprintf(os.Stderr, "Слушаю события стрима %s (%s)...\n", *stream, *natsURL)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
	case <-done:
	}
}

func printEvent(ev *eventbus.Envelope) {
	fmt.Printf("[%s] %s/%s id=%s prio=%d payload=%s\n",
		ev.Timestamp.Format("15:04:05.000"),
		ev.Source, ev.EventType, ev.ID, ev.Priority, string(ev.Payload))
}

func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
