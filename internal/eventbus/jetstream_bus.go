package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	nats "github.com/nats-io/nats.go"
)

// JetStreamBus реализует EventBus поверх NATS JetStream.
// Используется, когда события арены должны переживать рестарт сервера
// или потребляться внешними сервисами.
type JetStreamBus struct {
	nc        *nats.Conn
	js        nats.JetStreamContext
	stream    string
	published uint64
	consumed  uint64
	dropped   uint64
}

// NewJetStreamBus подключается к кластеру NATS и гарантирует наличие стрима.
// url: nats://127.0.0.1:4222, stream: "ARENA".
func NewJetStreamBus(url, stream string, retention time.Duration) (*JetStreamBus, error) {
	if stream == "" {
		stream = "ARENA"
	}

	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Drain()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	// Создаём стрим, если его ещё нет (subjects: arena.*)
	_, err = js.StreamInfo(stream)
	if err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:      stream,
			Subjects:  []string{"arena.*"},
			Retention: nats.LimitsPolicy,
			MaxAge:    retention,
			Storage:   nats.FileStorage,
		})
		if err != nil {
			nc.Drain()
			return nil, fmt.Errorf("add stream: %w", err)
		}
	}

	return &JetStreamBus{nc: nc, js: js, stream: stream}, nil
}

// Publish сериализует Envelope в JSON и публикует в subject arena.<type>
func (jb *JetStreamBus) Publish(ctx context.Context, ev *Envelope) error {
	subj := fmt.Sprintf("arena.%s", ev.EventType)
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = jb.js.Publish(subj, data)
	if err == nil {
		atomic.AddUint64(&jb.published, 1)
	} else {
		atomic.AddUint64(&jb.dropped, 1)
	}
	return err
}

// Subscribe создаёт подписку и вызывает handler асинхронно.
// Фильтр по одному типу транслируется в subject, остальное фильтруется
// на стороне потребителя.
func (jb *JetStreamBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	subj := "arena.*"
	if len(f.Types) == 1 {
		subj = fmt.Sprintf("arena.%s", f.Types[0])
	}

	sub, err := jb.js.Subscribe(subj, func(msg *nats.Msg) {
		var ev Envelope
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			atomic.AddUint64(&jb.dropped, 1)
			return
		}
		if !matchFilter(&ev, f) {
			return
		}
		atomic.AddUint64(&jb.consumed, 1)
		h(ctx, &ev)
	})
	if err != nil {
		return nil, fmt.Errorf("jetstream subscribe: %w", err)
	}

	return &jsSub{sub: sub}, nil
}

// Metrics возвращает счётчики шины
func (jb *JetStreamBus) Metrics() Stats {
	return Stats{
		Published: atomic.LoadUint64(&jb.published),
		Consumed:  atomic.LoadUint64(&jb.consumed),
		Dropped:   atomic.LoadUint64(&jb.dropped),
	}
}

// Close отключается от NATS
func (jb *JetStreamBus) Close() {
	jb.nc.Drain()
}

type jsSub struct {
	sub *nats.Subscription
}

func (s *jsSub) Unsubscribe() {
	_ = s.sub.Unsubscribe()
}
