package extensions

import (
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	jsoniter "github.com/json-iterator/go"

	searchfn "github.com/searchfn/searchfn-go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Publisher is the subset of mqtt.Client the analytics extension uses
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
}

// searchEvent is the wire payload published per settlement
type searchEvent struct {
	Coordinator string `json:"coordinator"`
	RequestID   string `json:"request_id"`
	Outcome     string `json:"outcome"`
	DurationMS  int64  `json:"duration_ms"`
	Error       string `json:"error,omitempty"`
	Timestamp   int64  `json:"ts"`
}

// AnalyticsOption configures an AnalyticsExtension
type AnalyticsOption func(*AnalyticsExtension)

// WithAnalyticsBuffer sets the event buffer capacity
func WithAnalyticsBuffer(n int) AnalyticsOption {
	return func(e *AnalyticsExtension) {
		e.buffer = n
	}
}

// WithAnalyticsQoS sets the MQTT QoS level for published events
func WithAnalyticsQoS(qos byte) AnalyticsOption {
	return func(e *AnalyticsExtension) {
		e.qos = qos
	}
}

// WithAnalyticsTimeout bounds how long a single publish may block the pump
func WithAnalyticsTimeout(d time.Duration) AnalyticsOption {
	return func(e *AnalyticsExtension) {
		e.timeout = d
	}
}

// AnalyticsExtension publishes settlement events to an MQTT broker.
//
// Events are JSON encoded and published to {topic}/{coordinator}. Publishing
// happens on a single pump goroutine behind a buffered channel so the fetch
// path never blocks on the broker; events that cannot be buffered, encoded or
// delivered are counted as dropped instead.
type AnalyticsExtension struct {
	searchfn.BaseExtension

	publisher Publisher
	topic     string
	qos       byte
	timeout   time.Duration
	buffer    int

	start sync.Once

	mu     sync.Mutex
	closed bool
	events chan searchEvent
	done   chan struct{}

	dropped atomic.Uint64
}

// NewAnalyticsExtension creates an analytics extension publishing under the
// given topic prefix
func NewAnalyticsExtension(publisher Publisher, topic string, opts ...AnalyticsOption) *AnalyticsExtension {
	e := &AnalyticsExtension{
		BaseExtension: searchfn.NewBaseExtension("analytics"),
		publisher:     publisher,
		topic:         topic,
		qos:           0,
		timeout:       5 * time.Second,
		buffer:        256,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func (e *AnalyticsExtension) Init(scope *searchfn.Scope) error {
	e.start.Do(func() {
		e.events = make(chan searchEvent, e.buffer)
		e.done = make(chan struct{})
		go e.pump()
	})
	return nil
}

func (e *AnalyticsExtension) OnSettle(scope *searchfn.Scope, s *searchfn.Settlement) {
	e.enqueue(s)
}

func (e *AnalyticsExtension) OnDiscard(scope *searchfn.Scope, s *searchfn.Settlement) {
	e.enqueue(s)
}

func (e *AnalyticsExtension) Dispose(scope *searchfn.Scope) error {
	e.mu.Lock()
	if e.closed || e.events == nil {
		e.closed = true
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	close(e.events)
	e.mu.Unlock()

	<-e.done
	return nil
}

// Dropped returns how many events could not be delivered
func (e *AnalyticsExtension) Dropped() uint64 {
	return e.dropped.Load()
}

func (e *AnalyticsExtension) enqueue(s *searchfn.Settlement) {
	ev := searchEvent{
		Coordinator: s.Coordinator,
		RequestID:   s.Request.ID(),
		Outcome:     s.Outcome.String(),
		DurationMS:  s.Duration.Milliseconds(),
		Timestamp:   time.Now().Unix(),
	}
	if s.Err != nil {
		ev.Error = s.Err.Error()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.events == nil {
		e.dropped.Add(1)
		return
	}
	select {
	case e.events <- ev:
	default:
		e.dropped.Add(1)
	}
}

func (e *AnalyticsExtension) pump() {
	defer close(e.done)

	for ev := range e.events {
		if !e.publisher.IsConnected() {
			e.dropped.Add(1)
			continue
		}

		payload, err := jsonAPI.Marshal(ev)
		if err != nil {
			e.dropped.Add(1)
			continue
		}

		token := e.publisher.Publish(e.topic+"/"+ev.Coordinator, e.qos, false, payload)
		if !token.WaitTimeout(e.timeout) || token.Error() != nil {
			e.dropped.Add(1)
		}
	}
}
