package ingest

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/darkden-lab/mqscope/internal/events"
	"github.com/darkden-lab/mqscope/internal/mq"
)

type notification struct {
	text     string
	severity Severity
}

// recorder is a test double for Notifier and SessionController.
type recorder struct {
	mu            sync.Mutex
	notifications []notification
	stops         int
}

func (r *recorder) Notify(text string, severity Severity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, notification{text, severity})
}

func (r *recorder) StopSession() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops++
}

func (r *recorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notifications), r.stops
}

type fixedLimit int

func (l fixedLimit) MaxMessages() int { return int(l) }

// mutableLimit lets a test change the limit between events.
type mutableLimit struct {
	mu sync.Mutex
	n  int
}

func (l *mutableLimit) MaxMessages() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.n
}

func (l *mutableLimit) set(n int) {
	l.mu.Lock()
	l.n = n
	l.mu.Unlock()
}

func msg(id string) mq.Message {
	return mq.Message{ID: id, Topic: "orders", Value: "v-" + id}
}

func ids(msgs []mq.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestController_ScenarioLimitTwo(t *testing.T) {
	store := NewMessageStore()
	rec := &recorder{}
	c := NewController(store, fixedLimit(2), rec, rec, nil)

	c.HandleMessage(msg("M1"))
	c.HandleMessage(msg("M2"))
	if c.HandleMessage(msg("M3")) {
		t.Fatal("expected M3 to be rejected")
	}

	got := ids(store.Snapshot())
	if strings.Join(got, ",") != "M2,M1" {
		t.Errorf("expected store [M2 M1], got %v", got)
	}
	notes, stops := rec.counts()
	if notes != 1 || stops != 1 {
		t.Fatalf("expected 1 notification and 1 stop, got %d and %d", notes, stops)
	}
	if rec.notifications[0].severity != SeverityWarning {
		t.Errorf("expected warning severity, got %s", rec.notifications[0].severity)
	}
}

func TestController_BoundaryAtDefaultLimit(t *testing.T) {
	store := NewMessageStore()
	preload := make([]mq.Message, 100)
	for i := range preload {
		preload[i] = msg(fmt.Sprintf("p%d", i))
	}
	store.Replace(preload)

	rec := &recorder{}
	c := NewController(store, fixedLimit(100), rec, rec, nil)
	c.HandleMessage(msg("next"))

	if store.Len() != 100 {
		t.Errorf("expected store to stay at 100, got %d", store.Len())
	}
	notes, stops := rec.counts()
	if notes != 1 || stops != 1 {
		t.Fatalf("expected 1 notification and 1 stop, got %d and %d", notes, stops)
	}
	n := rec.notifications[0]
	if n.severity != SeverityWarning || !strings.Contains(n.text, "100") {
		t.Errorf("expected warning mentioning 100, got %+v", n)
	}
}

func TestController_DefaultsWhenLimitUnset(t *testing.T) {
	for _, limits := range []LimitsSource{nil, fixedLimit(0), fixedLimit(-5)} {
		store := NewMessageStore()
		c := NewController(store, limits, nil, nil, nil)
		for i := 0; i < DefaultMaxMessages+10; i++ {
			c.HandleMessage(msg(fmt.Sprint(i)))
		}
		if store.Len() != DefaultMaxMessages {
			t.Errorf("limits %v: expected %d messages, got %d", limits, DefaultMaxMessages, store.Len())
		}
	}
}

func TestController_CapacityInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		limit := 1 + rng.Intn(20)
		events := rng.Intn(60)

		store := NewMessageStore()
		rec := &recorder{}
		c := NewController(store, fixedLimit(limit), rec, rec, nil)
		for i := 0; i < events; i++ {
			c.HandleMessage(msg(fmt.Sprint(i)))
			if store.Len() > limit {
				t.Fatalf("trial %d: store length %d exceeds limit %d", trial, store.Len(), limit)
			}
		}

		wantRejected := events - limit
		if wantRejected < 0 {
			wantRejected = 0
		}
		_, stops := rec.counts()
		if stops != wantRejected {
			t.Errorf("trial %d: expected %d stops, got %d", trial, wantRejected, stops)
		}
	}
}

func TestController_NewestFirst(t *testing.T) {
	store := NewMessageStore()
	c := NewController(store, fixedLimit(10), nil, nil, nil)
	c.HandleMessage(msg("A"))
	c.HandleMessage(msg("B"))
	c.HandleMessage(msg("B")) // duplicates are kept

	got := ids(store.Snapshot())
	if strings.Join(got, ",") != "B,B,A" {
		t.Errorf("expected [B B A], got %v", got)
	}
	newest, ok := store.Newest()
	if !ok || newest.ID != "B" {
		t.Errorf("expected newest B, got %v %v", newest.ID, ok)
	}
}

func TestController_LimitChangeAppliesToNextMessage(t *testing.T) {
	store := NewMessageStore()
	limit := &mutableLimit{n: 5}
	rec := &recorder{}
	c := NewController(store, limit, rec, rec, nil)

	for i := 0; i < 4; i++ {
		c.HandleMessage(msg(fmt.Sprint(i)))
	}
	limit.set(2)
	if store.Len() != 4 {
		t.Fatalf("lowering the limit must not truncate, got %d", store.Len())
	}
	c.HandleMessage(msg("x"))
	if store.Len() != 4 {
		t.Errorf("expected rejection above the new limit, got %d", store.Len())
	}
	if _, stops := rec.counts(); stops != 1 {
		t.Errorf("expected 1 stop, got %d", stops)
	}

	limit.set(10)
	if !c.HandleMessage(msg("y")) {
		t.Error("expected admission after raising the limit")
	}
}

func TestController_MissingCallbacks(t *testing.T) {
	store := NewMessageStore()
	c := NewController(store, fixedLimit(1), nil, nil, nil)

	if !c.HandleMessage(msg("a")) {
		t.Fatal("expected first message to be admitted")
	}
	if c.HandleMessage(msg("b")) {
		t.Fatal("expected second message to be rejected")
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 stored message, got %d", store.Len())
	}
}

func TestMessageStore_OnAdmitHook(t *testing.T) {
	store := NewMessageStore()
	var seen []string
	store.OnAdmit(func(m mq.Message) { seen = append(seen, m.ID) })

	c := NewController(store, fixedLimit(1), nil, nil, nil)
	c.HandleMessage(msg("a"))
	c.HandleMessage(msg("b"))

	if len(seen) != 1 || seen[0] != "a" {
		t.Errorf("expected hook for admitted message only, got %v", seen)
	}
}

func TestMessageStore_ReplaceAndClear(t *testing.T) {
	store := NewMessageStore()
	store.Replace([]mq.Message{msg("new"), msg("old")})

	if got := ids(store.Snapshot()); strings.Join(got, ",") != "new,old" {
		t.Errorf("expected [new old], got %v", got)
	}
	c := NewController(store, fixedLimit(5), nil, nil, nil)
	c.HandleMessage(msg("newer"))
	if got := ids(store.Snapshot()); strings.Join(got, ",") != "newer,new,old" {
		t.Errorf("expected [newer new old], got %v", got)
	}

	store.Clear()
	if store.Len() != 0 {
		t.Errorf("expected empty store, got %d", store.Len())
	}
	if _, ok := store.Newest(); ok {
		t.Error("expected no newest message in empty store")
	}
}

func TestClassify_AllowList(t *testing.T) {
	cases := []struct {
		msg     string
		want    Classification
		pattern string
	}{
		{"read tcp 127.0.0.1:9092: use of closed network connection", ExpectedShutdown, "closed-network-connection"},
		{"kafka: connection closed", ExpectedShutdown, "connection-closed"},
		{"[CONNECTION:CONN_CLOSED] consumer closed while reading", ExpectedShutdown, "connection-code"},
		{"broker unreachable: timeout", Failure, ""},
		{"Connection Closed", Failure, ""},
		{"conn_ reset", Failure, ""},
		{"", Failure, ""},
	}
	for _, tc := range cases {
		got, pattern := Classify(tc.msg)
		if got != tc.want || pattern != tc.pattern {
			t.Errorf("Classify(%q) = %s/%q, want %s/%q", tc.msg, got, pattern, tc.want, tc.pattern)
		}
	}
}

func TestClassifier_ExpectedShutdownIsSilent(t *testing.T) {
	rec := &recorder{}
	c := NewClassifier(rec, rec, nil)

	if got := c.HandleError("use of closed network connection"); got != ExpectedShutdown {
		t.Errorf("expected ExpectedShutdown, got %s", got)
	}
	notes, stops := rec.counts()
	if notes != 0 || stops != 1 {
		t.Errorf("expected 0 notifications and 1 stop, got %d and %d", notes, stops)
	}
}

func TestClassifier_FailureNotifies(t *testing.T) {
	rec := &recorder{}
	c := NewClassifier(rec, rec, nil)

	if got := c.HandleError("broker unreachable: timeout"); got != Failure {
		t.Errorf("expected Failure, got %s", got)
	}
	notes, stops := rec.counts()
	if notes != 1 || stops != 1 {
		t.Fatalf("expected 1 notification and 1 stop, got %d and %d", notes, stops)
	}
	n := rec.notifications[0]
	if n.severity != SeverityError {
		t.Errorf("expected error severity, got %s", n.severity)
	}
	if !strings.Contains(n.text, "broker unreachable: timeout") || !strings.HasPrefix(n.text, "consume error: ") {
		t.Errorf("unexpected notification text %q", n.text)
	}
}

func TestClassifier_EmptyMessageFailsLoud(t *testing.T) {
	rec := &recorder{}
	NewClassifier(rec, rec, nil).HandleError("")
	if notes, stops := rec.counts(); notes != 1 || stops != 1 {
		t.Errorf("expected 1 notification and 1 stop, got %d and %d", notes, stops)
	}
}

func TestClassifier_RepeatedErrorsAndMissingCallbacks(t *testing.T) {
	rec := &recorder{}
	c := NewClassifier(rec, rec, nil)
	c.HandleError("broker unreachable: timeout")
	c.HandleError("broker unreachable: timeout")
	if notes, stops := rec.counts(); notes != 2 || stops != 2 {
		t.Errorf("expected repeated side effects, got %d notifications and %d stops", notes, stops)
	}

	// Nothing registered: must not panic.
	NewClassifier(nil, nil, nil).HandleError("broker unreachable: timeout")
}

func newTestRouter(limit int) (*events.InMemoryBus, *MessageStore, *Router) {
	bus := events.NewInMemoryBus(0)
	store := NewMessageStore()
	return bus, store, NewRouter(bus, store, fixedLimit(limit), nil)
}

func TestRouter_SetupIsIdempotent(t *testing.T) {
	bus, store, router := newTestRouter(1)
	first, second := &recorder{}, &recorder{}

	if err := router.Setup(first, first); err != nil {
		t.Fatalf("first setup: %v", err)
	}
	if err := router.Setup(second, second); err != nil {
		t.Fatalf("second setup: %v", err)
	}
	if got := bus.SubscriberCount(events.TopicMessageReceived); got != 1 {
		t.Errorf("expected 1 message subscription, got %d", got)
	}
	if got := bus.SubscriberCount(events.TopicConsumerError); got != 1 {
		t.Errorf("expected 1 error subscription, got %d", got)
	}

	m1, m2 := msg("m1"), msg("m2")
	bus.Publish(events.TopicMessageReceived, events.NewMessageEvent("s", &m1))
	bus.Publish(events.TopicMessageReceived, events.NewMessageEvent("s", &m2))
	bus.Close()

	if store.Len() != 1 {
		t.Errorf("expected 1 stored message, got %d", store.Len())
	}
	notes, stops := first.counts()
	if notes != 1 || stops != 1 {
		t.Errorf("expected exactly one warning and one stop, got %d and %d", notes, stops)
	}
	if notes, stops := second.counts(); notes != 0 || stops != 0 {
		t.Errorf("second Setup callbacks must not be installed, got %d and %d", notes, stops)
	}
}

func TestRouter_UpdateCallbacks(t *testing.T) {
	bus, _, router := newTestRouter(10)
	first, second := &recorder{}, &recorder{}

	router.Setup(first, first)
	router.UpdateCallbacks(second, second)
	bus.Publish(events.TopicConsumerError, events.NewErrorEvent("s", fmt.Errorf("broker unreachable: timeout")))
	bus.Close()

	if notes, stops := first.counts(); notes != 0 || stops != 0 {
		t.Errorf("replaced callbacks still called: %d and %d", notes, stops)
	}
	if notes, stops := second.counts(); notes != 1 || stops != 1 {
		t.Errorf("expected new callbacks to fire once each, got %d and %d", notes, stops)
	}
	if got := bus.SubscriberCount(events.TopicConsumerError); got != 1 {
		t.Errorf("UpdateCallbacks must not resubscribe, got %d subscriptions", got)
	}
}

func TestRouter_ErrorEvents(t *testing.T) {
	bus, _, router := newTestRouter(10)
	rec := &recorder{}
	router.Setup(rec, rec)

	bus.Publish(events.TopicConsumerError, events.NewErrorEvent("s", fmt.Errorf("use of closed network connection")))
	bus.Publish(events.TopicConsumerError, events.NewErrorEvent("s", fmt.Errorf("broker unreachable: timeout")))
	bus.Close()

	notes, stops := rec.counts()
	if notes != 1 || stops != 2 {
		t.Errorf("expected 1 notification and 2 stops, got %d and %d", notes, stops)
	}
}

func TestRouter_MissingCallbacks(t *testing.T) {
	bus, store, router := newTestRouter(1)
	if err := router.Setup(nil, nil); err != nil {
		t.Fatalf("setup: %v", err)
	}

	m1, m2 := msg("m1"), msg("m2")
	bus.Publish(events.TopicMessageReceived, events.NewMessageEvent("s", &m1))
	bus.Publish(events.TopicMessageReceived, events.NewMessageEvent("s", &m2))
	bus.Publish(events.TopicMessageReceived, events.Event{ID: "no-payload"})
	bus.Publish(events.TopicConsumerError, events.NewErrorEvent("s", nil))
	bus.Close()

	if store.Len() != 1 {
		t.Errorf("expected store mutation without callbacks, got %d", store.Len())
	}
}

func TestRouter_InFlightEventsAfterStop(t *testing.T) {
	bus, store, router := newTestRouter(2)
	rec := &recorder{}
	router.Setup(rec, rec)

	for i := 0; i < 5; i++ {
		m := msg(fmt.Sprint(i))
		bus.Publish(events.TopicMessageReceived, events.NewMessageEvent("s", &m))
	}
	bus.Close()

	if store.Len() != 2 {
		t.Errorf("expected 2 messages, got %d", store.Len())
	}
	if notes, stops := rec.counts(); notes != 3 || stops != 3 {
		t.Errorf("expected each rejected event handled by the same rules, got %d and %d", notes, stops)
	}
}

func TestRouter_SetupOnClosedBus(t *testing.T) {
	bus, _, router := newTestRouter(1)
	bus.Close()
	if err := router.Setup(nil, nil); err == nil {
		t.Error("expected error subscribing on a closed bus")
	}
}

// failingBus rejects subscriptions to failTopic while fail is set.
type failingBus struct {
	*events.InMemoryBus
	failTopic string
	fail      bool
}

func (b *failingBus) Subscribe(topic string, handler events.Handler) (string, error) {
	if b.fail && topic == b.failTopic {
		return "", fmt.Errorf("subscribe refused")
	}
	return b.InMemoryBus.Subscribe(topic, handler)
}

func TestRouter_SetupRetryAfterPartialFailure(t *testing.T) {
	bus := &failingBus{InMemoryBus: events.NewInMemoryBus(0), failTopic: events.TopicConsumerError, fail: true}
	store := NewMessageStore()
	router := NewRouter(bus, store, fixedLimit(1), nil)
	rec := &recorder{}

	if err := router.Setup(rec, rec); err == nil {
		t.Fatal("expected error when the error subscription fails")
	}
	bus.fail = false
	if err := router.Setup(rec, rec); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if err := router.Setup(rec, rec); err != nil {
		t.Fatalf("third setup: %v", err)
	}

	if got := bus.SubscriberCount(events.TopicMessageReceived); got != 1 {
		t.Errorf("expected 1 message subscription after retry, got %d", got)
	}
	if got := bus.SubscriberCount(events.TopicConsumerError); got != 1 {
		t.Errorf("expected 1 error subscription after retry, got %d", got)
	}

	m1, m2 := msg("m1"), msg("m2")
	bus.Publish(events.TopicMessageReceived, events.NewMessageEvent("s", &m1))
	bus.Publish(events.TopicMessageReceived, events.NewMessageEvent("s", &m2))
	bus.Close()

	if notes, stops := rec.counts(); notes != 1 || stops != 1 {
		t.Errorf("expected each event handled once, got %d notifications and %d stops", notes, stops)
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	store := NewMessageStore()

	c := NewController(store, fixedLimit(1), nil, nil, m)
	c.HandleMessage(msg("a"))
	c.HandleMessage(msg("b"))
	c.HandleMessage(msg("c"))

	cl := NewClassifier(nil, nil, m)
	cl.HandleError("use of closed network connection")
	cl.HandleError("boom")

	if got := testutil.ToFloat64(m.admittedTotal); got != 1 {
		t.Errorf("expected 1 admitted, got %v", got)
	}
	if got := testutil.ToFloat64(m.rejectedTotal); got != 2 {
		t.Errorf("expected 2 rejected, got %v", got)
	}
	if got := testutil.ToFloat64(m.size); got != 1 {
		t.Errorf("expected store gauge 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.errorsTotal.WithLabelValues("expected_shutdown")); got != 1 {
		t.Errorf("expected 1 expected_shutdown, got %v", got)
	}
	if got := testutil.ToFloat64(m.errorsTotal.WithLabelValues("failure")); got != 1 {
		t.Errorf("expected 1 failure, got %v", got)
	}
}
