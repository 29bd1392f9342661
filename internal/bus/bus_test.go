package bus

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/spotskill/internal/models"
	"github.com/desertthunder/spotskill/internal/shared"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func doneToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool {
	<-t.done
	return true
}

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return qos }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type publishedMessage struct {
	topic   string
	payload []byte
}

type fakeConn struct {
	mu           sync.Mutex
	handlers     map[string]mqtt.MessageHandler
	subscribes   int
	published    []publishedMessage
	token        mqtt.Token
	disconnected bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{handlers: map[string]mqtt.MessageHandler{}}
}

func (f *fakeConn) result() mqtt.Token {
	if f.token != nil {
		return f.token
	}
	return doneToken(nil)
}

func (f *fakeConn) Subscribe(topic string, _ byte, cb mqtt.MessageHandler) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = cb
	f.subscribes++
	return f.result()
}

func (f *fakeConn) Publish(topic string, _ byte, _ bool, payload any) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, publishedMessage{topic: topic, payload: payload.([]byte)})
	return f.result()
}

func (f *fakeConn) Disconnect(uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = true
}

func (f *fakeConn) deliver(topic, payload string) {
	f.mu.Lock()
	h := f.handlers[topic]
	f.mu.Unlock()
	h(nil, fakeMessage{topic: topic, payload: []byte(payload)})
}

const intentJSON = `{
	"id": "a1b2",
	"nouns": ["spotify", "playlist"],
	"verbs": ["play"],
	"rooms": ["kitchen"],
	"numbers": [{"number_token": 2, "previous_token": "playlist", "next_token": null}],
	"client_request": {
		"id": "req-7",
		"text": "spotify play playlist 2",
		"room": "kitchen",
		"output_topic": "assistant/kitchen/output"
	}
}`

func TestCodec(t *testing.T) {
	t.Run("DecodeIntent", func(t *testing.T) {
		intent, err := DecodeIntent([]byte(intentJSON))
		if err != nil {
			t.Fatalf("DecodeIntent() error = %v", err)
		}
		if intent.ID != "a1b2" || !intent.HasNoun("spotify") || len(intent.Rooms) != 1 {
			t.Errorf("unexpected intent %+v", intent)
		}
		if len(intent.Numbers) != 1 || intent.Numbers[0].Value != 2 || intent.Numbers[0].Previous != "playlist" {
			t.Errorf("unexpected numbers %+v", intent.Numbers)
		}
		if intent.ClientRequest.OutputTopic != "assistant/kitchen/output" || intent.ClientRequest.Room != "kitchen" {
			t.Errorf("unexpected client request %+v", intent.ClientRequest)
		}
	})

	t.Run("DecodeIntent rejects malformed payloads", func(t *testing.T) {
		for _, payload := range []string{"", "not json", `{"numbers": "two"}`} {
			if _, err := DecodeIntent([]byte(payload)); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("%q: expected ErrInvalidInput, got %v", payload, err)
			}
		}
	})

	t.Run("EncodeResponse", func(t *testing.T) {
		payload, err := EncodeResponse(models.Response{ID: "req-7", Text: "Playing Focus.", Room: "kitchen"})
		if err != nil {
			t.Fatalf("EncodeResponse() error = %v", err)
		}
		want := `{"id":"req-7","text":"Playing Focus.","room":"kitchen"}`
		if string(payload) != want {
			t.Errorf("got %s, want %s", payload, want)
		}
	})
}

func TestClient(t *testing.T) {
	ctx := context.Background()
	logger := shared.NewLogger(io.Discard)

	t.Run("Subscribe decodes intents", func(t *testing.T) {
		fc := newFakeConn()
		c := newClient(fc, logger)

		var got []models.Intent
		if err := c.Subscribe(ctx, "assistant/intent_analysis_result", func(i models.Intent) { got = append(got, i) }); err != nil {
			t.Fatalf("Subscribe() error = %v", err)
		}

		fc.deliver("assistant/intent_analysis_result", intentJSON)
		fc.deliver("assistant/intent_analysis_result", "{broken")

		if len(got) != 1 || got[0].ClientRequest.ID != "req-7" {
			t.Errorf("expected one decoded intent, got %+v", got)
		}
	})

	t.Run("Subscribe error", func(t *testing.T) {
		fc := newFakeConn()
		fc.token = doneToken(errors.New("not authorized"))
		c := newClient(fc, logger)

		if err := c.Subscribe(ctx, "t", func(models.Intent) {}); err == nil {
			t.Error("expected subscribe error")
		}
	})

	t.Run("Publish encodes response", func(t *testing.T) {
		fc := newFakeConn()
		c := newClient(fc, logger)

		if err := c.Publish(ctx, "assistant/output/text", models.Response{ID: "r1", Text: "ok", Room: "kitchen"}); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
		if len(fc.published) != 1 || fc.published[0].topic != "assistant/output/text" {
			t.Fatalf("unexpected publishes %+v", fc.published)
		}
		if string(fc.published[0].payload) != `{"id":"r1","text":"ok","room":"kitchen"}` {
			t.Errorf("unexpected payload %s", fc.published[0].payload)
		}
	})

	t.Run("Publish honours context", func(t *testing.T) {
		fc := newFakeConn()
		fc.token = &fakeToken{done: make(chan struct{})}
		c := newClient(fc, logger)

		cctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()
		if err := c.Publish(cctx, "t", models.Response{}); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
	})

	t.Run("resubscribes after reconnect", func(t *testing.T) {
		fc := newFakeConn()
		c := newClient(fc, logger)
		c.Subscribe(ctx, "a", func(models.Intent) {})
		c.Subscribe(ctx, "b", func(models.Intent) {})

		c.resubscribeAll()
		if fc.subscribes != 4 {
			t.Errorf("expected both topics resubscribed, got %d subscribe calls", fc.subscribes)
		}
	})

	t.Run("Close disconnects", func(t *testing.T) {
		fc := newFakeConn()
		newClient(fc, logger).Close()
		if !fc.disconnected {
			t.Error("expected disconnect")
		}
	})

	t.Run("options", func(t *testing.T) {
		c := newClient(newFakeConn(), logger)

		opts := c.options(shared.MQTTConfig{Host: "broker.local", Port: 8883, TLS: true, ClientID: "spotify-skill", Username: "u"})
		if len(opts.Servers) != 1 || opts.Servers[0].String() != "ssl://broker.local:8883" {
			t.Errorf("unexpected servers %v", opts.Servers)
		}
		if opts.ClientID != "spotify-skill" || opts.Username != "u" || opts.TLSConfig == nil {
			t.Errorf("unexpected options %+v", opts)
		}

		generated := c.options(shared.MQTTConfig{Host: "localhost", Port: 1883})
		if generated.ClientID == "" || generated.Servers[0].Scheme != "tcp" {
			t.Errorf("expected generated client id over tcp, got %q %v", generated.ClientID, generated.Servers)
		}
	})
}
