package broker

import (
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// fakeToken is an mqtt.Token completed by the test.
type fakeToken struct {
	once sync.Once
	done chan struct{}
	err  error
	code byte
}

func newToken() *fakeToken {
	return &fakeToken{done: make(chan struct{})}
}

func doneToken(err error) *fakeToken {
	tok := newToken()
	tok.complete(err)
	return tok
}

func (t *fakeToken) complete(err error) {
	t.once.Do(func() {
		t.err = err
		close(t.done)
	})
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
func (t *fakeToken) ReturnCode() byte      { return t.code }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// fakeClient records calls and hands out tokens produced by publishFn.
type fakeClient struct {
	mu           sync.Mutex
	opts         *mqtt.ClientOptions
	connectTok   *fakeToken
	open         bool
	published    []published
	disconnected int
	publishFn    func(n int) *fakeToken
}

func (c *fakeClient) Connect() mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connectTok == nil {
		c.connectTok = doneToken(nil)
	}
	if c.connectTok.err == nil {
		c.open = true
	}
	return c.connectTok
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload any) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, published{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	if c.publishFn != nil {
		return c.publishFn(len(c.published))
	}
	return doneToken(nil)
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	c.disconnected++
}

func (c *fakeClient) IsConnectionOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *fakeClient) factory() ClientFactory {
	return func(opts *mqtt.ClientOptions) Client {
		c.opts = opts
		return c
	}
}
