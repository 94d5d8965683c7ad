package anthropic

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sequenceSelector struct {
	mu   sync.Mutex
	keys []string
	next int
}

func (s *sequenceSelector) Select() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := s.keys[s.next%len(s.keys)]
	s.next++
	return k
}

type recordedCall struct {
	header http.Header
	body   string
}

type upstream struct {
	mu       sync.Mutex
	calls    []recordedCall
	statuses []int
	bodies   []string
}

func (u *upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	bs, _ := io.ReadAll(r.Body)

	u.mu.Lock()
	i := len(u.calls)
	u.calls = append(u.calls, recordedCall{header: r.Header.Clone(), body: string(bs)})
	status := u.statuses[i%len(u.statuses)]
	body := u.bodies[i%len(u.bodies)]
	u.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

func (u *upstream) count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.calls)
}

func newTestClient(t *testing.T, u *upstream, keys ...string) *Client {
	srv := httptest.NewServer(u)
	t.Cleanup(srv.Close)

	return NewClient(srv.Client(), &sequenceSelector{keys: keys}, Config{Url: srv.URL}, nil)
}

func TestClient_Send(t *testing.T) {
	t.Run("when the first attempt succeeds", func(t *testing.T) {
		u := &upstream{statuses: []int{http.StatusOK}, bodies: []string{`{"completion":"hi"}`}}
		c := newTestClient(t, u, "k1", "k2")

		o, err := c.Send(context.Background(), "cid", []byte(`{"prompt":"p"}`))
		require.NoError(t, err)
		defer o.Close()

		assert.Equal(t, OutcomeSuccess, o.Kind)
		assert.Equal(t, http.StatusOK, o.StatusCode)
		assert.Equal(t, 1, o.Attempts)
		assert.Equal(t, 1, u.count())

		bs, err := io.ReadAll(o.Body)
		require.NoError(t, err)
		assert.Equal(t, `{"completion":"hi"}`, string(bs))
	})

	t.Run("when upstream throttles every attempt", func(t *testing.T) {
		u := &upstream{
			statuses: []int{http.StatusTooManyRequests},
			bodies:   []string{"slow down 1", "slow down 2"},
		}
		c := newTestClient(t, u, "k1", "k2")

		o, err := c.Send(context.Background(), "cid", []byte(`{}`))
		require.NoError(t, err)

		assert.Equal(t, OutcomeExhausted, o.Kind)
		assert.Equal(t, http.StatusTooManyRequests, o.StatusCode)
		assert.Equal(t, "slow down 2", o.Text)
		assert.Nil(t, o.Err)
		assert.Equal(t, 2, o.Attempts)
		assert.Equal(t, 2, u.count())
	})

	t.Run("when the first key is rejected", func(t *testing.T) {
		u := &upstream{
			statuses: []int{http.StatusUnauthorized, http.StatusOK},
			bodies:   []string{"bad key", "ok"},
		}
		c := newTestClient(t, u, "k1", "k2")

		o, err := c.Send(context.Background(), "cid", []byte(`{}`))
		require.NoError(t, err)
		defer o.Close()

		assert.Equal(t, OutcomeSuccess, o.Kind)
		assert.Equal(t, 2, o.Attempts)
		require.Equal(t, 2, u.count())
		assert.Equal(t, "k1", u.calls[0].header.Get("x-api-key"))
		assert.Equal(t, "k2", u.calls[1].header.Get("x-api-key"))
	})

	t.Run("when upstream fails with a non retryable status", func(t *testing.T) {
		for _, status := range []int{http.StatusBadRequest, http.StatusForbidden, http.StatusInternalServerError, 529} {
			u := &upstream{statuses: []int{status}, bodies: []string{"nope"}}
			c := newTestClient(t, u, "k1", "k2")

			o, err := c.Send(context.Background(), "cid", []byte(`{}`))
			require.NoError(t, err)

			assert.Equal(t, OutcomeUpstreamError, o.Kind, "status %d", status)
			assert.Equal(t, status, o.StatusCode)
			assert.Equal(t, "nope", o.Text)
			assert.Equal(t, 1, o.Attempts)
			assert.Equal(t, 1, u.count())
		}
	})

	t.Run("when upstream is unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		c := NewClient(http.DefaultClient, &sequenceSelector{keys: []string{"k1"}}, Config{Url: url}, nil)

		o, err := c.Send(context.Background(), "cid", []byte(`{}`))
		require.NoError(t, err)

		assert.Equal(t, OutcomeExhausted, o.Kind)
		assert.Error(t, o.Err)
		assert.Equal(t, 2, o.Attempts)
	})

	t.Run("when context is already cancelled", func(t *testing.T) {
		u := &upstream{statuses: []int{http.StatusOK}, bodies: []string{"ok"}}
		c := newTestClient(t, u, "k1")

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		o, err := c.Send(ctx, "cid", []byte(`{}`))
		require.NoError(t, err)

		assert.Equal(t, OutcomeExhausted, o.Kind)
		assert.ErrorIs(t, o.Err, context.Canceled)
		assert.LessOrEqual(t, o.Attempts, 2)
		assert.Equal(t, 0, u.count())
	})
}

func TestClient_SendHeaders(t *testing.T) {
	u := &upstream{statuses: []int{http.StatusOK}, bodies: []string{"ok"}}
	c := newTestClient(t, u, "sk-ant-1")

	o, err := c.Send(context.Background(), "cid", []byte(`{"model":"claude-2"}`))
	require.NoError(t, err)
	defer o.Close()

	require.Equal(t, 1, u.count())
	h := u.calls[0].header
	assert.Equal(t, "application/json", h.Get("Accept"))
	assert.Equal(t, "application/json", h.Get("Content-Type"))
	assert.Equal(t, "sk-ant-1", h.Get("x-api-key"))
	assert.Equal(t, DefaultVersion, h.Get("anthropic-version"))
	assert.Equal(t, DefaultUserAgent, h.Get("User-Agent"))
	assert.Equal(t, `{"model":"claude-2"}`, u.calls[0].body)
}

func TestClient_MaxAttempts(t *testing.T) {
	u := &upstream{statuses: []int{http.StatusUnauthorized}, bodies: []string{"bad"}}
	srv := httptest.NewServer(u)
	defer srv.Close()

	c := NewClient(srv.Client(), &sequenceSelector{keys: []string{"a", "b", "c"}}, Config{Url: srv.URL, MaxAttempts: 3}, nil)
	assert.Equal(t, 3, c.MaxAttempts())

	o, err := c.Send(context.Background(), "cid", []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, OutcomeExhausted, o.Kind)
	assert.Equal(t, 3, u.count())
}

func TestClient_SingleAttempt(t *testing.T) {
	u := &upstream{statuses: []int{http.StatusTooManyRequests}, bodies: []string{"throttled"}}
	srv := httptest.NewServer(u)
	defer srv.Close()

	c := NewClient(srv.Client(), &sequenceSelector{keys: []string{"a", "b"}}, Config{Url: srv.URL, MaxAttempts: 1}, nil)
	assert.Equal(t, 1, c.MaxAttempts())

	o, err := c.Send(context.Background(), "cid", []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, OutcomeExhausted, o.Kind)
	assert.Equal(t, http.StatusTooManyRequests, o.StatusCode)
	assert.Equal(t, "throttled", o.Text)
	assert.Equal(t, 1, o.Attempts)
	assert.Equal(t, 1, u.count())
}

func TestClassify(t *testing.T) {
	assert.Equal(t, verdictRetryable, classify(nil, context.DeadlineExceeded))
	assert.Equal(t, verdictRetryable, classify(&http.Response{StatusCode: 401}, nil))
	assert.Equal(t, verdictRetryable, classify(&http.Response{StatusCode: 429}, nil))

	for _, code := range []int{200, 201, 302, 400, 403, 404, 500, 503} {
		assert.Equal(t, verdictTerminal, classify(&http.Response{StatusCode: code}, nil), "status %d", code)
	}
}
