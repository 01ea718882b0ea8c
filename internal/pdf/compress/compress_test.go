package compress

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoop(t *testing.T) {
	out, err := Noop{}.Compress(context.Background(), "text", 3, Hint{})
	assert.Empty(t, out)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestLazyBuildsOnce(t *testing.T) {
	var builds int32
	lazy := NewLazy(func() (Compressor, error) {
		atomic.AddInt32(&builds, 1)
		return Func(func(_ context.Context, text string, maxChars int, _ Hint) (string, error) {
			return text[:maxChars], nil
		}), nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := lazy.Compress(context.Background(), "abcdef", 3, Hint{})
			assert.NoError(t, err)
			assert.Equal(t, "abc", out)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&builds))
}

func TestLazyRemembersFailure(t *testing.T) {
	var builds int
	boom := errors.New("no credentials")
	lazy := NewLazy(func() (Compressor, error) {
		builds++
		return nil, boom
	})

	for i := 0; i < 3; i++ {
		_, err := lazy.Compress(context.Background(), "text", 2, Hint{})
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, 1, builds)

	_, err := NewLazy(nil).Compress(context.Background(), "text", 2, Hint{})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestFactory(t *testing.T) {
	c, err := Factory(Settings{})()
	require.NoError(t, err)
	assert.IsType(t, Noop{}, c)

	c, err = Factory(Settings{Provider: "OpenAI", APIKey: "k"})()
	require.NoError(t, err)
	assert.IsType(t, &OpenAI{}, c)

	_, err = Factory(Settings{Provider: "gemini"})()
	assert.Error(t, err)

	_, err = Factory(Settings{Provider: "carrier-pigeon"})()
	assert.Error(t, err)
}

func TestPrompt(t *testing.T) {
	p := Prompt("1234 Long Street", 10, Hint{Label: "Address"})
	assert.Contains(t, p, "under 10 characters")
	assert.Contains(t, p, `field named "Address"`)
	assert.Contains(t, p, "a text field")
	assert.Contains(t, p, `"1234 Long Street"`)
}

func TestCleanReply(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Short text", "Short text"},
		{"  \"Quoted\"  ", "Quoted"},
		{"\n\nCompressed: 123 Main St\nextra", "123 Main St"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanReply(tt.in))
	}
}

func TestOpenAICompress(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotModel = body.Model
		assert.Len(t, body.Messages, 2)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"\"Very long descriptive sentence\""},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c := NewOpenAI(srv.URL+"/v1", "test-key", "test-model")
	out, err := c.Compress(context.Background(), "This is a very long descriptive sentence", 35, Hint{Label: "Description"})
	require.NoError(t, err)
	assert.Equal(t, "Very long descriptive sentence", out)
	assert.Equal(t, "test-model", gotModel)
}

func TestOpenAINoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewOpenAI(srv.URL, "k", "m").Compress(context.Background(), "text", 2, Hint{})
	assert.Error(t, err)
}
