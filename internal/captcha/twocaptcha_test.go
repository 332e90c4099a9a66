package captcha

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTwoCaptchaClient_Balance(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/res.php", r.URL.Path)
		require.Equal(t, "getbalance", r.URL.Query().Get("action"))
		require.Equal(t, "test-key", r.URL.Query().Get("key"))
		fmt.Fprint(w, `{"status":1,"request":"12.3456"}`)
	}))
	defer srv.Close()

	client := newTwoCaptchaClient("test-key", srv.URL)
	balance, err := client.Balance(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 12.3456, balance, 0.0001)
}

func TestTwoCaptchaClient_BalanceError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"status":0,"request":"ERROR_WRONG_USER_KEY"}`)
	}))
	defer srv.Close()

	client := newTwoCaptchaClient("bad-key", srv.URL)
	_, err := client.Balance(context.Background())
	require.ErrorContains(t, err, "ERROR_WRONG_USER_KEY")
}

func TestTwoCaptchaClient_SubmitAndPoll(t *testing.T) {
	t.Parallel()

	token := strings.Repeat("t", 120)
	var polls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/in.php":
			require.NoError(t, r.ParseForm())
			require.Equal(t, "userrecaptcha", r.Form.Get("method"))
			require.Equal(t, "6LexampleSiteKey1234567890", r.Form.Get("googlekey"))
			require.Equal(t, "https://portal.example/search", r.Form.Get("pageurl"))
			fmt.Fprint(w, `{"status":1,"request":"job-42"}`)
		case "/res.php":
			require.Equal(t, "job-42", r.URL.Query().Get("id"))
			if polls.Add(1) < 3 {
				fmt.Fprint(w, `{"status":0,"request":"CAPCHA_NOT_READY"}`)
				return
			}
			fmt.Fprintf(w, `{"status":1,"request":"%s"}`, token)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := newTwoCaptchaClient("test-key", srv.URL)
	ctx := context.Background()

	jobID, err := client.Submit(ctx, "6LexampleSiteKey1234567890", "https://portal.example/search")
	require.NoError(t, err)
	require.Equal(t, "job-42", jobID)

	got, err := client.PollSolution(ctx, jobID, 5*time.Millisecond, time.Second)
	require.NoError(t, err)
	require.Equal(t, token, got)
	require.GreaterOrEqual(t, polls.Load(), int32(3))
}

func TestTwoCaptchaClient_SubmitRejectsShortSiteKey(t *testing.T) {
	t.Parallel()

	client := newTwoCaptchaClient("test-key", "http://unused.invalid")
	_, err := client.Submit(context.Background(), "short", "https://portal.example")
	require.ErrorContains(t, err, "too short")
}

func TestTwoCaptchaClient_PollTimeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"status":0,"request":"CAPTCHA_NOT_READY"}`)
	}))
	defer srv.Close()

	client := newTwoCaptchaClient("test-key", srv.URL)
	_, err := client.PollSolution(context.Background(), "job-1", 5*time.Millisecond, 25*time.Millisecond)
	require.ErrorContains(t, err, "not ready after")
}

func TestTwoCaptchaClient_PollTerminalError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"status":0,"request":"ERROR_CAPTCHA_UNSOLVABLE"}`)
	}))
	defer srv.Close()

	client := newTwoCaptchaClient("test-key", srv.URL)
	_, err := client.PollSolution(context.Background(), "job-1", 5*time.Millisecond, time.Second)
	require.ErrorContains(t, err, "ERROR_CAPTCHA_UNSOLVABLE")
}
