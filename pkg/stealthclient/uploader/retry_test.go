package uploader

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeTimeoutError struct{}

func (fakeTimeoutError) Error() string   { return "i/o timeout" }
func (fakeTimeoutError) Timeout() bool   { return true }
func (fakeTimeoutError) Temporary() bool { return true }

func TestIsRetryableClassifiesTimeouts(t *testing.T) {
	var netErr net.Error = fakeTimeoutError{}
	require.True(t, isRetryable(nil, netErr))
}

func TestIsRetryableClassifiesConnectionReset(t *testing.T) {
	require.True(t, isRetryable(nil, errors.New("read: connection reset by peer")))
	require.True(t, isRetryable(nil, errors.New("dial tcp: connection refused")))
}

func TestIsRetryableClassifies5xxResponses(t *testing.T) {
	require.True(t, isRetryable(&http.Response{StatusCode: 503}, nil))
	require.False(t, isRetryable(&http.Response{StatusCode: 404}, nil))
	require.False(t, isRetryable(&http.Response{StatusCode: 200}, nil))
}

func TestIsRetryableRejectsOtherErrors(t *testing.T) {
	require.False(t, isRetryable(nil, errors.New("invalid request")))
}

func TestWithRetrySucceedsOnFirstAttempt(t *testing.T) {
	calls := 0
	resp, err := WithRetry(context.Background(), func() (*http.Response, error) {
		calls++
		return &http.Response{StatusCode: 200}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, 1, calls)
}

func TestWithRetryRetriesOn5xxThenSucceeds(t *testing.T) {
	calls := 0
	resp, err := WithRetry(context.Background(), func() (*http.Response, error) {
		calls++
		if calls < MaxAttempts {
			return &http.Response{StatusCode: 503}, nil
		}
		return &http.Response{StatusCode: 200}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, MaxAttempts, calls)
}

func TestWithRetryStopsAfterMaxAttempts(t *testing.T) {
	calls := 0
	_, err := WithRetry(context.Background(), func() (*http.Response, error) {
		calls++
		return &http.Response{StatusCode: 503}, nil
	})
	require.Error(t, err)
	require.Equal(t, MaxAttempts, calls)
}

func TestWithRetryDoesNotRetryNonRetryableStatus(t *testing.T) {
	calls := 0
	resp, err := WithRetry(context.Background(), func() (*http.Response, error) {
		calls++
		return &http.Response{StatusCode: 400}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 400, resp.StatusCode)
	require.Equal(t, 1, calls)
}

func TestWithRetryRespectsContextCancellationDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := WithRetry(ctx, func() (*http.Response, error) {
		calls++
		return &http.Response{StatusCode: 503}, nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, calls, MaxAttempts)
}

func TestBackoffDelayIsCappedAndIncreasing(t *testing.T) {
	require.Less(t, backoffDelay(1), backoffDelay(2))
	require.LessOrEqual(t, backoffDelay(10), retryableMaxDelay)
}
