package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/opencoreai/turnengine/internal/content"
	"github.com/opencoreai/turnengine/internal/testutil"
	"github.com/opencoreai/turnengine/internal/transport"
)

func TestRetrierReturnsFirstSuccess(testingHandle *testing.T) {
	retrier := NewRetrier()
	calls := 0
	result, err := retrier.Do(context.Background(), func(ctx context.Context) (*transport.Result, error) {
		calls++
		return &transport.Result{StopReason: content.StopEndTurn}, nil
	})
	testutil.RequireNoError(testingHandle, err, "first call should succeed")
	testutil.RequireEqual(testingHandle, calls, 1, "should not retry on success")
	testutil.RequireEqual(testingHandle, result.StopReason, content.StopEndTurn, "stop reason")
}

func TestRetrierShortCircuitsOnPermanentError(testingHandle *testing.T) {
	retrier := NewRetrier()
	calls := 0
	_, err := retrier.Do(context.Background(), func(ctx context.Context) (*transport.Result, error) {
		calls++
		return nil, &transport.HTTPError{Status: 400}
	})
	testutil.RequireTrue(testingHandle, err != nil, "expected an error")
	testutil.RequireEqual(testingHandle, calls, 1, "permanent errors must not retry")
}

func TestRetrierHonorsRetryAfterOverride(testingHandle *testing.T) {
	retrier := NewRetrier()
	calls := 0
	result, err := retrier.Do(context.Background(), func(ctx context.Context) (*transport.Result, error) {
		calls++
		if calls == 1 {
			return nil, &transport.HTTPError{Status: 503, RetryAfter: 0}
		}
		return &transport.Result{StopReason: content.StopEndTurn}, nil
	})
	testutil.RequireNoError(testingHandle, err, "should succeed on second attempt")
	testutil.RequireEqual(testingHandle, calls, 2, "expected exactly one retry")
	testutil.RequireEqual(testingHandle, result.StopReason, content.StopEndTurn, "stop reason")
}

func TestRetrierStopsOnContextCancellation(testingHandle *testing.T) {
	retrier := NewRetrier()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := retrier.Do(ctx, func(ctx context.Context) (*transport.Result, error) {
		return nil, &transport.TransportError{Class: transport.TransportTimeout, Inner: errors.New("dial timeout")}
	})
	testutil.RequireTrue(testingHandle, err != nil, "expected context cancellation error")
	testutil.RequireErrorIs(testingHandle, err, context.Canceled, "should surface context.Canceled")
}
