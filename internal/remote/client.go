// Package remote is the transport of the sync runner. It pushes snapshots to the sync service over Connect.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/avast/retry-go"

	"github.com/at-ishikawa/tango/internal/logger"
	"github.com/at-ishikawa/tango/internal/syncapi"
	"github.com/at-ishikawa/tango/internal/syncer"
	"github.com/at-ishikawa/tango/internal/syncqueue"
)

// ErrRejected marks a push the server refused for a reason retrying will not fix, e.g. an invalid
// argument or a missing token. The runner still records it as a failure so it backs off.
var ErrRejected = errors.New("push rejected")

const defaultTimeout = 30 * time.Second

type Client struct {
	httpClient       *http.Client
	pushClient       *connect.Client[syncapi.PushRecordRequest, syncapi.PushRecordResponse]
	maxRetryAttempts uint
	retryDelay       time.Duration
	logger           *logger.Logger
}

var _ syncer.Transport = (*Client)(nil)

type Options struct {
	Endpoint string
	Token    string
	// RetryAttempts is the number of quick retries inside one push for transient errors.
	RetryAttempts uint
	RetryDelay    time.Duration
}

func NewClient(options Options, log *logger.Logger) *Client {
	if log == nil {
		log = logger.NewNop()
	}
	retryDelay := options.RetryDelay
	if retryDelay <= 0 {
		retryDelay = retry.DefaultDelay
	}

	httpClient := &http.Client{Timeout: defaultTimeout}
	clientOptions := []connect.ClientOption{connect.WithCodec(syncapi.JSONCodec{})}
	if options.Token != "" {
		clientOptions = append(clientOptions, connect.WithInterceptors(bearerTokenInterceptor(options.Token)))
	}
	baseURL := strings.TrimRight(options.Endpoint, "/")
	return &Client{
		httpClient:       httpClient,
		pushClient:       connect.NewClient[syncapi.PushRecordRequest, syncapi.PushRecordResponse](httpClient, baseURL+syncapi.SyncServicePushProcedure, clientOptions...),
		maxRetryAttempts: options.RetryAttempts,
		retryDelay:       retryDelay,
		logger:           log,
	}
}

func bearerTokenInterceptor(token string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			req.Header().Set("Authorization", "Bearer "+token)
			return next(ctx, req)
		}
	}
}

func (client *Client) Close() error {
	client.httpClient.CloseIdleConnections()
	return nil
}

// Push sends the snapshot of item. A conflict is returned as a result, not an error.
func (client *Client) Push(ctx context.Context, item syncqueue.Item) (syncer.PushResult, error) {
	payload, err := syncqueue.EncodePayload(item.Payload)
	if err != nil {
		return syncer.PushResult{}, fmt.Errorf("syncqueue.EncodePayload > %w", err)
	}
	req := &syncapi.PushRecordRequest{
		EntityType:      string(item.EntityType),
		EntityID:        item.EntityID,
		Payload:         payload,
		ClientUpdatedAt: item.ClientUpdatedAt,
	}

	var result syncer.PushResult
	err = retry.Do(
		func() error {
			var err error
			result, err = client.push(ctx, req)
			if err != nil && !isRetryableError(err) {
				return retry.Unrecoverable(err)
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(client.maxRetryAttempts+1),
		retry.Delay(client.retryDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			client.logger.Debug("push attempt failed",
				"entity_type", item.EntityType,
				"entity_id", item.EntityID,
				"attempt", n+1,
				"error", err,
			)
		}),
		retry.DelayType(func(n uint, err error, config *retry.Config) time.Duration {
			return retry.BackOffDelay(n, err, config)
		}),
	)
	if err != nil {
		return syncer.PushResult{}, err
	}
	return result, nil
}

func (client *Client) push(ctx context.Context, req *syncapi.PushRecordRequest) (syncer.PushResult, error) {
	res, err := client.pushClient.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		if ctx.Err() != nil {
			return syncer.PushResult{}, fmt.Errorf("pushClient.CallUnary > %w", ctx.Err())
		}
		if isRetryableCode(connect.CodeOf(err)) {
			return syncer.PushResult{}, fmt.Errorf("pushClient.CallUnary > %w", err)
		}
		return syncer.PushResult{}, fmt.Errorf("%w: %w", ErrRejected, err)
	}

	switch res.Msg.Status {
	case syncapi.StatusAccepted:
		return syncer.PushResult{Status: syncer.PushAccepted}, nil
	case syncapi.StatusConflict:
		if res.Msg.ServerUpdatedAt == nil {
			return syncer.PushResult{}, fmt.Errorf("%w: conflict response without server_updated_at", ErrRejected)
		}
		return syncer.PushResult{
			Status:          syncer.PushConflict,
			ServerUpdatedAt: res.Msg.ServerUpdatedAt.Time,
		}, nil
	default:
		return syncer.PushResult{}, fmt.Errorf("%w: unknown status %q", ErrRejected, res.Msg.Status)
	}
}

// isRetryableCode reports whether the server may accept the same push shortly.
func isRetryableCode(code connect.Code) bool {
	switch code {
	case connect.CodeUnavailable,
		connect.CodeResourceExhausted,
		connect.CodeAborted,
		connect.CodeInternal,
		connect.CodeUnknown,
		connect.CodeDeadlineExceeded:
		return true
	default:
		return false
	}
}

// isRetryableError reports whether a quick retry may succeed: unreachable servers and transient failures.
func isRetryableError(err error) bool {
	if err == nil || errors.Is(err, ErrRejected) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return isRetryableCode(connectErr.Code())
	}
	return true
}
