// Package chain is the network collaborator: a JSON-RPC eth_call client
// implementing the verify.ContractCaller port, the owners/threshold/nonce
// account reader, and the execTransaction calldata builder. Retry and
// timeout policy lives here, never in the core engine.
package chain

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/safekit/safe/pkg/types"
)

// ErrCallReverted marks an RPC-level execution error (revert or node
// rejection) as opposed to a transport failure.
var ErrCallReverted = errors.New("chain: call reverted")

// Config holds transport settings.
type Config struct {
	// RPCURL is the JSON-RPC endpoint.
	RPCURL string

	// Timeout bounds a single HTTP exchange.
	Timeout time.Duration

	// Attempts is the total number of tries for transient failures.
	Attempts uint

	// RetryDelay is the base delay between tries.
	RetryDelay time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(rpcURL string) Config {
	return Config{
		RPCURL:     rpcURL,
		Timeout:    15 * time.Second,
		Attempts:   3,
		RetryDelay: 500 * time.Millisecond,
	}
}

// Client performs read-only eth_call requests. Safe for concurrent use.
type Client struct {
	cfg  Config
	http *http.Client
	log  zerolog.Logger
}

// NewClient builds a Client from cfg.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig("").Timeout
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = DefaultConfig("").Attempts
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type callParams struct {
	To   string `json:"to"`
	Data string `json:"data"`
}

// Call performs eth_call against the latest block. Transport failures are
// retried; execution errors from the node are not, since re-asking the
// same state the same question changes nothing.
func (c *Client) Call(ctx context.Context, to types.Address, data []byte) ([]byte, error) {
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      uuid.NewString(),
		Method:  "eth_call",
		Params: []any{
			callParams{To: to.Hex(), Data: "0x" + hex.EncodeToString(data)},
			"latest",
		},
	}

	var out []byte
	err := retry.Do(
		func() error {
			raw, err := c.post(ctx, req)
			if err != nil {
				return err
			}
			out = raw
			return nil
		},
		retry.Attempts(c.cfg.Attempts),
		retry.Delay(c.cfg.RetryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, ErrCallReverted) && ctx.Err() == nil
		}),
	)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, req rpcRequest) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("chain: marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.RPCURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("chain: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chain: %s: %w", req.Method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("chain: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chain: %s: http %d", req.Method, resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return nil, fmt.Errorf("chain: decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrCallReverted, rpcResp.Error.Error())
	}

	var resultHex string
	if err := json.Unmarshal(rpcResp.Result, &resultHex); err != nil {
		return nil, fmt.Errorf("chain: decode result: %w", err)
	}
	c.log.Debug().
		Str("id", req.ID).
		Str("method", req.Method).
		Dur("elapsed", time.Since(started)).
		Int("result_bytes", (len(resultHex)-2)/2).
		Msg("rpc call")

	return hex.DecodeString(strings.TrimPrefix(resultHex, "0x"))
}
