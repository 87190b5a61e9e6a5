// Package stateclient reads contract state from a chain node over HTTP: the
// raw encoded state root by contract address, and AVL tree entries through
// the node's paging endpoints. Its tree access satisfies avl.Store, so a
// decoded ContractState can resolve lookups against a live node without
// materializing the trees locally.
package stateclient

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/veildraw/veildraw/internal/avl"
	"github.com/veildraw/veildraw/pkg/serialization/abi"
)

var ErrNotFound = errors.New("stateclient: not found")

// StatusError reports a non-2xx response from the node.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("stateclient: node returned %d: %s", e.Code, e.Body)
}

const defaultTimeout = 10 * time.Second

type Client struct {
	base  *url.URL
	http  *http.Client
	shard string
}

type Option func(*Client)

// WithShard routes requests through a specific shard of the node.
func WithShard(shard string) Option {
	return func(c *Client) { c.shard = shard }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	c := &Client{
		base: u,
		http: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// RawState fetches the encoded contract-state root for the given address.
func (c *Client) RawState(ctx context.Context, contract abi.Address) ([]byte, error) {
	return c.get(ctx, c.contractPath(contract, "state"), nil)
}

// TreeStore returns an avl.Store view over the contract's trees. All calls
// run under ctx.
func (c *Client) TreeStore(ctx context.Context, contract abi.Address) avl.Store {
	return &remoteTreeStore{client: c, ctx: ctx, contract: contract}
}

type remoteTreeStore struct {
	client   *Client
	ctx      context.Context
	contract abi.Address
}

func (s *remoteTreeStore) Get(tree avl.TreeID, key []byte) ([]byte, bool, error) {
	path := s.client.treePath(s.contract, tree, "entry", hex.EncodeToString(key))
	body, err := s.client.get(s.ctx, path, nil)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return body, true, nil
}

func (s *remoteTreeStore) Size(tree avl.TreeID) (uint64, error) {
	body, err := s.client.get(s.ctx, s.client.treePath(s.contract, tree, "size"), nil)
	if err != nil {
		return 0, err
	}
	size, err := strconv.ParseUint(string(body), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse tree size %q: %w", body, err)
	}
	return size, nil
}

type pageEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (s *remoteTreeStore) NextN(tree avl.TreeID, after []byte, n uint64) ([]avl.RawEntry, error) {
	query := url.Values{"n": {strconv.FormatUint(n, 10)}}
	if after != nil {
		query.Set("after", hex.EncodeToString(after))
	}
	body, err := s.client.get(s.ctx, s.client.treePath(s.contract, tree, "next"), query)
	if err != nil {
		return nil, err
	}
	var page []pageEntry
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode tree page: %w", err)
	}
	entries := make([]avl.RawEntry, 0, len(page))
	for _, e := range page {
		key, err := hex.DecodeString(e.Key)
		if err != nil {
			return nil, fmt.Errorf("decode entry key %q: %w", e.Key, err)
		}
		value, err := hex.DecodeString(e.Value)
		if err != nil {
			return nil, fmt.Errorf("decode entry value for key %q: %w", e.Key, err)
		}
		entries = append(entries, avl.RawEntry{Key: key, Value: value})
	}
	return entries, nil
}

func (c *Client) contractPath(contract abi.Address, parts ...string) string {
	segments := []string{"blockchain", "contracts", hex.EncodeToString(contract[:])}
	if c.shard != "" {
		segments = append([]string{"shards", c.shard}, segments...)
	}
	return "/" + strings.Join(append(segments, parts...), "/")
}

func (c *Client) treePath(contract abi.Address, tree avl.TreeID, parts ...string) string {
	return c.contractPath(contract, append([]string{"avl", strconv.FormatInt(int64(tree), 10)}, parts...)...)
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := *c.base
	u.Path = joinBase(u.Path, path)
	if query != nil {
		u.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func joinBase(base, path string) string {
	return strings.TrimRight(base, "/") + path
}
