package network

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// Compile-time interface check.
var _ BlockchainService = (*EsploraClient)(nil)

// DefaultEsploraURL returns the public mempool.space API for params.
func DefaultEsploraURL(params *chaincfg.Params) (string, error) {
	switch params.Net {
	case wire.MainNet:
		return "https://mempool.space/api", nil
	case wire.TestNet3:
		return "https://mempool.space/testnet/api", nil
	case chaincfg.SigNetParams.Net:
		return "https://mempool.space/signet/api", nil
	}
	return "", errors.Errorf("network: no public esplora endpoint for %s", params.Name)
}

// EsploraConfig configures an EsploraClient.
type EsploraConfig struct {
	URL               string // API base, e.g. https://mempool.space/api
	Params            *chaincfg.Params
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
}

// EsploraClient talks to an Esplora REST API such as mempool.space.
// Requests are rate limited client-side.
type EsploraClient struct {
	baseURL string
	params  *chaincfg.Params
	client  *http.Client
	limiter *rate.Limiter
}

// NewEsploraClient creates a client. Zero rate settings default to 5
// requests per second with a burst of 10.
func NewEsploraClient(cfg EsploraConfig) (*EsploraClient, error) {
	if cfg.Params == nil {
		cfg.Params = &chaincfg.MainNetParams
	}
	if cfg.URL == "" {
		u, err := DefaultEsploraURL(cfg.Params)
		if err != nil {
			return nil, err
		}
		cfg.URL = u
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &EsploraClient{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		params:  cfg.Params,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
	}, nil
}

// request performs one HTTP call. Only transport failures are returned as
// errors; callers interpret the status code.
func (c *EsploraClient) request(ctx context.Context, method, path string, body io.Reader) ([]byte, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, errors.Wrap(err, "network: rate limiter")
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, 0, errors.Wrap(err, "network: create request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "text/plain")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, errors.Wrapf(ErrConnectionFailed, "%s %s: %v", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, 0, errors.Wrapf(ErrConnectionFailed, "read %s: %v", path, err)
	}
	return data, resp.StatusCode, nil
}

// getJSON decodes a successful GET into v. A 404 becomes notFound.
func (c *EsploraClient) getJSON(ctx context.Context, path string, notFound error, v interface{}) error {
	data, status, err := c.request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound && notFound != nil {
		return errors.Wrapf(notFound, "%s: %s", path, strings.TrimSpace(string(data)))
	}
	if status < 200 || status >= 300 {
		return errors.Wrapf(ErrConnectionFailed, "GET %s: HTTP %d: %s", path, status, snippet(data))
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(ErrInvalidResponse, "decode %s: %v", path, err)
	}
	return nil
}

func snippet(data []byte) string {
	s := strings.TrimSpace(string(data))
	if len(s) > 256 {
		s = s[:256]
	}
	return s
}

type esploraStatus struct {
	Confirmed   bool   `json:"confirmed"`
	BlockHeight uint64 `json:"block_height"`
	BlockHash   string `json:"block_hash"`
}

type esploraUtxo struct {
	TxID   string        `json:"txid"`
	Vout   uint32        `json:"vout"`
	Value  uint64        `json:"value"`
	Status esploraStatus `json:"status"`
}

// ListUnspent queries /address/:addr/utxo for each address.
func (c *EsploraClient) ListUnspent(ctx context.Context, addresses []string) ([]*UTXO, error) {
	var (
		utxos []*UTXO
		tip   uint64
	)
	for _, addr := range addresses {
		decoded, err := btcutil.DecodeAddress(addr, c.params)
		if err != nil {
			return nil, errors.Wrapf(err, "network: decode address %s", addr)
		}
		script, err := txscript.PayToAddrScript(decoded)
		if err != nil {
			return nil, errors.Wrapf(err, "network: script for %s", addr)
		}

		var res []esploraUtxo
		if err := c.getJSON(ctx, "/address/"+addr+"/utxo", nil, &res); err != nil {
			return nil, err
		}
		for _, r := range res {
			u := &UTXO{
				TxID:         r.TxID,
				Vout:         r.Vout,
				Amount:       r.Value,
				ScriptPubKey: hex.EncodeToString(script),
				Address:      addr,
			}
			if r.Status.Confirmed {
				if tip == 0 {
					if tip, err = c.GetBestBlockHeight(ctx); err != nil {
						return nil, err
					}
				}
				u.BlockHeight = r.Status.BlockHeight
				if tip >= r.Status.BlockHeight {
					u.Confirmations = int64(tip - r.Status.BlockHeight + 1)
				}
			}
			utxos = append(utxos, u)
		}
	}
	return utxos, nil
}

type esploraTx struct {
	TxID string `json:"txid"`
	Vin  []struct {
		TxID     string `json:"txid"`
		Vout     uint32 `json:"vout"`
		Sequence uint32 `json:"sequence"`
		Prevout  *struct {
			ScriptPubKeyAddress string `json:"scriptpubkey_address"`
			Value               uint64 `json:"value"`
		} `json:"prevout"`
	} `json:"vin"`
	Vout []struct {
		ScriptPubKey        string `json:"scriptpubkey"`
		ScriptPubKeyAddress string `json:"scriptpubkey_address"`
		Value               uint64 `json:"value"`
	} `json:"vout"`
	Weight uint64        `json:"weight"`
	Fee    uint64        `json:"fee"`
	Status esploraStatus `json:"status"`
}

// GetTransaction fetches /tx/:txid, which includes prevouts and the fee.
func (c *EsploraClient) GetTransaction(ctx context.Context, txid string) (*Transaction, error) {
	var res esploraTx
	if err := c.getJSON(ctx, "/tx/"+txid, ErrTxNotFound, &res); err != nil {
		return nil, err
	}
	tx := &Transaction{
		TxID:      res.TxID,
		Fee:       res.Fee,
		Weight:    res.Weight,
		VSize:     vsizeFromWeight(res.Weight),
		Confirmed: res.Status.Confirmed,
		BlockHash: res.Status.BlockHash,
	}
	if tx.Confirmed {
		tx.BlockHeight = res.Status.BlockHeight
	}
	for _, vin := range res.Vin {
		in := TxInput{PrevTxID: vin.TxID, PrevVout: vin.Vout, Sequence: vin.Sequence}
		if vin.Prevout != nil {
			in.Value = vin.Prevout.Value
			in.Address = vin.Prevout.ScriptPubKeyAddress
		}
		tx.Inputs = append(tx.Inputs, in)
	}
	for i, vout := range res.Vout {
		tx.Outputs = append(tx.Outputs, TxOutput{
			Vout:         uint32(i),
			Value:        vout.Value,
			Address:      vout.ScriptPubKeyAddress,
			ScriptPubKey: vout.ScriptPubKey,
		})
	}
	return tx, nil
}

// GetOutspend fetches /tx/:txid/outspend/:vout.
func (c *EsploraClient) GetOutspend(ctx context.Context, txid string, vout uint32) (*Outspend, error) {
	var res struct {
		Spent  bool          `json:"spent"`
		TxID   string        `json:"txid"`
		Status esploraStatus `json:"status"`
	}
	path := fmt.Sprintf("/tx/%s/outspend/%d", txid, vout)
	if err := c.getJSON(ctx, path, ErrTxNotFound, &res); err != nil {
		return nil, err
	}
	return &Outspend{Spent: res.Spent, SpentBy: res.TxID, Confirmed: res.Spent && res.Status.Confirmed}, nil
}

// BroadcastTx posts the hex to /tx. A 400 response carries the node's
// rejection reason.
func (c *EsploraClient) BroadcastTx(ctx context.Context, rawTxHex string) (string, error) {
	data, status, err := c.request(ctx, http.MethodPost, "/tx", strings.NewReader(rawTxHex))
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", errors.Wrapf(ErrBroadcastRejected, "HTTP %d: %s", status, snippet(data))
	}
	txid := strings.TrimSpace(string(data))
	if len(txid) != 64 {
		return "", errors.Wrapf(ErrInvalidResponse, "broadcast returned %q", snippet(data))
	}
	return txid, nil
}

// GetBestBlockHeight fetches /blocks/tip/height.
func (c *EsploraClient) GetBestBlockHeight(ctx context.Context) (uint64, error) {
	data, status, err := c.request(ctx, http.MethodGet, "/blocks/tip/height", nil)
	if err != nil {
		return 0, err
	}
	if status != http.StatusOK {
		return 0, errors.Wrapf(ErrConnectionFailed, "tip height: HTTP %d", status)
	}
	height, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidResponse, "tip height %q", snippet(data))
	}
	return height, nil
}

// RecommendedFees fetches /v1/fees/recommended.
func (c *EsploraClient) RecommendedFees(ctx context.Context) (*RecommendedFees, error) {
	var fees RecommendedFees
	if err := c.getJSON(ctx, "/v1/fees/recommended", nil, &fees); err != nil {
		return nil, err
	}
	return &fees, nil
}
