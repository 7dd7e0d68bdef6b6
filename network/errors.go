package network

import "errors"

var (
	// ErrConnectionFailed covers transport failures and unexpected HTTP
	// statuses from bitcoind or an Esplora server.
	ErrConnectionFailed = errors.New("network: connection failed")

	// ErrAuthFailed means bitcoind answered 401 to the RPC credentials.
	ErrAuthFailed = errors.New("network: authentication failed")

	// ErrTxNotFound means neither the mempool nor the chain knows the
	// txid. Evaluation treats it as "not boostable" rather than a failure.
	ErrTxNotFound = errors.New("network: transaction not found")

	// ErrBroadcastRejected means the node refused a signed boost: a
	// sendrawtransaction RPC error, or a non-2xx reply to Esplora's
	// POST /tx. The wrapped message carries the policy reason, such as
	// "insufficient fee" for a replacement that does not beat the
	// original or "txn-mempool-conflict" for a non-replaceable one.
	ErrBroadcastRejected = errors.New("network: broadcast rejected by node")

	// ErrInvalidResponse means a reply could not be decoded into the
	// expected transaction, UTXO or fee shape.
	ErrInvalidResponse = errors.New("network: invalid response")
)
