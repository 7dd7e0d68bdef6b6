package network

import "context"

// MockBlockchainService is a test double for BlockchainService.
// All function fields must be set before the corresponding method is called.
type MockBlockchainService struct {
	ListUnspentFn        func(ctx context.Context, addresses []string) ([]*UTXO, error)
	GetTransactionFn     func(ctx context.Context, txid string) (*Transaction, error)
	GetOutspendFn        func(ctx context.Context, txid string, vout uint32) (*Outspend, error)
	BroadcastTxFn        func(ctx context.Context, rawTxHex string) (string, error)
	GetBestBlockHeightFn func(ctx context.Context) (uint64, error)
}

// Compile-time interface check.
var _ BlockchainService = (*MockBlockchainService)(nil)

func (m *MockBlockchainService) ListUnspent(ctx context.Context, addresses []string) ([]*UTXO, error) {
	return m.ListUnspentFn(ctx, addresses)
}
func (m *MockBlockchainService) GetTransaction(ctx context.Context, txid string) (*Transaction, error) {
	return m.GetTransactionFn(ctx, txid)
}
func (m *MockBlockchainService) GetOutspend(ctx context.Context, txid string, vout uint32) (*Outspend, error) {
	return m.GetOutspendFn(ctx, txid, vout)
}
func (m *MockBlockchainService) BroadcastTx(ctx context.Context, rawTxHex string) (string, error) {
	return m.BroadcastTxFn(ctx, rawTxHex)
}
func (m *MockBlockchainService) GetBestBlockHeight(ctx context.Context) (uint64, error) {
	return m.GetBestBlockHeightFn(ctx)
}
