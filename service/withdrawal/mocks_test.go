package withdrawal

import (
	"context"
	"errors"

	"github.com/brojonat/solwithdraw/service/solana"
	"github.com/stretchr/testify/mock"
)

type mockChain struct {
	mock.Mock
	network string
}

func (m *mockChain) Network() string { return m.network }

func (m *mockChain) GetBalance(ctx context.Context, address string) (uint64, error) {
	args := m.Called(ctx, address)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockChain) GetAccountInfo(ctx context.Context, address string) (*solana.AccountInfo, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*solana.AccountInfo), args.Error(1)
}

func (m *mockChain) GetLatestBlockhash(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockChain) SendTransaction(ctx context.Context, base64Tx string) (string, error) {
	args := m.Called(ctx, base64Tx)
	return args.String(0), args.Error(1)
}

func (m *mockChain) GetSignatureStatuses(ctx context.Context, signatures ...string) ([]*solana.SignatureStatus, error) {
	args := m.Called(ctx, signatures)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*solana.SignatureStatus), args.Error(1)
}

func (m *mockChain) WaitForConfirmation(ctx context.Context, signature string, opts solana.ConfirmOptions) (*solana.SignatureStatus, error) {
	args := m.Called(ctx, signature, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*solana.SignatureStatus), args.Error(1)
}

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) MarkProcessing(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockLedger) Complete(ctx context.Context, id string, c Completion) error {
	return m.Called(ctx, id, c).Error(0)
}

func (m *mockLedger) Fail(ctx context.Context, id string, reason string) error {
	return m.Called(ctx, id, reason).Error(0)
}

// staticKeys returns a copy of one secret key for one address.
type staticKeys struct {
	address string
	secret  []byte
	err     error
}

func (k *staticKeys) SecretKey(ctx context.Context, address string) ([]byte, error) {
	if k.err != nil {
		return nil, k.err
	}
	if address != k.address {
		return nil, errors.New("no secret key for " + address)
	}
	return append([]byte(nil), k.secret...), nil
}
