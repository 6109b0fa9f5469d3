package payment

import (
	"context"
	"fmt"
)

// MockProvider is a payment provider for tests. By default every charge and
// refund succeeds immediately; set the Func fields to script failures.
type MockProvider struct {
	// ChargeFunc allows customizing charge behavior.
	ChargeFunc func(ctx context.Context, params ChargeParams) (*ChargeResult, error)

	// RefundFunc allows customizing refund behavior.
	RefundFunc func(ctx context.Context, params RefundParams) (*RefundResult, error)

	// CallLog tracks method calls for test assertions.
	CallLog []string

	charges int
}

var _ Provider = (*MockProvider)(nil)

// NewMockProvider creates a mock payment provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{CallLog: []string{}}
}

// Charge records the call and succeeds unless ChargeFunc says otherwise.
func (m *MockProvider) Charge(ctx context.Context, params ChargeParams) (*ChargeResult, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("Charge(%s, %d)", params.OrderID, params.AmountCents))

	if m.ChargeFunc != nil {
		return m.ChargeFunc(ctx, params)
	}

	m.charges++
	return &ChargeResult{
		Success:       true,
		TransactionID: fmt.Sprintf("TXN_mock_%d", m.charges),
		Gateway:       GatewayFor(params.Method),
	}, nil
}

// Refund records the call and succeeds unless RefundFunc says otherwise.
func (m *MockProvider) Refund(ctx context.Context, params RefundParams) (*RefundResult, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("Refund(%s, %d)", params.OrderID, params.AmountCents))

	if m.RefundFunc != nil {
		return m.RefundFunc(ctx, params)
	}

	m.charges++
	return &RefundResult{
		Success:     true,
		RefundID:    fmt.Sprintf("TXN_mock_%d", m.charges),
		AmountCents: params.AmountCents,
	}, nil
}
