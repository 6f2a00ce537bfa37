package notify

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockNotifier is a mock implementation of Notifier for testing.
// It uses testify/mock to configure behavior and track calls.
//
// Example usage:
//
//	notifier := new(MockNotifier)
//	notifier.On("Notify", mock.Anything, mock.Anything).Return(nil)
//
//	err := notifier.Notify(ctx, Payload{Title: "hi"})
//	require.NoError(t, err)
//	notifier.AssertCalled(t, "Notify", mock.Anything, mock.Anything)
type MockNotifier struct {
	mock.Mock
}

// Notify records the call and returns the configured error.
func (m *MockNotifier) Notify(ctx context.Context, p Payload) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}
