// Package mocks provides generated test doubles for the delivery gateway
// ports in internal/core.
//
// The mocks are generated with go.uber.org/mock (gomock). To regenerate
// after an interface change, run:
//
//	go generate ./internal/mocks
package mocks

// Generate mock for PushGateway from internal/core.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=push_gateway_mock.go github.com/nordtolk/booking-api/internal/core PushGateway

// Generate mock for SMSGateway from internal/core.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=sms_gateway_mock.go github.com/nordtolk/booking-api/internal/core SMSGateway

// Generate mock for LanguageDirectory from internal/core.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=language_directory_mock.go github.com/nordtolk/booking-api/internal/core LanguageDirectory
