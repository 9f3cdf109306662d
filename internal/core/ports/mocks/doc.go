// Package mocks provides test doubles for ports interfaces.
//
// These mocks are designed to be simple, thread-safe, in-memory implementations
// suitable for unit testing. Each mock provides:
//
//   - Default behavior that mirrors the PostgreSQL store closely enough for handler tests
//   - Callback functions (xxxFn) for customizing behavior per test
//   - Helper methods for setting state directly
//
// # Usage Example
//
//	func TestSampler(t *testing.T) {
//		store := mocks.NewStore()
//		store.AddCalibrationItem(domain.CalibrationItem{PublicationID: "pub-1"})
//
//		sampler := calibration.NewSampler(store)
//		// ... test sampler behavior
//	}
//
// # Available Mocks
//
//   - Store: implements ports.Store
package mocks
