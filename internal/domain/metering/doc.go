// Package metering provides domain models for utility meter billing.
//
// This package implements the meter billing bounded context, which is responsible for:
//   - Validating a new cumulative meter reading against the previous one
//   - Deriving consumed units and the billable amount for the reading
//   - Keeping water and electricity histories independent per unit
//
// Key Types:
//   - ReadingSubmission: A candidate reading, validated before it reaches the backend
//   - MeterReading: A reading accepted and stored by the backend
//   - History: Latest-first readings of one (unit, utility) pair
//
// Value Objects:
//   - UtilityType: Enumeration of metered utilities
//
// The previous reading is never cached between submissions. Callers fetch a fresh
// History before every validation and refetch after every write.
package metering
