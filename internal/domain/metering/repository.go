package metering

import "context"

// ReadingRepository is the backend port for meter readings
type ReadingRepository interface {
	// ListReadings returns the stored readings of a unit for one utility
	ListReadings(ctx context.Context, utility UtilityType, unitID string) ([]MeterReading, error)

	// CreateReading stores a validated reading; the backend prices it and creates the due entry
	CreateReading(ctx context.Context, submission *ReadingSubmission) error
}
