package partition

import "errors"

// Failure kinds surfaced by the planning engine. Callers match these with
// errors.Is; the per-table driver decides which ones allow it to continue.
var (
	// ErrTableInformation means the table's CREATE statement or information
	// schema did not contain what the engine needs.
	ErrTableInformation = errors.New("table information unavailable")

	// ErrArityMismatch is returned when two positions of different lengths
	// are compared. Programmer error.
	ErrArityMismatch = errors.New("position arity mismatch")

	// ErrUnexpectedPartition means the partition list violates a structural
	// invariant (wrong ordering, missing tail, foreign arity).
	ErrUnexpectedPartition = errors.New("unexpected partition")

	// ErrDuplicatePartition is raised by the SQL emitter when a partition
	// name would be emitted twice. Programmer error.
	ErrDuplicatePartition = errors.New("duplicate partition name")

	// ErrMismatchedID means a single-column range table is not partitioned
	// by its AUTO_INCREMENT column.
	ErrMismatchedID = errors.New("range column does not match auto_increment column")

	// ErrNoEmptyPartitions signals that every partition is already filled;
	// the table needs the bootstrap procedure, not a maintenance plan.
	ErrNoEmptyPartitions = errors.New("no empty partitions available")

	// ErrNoRetention means the drop planner was invoked for a table without
	// a retention period.
	ErrNoRetention = errors.New("no retention period configured")

	// ErrNoExactTime means the earliest-timestamp query returned no usable
	// row for a partition.
	ErrNoExactTime = errors.New("no exact timestamp available")

	// ErrInvalidIdentifier is raised before interpolating an unsafe string
	// into SQL. Programmer error.
	ErrInvalidIdentifier = errors.New("invalid SQL identifier")

	// ErrInsufficientHistory means the bootstrap snapshot is not older than
	// the evaluation time.
	ErrInsufficientHistory = errors.New("insufficient history between snapshots")

	// ErrEmptyRateInput means no partition pair survived filtering during
	// rate estimation.
	ErrEmptyRateInput = errors.New("no usable partition pairs for rate estimation")

	// ErrNegativeRate / ErrNonPositiveRate reject rates the predictor cannot
	// project forward with.
	ErrNegativeRate    = errors.New("negative rate of change")
	ErrNonPositiveRate = errors.New("non-positive rate of change")

	// ErrTargetInPast means every column of the prediction target lies
	// behind the current position.
	ErrTargetInPast = errors.New("target position is entirely in the past")

	// ErrIncompletePlan means a planned partition lacks what an operation on
	// it needs: a bound when a bounded entry is materialised, or a timestamp
	// when the planner extends the plan past it.
	ErrIncompletePlan = errors.New("planned partition is incomplete")

	// ErrPlanOrder means a new partition preceded a changed one in a plan
	// handed to the emitter. Programmer error.
	ErrPlanOrder = errors.New("planned partitions out of order")
)
