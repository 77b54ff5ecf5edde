/*

This file defines the error taxonomy shared by every vault operation. Packages
wrap these sentinels with fmt.Errorf("%w: ...") so callers can classify
failures with errors.Is while still seeing a descriptive reason.

*/

package types

import "errors"

var (
	// ErrInvalidInput covers zero amounts, empty accounts and out-of-range
	// percentages. Rejected synchronously before any state mutation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInsufficientBalance is surfaced unchanged from the asset ledger.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrStateSequence marks operations invoked out of lifecycle order:
	// rollover without a prepared position, completing a withdrawal that was
	// never requested or not yet priced, requesting more shares than owned.
	ErrStateSequence = errors.New("state sequence violation")

	// ErrExternalComputation marks zero or out-of-range values returned by the
	// pricing manager or pool venue. The enclosing multi-step operation aborts
	// with no partial state written.
	ErrExternalComputation = errors.New("external computation failure")

	// ErrSlippage is returned by the swap venue when the minimum output bound
	// is not met. The enclosing rebalance fails and capital stays unplaced.
	ErrSlippage = errors.New("slippage bound violated")

	// ErrReentrancy is returned when a guarded operation is re-entered as a
	// side effect of its own external call.
	ErrReentrancy = errors.New("reentrant call")
)
