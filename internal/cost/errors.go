package cost

import "fmt"

// Error represents a cost-estimation or selection failure.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message carries additional context.
	Message string
}

// ErrorCode categorizes cost errors.
type ErrorCode string

const (
	// ErrCodeNoValidPlans indicates selection ran on an empty candidate
	// list: every candidate failed generation upstream.
	ErrCodeNoValidPlans ErrorCode = "NO_VALID_PLANS"

	// ErrCodeEstimation indicates malformed cost inputs. Defensive: the
	// planner never produces them.
	ErrCodeEstimation ErrorCode = "COST_ESTIMATION_ERROR"
)

func (e *Error) Error() string {
	return fmt.Sprintf("cost: %s: %s", e.Code, e.Message)
}
