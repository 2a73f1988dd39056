// Package temporal evaluates recurrence schedules. An Expression answers
// one question: given an instant, when is the next matching occurrence?
package temporal

import (
	"context"
	"time"

	"github.com/fieldmark/joblane/errors"
)

// ErrExpressionNotFound is returned when an expression id has no stored definition.
var ErrExpressionNotFound = errors.New("temporal: expression not found")

// Expression is a schedule description evaluable against a point in time.
type Expression interface {
	// Next returns the first occurrence strictly after the given instant.
	// The second return value is false when the schedule has no further
	// occurrences.
	Next(after time.Time) (time.Time, bool)
}

// Evaluator resolves expression ids to evaluable expressions.
type Evaluator interface {
	Expression(ctx context.Context, id string) (Expression, error)
}
