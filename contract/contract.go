//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"campus-dm/domain/event"
)

// Worker is a unit of supervised work. It doesn't protect itself: panics and
// errors are the supervisor's problem.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of a worker for
// logging and supervision, avoiding a manual naming method on the interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives events fanned out by the delivery channel.
// Consume must be fast or buffered: it is called under room serialization.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}
