// Package batch executes ordered lists of operations as one unit.
package batch

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/kvapi-dev/kvapi/storage/model"
)

// DefaultMaxSize is the default maximum number of operations in a batch
const DefaultMaxSize = 1000

// Dispatcher executes a single operation
type Dispatcher interface {
	Dispatch(ctx context.Context, sessionID string, op model.Operation) (any, error)
}

// Executor executes batches through a Dispatcher
type Executor struct {
	dispatcher Dispatcher
	maxSize    int
}

// NewExecutor creates a new Executor; a maxSize <= 0 selects DefaultMaxSize
func NewExecutor(dispatcher Dispatcher, maxSize int) *Executor {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Executor{
		dispatcher: dispatcher,
		maxSize:    maxSize,
	}
}

// Execute runs ops in order, one at a time, on behalf of the session with the
// passed id. The returned results are index-aligned with ops; a failing
// operation only affects its own result. If ctx is done the remaining
// operations are not executed and report an internal error.
func (e *Executor) Execute(ctx context.Context, sessionID string, ops []model.Operation) ([]model.Result, error) {
	if len(ops) > e.maxSize {
		return nil, model.BadRequestErrorFmt("a batch must not contain more than %d operations", e.maxSize)
	}
	start := time.Now()
	results := make([]model.Result, len(ops))
	var failed int
	for i, op := range ops {
		if err := ctx.Err(); err != nil {
			results[i] = errorResult(err)
			failed++
			continue
		}
		body, err := e.dispatcher.Dispatch(ctx, sessionID, op)
		results[i] = NewResult(op.Op, body, err)
		if err != nil {
			failed++
		}
	}
	log.WithFields(
		log.Fields{
			"operations": len(ops),
			"failed":     failed,
			"duration":   time.Since(start),
		},
	).Debug("executed batch")
	return results, nil
}

// NewResult builds the Result of an operation from its body and error
func NewResult(op model.OpName, body any, err error) model.Result {
	if err != nil {
		return errorResult(err)
	}
	res := model.Result{Status: op.SuccessStatus()}
	if body == nil || res.Status == http.StatusNoContent {
		return res
	}
	data, err := json.Marshal(body)
	if err != nil {
		return errorResult(err)
	}
	res.Body = data
	return res
}

func errorResult(err error) model.Result {
	status, body := model.NewErrorResponse(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("batch operation failed")
	}
	return model.Result{
		Status:  status,
		Error:   body.Error,
		Message: body.Message,
	}
}
