package review

import (
	"errors"
	"fmt"

	recordstore "github.com/dalemusser/classhub/internal/app/store/records"
	"github.com/dalemusser/classhub/internal/app/workflow"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("record was modified by someone else; reload and retry")
)

// storeErr maps repository errors onto the service's sentinels.
func storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, recordstore.ErrNotFound), errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case errors.Is(err, recordstore.ErrVersionConflict):
		return ErrConflict
	case errors.Is(err, recordstore.ErrUnknownKind):
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return err
}

// workflowErr maps ledger and state machine errors. ErrInvalidTransition
// passes through unchanged.
func workflowErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, workflow.ErrEmptyContent):
		return fmt.Errorf("%w: %v", ErrValidation, err)
	case errors.Is(err, workflow.ErrCommentNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, workflow.ErrNotCommentAuthor):
		return fmt.Errorf("%w: %v", ErrForbidden, err)
	}
	return err
}
