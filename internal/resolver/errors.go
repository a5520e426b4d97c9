package resolver

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrTemplateNotFound matches every TemplateNotFoundError through errors.Is
var ErrTemplateNotFound = errors.New("base template not found")

// TemplateNotFoundError reports an instance whose template row is gone.
// This is data corruption and is never the same thing as an absent instance.
type TemplateNotFoundError struct {
	InstanceID uuid.UUID
	TemplateID uuid.UUID
}

func (e *TemplateNotFoundError) Error() string {
	return "Base template not found: " + e.TemplateID.String()
}

func (e *TemplateNotFoundError) Is(target error) bool {
	return target == ErrTemplateNotFound
}
