package task

import (
	"context"

	"github.com/google/uuid"

	"github.com/studyhall/studyhall-api/internal/domain"
	"github.com/studyhall/studyhall-api/internal/generation"
)

// ContentGenerationTask adapts one admitted generation request into a
// Task the runner can execute. The credential was decided at admission
// time and travels with the task, not through any shared state.
type ContentGenerationTask struct {
	record       *domain.GenerationTask
	cred         generation.Credential
	orchestrator *Orchestrator
}

var _ Task = (*ContentGenerationTask)(nil)

// NewContentGenerationTask wraps a pending task record for execution.
func NewContentGenerationTask(record *domain.GenerationTask, cred generation.Credential, orchestrator *Orchestrator) *ContentGenerationTask {
	if record == nil {
		panic("record cannot be nil")
	}
	if orchestrator == nil {
		panic("orchestrator cannot be nil")
	}

	return &ContentGenerationTask{
		record:       record,
		cred:         cred,
		orchestrator: orchestrator,
	}
}

// ID implements Task.ID
func (t *ContentGenerationTask) ID() uuid.UUID {
	return t.record.ID
}

// Execute implements Task.Execute
func (t *ContentGenerationTask) Execute(ctx context.Context) error {
	return t.orchestrator.Run(ctx, t.record, t.cred)
}
