package queue

import (
	job "github.com/maheshrc27/postpilot/internal/jobs"
	"github.com/maheshrc27/postpilot/internal/service"
)

// Queue handles the asynchronous trigger tasks: on-demand scans requested
// from the admin surface and allocation passes fired on queue-settings
// changes.
type Queue struct {
	scanner   *job.DueScanJob
	allocator service.AllocatorService
}

func NewQueue(scanner *job.DueScanJob, allocator service.AllocatorService) *Queue {
	return &Queue{
		scanner:   scanner,
		allocator: allocator,
	}
}

const (
	TaskTypeScanDue  = "scan:due"
	TaskTypeAllocate = "queue:allocate"
)

type AllocatePayload struct {
	AccountID int64 `json:"account_id"`
}
