package queue

import (
	"encoding/json"
	"log"

	"github.com/hibiken/asynq"
)

// EnqueueScan requests an immediate scan for due posts.
func EnqueueScan(asynqClient *asynq.Client) error {
	task := asynq.NewTask(TaskTypeScanDue, nil)

	_, err := asynqClient.Enqueue(task)
	if err != nil {
		return err
	}

	log.Println("Scan task enqueued")
	return nil
}

// EnqueueAllocate requests an allocation pass for one account's queue.
func EnqueueAllocate(asynqClient *asynq.Client, payload AllocatePayload) error {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypeAllocate, taskPayload)

	_, err = asynqClient.Enqueue(task)
	if err != nil {
		return err
	}

	log.Printf("Allocation task enqueued: %+v", payload)
	return nil
}
