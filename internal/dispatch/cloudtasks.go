package dispatch

import (
	"context"
	"fmt"
	"strings"

	cloudtasks "cloud.google.com/go/cloudtasks/apiv2"
	"cloud.google.com/go/cloudtasks/apiv2/cloudtaskspb"
)

// CloudTasksQueue enqueues HTTP tasks on a Google Cloud Tasks queue.
type CloudTasksQueue struct {
	client    *cloudtasks.Client
	queuePath string
}

type CloudTasksQueueOptions struct {
	Client    *cloudtasks.Client
	ProjectID string
	Location  string
	QueueName string
}

func NewCloudTasksQueue(opts CloudTasksQueueOptions) (*CloudTasksQueue, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("cloud tasks client is required")
	}
	projectID := strings.TrimSpace(opts.ProjectID)
	if projectID == "" {
		return nil, fmt.Errorf("project id is required")
	}
	location := strings.TrimSpace(opts.Location)
	if location == "" {
		return nil, fmt.Errorf("location is required")
	}
	queueName := strings.TrimSpace(opts.QueueName)
	if queueName == "" {
		return nil, fmt.Errorf("queue name is required")
	}
	return &CloudTasksQueue{
		client:    opts.Client,
		queuePath: fmt.Sprintf("projects/%s/locations/%s/queues/%s", projectID, location, queueName),
	}, nil
}

func (q *CloudTasksQueue) Enqueue(ctx context.Context, endpointURL string, payload []byte) (TaskHandle, error) {
	if q == nil || q.client == nil {
		return TaskHandle{}, fmt.Errorf("cloud tasks queue is not initialized")
	}
	endpointURL, err := validateEnqueue(endpointURL, payload)
	if err != nil {
		return TaskHandle{}, err
	}
	task, err := q.client.CreateTask(ctx, &cloudtaskspb.CreateTaskRequest{
		Parent: q.queuePath,
		Task: &cloudtaskspb.Task{
			MessageType: &cloudtaskspb.Task_HttpRequest{
				HttpRequest: &cloudtaskspb.HttpRequest{
					HttpMethod: cloudtaskspb.HttpMethod_POST,
					Url:        endpointURL,
					Headers:    map[string]string{"Content-Type": "application/json"},
					Body:       payload,
				},
			},
		},
	})
	if err != nil {
		return TaskHandle{}, fmt.Errorf("create cloud task: %w", err)
	}
	return TaskHandle{Name: task.GetName()}, nil
}
