package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/promoforge/promoforge/internal/models"
)

const (
	QueueGenerateScenario = "queue:generate_scenario"
	QueueRemoveBackground = "queue:remove_background"
	QueueCompositeImage   = "queue:composite_image"
	QueueMergeVideo       = "queue:merge_video"
	QueueGenerateShadow   = "queue:generate_shadow"
)

type Queue struct {
	client *redis.Client
}

// Job is the envelope pushed onto a Redis list. The task record holds
// the full request payload; the job only carries the identifiers a
// worker needs to pick the work back up.
type Job struct {
	ID        uuid.UUID       `json:"id"`
	Type      models.TaskType `json:"type"`
	TaskID    uuid.UUID       `json:"task_id"`
	UserID    string          `json:"user_id"`
	SceneID   *string         `json:"scene_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func New(redisURL string) (*Queue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Queue{client: client}, nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}

func (q *Queue) Enqueue(ctx context.Context, queueName string, job *Job) error {
	job.CreatedAt = time.Now()

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	return q.client.RPush(ctx, queueName, data).Err()
}

func (q *Queue) Dequeue(ctx context.Context, queueName string, timeout time.Duration) (*Job, error) {
	result, err := q.client.BLPop(ctx, timeout, queueName).Result()
	if err == redis.Nil {
		return nil, nil // No job available
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue: %w", err)
	}

	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected redis response")
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	return &job, nil
}

func (q *Queue) GetQueueLength(ctx context.Context, queueName string) (int64, error) {
	return q.client.LLen(ctx, queueName).Result()
}

// EnqueueTask routes a task onto the queue for its type.
func (q *Queue) EnqueueTask(ctx context.Context, taskType models.TaskType, taskID uuid.UUID, userID string, sceneID *string) error {
	queueName, err := QueueFor(taskType)
	if err != nil {
		return err
	}

	job := &Job{
		ID:      uuid.New(),
		Type:    taskType,
		TaskID:  taskID,
		UserID:  userID,
		SceneID: sceneID,
	}
	return q.Enqueue(ctx, queueName, job)
}

// QueueFor maps a task type to its Redis list name.
func QueueFor(taskType models.TaskType) (string, error) {
	switch taskType {
	case models.TaskTypeGenerateScenario:
		return QueueGenerateScenario, nil
	case models.TaskTypeRemoveBackground:
		return QueueRemoveBackground, nil
	case models.TaskTypeCompositeImage:
		return QueueCompositeImage, nil
	case models.TaskTypeMergeVideo:
		return QueueMergeVideo, nil
	case models.TaskTypeGenerateShadow:
		return QueueGenerateShadow, nil
	default:
		return "", fmt.Errorf("unknown task type: %s", taskType)
	}
}
