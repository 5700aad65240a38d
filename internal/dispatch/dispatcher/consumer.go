package dispatcher

import (
	"context"
	"encoding/json"

	"rivoj/internal/common/mq"
	"rivoj/internal/dispatch/queue"
	appErr "rivoj/pkg/errors"

	"github.com/google/uuid"
)

// JudgeTask is the job-queue payload invoking the dispatcher.
type JudgeTask struct {
	SubmissionID string `json:"submission_id"`
	ProblemID    int64  `json:"problem_id"`
}

// Consumer adapts the dispatcher to the message-queue boundary.
type Consumer struct {
	dispatcher *Dispatcher
}

func NewConsumer(d *Dispatcher) *Consumer {
	return &Consumer{dispatcher: d}
}

// HandleMessage processes one judge task message.
func (c *Consumer) HandleMessage(ctx context.Context, msg *mq.Message) error {
	if msg == nil {
		return appErr.New(appErr.InvalidParams).WithMessage("message is nil")
	}
	var task JudgeTask
	if err := json.Unmarshal(msg.Body, &task); err != nil {
		return appErr.Wrapf(err, appErr.InvalidParams, "decode judge task failed")
	}
	if task.SubmissionID == "" || task.ProblemID <= 0 {
		return appErr.New(appErr.InvalidParams).WithMessage("judge task missing required fields")
	}
	return c.dispatcher.Dispatch(ctx, task.SubmissionID, task.ProblemID)
}

// QueueRedispatcher re-publishes drained backlog entries onto the judge
// topic, so a fresh dispatch attempt runs through the normal consumer path.
type QueueRedispatcher struct {
	producer mq.Producer
	topic    string
}

func NewQueueRedispatcher(producer mq.Producer, topic string) *QueueRedispatcher {
	return &QueueRedispatcher{producer: producer, topic: topic}
}

// Redispatch implements Redispatcher.
func (r *QueueRedispatcher) Redispatch(ctx context.Context, entry queue.Entry) error {
	body, err := json.Marshal(JudgeTask{SubmissionID: entry.SubmissionID, ProblemID: entry.ProblemID})
	if err != nil {
		return appErr.Wrapf(err, appErr.InternalServerError, "encode judge task failed")
	}
	msg := mq.NewMessage(body)
	msg.ID = uuid.NewString()
	if err := r.producer.Publish(ctx, r.topic, msg); err != nil {
		return appErr.Wrapf(err, appErr.InternalServerError, "publish judge task failed")
	}
	return nil
}
