package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/domain"
)

type fakePublisher struct {
	key       string
	mandatory bool
	msg       amqp.Publishing
	deadline  bool
	err       error
}

func (f *fakePublisher) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.key = key
	f.mandatory = mandatory
	f.msg = msg
	_, f.deadline = ctx.Deadline()
	return f.err
}

func TestNotifyCompleted(t *testing.T) {
	pub := &fakePublisher{}
	n := NewMailNotifier(pub, "email_queue", "admin@example.com", time.Second)

	data := domain.AssignmentCompletedMailData{
		TaskID:      "job",
		Status:      domain.TaskCompleted,
		ResultPath:  "data/job/result.json",
		NumTeams:    4,
		Generations: 100,
		RunTime:     12.5,
	}
	require.NoError(t, n.NotifyCompleted(data))

	require.Equal(t, "email_queue", pub.key)
	require.True(t, pub.mandatory)
	require.True(t, pub.deadline)
	require.Equal(t, "application/json", pub.msg.ContentType)

	var got struct {
		Type string                             `json:"type"`
		To   string                             `json:"to"`
		Data domain.AssignmentCompletedMailData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(pub.msg.Body, &got))
	require.Equal(t, domain.MailTypeAssignmentCompleted, got.Type)
	require.Equal(t, "admin@example.com", got.To)
	require.Equal(t, data, got.Data)
}

func TestNotifyCompletedPublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("channel closed")}
	n := NewMailNotifier(pub, "email_queue", "admin@example.com", time.Second)

	require.Error(t, n.NotifyCompleted(domain.AssignmentCompletedMailData{TaskID: "job"}))
}
