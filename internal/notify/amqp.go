package notify

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/domain"
)

// Publisher 是 *amqp.Channel 中用到的部分
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// MailNotifier 把任务完成的邮件放入队列，由 mail worker 发送
type MailNotifier struct {
	ch      Publisher
	queue   string
	to      string
	timeout time.Duration
}

func NewMailNotifier(ch Publisher, queue, to string, timeout time.Duration) *MailNotifier {
	return &MailNotifier{
		ch:      ch,
		queue:   queue,
		to:      to,
		timeout: timeout,
	}
}

func (n *MailNotifier) NotifyCompleted(data domain.AssignmentCompletedMailData) error {
	mailMessage := domain.MailMessage{
		Type: domain.MailTypeAssignmentCompleted,
		To:   n.to,
		Data: data,
	}

	body, err := json.Marshal(mailMessage)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	return n.ch.PublishWithContext(
		ctx,
		"",
		n.queue,
		true,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}
