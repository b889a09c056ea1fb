package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"resume-builder-go/internal/config"
)

// MessagePublisher 消息发布接口，发件箱中继依赖它
type MessagePublisher interface {
	PublishMessage(ctx context.Context, exchangeName, routingKey string, message []byte, persistent bool) error
}

var _ MessagePublisher = (*RabbitMQ)(nil)

// ResumeEventsBindingKey 简历事件队列绑定的路由键
const ResumeEventsBindingKey = "resume.#"

// RabbitMQ 简历事件的消息发布端，通道按需从池中取用
type RabbitMQ struct {
	conn        *amqp.Connection
	channelPool sync.Pool
	cfg         *config.RabbitMQConfig
}

// NewRabbitMQ 连接RabbitMQ，并声明简历事件的交换机与队列
func NewRabbitMQ(cfg *config.RabbitMQConfig) (*RabbitMQ, error) {
	if cfg == nil {
		return nil, fmt.Errorf("RabbitMQ配置不能为空")
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("RabbitMQ URL配置不能为空")
	}
	if cfg.ResumeEventsExchange == "" {
		return nil, fmt.Errorf("简历事件exchange名称不能为空")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("无法连接到RabbitMQ服务器: %w", err)
	}
	mq := &RabbitMQ{conn: conn, cfg: cfg}

	if err := mq.declareTopology(); err != nil {
		conn.Close()
		return nil, err
	}
	log.Info().Str("exchange", cfg.ResumeEventsExchange).Str("queue", cfg.ResumeEventsQueue).Msg("成功连接到RabbitMQ服务器")
	return mq, nil
}

// declareTopology topic交换机必建；配置了队列时再建队列并按 resume.# 绑定
func (r *RabbitMQ) declareTopology() error {
	ch, err := r.getChannel()
	if err != nil {
		return err
	}
	defer r.putChannel(ch)

	exchange := r.cfg.ResumeEventsExchange
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("声明exchange %s 失败: %w", exchange, err)
	}
	queue := r.cfg.ResumeEventsQueue
	if queue == "" {
		return nil
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("声明队列 %s 失败: %w", queue, err)
	}
	if err := ch.QueueBind(queue, ResumeEventsBindingKey, exchange, false, nil); err != nil {
		return fmt.Errorf("绑定队列 %s 失败: %w", queue, err)
	}
	log.Debug().Str("queue", queue).Str("routing_key", ResumeEventsBindingKey).Msg("简历事件队列已绑定")
	return nil
}

func (r *RabbitMQ) getChannel() (*amqp.Channel, error) {
	if ch, ok := r.channelPool.Get().(*amqp.Channel); ok && !ch.IsClosed() {
		return ch, nil
	}
	ch, err := r.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("创建RabbitMQ通道失败: %w", err)
	}
	return ch, nil
}

func (r *RabbitMQ) putChannel(ch *amqp.Channel) {
	if ch != nil && !ch.IsClosed() {
		r.channelPool.Put(ch)
	}
}

// Close 关闭连接
func (r *RabbitMQ) Close() error {
	return r.conn.Close()
}

// PublishMessage 发布消息到exchange
func (r *RabbitMQ) PublishMessage(ctx context.Context, exchangeName, routingKey string, message []byte, persistent bool) error {
	ch, err := r.getChannel()
	if err != nil {
		return err
	}
	defer r.putChannel(ch)

	deliveryMode := amqp.Transient
	if persistent {
		deliveryMode = amqp.Persistent
	}

	return ch.PublishWithContext(ctx, exchangeName, routingKey, false, false, amqp.Publishing{
		DeliveryMode: deliveryMode,
		ContentType:  "application/json",
		Body:         message,
		Timestamp:    time.Now(),
	})
}
