// Package dispatch emits fire-and-forget background jobs over AMQP. The
// engine never waits on job completion; workers consume the exchange
// elsewhere.
package dispatch

import (
	"encoding/json"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// Routing keys, one per job family.
const (
	JobReport    = "job.report"
	JobRubric    = "job.rubric"
	JobEmbedding = "job.embedding"
	JobRoadmap   = "job.roadmap"
)

// ReportJob asks for a hiring/practice report for an ended session.
type ReportJob struct {
	SessionID string `json:"sessionId"`
}

// RubricJob asks for rubric generation for a question without one.
type RubricJob struct {
	QuestionID   string `json:"questionId"`
	QuestionText string `json:"questionText"`
	Domain       string `json:"domain"`
}

// EmbeddingJob asks for an embedding of an entity's text.
type EmbeddingJob struct {
	EntityType string `json:"entityType"`
	EntityID   string `json:"entityId"`
	Text       string `json:"text"`
}

// RoadmapJob asks for a study roadmap for a user.
type RoadmapJob struct {
	UserID string `json:"userId"`
}

// Dispatcher publishes background jobs.
type Dispatcher interface {
	DispatchReport(job ReportJob) error
	DispatchRubric(job RubricJob) error
	DispatchEmbedding(job EmbeddingJob) error
	DispatchRoadmap(job RoadmapJob) error
	Close()
}

// Publisher is the AMQP-backed dispatcher, publishing to a durable topic
// exchange with the job family as routing key.
type Publisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *zap.Logger
}

// NewPublisher connects to AMQP and declares the job exchange.
func NewPublisher(amqpURL, exchange string, logger *zap.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	return &Publisher{conn: conn, channel: ch, exchange: exchange, logger: logger}, nil
}

func (p *Publisher) publish(routingKey string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	p.logger.Debug("dispatching job", zap.String("routingKey", routingKey))
	return p.channel.Publish(
		p.exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
}

func (p *Publisher) DispatchReport(job ReportJob) error {
	return p.publish(JobReport, job)
}

func (p *Publisher) DispatchRubric(job RubricJob) error {
	return p.publish(JobRubric, job)
}

func (p *Publisher) DispatchEmbedding(job EmbeddingJob) error {
	return p.publish(JobEmbedding, job)
}

func (p *Publisher) DispatchRoadmap(job RoadmapJob) error {
	return p.publish(JobRoadmap, job)
}

func (p *Publisher) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// Nop is a dispatcher that drops every job, used when AMQP is not
// configured and in tests.
type Nop struct{}

func (Nop) DispatchReport(ReportJob) error       { return nil }
func (Nop) DispatchRubric(RubricJob) error       { return nil }
func (Nop) DispatchEmbedding(EmbeddingJob) error { return nil }
func (Nop) DispatchRoadmap(RoadmapJob) error     { return nil }
func (Nop) Close()                               {}
