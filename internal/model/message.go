package model

// QueueMessage is a delivery from the intake queue, independent of the
// broker that carried it.
//
// Fields:
//  ID       – broker message id (SQS MessageId, AMQP MessageId, Kafka topic/partition/offset).
//  GroupKey – ordering key attached by the producer; empty when the broker
//             does not carry one, in which case the body's seatId is used.
//  Body     – JSON encoded IntakeRequest.
type QueueMessage struct {
	ID       string
	GroupKey string
	Body     []byte
}
