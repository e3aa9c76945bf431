package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/kandalvillage/posflow/internal/awsx"
)

// Ticket is the payload sent to the kitchen queue when a food row is added
// to an order. Drink rows never produce tickets.
type Ticket struct {
	OrderDocID    string    `json:"order_doc_id"`
	RowDocID      string    `json:"row_doc_id"`
	ProductDocID  string    `json:"product_doc_id"`
	ProductName   string    `json:"product_name,omitempty"`
	Quantity      int       `json:"quantity"`
	PlacedBy      string    `json:"placed_by,omitempty"`
	PlacedAt      time.Time `json:"placed_at"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// KitchenPublisher wraps an SQS client and the kitchen queue URL.
type KitchenPublisher struct {
	SQS      awsx.SQSAPI
	QueueURL string
}

// NewKitchenPublisher returns a publisher bound to a queue URL.
func NewKitchenPublisher(sqsClient awsx.SQSAPI, queueURL string) *KitchenPublisher {
	return &KitchenPublisher{
		SQS:      sqsClient,
		QueueURL: queueURL,
	}
}

// PublishTicket serializes the ticket and sends it to the kitchen queue.
// The order doc id rides along as a message attribute so consumers can
// filter without parsing the body.
func (p *KitchenPublisher) PublishTicket(ctx context.Context, t Ticket) error {
	body, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal ticket: %w", err)
	}

	msgBody := string(body)
	input := &sqs.SendMessageInput{
		QueueUrl:    &p.QueueURL,
		MessageBody: &msgBody,
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"order_doc_id": {
				DataType:    awsString("String"),
				StringValue: &t.OrderDocID,
			},
		},
	}

	_, err = p.SQS.SendMessage(ctx, input)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func awsString(s string) *string { return &s }
