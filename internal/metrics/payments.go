package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/kandalvillage/posflow/internal/awsx"
)

const namespace = "Posflow/Payments"

// Publisher pushes payment metrics to CloudWatch. Failures are reported to
// the caller but checkout treats them as non-fatal.
type Publisher struct {
	CW      awsx.CloudWatchAPI
	nowFunc func() time.Time
}

// NewPublisher returns a metrics publisher.
func NewPublisher(cw awsx.CloudWatchAPI) *Publisher {
	return &Publisher{CW: cw, nowFunc: time.Now}
}

// RecordPayment emits a PaymentAmount metric in USD with the payment method
// as a dimension, plus a PaymentCount of 1.
func (p *Publisher) RecordPayment(ctx context.Context, method string, amountUSD float64) error {
	now := p.nowFunc()
	ns := namespace
	input := &cloudwatch.PutMetricDataInput{
		Namespace: &ns,
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: awsString("PaymentAmount"),
				Unit:       cwtypes.StandardUnitNone,
				Value:      &amountUSD,
				Timestamp:  &now,
				Dimensions: []cwtypes.Dimension{
					{Name: awsString("Method"), Value: &method},
				},
			},
			{
				MetricName: awsString("PaymentCount"),
				Unit:       cwtypes.StandardUnitCount,
				Value:      awsFloat(1),
				Timestamp:  &now,
				Dimensions: []cwtypes.Dimension{
					{Name: awsString("Method"), Value: &method},
				},
			},
		},
	}

	if _, err := p.CW.PutMetricData(ctx, input); err != nil {
		return fmt.Errorf("put metric data: %w", err)
	}
	return nil
}

func awsString(s string) *string  { return &s }
func awsFloat(f float64) *float64 { return &f }
