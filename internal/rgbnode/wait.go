package rgbnode

import (
	"context"
	"time"
)

const paymentPollInterval = time.Second

// WaitPayment polls the node's payment list until the outbound payment with
// the given hash leaves the pending state or ctx expires. A hash the node
// does not report yet keeps being polled; the caller bounds the wait
// through ctx.
func (c *Client) WaitPayment(ctx context.Context, paymentHash string) (*Payment, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		payments, err := c.ListPayments(ctx)
		if err != nil {
			return nil, err
		}
		for i := range payments {
			payment := payments[i]
			if payment.PaymentHash != paymentHash || payment.Inbound {
				continue
			}
			if payment.Status != PaymentStatusPending {
				return &payment, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
