// Package delivery delivers new messages of watched conversations by
// polling the message server.
//
// # Usage
//
//	p := delivery.NewPoller(delivery.Config{Fetcher: apiClient})
//	p.Start(ctx, []delivery.Conversation{{PartnerID: bob}}, func(ctx context.Context, partner string, row api.MessageRow) error {
//	    // Decrypt and display row
//	    return nil
//	})
//	defer p.Stop()
//
// The requested time is only a hint. A server may return every message
// created at or after it, so the last message of one poll comes back in the
// next, or it may ignore it and return the whole conversation. The poller
// drops rows older than its cursor and hands every other row to the handler
// exactly once.
//
// # Backoff
//
// Each conversation is polled every 4s at first. A poll that delivers
// nothing, or fails, multiplies that conversation's interval by 1.5 up to
// 30s; a poll that delivers a message resets it. Up to 30% jitter is added
// to every wait.
//
// # Thread Safety
//
// A [Poller] is safe for concurrent use. The handler is only ever called
// from the poll goroutine.
package delivery
