// Package downloader obtains the archive for one setup link. Two strategies
// share the Deliverer interface: Direct streams the archive over HTTP with
// the browser's cookies, ClickThrough drives the setup page and waits for the
// browser's own download.
package downloader

import (
	"context"

	"setupsync/pkg/control"
	"setupsync/pkg/models"
)

// Delivery is the result of one delivery. Archive is set only when Outcome is
// control.Ok, Err only when it is control.Failed.
type Delivery struct {
	Outcome control.Outcome
	Archive models.DeliveredArchive
	Err     error
}

// Deliverer fetches the archive for a setup link.
type Deliverer interface {
	Deliver(ctx context.Context, link string) Delivery
}

func delivered(archive models.DeliveredArchive) Delivery {
	return Delivery{Outcome: control.Ok, Archive: archive}
}

func failed(err error) Delivery {
	return Delivery{Outcome: control.Failed, Err: err}
}

func cancelled() Delivery {
	return Delivery{Outcome: control.Cancelled}
}

// cancelReason names which flag ended an item, for logs.
func cancelReason(signals *control.Signals) string {
	if signals.Stopped() {
		return "stop"
	}
	return "skip"
}
