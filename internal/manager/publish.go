package manager

import (
	"context"
	"encoding/json"

	"github.com/neuron-gateway/gateway/internal/message"
	"github.com/neuron-gateway/gateway/internal/model"
	"github.com/neuron-gateway/gateway/internal/subscription"
)

// Publish fans a finished trans-data frame out to every app subscribed
// to (frame.Driver, frame.Group), satisfying internal/driver.Publisher.
// Never persisted: trans-data is the one message family spec.md §4.8
// explicitly excludes from the persister contract.
func (mgr *Manager) Publish(ctx context.Context, frame *model.TransData) error {
	deliveries := mgr.subs.Find(frame.Driver, frame.Group)
	if len(deliveries) == 0 {
		return nil
	}

	for _, d := range deliveries {
		scoped := withStaticTags(frame, d.StaticTags)
		body, err := json.Marshal(scoped)
		if err != nil {
			continue
		}
		env := message.New(message.TypeTransData, frame.Driver, d.AppName, body)
		if err := mgr.router.Route(ctx, env); err != nil {
			mgr.Logger().WithContext(ctx).WithError(err).Warn("trans-data delivery failed")
		}
	}
	return nil
}

// withStaticTags returns an independent copy of frame with one synthetic
// TransTag appended per static tag, carrying the subscription's constant
// value rather than anything read from the driver. Per spec.md §4.5/the
// glossary, a static tag is "a synthetic constant merged into a
// subscription's frames" — it supplements the frame's real tags, it never
// replaces them.
func withStaticTags(frame *model.TransData, staticTags []subscription.StaticTag) *model.TransData {
	scoped := frame.Snapshot()
	for _, st := range staticTags {
		scoped.Tags = append(scoped.Tags, model.TransTag{Name: st.Name, Value: st.Value})
	}
	return scoped
}
