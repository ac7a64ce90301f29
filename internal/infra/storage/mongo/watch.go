package mongo

import (
	"context"
	"log/slog"
	"sync"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"bchat/internal/app/realtime"
)

// Watcher adapts Mongo change streams to the realtime notifier port.
// Each Watch call opens one stream on the named collection and coalesces
// its events into a capacity-one signal channel, matching the memory
// store's watcher semantics.
type Watcher struct {
	DB     *mongo.Database
	Logger *slog.Logger
}

var _ realtime.Notifier = (*Watcher)(nil)

func (w *Watcher) Watch(collection string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	var once sync.Once
	stop := func() {
		once.Do(cancel)
	}
	go func() {
		opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
		stream, err := w.DB.Collection(collection).Watch(ctx, mongo.Pipeline{}, opts)
		if err != nil {
			if w.Logger != nil {
				w.Logger.Error("change stream open failed", "collection", collection, "error", err)
			}
			return
		}
		defer stream.Close(context.Background())
		for stream.Next(ctx) {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil && w.Logger != nil {
			w.Logger.Error("change stream closed", "collection", collection, "error", err)
		}
	}()
	return ch, stop
}
