// Package settings is a small string key/value store shared by every peer on
// a bus.
//
// Values live in a Backend (memory, NATS JetStream KeyValue or SQLite). Each
// Store keeps a snapshot of the backend and refreshes it when any peer
// broadcasts "reload" on the "setting" topic, which every mutation does.
//
//	store := settings.New(bus, settings.Memory())
//	store.OnReady(func() { fmt.Println(store.Get("difficulty")) })
//	if err := store.Start(ctx); err != nil {
//		return err
//	}
//	_ = store.Set(ctx, "difficulty", "hard")
package settings
