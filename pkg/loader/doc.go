// Package loader supplies program implementations to workers.
//
// A Loader holds a catalog of named program factories and at most one loaded
// program environment at a time. Load and Unload are explicit; workers only ever
// see the resulting *app.App and never manage the environment themselves.
//
//	l := loader.New()
//	_ = loader.Register(l, "lpa", lpa.New)
//	_ = l.Load(ctx, "lpa")
//	a, err := loader.App[int64, int64](l)
//
// WithLocker extends the single-active rule across processes through a
// ports.DistributedLocker (see the redis adapter).
package loader
