// Package resource serves named files from a directory as an indirection
// Source.
//
// Names are resolved relative to the directory and must stay inside it.
// Loaded files are cached up to a fixed number of entries; the cache is
// dropped with Clear, or kept current by Watch, which invalidates entries
// when fsnotify reports a change in the directory.
//
//	src, err := resource.NewFileSource("./resources", 128, logger)
//	stop, err := src.Watch()
//	defer stop()
//	data, err := src.Load(ctx, "battle.toml")
package resource
