// Package watcher keeps the vector index in sync with the filesystem after
// the initial scan, reporting debounced, gitignore-filtered change events
// for the sync engine to re-embed.
//
// Two watching strategies are available:
//   - Primary: fsnotify, event-based and cheap
//   - Fallback: polling, for mounts where fsnotify doesn't deliver events
//     (network shares, some Docker volume drivers)
//
// Rapid bursts of changes from editors, IDEs, and git operations are
// coalesced by the debouncer before they reach the caller, and paths are
// filtered against .gitignore before an event is ever emitted.
//
// Usage:
//
//	opts := watcher.DefaultOptions()
//	w, err := watcher.NewHybridWatcher(opts)
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	if err := w.Start(ctx, projectRoot); err != nil {
//	    return err
//	}
//
//	for event := range w.Events() {
//	    switch event.Operation {
//	    case watcher.OpCreate:
//	        // a file was added; queue it for chunk+embed
//	    case watcher.OpModify:
//	        // a file changed; re-chunk and re-embed it
//	    case watcher.OpDelete:
//	        // a file was removed; drop its chunks from the index
//	    }
//	}
package watcher
