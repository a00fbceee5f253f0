// Package watch observes individual files for changes on behalf of
// feedsieve's long-running mode. It watches the parent directories so
// editors that save by rename are seen, debounces rapid events per file and
// reports the changed path to a callback.
package watch
