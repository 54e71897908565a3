// Package process provides the runtime backend that executes jobs as local
// child processes.
//
// Each child is started in its own process group so that signals forwarded by
// the worker reach the entire job tree. Full process-group delivery is only
// guaranteed on Unix systems; on Windows the backend degrades to best-effort
// signalling of the direct child, and grandchildren may outlive a forced
// termination.
package process
