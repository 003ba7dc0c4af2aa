// Package podstate tracks the live status of pods in a session and
// carries in-process messages between them. It backs the HTTP status
// API; nothing here touches the pod directories on disk.
package podstate
