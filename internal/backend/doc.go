// Package backend implements the playback adapters.
//
// Every supported source kind gets one Adapter: local audio files decode
// and play in-process, while the embed kinds drive a remote player over a
// Conn. Adapters normalize the wildly different remote protocols (push vs
// poll, milliseconds vs percentages) into one seconds-based Event stream
// tagged with a binding token, so the coordinator never has to know which
// backend is active.
package backend
