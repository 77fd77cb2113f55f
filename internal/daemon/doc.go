// Package daemon coordinates the long-running listener process.
//
// It wraps the subscription loop in a single lifecycle with flock-based
// locking to prevent multiple listeners on the same state directory, serves
// the optional HTTP endpoint (metrics, health, status), and reports runtime
// status. Building the pipeline itself lives in daemonrun.
package daemon
