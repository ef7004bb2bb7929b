// Package domain contains the core types shared across the realtime
// subsystem: the message envelope, connection states and options, tenant
// configuration, lifecycle events, and the error taxonomy. It depends on no
// other internal package.
package domain
