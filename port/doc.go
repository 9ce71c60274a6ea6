// Package port leases TCP ports for embedded services.
//
// A lease binds the port immediately, so an explicit request either gets
// exactly that port or fails with ErrUnavailable. Requesting port 0 binds
// an ephemeral port chosen by the operating system and reports the
// concrete value. Leases stay reserved in the owning Allocator until
// released, which keeps two live services in one process from ever
// sharing a port. Services take the bound listener with Lease.Listener
// and never rebind the port number.
package port
