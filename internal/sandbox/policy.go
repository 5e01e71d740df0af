// Package sandbox wraps untrusted stdio tool servers in a container with
// dropped capabilities and resource caps, per spec.md §4.5. It is distinct
// from internal/tools/sandbox, which sandboxes code-execution tool calls;
// this package sandboxes the long-lived child process an ETP server runs
// as.
package sandbox

// Policy describes the container hardening and resource caps a stdio
// server process is launched under.
type Policy struct {
	Name string

	DropAllCapabilities bool
	NoNewPrivileges     bool
	ReadOnlyRootfs      bool
	TmpSizeMB           int

	NetworkEnabled bool

	CPUQuota      float64 // fraction of one core, e.g. 0.5
	MemoryLimitMB int64
	PidsLimit     int
}

// DefaultPolicy is applied to trust=user_added servers: no network, all
// capabilities dropped, read-only rootfs with a small writable /tmp.
func DefaultPolicy() Policy {
	return Policy{
		Name:                "DEFAULT_POLICY",
		DropAllCapabilities: true,
		NoNewPrivileges:     true,
		ReadOnlyRootfs:      true,
		TmpSizeMB:           64,
		NetworkEnabled:      false,
		CPUQuota:            0.5,
		MemoryLimitMB:       512,
		PidsLimit:           50,
	}
}

// VerifiedPolicy is applied to trust=verified servers: same hardening and
// resource caps as DefaultPolicy, but with network access enabled.
func VerifiedPolicy() Policy {
	p := DefaultPolicy()
	p.Name = "VERIFIED_POLICY"
	p.NetworkEnabled = true
	return p
}
