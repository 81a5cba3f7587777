package config

import (
	"testing"
)

func TestResolveHostForDocker_RemoteHostsUnchanged(t *testing.T) {
	// Remote hosts are never rewritten regardless of Docker status.
	tests := []string{
		"db.mindmesh.internal",
		"192.168.1.100",
		"host.docker.internal",
	}

	for _, host := range tests {
		if result := ResolveHostForDocker(host); result != host {
			t.Errorf("ResolveHostForDocker(%q) = %q, want unchanged", host, result)
		}
	}
}

func TestResolveHostForDocker_LocalhostVariants(t *testing.T) {
	// The replacement only happens when IsRunningInDocker() returns true,
	// which depends on the test environment.
	localhostVariants := []string{"localhost", "127.0.0.1"}

	for _, host := range localhostVariants {
		result := ResolveHostForDocker(host)
		if IsRunningInDocker() {
			if result != "host.docker.internal" {
				t.Errorf("ResolveHostForDocker(%q) in Docker = %q, want host.docker.internal", host, result)
			}
		} else {
			if result != host {
				t.Errorf("ResolveHostForDocker(%q) outside Docker = %q, want unchanged", host, result)
			}
		}
	}
}
