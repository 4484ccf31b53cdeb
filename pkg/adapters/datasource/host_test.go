package datasource

import "testing"

func TestResolveHost(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		inDocker bool
		want     string
	}{
		{"localhost outside docker", "localhost", false, "localhost"},
		{"localhost inside docker", "localhost", true, DockerHostAlias},
		{"ipv4 loopback inside docker", "127.0.0.1", true, DockerHostAlias},
		{"ipv6 loopback inside docker", "::1", true, DockerHostAlias},
		{"remote host inside docker", "db.example.com", true, "db.example.com"},
		{"empty host", "", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveHost(tt.host, tt.inDocker); got != tt.want {
				t.Errorf("resolveHost(%q, %v) = %q, want %q", tt.host, tt.inDocker, got, tt.want)
			}
		})
	}
}
