package cmd

import (
	"net"
	"os"
	"testing"
)

func TestInstanceLock_SingleInstance(t *testing.T) {
	setupRiptideHome(t)

	if serveRunning() {
		t.Fatal("serveRunning reported true with no lock held")
	}

	lock, err := acquireInstanceLock()
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}

	if _, err := acquireInstanceLock(); err == nil {
		t.Error("second lock should fail while the first is held")
	}
	if !serveRunning() {
		t.Error("serveRunning should report the held lock")
	}

	releaseInstanceLock(lock)
	if serveRunning() {
		t.Error("serveRunning still true after release")
	}

	again, err := acquireInstanceLock()
	if err != nil {
		t.Fatalf("relock after release: %v", err)
	}
	releaseInstanceLock(again)
}

func TestActiveAddr_IgnoredWithoutServe(t *testing.T) {
	setupRiptideHome(t)

	// Left behind by a crashed instance
	saveActiveAddr("127.0.0.1:6900")
	if got := readActiveAddr(); got != "" {
		t.Errorf("stale address file returned %q", got)
	}

	lock, err := acquireInstanceLock()
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer releaseInstanceLock(lock)

	if got := readActiveAddr(); got != "127.0.0.1:6900" {
		t.Errorf("readActiveAddr = %q, want the saved address", got)
	}

	removeActiveAddr()
	if _, err := os.Stat(addrFile()); !os.IsNotExist(err) {
		t.Errorf("address file not removed: %v", err)
	}
	if got := readActiveAddr(); got != "" {
		t.Errorf("readActiveAddr after removal = %q", got)
	}
}

func TestAdvertisedAddr(t *testing.T) {
	tests := []struct {
		addr net.Addr
		want string
	}{
		{&net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 6900}, "127.0.0.1:6900"},
		{&net.TCPAddr{IP: net.IPv6unspecified, Port: 6900}, "127.0.0.1:6900"},
		{&net.TCPAddr{IP: net.IPv4zero, Port: 7000}, "127.0.0.1:7000"},
		{&net.TCPAddr{IP: net.IPv4(192, 168, 1, 5), Port: 6900}, "192.168.1.5:6900"},
	}
	for _, tc := range tests {
		if got := advertisedAddr(tc.addr); got != tc.want {
			t.Errorf("advertisedAddr(%v) = %q, want %q", tc.addr, got, tc.want)
		}
	}
}
