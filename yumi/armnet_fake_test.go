package yumi

import (
	"bufio"
	"net"
	"strconv"
	"testing"
)

// fakeArmPair spins up six listeners — main/poses/joints for each of the
// left and right arms — replying with a canned success response to every
// framed request, so Robot.New's connect/configure/calibrate sequence can
// run against something other than a real controller.
type fakeArmPair struct {
	leftBase, rightBase int
}

func startFakeArmPair(t *testing.T, reply string) fakeArmPair {
	t.Helper()
	leftBase, leftListeners := bindSixArmPorts(t)
	rightBase, rightListeners := bindSixArmPorts(t)

	for _, l := range append(leftListeners, rightListeners...) {
		go serveFrames(l, reply)
	}
	return fakeArmPair{leftBase: leftBase, rightBase: rightBase}
}

func serveFrames(l net.Listener, reply string) {
	for {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		go func(c net.Conn) {
			defer c.Close()
			r := bufio.NewReader(c)
			for {
				if _, err := r.ReadString('#'); err != nil {
					return
				}
				if _, err := c.Write([]byte(reply)); err != nil {
					return
				}
			}
		}(conn)
	}
}

// bindSixArmPorts binds three listeners at basePort, basePort+2 and
// basePort+4 (the offsets dialAll uses for main/poses/joints), retrying
// with a fresh candidate basePort on any collision.
func bindSixArmPorts(t *testing.T) (int, []net.Listener) {
	t.Helper()
	for attempt := 0; attempt < 20; attempt++ {
		probe, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			continue
		}
		basePort := probe.Addr().(*net.TCPAddr).Port
		_ = probe.Close()

		listeners := make([]net.Listener, 3)
		ok := true
		for i, offset := range []int{0, 2, 4} {
			l, err := net.Listen("tcp", "127.0.0.1:"+strconv.Itoa(basePort+offset))
			if err != nil {
				ok = false
				for _, opened := range listeners[:i] {
					_ = opened.Close()
				}
				break
			}
			listeners[i] = l
		}
		if ok {
			t.Cleanup(func() {
				for _, l := range listeners {
					_ = l.Close()
				}
			})
			return basePort, listeners
		}
	}
	t.Fatal("could not bind a free contiguous port range for fake arm pair")
	return 0, nil
}
