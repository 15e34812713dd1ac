package armnet

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"go.viam.com/rdk/logging"
	"go.viam.com/test"

	"github.com/yumi-robotics/yumi-control/kinematics"
)

// fakeArmServer emulates the three RAPID server sockets (main/poses/joints)
// for one arm, replying with a canned response to every request it reads.
type fakeArmServer struct {
	basePort int
	reply    string
}

// bindArmPorts binds listeners at basePort, basePort+2 and basePort+4 —
// the offsets dialAll uses for main/poses/joints — retrying with a fresh
// candidate basePort on any collision.
func bindArmPorts(t *testing.T) (int, []net.Listener) {
	t.Helper()
	for attempt := 0; attempt < 20; attempt++ {
		probe, err := net.Listen("tcp", "127.0.0.1:0")
		test.That(t, err, test.ShouldBeNil)
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
			return basePort, listeners
		}
	}
	t.Fatal("could not bind a free contiguous port range for fake arm server")
	return 0, nil
}

func startFakeArmServer(t *testing.T, reply string) *fakeArmServer {
	t.Helper()

	basePort, listeners := bindArmPorts(t)

	serve := func(l net.Listener) {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				r := bufio.NewReader(c)
				for {
					_, err := r.ReadString('#')
					if err != nil {
						return
					}
					if _, err := c.Write([]byte(reply)); err != nil {
						return
					}
				}
			}(conn)
		}
	}

	for _, l := range listeners {
		go serve(l)
	}

	t.Cleanup(func() {
		for _, l := range listeners {
			_ = l.Close()
		}
	})

	return &fakeArmServer{basePort: basePort, reply: reply}
}

func newTestSession(t *testing.T, reply string) *Session {
	t.Helper()
	srv := startFakeArmServer(t, reply)
	logger := logging.NewTestLogger(t)
	s, err := NewSession(context.Background(), Left, "127.0.0.1", srv.basePort, DefaultBufSize,
		200*time.Millisecond, 200*time.Millisecond, logger)
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(s.Terminate)
	return s
}

func TestPingSuccess(t *testing.T) {
	s := newTestSession(t, "0 1 #")
	err := s.Ping()
	test.That(t, err, test.ShouldBeNil)
}

func TestPingFailureSurfacesControlError(t *testing.T) {
	s := newTestSession(t, "0 0 collision#")
	err := s.Ping()
	test.That(t, err, test.ShouldNotBeNil)
	var ctrlErr *ControlError
	test.That(t, errors.As(err, &ctrlErr), test.ShouldBeTrue)
}

func TestGetPoseRoundTrip(t *testing.T) {
	s := newTestSession(t, "0 1 100.00 200.00 300.00 0.00000 0.00000 0.00000 1.00000")
	pose, err := s.GetPose()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pose.Position.X, test.ShouldAlmostEqual, 0.1)
	test.That(t, pose.Position.Y, test.ShouldAlmostEqual, 0.2)
	test.That(t, pose.Position.Z, test.ShouldAlmostEqual, 0.3)
	test.That(t, pose.Orientation.W, test.ShouldAlmostEqual, 1.0)
}

func TestCheckAndSortJointsValid(t *testing.T) {
	s := newTestSession(t, "0 1 #")
	joints := []kinematics.Joint{
		{Name: "yumi_joint_3_l"},
		{Name: "yumi_joint_1_l"},
		{Name: "yumi_joint_7_l"},
		{Name: "yumi_joint_2_l"},
		{Name: "yumi_joint_4_l"},
		{Name: "yumi_joint_5_l"},
		{Name: "yumi_joint_6_l"},
	}
	sorted, err := s.CheckAndSortJoints(joints)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sorted[0].Name, test.ShouldEqual, "yumi_joint_1_l")
	test.That(t, sorted[6].Name, test.ShouldEqual, "yumi_joint_7_l")
}

func TestCheckAndSortJointsWrongSide(t *testing.T) {
	s := newTestSession(t, "0 1 #")
	joints := make([]kinematics.Joint, 7)
	for i := range joints {
		joints[i] = kinematics.Joint{Name: "yumi_joint_" + string(rune('1'+i)) + "_r"}
	}
	_, err := s.CheckAndSortJoints(joints)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestIKFailureMapsToKinematicsUnreachable(t *testing.T) {
	s := newTestSession(t, "0 0 out of reach#")
	_, err := s.IK(kinematics.IdentityPose())
	test.That(t, err, test.ShouldNotBeNil)
	var unreachable *KinematicsUnreachableError
	test.That(t, errors.As(err, &unreachable), test.ShouldBeTrue)
}

func TestIKCommErrorPassesThroughUnwrapped(t *testing.T) {
	srv := startFakeArmServer(t, "") // never replies, forcing a recv timeout
	s, err := NewSession(context.Background(), Left, "127.0.0.1", srv.basePort, DefaultBufSize,
		50*time.Millisecond, 50*time.Millisecond, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(s.Terminate)

	_, err = s.IK(kinematics.IdentityPose())
	test.That(t, err, test.ShouldNotBeNil)
	var commErr *CommError
	test.That(t, errors.As(err, &commErr), test.ShouldBeTrue)
	var unreachable *KinematicsUnreachableError
	test.That(t, errors.As(err, &unreachable), test.ShouldBeFalse)
}

func TestGripperForceWidthClamp(t *testing.T) {
	test.That(t, clamp(100, 0, maxGripperForce), test.ShouldEqual, maxGripperForce)
	test.That(t, clamp(-1, 0, maxGripperForce), test.ShouldEqual, 0.0)
	test.That(t, clamp(0.01, 0, maxGripperWidth), test.ShouldEqual, 0.01)
}
