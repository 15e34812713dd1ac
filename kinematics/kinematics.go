// Package kinematics provides the pose/position/orientation/joint value
// types shared by the wire codec, the arm sessions and the dual-arm
// coordinator.
package kinematics

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// MetersToMM and MMToMeters convert between the wire's millimeter unit and
// the library's meter unit.
const (
	MetersToMM = 1000.0
	MMToMeters = 1.0 / MetersToMM
)

// Position is a cartesian point, in meters.
type Position struct {
	X, Y, Z float64
}

// Scale multiplies the position in place by a scalar (used for m<->mm
// conversion before framing on the wire).
func (p *Position) Scale(f float64) {
	*p = fromVector(p.vector().Mul(f))
}

// Add returns the element-wise sum of two positions.
func (p Position) Add(o Position) Position {
	return fromVector(p.vector().Add(o.vector()))
}

// Sub returns the element-wise difference of two positions.
func (p Position) Sub(o Position) Position {
	return fromVector(p.vector().Sub(o.vector()))
}

func (p Position) vector() r3.Vector {
	return r3.Vector{X: p.X, Y: p.Y, Z: p.Z}
}

func fromVector(v r3.Vector) Position {
	return Position{X: v.X, Y: v.Y, Z: v.Z}
}

// Orientation is a unit quaternion (x, y, z, w).
type Orientation struct {
	X, Y, Z, W float64
}

// Identity is the no-rotation orientation.
func Identity() Orientation {
	return Orientation{W: 1}
}

func (o Orientation) toQuat() quat.Number {
	return quat.Number{Real: o.W, Imag: o.X, Jmag: o.Y, Kmag: o.Z}
}

func fromQuat(q quat.Number) Orientation {
	return Orientation{X: q.Imag, Y: q.Jmag, Z: q.Kmag, W: q.Real}
}

// Normalized returns the orientation scaled to unit length. Every
// quaternion sent to the controller must be normalized first.
func (o Orientation) Normalized() Orientation {
	n := quat.Abs(o.toQuat())
	if n == 0 {
		return Identity()
	}
	q := o.toQuat()
	return fromQuat(quat.Scale(1/n, q))
}

// Inverse returns the conjugate of the (assumed unit) quaternion.
func (o Orientation) Inverse() Orientation {
	return fromQuat(quat.Conj(o.toQuat()))
}

// Mul composes two orientations: the result rotates first by o, then by n.
func (o Orientation) Mul(n Orientation) Orientation {
	return fromQuat(quat.Mul(n.toQuat(), o.toQuat()))
}

// AsEulerDegrees converts the orientation to XYZ Euler angles in degrees,
// used by goto_pose_delta's rotation component.
func (o Orientation) AsEulerDegrees() [3]float64 {
	q := o.Normalized().toQuat()
	x, y, z, w := q.Imag, q.Jmag, q.Kmag, q.Real

	// standard quaternion -> Tait-Bryan (XYZ) conversion
	sinrCosp := 2 * (w*x + y*z)
	cosrCosp := 1 - 2*(x*x+y*y)
	roll := math.Atan2(sinrCosp, cosrCosp)

	sinp := 2 * (w*y - z*x)
	var pitch float64
	if math.Abs(sinp) >= 1 {
		pitch = math.Copysign(math.Pi/2, sinp)
	} else {
		pitch = math.Asin(sinp)
	}

	sinyCosp := 2 * (w*z + x*y)
	cosyCosp := 1 - 2*(y*y+z*z)
	yaw := math.Atan2(sinyCosp, cosyCosp)

	return [3]float64{
		roll * 180 / math.Pi,
		pitch * 180 / math.Pi,
		yaw * 180 / math.Pi,
	}
}

// Pose is a rigid transform: a position and a unit-quaternion orientation.
type Pose struct {
	Position    Position
	Orientation Orientation
}

// IdentityPose is the pose at the origin with no rotation.
func IdentityPose() Pose {
	return Pose{Orientation: Identity()}
}

// Inverse returns the pose that undoes this one.
func (p Pose) Inverse() Pose {
	invOri := p.Orientation.Inverse()
	invPos := rotate(invOri, Position{-p.Position.X, -p.Position.Y, -p.Position.Z})
	return Pose{Position: invPos, Orientation: invOri}
}

// Compose returns p * o: apply o first in p's frame, then p.
func (p Pose) Compose(o Pose) Pose {
	return Pose{
		Position:    p.Position.Add(rotate(p.Orientation, o.Position)),
		Orientation: o.Orientation.Mul(p.Orientation),
	}
}

func rotate(o Orientation, p Position) Position {
	q := o.Normalized().toQuat()
	pq := quat.Number{Imag: p.X, Jmag: p.Y, Kmag: p.Z}
	r := quat.Mul(quat.Mul(q, pq), quat.Conj(q))
	return Position{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// Delta returns the relative pose from current to target: current^-1 * target.
func Delta(current, target Pose) Pose {
	return current.Inverse().Compose(target)
}

// MakePoseRel converts a pose from the world frame into the base frame:
// world^-1 * target.
func MakePoseRel(world, target Pose) Pose {
	return world.Inverse().Compose(target)
}

// MakePoseAbs converts a pose from the base frame into the world frame:
// world * local.
func MakePoseAbs(world, local Pose) Pose {
	return world.Compose(local)
}

// Joint is a single named scalar joint angle, in radians.
type Joint struct {
	Name  string
	Value float64
}

// Side returns the arm side ("l" or "r") encoded in a joint name formatted
// as yumi_joint_<i>_<side>, or "" if the name doesn't match that format.
func (j Joint) Side() string {
	var idx int
	var side string
	if _, err := fmt.Sscanf(j.Name, "yumi_joint_%d_%s", &idx, &side); err != nil {
		return ""
	}
	return side
}
