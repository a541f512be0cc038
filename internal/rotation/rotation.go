// Package rotation provides 3D rotation and translation utilities using
// Euler angles. All rotation matrices follow the right-hand rule; the
// composed rotation applies yaw, then pitch, then roll (ZYX convention).
package rotation

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ENGR161-Team1/MARCO/internal/imu"
)

// Vec3 is a 3D vector.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) Add(o Vec3) Vec3   { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3   { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

// Norm returns the Euclidean magnitude.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Transformer builds rotation matrices from Euler angles. The zero value
// interprets angles as degrees; set Mode to imu.Radians to skip conversion.
type Transformer struct {
	Mode imu.AngleMode
}

func (t Transformer) toRadians(a float64) float64 {
	if t.Mode == imu.Degrees {
		return a * math.Pi / 180.0
	}
	return a
}

// Yaw returns the rotation matrix about the Z axis.
func (t Transformer) Yaw(yaw float64) *mat.Dense {
	y := t.toRadians(yaw)
	c, s := math.Cos(y), math.Sin(y)
	return mat.NewDense(3, 3, []float64{
		c, s, 0,
		-s, c, 0,
		0, 0, 1,
	})
}

// Pitch returns the rotation matrix about the Y axis.
func (t Transformer) Pitch(pitch float64) *mat.Dense {
	p := t.toRadians(pitch)
	c, s := math.Cos(p), math.Sin(p)
	return mat.NewDense(3, 3, []float64{
		c, 0, -s,
		0, 1, 0,
		s, 0, c,
	})
}

// Roll returns the rotation matrix about the X axis.
func (t Transformer) Roll(roll float64) *mat.Dense {
	r := t.toRadians(roll)
	c, s := math.Cos(r), math.Sin(r)
	return mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, c, s,
		0, -s, c,
	})
}

// Rotation returns the composed rotation matrix for yaw, pitch and roll.
// With invert set it returns the exact inverse (transpose) of the composed
// matrix, so Rotate followed by an inverted Rotate round-trips a vector.
func (t Transformer) Rotation(yaw, pitch, roll float64, invert bool) *mat.Dense {
	var r, tmp mat.Dense
	tmp.Mul(t.Pitch(pitch), t.Roll(roll))
	r.Mul(t.Yaw(yaw), &tmp)
	if invert {
		var inv mat.Dense
		inv.CloneFrom(r.T())
		return &inv
	}
	return &r
}

// Rotate applies the yaw/pitch/roll rotation (or its inverse) to v.
func (t Transformer) Rotate(v Vec3, yaw, pitch, roll float64, invert bool) Vec3 {
	r := t.Rotation(yaw, pitch, roll, invert)
	in := mat.NewVecDense(3, []float64{v.X, v.Y, v.Z})
	var out mat.VecDense
	out.MulVec(r, in)
	return Vec3{out.AtVec(0), out.AtVec(1), out.AtVec(2)}
}

// Translate applies a translation to v.
func (t Transformer) Translate(v, translation Vec3) Vec3 {
	return v.Add(translation)
}
