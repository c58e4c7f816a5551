package post

import (
	"math"

	"github.com/aptpost/aptpost/core/apt"
	"github.com/aptpost/aptpost/core/cache"
	"github.com/aptpost/aptpost/core/config"
	"github.com/aptpost/aptpost/core/ncword"
)

// Working planes kept in VarPlane.
const (
	PlaneXY = "xy"
	PlaneZX = "zx"
	PlaneYZ = "yz"
)

// planeAxes holds, per plane, the two in-plane axes followed by the normal,
// as indexes into an X, Y, Z triple.
var planeAxes = map[string][3]int{
	PlaneXY: {0, 1, 2},
	PlaneZX: {2, 0, 1},
	PlaneYZ: {1, 2, 0},
}

var planeCodes = map[string]string{
	PlaneXY: config.CodePlaneXY,
	PlaneZX: config.CodePlaneZX,
	PlaneYZ: config.CodePlaneYZ,
}

// arcMove is a circle announced by CIRCLE and finished by the next GOTO.
type arcMove struct {
	center [3]float64
	axis   [3]float64
	radius float64
	code   string // forced arc code, or "" to follow the axis
	line   int
}

// handleCircle records a circular move: CIRCLE/xc,yc,zc,i,j,k[,r]. The arc
// turns counterclockwise about the axis i,j,k from the current position to
// the point of the next GOTO. CLW or CCLW overrides the axis direction.
func handleCircle(pc *Context, cmd apt.Command) error {
	if len(cmd.Numeric) < 6 {
		pc.logger.Warn("circle needs a center and an axis", "line", cmd.Line)
		return nil
	}
	arc := &arcMove{radius: cmd.Number(6, 0), line: cmd.Line}
	copy(arc.center[:], cmd.Numeric[:3])
	copy(arc.axis[:], cmd.Numeric[3:6])
	switch {
	case cmd.HasMinor("clw", "cw"):
		arc.code = config.CodeArcCW
	case cmd.HasMinor("cclw", "ccw"):
		arc.code = config.CodeArcCCW
	}
	pc.arc = arc
	return nil
}

// emitArc turns the pending circle into a G2 or G3 block ending at the
// registers' new position. It reports false when the move stays linear.
func emitArc(pc *Context, start [3]float64, rapid bool) bool {
	arc := pc.arc
	pc.arc = nil
	if arc == nil {
		return false
	}
	if rapid || pc.ActiveCode(GroupCycle) != "" {
		pc.logger.Warn("circle dropped before a rapid or drilling move", "line", arc.line)
		return false
	}

	plane := cache.Get(pc.Vars, VarPlane, PlaneXY)
	ax := planeAxes[plane]
	u, v, n := ax[0], ax[1], ax[2]

	code := arc.code
	if code == "" {
		switch {
		case arc.axis[n] > ncword.Tolerance:
			code = config.CodeArcCCW
		case arc.axis[n] < -ncword.Tolerance:
			code = config.CodeArcCW
		default:
			pc.logger.Warn("circle axis is not normal to the working plane", "line", arc.line, "plane", plane)
			return false
		}
	}

	rs := pc.Registers
	axes := [3]*ncword.Register{rs.X(), rs.Y(), rs.Z()}
	end := [3]float64{axes[0].Value(), axes[1].Value(), axes[2].Value()}

	pc.EmitModal(GroupMotion, code)
	pc.Writer.Show(axes[u], axes[v])

	sweep := arcSweep(start, end, arc.center, u, v, code == config.CodeArcCCW)
	if pc.Config.ArcRadius && sweep < math.Pi {
		radius := arc.radius
		if radius <= 0 {
			radius = math.Hypot(start[u]-arc.center[u], start[v]-arc.center[v])
		}
		r := rs.Get("R")
		r.Set(radius)
		pc.Writer.Show(r)
		return true
	}

	offsets := [3]*ncword.Register{rs.Get("I"), rs.Get("J"), rs.Get("K")}
	for _, i := range [2]int{u, v} {
		offsets[i].Set(arc.center[i] - start[i])
		pc.Writer.Show(offsets[i])
	}
	return true
}

// arcSweep returns the angle in radians swept from start to end around
// center in the u, v plane. A closed arc sweeps a full turn.
func arcSweep(start, end, center [3]float64, u, v int, ccw bool) float64 {
	a0 := math.Atan2(start[v]-center[v], start[u]-center[u])
	a1 := math.Atan2(end[v]-center[v], end[u]-center[u])
	d := a1 - a0
	if !ccw {
		d = -d
	}
	for d <= 1e-9 {
		d += 2 * math.Pi
	}
	return d
}

// handlePlane selects the working plane: PLANE/XY, ZX or YZ, or PLANE/17,
// 18 or 19.
func handlePlane(pc *Context, cmd apt.Command) error {
	plane := ""
	switch {
	case cmd.HasMinor("xy", "yx"):
		plane = PlaneXY
	case cmd.HasMinor("zx", "xz"):
		plane = PlaneZX
	case cmd.HasMinor("yz", "zy"):
		plane = PlaneYZ
	case len(cmd.Numeric) > 0:
		switch math.Round(cmd.Numeric[0]) {
		case 17:
			plane = PlaneXY
		case 18:
			plane = PlaneZX
		case 19:
			plane = PlaneYZ
		}
	}
	if plane == "" {
		pc.logger.Warn("unknown plane", "line", cmd.Line, "plane", cmd.String())
		return nil
	}
	pc.Vars.Set(VarPlane, plane)
	pc.EmitModal(GroupPlane, planeCodes[plane])
	return pc.WriteBlock()
}

// handleFrom moves to the start position at rapid with every coordinate
// written: FROM/x,y,z.
func handleFrom(pc *Context, cmd apt.Command) error {
	if len(cmd.Numeric) == 0 {
		return nil
	}
	pc.Vars.Set(VarForceXYZ, true)
	return handleRapid(pc, cmd)
}

// handleGohome returns axes to machine zero: GOHOME[/X,Y,Z]. Without axes
// every linear axis returns, Z in a block of its own before X and Y.
func handleGohome(pc *Context, cmd apt.Command) error {
	var selected []string
	for _, axis := range []string{"z", "x", "y"} {
		if cmd.HasMinor(axis) {
			selected = append(selected, axis)
		}
	}
	if len(selected) == 0 {
		selected = []string{"z", "x", "y"}
	}

	moves := [][]string{selected}
	if selected[0] == "z" && len(selected) > 1 {
		moves = [][]string{selected[:1], selected[1:]}
	}
	for _, axes := range moves {
		pc.EmitModal(GroupMotion, config.CodeRapid)
		pc.Emit(config.CodeMachineCoords)
		for _, axis := range axes {
			spec := pc.Registers.Get(axis).Spec()
			pc.Writer.Push(ncword.NewNumeric(spec.Address, spec, 0, false))
		}
		pc.Stats.Motions++
		if err := pc.WriteBlock(); err != nil {
			return err
		}
	}

	// the work position is unknown until the next motion writes it in full
	pc.Vars.Set(VarForceXYZ, true)
	pc.Vars.Set(VarMotion, MotionLinear)
	return nil
}
