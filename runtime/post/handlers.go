package post

import (
	"math"
	"strconv"
	"strings"

	"github.com/aptpost/aptpost/core/apt"
	"github.com/aptpost/aptpost/core/cache"
	"github.com/aptpost/aptpost/core/config"
	"github.com/aptpost/aptpost/core/ncword"
)

// ignored are CAD bookkeeping statements with no machine output.
var ignored = []string{
	"catmat", "catprocess", "catproduct", "channel", "clrsrf",
	"line", "machin", "opdata", "part_open", "point", "pptable", "program",
	"tloff", "tlon", "toolinf", "toolpath_type", "units",
}

// DefaultRegistry returns a registry holding the built-in handlers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("partno", handlePartNo)
	r.Register("pprint", handlePPrint)
	r.Register("op_name", handleOpName)
	r.Register("start_op", handleStartOp)
	r.Register("fedrat", handleFedrat)
	r.Register("rapid", handleRapid)
	r.Register("goto", handleGoto)
	r.Register("circle", handleCircle)
	r.Register("plane", handlePlane)
	r.Register("from", handleFrom)
	r.Register("gohome", handleGohome)
	r.Register(apt.Continuation, handleContinuation)
	r.Register("multax", handleMultax)
	r.Register("cutcom", handleCutcom)
	r.Register("tlcomp", handleCutcom)
	r.Register("spindl", handleSpindl)
	r.Register("coolnt", handleCoolnt)
	r.Register("loadtl", handleLoadtl)
	r.Register("toolno", handleToolno)
	r.Register("delay", handleDelay)
	r.Register("cycle81", handleCycle81)
	r.Register("cycle83", handleCycle83)
	r.Register("cycle", handleCycle)
	r.Register("fini", handleFini)
	for _, major := range ignored {
		r.Register(major, handleIgnored)
	}
	return r
}

func handleIgnored(pc *Context, cmd apt.Command) error {
	pc.logger.Debug("command ignored", "line", cmd.Line, "major", cmd.Major)
	return nil
}

// label joins the text of cmd: strings as written, minor words upper-cased.
func label(cmd apt.Command) string {
	if len(cmd.Strings) > 0 {
		return strings.Join(cmd.Strings, " ")
	}
	if len(cmd.Minor) > 0 {
		return strings.ToUpper(strings.Join(cmd.Minor, " "))
	}
	if len(cmd.Numeric) > 0 {
		return strconv.FormatFloat(cmd.Numeric[0], 'f', -1, 64)
	}
	return ""
}

func handlePartNo(pc *Context, cmd apt.Command) error {
	name := label(cmd)
	pc.Vars.Set(VarPartNo, name)
	if name == "" {
		return nil
	}
	return pc.Comment("PARTNO " + name)
}

func handlePPrint(pc *Context, cmd apt.Command) error {
	if text := label(cmd); text != "" {
		return pc.Comment(text)
	}
	return nil
}

func handleOpName(pc *Context, cmd apt.Command) error {
	name := label(cmd)
	pc.Vars.Set(VarOperation, name)
	if name == "" {
		return nil
	}
	return pc.Comment("OPERATION " + name)
}

// handleStartOp starts a new operation: nothing pending carries over.
func handleStartOp(pc *Context, cmd apt.Command) error {
	pc.Registers.ResetChangeFlags()
	pc.logger.Debug("operation start", "line", cmd.Line, "operation", cache.Get(pc.Vars, VarOperation, ""))
	return nil
}

// handleFedrat sets the feed. F is modal and goes out with the next motion.
func handleFedrat(pc *Context, cmd apt.Command) error {
	if len(cmd.Numeric) == 0 {
		return nil
	}
	pc.Registers.F().Set(cmd.Numeric[0])
	return nil
}

// handleRapid makes the next motion a rapid. With coordinates it moves at once.
func handleRapid(pc *Context, cmd apt.Command) error {
	pc.Vars.Set(VarMotion, MotionRapid)
	if len(cmd.Numeric) == 0 {
		return nil
	}
	return handleGoto(pc, cmd)
}

// handleGoto moves to X, Y, Z. Missing coordinates keep their value. With
// MULTAX on, a tool axis vector I, J, K sets the A and B angles. A pending
// CIRCLE makes the move an arc.
func handleGoto(pc *Context, cmd apt.Command) error {
	if len(cmd.Numeric) == 0 {
		return nil
	}
	rs := pc.Registers
	start := [3]float64{rs.X().Value(), rs.Y().Value(), rs.Z().Value()}
	rs.X().Set(cmd.Number(0, rs.X().Value()))
	rs.Y().Set(cmd.Number(1, rs.Y().Value()))
	rs.Z().Set(cmd.Number(2, rs.Z().Value()))

	if len(cmd.Numeric) >= 6 && cache.Get(pc.Vars, VarMultiAxis, false) {
		a, b := toolAxisAngles(cmd.Numeric[3], cmd.Numeric[4], cmd.Numeric[5])
		rs.A().Set(a)
		rs.B().Set(b)
	}

	if cache.Get(pc.Vars, VarForceXYZ, false) {
		pc.Writer.Show(rs.X(), rs.Y(), rs.Z())
		pc.Vars.Remove(VarForceXYZ)
	}

	rapid := cache.Get(pc.Vars, VarMotion, MotionLinear) == MotionRapid
	cycleMotion(pc)
	arc := pc.arc != nil && emitArc(pc, start, rapid)
	// inside a canned cycle each position drills a hole; G0/G1 would cancel it
	if !arc && pc.ActiveCode(GroupCycle) == "" {
		if rapid {
			pc.EmitModal(GroupMotion, config.CodeRapid)
		} else {
			pc.EmitModal(GroupMotion, config.CodeLinear)
		}
	}
	if rapid {
		pc.Vars.Set(VarMotion, MotionLinear)
	}

	pc.Stats.Motions++
	if err := pc.WriteBlock(); err != nil {
		return err
	}
	return cycleCall(pc)
}

// toolAxisAngles converts a tool axis vector to A and B angles in degrees,
// normalized to [0, 360) and rounded to three decimals.
func toolAxisAngles(i, j, k float64) (a, b float64) {
	a = math.Atan2(j, k) * 180 / math.Pi
	b = math.Atan2(i, math.Hypot(j, k)) * 180 / math.Pi
	if a < 0 {
		a += 360
	}
	if b < 0 {
		b += 360
	}
	return math.Round(a*1000) / 1000, math.Round(b*1000) / 1000
}

// handleContinuation treats extra parameter lines after a GOTO as more points.
func handleContinuation(pc *Context, cmd apt.Command) error {
	switch pc.last.Major {
	case "goto", "rapid":
		return handleGoto(pc, cmd)
	default:
		pc.logger.Warn("continuation ignored", "line", cmd.Line, "after", pc.last.Major)
		return nil
	}
}

func handleMultax(pc *Context, cmd apt.Command) error {
	pc.Vars.Set(VarMultiAxis, !cmd.HasMinor("off"))
	return nil
}

// handleCutcom selects cutter compensation. The code joins the next motion block.
func handleCutcom(pc *Context, cmd apt.Command) error {
	switch {
	case cmd.HasMinor("left"):
		pc.EmitModal(GroupCutcom, config.CodeCutcomLeft)
	case cmd.HasMinor("right"):
		pc.EmitModal(GroupCutcom, config.CodeCutcomRight)
	case cmd.HasMinor("off"):
		pc.EmitModal(GroupCutcom, config.CodeCutcomOff)
	}
	return nil
}

// handleSpindl handles SPINDL/[ON|OFF|CLW|CCLW|ORIENT|RPM|SFM|SMM|MAXRPM], rpm.
// A bare speed starts the spindle in the last direction used.
func handleSpindl(pc *Context, cmd apt.Command) error {
	switch n := len(cmd.Numeric); {
	case cmd.HasMinor("maxrpm"):
		// SPINDL/[rpm,] MAXRPM, limit
		if n > 0 {
			pc.Vars.Set(VarMaxRPM, cmd.Numeric[n-1])
		}
		if n > 1 {
			pc.Vars.Set(VarSpindleRPM, cmd.Numeric[0])
		}
	case n > 0:
		pc.Vars.Set(VarSpindleRPM, cmd.Numeric[0])
	}

	state := cache.Get(pc.Vars, VarSpindleDef, "clw")
	for _, word := range cmd.Minor {
		switch word {
		case "clw", "clockwise":
			state = "clw"
			pc.Vars.Set(VarSpindleDef, state)
		case "cclw", "ccw":
			state = "cclw"
			pc.Vars.Set(VarSpindleDef, state)
		case "orient":
			state = "orient"
		case "off":
			state = "off"
		case "rpm", "sfm", "smm":
			pc.Vars.Set(VarSpindleMode, word)
		}
	}

	switch state {
	case "clw", "cclw":
		code := config.CodeSpindleCW
		if state == "cclw" {
			code = config.CodeSpindleCCW
		}
		pc.EmitModal(GroupSpindle, code)
		if rpm := cache.Get(pc.Vars, VarSpindleRPM, 0.0); rpm > 0 {
			pc.Registers.S().Set(rpm)
		}
	case "orient":
		pc.EmitModal(GroupSpindle, config.CodeSpindleOrient)
	default:
		pc.EmitModal(GroupSpindle, config.CodeSpindleOff)
	}
	return pc.WriteBlock()
}

// handleCoolnt handles COOLNT/[ON|FLOOD|MIST|OFF]. ON restores the last
// coolant type used.
func handleCoolnt(pc *Context, cmd apt.Command) error {
	state := cache.Get(pc.Vars, VarCoolantDef, "flood")
	switch {
	case cmd.HasMinor("off"):
		state = "off"
	case cmd.HasMinor("mist"):
		state = "mist"
		pc.Vars.Set(VarCoolantDef, state)
	case cmd.HasMinor("flood"):
		state = "flood"
		pc.Vars.Set(VarCoolantDef, state)
	}

	switch state {
	case "mist":
		pc.EmitModal(GroupCoolant, config.CodeCoolantMist)
	case "off":
		pc.EmitModal(GroupCoolant, config.CodeCoolantOff)
	default:
		pc.EmitModal(GroupCoolant, config.CodeCoolantFlood)
	}
	return pc.WriteBlock()
}

// handleLoadtl changes the tool: LOADTL/n[, diameter]. The next motion
// repeats every coordinate and its motion code.
func handleLoadtl(pc *Context, cmd apt.Command) error {
	if len(cmd.Numeric) == 0 {
		return nil
	}
	n := int(math.Round(cmd.Numeric[0]))
	if cache.Get(pc.Vars, VarSkipSameTool, false) && cache.Get(pc.Vars, VarTool, -1) == n {
		return nil
	}

	if _, known := pc.Tools[n]; !known {
		pc.Tools[n] = Tool{Number: n, Diameter: cmd.Number(1, 0), Type: cmd.FirstMinor()}
	}
	pc.Vars.Set(VarTool, n)
	pc.Stats.ToolChanges++

	t := pc.Registers.T()
	t.Set(float64(n))
	pc.Writer.Push(t)
	pc.Emit(config.CodeToolChange)

	pc.State.Remove(GroupMotion)
	pc.Vars.Set(VarForceXYZ, true)
	return pc.WriteBlock()
}

// handleToolno preselects a tool without changing it.
func handleToolno(pc *Context, cmd apt.Command) error {
	if len(cmd.Numeric) == 0 {
		return nil
	}
	t := pc.Registers.T()
	t.Set(math.Round(cmd.Numeric[0]))
	pc.Writer.Push(t)
	return pc.WriteBlock()
}

var dwellFormat = ncword.MustParseFormatSpec("X{###!000}")

// handleDelay dwells: DELAY/seconds or DELAY/REV, revolutions.
func handleDelay(pc *Context, cmd apt.Command) error {
	if len(cmd.Numeric) == 0 {
		return nil
	}
	seconds := cmd.Numeric[0]
	if cmd.HasMinor("rev") {
		rpm := cache.Get(pc.Vars, VarSpindleRPM, 0.0)
		if rpm <= 0 {
			rpm = 1000
		}
		seconds = seconds * 60 / rpm
	}
	seconds = math.Abs(seconds)

	pc.Emit(config.CodeDwell)
	pc.Writer.Push(ncword.NewNumeric(dwellFormat.Address, dwellFormat, seconds, false))
	pc.Vars.Set(VarMachineTime, cache.Get(pc.Vars, VarMachineTime, 0.0)+seconds)
	return pc.WriteBlock()
}

// handleFini ends the program: spindle and coolant off, then the program
// end code unless the footer template supplies it.
func handleFini(pc *Context, cmd apt.Command) error {
	if err := cancelCycle(pc); err != nil {
		return err
	}
	if code := pc.ActiveCode(GroupSpindle); code != "" && code != pc.Code(config.CodeSpindleOff) {
		pc.EmitModal(GroupSpindle, config.CodeSpindleOff)
	}
	if code := pc.ActiveCode(GroupCoolant); code != "" && code != pc.Code(config.CodeCoolantOff) {
		pc.EmitModal(GroupCoolant, config.CodeCoolantOff)
	}
	if !pc.Config.Templates.Enabled {
		pc.Emit(config.CodeProgramEnd)
	}
	pc.Vars.Set(VarFinished, true)
	pc.logger.Debug("program finished", "line", cmd.Line)
	return pc.WriteBlock()
}
