package post

import (
	"math"

	"github.com/aptpost/aptpost/core/apt"
	"github.com/aptpost/aptpost/core/cache"
	"github.com/aptpost/aptpost/core/config"
	"github.com/aptpost/aptpost/core/ncword"
)

// Drilling cycle names.
const (
	CycleDrill     = "CYCLE81"
	CycleDeepDrill = "CYCLE83"
)

// drillCycle holds the parameters of a drilling cycle in Sinumerik terms.
// Planes are absolute, distances incremental.
type drillCycle struct {
	name string

	rtp, rfp, sdis, dp, dpr float64

	// CYCLE83 only
	fdep, fdpr, dam, dtb, dts, frf, oldp float64
	axn, axs                             int
}

func (c drillCycle) deep() bool { return c.name == CycleDeepDrill }

func (c drillCycle) params() cache.Params {
	ps := cache.Params{
		cache.P("RTP", c.rtp),
		cache.P("RFP", c.rfp),
		cache.P("SDIS", c.sdis),
		cache.P("DP", c.dp),
		cache.P("DPR", c.dpr),
	}
	if !c.deep() {
		return ps
	}
	return append(ps,
		cache.P("FDEP", c.fdep),
		cache.P("FDPR", c.fdpr),
		cache.P("DAM", c.dam),
		cache.P("DTB", c.dtb),
		cache.P("DTS", c.dts),
		cache.P("FRF", c.frf),
		cache.P("AXN", c.axn),
		cache.P("OLDP", c.oldp),
		cache.P("AXS", c.axs),
	)
}

// handleCycle81 drills at the current position: CYCLE81/RTP,RFP,SDIS,DP,DPR.
func handleCycle81(pc *Context, cmd apt.Command) error {
	if len(cmd.Numeric) == 0 {
		return nil
	}
	return startCycle(pc, drillCycle{
		name: CycleDrill,
		rtp:  cmd.Number(0, 0),
		rfp:  cmd.Number(1, 0),
		sdis: cmd.Number(2, 2),
		dp:   cmd.Number(3, 0),
		dpr:  cmd.Number(4, 0),
	}, true)
}

// handleCycle83 deep drills at the current position:
// CYCLE83/RTP,RFP,SDIS,DP,DPR,FDEP,FDPR,DAM,DTB,DTS,FRF,AXN,OLDP,AXS.
func handleCycle83(pc *Context, cmd apt.Command) error {
	if len(cmd.Numeric) == 0 {
		return nil
	}
	return startCycle(pc, drillCycle{
		name: CycleDeepDrill,
		rtp:  cmd.Number(0, 0),
		rfp:  cmd.Number(1, 0),
		sdis: cmd.Number(2, 2),
		dp:   cmd.Number(3, 0),
		dpr:  cmd.Number(4, 0),
		fdep: cmd.Number(5, 0),
		fdpr: cmd.Number(6, 0),
		dam:  cmd.Number(7, 0),
		dtb:  cmd.Number(8, 0),
		dts:  cmd.Number(9, 0),
		frf:  cmd.Number(10, 1),
		axn:  int(cmd.Number(11, 3)),
		oldp: cmd.Number(12, 0),
		axs:  int(cmd.Number(13, 0)),
	}, true)
}

// handleCycle handles the generic APT form, which drills at every following
// position until CYCLE/OFF:
//
//	CYCLE/DRILL, depth, clearance[, feed]
//	CYCLE/DEEP, depth, clearance, peck[, feed]
//	CYCLE/OFF
//
// The retract plane is the Z position when the cycle starts and the
// reference plane is Z0.
func handleCycle(pc *Context, cmd apt.Command) error {
	rtp := pc.Registers.Z().Value()
	var c drillCycle
	switch {
	case cmd.HasMinor("off"):
		return cancelCycle(pc)
	case cmd.HasMinor("drill"):
		c = drillCycle{
			name: CycleDrill,
			rtp:  rtp,
			sdis: cmd.Number(1, 2),
			dp:   -math.Abs(cmd.Number(0, 0)),
		}
		if len(cmd.Numeric) > 2 {
			pc.Registers.F().Set(cmd.Numeric[2])
		}
	case cmd.HasMinor("deep"):
		c = drillCycle{
			name: CycleDeepDrill,
			rtp:  rtp,
			sdis: cmd.Number(1, 2),
			dp:   -math.Abs(cmd.Number(0, 0)),
			fdpr: math.Abs(cmd.Number(2, 0)),
			frf:  1,
			axn:  3,
		}
		if len(cmd.Numeric) > 3 {
			pc.Registers.F().Set(cmd.Numeric[3])
		}
	default:
		pc.logger.Warn("cycle type not supported", "line", cmd.Line, "minor", cmd.Minor)
		return nil
	}
	return startCycle(pc, c, false)
}

// startCycle activates c. A one-shot cycle drills at the current position
// right away; otherwise each following motion drills a hole.
func startCycle(pc *Context, c drillCycle, once bool) error {
	if pc.Config.CycleStyle != config.CycleGCode {
		if once {
			_, err := pc.WriteCycleIfDifferent(c.name, c.params())
			return err
		}
		pc.Vars.Set(VarCycle, c)
		return nil
	}

	code := config.CodeDrill
	if c.deep() {
		code = config.CodePeckDrill
	}
	changed := cache.Update(pc.Vars, VarCycle, c)
	if pc.ActiveCode(GroupCycle) == "" {
		changed = true
	}
	if once {
		pc.Vars.Set(VarCycleOnce, true)
	} else {
		pc.Vars.Remove(VarCycleOnce)
	}
	if !changed && !once {
		return nil
	}

	pc.State.Remove(GroupCycle)
	pc.EmitModal(GroupCycle, code)
	pc.State.Remove(GroupMotion)
	pc.Stats.Cycles++

	z := pc.Registers.Z().Spec()
	pc.Writer.Push(
		ncword.NewNumeric("Z", z, c.dp, false),
		ncword.NewNumeric("R", z, c.rfp+c.sdis, false),
	)
	if c.deep() {
		peck := c.fdpr
		if peck == 0 {
			peck = c.dam
		}
		if peck != 0 {
			pc.Writer.Push(ncword.NewNumeric("Q", z, peck, false))
		}
	}
	if once {
		return pc.WriteBlock()
	}
	return nil
}

// cycleMotion adjusts a motion block for the active cycle: a one-shot canned
// cycle is cancelled first, a repeating one keeps Z out of the block.
func cycleMotion(pc *Context) {
	if pc.ActiveCode(GroupCycle) == "" {
		return
	}
	if cache.Get(pc.Vars, VarCycleOnce, false) {
		pc.Emit(config.CodeCycleCancel)
		clearCycle(pc)
		pc.Writer.Show(pc.Registers.Z())
		return
	}
	pc.Writer.Hide(pc.Registers.Z())
}

// cycleCall writes the call of a repeating cycle after a motion block.
func cycleCall(pc *Context) error {
	if pc.Config.CycleStyle == config.CycleGCode {
		return nil
	}
	c, ok := cache.Lookup[drillCycle](pc.Vars, VarCycle)
	if !ok {
		return nil
	}
	_, err := pc.WriteCycleIfDifferent(c.name, c.params())
	return err
}

func clearCycle(pc *Context) {
	pc.State.Remove(GroupCycle)
	pc.State.Remove(GroupMotion)
	pc.Vars.Remove(VarCycle)
	pc.Vars.Remove(VarCycleOnce)
}

// cancelCycle ends the active cycle, writing G80 for a canned cycle.
func cancelCycle(pc *Context) error {
	if pc.Config.CycleStyle != config.CycleGCode {
		pc.Vars.Remove(VarCycle)
		pc.ResetCycleCache("")
		return nil
	}
	if pc.ActiveCode(GroupCycle) == "" {
		return nil
	}
	pc.Emit(config.CodeCycleCancel)
	clearCycle(pc)
	pc.Vars.Set(VarForceXYZ, true)
	return pc.WriteBlock()
}
