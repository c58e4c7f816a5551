// Package post turns APT commands into G-code for one controller profile.
//
// A Context owns the mutable state of one program: registers, the block
// writer, modal code state, system variables and cycle caches. Run pulls
// commands from a Source and dispatches each one to the handler registered
// for its major word.
package post

import (
	"io"
	"log/slog"
	"time"

	"github.com/aptpost/aptpost/core/apt"
	"github.com/aptpost/aptpost/core/block"
	"github.com/aptpost/aptpost/core/cache"
	"github.com/aptpost/aptpost/core/config"
	"github.com/aptpost/aptpost/core/invariant"
	"github.com/aptpost/aptpost/core/ncword"
)

// Modal groups tracked in Context.State.
const (
	GroupMotion  = "motion"
	GroupSpindle = "spindle"
	GroupCoolant = "coolant"
	GroupCutcom  = "cutcom"
	GroupCycle   = "cycle"
	GroupPlane   = "plane"
)

// System variables kept in Context.Vars.
const (
	VarPartNo       = "PARTNO"
	VarMotion       = "MOTION"      // "linear", or "rapid" until the next motion
	VarSpindleRPM   = "SPINDLE_RPM" // float64
	VarSpindleDef   = "SPINDLE_DEF" // default direction for SPINDL/ON
	VarSpindleMode  = "SPINDLE_MODE"
	VarMaxRPM       = "MAX_RPM"
	VarCoolantDef   = "COOLANT_DEF"
	VarTool         = "TOOL" // int
	VarSkipSameTool = "TOOLCHG_IGNORE_SAME"
	VarForceXYZ     = "FORCE_XYZ"
	VarMultiAxis    = "MULTAX"
	VarOperation    = "OPERATION"
	VarMachineTime  = "MTIME" // dwell seconds
	VarFinished     = "FINISHED"
	VarCycle        = "CYCLE"      // active drilling cycle, repeated at each position
	VarCycleOnce    = "CYCLE_ONCE" // the active canned cycle drills one hole only
	VarPlane        = "PLANE"      // working plane for arcs, PlaneXY by default
)

// Motion modes.
const (
	MotionLinear = "linear"
	MotionRapid  = "rapid"
)

// Tool is one entry of the tool table built from LOADTL.
type Tool struct {
	Number   int
	Diameter float64
	Type     string
}

// Stats counts what a run processed.
type Stats struct {
	Commands    int
	Motions     int
	ToolChanges int
	Cycles      int
	Unknown     int
}

// Option configures a Context.
type Option func(*Context)

// WithLogger sets the logger for dispatch warnings and milestones.
func WithLogger(logger *slog.Logger) Option {
	return func(pc *Context) {
		if logger != nil {
			pc.logger = logger
		}
	}
}

// WithRegistry replaces the built-in handler table.
func WithRegistry(r *Registry) Option {
	return func(pc *Context) {
		pc.registry = r
	}
}

// WithTemplateVars sets the values substituted into header and footer lines.
func WithTemplateVars(vars config.TemplateVars) Option {
	return func(pc *Context) {
		pc.vars = vars
	}
}

// WithStrict makes unknown major words an error instead of a warning.
func WithStrict(strict bool) Option {
	return func(pc *Context) {
		pc.strict = strict
	}
}

// Context is the state of one post-processing run. It is not safe for
// concurrent use; process several files with one Context each.
type Context struct {
	Config    *config.Controller
	Registers *ncword.RegisterSet
	Writer    *block.Writer
	State     *cache.StateCache // last emitted code per modal group
	Vars      *cache.StateCache // system variables
	Tools     map[int]Tool
	Stats     Stats

	logger   *slog.Logger
	registry *Registry
	vars     config.TemplateVars
	strict   bool
	cycles   map[string]*cache.CycleCache
	arc      *arcMove
	last     apt.Command
}

// NewContext wires a register set and block writer for cfg, emitting to sink.
func NewContext(cfg *config.Controller, sink block.Sink, opts ...Option) *Context {
	invariant.NotNil(cfg, "controller config")
	invariant.NotNil(sink, "sink")

	pc := &Context{
		Config:    cfg,
		Registers: ncword.NewRegisterSet(),
		Writer:    block.NewWriter(sink, cfg.WriterOptions()...),
		State:     cache.NewStateCache(),
		Vars:      cache.NewStateCache(),
		Tools:     make(map[int]Tool),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		cycles:    make(map[string]*cache.CycleCache),
		vars:      config.TemplateVars{Name: cfg.Name, Time: time.Now()},
	}
	for _, opt := range opts {
		opt(pc)
	}
	if pc.registry == nil {
		pc.registry = DefaultRegistry()
	}

	cfg.ConfigureRegisters(pc.Registers)
	rs := pc.Registers
	pc.Writer.Track(rs.X(), rs.Y(), rs.Z(), rs.Get("I"), rs.Get("J"), rs.Get("K"), rs.Get("R"),
		rs.A(), rs.B(), rs.C(), rs.F(), rs.S())
	pc.Writer.ResetAll()
	rs.T().ResetChangeFlag()

	pc.Vars.SetInitial(VarMotion, MotionLinear)
	pc.Vars.SetInitial(VarSpindleDef, "clw")
	pc.Vars.SetInitial(VarCoolantDef, "flood")
	pc.Vars.SetInitial(VarSpindleRPM, 0.0)
	pc.Vars.SetInitial(VarTool, -1)
	pc.Vars.SetInitial(VarPlane, PlaneXY)
	return pc
}

// Logger returns the run logger.
func (pc *Context) Logger() *slog.Logger { return pc.logger }

// Registry returns the handler table.
func (pc *Context) Registry() *Registry { return pc.registry }

// TemplateVars returns the header and footer substitutions.
func (pc *Context) TemplateVars() config.TemplateVars { return pc.vars }

// Code returns the controller's function code called name.
func (pc *Context) Code(name string) string { return pc.Config.Code(name) }

// codeWord is a bare function code such as G1 or M8.
func codeWord(code string) *ncword.Text {
	return ncword.NewText(code).SetStyle("", "")
}

// Emit queues function codes for the next block, whatever the modal state.
func (pc *Context) Emit(names ...string) {
	for _, name := range names {
		if code := pc.Code(name); code != "" {
			pc.Writer.Push(codeWord(code))
		} else {
			pc.logger.Debug("function code not configured", "code", name)
		}
	}
}

// EmitModal queues the code called name for the next block unless it is
// already the active code of group. It reports whether the code was queued.
func (pc *Context) EmitModal(group, name string) bool {
	code := pc.Code(name)
	if code == "" {
		pc.logger.Debug("function code not configured", "code", name)
		return false
	}
	if !cache.Update(pc.State, group, code) {
		return false
	}
	pc.Writer.Push(codeWord(code))
	return true
}

// ActiveCode returns the code last emitted for group, or "".
func (pc *Context) ActiveCode(group string) string {
	return cache.Get(pc.State, group, "")
}

// WriteBlock writes pushed words and changed registers as one numbered block.
func (pc *Context) WriteBlock() error {
	_, err := pc.Writer.WriteBlock(true)
	return err
}

// Comment writes text in the controller's comment style.
func (pc *Context) Comment(text string) error {
	return pc.Writer.WriteComment(text)
}

// Cycle returns the cache for the cycle called name, creating it on first use.
func (pc *Context) Cycle(name string) *cache.CycleCache {
	c, ok := pc.cycles[name]
	if !ok {
		c = cache.NewCycleCache(name)
		pc.cycles[name] = c
	}
	return c
}

// WriteCycleIfDifferent writes a cycle call as a numbered block, with the
// full parameter list only when it differs from the previous call.
func (pc *Context) WriteCycleIfDifferent(name string, params cache.Params) (bool, error) {
	pc.Stats.Cycles++
	return pc.Cycle(name).WriteIfDifferent(blockLines{pc}, params)
}

// ResetCycleCache forgets the last definition of the named cycle, or of
// every cycle when name is empty.
func (pc *Context) ResetCycleCache(name string) {
	if name == "" {
		for _, c := range pc.cycles {
			c.Reset()
		}
		return
	}
	if c, ok := pc.cycles[name]; ok {
		c.Reset()
	}
}

// blockLines writes each line as the payload of a numbered block.
type blockLines struct{ pc *Context }

func (b blockLines) WriteLine(text string) error {
	b.pc.Writer.Push(codeWord(text))
	return b.pc.WriteBlock()
}
