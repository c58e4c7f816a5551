package post_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aptpost/aptpost/core/apt"
	"github.com/aptpost/aptpost/core/block"
	"github.com/aptpost/aptpost/core/cache"
	"github.com/aptpost/aptpost/core/config"
	"github.com/aptpost/aptpost/runtime/post"
)

var fixedTime = time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)

func controller(t *testing.T, name string, templates bool) *config.Controller {
	t.Helper()
	cfg, err := config.Builtin(name)
	require.NoError(t, err)
	cfg.Templates.Enabled = templates
	return cfg
}

// translate runs src through a fresh context and returns the output lines.
func translate(t *testing.T, cfg *config.Controller, src string, opts ...post.Option) ([]string, *post.Context, error) {
	t.Helper()
	sink := &block.MemorySink{}
	opts = append([]post.Option{post.WithTemplateVars(config.TemplateVars{
		Name:      "BRACKET",
		InputFile: "bracket.apt",
		Time:      fixedTime,
	})}, opts...)
	pc := post.NewContext(cfg, sink, opts...)
	err := post.Run(context.Background(), apt.NewLexer(strings.NewReader(src)), pc)
	return sink.Lines(), pc, err
}

func assertLines(t *testing.T, expected, actual []string) {
	t.Helper()
	if diff := cmp.Diff(expected, actual); diff != "" {
		t.Errorf("program mismatch (-expected +actual):\n%s", diff)
	}
}

func TestRunFanucProgram(t *testing.T) {
	src := `PARTNO/'BRACKET'
LOADTL/5
SPINDL/1200,CLW
COOLNT/ON
RAPID
GOTO/0,0,50
FEDRAT/300
GOTO/10,0,-5
GOTO/10,20,-5
GOTO/10,20,-5
FINI
`
	lines, pc, err := translate(t, controller(t, "fanuc", true), src)
	require.NoError(t, err)

	assertLines(t, []string{
		"%",
		"O0001 (BRACKET)",
		"(MACHINE Fanuc 0i-MF)",
		"(SOURCE bracket.apt)",
		"(DATE 2024-03-05 14:07:09)",
		"G21 G17 G40 G49 G80 G90",
		"(PARTNO BRACKET)",
		"N10 T05 M6",
		"N20 M3 S1200",
		"N30 M8",
		"N40 G0 X0. Y0. Z50.",
		"N50 G1 X10. Z-5. F300",
		"N60 Y20.",
		"N70 M5 M9",
		"M30",
		"%",
	}, lines)

	assert.Equal(t, post.Stats{Commands: 11, Motions: 4, ToolChanges: 1}, pc.Stats)
	assert.Equal(t, post.Tool{Number: 5}, pc.Tools[5])
	assert.Equal(t, "BRACKET", cache.Get(pc.Vars, post.VarPartNo, ""))
	assert.True(t, cache.Get(pc.Vars, post.VarFinished, false))
	assert.Equal(t, 7, pc.Writer.Blocks())
}

func TestRunWithoutTemplatesEndsProgram(t *testing.T) {
	lines, _, err := translate(t, controller(t, "fanuc", false), "GOTO/1,2,3\nFINI\n")
	require.NoError(t, err)
	assertLines(t, []string{"N10 G1 X1. Y2. Z3.", "N20 M30"}, lines)
}

func TestPartNoWithoutSlash(t *testing.T) {
	lines, pc, err := translate(t, controller(t, "fanuc", false), "PARTNO BRACKET 01\n")
	require.NoError(t, err)
	assertLines(t, []string{"(PARTNO BRACKET 01)"}, lines)
	assert.Zero(t, pc.Stats.Unknown)
}

func TestSemicolonComments(t *testing.T) {
	lines, _, err := translate(t, controller(t, "siemens", false), "PPRINT/'roughing pass'\nOP_NAME/'POCKET 1'\n")
	require.NoError(t, err)
	assertLines(t, []string{"; roughing pass", "; OPERATION POCKET 1"}, lines)
}

func TestContinuationRepeatsMotion(t *testing.T) {
	src := "GOTO/1,2,3\n4,5,6\nSPINDL/800\n7,8,9\n"
	lines, _, err := translate(t, controller(t, "fanuc", false), src)
	require.NoError(t, err)
	assertLines(t, []string{
		"N10 G1 X1. Y2. Z3.",
		"N20 X4. Y5. Z6.",
		"N30 M3 S800",
	}, lines)
}

func TestModalCodesAreNotRepeated(t *testing.T) {
	src := `SPINDL/1200
SPINDL/1500
SPINDL/CCLW
SPINDL/ON
COOLNT/ON
COOLNT/FLOOD
COOLNT/MIST
COOLNT/OFF
COOLNT/ON
SPINDL/OFF
SPINDL/OFF
`
	lines, _, err := translate(t, controller(t, "fanuc", false), src)
	require.NoError(t, err)
	assertLines(t, []string{
		"N10 M3 S1200",
		"N20 S1500",
		"N30 M4",
		"N40 M8",
		"N50 M7",
		"N60 M9",
		"N70 M7",
		"N80 M5",
	}, lines)
}

func TestDelay(t *testing.T) {
	lines, pc, err := translate(t, controller(t, "fanuc", false), "SPINDL/600\nDELAY/REV,3\nDELAY/2\n")
	require.NoError(t, err)
	assertLines(t, []string{"N10 M3 S600", "N20 G4 X0.300", "N30 G4 X2.000"}, lines)
	assert.InDelta(t, 2.3, cache.Get(pc.Vars, post.VarMachineTime, 0.0), 1e-9)
}

func TestToolChangeSkipsSameTool(t *testing.T) {
	cfg := controller(t, "fanuc", false)
	sink := &block.MemorySink{}
	pc := post.NewContext(cfg, sink)
	pc.Vars.Set(post.VarSkipSameTool, true)

	src := "LOADTL/3,12.5,MILL\nLOADTL/3\nTOOLNO/4\nLOADTL/4\n"
	require.NoError(t, post.Run(context.Background(), apt.NewLexer(strings.NewReader(src)), pc))
	assertLines(t, []string{"N10 T03 M6", "N20 T04", "N30 T04 M6"}, sink.Lines())
	assert.Equal(t, 2, pc.Stats.ToolChanges)
	assert.Equal(t, post.Tool{Number: 3, Diameter: 12.5, Type: "mill"}, pc.Tools[3])
}

func TestMultiAxisAngles(t *testing.T) {
	src := "MULTAX/ON\nGOTO/1,0,0,0,1,0\nGOTO/1,0,0,1,0,0\nMULTAX/OFF\nGOTO/1,0,0,0,0,1\n"
	lines, _, err := translate(t, controller(t, "fanuc", false), src)
	require.NoError(t, err)
	assertLines(t, []string{"N10 G1 X1. A90.", "N20 A0. B90."}, lines)
}

func TestCutterCompensationJoinsNextMotion(t *testing.T) {
	src := "CUTCOM/LEFT\nGOTO/5,0,0\nCUTCOM/OFF\nGOTO/10,0,0\n"
	lines, _, err := translate(t, controller(t, "fanuc", false), src)
	require.NoError(t, err)
	assertLines(t, []string{"N10 G41 G1 X5.", "N20 G40 X10."}, lines)
}

func TestSiemensCycleCache(t *testing.T) {
	src := "CYCLE81/10,0,2,-25,0\nCYCLE81/10,0,2,-25,0\nCYCLE81/10,0,2,-30,0\n"
	lines, pc, err := translate(t, controller(t, "siemens", false), src)
	require.NoError(t, err)
	assertLines(t, []string{
		"N10 CYCLE81(RTP=10.000, RFP=0.000, SDIS=2.000, DP=-25.000, DPR=0.000)",
		"N20 CYCLE81()",
		"N30 CYCLE81(RTP=10.000, RFP=0.000, SDIS=2.000, DP=-30.000, DPR=0.000)",
	}, lines)
	assert.Equal(t, 3, pc.Stats.Cycles)
	assert.Equal(t, cache.CycleStats{Calls: 3, Definitions: 2}, pc.Cycle(post.CycleDrill).Stats())
}

func TestSiemensRepeatingCycle(t *testing.T) {
	src := `RAPID
GOTO/0,0,10
CYCLE/DRILL,25,2,100
GOTO/10,10,10
GOTO/20,10,10
CYCLE/OFF
GOTO/20,10,50
`
	lines, _, err := translate(t, controller(t, "siemens", false), src)
	require.NoError(t, err)
	assertLines(t, []string{
		"N10 G0 Z0010.0",
		"N20 G1 X0010.0 Y0010.0 F100",
		"N30 CYCLE81(RTP=10.000, RFP=0.000, SDIS=2.000, DP=-25.000, DPR=0.000)",
		"N40 X0020.0",
		"N50 CYCLE81()",
		"N60 Z0050.0",
	}, lines)
}

func TestCannedCycle(t *testing.T) {
	src := `RAPID
GOTO/0,0,10
CYCLE/DRILL,25,2,100
GOTO/10,10,10
GOTO/20,10,10
CYCLE/OFF
RAPID
GOTO/20,10,50
FINI
`
	lines, pc, err := translate(t, controller(t, "fanuc", false), src)
	require.NoError(t, err)
	assertLines(t, []string{
		"N10 G0 Z10.",
		"N20 G81 Z-25. R2. X10. Y10. F100",
		"N30 X20.",
		"N40 G80",
		"N50 G0 X20. Y10. Z50.",
		"N60 M30",
	}, lines)
	assert.Equal(t, 1, pc.Stats.Cycles)
}

func TestCannedCycleOneShot(t *testing.T) {
	src := "GOTO/5,5,10\nCYCLE83/10,0,2,-40,0,0,5\nGOTO/15,5,10\n"
	lines, _, err := translate(t, controller(t, "fanuc", false), src)
	require.NoError(t, err)
	assertLines(t, []string{
		"N10 G1 X5. Y5. Z10.",
		"N20 G83 Z-40. R2. Q5.",
		"N30 G80 G1 X15. Z10.",
	}, lines)
}

func TestUnknownCommand(t *testing.T) {
	t.Run("warning", func(t *testing.T) {
		lines, pc, err := translate(t, controller(t, "fanuc", false), "GOTTO/1,2,3\nGOTO/1,2,3\n")
		require.NoError(t, err)
		assertLines(t, []string{"N10 G1 X1. Y2. Z3."}, lines)
		assert.Equal(t, 1, pc.Stats.Unknown)
	})

	t.Run("strict", func(t *testing.T) {
		_, _, err := translate(t, controller(t, "fanuc", false), "GOTTO/1,2,3\n", post.WithStrict(true))
		require.Error(t, err)

		var unknown *post.UnknownCommandError
		require.True(t, errors.As(err, &unknown))
		assert.Equal(t, &post.UnknownCommandError{Major: "gotto", Line: 1, Suggestion: "goto"}, unknown)
		assert.Equal(t, `line 1: unknown command "GOTTO" (did you mean "GOTO"?)`, err.Error())
	})
}

func TestHandlerErrorNamesLine(t *testing.T) {
	reg := post.DefaultRegistry()
	boom := errors.New("boom")
	reg.Register("pprint", func(*post.Context, apt.Command) error { return boom })

	_, _, err := translate(t, controller(t, "fanuc", false), "GOTO/1,2,3\nPPRINT/'x'\n", post.WithRegistry(reg))
	require.ErrorIs(t, err, boom)
	assert.Equal(t, "line 2: PPRINT: boom", err.Error())
}

func TestRunCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &block.MemorySink{}
	pc := post.NewContext(controller(t, "siemens", true), sink,
		post.WithTemplateVars(config.TemplateVars{Name: "P1", InputFile: "p1.apt", Time: fixedTime}))
	err := post.Run(ctx, apt.NewLexer(strings.NewReader("GOTO/1,2,3\nFINI\n")), pc)

	require.Error(t, err)
	assert.ErrorIs(t, err, post.ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assertLines(t, []string{
		"; PROGRAM P1",
		"; MACHINE Sinumerik 840D sl",
		"; SOURCE p1.apt",
		"; DATE 2024-03-05 14:07:09",
		"G17 G71 G90 G94",
		"; PROCESSING CANCELLED BY USER",
	}, sink.Lines())
}

// cancellingSource cancels its context after yielding n commands.
type cancellingSource struct {
	cmds   []apt.Command
	n      int
	cancel context.CancelFunc
}

func (s *cancellingSource) Next(ctx context.Context) (apt.Command, error) {
	if s.n == 0 {
		s.cancel()
	}
	if err := ctx.Err(); err != nil {
		return apt.Command{}, errors.Join(apt.ErrCancelled, err)
	}
	if len(s.cmds) == 0 {
		return apt.Command{}, io.EOF
	}
	cmd := s.cmds[0]
	s.cmds = s.cmds[1:]
	s.n--
	return cmd, nil
}

func TestRunCancelledMidStream(t *testing.T) {
	cmds, err := apt.ParseString("GOTO/1,2,3\nGOTO/4,5,6\nGOTO/7,8,9\nFINI\n")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := &cancellingSource{cmds: cmds, n: 2, cancel: cancel}

	var out strings.Builder
	sink := block.NewLineSink(&out)
	pc := post.NewContext(controller(t, "fanuc", true), sink)
	err = post.Run(ctx, src, pc)

	require.ErrorIs(t, err, post.ErrCancelled)
	assert.Equal(t, 2, pc.Stats.Motions)
	assert.True(t, strings.HasSuffix(out.String(), "N20 X4. Y5. Z6.\n(PROCESSING CANCELLED BY USER)\n"), out.String())
	assert.NotContains(t, out.String(), "M30")
}

func TestRunSourceError(t *testing.T) {
	boom := errors.New("disk on fire")
	pc := post.NewContext(controller(t, "fanuc", false), &block.MemorySink{})
	err := post.Run(context.Background(), errSource{boom}, pc)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, post.ErrCancelled)
}

type errSource struct{ err error }

func (s errSource) Next(context.Context) (apt.Command, error) { return apt.Command{}, s.err }

func TestCircleWritesArcs(t *testing.T) {
	src := `GOTO/10,0,0
CIRCLE/0,0,0,0,0,1,10
GOTO/0,10,0
CIRCLE/0,0,0,0,0,-1,10
GOTO/10,0,0
GOTO/20,0,0
`
	lines, pc, err := translate(t, controller(t, "fanuc", false), src)
	require.NoError(t, err)
	assertLines(t, []string{
		"N10 G1 X10.",
		"N20 G3 X0. Y10. I-10. J0.",
		"N30 G2 X10. Y0. I0. J-10.",
		"N40 G1 X20.",
	}, lines)
	assert.Zero(t, pc.Stats.Unknown)
}

func TestCircleUsesRadiusUnderHalfTurn(t *testing.T) {
	src := `GOTO/10,0,0
CIRCLE/0,0,0,0,0,1,10
GOTO/0,10,0
CIRCLE/0,0,0,0,0,1,10
GOTO/10,0,0
`
	lines, _, err := translate(t, controller(t, "haas", false), src)
	require.NoError(t, err)
	assertLines(t, []string{
		"N10 G1 X10.",
		"N20 G3 X0. Y10. R10.",
		"N30 X10. Y0. I0. J-10.",
	}, lines)
}

func TestPlaneSelectsArcAxes(t *testing.T) {
	src := `PLANE/ZX
GOTO/0,0,10
CIRCLE/0,0,0,0,1,0,10
GOTO/10,0,0
PLANE/XY
PLANE/17
`
	lines, pc, err := translate(t, controller(t, "fanuc", false), src)
	require.NoError(t, err)
	assertLines(t, []string{
		"N10 G18",
		"N20 G1 Z10.",
		"N30 G3 X10. Z0. I0. K-10.",
		"N40 G17",
	}, lines)
	assert.Equal(t, post.PlaneXY, cache.Get(pc.Vars, post.VarPlane, ""))
}

func TestCircleAxisOutsidePlaneStaysLinear(t *testing.T) {
	src := "GOTO/10,0,0\nCIRCLE/0,0,0,1,0,0,10\nGOTO/0,10,0\n"
	lines, _, err := translate(t, controller(t, "fanuc", false), src)
	require.NoError(t, err)
	assertLines(t, []string{"N10 G1 X10.", "N20 X0. Y10."}, lines)
}

func TestFromAndGohome(t *testing.T) {
	src := `FROM/0,0,100
GOTO/10,20,5
GOHOME/Z
GOHOME
GOTO/10,20,5
`
	lines, _, err := translate(t, controller(t, "fanuc", false), src)
	require.NoError(t, err)
	assertLines(t, []string{
		"N10 G0 X0. Y0. Z100.",
		"N20 G1 X10. Y20. Z5.",
		"N30 G0 G53 Z0.",
		"N40 G53 Z0.",
		"N50 G53 X0. Y0.",
		"N60 G1 X10. Y20. Z5.",
	}, lines)
}
