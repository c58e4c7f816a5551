// Package config loads controller profiles: register formats, block
// numbering, comment style, function codes and program templates.
//
// Profiles are JSON or YAML documents validated against an embedded JSON
// schema. A profile may extend a built-in profile and override any field.
package config

import (
	"strings"
	"time"

	"github.com/aptpost/aptpost/core/block"
	"github.com/aptpost/aptpost/core/ncword"
)

// Function code names used in the codes table.
const (
	CodeRapid         = "motion_rapid"
	CodeLinear        = "motion_linear"
	CodeSpindleCW     = "spindle_cw"
	CodeSpindleCCW    = "spindle_ccw"
	CodeSpindleOff    = "spindle_off"
	CodeSpindleOrient = "spindle_orient"
	CodeCoolantFlood  = "coolant_flood"
	CodeCoolantMist   = "coolant_mist"
	CodeCoolantOff    = "coolant_off"
	CodeToolChange    = "tool_change"
	CodeDwell         = "dwell"
	CodeProgramStop   = "program_stop"
	CodeOptionalStop  = "optional_stop"
	CodeProgramEnd    = "program_end"
	CodeDrill         = "cycle_drill"
	CodePeckDrill     = "cycle_peck"
	CodeCycleCancel   = "cycle_cancel"
	CodeCutcomLeft    = "cutcom_left"
	CodeCutcomRight   = "cutcom_right"
	CodeCutcomOff     = "cutcom_off"
	CodeArcCW         = "arc_cw"
	CodeArcCCW        = "arc_ccw"
	CodePlaneXY       = "plane_xy"
	CodePlaneZX       = "plane_zx"
	CodePlaneYZ       = "plane_yz"
	CodeMachineCoords = "machine_coords"
)

// Cycle output styles.
const (
	CycleCall  = "call"  // CYCLE81(RTP=..., ...) subroutine calls
	CycleGCode = "gcode" // G81/G83 canned cycle blocks
)

// Controller describes one machine controller.
type Controller struct {
	Extends        string                    `json:"extends,omitempty" yaml:"extends,omitempty"`
	Name           string                    `json:"name" yaml:"name"`
	Version        string                    `json:"version" yaml:"version"`
	Machine        string                    `json:"machine" yaml:"machine"`
	Separator      string                    `json:"separator" yaml:"separator"`
	LineEnding     string                    `json:"lineEnding" yaml:"lineEnding"`
	CancelMarker   string                    `json:"cancelMarker" yaml:"cancelMarker"`
	CycleStyle     string                    `json:"cycleStyle" yaml:"cycleStyle"`
	ArcRadius      bool                      `json:"arcRadius" yaml:"arcRadius"` // R instead of IJK for arcs under 180 degrees
	Registers      map[string]RegisterFormat `json:"registers" yaml:"registers"`
	BlockNumbering BlockNumbering            `json:"blockNumbering" yaml:"blockNumbering"`
	Comments       Comments                  `json:"comments" yaml:"comments"`
	Codes          map[string]string         `json:"codes" yaml:"codes"`
	Templates      Templates                 `json:"templates" yaml:"templates"`
}

// RegisterFormat is the output format of one register.
type RegisterFormat struct {
	Format string `json:"format" yaml:"format"`
	Modal  bool   `json:"modal" yaml:"modal"`
}

// BlockNumbering configures N numbers.
type BlockNumbering struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Prefix    string `json:"prefix" yaml:"prefix"`
	Start     int    `json:"start" yaml:"start"`
	Increment int    `json:"increment" yaml:"increment"`
}

// Comments configures comment output.
type Comments struct {
	Type            string `json:"type" yaml:"type"` // parentheses, semicolon or both
	Prefix          string `json:"prefix" yaml:"prefix"`
	Suffix          string `json:"suffix" yaml:"suffix"`
	SemicolonPrefix string `json:"semicolonPrefix" yaml:"semicolonPrefix"`
	MaxLength       int    `json:"maxLength" yaml:"maxLength"`
	Transliterate   bool   `json:"transliterate" yaml:"transliterate"`
}

// Templates are lines written before and after the program body.
type Templates struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Header  []string `json:"header" yaml:"header"`
	Footer  []string `json:"footer" yaml:"footer"`
}

// base is the profile every document is decoded on top of.
func base() *Controller {
	return &Controller{
		Name:         "generic",
		Version:      "1.0.0",
		Separator:    " ",
		LineEnding:   "lf",
		CancelMarker: "(PROCESSING CANCELLED BY USER)",
		CycleStyle:   CycleCall,
		Registers:    map[string]RegisterFormat{},
		BlockNumbering: BlockNumbering{
			Enabled:   true,
			Prefix:    "N",
			Start:     10,
			Increment: 10,
		},
		Comments: Comments{
			Type:            "parentheses",
			Prefix:          "(",
			Suffix:          ")",
			SemicolonPrefix: ";",
			MaxLength:       128,
		},
		Codes: map[string]string{
			CodeRapid:         "G0",
			CodeLinear:        "G1",
			CodeSpindleCW:     "M3",
			CodeSpindleCCW:    "M4",
			CodeSpindleOff:    "M5",
			CodeSpindleOrient: "M19",
			CodeCoolantFlood:  "M8",
			CodeCoolantMist:   "M7",
			CodeCoolantOff:    "M9",
			CodeToolChange:    "M6",
			CodeDwell:         "G4",
			CodeProgramStop:   "M0",
			CodeOptionalStop:  "M1",
			CodeProgramEnd:    "M30",
			CodeDrill:         "G81",
			CodePeckDrill:     "G83",
			CodeCycleCancel:   "G80",
			CodeCutcomLeft:    "G41",
			CodeCutcomRight:   "G42",
			CodeCutcomOff:     "G40",
			CodeArcCW:         "G2",
			CodeArcCCW:        "G3",
			CodePlaneXY:       "G17",
			CodePlaneZX:       "G18",
			CodePlaneYZ:       "G19",
			CodeMachineCoords: "G53",
		},
		Templates: Templates{
			Enabled: true,
			Footer:  []string{"M30"},
		},
	}
}

// Code returns the function code called name, or "" when it is not configured.
func (c *Controller) Code(name string) string {
	return c.Codes[name]
}

// ConfigureRegisters applies the register formats to rs.
func (c *Controller) ConfigureRegisters(rs *ncword.RegisterSet) {
	for _, name := range sortedKeys(c.Registers) {
		rf := c.Registers[name]
		rs.Configure(name, ncword.ParseFormatSpec(rf.Format), rf.Modal)
	}
}

// CommentStyle returns the block comment style.
func (c *Controller) CommentStyle() block.CommentStyle {
	cs := block.CommentStyle{
		MaxLength:     c.Comments.MaxLength,
		Transliterate: c.Comments.Transliterate,
	}
	switch c.Comments.Type {
	case "semicolon":
		cs.Prefix = c.Comments.SemicolonPrefix
	case "both":
		cs.Prefix = c.Comments.Prefix
		cs.Suffix = c.Comments.Suffix + " " + strings.TrimSpace(c.Comments.SemicolonPrefix)
	default:
		cs.Prefix = c.Comments.Prefix
		cs.Suffix = c.Comments.Suffix
	}
	return cs
}

// WriterOptions returns the block writer options this profile implies.
func (c *Controller) WriterOptions() []block.Option {
	return []block.Option{
		block.WithSeparator(c.Separator),
		block.WithCommentStyle(c.CommentStyle()),
		block.WithNumbering(block.Numbering{
			Enabled: c.BlockNumbering.Enabled,
			Prefix:  c.BlockNumbering.Prefix,
			Start:   c.BlockNumbering.Start,
			Step:    c.BlockNumbering.Increment,
		}),
	}
}

// SinkOptions returns the line sink options this profile implies.
func (c *Controller) SinkOptions() []block.SinkOpt {
	if c.LineEnding == "crlf" {
		return []block.SinkOpt{block.WithLineEnding(block.CRLF)}
	}
	return []block.SinkOpt{block.WithLineEnding(block.LF)}
}

// TemplateVars are the values substituted into header and footer lines.
type TemplateVars struct {
	Name      string
	InputFile string
	Time      time.Time
}

// Render substitutes {name}, {machine}, {inputFile} and {dateTime} in lines.
func (c *Controller) Render(lines []string, vars TemplateVars) []string {
	r := strings.NewReplacer(
		"{name}", vars.Name,
		"{machine}", c.Machine,
		"{inputFile}", vars.InputFile,
		"{dateTime}", vars.Time.Format("2006-01-02 15:04:05"),
	)
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = r.Replace(line)
	}
	return out
}
