// Package mcp exposes the parameter engine over the Model Context Protocol
// so an agent host can request plans through stdio tool calls. The engine is
// pure and per-request, so the server carries no session state: every tool
// call is a complete, independent invocation.
package mcp

import (
	"context"
	"fmt"

	"linedirector/internal/director"
	"linedirector/internal/logging"
	"linedirector/internal/observe"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the MCP SDK server around one immutable engine.
type Server struct {
	MCPServer *sdkmcp.Server
	engine    *director.Engine
}

// NewServer creates an MCP server exposing the planning tools.
func NewServer(engine *director.Engine) *Server {
	s := &Server{engine: engine}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "linedirector", Version: "dev"},
		nil,
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "compute_plan",
		Description: "Compute a clamped two-stage parameter plan from sketch observations, an optional style reference, and caller intent.",
	}, s.handleComputePlan)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_profiles",
		Description: "List the case profiles, phases, and backend defaults of the loaded policy table.",
	}, s.handleListProfiles)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "explain_plan",
		Description: "Compute a plan and return a human-readable account of the classification, reasons, and every clamp rule that fired.",
	}, s.handleExplainPlan)
}

// --- Tool input/output types ---

type computePlanInput struct {
	Sketch    observe.Sketch     `json:"sketch" jsonschema:"qualitative sketch analysis report"`
	Reference *observe.Reference `json:"reference,omitempty" jsonschema:"style reference comparison; omit when no reference image exists"`
	Intent    *observe.Intent    `json:"intent,omitempty" jsonschema:"caller intent; omitted fields take conservative defaults"`
}

type computePlanOutput struct {
	Plan *director.Plan `json:"plan"`
}

type listProfilesInput struct{}

type profileSummary struct {
	Name           string     `json:"name"`
	Stage1Guidance [2]float64 `json:"stage1_guidance"`
	Stage2Guidance [2]float64 `json:"stage2_guidance"`
	Stage1Denoise  [2]float64 `json:"stage1_denoise"`
	Stage2Denoise  [2]float64 `json:"stage2_denoise"`
	Steps          [2]float64 `json:"steps"`
}

type listProfilesOutput struct {
	Model     string           `json:"model"`
	Sampler   string           `json:"sampler"`
	Scheduler string           `json:"scheduler"`
	Profiles  []profileSummary `json:"profiles"`
	Phases    []string         `json:"phases"`
}

type explainPlanOutput struct {
	PlanID string   `json:"plan_id"`
	Case   string   `json:"case"`
	Lines  []string `json:"lines"`
}

func (in computePlanInput) request() director.Request {
	intent := observe.DefaultIntent()
	if in.Intent != nil {
		intent = *in.Intent
	}
	return director.Request{
		Sketch:    in.Sketch,
		Reference: in.Reference,
		Intent:    intent,
	}
}

func (s *Server) handleComputePlan(ctx context.Context, _ *sdkmcp.CallToolRequest, input computePlanInput) (*sdkmcp.CallToolResult, computePlanOutput, error) {
	logger := logging.New("mcp")
	plan, err := s.engine.ComputePlan(input.request())
	if err != nil {
		logger.Error("compute_plan failed", "error", err)
		return nil, computePlanOutput{}, fmt.Errorf("compute_plan: %w", err)
	}
	logger.Info("plan computed",
		"case", plan.Diagnostics.Case,
		"clamps", len(plan.Diagnostics.Clamps))
	return nil, computePlanOutput{Plan: plan}, nil
}

func (s *Server) handleListProfiles(_ context.Context, _ *sdkmcp.CallToolRequest, _ listProfilesInput) (*sdkmcp.CallToolResult, listProfilesOutput, error) {
	table := s.engine.Table()
	out := listProfilesOutput{
		Model:     table.Models.Default,
		Sampler:   table.Sampler,
		Scheduler: table.Scheduler,
		Phases:    table.PhaseNames(),
	}
	for _, name := range table.ProfileNames() {
		p, err := table.Profile(name)
		if err != nil {
			return nil, listProfilesOutput{}, err
		}
		out.Profiles = append(out.Profiles, profileSummary{
			Name:           name,
			Stage1Guidance: [2]float64{p.Stage1Guidance.Min, p.Stage1Guidance.Max},
			Stage2Guidance: [2]float64{p.Stage2Guidance.Min, p.Stage2Guidance.Max},
			Stage1Denoise:  [2]float64{p.Stage1Denoise.Min, p.Stage1Denoise.Max},
			Stage2Denoise:  [2]float64{p.Stage2Denoise.Min, p.Stage2Denoise.Max},
			Steps:          [2]float64{p.Steps.Min, p.Steps.Max},
		})
	}
	return nil, out, nil
}

func (s *Server) handleExplainPlan(ctx context.Context, _ *sdkmcp.CallToolRequest, input computePlanInput) (*sdkmcp.CallToolResult, explainPlanOutput, error) {
	plan, err := s.engine.ComputePlan(input.request())
	if err != nil {
		return nil, explainPlanOutput{}, fmt.Errorf("explain_plan: %w", err)
	}
	return nil, explainPlanOutput{
		PlanID: plan.ID,
		Case:   plan.Diagnostics.Case,
		Lines:  ExplainPlan(plan),
	}, nil
}

// ExplainPlan renders the diagnostics trail as ordered prose lines: the
// classification, the signal snapshot, every recorded reason, and every
// clamp override in firing order.
func ExplainPlan(p *director.Plan) []string {
	d := p.Diagnostics
	lines := []string{
		fmt.Sprintf("classified as %s", d.Case),
		fmt.Sprintf("signals: S=%.2f R=%.2f D=%.2f P=%.2f H=%.2f",
			d.Signals.Structure, d.Signals.Reference, d.Signals.StyleDistance,
			d.Signals.PoseRisk, d.Signals.Hallucination),
		fmt.Sprintf("effective guidance ceilings: stage1 %.2f, stage2 %.2f",
			d.Guidance1Max, d.Guidance2Max),
	}
	if d.NoReference {
		lines = append(lines, "no style reference: both style injections are zero")
	}
	lines = append(lines, d.Reasons...)
	for _, c := range d.Clamps {
		lines = append(lines, fmt.Sprintf("%s: %s %.3f -> %.3f", c.Rule, c.Field, c.Old, c.New))
	}
	return lines
}
