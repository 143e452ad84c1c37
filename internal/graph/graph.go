// Package graph runs one conversational traversal: the supervisor classifies
// the newest user turn, a specialist answers or requests tools, tool results
// are fed back to the same specialist, and the supervisor yields once the
// specialist has answered.
//
// Every traversal starts at the supervisor. Each node reports an event and
// the transitions table picks the next node:
//
//	Supervisor  --routed-->         Specialist(route)
//	Supervisor  --finish-->         Terminate
//	Supervisor  --yield-->          end of traversal
//	Specialist  --tool requests-->  Tool(route)
//	Specialist  --answered-->       Supervisor
//	Tool        --results-->        Specialist(route)
//	Terminate   --terminated-->     end of traversal
package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/ashita-ai/insureai/internal/model"
	"github.com/ashita-ai/insureai/internal/specialist"
	"github.com/ashita-ai/insureai/internal/supervisor"
	"github.com/ashita-ai/insureai/internal/telemetry"
)

var tracer = telemetry.Tracer("insureai/graph")

// DefaultMaxSteps bounds the node visits of one traversal.
const DefaultMaxSteps = 24

// FarewellMessage is the reply when the supervisor ends the conversation.
const FarewellMessage = "Thank you for contacting us. Have a great day!"

var (
	// ErrStepLimit is returned when a traversal visits more nodes than allowed.
	ErrStepLimit = errors.New("graph: step limit exceeded")

	// ErrNoSpecialist is returned when a route has no registered specialist.
	ErrNoSpecialist = errors.New("graph: no specialist for route")

	// ErrTransition is returned when a node reports an event the transitions table does not define for it.
	ErrTransition = errors.New("graph: undefined transition")
)

// Invoker executes a tool request on behalf of a principal.
type Invoker interface {
	Invoke(ctx context.Context, req model.ToolRequest, principal model.Principal) model.ToolResult
}

// ToolCall records one tool invocation made during a traversal.
type ToolCall struct {
	Specialist model.Route        `json:"specialist"`
	CallID     string             `json:"call_id"`
	Tool       string             `json:"tool"`
	Args       map[string]any     `json:"args,omitempty"`
	Status     model.ResultStatus `json:"status"`
}

// Outcome summarizes a committed traversal.
type Outcome struct {
	Reply      string
	Route      model.Route
	Terminated bool
	ToolCalls  []ToolCall
	Turns      []model.Turn // turns appended by this traversal, input first
}

// Graph wires a classifier, the specialists and a tool invoker.
type Graph struct {
	classifier  supervisor.Classifier
	specialists specialist.Set
	invoker     Invoker
	maxSteps    int
	logger      *slog.Logger

	traversals metric.Int64Counter
	steps      metric.Int64Histogram
}

// Option configures a Graph.
type Option func(*Graph)

// WithMaxSteps overrides DefaultMaxSteps. Values below 1 are ignored.
func WithMaxSteps(n int) Option {
	return func(g *Graph) {
		if n > 0 {
			g.maxSteps = n
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(g *Graph) {
		if l != nil {
			g.logger = l
		}
	}
}

// New creates a Graph.
func New(classifier supervisor.Classifier, specialists specialist.Set, invoker Invoker, opts ...Option) *Graph {
	meter := telemetry.Meter("insureai/graph")
	traversals, _ := meter.Int64Counter("insureai.graph.traversals",
		metric.WithDescription("Graph traversals by final route and result"),
	)
	steps, _ := meter.Int64Histogram("insureai.graph.steps",
		metric.WithDescription("Node visits per traversal"),
	)
	g := &Graph{
		classifier:  classifier,
		specialists: specialists,
		invoker:     invoker,
		maxSteps:    DefaultMaxSteps,
		logger:      slog.Default(),
		traversals:  traversals,
		steps:       steps,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type node int

const (
	nodeSupervisor node = iota
	nodeSpecialist
	nodeTool
	nodeTerminate
	nodeEnd
)

func (n node) String() string {
	switch n {
	case nodeSupervisor:
		return "supervisor"
	case nodeSpecialist:
		return "specialist"
	case nodeTool:
		return "tool"
	case nodeTerminate:
		return "terminate"
	default:
		return "end"
	}
}

type event int

const (
	evRouted event = iota
	evFinish
	evYield
	evToolRequests
	evAnswered
	evResults
	evTerminated
)

func (e event) String() string {
	switch e {
	case evRouted:
		return "routed"
	case evFinish:
		return "finish"
	case evYield:
		return "yield"
	case evToolRequests:
		return "tool requests"
	case evAnswered:
		return "answered"
	case evResults:
		return "results"
	case evTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// transitions is the traversal state machine.
var transitions = map[node]map[event]node{
	nodeSupervisor: {evRouted: nodeSpecialist, evFinish: nodeTerminate, evYield: nodeEnd},
	nodeSpecialist: {evToolRequests: nodeTool, evAnswered: nodeSupervisor},
	nodeTool:       {evResults: nodeSpecialist},
	nodeTerminate:  {evTerminated: nodeEnd},
}

func next(from node, e event) (node, error) {
	if to, ok := transitions[from][e]; ok {
		return to, nil
	}
	return nodeEnd, fmt.Errorf("%w: %s on %s", ErrTransition, e, from)
}

// traversal is the working state of one Run. Nothing reaches the
// conversation state until the traversal ends cleanly.
type traversal struct {
	principal  model.Principal
	work       []model.Turn
	base       int // index of the input turn in work
	route      model.Route
	classified bool
	terminated bool
	calls      []ToolCall
}

// Run executes one traversal for input and commits the new turns to state
// on success. On any error state is left unchanged.
func (g *Graph) Run(ctx context.Context, state *model.ConversationState, input model.UserTurn) (out Outcome, err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "graph.run")
	defer span.End()

	tr := &traversal{principal: state.Principal(), work: state.Turns()}
	tr.base = len(tr.work)
	tr.work = append(tr.work, input)

	steps := 0
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		attrs := metric.WithAttributes(
			attribute.String("route", string(tr.route)),
			attribute.String("result", result),
		)
		g.traversals.Add(ctx, 1, attrs)
		g.steps.Record(ctx, int64(steps))
		span.SetAttributes(
			attribute.String("insureai.route", string(tr.route)),
			attribute.Int("insureai.steps", steps),
			attribute.Int("insureai.tool_calls", len(tr.calls)),
		)
		g.logger.Debug("graph traversal",
			"route", tr.route,
			"steps", steps,
			"tool_calls", len(tr.calls),
			"terminated", tr.terminated,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
	}()

	for n := nodeSupervisor; n != nodeEnd; steps++ {
		if err := ctx.Err(); err != nil {
			return Outcome{}, fmt.Errorf("graph: %w", err)
		}
		if steps >= g.maxSteps {
			return Outcome{}, fmt.Errorf("%w (%d steps, at %s)", ErrStepLimit, g.maxSteps, n)
		}
		var ev event
		switch n {
		case nodeSupervisor:
			ev, err = g.supervise(tr)
		case nodeSpecialist:
			ev, err = g.act(tr)
		case nodeTool:
			ev = g.invokeTools(ctx, tr)
		case nodeTerminate:
			tr.terminated = true
			ev = evTerminated
		}
		if err != nil {
			return Outcome{}, err
		}
		if n, err = next(n, ev); err != nil {
			return Outcome{}, err
		}
	}

	added := tr.work[tr.base:]
	state.Append(added...)
	state.Route = tr.route
	return Outcome{
		Reply:      reply(tr),
		Route:      tr.route,
		Terminated: tr.terminated,
		ToolCalls:  tr.calls,
		Turns:      added,
	}, nil
}

// supervise classifies once per traversal. A second visit means the
// specialist answered, so the supervisor yields.
func (g *Graph) supervise(tr *traversal) (event, error) {
	if tr.classified {
		return evYield, nil
	}
	r, err := g.classifier.Classify(tr.work)
	if err != nil {
		return evYield, fmt.Errorf("graph: classify: %w", err)
	}
	route, err := model.ParseRoute(string(r))
	if err != nil {
		return evYield, fmt.Errorf("graph: %w: %v", supervisor.ErrClassificationFailure, err)
	}
	tr.classified = true
	tr.route = route
	if route == model.RouteFinish {
		return evFinish, nil
	}
	return evRouted, nil
}

func (g *Graph) act(tr *traversal) (event, error) {
	sp, ok := g.specialists[tr.route]
	if !ok {
		return evAnswered, fmt.Errorf("%w %q", ErrNoSpecialist, tr.route)
	}
	st, err := sp.Act(tr.work)
	if err != nil {
		return evAnswered, fmt.Errorf("graph: %s specialist: %w", tr.route, err)
	}
	st.Specialist = tr.route
	tr.work = append(tr.work, st)
	if st.HasToolRequests() {
		return evToolRequests, nil
	}
	return evAnswered, nil
}

// invokeTools runs every request of the newest specialist turn, in order.
// A request outside the specialist's tool set gets a validation result
// without reaching the invoker.
func (g *Graph) invokeTools(ctx context.Context, tr *traversal) event {
	st := tr.work[len(tr.work)-1].(model.SpecialistTurn)
	sp := g.specialists[tr.route]
	for _, req := range st.ToolRequests {
		var res model.ToolResult
		if specialist.Allows(sp, req.Tool) {
			res = g.invoker.Invoke(ctx, req, tr.principal)
		} else {
			g.logger.Warn("graph: tool outside specialist set", "route", tr.route, "tool", req.Tool)
			res = model.ValidationError(fmt.Sprintf("Tool %q is not available to the %s specialist.", req.Tool, tr.route))
		}
		tr.work = append(tr.work, model.ToolResultTurn{
			Specialist: tr.route,
			CallID:     req.ID,
			Tool:       req.Tool,
			Result:     res,
		})
		tr.calls = append(tr.calls, ToolCall{
			Specialist: tr.route,
			CallID:     req.ID,
			Tool:       req.Tool,
			Args:       req.Args,
			Status:     res.Status,
		})
	}
	return evResults
}

func reply(tr *traversal) string {
	if tr.terminated {
		return FarewellMessage
	}
	for i := len(tr.work) - 1; i > tr.base; i-- {
		if st, ok := tr.work[i].(model.SpecialistTurn); ok && !st.HasToolRequests() {
			return st.Text
		}
	}
	return ""
}
