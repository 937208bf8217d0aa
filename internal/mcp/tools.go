// ABOUTME: MCP tool implementations for the workout session.
// ABOUTME: Lifecycle, set tracking, templates, history and sync tools.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harperreed/fitcore/internal/catalog"
	"github.com/harperreed/fitcore/internal/models"
	"github.com/harperreed/fitcore/internal/resttimer"
	"github.com/harperreed/fitcore/internal/session"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var errRejected = errors.New("not allowed in the current session state")

// lifecycleOps are the transitions that take no input.
var lifecycleOps = map[string]func(*session.Controller) bool{
	"pause_session":    (*session.Controller).Pause,
	"resume_session":   (*session.Controller).Resume,
	"complete_session": (*session.Controller).Complete,
	"cancel_session":   (*session.Controller).Cancel,
}

var lifecycleDescriptions = map[string]string{
	"pause_session":    "Pause the session clock",
	"resume_session":   "Resume a paused session",
	"complete_session": "Finish the workout and archive it",
	"cancel_session":   "Discard the setup draft or dismiss a completed summary",
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "session_status",
		Description: "Get the current session state, elapsed time, workout and rest countdown",
	}, s.handleStatus)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "begin_session",
		Description: "Start the session clock and enter setup",
	}, s.handleBegin)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "start_workout",
		Description: "Start the live workout from the given exercises, or from the setup draft when none are given",
	}, s.handleStartWorkout)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "start_template",
		Description: "Start the live workout from a saved template",
	}, s.handleStartTemplate)

	for _, name := range []string{"pause_session", "resume_session", "complete_session", "cancel_session"} {
		mcp.AddTool(s.mcpServer, &mcp.Tool{Name: name, Description: lifecycleDescriptions[name]}, s.lifecycle(lifecycleOps[name]))
	}

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "add_exercise",
		Description: "Add an exercise to the live workout or the setup draft",
	}, s.handleAddExercise)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "add_set",
		Description: "Append a set to an exercise",
	}, s.handleAddSet)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "complete_set",
		Description: "Mark a set completed and start its rest countdown",
	}, s.handleCompleteSet)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "skip_rest",
		Description: "Skip the running rest countdown",
	}, s.handleSkipRest)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "reset_rest",
		Description: "Restart the current rest countdown at its full duration",
	}, s.handleResetRest)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_exercises",
		Description: "Search the exercise catalog by name or category",
	}, s.handleListExercises)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_templates",
		Description: "List saved workout templates",
	}, s.handleListTemplates)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_history",
		Description: "List archived workouts, newest first",
	}, s.handleListHistory)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_workout",
		Description: "Get an archived workout by ID or ID prefix",
	}, s.handleGetWorkout)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_stats",
		Description: "Get workout totals and weekly goal progress",
	}, s.handleGetStats)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "request_sync",
		Description: "Ask the paired device for its session and templates",
	}, s.handleRequestSync)
}

// Tool input/output types

type emptyInput struct{}

type simpleOutput struct {
	Message string `json:"message"`
}

type stateOutput struct {
	State   string `json:"state"`
	Elapsed string `json:"elapsed"`
	Message string `json:"message"`
}

type statusOutput struct {
	State   string           `json:"state"`
	Elapsed string           `json:"elapsed"`
	Session session.Snapshot `json:"session"`
	Rest    resttimer.Status `json:"rest"`
}

type exerciseInput struct {
	Name        string  `json:"name" jsonschema:"Exercise name"`
	Category    string  `json:"category,omitempty" jsonschema:"Category such as strength or cardio"`
	Sets        int     `json:"sets,omitempty" jsonschema:"Number of sets (default 3)"`
	Reps        int     `json:"reps,omitempty" jsonschema:"Reps per set (default 10)"`
	Weight      float64 `json:"weight,omitempty" jsonschema:"Weight per set; omit for bodyweight"`
	RestSeconds int     `json:"rest_seconds,omitempty" jsonschema:"Rest after each set in seconds"`
}

type startWorkoutInput struct {
	Name      string          `json:"name" jsonschema:"Workout name"`
	Exercises []exerciseInput `json:"exercises,omitempty" jsonschema:"Exercises to start with"`
}

type startTemplateInput struct {
	Template string `json:"template" jsonschema:"Template ID, ID prefix or 1-based position"`
}

type addSetInput struct {
	Exercise string  `json:"exercise" jsonschema:"Exercise ID prefix or 1-based position"`
	Reps     int     `json:"reps" jsonschema:"Reps"`
	Weight   float64 `json:"weight,omitempty" jsonschema:"Weight; omit for bodyweight"`
}

type setRefInput struct {
	Exercise string `json:"exercise" jsonschema:"Exercise ID prefix or 1-based position"`
	Set      string `json:"set" jsonschema:"Set ID prefix or 1-based position"`
}

type listInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Max results (default 20)"`
}

type getWorkoutInput struct {
	ID string `json:"id" jsonschema:"Workout ID or prefix"`
}

type requestSyncInput struct {
	WithTemplates bool `json:"with_templates,omitempty" jsonschema:"Also ask for the peer's templates"`
}

func (in exerciseInput) build(cat *catalog.Catalog) (models.Exercise, error) {
	if in.Name == "" {
		return models.Exercise{}, fmt.Errorf("exercise name is required")
	}
	sets, reps := in.Sets, in.Reps
	if sets <= 0 {
		sets = 3
	}
	if reps <= 0 {
		reps = 10
	}
	if sets > session.MaxSetsPerExercise {
		return models.Exercise{}, fmt.Errorf("at most %d sets per exercise", session.MaxSetsPerExercise)
	}
	var weight *float64
	if in.Weight > 0 {
		weight = models.Float(in.Weight)
	}
	ex := cat.Exercise(in.Name, sets, reps, weight)
	if in.Category != "" {
		ex.Category = in.Category
	}
	if in.RestSeconds > 0 {
		ex.RestTime = resttimer.ClampRest(time.Duration(in.RestSeconds) * time.Second)
		for i := range ex.Sets {
			ex.Sets[i].RestTime = ex.RestTime
		}
	}
	return ex, nil
}

// Tool handlers

func (s *Server) stateOutput(msg string) stateOutput {
	c := s.dev.Session
	return stateOutput{
		State:   c.State().String(),
		Elapsed: session.FormatElapsed(c.Elapsed()),
		Message: msg,
	}
}

func (s *Server) handleStatus(ctx context.Context, req *mcp.CallToolRequest, input emptyInput) (*mcp.CallToolResult, any, error) {
	var out statusOutput
	err := s.do(ctx, func() {
		snap := s.dev.Session.Snapshot()
		out = statusOutput{
			State:   snap.State.String(),
			Elapsed: session.FormatElapsed(snap.Elapsed),
			Session: snap,
			Rest:    s.dev.Rest.Status(),
		}
	})
	if err != nil {
		return nil, nil, err
	}
	return nil, out, nil
}

func (s *Server) handleBegin(ctx context.Context, req *mcp.CallToolRequest, input emptyInput) (*mcp.CallToolResult, stateOutput, error) {
	var out stateOutput
	var ok bool
	if err := s.do(ctx, func() {
		ok = s.dev.Session.BeginSetup()
		out = s.stateOutput("Session clock started")
	}); err != nil {
		return nil, stateOutput{}, err
	}
	if !ok {
		return nil, stateOutput{}, fmt.Errorf("begin session: %w", errRejected)
	}
	return nil, out, nil
}

func (s *Server) handleStartWorkout(ctx context.Context, req *mcp.CallToolRequest, input startWorkoutInput) (*mcp.CallToolResult, stateOutput, error) {
	if input.Name == "" {
		return nil, stateOutput{}, fmt.Errorf("workout name is required")
	}
	var exercises []models.Exercise
	for _, in := range input.Exercises {
		ex, err := in.build(s.dev.Catalog)
		if err != nil {
			return nil, stateOutput{}, err
		}
		exercises = append(exercises, ex)
	}

	var out stateOutput
	var ok bool
	if err := s.do(ctx, func() {
		c := s.dev.Session
		if st := c.State(); st == session.Idle || st == session.Completed {
			c.BeginSetup()
		}
		ok = c.CommitWorkout(input.Name, exercises)
		out = s.stateOutput(fmt.Sprintf("Started %s", input.Name))
	}); err != nil {
		return nil, stateOutput{}, err
	}
	if !ok {
		return nil, stateOutput{}, fmt.Errorf("start workout: %w", errRejected)
	}
	return nil, out, nil
}

func (s *Server) handleStartTemplate(ctx context.Context, req *mcp.CallToolRequest, input startTemplateInput) (*mcp.CallToolResult, stateOutput, error) {
	var out stateOutput
	var ok bool
	var lookupErr error
	if err := s.do(ctx, func() {
		t, err := s.dev.Templates.Get(input.Template)
		if err != nil {
			lookupErr = err
			return
		}
		ok = s.dev.Session.StartFromTemplate(t)
		out = s.stateOutput(fmt.Sprintf("Started %s from template", t.Name))
	}); err != nil {
		return nil, stateOutput{}, err
	}
	if lookupErr != nil {
		return nil, stateOutput{}, fmt.Errorf("template not found: %w", lookupErr)
	}
	if !ok {
		return nil, stateOutput{}, fmt.Errorf("start template: %w", errRejected)
	}
	return nil, out, nil
}

func (s *Server) lifecycle(op func(*session.Controller) bool) mcp.ToolHandlerFor[emptyInput, stateOutput] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input emptyInput) (*mcp.CallToolResult, stateOutput, error) {
		var out stateOutput
		var ok bool
		if err := s.do(ctx, func() {
			ok = op(s.dev.Session)
			out = s.stateOutput("")
		}); err != nil {
			return nil, stateOutput{}, err
		}
		if !ok {
			return nil, stateOutput{}, fmt.Errorf("session is %s: %w", out.State, errRejected)
		}
		out.Message = "Session is " + out.State
		return nil, out, nil
	}
}

func (s *Server) handleAddExercise(ctx context.Context, req *mcp.CallToolRequest, input exerciseInput) (*mcp.CallToolResult, simpleOutput, error) {
	ex, err := input.build(s.dev.Catalog)
	if err != nil {
		return nil, simpleOutput{}, err
	}
	var ok bool
	if err := s.do(ctx, func() { ok = s.dev.Session.AddExercise(ex) }); err != nil {
		return nil, simpleOutput{}, err
	}
	if !ok {
		return nil, simpleOutput{}, fmt.Errorf("add exercise: %w", errRejected)
	}
	return nil, simpleOutput{
		Message: fmt.Sprintf("Added %s with %d sets (ID: %s)", ex.Name, len(ex.Sets), ex.ID.String()[:8]),
	}, nil
}

func (s *Server) handleAddSet(ctx context.Context, req *mcp.CallToolRequest, input addSetInput) (*mcp.CallToolResult, simpleOutput, error) {
	if input.Reps <= 0 {
		return nil, simpleOutput{}, fmt.Errorf("reps must be positive")
	}
	var weight *float64
	if input.Weight > 0 {
		weight = models.Float(input.Weight)
	}
	var resolveErr error
	var ok bool
	if err := s.do(ctx, func() {
		exID, err := s.dev.Session.ResolveExercise(input.Exercise)
		if err != nil {
			resolveErr = err
			return
		}
		_, ok = s.dev.Session.AddSet(exID, weight, input.Reps)
	}); err != nil {
		return nil, simpleOutput{}, err
	}
	if resolveErr != nil {
		return nil, simpleOutput{}, resolveErr
	}
	if !ok {
		return nil, simpleOutput{}, fmt.Errorf("add set: limit of %d sets reached or %w", session.MaxSetsPerExercise, errRejected)
	}
	return nil, simpleOutput{Message: fmt.Sprintf("Added set of %d reps", input.Reps)}, nil
}

func (s *Server) handleCompleteSet(ctx context.Context, req *mcp.CallToolRequest, input setRefInput) (*mcp.CallToolResult, simpleOutput, error) {
	var resolveErr error
	var ok bool
	var rest resttimer.Status
	if err := s.do(ctx, func() {
		exID, setID, err := s.dev.Session.ResolveSet(input.Exercise, input.Set)
		if err != nil {
			resolveErr = err
			return
		}
		ok = s.dev.Session.CompleteSet(exID, setID)
		rest = s.dev.Rest.Status()
	}); err != nil {
		return nil, simpleOutput{}, err
	}
	if resolveErr != nil {
		return nil, simpleOutput{}, resolveErr
	}
	if !ok {
		return nil, simpleOutput{}, fmt.Errorf("complete set: %w", errRejected)
	}
	msg := "Set completed"
	if rest.State == resttimer.Running {
		msg += fmt.Sprintf(", rest %s", session.FormatElapsed(rest.Remaining))
	}
	return nil, simpleOutput{Message: msg}, nil
}

func (s *Server) handleSkipRest(ctx context.Context, req *mcp.CallToolRequest, input emptyInput) (*mcp.CallToolResult, simpleOutput, error) {
	var ok bool
	if err := s.do(ctx, func() { ok = s.dev.Rest.Skip() }); err != nil {
		return nil, simpleOutput{}, err
	}
	if !ok {
		return nil, simpleOutput{Message: "No rest countdown running"}, nil
	}
	return nil, simpleOutput{Message: "Rest skipped"}, nil
}

func (s *Server) handleResetRest(ctx context.Context, req *mcp.CallToolRequest, input emptyInput) (*mcp.CallToolResult, simpleOutput, error) {
	var (
		ok   bool
		rest resttimer.Status
	)
	if err := s.do(ctx, func() {
		ok = s.dev.Rest.Reset()
		rest = s.dev.Rest.Status()
	}); err != nil {
		return nil, simpleOutput{}, err
	}
	if !ok {
		return nil, simpleOutput{Message: "No rest countdown to reset"}, nil
	}
	return nil, simpleOutput{Message: "Rest restarted: " + session.FormatElapsed(rest.Remaining)}, nil
}

type catalogInput struct {
	Query string `json:"query,omitempty" jsonschema:"Filter by name or category; empty lists everything"`
}

type catalogOutput struct {
	Exercises []catalog.Item `json:"exercises"`
	Count     int            `json:"count"`
}

func (s *Server) handleListExercises(ctx context.Context, req *mcp.CallToolRequest, input catalogInput) (*mcp.CallToolResult, catalogOutput, error) {
	items := s.dev.Catalog.Search(input.Query)
	return nil, catalogOutput{Exercises: items, Count: len(items)}, nil
}

func (s *Server) handleListTemplates(ctx context.Context, req *mcp.CallToolRequest, input emptyInput) (*mcp.CallToolResult, any, error) {
	var list []models.WorkoutTemplate
	if err := s.do(ctx, func() { list = s.dev.Templates.List() }); err != nil {
		return nil, nil, err
	}
	if len(list) == 0 {
		return nil, map[string]interface{}{"message": "No templates found."}, nil
	}
	return nil, map[string]interface{}{"templates": list}, nil
}

func (s *Server) handleListHistory(ctx context.Context, req *mcp.CallToolRequest, input listInput) (*mcp.CallToolResult, any, error) {
	if input.Limit <= 0 {
		input.Limit = 20
	}
	var list []models.Workout
	if err := s.do(ctx, func() { list = s.dev.Archive.List(input.Limit) }); err != nil {
		return nil, nil, err
	}
	if len(list) == 0 {
		return nil, map[string]interface{}{"message": "No workouts found."}, nil
	}
	return nil, map[string]interface{}{"workouts": list}, nil
}

func (s *Server) handleGetWorkout(ctx context.Context, req *mcp.CallToolRequest, input getWorkoutInput) (*mcp.CallToolResult, any, error) {
	var w models.Workout
	var lookupErr error
	if err := s.do(ctx, func() { w, lookupErr = s.dev.Archive.Get(input.ID) }); err != nil {
		return nil, nil, err
	}
	if lookupErr != nil {
		return nil, nil, fmt.Errorf("workout not found: %s", input.ID)
	}
	return nil, w, nil
}

func (s *Server) handleGetStats(ctx context.Context, req *mcp.CallToolRequest, input emptyInput) (*mcp.CallToolResult, any, error) {
	var stats models.WorkoutStats
	if err := s.do(ctx, func() { stats = s.dev.Archive.StatsAt(s.dev.Clock.Now()) }); err != nil {
		return nil, nil, err
	}
	return nil, stats, nil
}

func (s *Server) handleRequestSync(ctx context.Context, req *mcp.CallToolRequest, input requestSyncInput) (*mcp.CallToolResult, simpleOutput, error) {
	direct, queued := s.dev.Channels()
	if !direct && !queued {
		return nil, simpleOutput{}, fmt.Errorf("no sync channel configured")
	}
	if err := s.do(ctx, func() { s.dev.Bridge.RequestSync(input.WithTemplates) }); err != nil {
		return nil, simpleOutput{}, err
	}
	return nil, simpleOutput{Message: "Sync requested"}, nil
}
