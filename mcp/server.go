package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperengineering/advisor"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server wraps the MCP server with advisor tools.
type Server struct {
	client    *advisor.Client
	mcpServer *server.MCPServer
}

// ToolResult represents the result of a tool call.
type ToolResult struct {
	Content string
	IsError bool
}

// ToolInfo represents a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// NewServer creates a new MCP server with advisor tools registered.
func NewServer(client *advisor.Client) *Server {
	s := &Server{client: client}

	s.mcpServer = server.NewMCPServer(
		"advisor",
		"1.0.0",
		server.WithToolCapabilities(true),
	)
	s.registerTools()

	return s
}

// Run serves MCP over stdin and stdout.
func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

// HandleMessage processes a raw JSON-RPC message and returns a response.
// This is primarily for testing the MCP protocol layer.
func (s *Server) HandleMessage(ctx context.Context, message json.RawMessage) mcp.JSONRPCMessage {
	return s.mcpServer.HandleMessage(ctx, message)
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return []ToolInfo{
		{Name: "advisor_recommend", Description: "Recommend the next enrollment for a stored student"},
		{Name: "advisor_consult", Description: "Save a student's full course record and recommend their enrollment"},
		{Name: "advisor_enroll", Description: "Enroll a student in courses by course id or session reference"},
		{Name: "advisor_rules", Description: "List the rules the advisor reasons with"},
		{Name: "advisor_curriculum", Description: "List the courses of the curriculum"},
	}
}

// CallTool executes a tool by name with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	switch name {
	case "advisor_recommend":
		return s.handleRecommend(ctx, args)
	case "advisor_consult":
		return s.handleConsult(ctx, args)
	case "advisor_enroll":
		return s.handleEnroll(ctx, args)
	case "advisor_rules":
		return s.handleRules(ctx, args)
	case "advisor_curriculum":
		return s.handleCurriculum(ctx, args)
	default:
		return &ToolResult{Content: fmt.Sprintf("unknown tool: %s", name), IsError: true}, nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("advisor_recommend",
		mcp.WithDescription("Recommend the next enrollment for a stored student. Suggested courses come with session references (S1, S2, ...) that advisor_enroll accepts."),
		mcp.WithString("student_id",
			mcp.Description("ID of the student"),
			mcp.Required(),
		),
		mcp.WithBoolean("explain",
			mcp.Description("Include every rule that fired and why (default: false)"),
		),
	), s.wrap(s.handleRecommend))

	s.mcpServer.AddTool(mcp.NewTool("advisor_consult",
		mcp.WithDescription("Save a student's full course record, replacing what was recorded before, and recommend their enrollment. New students always start in year 1."),
		mcp.WithString("student_id",
			mcp.Description("ID of the student"),
			mcp.Required(),
		),
		mcp.WithString("name",
			mcp.Description("Student name (default: the id)"),
		),
		mcp.WithNumber("year",
			mcp.Description("Current academic year of the student"),
		),
		mcp.WithString("type",
			mcp.Description("Student type: new or returning (default: returning)"),
		),
		mcp.WithArray("approved",
			mcp.Description("Approved courses as ID or ID=grade (default grade 7.0)"),
			mcp.WithStringItems(),
		),
		mcp.WithArray("failed",
			mcp.Description("Failed courses as ID or ID=grade (default grade 4.0)"),
			mcp.WithStringItems(),
		),
		mcp.WithArray("in_progress",
			mcp.Description("Courses currently being taken"),
			mcp.WithStringItems(),
		),
		mcp.WithBoolean("explain",
			mcp.Description("Include every rule that fired and why (default: false)"),
		),
	), s.wrap(s.handleConsult))

	s.mcpServer.AddTool(mcp.NewTool("advisor_enroll",
		mcp.WithDescription("Enroll a student in courses. Use session references (S1, S2, ...) from advisor_recommend or course ids."),
		mcp.WithString("student_id",
			mcp.Description("ID of the student"),
			mcp.Required(),
		),
		mcp.WithArray("courses",
			mcp.Description("Session references or course ids"),
			mcp.WithStringItems(),
			mcp.Required(),
		),
		mcp.WithNumber("academic_year",
			mcp.Description("Academic year of the enrollment (default: the student's current year)"),
		),
	), s.wrap(s.handleEnroll))

	s.mcpServer.AddTool(mcp.NewTool("advisor_rules",
		mcp.WithDescription("List the rules the advisor reasons with. This is a read-only operation."),
		mcp.WithString("category",
			mcp.Description("Filter by category: year_repeat, auto_enroll, block, eligibility, heuristic"),
		),
	), s.wrap(s.handleRules))

	s.mcpServer.AddTool(mcp.NewTool("advisor_curriculum",
		mcp.WithDescription("List the courses of the curriculum with their prerequisites. This is a read-only operation."),
		mcp.WithNumber("year",
			mcp.Description("Only list courses of this year"),
		),
	), s.wrap(s.handleCurriculum))
}

type handlerFunc func(ctx context.Context, args map[string]any) (*ToolResult, error)

// wrap adapts an internal handler to the mcp-go handler signature.
func (s *Server) wrap(h handlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := h(ctx, req.GetArguments())
		if err != nil {
			return nil, err
		}
		return toMCPResult(result), nil
	}
}

func toMCPResult(r *ToolResult) *mcp.CallToolResult {
	result := &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: r.Content,
			},
		},
	}
	if r.IsError {
		result.IsError = true
	}
	return result
}

// Internal handlers

func (s *Server) handleRecommend(ctx context.Context, args map[string]any) (*ToolResult, error) {
	studentID, ok := args["student_id"].(string)
	if !ok || studentID == "" {
		return &ToolResult{Content: "student_id is required", IsError: true}, nil
	}

	rec, err := s.client.Recommend(ctx, studentID)
	if errors.Is(err, advisor.ErrNotFound) {
		return &ToolResult{Content: fmt.Sprintf("student %s not found; use advisor_consult to register them", studentID), IsError: true}, nil
	}
	if err != nil {
		return &ToolResult{Content: fmt.Sprintf("recommend failed: %v", err), IsError: true}, nil
	}

	explain, _ := args["explain"].(bool)
	return &ToolResult{Content: formatRecommendation(rec, explain)}, nil
}

func (s *Server) handleConsult(ctx context.Context, args map[string]any) (*ToolResult, error) {
	studentID, ok := args["student_id"].(string)
	if !ok || studentID == "" {
		return &ToolResult{Content: "student_id is required", IsError: true}, nil
	}

	p := advisor.ConsultParams{
		StudentID:  studentID,
		Approved:   toStringSlice(args["approved"]),
		Failed:     toStringSlice(args["failed"]),
		InProgress: toStringSlice(args["in_progress"]),
	}
	if name, ok := args["name"].(string); ok {
		p.Name = name
	}
	if year, ok := args["year"].(float64); ok {
		p.Year = int(year)
	}
	if typ, ok := args["type"].(string); ok {
		p.Type = advisor.StudentType(typ)
	}
	if p.Year == 0 && p.Type != advisor.StudentNew {
		return &ToolResult{Content: "year is required for returning students", IsError: true}, nil
	}

	rec, err := s.client.Consult(ctx, p)
	if err != nil {
		return &ToolResult{Content: fmt.Sprintf("consult failed: %v", err), IsError: true}, nil
	}

	explain, _ := args["explain"].(bool)
	return &ToolResult{Content: formatRecommendation(rec, explain)}, nil
}

func (s *Server) handleEnroll(ctx context.Context, args map[string]any) (*ToolResult, error) {
	studentID, ok := args["student_id"].(string)
	if !ok || studentID == "" {
		return &ToolResult{Content: "student_id is required", IsError: true}, nil
	}
	courses := toStringSlice(args["courses"])
	if len(courses) == 0 {
		return &ToolResult{Content: "at least one course is required", IsError: true}, nil
	}

	year := 0
	if y, ok := args["academic_year"].(float64); ok {
		year = int(y)
	}

	created, err := s.client.Enroll(ctx, studentID, courses, year)
	if err != nil {
		return &ToolResult{Content: fmt.Sprintf("enroll failed: %v", err), IsError: true}, nil
	}
	return &ToolResult{Content: formatEnrollments(studentID, courses, created)}, nil
}

// Formatting functions

func formatRecommendation(rec *advisor.Recommendation, explain bool) string {
	res := rec.Result
	var sb strings.Builder

	fmt.Fprintf(&sb, "Student %s (%s), year %d\n", rec.Student.ID, rec.Student.Name, rec.Student.CurrentYear)
	fmt.Fprintf(&sb, "Status: %s\n", res.Status)
	fmt.Fprintf(&sb, "%s\n", res.Message)

	switch res.Status {
	case advisor.StatusAutoEnroll:
		fmt.Fprintf(&sb, "\nEnroll in year %d: %s\n", res.TargetYear, strings.Join(res.Enrolled, ", "))
		if len(res.Dependencies) > 0 {
			fmt.Fprintf(&sb, "Open courses from earlier years: %s\n", strings.Join(res.Dependencies, ", "))
		}
	case advisor.StatusYearRepeat:
		fmt.Fprintf(&sb, "\nRepeat year %d.\n", res.TargetYear)
	}

	if len(res.Suggestions) > 0 {
		refs := make(map[string]string, len(rec.SessionRefs))
		for ref, id := range rec.SessionRefs {
			refs[id] = ref
		}
		sb.WriteString("\nSuggestions:\n")
		for _, s := range res.Suggestions {
			ref := refs[s.ID]
			if ref == "" {
				ref = s.ID
			}
			fmt.Fprintf(&sb, "[%s] %d. %s %s (year %d, score %d)\n", ref, s.Rank, s.ID, s.Name, s.Year, s.Score)
			if len(s.Reasons) > 0 {
				fmt.Fprintf(&sb, "    %s\n", strings.Join(s.Reasons, "; "))
			}
		}
	}

	if len(res.Blocked) > 0 {
		sb.WriteString("\nBlocked:\n")
		for _, b := range res.Blocked {
			fmt.Fprintf(&sb, "- %s %s: %s\n", b.ID, b.Name, b.Reason)
		}
	}

	st := res.Statistics
	fmt.Fprintf(&sb, "\nProgress: %d/%d courses (%.1f%%), mean grade %.2f\n",
		st.Approved, st.TotalCourses, st.CompletionPercent, st.MeanGrade)

	if explain {
		ex := rec.Explanation
		fmt.Fprintf(&sb, "\nRules fired: %d of %d (%s)\n", ex.TotalFired, ex.TotalRules, strings.Join(ex.FiredRules, ", "))
		for _, e := range ex.Explanations {
			course := ""
			if v, ok := e.Context[advisor.FactCourseID]; ok {
				course = " [" + v.String() + "]"
			}
			fmt.Fprintf(&sb, "- %s %s%s: %s\n", e.RuleID, e.RuleName, course, e.Message)
		}
	}

	if len(res.Suggestions) > 0 {
		sb.WriteString("\nUse advisor_enroll with session refs (S1, S2, ...) to enroll.")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatEnrollments(studentID string, requested []string, created []advisor.Enrollment) string {
	if len(created) == 0 {
		return fmt.Sprintf("Student %s was already enrolled in %s.", studentID, strings.Join(requested, ", "))
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Enrolled %s in %d course(s):\n", studentID, len(created))
	for _, e := range created {
		fmt.Fprintf(&sb, "  - %s (year %d)\n", e.CourseID, e.AcademicYear)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// toStringSlice converts various array types to []string.
// Handles []any, []string, and nil.
func toStringSlice(v any) []string {
	if v == nil {
		return nil
	}

	switch arr := v.(type) {
	case []string:
		return arr
	case []any:
		result := make([]string, 0, len(arr))
		for _, item := range arr {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result
	default:
		return nil
	}
}
