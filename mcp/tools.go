// Package mcp exposes the advisor to MCP (Model Context Protocol) agents.
//
// There are two ways in:
//
//  1. NewServer (server.go) runs a complete MCP server over stdio using
//     mcp-go. Prefer this.
//  2. RegisterTools (this file) hands the same tools to a registry you
//     provide, for agent frameworks that already own their MCP plumbing.
//     Handlers return structured values instead of formatted text.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hyperengineering/advisor"
)

// Registry is an interface for MCP tool registration.
type Registry interface {
	Register(tool Tool)
}

// Tool represents an MCP tool definition.
type Tool struct {
	Name        string
	Description string
	Parameters  Schema
	Handler     Handler
}

// Schema defines the JSON schema for tool parameters.
type Schema map[string]ParameterDef

// ParameterDef defines a single parameter.
type ParameterDef struct {
	Type        string            `json:"type"`
	Description string            `json:"description,omitempty"`
	Required    bool              `json:"required,omitempty"`
	Default     any               `json:"default,omitempty"`
	Items       map[string]string `json:"items,omitempty"`
	Enum        []string          `json:"enum,omitempty"`
}

// Handler is a function that handles tool invocations.
type Handler func(ctx context.Context, params json.RawMessage) (any, error)

// RegisterTools registers the advisor tools with an MCP registry.
func RegisterTools(registry Registry, client *advisor.Client) {
	stringList := map[string]string{"type": "string"}

	registry.Register(Tool{
		Name:        "advisor_recommend",
		Description: "Recommend the next enrollment for a stored student",
		Parameters: Schema{
			"student_id": {Type: "string", Description: "ID of the student", Required: true},
		},
		Handler: makeRecommendHandler(client),
	})

	registry.Register(Tool{
		Name:        "advisor_consult",
		Description: "Save a student's full course record and recommend their enrollment",
		Parameters: Schema{
			"student_id":  {Type: "string", Description: "ID of the student", Required: true},
			"name":        {Type: "string", Description: "Student name"},
			"year":        {Type: "integer", Description: "Current academic year"},
			"type":        {Type: "string", Description: "Student type", Enum: []string{"new", "returning"}, Default: "returning"},
			"approved":    {Type: "array", Description: "Approved courses as ID or ID=grade", Items: stringList},
			"failed":      {Type: "array", Description: "Failed courses as ID or ID=grade", Items: stringList},
			"in_progress": {Type: "array", Description: "Courses currently being taken", Items: stringList},
		},
		Handler: makeConsultHandler(client),
	})

	registry.Register(Tool{
		Name:        "advisor_enroll",
		Description: "Enroll a student in courses by course id or session reference",
		Parameters: Schema{
			"student_id":    {Type: "string", Description: "ID of the student", Required: true},
			"courses":       {Type: "array", Description: "Session references or course ids", Required: true, Items: stringList},
			"academic_year": {Type: "integer", Description: "Academic year of the enrollment"},
		},
		Handler: makeEnrollHandler(client),
	})

	registry.Register(Tool{
		Name:        "advisor_rules",
		Description: "List the rules the advisor reasons with",
		Parameters:  Schema{},
		Handler: func(context.Context, json.RawMessage) (any, error) {
			return client.Rules(), nil
		},
	})

	registry.Register(Tool{
		Name:        "advisor_curriculum",
		Description: "List the courses of the curriculum",
		Parameters: Schema{
			"year": {Type: "integer", Description: "Only list courses of this year"},
		},
		Handler: makeCurriculumHandler(client),
	})
}

type recommendParams struct {
	StudentID string `json:"student_id"`
}

func makeRecommendHandler(client *advisor.Client) Handler {
	return func(ctx context.Context, rawParams json.RawMessage) (any, error) {
		var params recommendParams
		if err := json.Unmarshal(rawParams, &params); err != nil {
			return nil, fmt.Errorf("parse params: %w", err)
		}
		if params.StudentID == "" {
			return nil, fmt.Errorf("student_id is required")
		}
		return client.Recommend(ctx, params.StudentID)
	}
}

type consultParams struct {
	StudentID  string   `json:"student_id"`
	Name       string   `json:"name"`
	Year       int      `json:"year"`
	Type       string   `json:"type"`
	Approved   []string `json:"approved"`
	Failed     []string `json:"failed"`
	InProgress []string `json:"in_progress"`
}

func makeConsultHandler(client *advisor.Client) Handler {
	return func(ctx context.Context, rawParams json.RawMessage) (any, error) {
		var params consultParams
		if err := json.Unmarshal(rawParams, &params); err != nil {
			return nil, fmt.Errorf("parse params: %w", err)
		}
		if params.StudentID == "" {
			return nil, fmt.Errorf("student_id is required")
		}
		return client.Consult(ctx, advisor.ConsultParams{
			StudentID:  params.StudentID,
			Name:       params.Name,
			Year:       params.Year,
			Type:       advisor.StudentType(params.Type),
			Approved:   params.Approved,
			Failed:     params.Failed,
			InProgress: params.InProgress,
		})
	}
}

type enrollParams struct {
	StudentID    string   `json:"student_id"`
	Courses      []string `json:"courses"`
	AcademicYear int      `json:"academic_year"`
}

func makeEnrollHandler(client *advisor.Client) Handler {
	return func(ctx context.Context, rawParams json.RawMessage) (any, error) {
		var params enrollParams
		if err := json.Unmarshal(rawParams, &params); err != nil {
			return nil, fmt.Errorf("parse params: %w", err)
		}
		if params.StudentID == "" {
			return nil, fmt.Errorf("student_id is required")
		}
		if len(params.Courses) == 0 {
			return nil, fmt.Errorf("at least one course is required")
		}
		return client.Enroll(ctx, params.StudentID, params.Courses, params.AcademicYear)
	}
}

type curriculumParams struct {
	Year int `json:"year"`
}

func makeCurriculumHandler(client *advisor.Client) Handler {
	return func(_ context.Context, rawParams json.RawMessage) (any, error) {
		var params curriculumParams
		if len(rawParams) > 0 {
			if err := json.Unmarshal(rawParams, &params); err != nil {
				return nil, fmt.Errorf("parse params: %w", err)
			}
		}
		return client.Curriculum(params.Year), nil
	}
}
