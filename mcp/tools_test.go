package mcp_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hyperengineering/advisor"
	advisormcp "github.com/hyperengineering/advisor/mcp"
)

type fakeRegistry struct {
	tools map[string]advisormcp.Tool
}

func (r *fakeRegistry) Register(tool advisormcp.Tool) {
	if r.tools == nil {
		r.tools = make(map[string]advisormcp.Tool)
	}
	r.tools[tool.Name] = tool
}

func TestRegisterTools(t *testing.T) {
	client := newTestClient(t)
	reg := &fakeRegistry{}
	advisormcp.RegisterTools(reg, client)

	if len(reg.tools) != 5 {
		t.Fatalf("registered %d tools, want 5", len(reg.tools))
	}
	if !reg.tools["advisor_recommend"].Parameters["student_id"].Required {
		t.Error("advisor_recommend.student_id should be required")
	}
}

func TestRegisterTools_ConsultThenRecommend(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	reg := &fakeRegistry{}
	advisormcp.RegisterTools(reg, client)

	out, err := reg.tools["advisor_consult"].Handler(ctx, json.RawMessage(`{"student_id":"s1","type":"new"}`))
	if err != nil {
		t.Fatalf("consult handler returned error: %v", err)
	}
	rec, ok := out.(*advisor.Recommendation)
	if !ok {
		t.Fatalf("consult handler returned %T, want *advisor.Recommendation", out)
	}
	if rec.Result.Status != advisor.StatusAutoEnroll {
		t.Errorf("Status = %s, want %s", rec.Result.Status, advisor.StatusAutoEnroll)
	}

	out, err = reg.tools["advisor_recommend"].Handler(ctx, json.RawMessage(`{"student_id":"s1"}`))
	if err != nil {
		t.Fatalf("recommend handler returned error: %v", err)
	}
	if got := out.(*advisor.Recommendation).Result.Status; got != advisor.StatusAutoEnroll {
		t.Errorf("recommend Status = %s, want %s", got, advisor.StatusAutoEnroll)
	}
}

func TestRegisterTools_Validation(t *testing.T) {
	reg := &fakeRegistry{}
	advisormcp.RegisterTools(reg, newTestClient(t))

	tests := []struct {
		tool   string
		params string
	}{
		{"advisor_recommend", `{}`},
		{"advisor_consult", `{"name":"x"}`},
		{"advisor_enroll", `{"student_id":"s1"}`},
		{"advisor_recommend", `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.tool+" "+tt.params, func(t *testing.T) {
			if _, err := reg.tools[tt.tool].Handler(context.Background(), json.RawMessage(tt.params)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestRegisterTools_Curriculum(t *testing.T) {
	reg := &fakeRegistry{}
	advisormcp.RegisterTools(reg, newTestClient(t))

	out, err := reg.tools["advisor_curriculum"].Handler(context.Background(), json.RawMessage(`{"year":3}`))
	if err != nil {
		t.Fatalf("curriculum handler returned error: %v", err)
	}
	courses := out.([]advisor.Course)
	if len(courses) != 8 {
		t.Errorf("year 3 has %d courses, want 8", len(courses))
	}
	for _, c := range courses {
		if c.Year != 3 {
			t.Errorf("course %s is in year %d", c.ID, c.Year)
		}
	}
}
