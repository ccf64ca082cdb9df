package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/pulse/internal/bridge"
	"github.com/dgnsrekt/pulse/internal/engine"
	"github.com/dgnsrekt/pulse/internal/history"
)

func registerAgentHandlers(api huma.API, svc Service) {
	type agentOutput struct {
		Body bridge.AgentStatus
	}
	huma.Register(api, huma.Operation{OperationID: "get-agent", Method: http.MethodGet, Path: "/api/v1/agent", Summary: "Agent state and connection", Tags: []string{"Agent"}},
		func(ctx context.Context, input *struct{}) (*agentOutput, error) {
			return &agentOutput{Body: svc.AgentStatus()}, nil
		})

	type historyOutput struct {
		Body struct {
			Visits []history.Visit `json:"visits"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "get-history", Method: http.MethodGet, Path: "/api/v1/history", Summary: "Browsing history", Description: "Recent visits newest first. With q, only visits whose URL or title contains q.", Tags: []string{"Agent"}},
		func(ctx context.Context, input *struct {
			Query string `query:"q" doc:"Case-insensitive URL or title filter"`
			Limit int    `query:"limit" minimum:"0" maximum:"500" doc:"Maximum visits; 0 uses the default"`
		}) (*historyOutput, error) {
			out := &historyOutput{}
			out.Body.Visits = svc.History(input.Query, input.Limit)
			if out.Body.Visits == nil {
				out.Body.Visits = []history.Visit{}
			}
			return out, nil
		})

	type windowOutput struct {
		Body struct {
			Region engine.Rect `json:"region"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "resize-window", Method: http.MethodPut, Path: "/api/v1/window", Summary: "Resize the host window", Description: "Recomputes the content region below the header and applies it to every surface.", Tags: []string{"Agent"}},
		func(ctx context.Context, input *struct {
			Body engine.Size
		}) (*windowOutput, error) {
			region, err := svc.Resize(ctx, input.Body)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &windowOutput{}
			out.Body.Region = region
			return out, nil
		})
}
