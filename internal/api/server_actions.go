package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/pulse/internal/action"
)

func registerActionHandlers(api huma.API, svc Service) {
	type actionOutput struct {
		Body action.Result
	}
	huma.Register(api, huma.Operation{OperationID: "execute-action", Method: http.MethodPost, Path: "/api/v1/actions", Summary: "Execute an action", Description: "Runs one command against the active surface, the same way an agent command is run. A failed command is reported in the result body.", Tags: []string{"Actions"}},
		func(ctx context.Context, input *struct {
			Body action.Command
		}) (*actionOutput, error) {
			cmd := input.Body
			cmd.Kind = action.Canonical(string(cmd.Kind))
			if cmd.Kind == "" {
				return nil, huma.Error400BadRequest("command has no action tag")
			}
			return &actionOutput{Body: svc.ExecuteAction(ctx, cmd)}, nil
		})

	type commandOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "send-command", Method: http.MethodPost, Path: "/api/v1/commands", Summary: "Send a text command to the agent", Tags: []string{"Actions"}},
		func(ctx context.Context, input *struct {
			Body struct {
				Text string `json:"text" doc:"Operator instruction forwarded as a transcript" example:"open the pricing page"`
			}
		}) (*commandOutput, error) {
			if err := svc.SendTextCommand(ctx, input.Body.Text); err != nil {
				return nil, mapErr(err)
			}
			out := &commandOutput{}
			out.Body.Status = "sent"
			return out, nil
		})
}
