package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/pulse/internal/surface"
)

func registerSurfaceHandlers(api huma.API, svc Service) {
	type surfaceOutput struct {
		Body surface.Info
	}
	type listSurfacesOutput struct {
		Body struct {
			Surfaces []surface.Info `json:"surfaces"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-surfaces", Method: http.MethodGet, Path: "/api/v1/surfaces", Summary: "List open surfaces", Tags: []string{"Surfaces"}},
		func(ctx context.Context, input *struct{}) (*listSurfacesOutput, error) {
			list, err := svc.ListSurfaces(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &listSurfacesOutput{}
			out.Body.Surfaces = list
			if out.Body.Surfaces == nil {
				out.Body.Surfaces = []surface.Info{}
			}
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "open-surface", Method: http.MethodPost, Path: "/api/v1/surfaces", Summary: "Open a surface", Description: "Creates a surface, makes it active and starts loading the location. Bare words become a search.", Tags: []string{"Surfaces"}},
		func(ctx context.Context, input *struct {
			Body struct {
				URL string `json:"url,omitempty" doc:"URL or search words; empty opens a blank surface" example:"example.com"`
			}
		}) (*surfaceOutput, error) {
			info, err := svc.OpenSurface(ctx, input.Body.URL)
			if err != nil {
				return nil, mapErr(err)
			}
			return &surfaceOutput{Body: info}, nil
		})

	type surfaceIDInput struct {
		SurfaceID int `path:"surface_id" minimum:"1"`
	}
	type statusOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "activate-surface", Method: http.MethodPost, Path: "/api/v1/surfaces/{surface_id}/activate", Summary: "Make a surface active", Tags: []string{"Surfaces"}},
		func(ctx context.Context, input *surfaceIDInput) (*statusOutput, error) {
			if err := svc.ActivateSurface(ctx, input.SurfaceID); err != nil {
				return nil, mapErr(err)
			}
			out := &statusOutput{}
			out.Body.Status = "activated"
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "close-surface", Method: http.MethodDelete, Path: "/api/v1/surfaces/{surface_id}", Summary: "Close a surface", Tags: []string{"Surfaces"}},
		func(ctx context.Context, input *surfaceIDInput) (*statusOutput, error) {
			if err := svc.CloseSurface(ctx, input.SurfaceID); err != nil {
				return nil, mapErr(err)
			}
			out := &statusOutput{}
			out.Body.Status = "closed"
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "navigate", Method: http.MethodPost, Path: "/api/v1/navigate", Summary: "Navigate a surface", Description: "Loads a location into surface_id, or into the active surface when surface_id is omitted.", Tags: []string{"Surfaces"}},
		func(ctx context.Context, input *struct {
			Body struct {
				SurfaceID int    `json:"surface_id,omitempty" doc:"Target surface; omit for the active one"`
				URL       string `json:"url" minLength:"1" doc:"URL or search words" example:"https://example.com"`
			}
		}) (*surfaceOutput, error) {
			info, err := svc.NavigateSurface(ctx, input.Body.SurfaceID, input.Body.URL)
			if err != nil {
				return nil, mapErr(err)
			}
			return &surfaceOutput{Body: info}, nil
		})
}
