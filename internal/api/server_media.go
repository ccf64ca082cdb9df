package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/pulse/internal/snapshot"
)

func imageResponses() map[string]*huma.Response {
	return map[string]*huma.Response{
		"200": {
			Description: "Image bytes",
			Content: map[string]*huma.MediaType{
				"image/png":  {Schema: &huma.Schema{Type: "string", Format: "binary"}},
				"image/jpeg": {Schema: &huma.Schema{Type: "string", Format: "binary"}},
			},
		},
	}
}

func contentType(format string) string {
	if format == "jpeg" {
		return "image/jpeg"
	}
	return "image/png"
}

func registerMediaHandlers(api huma.API, svc Service, store *snapshot.Store) {
	type imageOutput struct {
		ContentType string `header:"Content-Type"`
		Body        []byte
	}

	huma.Register(api, huma.Operation{OperationID: "latest-frame", Method: http.MethodGet, Path: "/api/v1/frame/latest", Summary: "Latest captured frame", Description: "Returns the most recent JPEG frame sampled from the active surface.", Tags: []string{"Capture"}, Responses: imageResponses()},
		func(ctx context.Context, input *struct{}) (*imageOutput, error) {
			frame, ok := svc.LatestFrame()
			if !ok {
				return nil, huma.Error404NotFound("no frame captured yet")
			}
			return &imageOutput{ContentType: "image/jpeg", Body: frame.Data}, nil
		})

	type captureOutput struct {
		Body struct {
			Capturing bool `json:"capturing"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "start-capture", Method: http.MethodPost, Path: "/api/v1/capture/start", Summary: "Start audio capture", Tags: []string{"Capture"}},
		func(ctx context.Context, input *struct{}) (*captureOutput, error) {
			if err := svc.StartCapture(ctx); err != nil {
				return nil, mapErr(err)
			}
			out := &captureOutput{}
			out.Body.Capturing = true
			return out, nil
		})
	huma.Register(api, huma.Operation{OperationID: "stop-capture", Method: http.MethodPost, Path: "/api/v1/capture/stop", Summary: "Stop audio capture", Tags: []string{"Capture"}},
		func(ctx context.Context, input *struct{}) (*captureOutput, error) {
			if err := svc.StopCapture(ctx); err != nil {
				return nil, mapErr(err)
			}
			return &captureOutput{}, nil
		})

	type takeSnapshotOutput struct {
		Body struct {
			Snapshot snapshot.Meta `json:"snapshot"`
			URL      string        `json:"url"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "take-snapshot", Method: http.MethodPost, Path: "/api/v1/snapshots", Summary: "Snapshot the active surface", Tags: []string{"Snapshots"}},
		func(ctx context.Context, input *struct {
			Body struct {
				Notes string `json:"notes,omitempty" doc:"Free-form annotation for the snapshot"`
			}
		}) (*takeSnapshotOutput, error) {
			meta, err := svc.Snapshot(ctx, input.Body.Notes)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &takeSnapshotOutput{}
			out.Body.Snapshot = meta
			out.Body.URL = "/api/v1/snapshots/" + meta.ID + "/image"
			return out, nil
		})

	if store == nil {
		return
	}

	type listSnapshotsOutput struct {
		Body struct {
			Snapshots []snapshot.Meta `json:"snapshots"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-snapshots", Method: http.MethodGet, Path: "/api/v1/snapshots", Summary: "List snapshots", Tags: []string{"Snapshots"}},
		func(ctx context.Context, input *struct {
			Since string `query:"since" doc:"Only snapshots taken after this instant (RFC 3339)" example:"2026-01-02T15:04:05Z"`
		}) (*listSnapshotsOutput, error) {
			var since time.Time
			if input.Since != "" {
				t, err := time.Parse(time.RFC3339, input.Since)
				if err != nil {
					return nil, huma.Error400BadRequest("since must be an RFC 3339 timestamp")
				}
				since = t
			}
			metas, err := store.List()
			if err != nil {
				return nil, mapErr(err)
			}
			out := &listSnapshotsOutput{}
			out.Body.Snapshots = []snapshot.Meta{}
			for _, m := range metas {
				if !since.IsZero() && !m.CreatedAt.After(since) {
					continue
				}
				out.Body.Snapshots = append(out.Body.Snapshots, m)
			}
			return out, nil
		})

	type snapshotIDInput struct {
		SnapshotID string `path:"snapshot_id"`
	}
	type getSnapshotOutput struct {
		Body snapshot.Meta
	}
	huma.Register(api, huma.Operation{OperationID: "get-snapshot", Method: http.MethodGet, Path: "/api/v1/snapshots/{snapshot_id}", Summary: "Get snapshot metadata", Tags: []string{"Snapshots"}},
		func(ctx context.Context, input *snapshotIDInput) (*getSnapshotOutput, error) {
			meta, err := store.Get(input.SnapshotID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &getSnapshotOutput{Body: meta}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "get-snapshot-image", Method: http.MethodGet, Path: "/api/v1/snapshots/{snapshot_id}/image", Summary: "Get snapshot image", Tags: []string{"Snapshots"}, Responses: imageResponses()},
		func(ctx context.Context, input *snapshotIDInput) (*imageOutput, error) {
			data, format, err := store.ReadImage(input.SnapshotID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &imageOutput{ContentType: contentType(format), Body: data}, nil
		})

	type deleteSnapshotOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "delete-snapshot", Method: http.MethodDelete, Path: "/api/v1/snapshots/{snapshot_id}", Summary: "Delete snapshot", Tags: []string{"Snapshots"}},
		func(ctx context.Context, input *snapshotIDInput) (*deleteSnapshotOutput, error) {
			if err := store.Delete(input.SnapshotID); err != nil {
				return nil, mapErr(err)
			}
			out := &deleteSnapshotOutput{}
			out.Body.Status = "deleted"
			return out, nil
		})
}
