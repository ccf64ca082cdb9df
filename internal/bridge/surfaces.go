package bridge

import (
	"context"
	"fmt"

	"github.com/dgnsrekt/pulse/internal/action"
	"github.com/dgnsrekt/pulse/internal/engine"
	"github.com/dgnsrekt/pulse/internal/errcode"
	"github.com/dgnsrekt/pulse/internal/surface"
)

// OpenSurface creates a surface, makes it active and starts loading location.
func (b *Bridge) OpenSurface(ctx context.Context, location string) (surface.Info, error) {
	var info surface.Info
	var opErr error
	if err := b.do(ctx, func() { info, opErr = b.manager.Open(ctx, location) }); err != nil {
		return surface.Info{}, err
	}
	if opErr != nil {
		b.logf(LogError, "open surface: %v", opErr)
	}
	return info, opErr
}

func (b *Bridge) ActivateSurface(ctx context.Context, id int) error {
	var opErr error
	if err := b.do(ctx, func() { opErr = b.manager.Activate(ctx, id) }); err != nil {
		return err
	}
	if opErr != nil {
		b.logf(LogError, "activate surface %d: %v", id, opErr)
	}
	return opErr
}

func (b *Bridge) CloseSurface(ctx context.Context, id int) error {
	var opErr error
	if err := b.do(ctx, func() { opErr = b.manager.Close(ctx, id) }); err != nil {
		return err
	}
	if opErr != nil {
		b.logf(LogError, "close surface %d: %v", id, opErr)
	}
	return opErr
}

// NavigateSurface loads location into id, or into the active surface when
// id is zero.
func (b *Bridge) NavigateSurface(ctx context.Context, id int, location string) (surface.Info, error) {
	var info surface.Info
	var opErr error
	if err := b.do(ctx, func() { info, opErr = b.manager.Navigate(ctx, id, location) }); err != nil {
		return surface.Info{}, err
	}
	if opErr != nil {
		b.logf(LogError, "navigate: %v", opErr)
	}
	return info, opErr
}

func (b *Bridge) ListSurfaces(ctx context.Context) ([]surface.Info, error) {
	var list []surface.Info
	if err := b.do(ctx, func() { list = b.manager.List() }); err != nil {
		return nil, err
	}
	return list, nil
}

// Resize applies a new host window size to the layout.
func (b *Bridge) Resize(ctx context.Context, size engine.Size) (engine.Rect, error) {
	if size.Width <= 0 || size.Height <= 0 {
		return engine.Rect{}, errcode.Validation("window size must be positive, got %dx%d", size.Width, size.Height)
	}
	var region engine.Rect
	if err := b.do(ctx, func() {
		b.manager.Resize(ctx, size)
		region = b.manager.Region()
	}); err != nil {
		return engine.Rect{}, err
	}
	return region, nil
}

// surfaceCommand applies an agent command that changes the surface set.
func (b *Bridge) surfaceCommand(ctx context.Context, cmd action.Command) action.Result {
	if err := cmd.Validate(); err != nil {
		return action.Fail(err.Error())
	}
	var res action.Result
	err := b.do(ctx, func() {
		switch cmd.Kind {
		case action.KindNavigate:
			info, err := b.manager.Navigate(ctx, 0, cmd.URL)
			res = resultOf(err, fmt.Sprintf("surface %d loading %s", info.ID, surface.NormalizeLocation(cmd.URL)))
		case action.KindNewTab:
			info, err := b.manager.Open(ctx, cmd.URL)
			res = resultOf(err, fmt.Sprintf("opened surface %d", info.ID))
		case action.KindCloseTab:
			id := cmd.TabID
			if id == 0 {
				_, active, ok := b.manager.Active()
				if !ok {
					res = action.Fail(action.ErrNoActiveSurface)
					return
				}
				id = active.ID
			}
			res = resultOf(b.manager.Close(ctx, id), fmt.Sprintf("closed surface %d", id))
		case action.KindSwitchTab:
			res = resultOf(b.manager.Activate(ctx, cmd.TabID), fmt.Sprintf("switched to surface %d", cmd.TabID))
		default:
			res = action.Fail(fmt.Sprintf("unrecognized command: %s", cmd.Kind))
		}
	})
	if err != nil {
		return action.Fail(err.Error())
	}
	return res
}

func resultOf(err error, text string) action.Result {
	if err != nil {
		return action.Fail(err.Error())
	}
	return action.Ok(text)
}
