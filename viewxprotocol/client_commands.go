package viewxprotocol

import (
	"context"
	"fmt"
)

// Typed helpers over the command catalog. Each builds the command, sends it
// and, for answered commands, waits for the reply under ctx.

// StartCalibration starts a calibration with the given number of points.
func (c *Client) StartCalibration(ctx context.Context, points, eye int) (Reply, error) {
	cmd, err := NewStartCalibrationCommand(points, eye)
	if err != nil {
		return Reply{}, err
	}
	return c.Call(ctx, cmd)
}

// AcceptCalibrationPoint accepts the current calibration point.
func (c *Client) AcceptCalibrationPoint(ctx context.Context) (Reply, error) {
	return c.Call(ctx, NewAcceptCalibrationPointCommand())
}

// CancelCalibration aborts a running calibration.
func (c *Client) CancelCalibration(ctx context.Context) (Reply, error) {
	return c.Call(ctx, NewCancelCalibrationCommand())
}

// CalibrationParam returns the value of calibration parameter param.
// The tracker answers "ET_CPA <param> <value>".
func (c *Client) CalibrationParam(ctx context.Context, param int) (int, error) {
	cmd, err := NewGetCalibrationParamCommand(param)
	if err != nil {
		return 0, err
	}
	reply, err := c.Call(ctx, cmd)
	if err != nil {
		return 0, err
	}
	return reply.Int(1)
}

// SetCalibrationParam sets calibration parameter param to on or off.
func (c *Client) SetCalibrationParam(ctx context.Context, param int, on bool) (Reply, error) {
	value := 0
	if on {
		value = 1
	}
	cmd, err := NewSetCalibrationParamCommand(param, value)
	if err != nil {
		return Reply{}, err
	}
	return c.Call(ctx, cmd)
}

// SetCalibrationArea sets the calibration area size in pixels.
func (c *Client) SetCalibrationArea(ctx context.Context, width, height int) (Reply, error) {
	cmd, err := NewSetCalibrationAreaCommand(width, height)
	if err != nil {
		return Reply{}, err
	}
	return c.Call(ctx, cmd)
}

// ResetCalibrationPoints restores the default calibration point positions.
func (c *Client) ResetCalibrationPoints(ctx context.Context) (Reply, error) {
	return c.Call(ctx, NewResetCalibrationPointsCommand())
}

// SetCalibrationCheckLevel sets the calibration check level.
func (c *Client) SetCalibrationCheckLevel(ctx context.Context, level int) (Reply, error) {
	cmd, err := NewSetCalibrationCheckLevelCommand(level)
	if err != nil {
		return Reply{}, err
	}
	return c.Call(ctx, cmd)
}

// SetCalibrationPoint moves a calibration point.
func (c *Client) SetCalibrationPoint(ctx context.Context, point, x, y int) (Reply, error) {
	cmd, err := NewSetCalibrationPointCommand(point, x, y)
	if err != nil {
		return Reply{}, err
	}
	return c.Call(ctx, cmd)
}

// StartDriftCorrection starts a drift correction.
func (c *Client) StartDriftCorrection(ctx context.Context) (Reply, error) {
	return c.Call(ctx, NewStartDriftCorrectionCommand())
}

// ValidateCalibration validates calibration accuracy.
func (c *Client) ValidateCalibration(ctx context.Context) (Reply, error) {
	return c.Call(ctx, NewValidateCalibrationCommand())
}

// ValidateCalibrationPoint validates calibration accuracy at x,y.
func (c *Client) ValidateCalibrationPoint(ctx context.Context, x, y int) (Reply, error) {
	cmd, err := NewValidateCalibrationPointCommand(x, y)
	if err != nil {
		return Reply{}, err
	}
	return c.Call(ctx, cmd)
}

// CalibrationResults requests the calibration point results.
func (c *Client) CalibrationResults(ctx context.Context) (Reply, error) {
	return c.Call(ctx, NewRequestCalibrationResultsCommand())
}

// SampleRate returns the tracker sample rate in Hz.
func (c *Client) SampleRate(ctx context.Context) (int, error) {
	reply, err := c.Call(ctx, NewGetSampleRateCommand())
	if err != nil {
		return 0, err
	}
	rate, err := reply.Int(0)
	if err != nil {
		return 0, fmt.Errorf("bad sample rate reply %q: %w", reply.Raw, err)
	}
	return rate, nil
}

// SetDataFormat sets the format of streamed samples.
func (c *Client) SetDataFormat(format string) error {
	cmd, err := NewSetDataFormatCommand(format)
	if err != nil {
		return err
	}
	return c.Send(cmd)
}

// StartStreaming starts sample streaming. Samples arrive at the event handler.
func (c *Client) StartStreaming(framerate int) error {
	cmd, err := NewStartStreamingCommand(framerate)
	if err != nil {
		return err
	}
	return c.Send(cmd)
}

// StopStreaming stops sample streaming.
func (c *Client) StopStreaming() error {
	return c.Send(NewStopStreamingCommand())
}
