package viewxprotocol

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func must(t *testing.T) func(Command, error) Command {
	return func(cmd Command, err error) Command {
		t.Helper()
		require.NoError(t, err)
		return cmd
	}
}

func TestCatalogCommandFormatting(t *testing.T) {
	m := must(t)
	tests := []struct {
		name     string
		cmd      Command
		expected string
	}{
		{"Calibrate", m(NewStartCalibrationCommand(9, 0)), "ET_CAL 9"},
		{"Calibrate right eye", m(NewStartCalibrationCommand(5, 1)), "ET_CAL 5 1"},
		{"Calibrate left eye", m(NewStartCalibrationCommand(13, 2)), "ET_CAL 13 2"},
		{"Accept", NewAcceptCalibrationPointCommand(), "ET_ACC"},
		{"Cancel", NewCancelCalibrationCommand(), "ET_BRK"},
		{"Get param", m(NewGetCalibrationParamCommand(2)), "ET_CPA 2"},
		{"Set param", m(NewSetCalibrationParamCommand(1, 1)), "ET_CPA 1 1"},
		{"Area", m(NewSetCalibrationAreaCommand(1280, 1024)), "ET_CSZ 1280 1024"},
		{"Defaults", NewResetCalibrationPointsCommand(), "ET_DEF"},
		{"Check level", m(NewSetCalibrationCheckLevelCommand(3)), "ET_LEV 3"},
		{"Point", m(NewSetCalibrationPointCommand(3, 100, 200)), "ET_PNT 3 100 200"},
		{"Drift", NewStartDriftCorrectionCommand(), "ET_RCL"},
		{"Validate", NewValidateCalibrationCommand(), "ET_VLS"},
		{"Validate point", m(NewValidateCalibrationPointCommand(640, 512)), "ET_VLX 640 512"},
		{"Results", NewRequestCalibrationResultsCommand(), "ET_RES"},
		{"Format", m(NewSetDataFormatCommand("%TS %SX %SY")), `ET_FRM "%TS %SX %SY"`},
		{"Format single token", m(NewSetDataFormatCommand("%TS")), `ET_FRM "%TS"`},
		{"Stream", m(NewStartStreamingCommand(0)), "ET_STR"},
		{"Stream rate", m(NewStartStreamingCommand(60)), "ET_STR 60"},
		{"Stop", NewStopStreamingCommand(), "ET_EST"},
		{"Sample rate", NewGetSampleRateCommand(), "ET_SRT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.cmd.Format())
			assert.NoError(t, tt.cmd.Validate())
		})
	}
}

func TestCatalogValidation(t *testing.T) {
	tests := []struct {
		name    string
		build   func() (Command, error)
		keyword string
		kind    ValidationErrorKind
	}{
		{"7 points", func() (Command, error) { return NewStartCalibrationCommand(7, 0) }, KeywordCalibrate, ErrKindOutOfRange},
		{"0 points", func() (Command, error) { return NewStartCalibrationCommand(0, 0) }, KeywordCalibrate, ErrKindOutOfRange},
		{"bad eye", func() (Command, error) { return NewStartCalibrationCommand(9, 3) }, KeywordCalibrate, ErrKindOutOfRange},
		{"negative eye", func() (Command, error) { return NewStartCalibrationCommand(9, -1) }, KeywordCalibrate, ErrKindOutOfRange},
		{"param too big", func() (Command, error) { return NewGetCalibrationParamCommand(4) }, KeywordCalibrationParam, ErrKindOutOfRange},
		{"set param too big", func() (Command, error) { return NewSetCalibrationParamCommand(4, 0) }, KeywordCalibrationParam, ErrKindOutOfRange},
		{"set value not boolean", func() (Command, error) { return NewSetCalibrationParamCommand(1, 2) }, KeywordCalibrationParam, ErrKindOutOfRange},
		{"zero width", func() (Command, error) { return NewSetCalibrationAreaCommand(0, 100) }, KeywordCalibrationArea, ErrKindInvalidValue},
		{"negative height", func() (Command, error) { return NewSetCalibrationAreaCommand(100, -1) }, KeywordCalibrationArea, ErrKindInvalidValue},
		{"level 4", func() (Command, error) { return NewSetCalibrationCheckLevelCommand(4) }, KeywordCheckLevel, ErrKindOutOfRange},
		{"point 0", func() (Command, error) { return NewSetCalibrationPointCommand(0, 1, 1) }, KeywordCalibrationPoint, ErrKindOutOfRange},
		{"point 14", func() (Command, error) { return NewSetCalibrationPointCommand(14, 1, 1) }, KeywordCalibrationPoint, ErrKindOutOfRange},
		{"point at origin", func() (Command, error) { return NewSetCalibrationPointCommand(1, 0, 10) }, KeywordCalibrationPoint, ErrKindInvalidValue},
		{"validate at origin", func() (Command, error) { return NewValidateCalibrationPointCommand(10, 0) }, KeywordValidatePoint, ErrKindInvalidValue},
		{"empty format", func() (Command, error) { return NewSetDataFormatCommand("  ") }, KeywordDataFormat, ErrKindInvalidValue},
		{"format with quote", func() (Command, error) { return NewSetDataFormatCommand(`%TS "x"`) }, KeywordDataFormat, ErrKindInvalidValue},
		{"negative framerate", func() (Command, error) { return NewStartStreamingCommand(-1) }, KeywordStartStreaming, ErrKindOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build()
			require.Error(t, err)

			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.keyword, ve.Keyword)
			assert.Equal(t, tt.kind, ve.Kind)
		})
	}
}

func TestExpectsReply(t *testing.T) {
	for _, info := range Catalog() {
		want := info.Keyword != KeywordDataFormat &&
			info.Keyword != KeywordStartStreaming &&
			info.Keyword != KeywordStopStreaming
		assert.Equal(t, want, ExpectsReply(info.Keyword), info.Keyword)
	}
	assert.True(t, ExpectsReply("ET_UNKNOWN"))
	assert.False(t, NewStopStreamingCommand().ExpectsReply())
	assert.True(t, NewGetSampleRateCommand().ExpectsReply())
}

func TestLookupCommand(t *testing.T) {
	info, ok := LookupCommand("et_cal")
	require.True(t, ok)
	assert.Equal(t, KeywordCalibrate, info.Keyword)
	assert.NotEmpty(t, info.Usage)

	_, ok = LookupCommand("ET_NOPE")
	assert.False(t, ok)

	assert.Len(t, Catalog(), 16)
}

// An invalid command must fail before anything reaches the transport.
func TestInvalidCalibrationSendsNothing(t *testing.T) {
	ft := newFakeTransport()
	client := NewClient(WithProbe(0))
	require.NoError(t, client.ConnectTransport(context.Background(), ft))
	defer client.Disconnect()

	_, err := client.StartCalibration(context.Background(), 7, 0)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Empty(t, ft.sentLines())
	assert.Equal(t, 0, client.PendingCount())
}
