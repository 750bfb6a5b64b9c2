package viewxprotocol

import "strings"

// CommandInfo describes one catalog command.
type CommandInfo struct {
	Keyword      string
	Name         string
	Usage        string
	Description  string
	ExpectsReply bool
}

// catalog lists every command the tracker understands, in protocol order.
var catalog = []CommandInfo{
	{KeywordCalibrate, "start calibration", "ET_CAL <points> [eye]", "Start a calibration with 2, 5, 9 or 13 points; eye 1=right, 2=left on binocular systems.", true},
	{KeywordAcceptPoint, "accept calibration point", "ET_ACC", "Accept the current calibration point and move to the next one.", true},
	{KeywordCancelCalibration, "cancel calibration", "ET_BRK", "Cancel the running calibration.", true},
	{KeywordCalibrationParam, "calibration parameter", "ET_CPA <param> [value]", "Get or set a calibration parameter (0 wait for valid data, 1 randomize order, 2 auto accept, 3 speed).", true},
	{KeywordCalibrationArea, "calibration area", "ET_CSZ <width> <height>", "Set the calibration area size in pixels.", true},
	{KeywordDefaultPoints, "reset calibration points", "ET_DEF", "Reset all calibration points to their default positions.", true},
	{KeywordCheckLevel, "calibration check level", "ET_LEV <level>", "Set the calibration check level: 0 none, 1 weak, 2 medium, 3 strong.", true},
	{KeywordCalibrationPoint, "calibration point position", "ET_PNT <point> <x> <y>", "Move calibration point 1-13 to x,y in pixels. Not available on RED systems.", true},
	{KeywordDriftCorrection, "drift correction", "ET_RCL", "Start drift correction using the first calibration point.", true},
	{KeywordValidate, "validate calibration", "ET_VLS", "Validate calibration accuracy.", true},
	{KeywordValidatePoint, "validate calibration point", "ET_VLX <x> <y>", "Validate calibration accuracy at a single point.", true},
	{KeywordCalibrationResults, "calibration results", "ET_RES", "Request gaze data acquired for the calibration points.", true},
	{KeywordDataFormat, "data format", `ET_FRM "<format>"`, "Set the streamed sample format, e.g. \"%TS %SX %SY\".", false},
	{KeywordStartStreaming, "start streaming", "ET_STR [framerate]", "Start streaming samples, optionally at a reduced frame rate.", false},
	{KeywordStopStreaming, "stop streaming", "ET_EST", "Stop streaming samples.", false},
	{KeywordSampleRate, "sample rate", "ET_SRT", "Return the current sample rate.", true},
}

// Catalog returns descriptions of every known command.
func Catalog() []CommandInfo {
	out := make([]CommandInfo, len(catalog))
	copy(out, catalog)
	return out
}

// LookupCommand returns the catalog entry for keyword.
func LookupCommand(keyword string) (CommandInfo, bool) {
	keyword = strings.ToUpper(keyword)
	for _, info := range catalog {
		if info.Keyword == keyword {
			return info, true
		}
	}
	return CommandInfo{}, false
}

// ExpectsReply reports whether the tracker answers commands with keyword.
// Unknown keywords are assumed to be answered.
func ExpectsReply(keyword string) bool {
	if info, ok := LookupCommand(keyword); ok {
		return info.ExpectsReply
	}
	return true
}

// validCalibrationPoints are the point counts accepted by ET_CAL.
var validCalibrationPoints = map[int]bool{2: true, 5: true, 9: true, 13: true}

// Command constructors. Each validates its arguments and returns a
// *ValidationError tagged with the command keyword on failure.

// NewStartCalibrationCommand creates an ET_CAL command. eye is 0 for the
// default eye, 1 for right or 2 for left on binocular systems.
func NewStartCalibrationCommand(points, eye int) (Command, error) {
	if !validCalibrationPoints[points] {
		return Command{}, newOutOfRangeError(KeywordCalibrate, "invalid points", points)
	}
	if eye < 0 || eye > 2 {
		return Command{}, newOutOfRangeError(KeywordCalibrate, "invalid eye", eye)
	}
	if eye == 0 {
		return NewCommand(KeywordCalibrate, points)
	}
	return NewCommand(KeywordCalibrate, points, eye)
}

// NewAcceptCalibrationPointCommand creates an ET_ACC command.
func NewAcceptCalibrationPointCommand() Command {
	return Command{keyword: KeywordAcceptPoint}
}

// NewCancelCalibrationCommand creates an ET_BRK command.
func NewCancelCalibrationCommand() Command {
	return Command{keyword: KeywordCancelCalibration}
}

// NewGetCalibrationParamCommand creates an ET_CPA query for param 0-3.
func NewGetCalibrationParamCommand(param int) (Command, error) {
	if param < 0 || param > 3 {
		return Command{}, newOutOfRangeError(KeywordCalibrationParam, "invalid param", param)
	}
	return NewCommand(KeywordCalibrationParam, param)
}

// NewSetCalibrationParamCommand creates an ET_CPA command setting param 0-3
// to value 0 (off/slow) or 1 (on/fast).
func NewSetCalibrationParamCommand(param, value int) (Command, error) {
	if param < 0 || param > 3 {
		return Command{}, newOutOfRangeError(KeywordCalibrationParam, "invalid param", param)
	}
	if value != 0 && value != 1 {
		return Command{}, newOutOfRangeError(KeywordCalibrationParam, "value not boolean", value)
	}
	return NewCommand(KeywordCalibrationParam, param, value)
}

// NewSetCalibrationAreaCommand creates an ET_CSZ command.
func NewSetCalibrationAreaCommand(width, height int) (Command, error) {
	if width <= 0 || height <= 0 {
		return Command{}, newInvalidValueError(KeywordCalibrationArea, "invalid dimension", dimension(width, height))
	}
	return NewCommand(KeywordCalibrationArea, width, height)
}

// NewResetCalibrationPointsCommand creates an ET_DEF command.
func NewResetCalibrationPointsCommand() Command {
	return Command{keyword: KeywordDefaultPoints}
}

// NewSetCalibrationCheckLevelCommand creates an ET_LEV command for level 0-3.
func NewSetCalibrationCheckLevelCommand(level int) (Command, error) {
	if level < 0 || level > 3 {
		return Command{}, newOutOfRangeError(KeywordCheckLevel, "invalid value", level)
	}
	return NewCommand(KeywordCheckLevel, level)
}

// NewSetCalibrationPointCommand creates an ET_PNT command moving point 1-13 to x,y.
func NewSetCalibrationPointCommand(point, x, y int) (Command, error) {
	if point < 1 || point > 13 {
		return Command{}, newOutOfRangeError(KeywordCalibrationPoint, "invalid point", point)
	}
	if x <= 0 || y <= 0 {
		return Command{}, newInvalidValueError(KeywordCalibrationPoint, "invalid position", dimension(x, y))
	}
	return NewCommand(KeywordCalibrationPoint, point, x, y)
}

// NewStartDriftCorrectionCommand creates an ET_RCL command.
func NewStartDriftCorrectionCommand() Command {
	return Command{keyword: KeywordDriftCorrection}
}

// NewValidateCalibrationCommand creates an ET_VLS command.
func NewValidateCalibrationCommand() Command {
	return Command{keyword: KeywordValidate}
}

// NewValidateCalibrationPointCommand creates an ET_VLX command for x,y.
func NewValidateCalibrationPointCommand(x, y int) (Command, error) {
	if x <= 0 || y <= 0 {
		return Command{}, newInvalidValueError(KeywordValidatePoint, "invalid point", dimension(x, y))
	}
	return NewCommand(KeywordValidatePoint, x, y)
}

// NewRequestCalibrationResultsCommand creates an ET_RES command.
func NewRequestCalibrationResultsCommand() Command {
	return Command{keyword: KeywordCalibrationResults}
}

// NewSetDataFormatCommand creates an ET_FRM command. The format is always
// sent quoted.
func NewSetDataFormatCommand(format string) (Command, error) {
	if strings.TrimSpace(format) == "" {
		return Command{}, newInvalidValueError(KeywordDataFormat, "empty format", "")
	}
	return NewCommand(KeywordDataFormat, Quoted(format))
}

// NewStartStreamingCommand creates an ET_STR command. A framerate of 0
// streams at the full sample rate.
func NewStartStreamingCommand(framerate int) (Command, error) {
	if framerate < 0 {
		return Command{}, newOutOfRangeError(KeywordStartStreaming, "invalid framerate", framerate)
	}
	if framerate == 0 {
		return Command{keyword: KeywordStartStreaming}, nil
	}
	return NewCommand(KeywordStartStreaming, framerate)
}

// NewStopStreamingCommand creates an ET_EST command.
func NewStopStreamingCommand() Command {
	return Command{keyword: KeywordStopStreaming}
}

// NewGetSampleRateCommand creates an ET_SRT command.
func NewGetSampleRateCommand() Command {
	return Command{keyword: KeywordSampleRate}
}

func dimension(a, b int) string {
	return IntArg(int64(a)).Format() + "x" + IntArg(int64(b)).Format()
}
