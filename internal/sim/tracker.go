package sim

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pyviewx/viewx/viewxprotocol"
)

// DefaultDataFormat is the sample format used until ET_FRM sets another.
const DefaultDataFormat = "%TS %SX %SY"

// Point is a calibration point position in pixels.
type Point struct {
	X, Y int
}

// Tracker is the simulated instrument state. Handle applies one command and
// returns the datagrams the instrument sends in response, replies first.
type Tracker struct {
	mu sync.Mutex

	scenario *Scenario
	rng      *rand.Rand
	start    time.Time

	calPoints   int
	current     int
	calibrating bool
	params      [4]int
	checkLevel  int
	area        Screen
	points      [13]Point
	dataFormat  string
	streaming   bool
	streamRate  int
}

// NewTracker creates a tracker in its power-on state.
func NewTracker(sc *Scenario) *Tracker {
	t := &Tracker{
		scenario:   sc,
		rng:        rand.New(rand.NewSource(sc.Seed)),
		start:      time.Now(),
		area:       sc.Screen,
		dataFormat: DefaultDataFormat,
		params:     [4]int{1, 0, 0, 1},
		checkLevel: 2,
	}
	t.resetPoints()
	return t
}

// resetPoints lays the 13 calibration points out on the default grid:
// centre, four corners, four edge midpoints, then four inner points.
func (t *Tracker) resetPoints() {
	w, h := t.area.Width, t.area.Height
	l, r := w/10, w-w/10
	top, bot := h/10, h-h/10
	cx, cy := w/2, h/2
	t.points = [13]Point{
		{cx, cy},
		{l, top}, {r, top}, {l, bot}, {r, bot},
		{l, cy}, {cx, top}, {r, cy}, {cx, bot},
		{(l + cx) / 2, (top + cy) / 2}, {(r + cx) / 2, (top + cy) / 2},
		{(l + cx) / 2, (bot + cy) / 2}, {(r + cx) / 2, (bot + cy) / 2},
	}
}

// Handle applies cmd and returns the lines to send back.
func (t *Tracker) Handle(cmd viewxprotocol.Command) []string {
	if t.scenario.IsSilent(cmd.Keyword()) {
		return nil
	}

	args := cmd.Args()
	intArg := func(i int) int {
		if i >= len(args) {
			return 0
		}
		if v, ok := args[i].Value().(int64); ok {
			return int(v)
		}
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch cmd.Keyword() {
	case viewxprotocol.KeywordCalibrate:
		t.calPoints = intArg(0)
		t.current = 1
		t.calibrating = true
		return []string{cmd.Format(), "ET_CHG 1"}

	case viewxprotocol.KeywordAcceptPoint:
		if !t.calibrating {
			return []string{"ET_ACC"}
		}
		t.current++
		if t.current > t.calPoints {
			t.calibrating = false
			return []string{"ET_ACC", "ET_FIN 1"}
		}
		next := strconv.Itoa(t.current)
		return []string{"ET_ACC " + next, "ET_CHG " + next}

	case viewxprotocol.KeywordCancelCalibration:
		t.calibrating = false
		return []string{cmd.Format()}

	case viewxprotocol.KeywordCalibrationParam:
		param := intArg(0)
		if param < 0 || param >= len(t.params) {
			return nil
		}
		if len(args) == 1 {
			return []string{fmt.Sprintf("ET_CPA %d %d", param, t.params[param])}
		}
		t.params[param] = intArg(1)
		return []string{cmd.Format()}

	case viewxprotocol.KeywordCalibrationArea:
		t.area = Screen{Width: intArg(0), Height: intArg(1)}
		return []string{cmd.Format()}

	case viewxprotocol.KeywordDefaultPoints:
		t.resetPoints()
		return []string{cmd.Format()}

	case viewxprotocol.KeywordCheckLevel:
		t.checkLevel = intArg(0)
		return []string{cmd.Format()}

	case viewxprotocol.KeywordCalibrationPoint:
		n := intArg(0)
		if n < 1 || n > len(t.points) {
			return nil
		}
		t.points[n-1] = Point{X: intArg(1), Y: intArg(2)}
		return []string{cmd.Format()}

	case viewxprotocol.KeywordDriftCorrection:
		return []string{cmd.Format()}

	case viewxprotocol.KeywordValidate:
		return []string{fmt.Sprintf("ET_VLS %.2f %.2f %.2f %.2f",
			t.accuracy(), t.accuracy(), t.accuracy(), t.accuracy())}

	case viewxprotocol.KeywordValidatePoint:
		return []string{fmt.Sprintf("ET_VLX %d %d %.2f %.2f", intArg(0), intArg(1), t.accuracy(), t.accuracy())}

	case viewxprotocol.KeywordCalibrationResults:
		n := t.calPoints
		if n == 0 {
			n = 9
		}
		var b strings.Builder
		b.WriteString("ET_RES")
		for i := 0; i < n && i < len(t.points); i++ {
			p := t.points[i]
			gx, gy := t.gaze(p)
			fmt.Fprintf(&b, " %d %d %d %d %d", i+1, p.X, p.Y, gx, gy)
		}
		return []string{b.String()}

	case viewxprotocol.KeywordSampleRate:
		return []string{fmt.Sprintf("ET_SRT %d", t.scenario.SampleRate)}

	case viewxprotocol.KeywordDataFormat:
		if len(args) > 0 {
			t.dataFormat = fmt.Sprint(args[0].Value())
		}
		return nil

	case viewxprotocol.KeywordStartStreaming:
		t.streaming = true
		t.streamRate = t.scenario.SampleRate
		if rate := intArg(0); rate > 0 && rate < t.streamRate {
			t.streamRate = rate
		}
		return nil

	case viewxprotocol.KeywordStopStreaming:
		t.streaming = false
		return nil
	}

	return nil
}

// Streaming reports whether samples should be sent and at what interval.
func (t *Tracker) Streaming() (bool, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.streaming || t.streamRate <= 0 {
		return false, 0
	}
	return true, time.Second / time.Duration(t.streamRate)
}

// Calibrating reports whether a calibration is running and its current point.
func (t *Tracker) Calibrating() (bool, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calibrating, t.current
}

// CalibrationPoint returns the position of point n (1-based).
func (t *Tracker) CalibrationPoint(n int) (Point, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n < 1 || n > len(t.points) {
		return Point{}, false
	}
	return t.points[n-1], true
}

// DataFormat returns the current sample format.
func (t *Tracker) DataFormat() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dataFormat
}

// Sample renders one ET_SPL datagram in the current data format.
// Supported fields: %TS timestamp (µs), %SX/%SY gaze, %DX/%DY pupil
// diameter. Unknown fields are sent as 0.
func (t *Tracker) Sample() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	gx, gy := t.gaze(Point{X: t.area.Width / 2, Y: t.area.Height / 2})
	fields := strings.Fields(t.dataFormat)
	out := make([]string, 0, len(fields)+1)
	out = append(out, viewxprotocol.KeywordSample)
	for _, f := range fields {
		switch f {
		case "%TS":
			out = append(out, strconv.FormatInt(time.Since(t.start).Microseconds(), 10))
		case "%SX":
			out = append(out, strconv.Itoa(gx))
		case "%SY":
			out = append(out, strconv.Itoa(gy))
		case "%DX", "%DY":
			out = append(out, strconv.FormatFloat(3+t.rng.Float64(), 'f', 2, 64))
		default:
			out = append(out, "0")
		}
	}
	return strings.Join(out, " ")
}

// gaze returns a noisy gaze position around p. The caller must hold t.mu.
func (t *Tracker) gaze(p Point) (int, int) {
	return p.X + t.rng.Intn(21) - 10, p.Y + t.rng.Intn(21) - 10
}

// accuracy returns a plausible deviation in degrees. The caller must hold t.mu.
func (t *Tracker) accuracy() float64 {
	return 0.2 + t.rng.Float64()*0.6
}

// CheckLevel returns the calibration check level.
func (t *Tracker) CheckLevel() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.checkLevel
}
